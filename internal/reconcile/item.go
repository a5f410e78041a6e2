// Package reconcile folds the transport's unordered, at-least-once event
// stream into stable per-concern collections: shelf buckets, per-work
// reviews, reaction tallies, contact lists, the discovery feed, and
// discussion threads. Each concern is reconciled by a single goroutine, so
// the dedup and latest-wins rules hold without cross-concern coordination.
package reconcile

import (
	"sort"
	"strconv"

	"github.com/openbookapp/openbook-sync/internal/nostr"
)

// sortNewestFirst orders events by descending timestamp, ties broken by
// ascending id so any permutation of the same set yields the same order.
func sortNewestFirst(events []nostr.Event) {
	sort.Slice(events, func(i, j int) bool {
		if events[i].CreatedAt != events[j].CreatedAt {
			return events[i].CreatedAt > events[j].CreatedAt
		}
		return events[i].ID < events[j].ID
	})
}

// ShelfStatus is one of the three reading-progress buckets.
type ShelfStatus string

const (
	StatusWantToRead ShelfStatus = "want-to-read"
	StatusReading    ShelfStatus = "reading"
	StatusRead       ShelfStatus = "read"
)

// ParseStatus maps a raw status tag value to a recognized bucket.
// Unknown values are reported as not ok and the item stays out of every
// bucket.
func ParseStatus(raw string) (ShelfStatus, bool) {
	switch ShelfStatus(raw) {
	case StatusWantToRead, StatusReading, StatusRead:
		return ShelfStatus(raw), true
	default:
		return "", false
	}
}

// ShelfItem is one reconciled book on one user's shelf.
type ShelfItem struct {
	EventID       string
	Author        string
	WorkID        string
	Status        ShelfStatus
	Rating        int
	Review        string
	Title         string
	BookAuthor    string
	Cover         string
	PublishedYear string
	Private       bool
	CreatedAt     int64
}

// decodePublicItem maps a public shelf event to an item. The review lives
// in the plaintext content; everything else is denormalized into tags.
func decodePublicItem(e nostr.Event) ShelfItem {
	item := ShelfItem{
		EventID:       e.ID,
		Author:        e.PubKey,
		WorkID:        e.WorkID(),
		Review:        e.Content,
		Title:         e.Tags.Value("title"),
		BookAuthor:    e.Tags.Value("author"),
		Cover:         e.Tags.Value("cover"),
		PublishedYear: e.Tags.Value("published_year"),
		CreatedAt:     e.CreatedAt,
	}
	if status, ok := ParseStatus(e.Tags.Value("status")); ok {
		item.Status = status
	}
	if rating, err := strconv.Atoi(e.Tags.Value("rating")); err == nil && rating >= 1 && rating <= 5 {
		item.Rating = rating
	}
	return item
}
