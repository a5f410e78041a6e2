package reconcile

import (
	"sync"

	"github.com/openbookapp/openbook-sync/internal/nostr"
)

// FeedFolder reconciles the cross-author discovery feed: recent public
// shelf items, deduplicated, latest-wins per replaceable slot, newest
// first, bounded to a fixed size.
type FeedFolder struct {
	mu       sync.Mutex
	limit    int
	seen     map[string]struct{}
	held     map[string]nostr.Event
	complete bool
	closed   bool
}

// NewFeedFolder creates an empty feed bounded to limit items. A limit of
// zero or less means unbounded.
func NewFeedFolder(limit int) *FeedFolder {
	return &FeedFolder{
		limit: limit,
		seen:  make(map[string]struct{}),
		held:  make(map[string]nostr.Event),
	}
}

// Fold reconciles one public shelf event into the feed.
func (f *FeedFolder) Fold(e nostr.Event) {
	if e.Kind != nostr.KindShelfItem {
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	if _, dup := f.seen[e.ID]; dup {
		return
	}
	f.seen[e.ID] = struct{}{}

	addr := e.Address()
	if cur, ok := f.held[addr]; ok && !e.Supersedes(cur) {
		return
	}
	f.held[addr] = e
}

// Items returns the decoded feed, newest first, capped to the limit.
func (f *FeedFolder) Items() []ShelfItem {
	f.mu.Lock()
	events := make([]nostr.Event, 0, len(f.held))
	for _, e := range f.held {
		events = append(events, e)
	}
	limit := f.limit
	f.mu.Unlock()

	sortNewestFirst(events)
	if limit > 0 && len(events) > limit {
		events = events[:limit]
	}
	out := make([]ShelfItem, 0, len(events))
	for _, e := range events {
		out = append(out, decodePublicItem(e))
	}
	return out
}

// Complete reports whether the initial stored batch has been delivered.
func (f *FeedFolder) Complete() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.complete
}

func (f *FeedFolder) markComplete() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.complete = true
}

func (f *FeedFolder) close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
}
