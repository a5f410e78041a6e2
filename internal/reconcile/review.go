package reconcile

import (
	"encoding/json"
	"log/slog"
	"sort"
	"sync"

	"github.com/openbookapp/openbook-sync/internal/nostr"
)

// Review is one author's reconciled take on a work.
type Review struct {
	EventID   string
	Author    string
	Text      string
	Rating    int
	Status    ShelfStatus
	CreatedAt int64
}

// Book is the denormalized metadata shown alongside a work's reviews.
type Book struct {
	WorkID        string
	Title         string
	Author        string
	Cover         string
	PublishedYear string
}

// ReviewFolder reconciles the public shelf items of a single work into a
// review list (latest per author) plus the work's metadata and aggregate
// rating.
type ReviewFolder struct {
	mu     sync.Mutex
	workID string
	log    *slog.Logger

	seen     map[string]struct{}
	byAuthor map[string]reviewEntry
	book     *Book
	bookFrom nostr.Event
	complete bool
	closed   bool
}

type reviewEntry struct {
	event  nostr.Event
	review Review
}

// NewReviewFolder creates an empty review fold for one work.
func NewReviewFolder(workID string, log *slog.Logger) *ReviewFolder {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &ReviewFolder{
		workID:   workID,
		log:      log,
		seen:     make(map[string]struct{}),
		byAuthor: make(map[string]reviewEntry),
	}
}

// Fold reconciles one public shelf event for the work. Events with
// neither review text nor a rating are kept too: an author's latest event
// must supersede an earlier reviewed one even when the new event clears
// the review.
func (f *ReviewFolder) Fold(e nostr.Event) {
	if e.Kind != nostr.KindShelfItem || e.WorkID() != f.workID {
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

	if cur, ok := f.byAuthor[e.PubKey]; ok && !e.Supersedes(cur.event) {
		return
	}

	item := decodePublicItem(e)
	f.byAuthor[e.PubKey] = reviewEntry{
		event: e,
		review: Review{
			EventID:   e.ID,
			Author:    e.PubKey,
			Text:      item.Review,
			Rating:    item.Rating,
			Status:    item.Status,
			CreatedAt: e.CreatedAt,
		},
	}
}

// FoldMetadata reconciles a book-metadata event for the work; the latest
// one wins. Malformed content is logged and skipped.
func (f *ReviewFolder) FoldMetadata(e nostr.Event) {
	if e.Kind != nostr.KindBookMetadata || e.WorkID() != f.workID {
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

	if f.book != nil && !e.Supersedes(f.bookFrom) {
		return
	}

	var content struct {
		Title         string `json:"title"`
		Author        string `json:"author"`
		Cover         string `json:"cover"`
		PublishedYear string `json:"published_year"`
	}
	if err := json.Unmarshal([]byte(e.Content), &content); err != nil {
		f.log.Warn("malformed book metadata", "work", f.workID, "event", e.ID, "error", err)
		return
	}

	f.book = &Book{
		WorkID:        f.workID,
		Title:         content.Title,
		Author:        content.Author,
		Cover:         content.Cover,
		PublishedYear: content.PublishedYear,
	}
	f.bookFrom = e
}

// Reviews returns the reviews that have text or a rating, newest first.
func (f *ReviewFolder) Reviews() []Review {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]Review, 0, len(f.byAuthor))
	for _, entry := range f.byAuthor {
		if entry.review.Text == "" && entry.review.Rating == 0 {
			continue
		}
		out = append(out, entry.review)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt != out[j].CreatedAt {
			return out[i].CreatedAt > out[j].CreatedAt
		}
		return out[i].EventID < out[j].EventID
	})
	return out
}

// AverageRating returns the mean over rated reviews and the rating count.
// A work with no ratings yields (0, 0).
func (f *ReviewFolder) AverageRating() (float64, int) {
	f.mu.Lock()
	defer f.mu.Unlock()

	sum, n := 0, 0
	for _, entry := range f.byAuthor {
		if entry.review.Rating > 0 {
			sum += entry.review.Rating
			n++
		}
	}
	if n == 0 {
		return 0, 0
	}
	return float64(sum) / float64(n), n
}

// Book returns the reconciled metadata for the work, if any arrived.
func (f *ReviewFolder) Book() (Book, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.book == nil {
		return Book{}, false
	}
	return *f.book, true
}

// Complete reports whether the initial stored batch has been delivered.
func (f *ReviewFolder) Complete() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.complete
}

func (f *ReviewFolder) markComplete() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.complete = true
}

func (f *ReviewFolder) close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
}
