package reconcile

import (
	"sort"
	"sync"

	"github.com/openbookapp/openbook-sync/internal/nostr"
)

// Comment is one reconciled discussion reply under a review.
type Comment struct {
	EventID   string
	Author    string
	Text      string
	CreatedAt int64
}

// DiscussionFolder reconciles the comment thread rooted at one review
// event. Comments are immutable, so the fold is dedup-only.
type DiscussionFolder struct {
	mu       sync.Mutex
	rootID   string
	seen     map[string]struct{}
	comments []Comment
	complete bool
	closed   bool
}

// NewDiscussionFolder creates an empty thread for the given root event.
func NewDiscussionFolder(rootID string) *DiscussionFolder {
	return &DiscussionFolder{
		rootID: rootID,
		seen:   make(map[string]struct{}),
	}
}

// Fold reconciles one comment event targeting the thread root.
func (f *DiscussionFolder) Fold(e nostr.Event) {
	if e.Kind != nostr.KindComment || e.Tags.Value("e") != f.rootID {
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

	f.comments = append(f.comments, Comment{
		EventID:   e.ID,
		Author:    e.PubKey,
		Text:      e.Content,
		CreatedAt: e.CreatedAt,
	})
}

// Comments returns the thread in chronological order.
func (f *DiscussionFolder) Comments() []Comment {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]Comment, len(f.comments))
	copy(out, f.comments)
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt != out[j].CreatedAt {
			return out[i].CreatedAt < out[j].CreatedAt
		}
		return out[i].EventID < out[j].EventID
	})
	return out
}

// Complete reports whether the initial stored batch has been delivered.
func (f *DiscussionFolder) Complete() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.complete
}

func (f *DiscussionFolder) markComplete() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.complete = true
}

func (f *DiscussionFolder) close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
}
