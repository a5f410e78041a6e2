package reconcile

import (
	"sync"

	"github.com/openbookapp/openbook-sync/internal/nostr"
)

// ContactFolder reconciles contact-list events: the latest list per author
// wins outright, earlier lists contribute nothing.
type ContactFolder struct {
	mu       sync.Mutex
	seen     map[string]struct{}
	held     map[string]nostr.Event
	complete bool
	closed   bool
}

// NewContactFolder creates an empty contact fold.
func NewContactFolder() *ContactFolder {
	return &ContactFolder{
		seen: make(map[string]struct{}),
		held: make(map[string]nostr.Event),
	}
}

// Fold reconciles one contact-list event.
func (f *ContactFolder) Fold(e nostr.Event) {
	if e.Kind != nostr.KindContacts {
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

	if cur, ok := f.held[e.PubKey]; ok && !e.Supersedes(cur) {
		return
	}
	f.held[e.PubKey] = e
}

// Follows returns the deduplicated followed identities of author, in list
// order. A missing list yields nil.
func (f *ContactFolder) Follows(author string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	e, ok := f.held[author]
	if !ok {
		return nil
	}
	var out []string
	present := make(map[string]struct{})
	for _, followed := range e.Tags.Values("p") {
		if _, dup := present[followed]; dup || followed == "" {
			continue
		}
		present[followed] = struct{}{}
		out = append(out, followed)
	}
	return out
}

// IsFollowing reports whether author's latest list contains target.
func (f *ContactFolder) IsFollowing(author, target string) bool {
	for _, followed := range f.Follows(author) {
		if followed == target {
			return true
		}
	}
	return false
}

// Complete reports whether the initial stored batch has been delivered.
func (f *ContactFolder) Complete() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.complete
}

func (f *ContactFolder) markComplete() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.complete = true
}

func (f *ContactFolder) close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
}
