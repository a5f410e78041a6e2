package reconcile

import (
	"sort"
	"sync"

	"github.com/openbookapp/openbook-sync/internal/nostr"
)

// ReactionFolder reconciles like/dislike events into per-target tallies.
// A reactor holds at most one mark per target: a later reaction supersedes
// the earlier one, it never accumulates. Optimistic local reactions go
// through the same fold, so the authoritative echo is a no-op.
type ReactionFolder struct {
	mu   sync.Mutex
	seen map[string]struct{}
	// marks: target event id -> reactor -> current mark.
	marks    map[string]map[string]reactionMark
	complete bool
	closed   bool
}

type reactionMark struct {
	eventID   string
	createdAt int64
	like      bool
}

// NewReactionFolder creates an empty reaction fold.
func NewReactionFolder() *ReactionFolder {
	return &ReactionFolder{
		seen:  make(map[string]struct{}),
		marks: make(map[string]map[string]reactionMark),
	}
}

// Fold reconciles one reaction event. Content other than "+" or "-" and
// events without a target are ignored.
func (f *ReactionFolder) Fold(e nostr.Event) {
	if e.Kind != nostr.KindReaction {
		return
	}
	target := e.Tags.Value("e")
	if target == "" || (e.Content != "+" && e.Content != "-") {
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

	incoming := reactionMark{eventID: e.ID, createdAt: e.CreatedAt, like: e.Content == "+"}
	byReactor := f.marks[target]
	if byReactor == nil {
		byReactor = make(map[string]reactionMark)
		f.marks[target] = byReactor
	}
	if cur, ok := byReactor[e.PubKey]; ok && !supersedesMark(incoming, cur) {
		return
	}
	byReactor[e.PubKey] = incoming
}

// ApplyLocal folds the viewer's own just-published reaction without
// waiting for the transport echo. The echo deduplicates by id.
func (f *ReactionFolder) ApplyLocal(e nostr.Event) {
	f.Fold(e)
}

func supersedesMark(incoming, cur reactionMark) bool {
	if incoming.createdAt != cur.createdAt {
		return incoming.createdAt > cur.createdAt
	}
	return incoming.eventID < cur.eventID
}

// Likes returns the sorted reactor identities currently liking target.
func (f *ReactionFolder) Likes(target string) []string {
	return f.reactors(target, true)
}

// Dislikes returns the sorted reactor identities currently disliking target.
func (f *ReactionFolder) Dislikes(target string) []string {
	return f.reactors(target, false)
}

func (f *ReactionFolder) reactors(target string, like bool) []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []string
	for reactor, mark := range f.marks[target] {
		if mark.like == like {
			out = append(out, reactor)
		}
	}
	sort.Strings(out)
	return out
}

// Counts returns the like and dislike tallies for target.
func (f *ReactionFolder) Counts(target string) (likes, dislikes int) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, mark := range f.marks[target] {
		if mark.like {
			likes++
		} else {
			dislikes++
		}
	}
	return likes, dislikes
}

// Complete reports whether the initial stored batch has been delivered.
func (f *ReactionFolder) Complete() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.complete
}

func (f *ReactionFolder) markComplete() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.complete = true
}

func (f *ReactionFolder) close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
}
