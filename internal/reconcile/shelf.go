package reconcile

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/openbookapp/openbook-sync/internal/keystore"
	"github.com/openbookapp/openbook-sync/internal/nostr"
	"github.com/openbookapp/openbook-sync/internal/shelfcrypto"
)

// ShelfFolder reconciles one user's shelf: public and private shelf-item
// events folded into a keyed map from replaceable address to the current
// winner. Private items pass through a decryption gate; items whose key is
// not yet available hold their slot (so an older public event cannot
// resurrect) and are retried when a key arrives.
type ShelfFolder struct {
	mu     sync.Mutex
	viewer string
	keys   *keystore.Store
	log    *slog.Logger

	seen     map[string]struct{}
	held     map[string]shelfEntry
	complete bool
	closed   bool
}

// shelfEntry keeps the winning event for an address even when the item
// could not be decoded: the event's timestamp still defends the slot.
type shelfEntry struct {
	event nostr.Event
	item  *ShelfItem
}

// NewShelfFolder creates an empty shelf for the given viewer identity.
// The viewer decides which key defends a private item: the self key for
// the viewer's own events, a received key for anyone else's.
func NewShelfFolder(viewer string, keys *keystore.Store, log *slog.Logger) *ShelfFolder {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &ShelfFolder{
		viewer: viewer,
		keys:   keys,
		log:    log,
		seen:   make(map[string]struct{}),
		held:   make(map[string]shelfEntry),
	}
}

// Fold reconciles one incoming event. Redelivery of a known id is a no-op,
// and an event only takes its address slot when it supersedes the current
// holder. Decode failures never abort the fold; the slot is simply held
// with no visible item.
func (f *ShelfFolder) Fold(e nostr.Event) {
	if e.Kind != nostr.KindShelfItem && e.Kind != nostr.KindShelfItemPrivate {
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
	if cur, ok := f.held[addr]; ok && !e.Supersedes(cur.event) {
		return
	}
	f.held[addr] = shelfEntry{event: e, item: f.decode(e)}
}

// decode is called with f.mu held.
func (f *ShelfFolder) decode(e nostr.Event) *ShelfItem {
	if e.Kind == nostr.KindShelfItem {
		item := decodePublicItem(e)
		return &item
	}

	km, ok := f.resolveKey(e.PubKey)
	if !ok {
		f.log.Debug("no key for private shelf item", "author", e.PubKey, "work", e.WorkID())
		return nil
	}
	private, err := shelfcrypto.DecryptItem(e.Content, km)
	if err != nil {
		f.log.Warn("failed to decrypt private shelf item", "author", e.PubKey, "work", e.WorkID(), "error", err)
		return nil
	}

	item := ShelfItem{
		EventID:       e.ID,
		Author:        e.PubKey,
		WorkID:        e.WorkID(),
		Review:        private.Review,
		Rating:        private.Rating,
		Cover:         private.Cover,
		Title:         e.Tags.Value("title"),
		BookAuthor:    e.Tags.Value("author"),
		PublishedYear: e.Tags.Value("published_year"),
		Private:       true,
		CreatedAt:     e.CreatedAt,
	}
	if status, ok := ParseStatus(e.Tags.Value("status")); ok {
		item.Status = status
	}
	return &item
}

func (f *ShelfFolder) resolveKey(author string) (keystore.KeyMaterial, bool) {
	if author == f.viewer {
		km, found, err := f.keys.SelfKey()
		if err != nil {
			f.log.Warn("self key unusable", "error", err)
			return keystore.KeyMaterial{}, false
		}
		return km, found
	}
	return f.keys.ReceivedKey(author)
}

// RetryPending re-attempts decryption of held private items authored by
// owner. Called when a grant from owner lands in the key store.
func (f *ShelfFolder) RetryPending(owner string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	for addr, entry := range f.held {
		if entry.item != nil || entry.event.PubKey != owner {
			continue
		}
		if item := f.decode(entry.event); item != nil {
			f.held[addr] = shelfEntry{event: entry.event, item: item}
		}
	}
}

// Buckets partitions the decoded items into the three status buckets,
// newest first within each. Items with an unrecognized status appear in
// no bucket.
func (f *ShelfFolder) Buckets() map[ShelfStatus][]ShelfItem {
	buckets := map[ShelfStatus][]ShelfItem{
		StatusWantToRead: nil,
		StatusReading:    nil,
		StatusRead:       nil,
	}
	for _, item := range f.Items() {
		if _, ok := buckets[item.Status]; ok {
			buckets[item.Status] = append(buckets[item.Status], item)
		}
	}
	return buckets
}

// Items returns every decoded item, newest first.
func (f *ShelfFolder) Items() []ShelfItem {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]ShelfItem, 0, len(f.held))
	for _, entry := range f.held {
		if entry.item != nil {
			out = append(out, *entry.item)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt != out[j].CreatedAt {
			return out[i].CreatedAt > out[j].CreatedAt
		}
		return out[i].EventID < out[j].EventID
	})
	return out
}

// Len reports the number of visible (decoded) items.
func (f *ShelfFolder) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, entry := range f.held {
		if entry.item != nil {
			n++
		}
	}
	return n
}

// Complete reports whether the initial stored batch has been delivered.
func (f *ShelfFolder) Complete() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.complete
}

func (f *ShelfFolder) markComplete() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.complete = true
}

// close stops all further mutation, including late folds from a stopped
// subscription's buffered events.
func (f *ShelfFolder) close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
}
