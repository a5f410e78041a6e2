package reconcile

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/openbookapp/openbook-sync/internal/bus"
	"github.com/openbookapp/openbook-sync/internal/keystore"
	"github.com/openbookapp/openbook-sync/internal/logger"
	"github.com/openbookapp/openbook-sync/internal/nostr"
	"github.com/openbookapp/openbook-sync/internal/relay"
)

// Reconciler opens per-concern watches over the transport. Every watch
// owns one subscription, one folder, and one pump goroutine; stopping the
// watch tears all three down and freezes the folder so buffered events
// from the stopped subscription cannot mutate it afterwards.
type Reconciler struct {
	viewer    string
	transport relay.Transport
	keys      *keystore.Store
	topics    *bus.Topics
	indexer   SearchIndexer
	log       *logger.Logger
}

// New creates a reconciler for the given viewer identity. A nil indexer
// disables search indexing; a nil logger discards.
func New(viewer string, transport relay.Transport, keys *keystore.Store, topics *bus.Topics, indexer SearchIndexer, log *logger.Logger) *Reconciler {
	if indexer == nil {
		indexer = NoopIndexer{}
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Reconciler{
		viewer:    viewer,
		transport: transport,
		keys:      keys,
		topics:    topics,
		indexer:   indexer,
		log:       log,
	}
}

// watch is the shared stoppable half of every concern handle.
type watch struct {
	once sync.Once
	stop func()
}

// Stop tears the watch down. Safe to call more than once.
func (w *watch) Stop() {
	w.once.Do(w.stop)
}

// pump drains one subscription into a fold function until the watch stops
// or the subscription closes. The end-of-stored marker fires complete
// exactly once; live events keep flowing afterwards.
func (r *Reconciler) pump(sub relay.Subscription, done <-chan struct{}, fold func(nostr.Event), complete func()) {
	eose := sub.EndOfStored()
	for {
		select {
		case <-done:
			return
		case <-eose:
			complete()
			eose = nil
		case e, ok := <-sub.Events():
			if !ok {
				return
			}
			fold(e)
		}
	}
}

// index feeds one metadata event into the search index. Index failures
// never interrupt the fold.
func (r *Reconciler) index(e nostr.Event) {
	var content struct {
		Title  string `json:"title"`
		Author string `json:"author"`
	}
	if err := json.Unmarshal([]byte(e.Content), &content); err != nil {
		r.log.Debug("skipping unparseable metadata for index", "event", e.ID, "error", err)
		return
	}
	doc := BookDocument{WorkID: e.WorkID(), Title: content.Title, Author: content.Author}
	if err := r.indexer.Index(doc); err != nil {
		r.log.Warn("failed to index book metadata", "work", doc.WorkID, "error", err)
	}
}

// ShelfWatch is a live view of one user's shelf.
type ShelfWatch struct {
	Folder *ShelfFolder
	watch
}

// WatchShelf reconciles the public and private shelf of owner. Private
// items decrypt with the viewer's self key when viewing their own shelf,
// or with a granted key otherwise; a key arriving later retriggers
// decryption of held items.
func (r *Reconciler) WatchShelf(ctx context.Context, owner string) (*ShelfWatch, error) {
	folder := NewShelfFolder(r.viewer, r.keys, r.log.Logger)
	sub, err := r.transport.Subscribe(ctx, nostr.Filter{
		Kinds:   []nostr.Kind{nostr.KindShelfItem, nostr.KindShelfItemPrivate},
		Authors: []string{owner},
	})
	if err != nil {
		return nil, err
	}

	unsubscribe := func() {}
	if r.topics != nil {
		unsubscribe = r.topics.KeyReceived.Subscribe(func(n bus.KeyReceived) {
			folder.RetryPending(n.Owner)
		})
	}

	done := make(chan struct{})
	go r.pump(sub, done, folder.Fold, folder.markComplete)

	w := &ShelfWatch{Folder: folder}
	w.watch.stop = func() {
		close(done)
		sub.Stop()
		unsubscribe()
		folder.close()
	}
	return w, nil
}

// ReviewWatch is a live view of one work's reviews and metadata.
type ReviewWatch struct {
	Folder *ReviewFolder
	watch
}

// WatchReviews reconciles the public reviews of one work. Metadata events
// for the work also feed the search index.
func (r *Reconciler) WatchReviews(ctx context.Context, workID string) (*ReviewWatch, error) {
	folder := NewReviewFolder(workID, r.log.Logger)
	sub, err := r.transport.Subscribe(ctx, nostr.Filter{
		Kinds: []nostr.Kind{nostr.KindShelfItem, nostr.KindBookMetadata},
		Tags:  map[string][]string{"d": {workID}},
	})
	if err != nil {
		return nil, err
	}

	done := make(chan struct{})
	go r.pump(sub, done, func(e nostr.Event) {
		if e.Kind == nostr.KindBookMetadata {
			folder.FoldMetadata(e)
			r.index(e)
			return
		}
		folder.Fold(e)
	}, folder.markComplete)

	w := &ReviewWatch{Folder: folder}
	w.watch.stop = func() {
		close(done)
		sub.Stop()
		folder.close()
	}
	return w, nil
}

// ReactionWatch is a live view of reactions on a set of target events.
type ReactionWatch struct {
	Folder *ReactionFolder
	watch
}

// WatchReactions reconciles reactions targeting any of the given event ids.
func (r *Reconciler) WatchReactions(ctx context.Context, targets []string) (*ReactionWatch, error) {
	folder := NewReactionFolder()
	sub, err := r.transport.Subscribe(ctx, nostr.Filter{
		Kinds: []nostr.Kind{nostr.KindReaction},
		Tags:  map[string][]string{"e": targets},
	})
	if err != nil {
		return nil, err
	}

	done := make(chan struct{})
	go r.pump(sub, done, folder.Fold, folder.markComplete)

	w := &ReactionWatch{Folder: folder}
	w.watch.stop = func() {
		close(done)
		sub.Stop()
		folder.close()
	}
	return w, nil
}

// ContactWatch is a live view of contact lists.
type ContactWatch struct {
	Folder *ContactFolder
	watch
}

// WatchContacts reconciles the contact lists of the given authors.
func (r *Reconciler) WatchContacts(ctx context.Context, authors []string) (*ContactWatch, error) {
	folder := NewContactFolder()
	sub, err := r.transport.Subscribe(ctx, nostr.Filter{
		Kinds:   []nostr.Kind{nostr.KindContacts},
		Authors: authors,
	})
	if err != nil {
		return nil, err
	}

	done := make(chan struct{})
	go r.pump(sub, done, folder.Fold, folder.markComplete)

	w := &ContactWatch{Folder: folder}
	w.watch.stop = func() {
		close(done)
		sub.Stop()
		folder.close()
	}
	return w, nil
}

// FeedWatch is a live view of the cross-author discovery feed.
type FeedWatch struct {
	Folder *FeedFolder
	watch
}

// WatchFeed reconciles recent public shelf activity across all authors.
// Metadata events seen on the way feed the search index.
func (r *Reconciler) WatchFeed(ctx context.Context, limit int) (*FeedWatch, error) {
	folder := NewFeedFolder(limit)
	sub, err := r.transport.Subscribe(ctx, nostr.Filter{
		Kinds: []nostr.Kind{nostr.KindShelfItem, nostr.KindBookMetadata},
		Limit: limit,
	})
	if err != nil {
		return nil, err
	}

	done := make(chan struct{})
	go r.pump(sub, done, func(e nostr.Event) {
		if e.Kind == nostr.KindBookMetadata {
			r.index(e)
			return
		}
		folder.Fold(e)
	}, folder.markComplete)

	w := &FeedWatch{Folder: folder}
	w.watch.stop = func() {
		close(done)
		sub.Stop()
		folder.close()
	}
	return w, nil
}

// DiscussionWatch is a live view of the comment thread under one review.
type DiscussionWatch struct {
	Folder *DiscussionFolder
	watch
}

// WatchDiscussion reconciles comments replying to the given root event.
func (r *Reconciler) WatchDiscussion(ctx context.Context, rootID string) (*DiscussionWatch, error) {
	folder := NewDiscussionFolder(rootID)
	sub, err := r.transport.Subscribe(ctx, nostr.Filter{
		Kinds: []nostr.Kind{nostr.KindComment},
		Tags:  map[string][]string{"e": {rootID}},
	})
	if err != nil {
		return nil, err
	}

	done := make(chan struct{})
	go r.pump(sub, done, folder.Fold, folder.markComplete)

	w := &DiscussionWatch{Folder: folder}
	w.watch.stop = func() {
		close(done)
		sub.Stop()
		folder.close()
	}
	return w, nil
}
