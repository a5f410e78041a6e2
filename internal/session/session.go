// Package session ties one signed-in identity to its collaborators: key
// store, event builders, services, reconciler, and the grant listener.
// A session is created at sign-in and closed at sign-out; nothing here is
// ambient or process-global.
package session

import (
	"context"
	"time"

	"github.com/openbookapp/openbook-sync/internal/builder"
	"github.com/openbookapp/openbook-sync/internal/bus"
	"github.com/openbookapp/openbook-sync/internal/grant"
	"github.com/openbookapp/openbook-sync/internal/keystore"
	"github.com/openbookapp/openbook-sync/internal/logger"
	"github.com/openbookapp/openbook-sync/internal/reconcile"
	"github.com/openbookapp/openbook-sync/internal/relay"
	"github.com/openbookapp/openbook-sync/internal/service"
	"github.com/openbookapp/openbook-sync/internal/signer"
	"github.com/openbookapp/openbook-sync/internal/storage"
)

// Options configures a session.
type Options struct {
	Signer    signer.Signer
	Transport relay.Transport
	// KV persists keys and the DM watermark across sessions.
	KV storage.KV
	// Indexer receives reconciled book metadata; nil disables indexing.
	Indexer reconcile.SearchIndexer
	// Resolver backs the bookstr importer; nil disables importing.
	Resolver service.CatalogResolver
	// GrantLookback bounds the first ever grant scan; zero uses the
	// listener default.
	GrantLookback time.Duration
	// FeedLimit caps the discovery feed; zero uses DefaultFeedLimit.
	FeedLimit int
	Logger    *logger.Logger
}

// DefaultFeedLimit caps the discovery feed when no limit is configured.
const DefaultFeedLimit = 50

// Session is everything one signed-in identity needs.
type Session struct {
	Signer     signer.Signer
	Keys       *keystore.Store
	Topics     *bus.Topics
	Builder    *builder.Builder
	Reconciler *reconcile.Reconciler
	Grants     *grant.Protocol
	Shelf      *service.ShelfService
	Social     *service.SocialService
	Reactions  *service.ReactionService
	Import     *service.ImportService

	listener  *grant.Listener
	feedLimit int
	log       *logger.Logger
}

// Open builds the session and starts the background grant listener.
func Open(ctx context.Context, opts Options) (*Session, error) {
	log := opts.Logger
	if log == nil {
		log = logger.Discard()
	}

	keys := keystore.New(opts.KV, log.Logger)
	topics := bus.NewTopics()
	b := builder.New(opts.Signer, keys)

	feedLimit := opts.FeedLimit
	if feedLimit <= 0 {
		feedLimit = DefaultFeedLimit
	}

	s := &Session{
		Signer:     opts.Signer,
		Keys:       keys,
		Topics:     topics,
		Builder:    b,
		Reconciler: reconcile.New(opts.Signer.PublicKey(), opts.Transport, keys, topics, opts.Indexer, log),
		Grants:     grant.NewProtocol(opts.Signer, keys, opts.Transport, topics, log),
		Shelf:      service.NewShelfService(b, opts.Transport, log.Logger),
		Social:     service.NewSocialService(opts.Signer, b, opts.Transport, log.Logger),
		Reactions:  service.NewReactionService(b, opts.Transport, log.Logger),
		listener:   grant.NewListener(opts.Signer, keys, opts.KV, opts.Transport, topics, opts.GrantLookback, log),
		feedLimit:  feedLimit,
		log:        log,
	}
	if opts.Resolver != nil {
		s.Import = service.NewImportService(opts.Signer, b, opts.Transport, opts.Resolver, log.Logger)
	}

	if err := s.listener.Start(ctx); err != nil {
		return nil, err
	}

	log.Info("session opened", "identity", opts.Signer.PublicKey())
	return s, nil
}

// WatchFeed opens the discovery feed capped at the session's configured
// limit.
func (s *Session) WatchFeed(ctx context.Context) (*reconcile.FeedWatch, error) {
	return s.Reconciler.WatchFeed(ctx, s.feedLimit)
}

// Identity returns the session's public key.
func (s *Session) Identity() string {
	return s.Signer.PublicKey()
}

// Close stops the background listener. Watches opened through the
// reconciler are stopped by their owners.
func (s *Session) Close() {
	s.listener.Stop()
	s.log.Info("session closed", "identity", s.Identity())
}
