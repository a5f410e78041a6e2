// Package service orchestrates user actions: it builds events, publishes
// them, and applies the optimistic local updates the UI relies on.
// Reconciliation of incoming events lives in the reconcile package.
package service

import (
	"context"
	"log/slog"

	"github.com/openbookapp/openbook-sync/internal/builder"
	domainerrors "github.com/openbookapp/openbook-sync/internal/errors"
	"github.com/openbookapp/openbook-sync/internal/nostr"
	"github.com/openbookapp/openbook-sync/internal/relay"
)

// ShelfService saves shelf items and book metadata.
type ShelfService struct {
	builder   *builder.Builder
	transport relay.Transport
	logger    *slog.Logger
}

// NewShelfService creates a new shelf service.
func NewShelfService(b *builder.Builder, transport relay.Transport, logger *slog.Logger) *ShelfService {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &ShelfService{builder: b, transport: transport, logger: logger}
}

// SaveItem publishes a shelf item. A private item encrypts the review,
// rating, and cover with the user's shelf key, creating the key on first
// use. The returned event is what went on the wire.
func (s *ShelfService) SaveItem(ctx context.Context, input builder.ShelfItemInput, private bool) (nostr.Event, error) {
	if err := ctx.Err(); err != nil {
		return nostr.Event{}, err
	}

	var (
		event nostr.Event
		err   error
	)
	if private {
		event, err = s.builder.PrivateShelfItem(input)
	} else {
		event, err = s.builder.ShelfItem(input)
	}
	if err != nil {
		return nostr.Event{}, err
	}

	if err := s.transport.Publish(ctx, event); err != nil {
		return nostr.Event{}, domainerrors.Wrapf(err, domainerrors.CodeTransport,
			"failed to publish shelf item for %s", input.WorkID)
	}

	s.logger.Info("shelf item saved",
		"work_id", input.WorkID,
		"status", input.Status,
		"private", private,
	)
	return event, nil
}

// PublishMetadata publishes searchable metadata for a work, so other
// clients can render and find it without a catalog lookup.
func (s *ShelfService) PublishMetadata(ctx context.Context, input builder.BookMetadataInput) (nostr.Event, error) {
	if err := ctx.Err(); err != nil {
		return nostr.Event{}, err
	}

	event, err := s.builder.BookMetadata(input)
	if err != nil {
		return nostr.Event{}, err
	}
	if err := s.transport.Publish(ctx, event); err != nil {
		return nostr.Event{}, domainerrors.Wrapf(err, domainerrors.CodeTransport,
			"failed to publish metadata for %s", input.WorkID)
	}

	s.logger.Info("book metadata published", "work_id", input.WorkID)
	return event, nil
}
