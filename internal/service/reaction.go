package service

import (
	"context"
	"log/slog"

	"github.com/openbookapp/openbook-sync/internal/builder"
	domainerrors "github.com/openbookapp/openbook-sync/internal/errors"
	"github.com/openbookapp/openbook-sync/internal/nostr"
	"github.com/openbookapp/openbook-sync/internal/reconcile"
	"github.com/openbookapp/openbook-sync/internal/relay"
)

// ReactionService publishes reactions and applies them to local state
// immediately, without waiting for the transport echo.
type ReactionService struct {
	builder   *builder.Builder
	transport relay.Transport
	logger    *slog.Logger
}

// NewReactionService creates a new reaction service.
func NewReactionService(b *builder.Builder, transport relay.Transport, logger *slog.Logger) *ReactionService {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &ReactionService{builder: b, transport: transport, logger: logger}
}

// React publishes a like or dislike on target and folds it into folder
// optimistically. The eventual echo deduplicates by event id. A nil
// folder skips the local apply.
func (s *ReactionService) React(ctx context.Context, folder *reconcile.ReactionFolder, target builder.ReactionTarget, like bool) (nostr.Event, error) {
	if err := ctx.Err(); err != nil {
		return nostr.Event{}, err
	}

	event, err := s.builder.Reaction(target, like)
	if err != nil {
		return nostr.Event{}, err
	}
	if err := s.transport.Publish(ctx, event); err != nil {
		return nostr.Event{}, domainerrors.Wrapf(err, domainerrors.CodeTransport,
			"failed to publish reaction on %s", target.EventID)
	}

	if folder != nil {
		folder.ApplyLocal(event)
	}
	s.logger.Debug("reaction published", "target", target.EventID, "like", like)
	return event, nil
}
