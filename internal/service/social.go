package service

import (
	"context"
	"log/slog"
	"slices"

	"github.com/openbookapp/openbook-sync/internal/builder"
	domainerrors "github.com/openbookapp/openbook-sync/internal/errors"
	"github.com/openbookapp/openbook-sync/internal/nostr"
	"github.com/openbookapp/openbook-sync/internal/relay"
	"github.com/openbookapp/openbook-sync/internal/signer"
)

// SocialService edits the user's contact list and publishes discussion
// comments. Contact-list edits read the current list from the transport,
// apply a single change, and publish the full replacement list.
type SocialService struct {
	signer    signer.Signer
	builder   *builder.Builder
	transport relay.Transport
	logger    *slog.Logger
}

// NewSocialService creates a new social service.
func NewSocialService(sgn signer.Signer, b *builder.Builder, transport relay.Transport, logger *slog.Logger) *SocialService {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &SocialService{signer: sgn, builder: b, transport: transport, logger: logger}
}

// contactList fetches the user's current contact-list event, or nil when
// none has been published yet.
func (s *SocialService) contactList(ctx context.Context) (*nostr.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	current, err := s.transport.FetchOne(ctx, nostr.Filter{
		Kinds:   []nostr.Kind{nostr.KindContacts},
		Authors: []string{s.signer.PublicKey()},
	})
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeTransport, "failed to fetch contact list")
	}
	return current, nil
}

// FollowedAuthors returns the identities the user currently follows.
func (s *SocialService) FollowedAuthors(ctx context.Context) ([]string, error) {
	current, err := s.contactList(ctx)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, nil
	}

	var follows []string
	present := make(map[string]struct{})
	for _, followed := range current.Tags.Values("p") {
		if _, dup := present[followed]; dup || followed == "" {
			continue
		}
		present[followed] = struct{}{}
		follows = append(follows, followed)
	}
	return follows, nil
}

// Follow adds target to the contact list by appending a single p tag to
// the prior event's tags. All prior tags and the prior content survive
// untouched. Following someone already followed is a no-op.
func (s *SocialService) Follow(ctx context.Context, target string) error {
	if target == "" || target == s.signer.PublicKey() {
		return domainerrors.Validation("invalid follow target")
	}

	current, err := s.contactList(ctx)
	if err != nil {
		return err
	}
	var tags nostr.Tags
	var content string
	if current != nil {
		if slices.Contains(current.Tags.Values("p"), target) {
			return nil
		}
		tags = slices.Clone(current.Tags)
		content = current.Content
	}

	if err := s.publishContacts(ctx, tags.Append("p", target), content); err != nil {
		return err
	}
	s.logger.Info("followed", "target", target)
	return nil
}

// Unfollow removes target's p tags from the contact list, keeping every
// other tag and the content as they were. Unfollowing someone not
// followed is a no-op.
func (s *SocialService) Unfollow(ctx context.Context, target string) error {
	current, err := s.contactList(ctx)
	if err != nil {
		return err
	}
	if current == nil || !slices.Contains(current.Tags.Values("p"), target) {
		return nil
	}

	var tags nostr.Tags
	for _, tag := range current.Tags {
		if len(tag) >= 2 && tag[0] == "p" && tag[1] == target {
			continue
		}
		tags = append(tags, tag)
	}

	if err := s.publishContacts(ctx, tags, current.Content); err != nil {
		return err
	}
	s.logger.Info("unfollowed", "target", target)
	return nil
}

func (s *SocialService) publishContacts(ctx context.Context, tags nostr.Tags, content string) error {
	event, err := s.builder.ContactList(tags, content)
	if err != nil {
		return err
	}
	if err := s.transport.Publish(ctx, event); err != nil {
		return domainerrors.Wrap(err, domainerrors.CodeTransport, "failed to publish contact list")
	}
	return nil
}

// Comment publishes a discussion reply under a review.
func (s *SocialService) Comment(ctx context.Context, input builder.CommentInput) (nostr.Event, error) {
	if err := ctx.Err(); err != nil {
		return nostr.Event{}, err
	}

	event, err := s.builder.Comment(input)
	if err != nil {
		return nostr.Event{}, err
	}
	if err := s.transport.Publish(ctx, event); err != nil {
		return nostr.Event{}, domainerrors.Wrap(err, domainerrors.CodeTransport, "failed to publish comment")
	}
	return event, nil
}
