// Package builder turns user intentions into signed domain events ready
// for publishing. Builders validate their input, keep the tag contracts
// other clients rely on, and never publish anything themselves.
package builder

import (
	"encoding/json"
	"strconv"
	"sync"
	"time"

	domainerrors "github.com/openbookapp/openbook-sync/internal/errors"
	"github.com/openbookapp/openbook-sync/internal/keystore"
	"github.com/openbookapp/openbook-sync/internal/normalize"
	"github.com/openbookapp/openbook-sync/internal/nostr"
	"github.com/openbookapp/openbook-sync/internal/shelfcrypto"
	"github.com/openbookapp/openbook-sync/internal/signer"
	"github.com/openbookapp/openbook-sync/internal/validation"
)

// Builder constructs and signs domain events for one identity.
type Builder struct {
	signer   signer.Signer
	keys     *keystore.Store
	validate *validation.Validator
	now      func() int64

	mu   sync.Mutex
	last int64
}

// New creates a builder backed by the given signer and key store.
func New(sgn signer.Signer, keys *keystore.Store) *Builder {
	return &Builder{
		signer:   sgn,
		keys:     keys,
		validate: validation.New(),
		now:      func() int64 { return time.Now().Unix() },
	}
}

// stamp returns a createdAt strictly greater than any previous stamp from
// this builder. Two edits of the same replaceable address within one
// second must still supersede in publish order, not by id tie-break.
func (b *Builder) stamp() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	ts := b.now()
	if ts <= b.last {
		ts = b.last + 1
	}
	b.last = ts
	return ts
}

// ShelfItemInput describes one book on the user's shelf.
type ShelfItemInput struct {
	WorkID        string `json:"work_id" validate:"required"`
	Status        string `json:"status" validate:"required,oneof=want-to-read reading read"`
	Rating        int    `json:"rating" validate:"omitempty,min=1,max=5"`
	Review        string `json:"review"`
	Title         string `json:"title"`
	Author        string `json:"author"`
	Cover         string `json:"cover"`
	PublishedYear string `json:"published_year"`
}

func (b *Builder) checkShelfInput(input ShelfItemInput) error {
	if err := b.validate.Validate(input); err != nil {
		return err
	}
	// A rating only makes sense on a finished book.
	if input.Rating > 0 && input.Status != "read" {
		return domainerrors.Validation("rating requires status read")
	}
	return nil
}

// ShelfItem builds a public shelf-item event. The review travels as
// plaintext content; everything else is denormalized into tags so other
// clients can render the item without extra lookups.
func (b *Builder) ShelfItem(input ShelfItemInput) (nostr.Event, error) {
	if err := b.checkShelfInput(input); err != nil {
		return nostr.Event{}, err
	}

	tags := nostr.Tags{
		{"d", input.WorkID},
		{"status", input.Status},
	}
	if input.Rating > 0 {
		tags = tags.Append("rating", strconv.Itoa(input.Rating))
	}
	tags = appendNonEmpty(tags, "title", input.Title)
	tags = appendNonEmpty(tags, "author", input.Author)
	tags = appendNonEmpty(tags, "cover", input.Cover)
	tags = appendNonEmpty(tags, "published_year", input.PublishedYear)

	event := nostr.Event{
		CreatedAt: b.stamp(),
		Kind:      nostr.KindShelfItem,
		Tags:      tags,
		Content:   input.Review,
	}
	return b.sign(event)
}

// PrivateShelfItem builds an encrypted shelf-item event. The review,
// rating, and cover move into the encrypted content; the remaining tags
// stay public so the item still occupies its shelf slot for everyone.
// The self key is created on the first private write.
func (b *Builder) PrivateShelfItem(input ShelfItemInput) (nostr.Event, error) {
	if err := b.checkShelfInput(input); err != nil {
		return nostr.Event{}, err
	}

	km, err := b.keys.GetOrCreateSelfKey()
	if err != nil {
		return nostr.Event{}, err
	}
	blob, err := shelfcrypto.EncryptItem(shelfcrypto.PrivateItem{
		Review: input.Review,
		Rating: input.Rating,
		Cover:  input.Cover,
	}, km)
	if err != nil {
		return nostr.Event{}, err
	}

	tags := nostr.Tags{
		{"d", input.WorkID},
		{"status", input.Status},
	}
	tags = appendNonEmpty(tags, "title", input.Title)
	tags = appendNonEmpty(tags, "author", input.Author)
	tags = appendNonEmpty(tags, "published_year", input.PublishedYear)

	event := nostr.Event{
		CreatedAt: b.stamp(),
		Kind:      nostr.KindShelfItemPrivate,
		Tags:      tags,
		Content:   blob,
	}
	return b.sign(event)
}

// BookMetadataInput describes a catalog work.
type BookMetadataInput struct {
	WorkID        string `json:"work_id" validate:"required"`
	Title         string `json:"title" validate:"required"`
	Author        string `json:"author"`
	Cover         string `json:"cover"`
	PublishedYear string `json:"published_year"`
}

// BookMetadata builds a metadata event. Title and author tags are
// normalized for searchability; the content keeps the original casing.
func (b *Builder) BookMetadata(input BookMetadataInput) (nostr.Event, error) {
	if err := b.validate.Validate(input); err != nil {
		return nostr.Event{}, err
	}

	content, err := json.Marshal(map[string]string{
		"title":          input.Title,
		"author":         input.Author,
		"cover":          input.Cover,
		"published_year": input.PublishedYear,
	})
	if err != nil {
		return nostr.Event{}, domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to encode metadata")
	}

	tags := nostr.Tags{
		{"d", input.WorkID},
		{"title", normalize.SearchText(input.Title)},
	}
	tags = appendNonEmpty(tags, "author", normalize.SearchText(input.Author))

	event := nostr.Event{
		CreatedAt: b.stamp(),
		Kind:      nostr.KindBookMetadata,
		Tags:      tags,
		Content:   string(content),
	}
	return b.sign(event)
}

// ReactionTarget identifies the event being reacted to.
type ReactionTarget struct {
	EventID string `json:"event_id" validate:"required"`
	Author  string `json:"author" validate:"required"`
	WorkID  string `json:"work_id"`
}

// Reaction builds a "+" (like) or "-" (dislike) reaction event.
func (b *Builder) Reaction(target ReactionTarget, like bool) (nostr.Event, error) {
	if err := b.validate.Validate(target); err != nil {
		return nostr.Event{}, err
	}

	content := "-"
	if like {
		content = "+"
	}
	tags := nostr.Tags{
		{"e", target.EventID},
		{"p", target.Author},
	}
	tags = appendNonEmpty(tags, "d", target.WorkID)

	event := nostr.Event{
		CreatedAt: b.stamp(),
		Kind:      nostr.KindReaction,
		Tags:      tags,
		Content:   content,
	}
	return b.sign(event)
}

// ContactList builds a replaceable follow-list event from a full tag
// list and content. Both are carried verbatim: other clients keep relay
// preferences in the content and petnames or relay hints in the extra
// p-tag positions, so an edit must never reduce the list to bare keys.
// Readers deduplicate on fold.
func (b *Builder) ContactList(tags nostr.Tags, content string) (nostr.Event, error) {
	event := nostr.Event{
		CreatedAt: b.stamp(),
		Kind:      nostr.KindContacts,
		Tags:      tags,
		Content:   content,
	}
	return b.sign(event)
}

// CommentInput describes a discussion reply under a review.
type CommentInput struct {
	RootID     string `json:"root_id" validate:"required"`
	RootAuthor string `json:"root_author" validate:"required"`
	Text       string `json:"text" validate:"required"`
}

// Comment builds a discussion comment event.
func (b *Builder) Comment(input CommentInput) (nostr.Event, error) {
	if err := b.validate.Validate(input); err != nil {
		return nostr.Event{}, err
	}

	event := nostr.Event{
		CreatedAt: b.stamp(),
		Kind:      nostr.KindComment,
		Tags: nostr.Tags{
			{"e", input.RootID},
			{"p", input.RootAuthor},
		},
		Content: input.Text,
	}
	return b.sign(event)
}

func (b *Builder) sign(event nostr.Event) (nostr.Event, error) {
	if err := b.signer.Sign(&event); err != nil {
		return nostr.Event{}, err
	}
	return event, nil
}

func appendNonEmpty(tags nostr.Tags, name, value string) nostr.Tags {
	if value == "" {
		return tags
	}
	return tags.Append(name, value)
}
