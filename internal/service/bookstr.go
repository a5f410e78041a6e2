package service

import (
	"context"
	"log/slog"
	"strconv"
	"strings"

	"github.com/openbookapp/openbook-sync/internal/builder"
	domainerrors "github.com/openbookapp/openbook-sync/internal/errors"
	"github.com/openbookapp/openbook-sync/internal/nostr"
	"github.com/openbookapp/openbook-sync/internal/relay"
	"github.com/openbookapp/openbook-sync/internal/signer"
)

// Foreign event kinds published by bookstr clients.
const (
	kindBookstrReview     nostr.Kind = 31985
	kindBookstrRead       nostr.Kind = 10073
	kindBookstrReading    nostr.Kind = 10074
	kindBookstrWantToRead nostr.Kind = 10075
)

// CatalogResolver maps an ISBN to a catalog work id. The production
// implementation queries Open Library; tests stub it.
type CatalogResolver interface {
	WorkIDForISBN(ctx context.Context, isbn string) (string, error)
}

// ImportResult summarizes one import run.
type ImportResult struct {
	Found    int
	Imported int
	Skipped  int
}

// ImportService translates a user's bookstr shelves into shelf-item
// events, merging in their bookstr reviews where present.
type ImportService struct {
	signer    signer.Signer
	builder   *builder.Builder
	transport relay.Transport
	resolver  CatalogResolver
	logger    *slog.Logger
}

// NewImportService creates a new import service.
func NewImportService(sgn signer.Signer, b *builder.Builder, transport relay.Transport, resolver CatalogResolver, logger *slog.Logger) *ImportService {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &ImportService{signer: sgn, builder: b, transport: transport, resolver: resolver, logger: logger}
}

// ImportBookstr fetches the user's bookstr shelf events, resolves each
// ISBN to a work id, and republishes the books as shelf items. Books
// whose ISBN cannot be resolved are skipped, not fatal.
func (s *ImportService) ImportBookstr(ctx context.Context) (ImportResult, error) {
	self := s.signer.PublicKey()

	shelves, err := s.transport.FetchMany(ctx, nostr.Filter{
		Kinds:   []nostr.Kind{kindBookstrRead, kindBookstrReading, kindBookstrWantToRead},
		Authors: []string{self},
	})
	if err != nil {
		return ImportResult{}, domainerrors.Wrap(err, domainerrors.CodeTransport, "failed to fetch bookstr shelves")
	}

	result := ImportResult{Found: len(shelves)}
	if len(shelves) == 0 {
		return result, nil
	}

	reviews, err := s.fetchReviews(ctx, self, shelves)
	if err != nil {
		return ImportResult{}, err
	}

	for _, shelf := range shelves {
		isbn := bookstrISBN(shelf)
		if isbn == "" {
			result.Skipped++
			continue
		}

		workID, err := s.resolver.WorkIDForISBN(ctx, isbn)
		if err != nil || workID == "" {
			s.logger.Warn("skipping bookstr book without a resolvable work id", "isbn", isbn, "error", err)
			result.Skipped++
			continue
		}

		input := builder.ShelfItemInput{
			WorkID: workID,
			Status: bookstrStatus(shelf.Kind),
		}
		if review, ok := reviews[isbn]; ok {
			input.Review = review.Content
			if input.Status == "read" {
				if rating, err := strconv.Atoi(review.Tags.Value("rating")); err == nil && rating >= 1 && rating <= 5 {
					input.Rating = rating
				}
			}
		}

		event, err := s.builder.ShelfItem(input)
		if err != nil {
			s.logger.Warn("skipping unimportable bookstr book", "isbn", isbn, "error", err)
			result.Skipped++
			continue
		}
		if err := s.transport.Publish(ctx, event); err != nil {
			return result, domainerrors.Wrapf(err, domainerrors.CodeTransport,
				"failed to publish imported item for %s", workID)
		}
		result.Imported++
	}

	s.logger.Info("bookstr import finished",
		"found", result.Found,
		"imported", result.Imported,
		"skipped", result.Skipped,
	)
	return result, nil
}

// fetchReviews loads the user's bookstr reviews for the shelved ISBNs,
// keyed by bare ISBN.
func (s *ImportService) fetchReviews(ctx context.Context, self string, shelves []nostr.Event) (map[string]nostr.Event, error) {
	var dTags []string
	for _, shelf := range shelves {
		if isbn := bookstrISBN(shelf); isbn != "" {
			dTags = append(dTags, "isbn:"+isbn)
		}
	}
	if len(dTags) == 0 {
		return nil, nil
	}

	events, err := s.transport.FetchMany(ctx, nostr.Filter{
		Kinds:   []nostr.Kind{kindBookstrReview},
		Authors: []string{self},
		Tags:    map[string][]string{"d": dTags},
	})
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeTransport, "failed to fetch bookstr reviews")
	}

	reviews := make(map[string]nostr.Event, len(events))
	for _, e := range events {
		isbn := strings.TrimPrefix(e.Tags.Value("d"), "isbn:")
		if isbn == "" {
			continue
		}
		if cur, ok := reviews[isbn]; !ok || e.Supersedes(cur) {
			reviews[isbn] = e
		}
	}
	return reviews, nil
}

// bookstrISBN extracts the bare ISBN from a shelf event, preferring the
// "i" tag over "d".
func bookstrISBN(e nostr.Event) string {
	isbn := strings.TrimPrefix(e.Tags.Value("i"), "isbn:")
	if isbn == "" {
		isbn = strings.TrimPrefix(e.Tags.Value("d"), "isbn:")
	}
	return isbn
}

func bookstrStatus(kind nostr.Kind) string {
	switch kind {
	case kindBookstrRead:
		return "read"
	case kindBookstrReading:
		return "reading"
	case kindBookstrWantToRead:
		return "want-to-read"
	default:
		return ""
	}
}
