package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openbookapp/openbook-sync/internal/nostr"
)

type stubResolver struct {
	works map[string]string
}

func (r stubResolver) WorkIDForISBN(_ context.Context, isbn string) (string, error) {
	return r.works[isbn], nil
}

func publishForeign(t *testing.T, f *fixture, kind nostr.Kind, tags nostr.Tags, content string) {
	t.Helper()
	ev := nostr.Event{
		CreatedAt: 1700000000,
		Kind:      kind,
		Tags:      tags,
		Content:   content,
	}
	require.NoError(t, f.signer.Sign(&ev))
	require.NoError(t, f.transport.Publish(context.Background(), ev))
}

func TestImportBookstr_TranslatesShelvesAndReviews(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	publishForeign(t, f, 10073, nostr.Tags{{"i", "isbn:111"}}, "")
	publishForeign(t, f, 10074, nostr.Tags{{"d", "222"}}, "")
	publishForeign(t, f, 10075, nostr.Tags{{"i", "isbn:333"}}, "")
	publishForeign(t, f, 31985, nostr.Tags{{"d", "isbn:111"}, {"rating", "4"}}, "a fine book")

	resolver := stubResolver{works: map[string]string{
		"111": "OL111W",
		"222": "OL222W",
		"333": "OL333W",
	}}
	svc := NewImportService(f.signer, f.builder, f.transport, resolver, nil)

	result, err := svc.ImportBookstr(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Found)
	assert.Equal(t, 3, result.Imported)
	assert.Zero(t, result.Skipped)

	items, err := f.transport.FetchMany(ctx, nostr.Filter{Kinds: []nostr.Kind{nostr.KindShelfItem}})
	require.NoError(t, err)
	require.Len(t, items, 3)

	byWork := make(map[string]nostr.Event)
	for _, e := range items {
		byWork[e.WorkID()] = e
	}

	read := byWork["OL111W"]
	assert.Equal(t, "read", read.Tags.Value("status"))
	assert.Equal(t, "4", read.Tags.Value("rating"))
	assert.Equal(t, "a fine book", read.Content)

	assert.Equal(t, "reading", byWork["OL222W"].Tags.Value("status"))
	assert.Equal(t, "want-to-read", byWork["OL333W"].Tags.Value("status"))
}

func TestImportBookstr_UnresolvableISBNSkipped(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	publishForeign(t, f, 10073, nostr.Tags{{"i", "isbn:111"}}, "")
	publishForeign(t, f, 10073, nostr.Tags{{"i", "isbn:999"}}, "")

	resolver := stubResolver{works: map[string]string{"111": "OL111W"}}
	svc := NewImportService(f.signer, f.builder, f.transport, resolver, nil)

	result, err := svc.ImportBookstr(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Found)
	assert.Equal(t, 1, result.Imported)
	assert.Equal(t, 1, result.Skipped)
}

func TestImportBookstr_EmptyShelves(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	svc := NewImportService(f.signer, f.builder, f.transport, stubResolver{}, nil)

	result, err := svc.ImportBookstr(ctx)
	require.NoError(t, err)
	assert.Zero(t, result.Found)
}
