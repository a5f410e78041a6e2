package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openbookapp/openbook-sync/internal/builder"
	domainerrors "github.com/openbookapp/openbook-sync/internal/errors"
	"github.com/openbookapp/openbook-sync/internal/keystore"
	"github.com/openbookapp/openbook-sync/internal/nostr"
	"github.com/openbookapp/openbook-sync/internal/relay"
	"github.com/openbookapp/openbook-sync/internal/shelfcrypto"
	"github.com/openbookapp/openbook-sync/internal/signer/local"
	"github.com/openbookapp/openbook-sync/internal/storage"
)

type fixture struct {
	signer    *local.Signer
	keys      *keystore.Store
	builder   *builder.Builder
	transport *relay.Memory
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	sgn, err := local.Generate()
	require.NoError(t, err)
	keys := keystore.New(storage.NewMemory(), nil)
	return &fixture{
		signer:    sgn,
		keys:      keys,
		builder:   builder.New(sgn, keys),
		transport: relay.NewMemory(relay.Options{}),
	}
}

func TestShelfService_SavePublicItem(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	svc := NewShelfService(f.builder, f.transport, nil)

	event, err := svc.SaveItem(ctx, builder.ShelfItemInput{
		WorkID: "OL1W",
		Status: "reading",
		Review: "so far so good",
	}, false)
	require.NoError(t, err)

	stored, err := f.transport.FetchOne(ctx, nostr.Filter{
		Kinds:   []nostr.Kind{nostr.KindShelfItem},
		Authors: []string{f.signer.PublicKey()},
	})
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, event.ID, stored.ID)
	assert.Equal(t, "so far so good", stored.Content)
}

func TestShelfService_SavePrivateItemEncrypts(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	svc := NewShelfService(f.builder, f.transport, nil)

	_, err := svc.SaveItem(ctx, builder.ShelfItemInput{
		WorkID: "OL1W",
		Status: "read",
		Rating: 5,
		Review: "secret opinion",
	}, true)
	require.NoError(t, err)

	stored, err := f.transport.FetchOne(ctx, nostr.Filter{
		Kinds: []nostr.Kind{nostr.KindShelfItemPrivate},
	})
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.NotContains(t, stored.Content, "secret")

	km, _, err := f.keys.SelfKey()
	require.NoError(t, err)
	item, err := shelfcrypto.DecryptItem(stored.Content, km)
	require.NoError(t, err)
	assert.Equal(t, "secret opinion", item.Review)
	assert.Equal(t, 5, item.Rating)
}

func TestShelfService_ValidationErrorNotPublished(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	svc := NewShelfService(f.builder, f.transport, nil)

	_, err := svc.SaveItem(ctx, builder.ShelfItemInput{Status: "reading"}, false)
	require.ErrorIs(t, err, domainerrors.ErrValidation)

	stored, err := f.transport.FetchMany(ctx, nostr.Filter{})
	require.NoError(t, err)
	assert.Empty(t, stored)
}

func TestShelfService_PublishMetadata(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	svc := NewShelfService(f.builder, f.transport, nil)

	_, err := svc.PublishMetadata(ctx, builder.BookMetadataInput{
		WorkID: "OL1W",
		Title:  "Dune",
		Author: "Frank Herbert",
	})
	require.NoError(t, err)

	stored, err := f.transport.FetchOne(ctx, nostr.Filter{Kinds: []nostr.Kind{nostr.KindBookMetadata}})
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "dune", stored.Tags.Value("title"))
}
