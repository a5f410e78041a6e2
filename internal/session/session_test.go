package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openbookapp/openbook-sync/internal/builder"
	"github.com/openbookapp/openbook-sync/internal/relay"
	"github.com/openbookapp/openbook-sync/internal/signer/local"
	"github.com/openbookapp/openbook-sync/internal/storage"
)

func openTestSession(t *testing.T, ctx context.Context, transport *relay.Memory) *Session {
	t.Helper()
	sgn, err := local.Generate()
	require.NoError(t, err)

	s, err := Open(ctx, Options{
		Signer:    sgn,
		Transport: transport,
		KV:        storage.NewMemory(),
	})
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

// The full path: a private item is invisible to another user until the
// owner grants their shelf key, then becomes readable without refetching.
func TestPrivateShelfSharingEndToEnd(t *testing.T) {
	ctx := context.Background()
	transport := relay.NewMemory(relay.Options{})

	alice := openTestSession(t, ctx, transport)
	bob := openTestSession(t, ctx, transport)

	_, err := alice.Shelf.SaveItem(ctx, builder.ShelfItemInput{
		WorkID: "OL1W",
		Status: "read",
		Rating: 5,
		Review: "for trusted eyes only",
	}, true)
	require.NoError(t, err)

	watch, err := bob.Reconciler.WatchShelf(ctx, alice.Identity())
	require.NoError(t, err)
	defer watch.Stop()

	require.Eventually(t, watch.Folder.Complete, 2*time.Second, 5*time.Millisecond)
	assert.Zero(t, watch.Folder.Len(), "ungranted private item must stay invisible")

	require.NoError(t, alice.Grants.SendGrant(ctx, bob.Identity()))

	require.Eventually(t, func() bool { return watch.Folder.Len() == 1 }, 2*time.Second, 5*time.Millisecond)
	item := watch.Folder.Items()[0]
	assert.Equal(t, "for trusted eyes only", item.Review)
	assert.Equal(t, 5, item.Rating)
	assert.True(t, item.Private)
}

func TestSession_OwnShelfRoundTrip(t *testing.T) {
	ctx := context.Background()
	transport := relay.NewMemory(relay.Options{})
	alice := openTestSession(t, ctx, transport)

	_, err := alice.Shelf.SaveItem(ctx, builder.ShelfItemInput{
		WorkID: "OL1W",
		Status: "reading",
	}, false)
	require.NoError(t, err)

	watch, err := alice.Reconciler.WatchShelf(ctx, alice.Identity())
	require.NoError(t, err)
	defer watch.Stop()

	require.Eventually(t, func() bool { return watch.Folder.Len() == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, "OL1W", watch.Folder.Items()[0].WorkID)
}

func TestSession_WatchFeedUsesConfiguredLimit(t *testing.T) {
	ctx := context.Background()
	transport := relay.NewMemory(relay.Options{})
	sgn, err := local.Generate()
	require.NoError(t, err)

	alice, err := Open(ctx, Options{
		Signer:    sgn,
		Transport: transport,
		KV:        storage.NewMemory(),
		FeedLimit: 2,
	})
	require.NoError(t, err)
	t.Cleanup(alice.Close)

	for _, workID := range []string{"OL1W", "OL2W", "OL3W"} {
		_, err := alice.Shelf.SaveItem(ctx, builder.ShelfItemInput{
			WorkID: workID,
			Status: "reading",
		}, false)
		require.NoError(t, err)
	}

	watch, err := alice.WatchFeed(ctx)
	require.NoError(t, err)
	defer watch.Stop()

	require.Eventually(t, watch.Folder.Complete, 2*time.Second, 5*time.Millisecond)
	items := watch.Folder.Items()
	require.Len(t, items, 2, "feed holds only the newest entries")
	assert.Equal(t, "OL3W", items[0].WorkID)
	assert.Equal(t, "OL2W", items[1].WorkID)
}

func TestSession_CloseStopsListener(t *testing.T) {
	ctx := context.Background()
	transport := relay.NewMemory(relay.Options{})

	alice := openTestSession(t, ctx, transport)
	bob := openTestSession(t, ctx, transport)
	bob.Close()

	// A grant sent after Bob signs out is not picked up.
	require.NoError(t, alice.Grants.SendGrant(ctx, bob.Identity()))
	time.Sleep(100 * time.Millisecond)

	_, ok := bob.Keys.ReceivedKey(alice.Identity())
	assert.False(t, ok)
}
