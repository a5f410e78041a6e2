package reconcile

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openbookapp/openbook-sync/internal/keystore"
	"github.com/openbookapp/openbook-sync/internal/nostr"
	"github.com/openbookapp/openbook-sync/internal/shelfcrypto"
	"github.com/openbookapp/openbook-sync/internal/storage"
)

func publicItem(t *testing.T, author, workID string, createdAt int64, status string, extra ...string) nostr.Event {
	t.Helper()
	tags := nostr.Tags{{"d", workID}, {"status", status}}
	for i := 0; i+1 < len(extra); i += 2 {
		tags = tags.Append(extra[i], extra[i+1])
	}
	ev := nostr.Event{
		PubKey:    author,
		CreatedAt: createdAt,
		Kind:      nostr.KindShelfItem,
		Tags:      tags,
	}
	require.NoError(t, ev.Finalize())
	return ev
}

func privateItem(t *testing.T, author, workID string, createdAt int64, km keystore.KeyMaterial, item shelfcrypto.PrivateItem) nostr.Event {
	t.Helper()
	blob, err := shelfcrypto.EncryptItem(item, km)
	require.NoError(t, err)
	ev := nostr.Event{
		PubKey:    author,
		CreatedAt: createdAt,
		Kind:      nostr.KindShelfItemPrivate,
		Tags:      nostr.Tags{{"d", workID}, {"status", "read"}},
		Content:   blob,
	}
	require.NoError(t, ev.Finalize())
	return ev
}

func newTestKeys(t *testing.T) *keystore.Store {
	t.Helper()
	return keystore.New(storage.NewMemory(), nil)
}

func TestShelfFolder_LatestWinsUnderAnyPermutation(t *testing.T) {
	events := []nostr.Event{
		publicItem(t, "alice", "OL1W", 100, "want-to-read"),
		publicItem(t, "alice", "OL1W", 200, "reading"),
		publicItem(t, "alice", "OL1W", 300, "read", "rating", "4"),
	}

	permutations := [][]int{
		{0, 1, 2}, {0, 2, 1}, {1, 0, 2}, {1, 2, 0}, {2, 0, 1}, {2, 1, 0},
	}
	for _, perm := range permutations {
		folder := NewShelfFolder("alice", newTestKeys(t), nil)
		for _, i := range perm {
			folder.Fold(events[i])
		}

		items := folder.Items()
		require.Len(t, items, 1, "permutation %v", perm)
		assert.Equal(t, StatusRead, items[0].Status)
		assert.Equal(t, 4, items[0].Rating)
		assert.Equal(t, int64(300), items[0].CreatedAt)
	}
}

func TestShelfFolder_OutOfOrderOlderEventDropped(t *testing.T) {
	folder := NewShelfFolder("u", newTestKeys(t), nil)

	folder.Fold(publicItem(t, "u", "W1", 200, "read", "rating", "4"))
	folder.Fold(publicItem(t, "u", "W1", 100, "reading"))

	items := folder.Items()
	require.Len(t, items, 1)
	assert.Equal(t, StatusRead, items[0].Status)
	assert.Equal(t, 4, items[0].Rating)
}

func TestShelfFolder_RedeliveryIsNoOp(t *testing.T) {
	folder := NewShelfFolder("alice", newTestKeys(t), nil)
	ev := publicItem(t, "alice", "OL1W", 100, "reading")

	folder.Fold(ev)
	before := folder.Items()
	folder.Fold(ev)
	after := folder.Items()

	assert.Equal(t, before, after)
}

func TestShelfFolder_EqualTimestampTieBreakIsDeterministic(t *testing.T) {
	a := publicItem(t, "alice", "OL1W", 100, "reading", "title", "a")
	b := publicItem(t, "alice", "OL1W", 100, "read", "title", "b")
	winner := a
	if b.ID < a.ID {
		winner = b
	}

	forward := NewShelfFolder("alice", newTestKeys(t), nil)
	forward.Fold(a)
	forward.Fold(b)
	reverse := NewShelfFolder("alice", newTestKeys(t), nil)
	reverse.Fold(b)
	reverse.Fold(a)

	require.Len(t, forward.Items(), 1)
	assert.Equal(t, winner.ID, forward.Items()[0].EventID)
	assert.Equal(t, forward.Items(), reverse.Items())
}

func TestShelfFolder_UnknownStatusExcludedFromBuckets(t *testing.T) {
	folder := NewShelfFolder("alice", newTestKeys(t), nil)
	folder.Fold(publicItem(t, "alice", "OL1W", 100, "abandoned"))
	folder.Fold(publicItem(t, "alice", "OL2W", 100, "reading"))

	buckets := folder.Buckets()
	assert.Empty(t, buckets[StatusWantToRead])
	assert.Empty(t, buckets[StatusRead])
	require.Len(t, buckets[StatusReading], 1)
	assert.Equal(t, "OL2W", buckets[StatusReading][0].WorkID)
}

func TestShelfFolder_OwnPrivateItemDecrypts(t *testing.T) {
	keys := newTestKeys(t)
	km, err := keys.GetOrCreateSelfKey()
	require.NoError(t, err)

	folder := NewShelfFolder("alice", keys, nil)
	folder.Fold(privateItem(t, "alice", "OL1W", 100, km, shelfcrypto.PrivateItem{Review: "secret take", Rating: 5}))

	items := folder.Items()
	require.Len(t, items, 1)
	assert.True(t, items[0].Private)
	assert.Equal(t, "secret take", items[0].Review)
	assert.Equal(t, 5, items[0].Rating)
}

func TestShelfFolder_PrivateWithoutKeyAbsentButBatchContinues(t *testing.T) {
	bobKey, err := keystore.Generate()
	require.NoError(t, err)

	folder := NewShelfFolder("alice", newTestKeys(t), nil)
	folder.Fold(privateItem(t, "bob", "OL1W", 100, bobKey, shelfcrypto.PrivateItem{Review: "hidden"}))
	folder.Fold(publicItem(t, "bob", "OL2W", 100, "reading"))

	items := folder.Items()
	require.Len(t, items, 1)
	assert.Equal(t, "OL2W", items[0].WorkID)
}

func TestShelfFolder_RetryPendingAfterKeyArrives(t *testing.T) {
	bobKey, err := keystore.Generate()
	require.NoError(t, err)

	keys := newTestKeys(t)
	folder := NewShelfFolder("alice", keys, nil)
	folder.Fold(privateItem(t, "bob", "OL1W", 100, bobKey, shelfcrypto.PrivateItem{Review: "hidden", Rating: 3}))
	require.Empty(t, folder.Items())

	require.NoError(t, keys.StoreReceivedKey("bob", bobKey))
	folder.RetryPending("bob")

	items := folder.Items()
	require.Len(t, items, 1)
	assert.Equal(t, "hidden", items[0].Review)
	assert.Equal(t, 3, items[0].Rating)
}

func TestShelfFolder_UndecryptablePrivateStillDefendsSlot(t *testing.T) {
	bobKey, err := keystore.Generate()
	require.NoError(t, err)

	keys := newTestKeys(t)
	folder := NewShelfFolder("alice", keys, nil)
	// Newer private event arrives first, then an older public one for the
	// same work. Even while undecryptable, the private event holds the
	// slot: the old public item must not resurrect.
	private := privateItem(t, "bob", "OL1W", 200, bobKey, shelfcrypto.PrivateItem{Review: "newer"})
	folder.Fold(private)
	folder.Fold(publicItem(t, "bob", "OL1W", 100, "reading"))
	assert.Empty(t, folder.Items())

	require.NoError(t, keys.StoreReceivedKey("bob", bobKey))
	folder.RetryPending("bob")
	items := folder.Items()
	require.Len(t, items, 1)
	assert.Equal(t, "newer", items[0].Review)
}

func TestShelfFolder_CorruptCiphertextExcludedSilently(t *testing.T) {
	keys := newTestKeys(t)
	_, err := keys.GetOrCreateSelfKey()
	require.NoError(t, err)

	folder := NewShelfFolder("alice", keys, nil)
	ev := nostr.Event{
		PubKey:    "alice",
		CreatedAt: 100,
		Kind:      nostr.KindShelfItemPrivate,
		Tags:      nostr.Tags{{"d", "OL1W"}, {"status", "read"}},
		Content:   "not a real blob",
	}
	require.NoError(t, ev.Finalize())
	folder.Fold(ev)
	folder.Fold(publicItem(t, "alice", "OL2W", 100, "reading"))

	items := folder.Items()
	require.Len(t, items, 1)
	assert.Equal(t, "OL2W", items[0].WorkID)
}

func TestShelfFolder_NewestFirstAcrossWorks(t *testing.T) {
	folder := NewShelfFolder("alice", newTestKeys(t), nil)
	for i := 1; i <= 4; i++ {
		folder.Fold(publicItem(t, "alice", "W"+strconv.Itoa(i), int64(i*100), "reading"))
	}

	items := folder.Items()
	require.Len(t, items, 4)
	for i := 1; i < len(items); i++ {
		assert.GreaterOrEqual(t, items[i-1].CreatedAt, items[i].CreatedAt)
	}
}

func TestShelfFolder_ClosedFolderIgnoresLateFolds(t *testing.T) {
	folder := NewShelfFolder("alice", newTestKeys(t), nil)
	folder.Fold(publicItem(t, "alice", "OL1W", 100, "reading"))
	folder.close()

	folder.Fold(publicItem(t, "alice", "OL2W", 200, "read"))
	folder.RetryPending("bob")

	require.Len(t, folder.Items(), 1)
}
