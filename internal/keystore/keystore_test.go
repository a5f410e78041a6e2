package keystore

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainerrors "github.com/openbookapp/openbook-sync/internal/errors"
	"github.com/openbookapp/openbook-sync/internal/logger"
	"github.com/openbookapp/openbook-sync/internal/storage"
)

func setupStore(t *testing.T) (*Store, *storage.Memory) {
	t.Helper()
	kv := storage.NewMemory()
	return New(kv, logger.Discard().Logger), kv
}

func TestGetOrCreateSelfKeyIsStable(t *testing.T) {
	s, _ := setupStore(t)

	first, err := s.GetOrCreateSelfKey()
	require.NoError(t, err)
	assert.Equal(t, "oct", first.Kty)
	assert.Equal(t, "A256GCM", first.Alg)

	raw, err := first.Bytes()
	require.NoError(t, err)
	assert.Len(t, raw, 32)

	second, err := s.GetOrCreateSelfKey()
	require.NoError(t, err)
	assert.Equal(t, first, second, "same persisted material on every call")
}

func TestSelfKeyAbsentWithoutCreate(t *testing.T) {
	s, _ := setupStore(t)

	_, found, err := s.SelfKey()
	require.NoError(t, err)
	assert.False(t, found)
}

func TestCorruptSelfKeyIsNotRegenerated(t *testing.T) {
	s, kv := setupStore(t)

	require.NoError(t, kv.Set("openbook_shelf_key", "{not json"))

	_, _, err := s.SelfKey()
	assert.True(t, domainerrors.Is(err, domainerrors.ErrKeyCorrupt))

	// GetOrCreateSelfKey must surface the corruption, not mint a new key.
	_, err = s.GetOrCreateSelfKey()
	assert.True(t, domainerrors.Is(err, domainerrors.ErrKeyCorrupt))

	stored, err := kv.Get("openbook_shelf_key")
	require.NoError(t, err)
	assert.Equal(t, "{not json", stored, "corrupt material left untouched for recovery")
}

func TestReceivedKeyRoundTrip(t *testing.T) {
	s, _ := setupStore(t)

	km, err := newKeyMaterial()
	require.NoError(t, err)

	_, found := s.ReceivedKey("alice")
	assert.False(t, found)

	require.NoError(t, s.StoreReceivedKey("alice", km))
	got, found := s.ReceivedKey("alice")
	require.True(t, found)
	assert.Equal(t, km, got)

	// Overwrite: last write wins.
	km2, err := newKeyMaterial()
	require.NoError(t, err)
	require.NoError(t, s.StoreReceivedKey("alice", km2))
	got, found = s.ReceivedKey("alice")
	require.True(t, found)
	assert.Equal(t, km2, got)
}

func TestReceivedKeysAreIndependentPerOwner(t *testing.T) {
	s, _ := setupStore(t)

	kmA, _ := newKeyMaterial()
	kmB, _ := newKeyMaterial()
	require.NoError(t, s.StoreReceivedKey("alice", kmA))
	require.NoError(t, s.StoreReceivedKey("bob", kmB))

	gotA, _ := s.ReceivedKey("alice")
	gotB, _ := s.ReceivedKey("bob")
	assert.Equal(t, kmA, gotA)
	assert.Equal(t, kmB, gotB)
}

func TestCorruptReceivedKeyTreatedAsAbsent(t *testing.T) {
	s, kv := setupStore(t)

	require.NoError(t, kv.Set("openbook_received_shelf_keys", `{"alice":"{broken"}`))
	_, found := s.ReceivedKey("alice")
	assert.False(t, found)
}

func TestStoreReceivedKeyRejectsBadMaterial(t *testing.T) {
	s, _ := setupStore(t)

	short := KeyMaterial{Kty: "oct", Alg: "A256GCM", K: base64.RawURLEncoding.EncodeToString([]byte("short"))}
	err := s.StoreReceivedKey("alice", short)
	assert.True(t, domainerrors.Is(err, domainerrors.ErrKeyCorrupt))
}

func TestExportImportSelfKey(t *testing.T) {
	s, _ := setupStore(t)

	_, err := s.ExportSelfKey()
	assert.True(t, domainerrors.Is(err, domainerrors.ErrNotFound))

	km, err := s.GetOrCreateSelfKey()
	require.NoError(t, err)

	exported, err := s.ExportSelfKey()
	require.NoError(t, err)
	assert.Equal(t, km, exported)

	// Import into a fresh store restores the same material.
	other, _ := setupStore(t)
	require.NoError(t, other.ImportSelfKey(exported))
	restored, err := other.GetOrCreateSelfKey()
	require.NoError(t, err)
	assert.Equal(t, km, restored)
}
