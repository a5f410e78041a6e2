package shelfcrypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainerrors "github.com/openbookapp/openbook-sync/internal/errors"
	"github.com/openbookapp/openbook-sync/internal/keystore"
)

func genKey(t *testing.T) keystore.KeyMaterial {
	t.Helper()
	km, err := keystore.Generate()
	require.NoError(t, err)
	return km
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	key := genKey(t)

	for _, plaintext := range []string{
		"",
		"a",
		"an ordinary review",
		`{"review":"loved it","rating":5}`,
		"unicode: crème brûlée 📚",
	} {
		blob, err := Encrypt(plaintext, key)
		require.NoError(t, err)

		got, err := Decrypt(blob, key)
		require.NoError(t, err)
		assert.Equal(t, plaintext, got)
	}
}

func TestDecryptWithWrongKeyFails(t *testing.T) {
	k1 := genKey(t)
	k2 := genKey(t)

	blob, err := Encrypt("secret", k1)
	require.NoError(t, err)

	_, err = Decrypt(blob, k2)
	assert.True(t, domainerrors.Is(err, domainerrors.ErrDecrypt))
}

func TestEncryptNeverReusesNonce(t *testing.T) {
	key := genKey(t)

	blob1, err := Encrypt("same plaintext", key)
	require.NoError(t, err)
	blob2, err := Encrypt("same plaintext", key)
	require.NoError(t, err)

	assert.NotEqual(t, blob1, blob2)
}

func TestDecryptMalformedBlob(t *testing.T) {
	key := genKey(t)

	for _, blob := range []string{"", "not base64!!!", "YWJj", "YQ=="} {
		_, err := Decrypt(blob, key)
		assert.True(t, domainerrors.Is(err, domainerrors.ErrDecrypt), "blob %q", blob)
	}
}

func TestDecryptTamperedCiphertext(t *testing.T) {
	key := genKey(t)

	blob, err := Encrypt("intact", key)
	require.NoError(t, err)

	tampered := []byte(blob)
	tampered[len(tampered)-5] ^= 'x'
	_, err = Decrypt(string(tampered), key)
	assert.Error(t, err)
}

func TestItemRoundTrip(t *testing.T) {
	key := genKey(t)

	item := PrivateItem{Review: "quiet masterpiece", Rating: 5, Cover: "https://covers.example/1-L.jpg"}
	blob, err := EncryptItem(item, key)
	require.NoError(t, err)

	got, err := DecryptItem(blob, key)
	require.NoError(t, err)
	assert.Equal(t, item, got)
}

func TestDecryptItemRejectsNonJSONPlaintext(t *testing.T) {
	key := genKey(t)

	blob, err := Encrypt("not json", key)
	require.NoError(t, err)

	_, err = DecryptItem(blob, key)
	assert.True(t, domainerrors.Is(err, domainerrors.ErrDecrypt))
}
