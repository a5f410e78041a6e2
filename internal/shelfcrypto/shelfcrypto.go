// Package shelfcrypto encrypts and decrypts private shelf item payloads
// with a symmetric shelf key.
//
// Wire format: base64(nonce || ciphertext) with a 12-byte random nonce,
// AES-256-GCM. This matches what interoperating clients produce with the
// Web Crypto API, so blobs are portable across implementations.
package shelfcrypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"

	domainerrors "github.com/openbookapp/openbook-sync/internal/errors"
	"github.com/openbookapp/openbook-sync/internal/keystore"
)

// nonceSize is fixed by the wire format: the decoder splits the blob at
// this offset.
const nonceSize = 12

// PrivateItem is the plaintext payload of a private shelf item. Everything
// a reader without the key must not see lives here; the rest of the item
// travels as public tags.
type PrivateItem struct {
	Review string `json:"review"`
	Rating int    `json:"rating,omitempty"`
	Cover  string `json:"cover,omitempty"`
}

// Encrypt seals plaintext with the shelf key and returns the encoded blob.
// A fresh nonce is drawn per call; two encryptions of the same plaintext
// never produce the same blob.
func Encrypt(plaintext string, km keystore.KeyMaterial) (string, error) {
	aead, err := newAEAD(km)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return "", domainerrors.Wrap(err, domainerrors.CodeInternal, "generate nonce")
	}

	sealed := aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens an encoded blob with the shelf key. Any failure — malformed
// encoding, truncated blob, wrong key, tampered ciphertext — comes back as
// a decrypt error the caller must treat as "cannot access", not a fault.
func Decrypt(blob string, km keystore.KeyMaterial) (string, error) {
	aead, err := newAEAD(km)
	if err != nil {
		return "", err
	}

	raw, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		return "", domainerrors.ErrDecrypt.WithCause(err)
	}
	if len(raw) < nonceSize {
		return "", domainerrors.Decrypt("blob shorter than nonce")
	}

	plaintext, err := aead.Open(nil, raw[:nonceSize], raw[nonceSize:], nil)
	if err != nil {
		return "", domainerrors.ErrDecrypt.WithCause(err)
	}
	return string(plaintext), nil
}

// EncryptItem serializes and seals a private item payload.
func EncryptItem(item PrivateItem, km keystore.KeyMaterial) (string, error) {
	plaintext, err := json.Marshal(item)
	if err != nil {
		return "", domainerrors.Wrap(err, domainerrors.CodeInternal, "encode private item")
	}
	return Encrypt(string(plaintext), km)
}

// DecryptItem opens and parses a private item payload.
func DecryptItem(blob string, km keystore.KeyMaterial) (PrivateItem, error) {
	plaintext, err := Decrypt(blob, km)
	if err != nil {
		return PrivateItem{}, err
	}
	var item PrivateItem
	if err := json.Unmarshal([]byte(plaintext), &item); err != nil {
		return PrivateItem{}, domainerrors.ErrDecrypt.WithCause(err)
	}
	return item, nil
}

func newAEAD(km keystore.KeyMaterial) (cipher.AEAD, error) {
	key, err := km.Bytes()
	if err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "init cipher")
	}
	return cipher.NewGCM(block)
}
