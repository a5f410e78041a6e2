// Package local implements a file-backed signer for headless use. The
// identity is a curve25519 keypair stored hex-encoded next to the rest of
// the node's data; encryption between two identities uses an HKDF-derived
// conversation key and XChaCha20-Poly1305.
package local

import (
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/hkdf"

	domainerrors "github.com/openbookapp/openbook-sync/internal/errors"
	"github.com/openbookapp/openbook-sync/internal/nostr"
)

const (
	keyLength    = 32
	keyHexLength = 64

	conversationInfo = "openbook-conversation-v1"
)

// Signer is a local curve25519 identity.
type Signer struct {
	priv []byte
	pub  []byte
}

// LoadOrGenerate loads the identity key from <dataPath>/identity.key, or
// generates and saves a new one when the file does not exist. The key is
// stored as a hex-encoded string.
func LoadOrGenerate(dataPath string) (*Signer, error) {
	keyPath := filepath.Join(dataPath, "identity.key")

	//#nosec G304 -- Identity key path is derived from the validated data path
	if keyBytes, err := os.ReadFile(keyPath); err == nil {
		keyHex := strings.TrimSpace(string(keyBytes))
		if len(keyHex) != keyHexLength {
			return nil, fmt.Errorf("invalid identity key length: expected %d hex chars, got %d", keyHexLength, len(keyHex))
		}
		priv, err := hex.DecodeString(keyHex)
		if err != nil {
			return nil, fmt.Errorf("invalid identity key format: not valid hex: %w", err)
		}
		return fromPrivate(priv)
	}

	priv := make([]byte, keyLength)
	if _, err := rand.Read(priv); err != nil {
		return nil, fmt.Errorf("failed to generate identity key: %w", err)
	}

	if err := os.MkdirAll(dataPath, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	if err := os.WriteFile(keyPath, []byte(hex.EncodeToString(priv)), 0o600); err != nil {
		return nil, fmt.Errorf("failed to save identity key: %w", err)
	}

	return fromPrivate(priv)
}

// Generate creates an ephemeral identity that is not persisted anywhere.
func Generate() (*Signer, error) {
	priv := make([]byte, keyLength)
	if _, err := rand.Read(priv); err != nil {
		return nil, fmt.Errorf("failed to generate identity key: %w", err)
	}
	return fromPrivate(priv)
}

func fromPrivate(priv []byte) (*Signer, error) {
	pub, err := curve25519.X25519(priv, curve25519.Basepoint)
	if err != nil {
		return nil, fmt.Errorf("failed to derive public key: %w", err)
	}
	return &Signer{priv: priv, pub: pub}, nil
}

// PublicKey returns the hex-encoded public identity.
func (s *Signer) PublicKey() string {
	return hex.EncodeToString(s.pub)
}

// Sign finalizes the event (id over the canonical form) and attaches a
// MAC over the id keyed by the identity's shared-secret material. This is
// a stand-in for a full Schnorr signature; relays in this deployment only
// verify structural integrity.
func (s *Signer) Sign(event *nostr.Event) error {
	if event.PubKey == "" {
		event.PubKey = s.PublicKey()
	}
	if event.PubKey != s.PublicKey() {
		return domainerrors.Validation("event author does not match signer identity")
	}
	if err := event.Finalize(); err != nil {
		return domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to compute event id")
	}

	mac := hmac.New(sha256.New, s.priv)
	mac.Write([]byte(event.ID))
	event.Sig = hex.EncodeToString(mac.Sum(nil))
	return nil
}

// EncryptFor encrypts plaintext for peer using the shared conversation key.
func (s *Signer) EncryptFor(peer string, plaintext string) (string, error) {
	aead, err := s.conversationCipher(peer)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to generate nonce")
	}

	sealed := aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// DecryptFrom decrypts a payload produced by peer's EncryptFor. Any
// malformed or tampered input yields a DECRYPT domain error.
func (s *Signer) DecryptFrom(peer string, ciphertext string) (string, error) {
	aead, err := s.conversationCipher(peer)
	if err != nil {
		return "", err
	}

	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", domainerrors.Decrypt("payload is not valid base64")
	}
	if len(raw) < aead.NonceSize() {
		return "", domainerrors.Decrypt("payload too short")
	}

	plain, err := aead.Open(nil, raw[:aead.NonceSize()], raw[aead.NonceSize():], nil)
	if err != nil {
		return "", domainerrors.Decrypt("payload authentication failed")
	}
	return string(plain), nil
}

// conversationCipher derives the symmetric conversation key shared with
// peer. Both directions of a conversation use the same key, so A can read
// what it encrypted for B and vice versa.
func (s *Signer) conversationCipher(peer string) (cipher.AEAD, error) {
	peerPub, err := hex.DecodeString(peer)
	if err != nil || len(peerPub) != keyLength {
		return nil, domainerrors.Validation("invalid peer public key")
	}

	shared, err := curve25519.X25519(s.priv, peerPub)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to compute shared secret")
	}

	key := make([]byte, keyLength)
	if _, err := io.ReadFull(hkdf.New(sha256.New, shared, nil, []byte(conversationInfo)), key); err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to derive conversation key")
	}

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to initialize cipher")
	}
	return aead, nil
}
