// Package keystore owns the user's shelf-encryption key and the keys other
// users have granted, persisted in the local key-value store.
package keystore

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"

	domainerrors "github.com/openbookapp/openbook-sync/internal/errors"
	"github.com/openbookapp/openbook-sync/internal/storage"
)

// Storage keys. The names match the original client's localStorage entries
// so an interoperating implementation can share the vocabulary.
const (
	selfKeyName      = "openbook_shelf_key"
	receivedKeysName = "openbook_received_shelf_keys"
)

// KeyMaterial is a symmetric shelf key in portable JWK form: a 256-bit
// AES-GCM secret. This is the exact shape the grant protocol puts on the
// wire in the "shelfKey" field.
type KeyMaterial struct {
	Kty string `json:"kty"`
	Alg string `json:"alg"`
	K   string `json:"k"`
}

// Bytes decodes the raw 32-byte secret.
func (km KeyMaterial) Bytes() ([]byte, error) {
	if km.Kty != "oct" || km.Alg != "A256GCM" {
		return nil, domainerrors.KeyCorrupt(fmt.Sprintf("unsupported key type %s/%s", km.Kty, km.Alg))
	}
	raw, err := base64.RawURLEncoding.DecodeString(km.K)
	if err != nil {
		return nil, domainerrors.KeyCorrupt("key material is not valid base64url")
	}
	if len(raw) != 32 {
		return nil, domainerrors.KeyCorrupt(fmt.Sprintf("key material is %d bytes, want 32", len(raw)))
	}
	return raw, nil
}

// Generate mints fresh 256-bit key material. Callers normally go through
// GetOrCreateSelfKey; this exists for tests and explicit key rotation.
func Generate() (KeyMaterial, error) {
	return newKeyMaterial()
}

func newKeyMaterial() (KeyMaterial, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return KeyMaterial{}, fmt.Errorf("generate shelf key: %w", err)
	}
	return KeyMaterial{Kty: "oct", Alg: "A256GCM", K: base64.RawURLEncoding.EncodeToString(raw)}, nil
}

// Store persists the self key and the keys received from other users.
type Store struct {
	kv     storage.KV
	logger *slog.Logger
}

// New creates a key store over the given KV.
func New(kv storage.KV, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Store{kv: kv, logger: logger}
}

// GetOrCreateSelfKey returns the user's shelf key, generating and persisting
// a new one on first call. The same material is returned on every subsequent
// call.
//
// A corrupt persisted key is NOT regenerated: silently minting a fresh key
// would orphan everything already encrypted with the old one. The caller
// gets ErrKeyCorrupt and must drive an explicit recovery flow.
func (s *Store) GetOrCreateSelfKey() (KeyMaterial, error) {
	km, found, err := s.SelfKey()
	if err != nil {
		return KeyMaterial{}, err
	}
	if found {
		return km, nil
	}

	km, err = newKeyMaterial()
	if err != nil {
		return KeyMaterial{}, err
	}
	encoded, err := json.Marshal(km)
	if err != nil {
		return KeyMaterial{}, fmt.Errorf("encode shelf key: %w", err)
	}
	if err := s.kv.Set(selfKeyName, string(encoded)); err != nil {
		return KeyMaterial{}, fmt.Errorf("persist shelf key: %w", err)
	}

	s.logger.Info("generated new shelf key")
	return km, nil
}

// SelfKey returns the persisted shelf key without generating one.
// found is false when no key has ever been created. A corrupt persisted key
// returns ErrKeyCorrupt.
func (s *Store) SelfKey() (km KeyMaterial, found bool, err error) {
	raw, err := s.kv.Get(selfKeyName)
	if domainerrors.Is(err, domainerrors.ErrNotFound) {
		return KeyMaterial{}, false, nil
	}
	if err != nil {
		return KeyMaterial{}, false, err
	}

	if err := json.Unmarshal([]byte(raw), &km); err != nil {
		return KeyMaterial{}, false, domainerrors.ErrKeyCorrupt.WithCause(err)
	}
	if _, err := km.Bytes(); err != nil {
		return KeyMaterial{}, false, err
	}
	return km, true, nil
}

// ExportSelfKey returns the persisted shelf key for user-driven backup.
func (s *Store) ExportSelfKey() (KeyMaterial, error) {
	km, found, err := s.SelfKey()
	if err != nil {
		return KeyMaterial{}, err
	}
	if !found {
		return KeyMaterial{}, domainerrors.NotFound("no shelf key to export")
	}
	return km, nil
}

// ImportSelfKey replaces the persisted shelf key with backed-up material.
func (s *Store) ImportSelfKey(km KeyMaterial) error {
	if _, err := km.Bytes(); err != nil {
		return err
	}
	encoded, err := json.Marshal(km)
	if err != nil {
		return fmt.Errorf("encode shelf key: %w", err)
	}
	return s.kv.Set(selfKeyName, string(encoded))
}

// StoreReceivedKey persists the shelf key another user granted us,
// overwriting any previous key from the same owner. Last write wins.
func (s *Store) StoreReceivedKey(owner string, km KeyMaterial) error {
	if _, err := km.Bytes(); err != nil {
		return err
	}

	keys := s.receivedKeys()
	encoded, err := json.Marshal(km)
	if err != nil {
		return fmt.Errorf("encode received key: %w", err)
	}
	keys[owner] = string(encoded)

	all, err := json.Marshal(keys)
	if err != nil {
		return fmt.Errorf("encode received key map: %w", err)
	}
	if err := s.kv.Set(receivedKeysName, string(all)); err != nil {
		return fmt.Errorf("persist received key: %w", err)
	}

	s.logger.Info("stored received shelf key", "owner", owner)
	return nil
}

// ReceivedKey returns the shelf key the given owner granted us.
// A missing or corrupt entry yields found=false; it never errors.
func (s *Store) ReceivedKey(owner string) (KeyMaterial, bool) {
	raw, ok := s.receivedKeys()[owner]
	if !ok {
		return KeyMaterial{}, false
	}

	var km KeyMaterial
	if err := json.Unmarshal([]byte(raw), &km); err != nil {
		s.logger.Warn("received key is corrupt, treating as absent", "owner", owner, "error", err)
		return KeyMaterial{}, false
	}
	if _, err := km.Bytes(); err != nil {
		s.logger.Warn("received key is corrupt, treating as absent", "owner", owner, "error", err)
		return KeyMaterial{}, false
	}
	return km, true
}

// receivedKeys loads the owner → key-JSON map. A missing or corrupt map is
// an empty map, never an error.
func (s *Store) receivedKeys() map[string]string {
	raw, err := s.kv.Get(receivedKeysName)
	if err != nil {
		return map[string]string{}
	}
	keys := map[string]string{}
	if err := json.Unmarshal([]byte(raw), &keys); err != nil {
		s.logger.Warn("received key map is corrupt, starting fresh", "error", err)
		return map[string]string{}
	}
	return keys
}
