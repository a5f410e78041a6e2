// Package signer defines the identity collaborator the sync core consumes.
// In the browser this is a NIP-07 extension; locally it is the file-backed
// implementation in the local sub-package.
package signer

import "github.com/openbookapp/openbook-sync/internal/nostr"

// Signer provides the user's identity, event signing, and the asymmetric
// encryption primitive used by the key-grant protocol.
//
// EncryptFor and DecryptFrom return a SIGNER_CAPABILITY domain error when
// the underlying signer does not support the primitive; callers must abort
// the whole operation before publishing anything.
type Signer interface {
	// PublicKey returns the user's public identity (hex).
	PublicKey() string
	// Sign finalizes and signs an event authored by this identity.
	Sign(event *nostr.Event) error
	// EncryptFor encrypts plaintext so only peer can read it.
	EncryptFor(peer string, plaintext string) (string, error)
	// DecryptFrom decrypts ciphertext sent to us by peer.
	DecryptFrom(peer string, ciphertext string) (string, error)
}
