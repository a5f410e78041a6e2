// Package nostr models the signed domain events the application exchanges
// over relays: shelf items, book metadata, reactions, contact lists, and
// encrypted key-grant direct messages.
package nostr

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Tag is an ordered list of strings. The first element is the tag name,
// the remaining elements are positional values. Events may carry multiple
// tags with the same name.
type Tag []string

// Tags is the ordered tag list of an event.
type Tags []Tag

// Value returns the first value of the first tag with the given name,
// or "" when no such tag exists.
func (t Tags) Value(name string) string {
	for _, tag := range t {
		if len(tag) >= 2 && tag[0] == name {
			return tag[1]
		}
	}
	return ""
}

// Values returns the first value of every tag with the given name,
// in event order.
func (t Tags) Values(name string) []string {
	var out []string
	for _, tag := range t {
		if len(tag) >= 2 && tag[0] == name {
			out = append(out, tag[1])
		}
	}
	return out
}

// Append returns t with a name/value tag appended.
func (t Tags) Append(name string, values ...string) Tags {
	return append(t, append(Tag{name}, values...))
}

// Event is an immutable, signed record. Events are never edited in place;
// a newer event with the same address supersedes an older one by convention.
// CreatedAt is author-supplied and untrusted.
type Event struct {
	ID        string `json:"id"`
	PubKey    string `json:"pubkey"`
	CreatedAt int64  `json:"created_at"`
	Kind      Kind   `json:"kind"`
	Tags      Tags   `json:"tags"`
	Content   string `json:"content"`
	Sig       string `json:"sig"`
}

// WorkID returns the catalog work identifier ("d" tag) of a shelf or
// metadata event, or "" when absent.
func (e Event) WorkID() string {
	return e.Tags.Value("d")
}

// Address identifies the replaceable slot an event occupies: one per
// (author, kind family, "d" tag). Events with equal addresses compete
// under latest-wins, regardless of arrival order.
//
// The zero Address (from a non-replaceable event) is never a valid key.
func (e Event) Address() string {
	fam := kindFamily(e.Kind)
	if fam == familyNone {
		return ""
	}
	return e.PubKey + "\x00" + string(fam) + "\x00" + e.Tags.Value("d")
}

// Supersedes reports whether e wins the replaceable slot against old.
// Strictly greater timestamps win; equal timestamps fall back to the
// lexicographically smaller event id, so any permutation of the same
// event set converges to the same winner.
func (e Event) Supersedes(old Event) bool {
	if e.CreatedAt != old.CreatedAt {
		return e.CreatedAt > old.CreatedAt
	}
	return e.ID < old.ID
}

// ComputeID returns the content-addressed identifier of the event:
// the hex SHA-256 of the canonical serialization
// [0, pubkey, created_at, kind, tags, content].
func (e Event) ComputeID() (string, error) {
	tags := e.Tags
	if tags == nil {
		tags = Tags{}
	}
	canonical, err := json.Marshal([]any{0, e.PubKey, e.CreatedAt, int(e.Kind), tags, e.Content})
	if err != nil {
		return "", fmt.Errorf("serialize event: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

// Finalize fills in the event id if it is empty. Signing is the signer
// collaborator's job; the core never validates signatures.
func (e *Event) Finalize() error {
	if e.ID != "" {
		return nil
	}
	id, err := e.ComputeID()
	if err != nil {
		return err
	}
	e.ID = id
	return nil
}
