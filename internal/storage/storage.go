// Package storage provides the simple persistent key-value primitives the
// sync core relies on: string get/set scoped to the local data directory,
// no transactions, no expiry.
package storage

import domainerrors "github.com/openbookapp/openbook-sync/internal/errors"

// KV is a minimal string key-value store. Get returns ErrNotFound for a
// missing key; callers that treat absence as a normal state should check
// with errors.Is.
type KV interface {
	Get(key string) (string, error)
	Set(key, value string) error
	Delete(key string) error
}

// ErrNotFound is returned by Get when the key has never been set.
var ErrNotFound = domainerrors.ErrNotFound
