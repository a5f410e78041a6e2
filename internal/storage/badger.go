package storage

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"

	domainerrors "github.com/openbookapp/openbook-sync/internal/errors"
)

// Badger is a KV backed by a Badger database on disk. It holds the shelf
// keys, received keys, and the grant-listener watermark, so writes are
// synced to disk to survive crashes.
type Badger struct {
	db     *badger.DB
	logger *slog.Logger
}

// OpenBadger opens (or creates) the database at path.
func OpenBadger(path string, logger *slog.Logger) (*Badger, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil      // Disable Badger's internal logging
	opts.SyncWrites = true // Key material must survive a crash
	opts.CompactL0OnClose = true

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db: %w", err)
	}

	if logger != nil {
		logger.Info("local store opened", "path", path)
	}
	return &Badger{db: db, logger: logger}, nil
}

// Close gracefully closes the database.
func (b *Badger) Close() error {
	if b.logger != nil {
		b.logger.Info("closing local store")
	}
	return b.db.Close()
}

// Get retrieves a value by key.
func (b *Badger) Get(key string) (string, error) {
	var value string
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			value = string(val)
			return nil
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return "", domainerrors.NotFoundf("key %q not set", key)
	}
	if err != nil {
		return "", fmt.Errorf("get %q: %w", key, err)
	}
	return value, nil
}

// Set stores a value by key.
func (b *Badger) Set(key, value string) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), []byte(value))
	})
	if err != nil {
		return fmt.Errorf("set %q: %w", key, err)
	}
	return nil
}

// Delete removes a key. Deleting a missing key is not an error.
func (b *Badger) Delete(key string) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
	if err != nil {
		return fmt.Errorf("delete %q: %w", key, err)
	}
	return nil
}
