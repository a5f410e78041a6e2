package storage

import (
	"sync"

	domainerrors "github.com/openbookapp/openbook-sync/internal/errors"
)

// Memory is an in-process KV for tests.
type Memory struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemory creates an empty in-memory KV.
func NewMemory() *Memory {
	return &Memory{values: make(map[string]string)}
}

// Get retrieves a value by key.
func (m *Memory) Get(key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	if !ok {
		return "", domainerrors.NotFoundf("key %q not set", key)
	}
	return v, nil
}

// Set stores a value by key.
func (m *Memory) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

// Delete removes a key.
func (m *Memory) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}
