// Package memory provides in-memory implementations of outbound ports.
package memory

import (
	"context"
	"sync"

	"github.com/reelgate/reelgate/internal/port/outbound"
)

// KVStore implements outbound.KeyValueStore with an in-memory map.
// Thread-safe for concurrent access. Nothing survives the process, so it is
// meant for tests and for the "memory" storage backend.
type KVStore struct {
	values map[string]string
	mu     sync.RWMutex
}

// NewKVStore creates an empty in-memory key/value store.
func NewKVStore() *KVStore {
	return &KVStore{values: make(map[string]string)}
}

// Get retrieves the value for key.
// Returns outbound.ErrKeyNotFound if the key was never set or was deleted.
func (s *KVStore) Get(ctx context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.values[key]
	if !ok {
		return "", outbound.ErrKeyNotFound
	}
	return v, nil
}

// Set stores value under key.
func (s *KVStore) Set(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.values[key] = value
	return nil
}

// Delete removes the given keys.
func (s *KVStore) Delete(ctx context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, k := range keys {
		delete(s.values, k)
	}
	return nil
}

// Size returns the number of keys currently stored.
func (s *KVStore) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.values)
}

// Compile-time interface verification.
var _ outbound.KeyValueStore = (*KVStore)(nil)
