package outbound

import (
	"context"
	"errors"
)

// ErrKeyNotFound is returned by KeyValueStore.Get when the key is not stored.
var ErrKeyNotFound = errors.New("key not found")

// KeyValueStore is the outbound port for the client's durable local state.
// Session and verification clearance each persist under their own keys, so
// adapters only need flat string values.
type KeyValueStore interface {
	// Get returns the value stored under key, or ErrKeyNotFound.
	Get(ctx context.Context, key string) (string, error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key, value string) error

	// Delete removes the given keys. Missing keys are not an error.
	Delete(ctx context.Context, keys ...string) error
}
