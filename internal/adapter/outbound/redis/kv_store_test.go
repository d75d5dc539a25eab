package redis

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reelgate/reelgate/internal/port/outbound"
)

// testStore connects to REELGATE_TEST_REDIS_URL or skips the test.
func testStore(t *testing.T) *KVStore {
	t.Helper()
	url := os.Getenv("REELGATE_TEST_REDIS_URL")
	if url == "" {
		t.Skip("REELGATE_TEST_REDIS_URL not set")
	}
	client, err := NewClient(context.Background(), url)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	// Unique prefix per test keeps runs independent on a shared server.
	return NewKVStore(client, "reelgate-test:"+uuid.NewString()+":")
}

func TestKVStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)

	_, err := s.Get(ctx, "session.credential")
	assert.True(t, errors.Is(err, outbound.ErrKeyNotFound))

	require.NoError(t, s.Set(ctx, "session.credential", "tok"))
	require.NoError(t, s.Set(ctx, "session.expires_at", "2030-01-01T00:00:00Z"))

	v, err := s.Get(ctx, "session.credential")
	require.NoError(t, err)
	assert.Equal(t, "tok", v)

	require.NoError(t, s.Delete(ctx, "session.credential", "session.expires_at", "missing"))
	_, err = s.Get(ctx, "session.expires_at")
	assert.True(t, errors.Is(err, outbound.ErrKeyNotFound))
}

func TestNewKVStore_DefaultPrefix(t *testing.T) {
	s := NewKVStore(nil, "")
	assert.Equal(t, DefaultPrefix, s.prefix)
}

func TestNewClient_BadURL(t *testing.T) {
	_, err := NewClient(context.Background(), "not a url")
	assert.Error(t, err)
}
