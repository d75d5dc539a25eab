package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reelgate/reelgate/internal/port/outbound"
)

func TestKVStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, ":memory:")
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Get(ctx, "verification.cleared_at")
	assert.True(t, errors.Is(err, outbound.ErrKeyNotFound))

	require.NoError(t, s.Set(ctx, "verification.cleared_at", "t1"))
	require.NoError(t, s.Set(ctx, "verification.cleared_at", "t2"))

	v, err := s.Get(ctx, "verification.cleared_at")
	require.NoError(t, err)
	assert.Equal(t, "t2", v)

	require.NoError(t, s.Delete(ctx, "verification.cleared_at", "missing"))
	_, err = s.Get(ctx, "verification.cleared_at")
	assert.True(t, errors.Is(err, outbound.ErrKeyNotFound))
}

func TestKVStore_PersistsAcrossOpen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state.db")

	s, err := Open(ctx, path)
	require.NoError(t, err)
	require.NoError(t, s.Set(ctx, "session.credential", "tok"))
	require.NoError(t, s.Close())

	reopened, err := Open(ctx, path)
	require.NoError(t, err)
	defer reopened.Close()

	v, err := reopened.Get(ctx, "session.credential")
	require.NoError(t, err)
	assert.Equal(t, "tok", v)
}
