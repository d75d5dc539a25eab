package verification

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reelgate/reelgate/internal/adapter/outbound/memory"
	"github.com/reelgate/reelgate/internal/domain/session"
	"github.com/reelgate/reelgate/internal/port/outbound"
)

func TestNewClearance_FixedLifetime(t *testing.T) {
	now := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	c := NewClearance(now)

	assert.Equal(t, now, c.ClearedAt)
	assert.Equal(t, now.Add(24*time.Hour), c.ExpiresAt)
	assert.True(t, c.Live(now.Add(23*time.Hour)))
	assert.False(t, c.Live(now.Add(24*time.Hour)))
}

func TestClearanceStore_SelfExpiring(t *testing.T) {
	ctx := context.Background()
	kv := memory.NewKVStore()
	now := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	s := NewClearanceStore(kv, func() time.Time { return now })

	_, err := s.Get(ctx)
	require.True(t, errors.Is(err, ErrNoClearance))

	require.NoError(t, s.Set(ctx, NewClearance(now)))
	c, err := s.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, now, c.ClearedAt)

	now = now.Add(ClearanceTTL + time.Second)
	_, err = s.Get(ctx)
	assert.True(t, errors.Is(err, ErrNoClearance))
	assert.Equal(t, 0, kv.Size(), "expired clearance must be cleared on read")
}

func TestClearanceStore_PartialWrite(t *testing.T) {
	ctx := context.Background()
	kv := memory.NewKVStore()
	s := NewClearanceStore(kv, nil)
	require.NoError(t, kv.Set(ctx, KeyClearedAt, time.Now().UTC().Format(time.RFC3339Nano)))

	_, err := s.Get(ctx)
	assert.True(t, errors.Is(err, ErrNoClearance))
	assert.Equal(t, 0, kv.Size())
}

func TestClearanceStore_IndependentOfSession(t *testing.T) {
	ctx := context.Background()
	kv := memory.NewKVStore()
	now := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	clearances := NewClearanceStore(kv, clock)
	sessions := session.NewStore(kv, session.WithClock(clock))

	sess := &session.Session{Credential: "tok", ExpiresAt: now.Add(30 * time.Minute)}
	require.NoError(t, sessions.Set(ctx, sess))

	// Granting clearance leaves the session untouched.
	require.NoError(t, clearances.Set(ctx, NewClearance(now)))
	got, err := sessions.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, sess.ExpiresAt, got.ExpiresAt)

	// Clearing the session leaves the clearance untouched.
	require.NoError(t, sessions.Clear(ctx))
	c, err := clearances.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, now.Add(ClearanceTTL), c.ExpiresAt)

	// Session expiry does not expire the clearance.
	require.NoError(t, sessions.Set(ctx, sess))
	now = now.Add(time.Hour)
	_, err = sessions.Get(ctx)
	assert.True(t, errors.Is(err, session.ErrSessionExpired))
	_, err = clearances.Get(ctx)
	assert.NoError(t, err)
}

// stallingKV holds the first read that finds no expiry until release is
// closed or a short timeout passes.
type stallingKV struct {
	*memory.KVStore
	stalled chan struct{}
	release chan struct{}
	once    sync.Once
}

func (k *stallingKV) Get(ctx context.Context, key string) (string, error) {
	v, err := k.KVStore.Get(ctx, key)
	if key == KeyExpiresAt && errors.Is(err, outbound.ErrKeyNotFound) {
		k.once.Do(func() {
			close(k.stalled)
			select {
			case <-k.release:
			case <-time.After(100 * time.Millisecond):
			}
		})
	}
	return v, err
}

func TestClearanceStore_ConcurrentReadKeepsGrant(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	kv := &stallingKV{
		KVStore: memory.NewKVStore(),
		stalled: make(chan struct{}),
		release: make(chan struct{}),
	}
	s := NewClearanceStore(kv, func() time.Time { return now })

	getDone := make(chan error, 1)
	go func() {
		_, err := s.Get(ctx)
		getDone <- err
	}()
	<-kv.stalled

	setDone := make(chan error, 1)
	go func() {
		err := s.Set(ctx, NewClearance(now))
		close(kv.release)
		setDone <- err
	}()

	require.NoError(t, <-setDone)
	assert.ErrorIs(t, <-getDone, ErrNoClearance)

	c, err := s.Get(ctx)
	require.NoError(t, err, "a read racing Set must not discard the new clearance")
	assert.Equal(t, now.Add(ClearanceTTL), c.ExpiresAt)
}
