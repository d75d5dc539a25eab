package verification

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/reelgate/reelgate/internal/port/outbound"
)

// Storage keys, disjoint from the session keys.
const (
	KeyClearedAt = "verification.cleared_at"
	KeyExpiresAt = "verification.expires_at"
)

// ClearanceStore persists the current clearance and invalidates it on read
// once it has expired. Each Get, Set and Clear runs as one unit against the
// other operations on the same store.
type ClearanceStore struct {
	mu  sync.Mutex
	kv  outbound.KeyValueStore
	now func() time.Time
}

// NewClearanceStore creates a clearance store on top of kv. A nil now uses time.Now.
func NewClearanceStore(kv outbound.KeyValueStore, now func() time.Time) *ClearanceStore {
	if now == nil {
		now = time.Now
	}
	return &ClearanceStore{kv: kv, now: now}
}

// Get returns the live clearance, or ErrNoClearance. An expired or
// incomplete clearance is cleared before ErrNoClearance is returned.
func (s *ClearanceStore) Get(ctx context.Context) (*Clearance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rawExp, err := s.kv.Get(ctx, KeyExpiresAt)
	if errors.Is(err, outbound.ErrKeyNotFound) {
		// A cleared_at without an expiry is a leftover partial write.
		if _, leftover := s.kv.Get(ctx, KeyClearedAt); leftover == nil {
			return nil, s.discard(ctx)
		}
		return nil, ErrNoClearance
	}
	if err != nil {
		return nil, fmt.Errorf("read clearance expiry: %w", err)
	}

	exp, err := time.Parse(time.RFC3339Nano, rawExp)
	if err != nil {
		return nil, s.discard(ctx)
	}
	c := &Clearance{ExpiresAt: exp}
	if !c.Live(s.now()) {
		return nil, s.discard(ctx)
	}

	if rawCleared, err := s.kv.Get(ctx, KeyClearedAt); err == nil {
		c.ClearedAt, _ = time.Parse(time.RFC3339Nano, rawCleared)
	}
	return c, nil
}

// Set stores c. The expiry is written last.
func (s *ClearanceStore) Set(ctx context.Context, c Clearance) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.kv.Delete(ctx, KeyExpiresAt); err != nil {
		return fmt.Errorf("clear clearance expiry: %w", err)
	}
	if err := s.kv.Set(ctx, KeyClearedAt, c.ClearedAt.UTC().Format(time.RFC3339Nano)); err != nil {
		return fmt.Errorf("write clearance: %w", err)
	}
	if err := s.kv.Set(ctx, KeyExpiresAt, c.ExpiresAt.UTC().Format(time.RFC3339Nano)); err != nil {
		return fmt.Errorf("write clearance expiry: %w", err)
	}
	return nil
}

// Clear removes the clearance.
func (s *ClearanceStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clear(ctx)
}

func (s *ClearanceStore) clear(ctx context.Context) error {
	if err := s.kv.Delete(ctx, KeyExpiresAt, KeyClearedAt); err != nil {
		return fmt.Errorf("clear clearance: %w", err)
	}
	return nil
}

func (s *ClearanceStore) discard(ctx context.Context) error {
	if err := s.clear(ctx); err != nil {
		return err
	}
	return ErrNoClearance
}
