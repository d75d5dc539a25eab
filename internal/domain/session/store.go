package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/reelgate/reelgate/internal/port/outbound"
)

// Storage keys. Credential and expiry are separate so a partial write can
// never produce a credential with a valid-looking expiry.
const (
	KeyCredential = "session.credential"
	KeyExpiresAt  = "session.expires_at"
	KeyPrincipal  = "session.principal"
)

var (
	// ErrNoSession is returned by Get when no session is stored.
	ErrNoSession = errors.New("no session")
	// ErrSessionExpired is returned by Get when a stored session was found
	// expired (or incomplete) and has just been cleared.
	ErrSessionExpired = errors.New("session expired")
	// ErrInvalidSession is returned by Set for a session that is already unusable.
	ErrInvalidSession = errors.New("invalid session")
)

// Store persists the current session and invalidates it on read once it
// has expired. It has no other logic and makes no network calls.
// Get, Set and Clear are serialized so a read never observes half a write.
type Store struct {
	mu     sync.Mutex
	kv     outbound.KeyValueStore
	now    func() time.Time
	logger *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source used for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// NewStore creates a session store on top of kv.
func NewStore(kv outbound.KeyValueStore, opts ...Option) *Store {
	s := &Store{
		kv:     kv,
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns the live session.
// Returns ErrNoSession if nothing is stored, or ErrSessionExpired if the
// stored session was expired or incomplete; in the latter case the store
// has already been cleared.
func (s *Store) Get(ctx context.Context) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cred, err := s.kv.Get(ctx, KeyCredential)
	if errors.Is(err, outbound.ErrKeyNotFound) {
		return nil, ErrNoSession
	}
	if err != nil {
		return nil, fmt.Errorf("read credential: %w", err)
	}

	sess := &Session{Credential: cred}

	raw, err := s.kv.Get(ctx, KeyExpiresAt)
	switch {
	case errors.Is(err, outbound.ErrKeyNotFound):
		return nil, s.expire(ctx, "missing expiry")
	case err != nil:
		return nil, fmt.Errorf("read expiry: %w", err)
	}
	sess.ExpiresAt, err = time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return nil, s.expire(ctx, "malformed expiry")
	}
	if sess.IsExpired(s.now()) {
		return nil, s.expire(ctx, "expired")
	}

	if p, err := s.kv.Get(ctx, KeyPrincipal); err == nil {
		if jsonErr := json.Unmarshal([]byte(p), &sess.Principal); jsonErr != nil {
			s.logger.Warn("ignoring malformed session principal", "error", jsonErr)
		}
	} else if !errors.Is(err, outbound.ErrKeyNotFound) {
		return nil, fmt.Errorf("read principal: %w", err)
	}

	return sess, nil
}

// Set stores sess, replacing any previous session. The credential is
// written last so an interrupted write leaves no credential behind.
func (s *Store) Set(ctx context.Context, sess *Session) error {
	if sess == nil || sess.IsExpired(s.now()) {
		return ErrInvalidSession
	}

	principal, err := json.Marshal(sess.Principal)
	if err != nil {
		return fmt.Errorf("marshal principal: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Drop the old credential first so a stale credential is never paired
	// with the new expiry.
	if err := s.kv.Delete(ctx, KeyCredential); err != nil {
		return fmt.Errorf("clear credential: %w", err)
	}
	if err := s.kv.Set(ctx, KeyPrincipal, string(principal)); err != nil {
		return fmt.Errorf("write principal: %w", err)
	}
	if err := s.kv.Set(ctx, KeyExpiresAt, sess.ExpiresAt.UTC().Format(time.RFC3339Nano)); err != nil {
		return fmt.Errorf("write expiry: %w", err)
	}
	if err := s.kv.Set(ctx, KeyCredential, sess.Credential); err != nil {
		return fmt.Errorf("write credential: %w", err)
	}
	return nil
}

// Clear removes the session. The credential goes first.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clear(ctx)
}

// ClearIf removes the session only while it still holds credential.
// Reports whether it did.
func (s *Store) ClearIf(ctx context.Context, credential string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, err := s.kv.Get(ctx, KeyCredential)
	if errors.Is(err, outbound.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read credential: %w", err)
	}
	if cur != credential {
		return false, nil
	}
	return true, s.clear(ctx)
}

func (s *Store) clear(ctx context.Context) error {
	if err := s.kv.Delete(ctx, KeyCredential, KeyExpiresAt, KeyPrincipal); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

func (s *Store) expire(ctx context.Context, reason string) error {
	s.logger.Debug("discarding stored session", "reason", reason)
	if err := s.clear(ctx); err != nil {
		return err
	}
	return ErrSessionExpired
}
