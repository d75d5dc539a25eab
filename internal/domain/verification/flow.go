package verification

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/reelgate/reelgate/internal/domain/event"
)

// ChallengeAPI is the server side of the challenge flow.
type ChallengeAPI interface {
	// FetchChallenge asks the server for a fresh puzzle.
	FetchChallenge(ctx context.Context) (ServerChallenge, error)
	// Solve submits an answer for the puzzle identified by challengeID.
	Solve(ctx context.Context, challengeID, answer string) (SolveResult, error)
}

// Flow owns the single live Challenge and walks it through
// loading -> ready -> submitted -> verified | failed.
//
// A wrong answer with attempts left emits ChallengeFailed, discards the
// puzzle and fetches a new one. A wrong answer with none left emits
// ChallengeFailed(0) and leaves the challenge failed; nothing further
// happens until the caller resets the flow. A correct answer stores a fresh
// Clearance and emits VerificationGranted.
type Flow struct {
	mu          sync.Mutex
	current     *Challenge
	fetching    bool
	api         ChallengeAPI
	store       *ClearanceStore
	events      event.Emitter
	maxAttempts int
	now         func() time.Time
	logger      *slog.Logger
}

// FlowConfig configures a Flow.
type FlowConfig struct {
	// MaxAttempts per flow. Default: DefaultMaxAttempts.
	MaxAttempts int
	Now         func() time.Time
	Logger      *slog.Logger
}

// NewFlow creates a flow with no active challenge.
func NewFlow(api ChallengeAPI, store *ClearanceStore, events event.Emitter, cfg FlowConfig) *Flow {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if events == nil {
		events = event.Nop
	}
	return &Flow{
		api:         api,
		store:       store,
		events:      events,
		maxAttempts: cfg.MaxAttempts,
		now:         cfg.Now,
		logger:      cfg.Logger,
	}
}

// Begin starts a new flow in the loading state and returns its ID with
// started=true. If a live challenge already exists it is left untouched and
// its ID is returned with started=false.
func (f *Flow) Begin() (id string, started bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.current != nil && f.current.Live() {
		return f.current.ID, false
	}
	f.current = &Challenge{
		ID:                uuid.NewString(),
		AttemptsRemaining: f.maxAttempts,
		Status:            StatusLoading,
	}
	f.fetching = false
	f.logger.Debug("challenge flow started", "challenge_id", f.current.ID)
	return f.current.ID, true
}

// Active reports whether a live challenge exists.
func (f *Flow) Active() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current != nil && f.current.Live()
}

// Current returns a copy of the current challenge, if any.
func (f *Flow) Current() (Challenge, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.current == nil {
		return Challenge{}, false
	}
	return *f.current, true
}

// Reset discards the current challenge, whatever its state.
func (f *Flow) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.current = nil
	f.fetching = false
}

// Load fetches a puzzle for a challenge in the loading state and moves it
// to ready. A challenge that is already ready is returned as is. On a fetch
// error the challenge stays loading and Load may be called again.
func (f *Flow) Load(ctx context.Context) (Challenge, error) {
	f.mu.Lock()
	if f.current == nil {
		f.mu.Unlock()
		return Challenge{}, ErrNoChallenge
	}
	c := f.current
	switch {
	case c.Status == StatusReady:
		out := *c
		f.mu.Unlock()
		return out, nil
	case c.Status != StatusLoading || f.fetching:
		status := c.Status
		f.mu.Unlock()
		return Challenge{}, fmt.Errorf("%w: load from %s", ErrInvalidTransition, status)
	}
	f.fetching = true
	f.mu.Unlock()

	sc, err := f.api.FetchChallenge(ctx)

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.current != c {
		return Challenge{}, ErrChallengeReplaced
	}
	f.fetching = false
	if err != nil {
		return *c, fmt.Errorf("fetch challenge: %w", err)
	}
	c.ServerID = sc.ID
	c.Prompt = sc.Prompt
	c.Status = StatusReady
	return *c, nil
}

// Submit sends answer for the ready challenge.
//
// The returned challenge is verified on success. After a wrong answer with
// attempts left it is the freshly loaded puzzle (or still loading if that
// fetch failed, in which case the fetch error is returned). After the last
// wrong answer it is failed and the error is ErrVerificationExhausted. A
// transport error leaves the puzzle ready so the same answer can be resent.
func (f *Flow) Submit(ctx context.Context, answer string) (Challenge, error) {
	f.mu.Lock()
	if f.current == nil {
		f.mu.Unlock()
		return Challenge{}, ErrNoChallenge
	}
	c := f.current
	if c.Status != StatusReady {
		status := c.Status
		f.mu.Unlock()
		return Challenge{}, fmt.Errorf("%w: submit from %s", ErrInvalidTransition, status)
	}
	c.Status = StatusSubmitted
	serverID := c.ServerID
	f.mu.Unlock()

	res, err := f.api.Solve(ctx, serverID, answer)

	f.mu.Lock()
	if f.current != c {
		f.mu.Unlock()
		return Challenge{}, ErrChallengeReplaced
	}
	if err != nil {
		c.Status = StatusReady
		out := *c
		f.mu.Unlock()
		return out, fmt.Errorf("solve challenge: %w", err)
	}

	if res.Verified() {
		f.mu.Unlock()
		return f.grant(ctx, c), nil
	}

	remaining := c.AttemptsRemaining - 1
	if res.AttemptsRemaining != nil {
		remaining = *res.AttemptsRemaining
	}
	if remaining < 0 {
		remaining = 0
	}
	c.AttemptsRemaining = remaining
	c.Status = StatusFailed
	failed := *c
	if remaining > 0 {
		// The puzzle is spent; the next one must be fetched fresh.
		c.Status = StatusLoading
		c.ServerID = ""
		c.Prompt = ""
	}
	f.mu.Unlock()

	f.logger.Info("challenge answer rejected", "challenge_id", c.ID, "attempts_remaining", remaining)
	f.events.Emit(ctx, event.Event{Kind: event.ChallengeFailed, AttemptsRemaining: remaining})

	if remaining == 0 {
		return failed, ErrVerificationExhausted
	}
	return f.Load(ctx)
}

// grant stores a new clearance, marks c verified and announces it. The
// clearance is written while c is still submitted, so no gate can see the
// flow finished before the clearance exists. The grant is announced even if
// the clearance could not be persisted.
func (f *Flow) grant(ctx context.Context, c *Challenge) Challenge {
	if err := f.store.Set(ctx, NewClearance(f.now())); err != nil {
		f.logger.Error("failed to persist verification clearance", "error", err)
	}

	f.mu.Lock()
	c.Status = StatusVerified
	out := *c
	f.mu.Unlock()

	f.logger.Info("verification granted", "challenge_id", out.ID)
	f.events.Emit(ctx, event.Event{Kind: event.VerificationGranted})
	return out
}
