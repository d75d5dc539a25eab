package service

import (
	"context"
	"errors"
	"time"

	"github.com/reelgate/reelgate/internal/domain/session"
	"github.com/reelgate/reelgate/internal/domain/verification"
)

// Status is a snapshot of the engine state.
type Status struct {
	// Session is nil when signed out.
	Session *session.Session
	// ClearanceExpiresAt is zero when there is no live clearance.
	ClearanceExpiresAt time.Time
	// VerificationRequired is the gate's current view of the server.
	VerificationRequired bool
	Pending              int
	// Challenge is nil when no challenge exists.
	Challenge *verification.Challenge
}

// Status reads the stores and reports the engine state. Expired entries
// found while reading are discarded as a side effect.
func (e *Engine) Status(ctx context.Context) (*Status, error) {
	s, err := e.Session(ctx)
	if err != nil {
		return nil, err
	}
	out := &Status{
		Session:              s,
		VerificationRequired: e.verify.Required(),
		Pending:              e.queue.Len(),
	}

	c, err := e.clearances.Get(ctx)
	switch {
	case err == nil:
		out.ClearanceExpiresAt = c.ExpiresAt
	case !errors.Is(err, verification.ErrNoClearance):
		return nil, err
	}

	if ch, ok := e.flow.Current(); ok {
		out.Challenge = &ch
	}
	return out, nil
}
