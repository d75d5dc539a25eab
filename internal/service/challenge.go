package service

import (
	"context"

	"github.com/reelgate/reelgate/internal/domain/gate"
	"github.com/reelgate/reelgate/internal/domain/verification"
)

// Challenge returns the current challenge, if any.
func (e *Engine) Challenge() (verification.Challenge, bool) {
	return e.flow.Current()
}

// LoadChallenge returns a challenge ready to be answered. It loads the
// puzzle of the flow a gated call began, or begins a flow of its own when
// none is live, which lets a user verify before any call is blocked. A
// challenge that has run out of attempts is returned with
// ErrVerificationExhausted; use RestartChallenge to try again.
func (e *Engine) LoadChallenge(ctx context.Context) (verification.Challenge, error) {
	if c, ok := e.flow.Current(); ok {
		switch c.Status {
		case verification.StatusFailed:
			return c, verification.ErrVerificationExhausted
		case verification.StatusReady:
			return c, nil
		}
	}
	e.flow.Begin()
	return e.flow.Load(ctx)
}

// SubmitAnswer answers the ready challenge. See verification.Flow.Submit
// for the resulting states.
func (e *Engine) SubmitAnswer(ctx context.Context, answer string) (verification.Challenge, error) {
	return e.flow.Submit(ctx, answer)
}

// RestartChallenge discards the current challenge and loads a fresh one
// with a full set of attempts. Suspended calls stay queued.
func (e *Engine) RestartChallenge(ctx context.Context) (verification.Challenge, error) {
	e.flow.Reset()
	e.flow.Begin()
	return e.flow.Load(ctx)
}

// CancelVerification abandons verification: the challenge is discarded and
// every suspended call fails with ErrCancelledByPurge. Returns the number
// of queued calls purged.
func (e *Engine) CancelVerification() int {
	n := e.queue.PurgeWith(gate.ErrCancelledByPurge, e.flow.Reset)
	if n > 0 {
		e.logger.Info("verification cancelled", "purged", n)
	}
	return n
}

// Pending returns the number of suspended calls.
func (e *Engine) Pending() int {
	return e.queue.Len()
}
