// Package event defines the notifications the request-gating engine raises
// for the UI layer, and an in-process bus that delivers them.
package event

import (
	"context"
	"time"
)

// Kind names an engine notification.
type Kind string

const (
	// SessionInvalidated fires once when a 401 reveals the stored session died.
	SessionInvalidated Kind = "session_invalidated"
	// VerificationRequired fires when the first call of a verification flow
	// is suspended. PendingCount is the queue length at that moment.
	VerificationRequired Kind = "verification_required"
	// VerificationGranted fires after a challenge is solved and the
	// clearance is stored.
	VerificationGranted Kind = "verification_granted"
	// ChallengeFailed fires after each wrong answer. AttemptsRemaining is 0
	// when the flow is exhausted.
	ChallengeFailed Kind = "challenge_failed"
)

// Event is a single notification.
type Event struct {
	Kind              Kind      `json:"kind"`
	PendingCount      int       `json:"pendingCount,omitempty"`
	AttemptsRemaining int       `json:"attemptsRemaining"`
	At                time.Time `json:"at"`
}

// Emitter receives engine notifications.
type Emitter interface {
	Emit(ctx context.Context, e Event)
}

// EmitterFunc adapts a function to the Emitter interface.
type EmitterFunc func(ctx context.Context, e Event)

// Emit calls f(ctx, e).
func (f EmitterFunc) Emit(ctx context.Context, e Event) {
	f(ctx, e)
}

// Nop is an Emitter that drops everything.
var Nop Emitter = EmitterFunc(func(context.Context, Event) {})
