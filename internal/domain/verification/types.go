// Package verification tracks human-verification clearance and drives the
// challenge flow that grants it.
package verification

import (
	"errors"
	"time"
)

// ClearanceTTL is the fixed lifetime of a clearance from the moment it is
// granted. It is independent of the session lifetime.
const ClearanceTTL = 24 * time.Hour

// DefaultMaxAttempts is the number of answers allowed per flow when the
// server does not report its own count.
const DefaultMaxAttempts = 3

var (
	// ErrNoClearance is returned by ClearanceStore.Get when there is no live clearance.
	ErrNoClearance = errors.New("no verification clearance")
	// ErrVerificationExhausted is returned when a flow has no attempts left.
	ErrVerificationExhausted = errors.New("verification attempts exhausted")
	// ErrNoChallenge is returned when a flow operation needs an active challenge.
	ErrNoChallenge = errors.New("no active challenge")
	// ErrInvalidTransition is returned when an operation does not apply to
	// the challenge's current status.
	ErrInvalidTransition = errors.New("invalid challenge transition")
	// ErrChallengeReplaced is returned when the flow was reset while a
	// network round trip for it was in progress.
	ErrChallengeReplaced = errors.New("challenge replaced")
)

// Clearance proves a challenge was solved.
type Clearance struct {
	ClearedAt time.Time
	ExpiresAt time.Time
}

// NewClearance returns a clearance granted at now.
func NewClearance(now time.Time) Clearance {
	now = now.UTC()
	return Clearance{ClearedAt: now, ExpiresAt: now.Add(ClearanceTTL)}
}

// Live reports whether the clearance is still valid at now.
func (c Clearance) Live(now time.Time) bool {
	return now.Before(c.ExpiresAt)
}

// Status is a challenge lifecycle state.
type Status string

const (
	StatusLoading   Status = "loading"
	StatusReady     Status = "ready"
	StatusSubmitted Status = "submitted"
	StatusVerified  Status = "verified"
	StatusFailed    Status = "failed"
)

// Challenge is the single verification flow the UI renders.
type Challenge struct {
	// ID identifies the flow. It stays the same when a wrong answer causes
	// a fresh puzzle to be fetched.
	ID string
	// ServerID is the server's identifier for the current puzzle.
	ServerID string
	// Prompt is the opaque puzzle payload handed to the rendering routine.
	Prompt            string
	AttemptsRemaining int
	Status            Status
}

// Live reports whether the challenge still blocks a new flow from starting.
func (c *Challenge) Live() bool {
	return c.Status != StatusVerified
}

// ServerChallenge is what GET /verification/challenge returns.
type ServerChallenge struct {
	ID     string `json:"challengeId"`
	Prompt string `json:"prompt"`
}

// SolveResult is what POST /verification/solve returns.
type SolveResult struct {
	Status string `json:"status"`
	// AttemptsRemaining is set when the server tracks attempts itself.
	AttemptsRemaining *int `json:"attemptsRemaining,omitempty"`
}

// Verified reports whether the server accepted the answer.
func (r SolveResult) Verified() bool {
	return r.Status == string(StatusVerified)
}
