package gate

import (
	"errors"
	"fmt"

	"github.com/reelgate/reelgate/internal/domain/verification"
)

var (
	// ErrNetworkFailure matches every *NetworkError.
	ErrNetworkFailure = errors.New("network failure")
	// ErrAuthenticationExpired matches every *AuthError.
	ErrAuthenticationExpired = errors.New("authentication expired")
	// ErrVerificationRequired marks a call suspended for verification.
	// Callers of the gated chain never receive it.
	ErrVerificationRequired = errors.New("verification required")
	// ErrVerificationExhausted is returned when the challenge has no attempts left.
	ErrVerificationExhausted = verification.ErrVerificationExhausted
	// ErrCancelledByPurge is returned to every caller whose suspended call
	// was discarded because the verification flow was abandoned.
	ErrCancelledByPurge = errors.New("pending call cancelled")
	// ErrVerificationRenewed is returned when a replayed call is answered
	// with another verification demand. The call is not queued again.
	ErrVerificationRenewed = errors.New("verification demanded again on replay")
)

// NetworkError wraps a transport-level failure, including timeouts.
type NetworkError struct {
	Method string
	Path   string
	Err    error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s %s: network failure: %v", e.Method, e.Path, e.Err)
}

// Unwrap returns the transport error.
func (e *NetworkError) Unwrap() error { return e.Err }

// Is reports ErrNetworkFailure as a match.
func (e *NetworkError) Is(target error) bool { return target == ErrNetworkFailure }

// AuthError is returned for a 401 response. Response holds the server's answer.
type AuthError struct {
	Method   string
	Path     string
	Response *Response
	// Invalidated is true when this failure cleared the stored session.
	Invalidated bool
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s %s: authentication expired", e.Method, e.Path)
}

// Is reports ErrAuthenticationExpired as a match.
func (e *AuthError) Is(target error) bool { return target == ErrAuthenticationExpired }
