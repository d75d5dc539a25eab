// Package session holds the signed-in user's credential and keeps it only
// while it is valid.
package session

import "time"

// Role is the principal's role in the directory.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Principal identifies who a session belongs to.
type Principal struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Role        Role   `json:"role"`
}

// Session is the credential returned by a successful login or registration.
type Session struct {
	// Credential is the bearer token attached to outgoing calls.
	Credential string
	// ExpiresAt is when the credential stops being usable (UTC).
	ExpiresAt time.Time
	Principal Principal
}

// IsExpired reports whether the session is no longer valid at now.
func (s *Session) IsExpired(now time.Time) bool {
	return s.Credential == "" || !now.Before(s.ExpiresAt)
}
