package session

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// New builds a session from a login response. When the credential is a JWT
// carrying an exp claim earlier than now+expiresIn, the claim wins: the
// server will reject the token after that instant regardless of what the
// response body said. The token signature is not verified; the client only
// reads the claim.
func New(credential string, expiresIn time.Duration, principal Principal, now time.Time) *Session {
	expiresAt := now.Add(expiresIn).UTC()
	if exp, ok := tokenExpiry(credential); ok && exp.Before(expiresAt) {
		expiresAt = exp.UTC()
	}
	return &Session{
		Credential: credential,
		ExpiresAt:  expiresAt,
		Principal:  principal,
	}
}

// tokenExpiry returns the exp claim of an unverified JWT.
func tokenExpiry(credential string) (time.Time, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(credential, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}
