package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/reelgate/reelgate/internal/domain/gate"
	"github.com/reelgate/reelgate/internal/domain/session"
)

// Auth endpoint paths.
const (
	PathLogin    = "/auth/login"
	PathRegister = "/auth/register"
)

// ErrInvalidCredentials is returned when login is refused.
var ErrInvalidCredentials = errors.New("invalid username or password")

// Credentials is the body of login and registration requests.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResult is the body of a successful login or registration.
type LoginResult struct {
	Credential string            `json:"credential"`
	ExpiresIn  int64             `json:"expiresIn"` // seconds
	Principal  session.Principal `json:"principal"`
}

// TTL returns ExpiresIn as a duration.
func (r LoginResult) TTL() time.Duration {
	return time.Duration(r.ExpiresIn) * time.Second
}

// AuthAPI is the client for the /auth endpoints.
type AuthAPI struct {
	transport gate.Transport
}

// NewAuthAPI creates a client sending through transport.
func NewAuthAPI(transport gate.Transport) *AuthAPI {
	return &AuthAPI{transport: transport}
}

// Login exchanges credentials for a session credential.
func (a *AuthAPI) Login(ctx context.Context, c Credentials) (*LoginResult, error) {
	return a.post(ctx, PathLogin, c)
}

// Register creates an account and signs it in.
func (a *AuthAPI) Register(ctx context.Context, c Credentials) (*LoginResult, error) {
	return a.post(ctx, PathRegister, c)
}

func (a *AuthAPI) post(ctx context.Context, path string, c Credentials) (*LoginResult, error) {
	call := &gate.Call{Method: http.MethodPost, Path: path, SkipAuthInvalidation: true}

	var out LoginResult
	err := doJSON(ctx, a.transport, call, c, &out)
	if IsStatus(err, http.StatusUnauthorized) || IsStatus(err, http.StatusForbidden) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if out.Credential == "" || out.ExpiresIn <= 0 {
		return nil, errors.New("login response missing credential or expiry")
	}
	return &out, nil
}
