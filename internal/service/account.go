package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/reelgate/reelgate/internal/adapter/outbound/api"
	"github.com/reelgate/reelgate/internal/domain/session"
)

// Login signs in and stores the resulting session.
func (e *Engine) Login(ctx context.Context, username, password string) (*session.Session, error) {
	res, err := e.authAPI.Login(ctx, api.Credentials{Username: username, Password: password})
	if err != nil {
		return nil, err
	}
	return e.startSession(ctx, res)
}

// Register creates an account and stores the resulting session.
func (e *Engine) Register(ctx context.Context, username, password string) (*session.Session, error) {
	res, err := e.authAPI.Register(ctx, api.Credentials{Username: username, Password: password})
	if err != nil {
		return nil, err
	}
	return e.startSession(ctx, res)
}

// Logout discards the stored session. The verification clearance is kept.
func (e *Engine) Logout(ctx context.Context) error {
	if err := e.sessions.Clear(ctx); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	e.logger.Info("logged out")
	return nil
}

// Session returns the live session, or nil if there is none.
func (e *Engine) Session(ctx context.Context) (*session.Session, error) {
	s, err := e.sessions.Get(ctx)
	switch {
	case err == nil:
		return s, nil
	case errors.Is(err, session.ErrNoSession), errors.Is(err, session.ErrSessionExpired):
		return nil, nil
	default:
		return nil, err
	}
}

func (e *Engine) startSession(ctx context.Context, res *api.LoginResult) (*session.Session, error) {
	s := session.New(res.Credential, res.TTL(), res.Principal, e.now())
	if err := e.sessions.Set(ctx, s); err != nil {
		return nil, fmt.Errorf("store session: %w", err)
	}
	e.logger.Info("signed in", "user", s.Principal.ID, "expires_at", s.ExpiresAt)
	return s, nil
}

// Forget discards the stored session and verification clearance.
func (e *Engine) Forget(ctx context.Context) error {
	if err := e.sessions.Clear(ctx); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	if err := e.clearances.Clear(ctx); err != nil {
		return fmt.Errorf("clear verification clearance: %w", err)
	}
	return nil
}
