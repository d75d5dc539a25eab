package gate

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/reelgate/reelgate/internal/ctxkey"
	"github.com/reelgate/reelgate/internal/domain/event"
	"github.com/reelgate/reelgate/internal/domain/session"
)

// DefaultAuthExemptRoutes are the routes whose 401 means "wrong
// credentials", not "session died".
var DefaultAuthExemptRoutes = []string{"POST /auth/login", "POST /auth/register"}

// SessionSource is the part of the session store the auth gate needs.
type SessionSource interface {
	Get(ctx context.Context) (*session.Session, error)
	ClearIf(ctx context.Context, credential string) (bool, error)
}

// AuthGate attaches the stored credential to every call and clears the
// session when the server answers 401 to a call made with it.
//
// Concurrent 401s caused by the same dead session produce a single
// SessionInvalidated event. 401s are always returned to the caller as
// *AuthError and never retried.
type AuthGate struct {
	sessions SessionSource
	events   event.Emitter
	exempt   RouteSet
	logger   *slog.Logger

	// mu serialises invalidations. epoch counts them; a call whose read of
	// the store predates the current epoch has already been accounted for.
	mu    sync.Mutex
	epoch uint64
}

// AuthGateConfig configures an AuthGate.
type AuthGateConfig struct {
	Sessions SessionSource
	Events   event.Emitter
	// ExemptRoutes default to DefaultAuthExemptRoutes.
	ExemptRoutes []string
	Logger       *slog.Logger
}

// NewAuthGate creates an AuthGate.
func NewAuthGate(cfg AuthGateConfig) *AuthGate {
	if cfg.ExemptRoutes == nil {
		cfg.ExemptRoutes = DefaultAuthExemptRoutes
	}
	if cfg.Events == nil {
		cfg.Events = event.Nop
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &AuthGate{
		sessions: cfg.Sessions,
		events:   cfg.Events,
		exempt:   NewRouteSet(cfg.ExemptRoutes...),
		logger:   cfg.Logger,
	}
}

// Wrap returns a Transport that gates calls to next. All transports
// returned by one AuthGate share its invalidation state.
func (a *AuthGate) Wrap(next Transport) Transport {
	return TransportFunc(func(ctx context.Context, call *Call) (*Response, error) {
		return a.do(ctx, call, next)
	})
}

func (a *AuthGate) do(ctx context.Context, call *Call, next Transport) (*Response, error) {
	ctx, span := tracer.Start(ctx, "gate.auth", callAttributes(call))
	defer span.End()

	a.mu.Lock()
	epoch := a.epoch
	a.mu.Unlock()

	out := call.Clone()
	out.Header.Del("Authorization")

	var attached string
	died := false
	sess, err := a.sessions.Get(ctx)
	switch {
	case err == nil:
		attached = sess.Credential
		out.Header.Set("Authorization", "Bearer "+attached)
	case errors.Is(err, session.ErrSessionExpired):
		died = true
	case errors.Is(err, session.ErrNoSession):
	default:
		// An unreadable store is treated as signed out; the server decides.
		ctxkey.Logger(ctx, a.logger).Warn("failed to read session", "error", err)
	}
	span.SetAttributes(attribute.Bool("gate.auth.credential_attached", attached != ""))

	resp, err := next.Do(ctx, out)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transport error")
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized || call.SkipAuthInvalidation || a.exempt.Contains(call) {
		return resp, nil
	}

	authErr := &AuthError{Method: call.Method, Path: call.Path, Response: resp}
	if attached != "" || died {
		authErr.Invalidated = a.invalidate(ctx, epoch, attached)
	}
	span.SetStatus(codes.Error, "unauthorized")
	span.SetAttributes(attribute.Bool("gate.auth.invalidated", authErr.Invalidated))
	return nil, authErr
}

// invalidate clears the session the failed call was made with and emits
// SessionInvalidated, unless another call already did so or a different
// session has been stored since. Reports whether the event was emitted.
func (a *AuthGate) invalidate(ctx context.Context, epoch uint64, attached string) bool {
	a.mu.Lock()
	if epoch != a.epoch {
		a.mu.Unlock()
		return false
	}

	cur, err := a.sessions.Get(ctx)
	switch {
	case err == nil && attached != "" && cur.Credential == attached:
		cleared, clearErr := a.sessions.ClearIf(ctx, attached)
		if clearErr != nil {
			ctxkey.Logger(ctx, a.logger).Error("failed to clear session", "error", clearErr)
		} else if !cleared {
			// Replaced by a new login between the read and the clear.
			a.mu.Unlock()
			return false
		}
	case err == nil:
		// A new session was stored while the call was in flight.
		a.mu.Unlock()
		return false
	case errors.Is(err, session.ErrNoSession) && attached != "":
		// Cleared by logout while in flight.
		a.mu.Unlock()
		return false
	}
	a.epoch++
	a.mu.Unlock()

	ctxkey.Logger(ctx, a.logger).Info("session invalidated by server")
	a.events.Emit(ctx, event.Event{Kind: event.SessionInvalidated})
	return true
}
