// Package service wires the request gates into a client engine and drives
// the login and verification flows on top of it.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/reelgate/reelgate/internal/adapter/outbound/api"
	"github.com/reelgate/reelgate/internal/domain/event"
	"github.com/reelgate/reelgate/internal/domain/gate"
	"github.com/reelgate/reelgate/internal/domain/session"
	"github.com/reelgate/reelgate/internal/domain/verification"
	"github.com/reelgate/reelgate/internal/port/outbound"
)

// Deps are the external collaborators of an Engine.
type Deps struct {
	// Store persists the session and the verification clearance. Required.
	Store outbound.KeyValueStore
	// Network sends calls to the API. Required.
	Network gate.Transport
	// Registerer receives the engine metrics. Nil leaves them unregistered.
	Registerer prometheus.Registerer
	Logger     *slog.Logger
	// Now defaults to time.Now.
	Now func() time.Time
}

// Options tune the gates. Zero values select the defaults.
type Options struct {
	AuthExemptRoutes         []string
	VerificationExemptRoutes []string
	MaxAttempts              int
	Signal                   gate.Signal
}

// Engine owns one gated transport chain and everything behind it: the
// session and clearance stores, the pending queue, the challenge flow and
// the retry coordinator. Every call made through Do or the API clients
// passes the auth gate, then the verification gate.
type Engine struct {
	bus        *event.Bus
	sessions   *session.Store
	clearances *verification.ClearanceStore
	queue      *gate.PendingQueue
	flow       *verification.Flow
	auth       *gate.AuthGate
	verify     *gate.VerificationGate
	coord      *gate.RetryCoordinator
	metrics    *gate.Metrics
	chain      gate.Transport

	authAPI   *api.AuthAPI
	verifyAPI *api.VerificationAPI
	directory *api.DirectoryAPI

	now    func() time.Time
	logger *slog.Logger
}

// NewEngine assembles an Engine. Call Bootstrap before first use and Close
// when done.
func NewEngine(deps Deps, opts Options) (*Engine, error) {
	if deps.Store == nil {
		return nil, errors.New("engine: store is required")
	}
	if deps.Network == nil {
		return nil, errors.New("engine: network transport is required")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	e := &Engine{
		bus:     event.NewBus(deps.Logger),
		metrics: gate.NewMetrics(deps.Registerer),
		now:     deps.Now,
		logger:  deps.Logger,
	}
	e.sessions = session.NewStore(deps.Store, session.WithClock(deps.Now), session.WithLogger(deps.Logger))
	e.clearances = verification.NewClearanceStore(deps.Store, deps.Now)
	e.queue = gate.NewPendingQueue(e.metrics)

	e.auth = gate.NewAuthGate(gate.AuthGateConfig{
		Sessions:     e.sessions,
		Events:       e.bus,
		ExemptRoutes: opts.AuthExemptRoutes,
		Logger:       deps.Logger,
	})

	// The flow needs the verification endpoints, which need the chain,
	// which needs the flow. The endpoints are exempt from the verification
	// gate, so the flow talks through a chain built around a late-bound
	// gate reference.
	e.verifyAPI = api.NewVerificationAPI(gate.TransportFunc(func(ctx context.Context, call *gate.Call) (*gate.Response, error) {
		return e.chain.Do(ctx, call)
	}))
	e.flow = verification.NewFlow(e.verifyAPI, e.clearances, e.bus, verification.FlowConfig{
		MaxAttempts: opts.MaxAttempts,
		Now:         deps.Now,
		Logger:      deps.Logger,
	})

	e.verify = gate.NewVerificationGate(gate.VerificationGateConfig{
		Clearances:   e.clearances,
		Queue:        e.queue,
		Flow:         e.flow,
		Events:       e.bus,
		ExemptRoutes: opts.VerificationExemptRoutes,
		Signal:       opts.Signal,
		Logger:       deps.Logger,
		Metrics:      e.metrics,
	})

	e.chain = e.auth.Wrap(e.verify.Wrap(deps.Network))
	e.coord = gate.NewRetryCoordinator(e.queue, e.auth.Wrap(deps.Network), e.verify, deps.Logger, e.metrics)
	e.coord.Subscribe(e.bus)
	e.metrics.Observe(e.bus)

	e.authAPI = api.NewAuthAPI(e.chain)
	e.directory = api.NewDirectoryAPI(e.chain)

	return e, nil
}

// Bootstrap seeds the verification gate. A live stored clearance needs no
// server round trip; otherwise the server is asked whether verification
// is currently required. On error the gate keeps its previous state.
func (e *Engine) Bootstrap(ctx context.Context) (required bool, err error) {
	c, err := e.clearances.Get(ctx)
	switch {
	case err == nil:
		e.logger.Debug("verification clearance restored", "expires_at", c.ExpiresAt)
		return false, nil
	case !errors.Is(err, verification.ErrNoClearance):
		return false, fmt.Errorf("read clearance: %w", err)
	}

	required, err = e.verifyAPI.CheckRequired(ctx)
	if err != nil {
		return false, fmt.Errorf("check verification requirement: %w", err)
	}
	e.verify.SetRequired(required)
	e.logger.Debug("verification requirement checked", "required", required)
	return required, nil
}

// Do sends call through the gated chain.
func (e *Engine) Do(ctx context.Context, call *gate.Call) (*gate.Response, error) {
	return e.chain.Do(ctx, call)
}

// Transport returns the gated chain.
func (e *Engine) Transport() gate.Transport {
	return e.chain
}

// Directory returns the video directory client.
func (e *Engine) Directory() *api.DirectoryAPI {
	return e.directory
}

// Events returns the bus every engine event is emitted on.
func (e *Engine) Events() *event.Bus {
	return e.bus
}

// Subscribe registers h for events of kind k.
func (e *Engine) Subscribe(k event.Kind, h event.Handler) {
	e.bus.Subscribe(k, h)
}

// Metrics returns the engine metrics.
func (e *Engine) Metrics() *gate.Metrics {
	return e.metrics
}

// Close stops in-progress replays.
func (e *Engine) Close() {
	e.coord.Close()
}
