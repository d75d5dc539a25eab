package gate

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/reelgate/reelgate/internal/ctxkey"
	"github.com/reelgate/reelgate/internal/domain/event"
	"github.com/reelgate/reelgate/internal/domain/verification"
)

// DefaultVerificationExemptRoutes are the verification endpoints
// themselves; they cannot wait on the clearance they produce.
var DefaultVerificationExemptRoutes = []string{
	"GET /verification/check-required",
	"GET /verification/challenge",
	"POST /verification/solve",
}

// DefaultSignalHeader is the response header that marks a verification demand.
const DefaultSignalHeader = "X-Verification-Required"

// ClearanceSource is the part of the clearance store the verification gate needs.
type ClearanceSource interface {
	Get(ctx context.Context) (*verification.Clearance, error)
	Clear(ctx context.Context) error
}

// FlowStarter begins the single challenge flow. Begin reports started=false
// when a flow is already live.
type FlowStarter interface {
	Begin() (id string, started bool)
}

// Signal reports whether a response is a server demand for verification.
type Signal func(resp *Response) bool

// StatusSignal returns a Signal matching the given status code, or a truthy
// value in header. A zero status or empty header disables that check.
func StatusSignal(status int, header string) Signal {
	return func(resp *Response) bool {
		if status != 0 && resp.StatusCode == status {
			return true
		}
		if header == "" || resp.Header == nil {
			return false
		}
		v, err := strconv.ParseBool(strings.TrimSpace(resp.Header.Get(header)))
		return err == nil && v
	}
}

// VerificationGate suspends calls while human verification is required.
//
// A call is let through when the clearance store holds a live clearance or
// verification is not currently required. Otherwise it is never sent: it
// is queued (merging with an identical queued request), the challenge flow
// is begun, and the caller waits for the replay's outcome. A call that was
// let through but answered with a verification demand revokes the
// clearance and is suspended the same way. Calls already in flight are
// never blocked retroactively.
type VerificationGate struct {
	clearances ClearanceSource
	queue      *PendingQueue
	flow       FlowStarter
	events     event.Emitter
	exempt     RouteSet
	signal     Signal
	required   atomic.Bool
	logger     *slog.Logger
	metrics    *Metrics
}

// VerificationGateConfig configures a VerificationGate.
type VerificationGateConfig struct {
	Clearances ClearanceSource
	Queue      *PendingQueue
	Flow       FlowStarter
	Events     event.Emitter
	// ExemptRoutes default to DefaultVerificationExemptRoutes.
	ExemptRoutes []string
	// Signal defaults to StatusSignal(428, DefaultSignalHeader).
	Signal  Signal
	Logger  *slog.Logger
	Metrics *Metrics
}

// NewVerificationGate creates a gate. Until SetRequired is called,
// verification is assumed not required and only a server demand blocks.
func NewVerificationGate(cfg VerificationGateConfig) *VerificationGate {
	if cfg.ExemptRoutes == nil {
		cfg.ExemptRoutes = DefaultVerificationExemptRoutes
	}
	if cfg.Signal == nil {
		cfg.Signal = StatusSignal(http.StatusPreconditionRequired, DefaultSignalHeader)
	}
	if cfg.Events == nil {
		cfg.Events = event.Nop
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &VerificationGate{
		clearances: cfg.Clearances,
		queue:      cfg.Queue,
		flow:       cfg.Flow,
		events:     cfg.Events,
		exempt:     NewRouteSet(cfg.ExemptRoutes...),
		signal:     cfg.Signal,
		logger:     cfg.Logger,
		metrics:    cfg.Metrics,
	}
}

// SetRequired records whether the server currently requires verification.
func (g *VerificationGate) SetRequired(required bool) {
	g.required.Store(required)
}

// Required reports whether verification is currently required.
func (g *VerificationGate) Required() bool {
	return g.required.Load()
}

// IsDemand reports whether resp is a server demand for verification.
func (g *VerificationGate) IsDemand(resp *Response) bool {
	return g.signal(resp)
}

// Revoke marks verification required and drops the stored clearance.
func (g *VerificationGate) Revoke(ctx context.Context) {
	g.required.Store(true)
	if err := g.clearances.Clear(ctx); err != nil {
		ctxkey.Logger(ctx, g.logger).Error("failed to clear verification clearance", "error", err)
	}
}

// Wrap returns a Transport that gates calls to next.
func (g *VerificationGate) Wrap(next Transport) Transport {
	return TransportFunc(func(ctx context.Context, call *Call) (*Response, error) {
		if g.exempt.Contains(call) {
			return next.Do(ctx, call)
		}
		return g.do(ctx, call, next)
	})
}

func (g *VerificationGate) do(ctx context.Context, call *Call, next Transport) (*Response, error) {
	ctx, span := tracer.Start(ctx, "gate.verification", callAttributes(call))
	defer span.End()

	// The flow is begun under the queue lock, so a caller never starts a
	// challenge for an entry a concurrent grant has already drained.
	var started bool
	p, w, merged, held := g.queue.EnqueueIf(call, func() bool {
		if g.cleared(ctx) {
			return false
		}
		_, started = g.flow.Begin()
		return true
	})
	if held {
		return g.suspend(ctx, span, p, w, merged, started, "no_clearance")
	}

	resp, err := next.Do(ctx, call)
	if err != nil {
		return nil, err
	}
	if !g.signal(resp) {
		return resp, nil
	}

	// Revoke under the queue lock so the revocation and the enqueue are
	// ordered against any concurrent grant and drain.
	p, w, merged, _ = g.queue.EnqueueIf(call, func() bool {
		g.Revoke(ctx)
		_, started = g.flow.Begin()
		return true
	})
	return g.suspend(ctx, span, p, w, merged, started, "server_signal")
}

// cleared reports whether a call may be sent now.
func (g *VerificationGate) cleared(ctx context.Context) bool {
	if _, err := g.clearances.Get(ctx); err == nil {
		return true
	}
	return !g.required.Load()
}

func (g *VerificationGate) suspend(ctx context.Context, span trace.Span, p *PendingCall, w *Waiter, merged, started bool, cause string) (*Response, error) {
	g.metrics.verificationDemand(cause)
	span.RecordError(ErrVerificationRequired)
	span.SetAttributes(
		attribute.String("gate.verification.cause", cause),
		attribute.String("gate.verification.fingerprint", p.Fingerprint.String()),
		attribute.Bool("gate.verification.merged", merged),
	)
	ctxkey.Logger(ctx, g.logger).Debug("call suspended for verification",
		"method", p.Call.Method, "path", p.Call.Path, "fingerprint", p.Fingerprint.String(),
		"merged", merged, "cause", cause)

	if started {
		g.events.Emit(ctx, event.Event{Kind: event.VerificationRequired, PendingCount: g.queue.Len()})
	}

	select {
	case o := <-w.Done():
		return o.Response, o.Err
	case <-ctx.Done():
		g.queue.Detach(w)
		return nil, ctx.Err()
	}
}
