package gate

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/reelgate/reelgate/internal/domain/event"
)

// DemandRevoker recognises verification demands and revokes the clearance.
// Implemented by *VerificationGate.
type DemandRevoker interface {
	IsDemand(resp *Response) bool
	Revoke(ctx context.Context)
}

// RetryCoordinator replays suspended calls once verification is granted.
//
// Each drained entry is sent exactly once, in enqueue order, through the
// replay transport (the auth gate over the network, bypassing the
// verification gate). Every waiter merged onto an entry receives that
// replay's outcome. A failed replay settles only its own entry and is
// never queued again.
type RetryCoordinator struct {
	queue     *PendingQueue
	transport Transport
	demands   DemandRevoker
	logger    *slog.Logger
	metrics   *Metrics

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewRetryCoordinator creates a coordinator replaying through transport.
func NewRetryCoordinator(queue *PendingQueue, transport Transport, demands DemandRevoker, logger *slog.Logger, metrics *Metrics) *RetryCoordinator {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &RetryCoordinator{
		queue:     queue,
		transport: transport,
		demands:   demands,
		logger:    logger,
		metrics:   metrics,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Subscribe registers the coordinator for VerificationGranted on bus.
func (c *RetryCoordinator) Subscribe(bus *event.Bus) {
	bus.Subscribe(event.VerificationGranted, c.HandleGranted)
}

// HandleGranted drains the queue synchronously and replays the drained
// entries in the background.
func (c *RetryCoordinator) HandleGranted(_ context.Context, _ event.Event) {
	entries := c.queue.DrainAll()
	if len(entries) == 0 {
		return
	}
	c.logger.Info("replaying suspended calls", "count", len(entries))

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.Replay(c.ctx, entries)
	}()
}

// Replay sends each entry in order and settles it with the outcome.
func (c *RetryCoordinator) Replay(ctx context.Context, entries []*PendingCall) {
	for _, p := range entries {
		if p.Waiters() == 0 {
			c.logger.Debug("skipping abandoned call", "fingerprint", p.Fingerprint.String())
			c.metrics.replay("abandoned")
			continue
		}
		p.Settle(c.replayOne(ctx, p))
	}
}

func (c *RetryCoordinator) replayOne(ctx context.Context, p *PendingCall) Outcome {
	ctx, span := tracer.Start(ctx, "gate.replay", callAttributes(p.Call))
	defer span.End()
	span.SetAttributes(attribute.String("gate.verification.fingerprint", p.Fingerprint.String()))

	resp, err := c.transport.Do(ctx, p.Call)
	var result string
	switch {
	case errors.Is(err, ErrAuthenticationExpired):
		result = "auth_error"
	case err != nil:
		result = "network_error"
	case c.demands.IsDemand(resp):
		c.demands.Revoke(ctx)
		err = ErrVerificationRenewed
		result = "verification_renewed"
	default:
		result = "ok"
	}

	c.metrics.replay(result)
	c.logger.Debug("replayed call", "method", p.Call.Method, "path", p.Call.Path,
		"fingerprint", p.Fingerprint.String(), "result", result)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, result)
		return Outcome{Err: err}
	}
	return Outcome{Response: resp}
}

// Wait blocks until every replay batch started so far has finished.
func (c *RetryCoordinator) Wait() {
	c.wg.Wait()
}

// Close cancels in-progress replays and waits for them to finish. Entries
// not yet replayed settle with the cancellation error from the transport.
func (c *RetryCoordinator) Close() {
	c.cancel()
	c.wg.Wait()
}
