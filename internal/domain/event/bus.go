package event

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Handler receives events delivered by a Bus.
type Handler func(ctx context.Context, e Event)

// Bus is a synchronous fan-out Emitter. Emit runs every handler subscribed
// to the event's kind (and every catch-all handler) in subscription order
// before returning, so a handler observes the state that produced the event.
type Bus struct {
	mu       sync.RWMutex
	handlers map[Kind][]Handler
	all      []Handler
	now      func() time.Time
	logger   *slog.Logger
}

// NewBus creates an empty bus.
func NewBus(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		handlers: make(map[Kind][]Handler),
		now:      time.Now,
		logger:   logger,
	}
}

// Subscribe registers h for events of kind k.
func (b *Bus) Subscribe(k Kind, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[k] = append(b.handlers[k], h)
}

// SubscribeAll registers h for every event.
func (b *Bus) SubscribeAll(h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.all = append(b.all, h)
}

// Emit delivers e. A zero At is stamped with the current time.
func (b *Bus) Emit(ctx context.Context, e Event) {
	if e.At.IsZero() {
		e.At = b.now().UTC()
	}

	b.mu.RLock()
	hs := make([]Handler, 0, len(b.handlers[e.Kind])+len(b.all))
	hs = append(hs, b.handlers[e.Kind]...)
	hs = append(hs, b.all...)
	b.mu.RUnlock()

	b.logger.Debug("event", "kind", e.Kind, "pending", e.PendingCount,
		"attempts_remaining", e.AttemptsRemaining, "handlers", len(hs))

	for _, h := range hs {
		h(ctx, e)
	}
}

var _ Emitter = (*Bus)(nil)
