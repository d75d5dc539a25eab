// Package events forwards engine notifications onto a watermill publisher,
// so UI processes and other consumers can react to them asynchronously.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/reelgate/reelgate/internal/domain/event"
)

// DefaultTopicPrefix is prepended to the event kind to form the topic.
const DefaultTopicPrefix = "reelgate."

// Topic returns the topic events of kind k are published on.
func Topic(prefix string, k event.Kind) string {
	return prefix + string(k)
}

// Forwarder publishes every event it receives as a JSON watermill message.
type Forwarder struct {
	publisher message.Publisher
	prefix    string
	logger    *slog.Logger
}

// NewForwarder creates a forwarder. An empty prefix uses DefaultTopicPrefix.
func NewForwarder(publisher message.Publisher, prefix string, logger *slog.Logger) *Forwarder {
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Forwarder{publisher: publisher, prefix: prefix, logger: logger}
}

// Attach subscribes the forwarder to every event on bus.
func (f *Forwarder) Attach(bus *event.Bus) {
	bus.SubscribeAll(f.Emit)
}

// Emit publishes e. Publishing failures are logged; the engine never
// waits on its observers.
func (f *Forwarder) Emit(ctx context.Context, e event.Event) {
	if err := f.Publish(ctx, e); err != nil {
		f.logger.Warn("failed to forward event", "kind", e.Kind, "error", err)
	}
}

// Publish marshals e and publishes it on its topic.
func (f *Forwarder) Publish(ctx context.Context, e event.Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := message.NewMessage(uuid.NewString(), payload)
	msg.Metadata.Set("kind", string(e.Kind))
	msg.SetContext(ctx)

	if err := f.publisher.Publish(Topic(f.prefix, e.Kind), msg); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

// Decode parses a message published by a Forwarder.
func Decode(msg *message.Message) (event.Event, error) {
	var e event.Event
	if err := json.Unmarshal(msg.Payload, &e); err != nil {
		return event.Event{}, fmt.Errorf("failed to decode event: %w", err)
	}
	return e, nil
}

var _ event.Emitter = (*Forwarder)(nil)

// NewGoChannel returns an in-process pub/sub for consumers living in the
// same process as the engine.
func NewGoChannel() *gochannel.GoChannel {
	return gochannel.NewGoChannel(
		gochannel.Config{OutputChannelBuffer: 64},
		watermill.NewStdLogger(false, false),
	)
}

// NewRedisStreamPublisher returns a publisher writing to Redis streams.
func NewRedisStreamPublisher(client *goredis.Client) (message.Publisher, error) {
	pub, err := redisstream.NewPublisher(
		redisstream.PublisherConfig{Client: client},
		watermill.NewStdLogger(false, false),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create redis stream publisher: %w", err)
	}
	return pub, nil
}
