package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/reelgate/reelgate/internal/adapter/outbound/events"
	"github.com/reelgate/reelgate/internal/adapter/outbound/memory"
	redisstore "github.com/reelgate/reelgate/internal/adapter/outbound/redis"
	"github.com/reelgate/reelgate/internal/adapter/outbound/sqlite"
	"github.com/reelgate/reelgate/internal/adapter/outbound/state"
	"github.com/reelgate/reelgate/internal/config"
	"github.com/reelgate/reelgate/internal/port/outbound"
)

// openStore opens the configured key/value backend. The returned close
// function is never nil.
func openStore(ctx context.Context, cfg config.StorageConfig, logger *slog.Logger) (outbound.KeyValueStore, func() error, error) {
	nop := func() error { return nil }

	switch cfg.Backend {
	case "memory":
		logger.Warn("memory storage: session and clearance are lost on exit")
		return memory.NewKVStore(), nop, nil

	case "sqlite":
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o700); err != nil {
			return nil, nop, fmt.Errorf("failed to create state directory: %w", err)
		}
		s, err := sqlite.Open(ctx, cfg.Path)
		if err != nil {
			return nil, nop, err
		}
		return s, s.Close, nil

	case "redis":
		client, err := redisstore.NewClient(ctx, cfg.RedisURL)
		if err != nil {
			return nil, nop, err
		}
		return redisstore.NewKVStore(client, cfg.KeyPrefix), client.Close, nil

	default:
		return state.NewFileStore(cfg.Path, logger), nop, nil
	}
}

// eventSink is where engine events are forwarded. sub is non-nil only for
// the in-process backend, whose messages this process consumes itself.
type eventSink struct {
	pub   message.Publisher
	sub   message.Subscriber
	close func() error
}

// openEventSink opens the configured event backend. A nil sink means
// events are not forwarded.
func openEventSink(ctx context.Context, cfg *config.Config) (*eventSink, error) {
	switch cfg.Events.Backend {
	case "none":
		return nil, nil

	case "redis":
		client, err := redisstore.NewClient(ctx, cfg.EventsRedisURL())
		if err != nil {
			return nil, err
		}
		pub, err := events.NewRedisStreamPublisher(client)
		if err != nil {
			_ = client.Close()
			return nil, err
		}
		return &eventSink{pub: pub, close: func() error {
			_ = pub.Close()
			return client.Close()
		}}, nil

	default:
		gc := events.NewGoChannel()
		return &eventSink{pub: gc, sub: gc, close: gc.Close}, nil
	}
}
