package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/reelgate/reelgate/internal/adapter/outbound/api"
	"github.com/reelgate/reelgate/internal/adapter/outbound/events"
	"github.com/reelgate/reelgate/internal/config"
	"github.com/reelgate/reelgate/internal/ctxkey"
	"github.com/reelgate/reelgate/internal/domain/event"
	"github.com/reelgate/reelgate/internal/domain/gate"
	"github.com/reelgate/reelgate/internal/service"
)

// app is one CLI invocation's engine and the infrastructure behind it.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	engine *service.Engine

	// demands receives one value per VerificationRequired event.
	demands chan struct{}

	closers []func(context.Context) error
}

// loadConfig loads the config and applies the global flags.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfigRaw()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if debug {
		cfg.DevMode = true
	}
	if traceOutput {
		cfg.Trace.Enabled = true
	}
	if metricsAddr != "" {
		cfg.Metrics.Addr = metricsAddr
	}
	cfg.SetDevDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// openApp builds the engine from the config. With bootstrap set it also
// asks the server whether verification is required; a failure there is
// logged and the gate starts permissive.
func openApp(ctx context.Context, bootstrap bool) (a *app, err error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}))
	if configFile := config.ConfigFileUsed(); configFile != "" {
		logger.Debug("loaded config", "file", configFile)
	}

	a = &app{cfg: cfg, logger: logger, demands: make(chan struct{}, 1)}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	if cfg.Trace.Enabled {
		shutdown, err := setupTelemetry(os.Stderr)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, shutdown)
	}

	kv, closeStore, err := openStore(ctx, cfg.Storage, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s storage: %w", cfg.Storage.Backend, err)
	}
	a.closers = append(a.closers, func(context.Context) error { return closeStore() })

	network, err := api.NewHTTPTransport(cfg.API.BaseURL,
		api.WithTimeout(cfg.APITimeout()),
		api.WithUserAgent(cfg.API.UserAgent),
		api.WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}

	reg := newRegistry()
	if cfg.Metrics.Addr != "" {
		shutdown, err := serveMetrics(cfg.Metrics.Addr, reg)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, shutdown)
		logger.Info("serving metrics", "addr", cfg.Metrics.Addr)
	}

	a.engine, err = service.NewEngine(service.Deps{
		Store:      kv,
		Network:    network,
		Registerer: reg,
		Logger:     logger,
	}, service.Options{
		AuthExemptRoutes:         cfg.Auth.ExemptRoutes,
		VerificationExemptRoutes: cfg.Verification.ExemptRoutes,
		MaxAttempts:              cfg.Verification.MaxAttempts,
		Signal:                   gate.StatusSignal(cfg.Verification.SignalStatus, cfg.Verification.SignalHeader),
	})
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func(context.Context) error {
		a.engine.Close()
		return nil
	})

	if err := a.wireEvents(ctx); err != nil {
		return nil, err
	}

	if bootstrap {
		if _, err := a.engine.Bootstrap(ctx); err != nil {
			logger.Warn("could not check verification requirement", "error", err)
		}
	}
	return a, nil
}

// wireEvents forwards engine events to the configured backend and feeds
// a.demands. With the in-process backend the demands are read back from
// its subscription; otherwise straight from the engine bus.
func (a *app) wireEvents(ctx context.Context) error {
	sink, err := openEventSink(ctx, a.cfg)
	if err != nil {
		return fmt.Errorf("failed to open %s event backend: %w", a.cfg.Events.Backend, err)
	}
	if sink != nil {
		a.closers = append(a.closers, func(context.Context) error { return sink.close() })
		events.NewForwarder(sink.pub, a.cfg.Events.TopicPrefix, a.logger).Attach(a.engine.Events())
	}

	if sink == nil || sink.sub == nil {
		a.engine.Subscribe(event.VerificationRequired, func(context.Context, event.Event) {
			a.notifyDemand()
		})
		return nil
	}

	msgs, err := sink.sub.Subscribe(ctx, events.Topic(a.cfg.Events.TopicPrefix, event.VerificationRequired))
	if err != nil {
		return fmt.Errorf("failed to subscribe to verification events: %w", err)
	}
	go func() {
		for msg := range msgs {
			if e, err := events.Decode(msg); err == nil {
				a.logger.Debug("verification required", "pending", e.PendingCount)
			}
			msg.Ack()
			a.notifyDemand()
		}
	}()
	return nil
}

func (a *app) notifyDemand() {
	select {
	case a.demands <- struct{}{}:
	default:
	}
}

// Close releases everything in reverse order of acquisition.
func (a *app) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			a.logger.Debug("shutdown step failed", "error", err)
		}
	}
	a.closers = nil
}

// run executes fn, answering verification challenges on the terminal
// whenever fn's calls are held for verification.
func (a *app) run(ctx context.Context, fn func(context.Context) error) error {
	ctx = ctxkey.WithLogger(ctx, a.logger.With("run_id", uuid.NewString()))
	done := make(chan error, 1)
	go func() { done <- fn(ctx) }()

	p := newPrompter(os.Stdin, os.Stderr)
	for {
		select {
		case err := <-done:
			return err
		case <-a.demands:
			if err := p.solve(ctx, a.engine); err != nil && !errors.Is(err, gate.ErrCancelledByPurge) {
				// Held calls would wait forever; fail them.
				a.engine.CancelVerification()
				<-done
				return err
			}
		}
	}
}

// parseLogLevel converts a config log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
