// Package config provides the configuration schema of the reelgate client.
//
// Configuration comes from reelgate.yaml (or .yml) and REELGATE_* environment
// variables. Durations are strings in time.ParseDuration syntax.
package config

import (
	"os"
	"path/filepath"
	"time"
)

// Config is the top-level configuration.
type Config struct {
	// API configures the directory API the client talks to.
	API APIConfig `yaml:"api" mapstructure:"api"`

	// Storage configures where the session and verification clearance persist.
	Storage StorageConfig `yaml:"storage" mapstructure:"storage"`

	// Auth configures the authentication gate.
	Auth AuthConfig `yaml:"auth" mapstructure:"auth"`

	// Verification configures the verification gate and challenge flow.
	Verification VerificationConfig `yaml:"verification" mapstructure:"verification"`

	// Events configures where engine events are forwarded.
	Events EventsConfig `yaml:"events" mapstructure:"events"`

	// Metrics configures the optional Prometheus endpoint.
	Metrics MetricsConfig `yaml:"metrics" mapstructure:"metrics"`

	// Trace enables span export to stderr.
	Trace TraceConfig `yaml:"trace" mapstructure:"trace"`

	// LogLevel is one of debug, info, warn, error. Default: warn.
	LogLevel string `yaml:"log_level" mapstructure:"log_level" validate:"omitempty,oneof=debug info warn error"`

	// DevMode turns on debug logging.
	DevMode bool `yaml:"dev_mode" mapstructure:"dev_mode"`
}

// APIConfig configures the directory API.
type APIConfig struct {
	// BaseURL is the API root, e.g. https://videos.example.com/api.
	BaseURL string `yaml:"base_url" mapstructure:"base_url" validate:"required,url,startswith=http"`
	// Timeout bounds each request. Default: 15s.
	Timeout string `yaml:"timeout" mapstructure:"timeout" validate:"omitempty,duration"`
	// UserAgent is sent on every request. Default: reelgate.
	UserAgent string `yaml:"user_agent" mapstructure:"user_agent"`
}

// StorageConfig configures the key/value backend.
type StorageConfig struct {
	// Backend is one of memory, file, sqlite, redis. Default: file.
	Backend string `yaml:"backend" mapstructure:"backend" validate:"omitempty,oneof=memory file sqlite redis"`
	// Path is the state file (file) or database (sqlite).
	// Default: ~/.reelgate/state.json or ~/.reelgate/state.db.
	Path string `yaml:"path" mapstructure:"path"`
	// RedisURL is required for the redis backend.
	RedisURL string `yaml:"redis_url" mapstructure:"redis_url" validate:"omitempty,url"`
	// KeyPrefix namespaces redis keys. Default: reelgate:.
	KeyPrefix string `yaml:"key_prefix" mapstructure:"key_prefix"`
}

// AuthConfig configures the authentication gate.
type AuthConfig struct {
	// ExemptRoutes are "METHOD /path" routes whose 401 never clears the
	// session. Default: POST /auth/login, POST /auth/register.
	ExemptRoutes []string `yaml:"exempt_routes" mapstructure:"exempt_routes" validate:"omitempty,dive,route"`
}

// VerificationConfig configures the verification gate.
type VerificationConfig struct {
	// ExemptRoutes are never held for verification. Default: the three
	// /verification endpoints.
	ExemptRoutes []string `yaml:"exempt_routes" mapstructure:"exempt_routes" validate:"omitempty,dive,route"`
	// MaxAttempts per challenge flow. Default: 3.
	MaxAttempts int `yaml:"max_attempts" mapstructure:"max_attempts" validate:"omitempty,min=1,max=10"`
	// SignalStatus is the HTTP status meaning "verification required". Default: 428.
	SignalStatus int `yaml:"signal_status" mapstructure:"signal_status" validate:"omitempty,min=400,max=599"`
	// SignalHeader is a response header whose truthy value means
	// "verification required". Default: X-Verification-Required.
	SignalHeader string `yaml:"signal_header" mapstructure:"signal_header"`
}

// EventsConfig configures event forwarding.
type EventsConfig struct {
	// Backend is one of none, gochannel, redis. Default: gochannel.
	Backend string `yaml:"backend" mapstructure:"backend" validate:"omitempty,oneof=none gochannel redis"`
	// RedisURL is required for the redis backend.
	RedisURL string `yaml:"redis_url" mapstructure:"redis_url" validate:"omitempty,url"`
	// TopicPrefix is prepended to event kinds. Default: reelgate.
	TopicPrefix string `yaml:"topic_prefix" mapstructure:"topic_prefix"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	// Addr is the listen address for /metrics. Empty disables it.
	Addr string `yaml:"addr" mapstructure:"addr" validate:"omitempty,hostname_port"`
}

// TraceConfig configures tracing.
type TraceConfig struct {
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
}

// SetDefaults applies default values for optional fields.
func (c *Config) SetDefaults() {
	if c.API.Timeout == "" {
		c.API.Timeout = "15s"
	}
	if c.API.UserAgent == "" {
		c.API.UserAgent = "reelgate"
	}

	if c.Storage.Backend == "" {
		c.Storage.Backend = "file"
	}
	if c.Storage.Path == "" {
		switch c.Storage.Backend {
		case "file":
			c.Storage.Path = filepath.Join(stateDir(), "state.json")
		case "sqlite":
			c.Storage.Path = filepath.Join(stateDir(), "state.db")
		}
	}
	if c.Storage.KeyPrefix == "" {
		c.Storage.KeyPrefix = "reelgate:"
	}

	if c.Auth.ExemptRoutes == nil {
		c.Auth.ExemptRoutes = []string{"POST /auth/login", "POST /auth/register"}
	}

	if c.Verification.ExemptRoutes == nil {
		c.Verification.ExemptRoutes = []string{
			"GET /verification/check-required",
			"GET /verification/challenge",
			"POST /verification/solve",
		}
	}
	if c.Verification.MaxAttempts == 0 {
		c.Verification.MaxAttempts = 3
	}
	if c.Verification.SignalStatus == 0 {
		c.Verification.SignalStatus = 428
	}
	if c.Verification.SignalHeader == "" {
		c.Verification.SignalHeader = "X-Verification-Required"
	}

	if c.Events.Backend == "" {
		c.Events.Backend = "gochannel"
	}
	if c.Events.TopicPrefix == "" {
		c.Events.TopicPrefix = "reelgate."
	}

	if c.LogLevel == "" {
		c.LogLevel = "warn"
	}
}

// SetDevDefaults applies development-mode overrides.
func (c *Config) SetDevDefaults() {
	if c.DevMode {
		c.LogLevel = "debug"
	}
}

// APITimeout returns the parsed API timeout. Call after Validate.
func (c *Config) APITimeout() time.Duration {
	d, err := time.ParseDuration(c.API.Timeout)
	if err != nil {
		return 15 * time.Second
	}
	return d
}

// stateDir is ~/.reelgate, or the working directory if home is unknown.
func stateDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".reelgate"
	}
	return filepath.Join(home, ".reelgate")
}
