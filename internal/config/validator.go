package config

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// RegisterCustomValidators registers reelgate-specific validation rules.
// Must be called before validating Config.
func RegisterCustomValidators(v *validator.Validate) error {
	// route: "METHOD /path"
	if err := v.RegisterValidation("route", validateRoute); err != nil {
		return fmt.Errorf("failed to register route validator: %w", err)
	}
	if err := v.RegisterValidation("duration", validateDuration); err != nil {
		return fmt.Errorf("failed to register duration validator: %w", err)
	}
	return nil
}

var knownMethods = map[string]bool{
	http.MethodGet:    true,
	http.MethodHead:   true,
	http.MethodPost:   true,
	http.MethodPut:    true,
	http.MethodPatch:  true,
	http.MethodDelete: true,
}

// validateRoute accepts "GET /videos" style route keys.
func validateRoute(fl validator.FieldLevel) bool {
	method, path, ok := ParseRoute(fl.Field().String())
	return ok && knownMethods[method] && strings.HasPrefix(path, "/")
}

// validateDuration accepts positive time.ParseDuration strings.
func validateDuration(fl validator.FieldLevel) bool {
	d, err := time.ParseDuration(fl.Field().String())
	return err == nil && d > 0
}

// ParseRoute splits a "METHOD /path" route key.
func ParseRoute(route string) (method, path string, ok bool) {
	fields := strings.Fields(route)
	if len(fields) != 2 {
		return "", "", false
	}
	return strings.ToUpper(fields[0]), fields[1], true
}

// Validate validates the Config using struct tags and custom cross-field rules.
// Returns an error if validation fails, with actionable error messages.
func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())

	if err := RegisterCustomValidators(v); err != nil {
		return err
	}

	if err := v.Struct(c); err != nil {
		return formatValidationErrors(err)
	}

	if err := c.validateRedisURLs(); err != nil {
		return err
	}

	return nil
}

// validateRedisURLs requires a URL for every section using the redis backend.
func (c *Config) validateRedisURLs() error {
	if c.Storage.Backend == "redis" && c.Storage.RedisURL == "" {
		return errors.New("storage: redis_url is required when backend is redis")
	}
	if c.Events.Backend == "redis" && c.Events.RedisURL == "" && c.Storage.RedisURL == "" {
		return errors.New("events: redis_url is required when backend is redis")
	}
	return nil
}

// EventsRedisURL is events.redis_url, falling back to storage.redis_url.
func (c *Config) EventsRedisURL() string {
	if c.Events.RedisURL != "" {
		return c.Events.RedisURL
	}
	return c.Storage.RedisURL
}

// formatValidationErrors converts validator.ValidationErrors to user-friendly messages.
func formatValidationErrors(err error) error {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		var messages []string
		for _, e := range validationErrors {
			messages = append(messages, formatSingleValidationError(e))
		}
		return errors.New(strings.Join(messages, "; "))
	}
	return err
}

// formatSingleValidationError creates a user-friendly message for a single validation error.
func formatSingleValidationError(e validator.FieldError) string {
	field := e.Namespace()
	tag := e.Tag()

	switch tag {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, e.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, e.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, e.Param())
	case "startswith":
		return fmt.Sprintf("%s must start with %q", field, e.Param())
	case "url":
		return fmt.Sprintf("%s must be a valid URL", field)
	case "hostname_port":
		return fmt.Sprintf("%s must be a valid host:port", field)
	case "route":
		return fmt.Sprintf("%s must look like 'METHOD /path', got %q", field, e.Value())
	case "duration":
		return fmt.Sprintf("%s must be a positive duration like '15s'", field)
	default:
		return fmt.Sprintf("%s failed validation: %s", field, tag)
	}
}
