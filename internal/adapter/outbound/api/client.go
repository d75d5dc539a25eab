package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/reelgate/reelgate/internal/domain/gate"
)

// StatusError is returned by the typed clients for an unexpected HTTP status.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	// Message is the server's "error" field, when present.
	Message string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s %s: HTTP %d: %s", e.Method, e.Path, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s %s: HTTP %d", e.Method, e.Path, e.StatusCode)
}

// IsStatus reports whether err is a *StatusError with the given code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == code
}

// doJSON sends a JSON call through t and decodes a 2xx body into out.
// out may be nil.
func doJSON(ctx context.Context, t gate.Transport, call *gate.Call, in, out any) error {
	if in != nil {
		body, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		call.Body = body
		if call.Header == nil {
			call.Header = http.Header{}
		}
		call.Header.Set("Content-Type", "application/json")
	}

	resp, err := t.Do(ctx, call)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		se := &StatusError{Method: call.Method, Path: call.Path, StatusCode: resp.StatusCode}
		var body struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(resp.Body, &body) == nil {
			se.Message = body.Error
		}
		return se
	}
	if out == nil || len(resp.Body) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Body, out); err != nil {
		return fmt.Errorf("decode %s %s response: %w", call.Method, call.Path, err)
	}
	return nil
}
