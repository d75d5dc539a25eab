// Package api talks to the video directory's REST API: a net/http
// transport at the bottom of the gate chain, and typed clients for the
// endpoints the client uses.
package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/reelgate/reelgate/internal/domain/gate"
)

// DefaultTimeout bounds a single request when no http.Client is supplied.
const DefaultTimeout = 15 * time.Second

// DefaultMaxResponseBytes caps how much of a response body is read.
const DefaultMaxResponseBytes = 10 << 20

// ErrResponseTooLarge is wrapped in the *gate.NetworkError returned for a
// response body over the configured limit.
var ErrResponseTooLarge = errors.New("response body too large")

// HTTPTransport sends calls to the API over HTTP. It is the innermost
// transport of the gate chain; the gates impose no timeout of their own.
type HTTPTransport struct {
	baseURL    *url.URL
	httpClient *http.Client
	userAgent  string
	logger     *slog.Logger
	metrics    *instruments
	maxBody    int64
}

// Option configures an HTTPTransport.
type Option func(*HTTPTransport)

// WithHTTPClient sets the underlying HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(t *HTTPTransport) {
		t.httpClient = c
	}
}

// WithTimeout sets the request timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(t *HTTPTransport) {
		t.httpClient = &http.Client{Timeout: d}
	}
}

// WithUserAgent sets the User-Agent header sent on every request.
func WithUserAgent(ua string) Option {
	return func(t *HTTPTransport) {
		t.userAgent = ua
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(t *HTTPTransport) {
		t.logger = l
	}
}

// WithMaxResponseBytes sets the largest response body accepted.
func WithMaxResponseBytes(n int64) Option {
	return func(t *HTTPTransport) {
		t.maxBody = n
	}
}

// WithMeterProvider sets where request metrics are recorded. Default: the
// global otel meter provider.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(t *HTTPTransport) {
		t.metrics = newInstruments(mp)
	}
}

// NewHTTPTransport creates a transport for the API at baseURL.
func NewHTTPTransport(baseURL string, opts ...Option) (*HTTPTransport, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("base url %q: scheme must be http or https", baseURL)
	}

	t := &HTTPTransport{
		baseURL:   u,
		userAgent: "reelgate",
		logger:    slog.Default(),
		maxBody:   DefaultMaxResponseBytes,
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.metrics == nil {
		t.metrics = newInstruments(otel.GetMeterProvider())
	}
	if t.httpClient == nil {
		t.httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	return t, nil
}

// Do sends call and reads the whole response. Any status code is returned
// as a response. Transport failures, timeouts, oversized bodies and requests
// that cannot be built are *gate.NetworkError.
func (t *HTTPTransport) Do(ctx context.Context, call *gate.Call) (*gate.Response, error) {
	netErr := func(err error) error {
		return &gate.NetworkError{Method: call.Method, Path: call.Path, Err: err}
	}

	var body io.Reader
	if len(call.Body) > 0 {
		body = bytes.NewReader(call.Body)
	}
	req, err := http.NewRequestWithContext(ctx, call.Method, t.baseURL.String()+call.Path, body)
	if err != nil {
		t.metrics.recordFailure(ctx, call.Method)
		return nil, netErr(fmt.Errorf("build request: %w", err))
	}
	for k, vs := range call.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if body != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", t.userAgent)

	start := time.Now()
	resp, err := t.httpClient.Do(req)
	if err != nil {
		t.metrics.recordFailure(ctx, call.Method)
		return nil, netErr(err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, t.maxBody+1))
	if err != nil {
		t.metrics.recordFailure(ctx, call.Method)
		return nil, netErr(fmt.Errorf("read response: %w", err))
	}
	if int64(len(data)) > t.maxBody {
		t.metrics.recordFailure(ctx, call.Method)
		return nil, netErr(fmt.Errorf("%w: over %d bytes", ErrResponseTooLarge, t.maxBody))
	}
	t.metrics.recordResponse(ctx, call.Method, resp.StatusCode, time.Since(start))

	t.logger.Debug("api call", "method", call.Method, "path", call.Path,
		"status", resp.StatusCode, "duration", time.Since(start))

	return &gate.Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       data,
	}, nil
}

var _ gate.Transport = (*HTTPTransport)(nil)
