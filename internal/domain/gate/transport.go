// Package gate implements the request-gating engine: every outgoing API
// call passes an authentication gate and a human-verification gate, and
// calls blocked on verification wait in a queue until a replay after the
// challenge is solved.
package gate

import (
	"context"
	"net/http"
	"strings"
)

// Call describes one outgoing API request. It is plain data so a suspended
// call can be fingerprinted, logged and replayed.
type Call struct {
	Method string
	// Path is the request path including any query string, relative to the API base URL.
	Path   string
	Body   []byte
	Header http.Header
	// SkipAuthInvalidation exempts this call from session invalidation on 401.
	SkipAuthInvalidation bool
}

// Clone returns a deep copy of c.
func (c *Call) Clone() *Call {
	out := *c
	if c.Body != nil {
		out.Body = append([]byte(nil), c.Body...)
	}
	out.Header = c.Header.Clone()
	if out.Header == nil {
		out.Header = http.Header{}
	}
	return &out
}

// Route returns the "METHOD /path" form used by route sets, without the query.
func (c *Call) Route() string {
	path := c.Path
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	return strings.ToUpper(c.Method) + " " + path
}

// Response is a completed API response with its body fully read.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Transport performs a Call. Gates are Transports that wrap another Transport.
type Transport interface {
	// Do performs call and returns the response. Any HTTP status is a
	// response; only transport-level failures are errors.
	Do(ctx context.Context, call *Call) (*Response, error)
}

// TransportFunc is an adapter to allow the use of ordinary functions as
// Transports, like http.HandlerFunc.
type TransportFunc func(ctx context.Context, call *Call) (*Response, error)

// Do calls f(ctx, call).
func (f TransportFunc) Do(ctx context.Context, call *Call) (*Response, error) {
	return f(ctx, call)
}

var _ Transport = TransportFunc(nil)

// RouteSet is a set of "METHOD /path" routes.
type RouteSet map[string]struct{}

// NewRouteSet builds a set from "METHOD /path" strings. Methods are
// case-insensitive.
func NewRouteSet(routes ...string) RouteSet {
	s := make(RouteSet, len(routes))
	for _, r := range routes {
		method, path, ok := strings.Cut(strings.TrimSpace(r), " ")
		if !ok {
			continue
		}
		s[strings.ToUpper(method)+" "+strings.TrimSpace(path)] = struct{}{}
	}
	return s
}

// Contains reports whether call's route is in the set.
func (s RouteSet) Contains(call *Call) bool {
	_, ok := s[call.Route()]
	return ok
}
