// Package httpd is a concurrent HTTP/1.1 + WebSocket server: wire-level
// codecs, a connection state machine generic over plain/TLS streams, a
// router with middleware and conditional static files, and a pluggable
// rate limiter, assembled by the orchestrator in this package.
package httpd

import (
	"github.com/corehttp/httpd/pkg/config"
	"github.com/corehttp/httpd/pkg/httpmsg"
	"github.com/corehttp/httpd/pkg/ratelimit"
	"github.com/corehttp/httpd/pkg/router"
	"github.com/corehttp/httpd/pkg/server"
	"github.com/corehttp/httpd/pkg/stats"
	"github.com/corehttp/httpd/pkg/wsconn"
)

// Version is the current version of the httpd server.
const Version = "1.0.0"

// Re-export the types a caller needs to assemble a server, the way the
// teacher's rawhttp.go re-exports client/buffer/transport types.
type (
	// Config is the server's JSON-loadable configuration.
	Config = config.Config

	// Router holds routes, middleware, and static-file configuration.
	Router = router.Router

	// Request is a parsed HTTP/1.1 request.
	Request = httpmsg.Request

	// Response is a server-constructed HTTP/1.1 response.
	Response = httpmsg.Response

	// Handler processes a request and returns a response.
	Handler = router.Handler

	// WebSocketHandler builds the event handlers for an upgraded
	// WebSocket connection.
	WebSocketHandler = router.WebSocketHandler

	// WSHandlers is the {text, binary, close, error} handler table for an
	// upgraded WebSocket connection.
	WSHandlers = wsconn.Handlers

	// WSConnection is a single upgraded WebSocket connection.
	WSConnection = wsconn.Connection

	// Server is the orchestrator: listeners, accept loop, statistics.
	Server = server.Server

	// RateLimiter is the pluggable request-rate limiter.
	RateLimiter = ratelimit.RateLimiter

	// Stats holds the live atomic server counters.
	Stats = stats.Stats
)

// NewRouter returns an empty Router.
func NewRouter() *Router {
	return router.New()
}

// DefaultConfig returns a Config populated with the server's default
// values, ready to be customized before NewServer.
func DefaultConfig() *Config {
	return config.Default()
}

// NewResponse builds a Response with the given status and canonical
// reason phrase, HTTP/1.1, and no body.
func NewResponse(statusCode int) *Response {
	return httpmsg.NewResponse(statusCode)
}

// NewServer builds a Server from cfg and rt. If cfg.RateLimiter.Enabled,
// the caller should build a RateLimiter via NewRateLimiter and wire it
// into rt before calling NewServer (pkg/server.BuildRouter does this for
// a caller that prefers a single entry point).
func NewServer(cfg *Config, rt *Router) *Server {
	return server.New(cfg, rt, nil)
}

// NewRateLimiter builds the configured rate-limit algorithm and key
// function from cfg.RateLimiter and wraps them in a RateLimiter.
func NewRateLimiter(cfg *Config) *RateLimiter {
	return ratelimit.FromConfig(cfg.RateLimiter)
}
