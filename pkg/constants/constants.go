// Package constants defines magic numbers and default values used throughout httpd.
package constants

import "time"

// Connection timeouts (spec.md §5 "Timeouts")
const (
	// KeepAliveTimeout is the inactivity timeout armed on a new HTTP connection.
	KeepAliveTimeout = 30 * time.Second
	// WebSocketInactivityTimeout closes a WebSocket connection that has received
	// no frame (including PONG) for this long.
	WebSocketInactivityTimeout = 60 * time.Second
	// WebSocketPingInterval is how often an unsolicited PING is sent.
	WebSocketPingInterval = 30 * time.Second
	// CloseLinger is how long close(code, reason) waits before closing the
	// socket, to let the peer's final TCP ACK land.
	CloseLinger = 100 * time.Millisecond
	// RateLimiterCleanupInterval is the background cleanup worker's sleep period.
	RateLimiterCleanupInterval = 5 * time.Minute
	// RateLimiterIdleTTL is how long a per-key rate-limit entry survives with
	// no activity before cleanup purges it.
	RateLimiterIdleTTL = 1 * time.Hour
)

// Buffer and body limits (spec.md §3, §4.3, §5 "Resource limits")
const (
	// ReadChunkSize is how much the Connection reads per socket Read call.
	ReadChunkSize = 8 * 1024
	// MaxRequestBufferSize is the hard cap on the growing per-connection read
	// buffer before a complete request is assembled (413 beyond this).
	MaxRequestBufferSize = 1 * 1024 * 1024
	// MaxBodySize is the hard cap on a parsed request body.
	MaxBodySize = 10 * 1024 * 1024
	// DefaultMaxWebSocketFrameSize is the default cap on a single WS frame payload.
	DefaultMaxWebSocketFrameSize = 1 * 1024 * 1024
	// MaxControlFramePayload is the RFC 6455 cap on CLOSE/PING/PONG payloads.
	MaxControlFramePayload = 125
	// StreamChunkSize is the chunk size used when streaming a body-stream
	// response (e.g. static files) back to the client.
	StreamChunkSize = 8 * 1024
	// DefaultBodyMemLimit is the in-memory threshold of pkg/buffer.Buffer
	// before it spills to a temp file.
	DefaultBodyMemLimit = 4 * 1024 * 1024
)

// Compression thresholds (spec.md §4.4 "Post-dispatch")
const (
	DefaultCompressionMinSize  = 1024
	DefaultCompressionLevel    = 6
)

// Static file defaults (spec.md §4.4 "Static file")
const (
	DefaultCacheControl = "public, max-age=3600"
)

// Server identification (spec.md §4.1 "Serialize")
const ServerHeader = "corehttp/1.0"
