// Package conn implements the per-socket HTTP/1.1 connection state
// machine (spec.md §4.3): read-assemble-dispatch-respond, keep-alive,
// and handoff to a WebSocket connection on a successful upgrade.
package conn

import (
	"fmt"
	"io"
	"log"
	"time"

	"github.com/corehttp/httpd/pkg/constants"
	httpderrors "github.com/corehttp/httpd/pkg/errors"
	"github.com/corehttp/httpd/pkg/httpmsg"
	"github.com/corehttp/httpd/pkg/router"
	"github.com/corehttp/httpd/pkg/stats"
	"github.com/corehttp/httpd/pkg/stream"
	"github.com/corehttp/httpd/pkg/timing"
	"github.com/corehttp/httpd/pkg/wsconn"
)

// State is the connection's position in spec.md §4.3's state machine:
// AwaitingRequest -> Processing -> WritingHeaders -> WritingBody ->
// (keep-alive ? AwaitingRequest : Closing).
type State int

const (
	StateAwaitingRequest State = iota
	StateProcessing
	StateWritingHeaders
	StateWritingBody
	StateClosing
)

// errConnDone signals a quiet end of the request loop (EOF, reset, idle
// timeout) that needs no error response.
var errConnDone = io.EOF

// Connection owns one socket (plain or TLS, via the stream.Stream
// capability rather than an inheritance hierarchy) and drives it through
// the read/dispatch/respond/keep-alive loop.
type Connection struct {
	s        stream.Stream
	router   *router.Router
	stats    *stats.Stats
	logger   *log.Logger
	maxBody     int64
	compression router.CompressionConfig
	state       State
	peerAddr    string

	// lastWriteOK tracks whether the most recent writeResponse finished,
	// so a mid-write failure never reuses the connection for keep-alive
	// (spec.md §4.3 "usable for keep-alive only if the response completed
	// writing").
	lastWriteOK bool
}

// New builds a Connection ready to Serve. Both plain net.Conn and
// *tls.Conn satisfy stream.Stream directly, so the TLS handshake (if any)
// is expected to have already completed by the time Serve is called
// (spec.md §4.3 "TLS variant differs only in the acquisition step").
func New(s stream.Stream, rt *router.Router, st *stats.Stats, logger *log.Logger, maxBody int64, compression router.CompressionConfig) *Connection {
	if maxBody <= 0 {
		maxBody = constants.MaxBodySize
	}
	return &Connection{
		s:           s,
		router:      rt,
		stats:       st,
		logger:      logger,
		maxBody:     maxBody,
		compression: compression,
		state:       StateAwaitingRequest,
		peerAddr:    s.RemoteAddr().String(),
	}
}

// Serve runs the blocking request loop until the connection closes.
func (c *Connection) Serve() {
	defer c.s.Close()

	if c.stats != nil {
		c.stats.ActiveConnections.Add(1)
		c.stats.TotalConnections.Add(1)
		defer c.stats.ActiveConnections.Add(-1)
	}

	buf := make([]byte, 0, constants.ReadChunkSize)
	readChunk := make([]byte, constants.ReadChunkSize)

	for {
		c.state = StateAwaitingRequest
		_ = c.s.SetReadDeadline(time.Now().Add(constants.KeepAliveTimeout))

		timer := timing.NewTimer()
		timer.StartRead()
		req, rest, err := c.readRequest(buf, readChunk)
		timer.EndRead()
		if err != nil {
			if err != errConnDone {
				c.writeResponse(nil, requestErrorResponse(err))
			}
			return
		}
		buf = rest

		c.state = StateProcessing
		_ = c.s.SetDeadline(time.Time{})

		timer.StartDispatch()
		match := c.dispatch(req)
		timer.EndDispatch()
		if match.IsUpgrade {
			c.handoffToWebSocket(req, match, buf)
			return
		}

		resp := match.Response
		if c.stats != nil {
			c.stats.TotalRequests.Add(1)
		}

		timer.StartWrite()
		c.writeResponse(req, resp)
		timer.EndWrite()
		if c.logger != nil {
			c.logger.Printf("%s %s -> %d (%s)", req.Method, req.Target, resp.StatusCode, timer.GetMetrics())
		}
		if !c.lastWriteOK {
			return
		}
		if !req.KeepAlive {
			c.closeHalf()
			return
		}
	}
}

// readRequest accumulates bytes from the socket into buf until
// httpmsg.ParseRequest succeeds, needs more data, or the connection must
// terminate (spec.md §4.3 "growing buffer"; 413 beyond 1 MiB). On success
// it returns the bytes left in the buffer after the parsed request.
func (c *Connection) readRequest(buf, readChunk []byte) (*httpmsg.Request, []byte, error) {
	for {
		req, consumed, err := httpmsg.ParseRequest(buf, c.maxBody)
		if err == nil {
			return req, buf[consumed:], nil
		}
		if err != httpmsg.ErrNeedMore {
			return nil, nil, err
		}

		if len(buf) > constants.MaxRequestBufferSize {
			return nil, nil, httpderrors.NewBodyTooLargeError("request exceeds maximum buffer size")
		}

		n, rerr := c.s.Read(readChunk)
		if n > 0 {
			buf = append(buf, readChunk[:n]...)
			if c.stats != nil {
				c.stats.BytesReceived.Add(int64(n))
			}
		}
		if rerr != nil {
			if httpderrors.IsClosedOrReset(rerr) || httpderrors.IsTimeoutError(rerr) {
				return nil, nil, errConnDone
			}
			if c.logger != nil {
				c.logger.Printf("read error from %s: %v", c.peerAddr, rerr)
			}
			return nil, nil, errConnDone
		}
	}
}

// dispatch recovers from a panicking handler and turns it into a 500 per
// spec.md §4.3 "Exceptions from handlers produce a 500".
func (c *Connection) dispatch(req *httpmsg.Request) (result router.MatchResult) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("%v", r)
			resp := httpmsg.NewResponse(500)
			resp.SetBody([]byte(httpderrors.NewHandlerError(err).Error()))
			result = router.MatchResult{Response: resp}
		}
	}()
	return c.router.Dispatch(req, c.peerAddr)
}

// requestErrorResponse maps a parse/framing error to the response body
// spec.md §4.3 requires before closing an unusable connection.
func requestErrorResponse(err error) *httpmsg.Response {
	status := httpderrors.StatusOf(err)
	resp := httpmsg.NewResponse(status)
	resp.SetBody([]byte(err.Error()))
	resp.Headers.Set("Connection", "close")
	return resp
}

// writeResponse applies post-dispatch compression, then serializes and
// writes headers (plus inline body or streamed body), recording the
// outcome in c.lastWriteOK. req is nil when the response is a
// parse-error page produced before a request was ever decoded.
func (c *Connection) writeResponse(req *httpmsg.Request, resp *httpmsg.Response) {
	c.state = StateWritingHeaders

	if req != nil {
		router.MaybeCompress(c.compression, req, resp)
	}

	resp.Headers.Set("Server", constants.ServerHeader)
	if resp.BodyStream != nil {
		resp.Headers.Set("Content-Length", fmt.Sprintf("%d", resp.BodyStream.Size()))
	} else {
		resp.Headers.Set("Content-Length", fmt.Sprintf("%d", len(resp.Body)))
	}

	wire := resp.Serialize()
	if _, err := c.s.Write(wire); err != nil {
		c.logWriteError(err)
		c.lastWriteOK = false
		return
	}
	if c.stats != nil {
		c.stats.BytesSent.Add(int64(len(wire)))
	}

	if resp.BodyStream == nil {
		c.lastWriteOK = true
		return
	}

	c.state = StateWritingBody
	c.lastWriteOK = c.streamBody(resp.BodyStream)
}

// streamBody writes a BodyStream response in fixed chunks, per spec.md
// §4.3 "body is streamed in 8-KiB chunks".
func (c *Connection) streamBody(body interface {
	Reader() (io.ReadCloser, error)
}) bool {
	r, err := body.Reader()
	if err != nil {
		c.logWriteError(err)
		return false
	}
	defer r.Close()

	chunk := make([]byte, constants.StreamChunkSize)
	for {
		n, rerr := r.Read(chunk)
		if n > 0 {
			if _, werr := c.s.Write(chunk[:n]); werr != nil {
				c.logWriteError(werr)
				return false
			}
			if c.stats != nil {
				c.stats.BytesSent.Add(int64(n))
			}
		}
		if rerr == io.EOF {
			return true
		}
		if rerr != nil {
			c.logWriteError(rerr)
			return false
		}
	}
}

func (c *Connection) logWriteError(err error) {
	if httpderrors.IsClosedOrReset(err) {
		return
	}
	if c.logger != nil {
		c.logger.Printf("write error to %s: %v", c.peerAddr, err)
	}
}

// closeHalf half-closes the write side when the transport implements
// stream.CloseWriter (*net.TCPConn and *tls.Conn both do); the deferred
// Close in Serve then closes the socket fully (spec.md §4.3 "socket is
// half-closed then closed").
func (c *Connection) closeHalf() {
	c.state = StateClosing
	if cw, ok := c.s.(stream.CloseWriter); ok {
		_ = cw.CloseWrite()
	}
}

// handoffToWebSocket completes the 101 handshake and transfers ownership
// of the socket to a wsconn.Connection, per spec.md §2 "the Connection
// transfers ownership of the underlying socket to a WebSocket Connection".
func (c *Connection) handoffToWebSocket(req *httpmsg.Request, match router.MatchResult, leftover []byte) {
	result := wsconn.ValidateHandshake(req)
	if !result.OK {
		c.writeResponse(req, wsconn.RejectResponse(result.RejectReason))
		return
	}

	resp := wsconn.UpgradeResponse(result.AcceptKey)
	wire := resp.Serialize()
	if _, err := c.s.Write(wire); err != nil {
		c.logWriteError(err)
		return
	}
	if c.stats != nil {
		c.stats.BytesSent.Add(int64(len(wire)))
	}

	handlers := wsconn.Handlers{}
	if match.WSHandler != nil {
		handlers = match.WSHandler(req)
	}

	wsc := wsconn.New(c.s, handlers, constants.DefaultMaxWebSocketFrameSize, c.stats, c.logger)
	wsc.Serve(leftover)
}
