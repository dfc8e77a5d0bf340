package wsconn

import (
	"log"
	"sync"
	"time"

	"github.com/corehttp/httpd/pkg/constants"
	httpderrors "github.com/corehttp/httpd/pkg/errors"
	"github.com/corehttp/httpd/pkg/stats"
	"github.com/corehttp/httpd/pkg/stream"
	"github.com/corehttp/httpd/pkg/wsframe"
)

// State is the WebSocket connection lifecycle state (spec.md §3
// "WebSocket Connection").
type State int32

const (
	StateConnecting State = iota
	StateOpen
	StateClosing
	StateClosed
)

// Handlers holds the per-connection event handlers (spec.md §3 "handlers
// for {text, binary, close, error}").
type Handlers struct {
	OnText   func(c *Connection, text string)
	OnBinary func(c *Connection, data []byte)
	OnClose  func(c *Connection, code uint16, reason string)
	OnError  func(c *Connection, err error)
}

// Connection is a single upgraded WebSocket connection: the frame-loop
// shape is grounded on pepnova-9-go-websocket-server's handleConnection,
// generalized from a hard-coded echo handler to the handler table above,
// plus ping/inactivity timers and fragmentation reassembly.
type Connection struct {
	stream       stream.Stream
	handlers     Handlers
	maxFrameSize int64
	stats        *stats.Stats
	logger       *log.Logger

	writeMu sync.Mutex
	state   State

	reassembleOpcode byte
	reassembleBuf    []byte
}

// New builds a Connection ready to Serve, in state OPEN. A maxFrameSize
// of 0 or less selects constants.DefaultMaxWebSocketFrameSize.
func New(s stream.Stream, handlers Handlers, maxFrameSize int64, st *stats.Stats, logger *log.Logger) *Connection {
	if maxFrameSize <= 0 {
		maxFrameSize = constants.DefaultMaxWebSocketFrameSize
	}
	return &Connection{
		stream:       s,
		handlers:     handlers,
		maxFrameSize: maxFrameSize,
		stats:        st,
		logger:       logger,
		state:        StateOpen,
	}
}

// Serve runs the blocking frame loop until the connection closes. initial
// holds any bytes already read past the HTTP handshake (from the HTTP
// Connection's read buffer) that belong to the WebSocket frame stream.
func (c *Connection) Serve(initial []byte) {
	defer c.stream.Close()

	if c.stats != nil {
		c.stats.ActiveWebSockets.Add(1)
		c.stats.TotalWebSockets.Add(1)
		defer c.stats.ActiveWebSockets.Add(-1)
	}

	buf := append([]byte(nil), initial...)
	readChunk := make([]byte, constants.ReadChunkSize)

	c.armInactivityTimeout()
	pingTicker := time.NewTicker(constants.WebSocketPingInterval)
	defer pingTicker.Stop()
	done := make(chan struct{})
	defer close(done)

	go func() {
		for {
			select {
			case <-pingTicker.C:
				_ = c.SendPing(nil)
			case <-done:
				return
			}
		}
	}()

	for {
		for {
			frame, n, err := wsframe.Parse(buf, c.maxFrameSize)
			if err == wsframe.ErrNeedMore {
				break
			}
			if err != nil {
				c.handleError(err)
				return
			}
			buf = buf[n:]
			if !c.dispatch(frame) {
				return
			}
		}

		c.armInactivityTimeout()
		n, err := c.stream.Read(readChunk)
		if n > 0 {
			buf = append(buf, readChunk[:n]...)
			if c.stats != nil {
				c.stats.BytesReceived.Add(int64(n))
			}
		}
		if err != nil {
			if !isQuietReadError(err) {
				c.handleError(httpderrors.NewConnectionError("read", err))
			}
			return
		}
	}
}

func isQuietReadError(err error) bool {
	return httpderrors.IsClosedOrReset(err) || httpderrors.IsTimeoutError(err)
}

func (c *Connection) armInactivityTimeout() {
	_ = c.stream.SetReadDeadline(time.Now().Add(constants.WebSocketInactivityTimeout))
}

// dispatch handles one parsed frame per spec.md §4.7 "Frame loop". It
// returns false when the connection should terminate.
func (c *Connection) dispatch(frame wsframe.Frame) bool {
	switch frame.Opcode {
	case wsframe.OpText:
		return c.handleDataFrame(frame, wsframe.OpText)
	case wsframe.OpBinary:
		return c.handleDataFrame(frame, wsframe.OpBinary)
	case wsframe.OpContinuation:
		return c.handleContinuation(frame)
	case wsframe.OpPing:
		_ = c.sendFrame(wsframe.OpPong, frame.Payload)
		return true
	case wsframe.OpPong:
		// Inactivity timer already reset on any received frame.
		return true
	case wsframe.OpClose:
		code, reason := parseClosePayload(frame.Payload)
		c.state = StateClosing
		_ = c.sendFrame(wsframe.OpClose, frame.Payload)
		if c.handlers.OnClose != nil {
			c.handlers.OnClose(c, code, reason)
		}
		return false
	default:
		return true
	}
}

func (c *Connection) handleDataFrame(frame wsframe.Frame, opcode byte) bool {
	if !frame.Fin {
		c.reassembleOpcode = opcode
		c.reassembleBuf = append([]byte(nil), frame.Payload...)
		return true
	}
	c.deliver(opcode, frame.Payload)
	return true
}

func (c *Connection) handleContinuation(frame wsframe.Frame) bool {
	c.reassembleBuf = append(c.reassembleBuf, frame.Payload...)
	if frame.Fin {
		opcode := c.reassembleOpcode
		payload := c.reassembleBuf
		c.reassembleBuf = nil
		c.deliver(opcode, payload)
	}
	return true
}

// deliver hands a fully-reassembled message to the matching handler. Per
// spec.md §4.7 "TEXT -> invoke the text handler... increment
// messages_received", only TEXT messages count towards the stat; BINARY
// delivery is otherwise identical.
func (c *Connection) deliver(opcode byte, payload []byte) {
	switch opcode {
	case wsframe.OpText:
		if c.stats != nil {
			c.stats.MessagesReceived.Add(1)
		}
		if c.handlers.OnText != nil {
			c.handlers.OnText(c, string(payload))
		}
	case wsframe.OpBinary:
		if c.handlers.OnBinary != nil {
			c.handlers.OnBinary(c, payload)
		}
	}
}

func (c *Connection) handleError(err error) {
	if c.handlers.OnError != nil {
		c.handlers.OnError(c, err)
	} else if c.logger != nil {
		c.logger.Printf("websocket error: %v", err)
	}
}

func parseClosePayload(payload []byte) (uint16, string) {
	if len(payload) < 2 {
		return 0, ""
	}
	code := uint16(payload[0])<<8 | uint16(payload[1])
	return code, string(payload[2:])
}

// sendFrame serializes and writes a single FIN frame, serializing writes
// per connection (spec.md §4.7 "Writes are serialized per connection").
func (c *Connection) sendFrame(opcode byte, payload []byte) error {
	wire := wsframe.Serialize(opcode, payload, true)
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_, err := c.stream.Write(wire)
	if err == nil && c.stats != nil {
		c.stats.BytesSent.Add(int64(len(wire)))
	}
	return err
}

// SendText sends a TEXT frame.
func (c *Connection) SendText(text string) error {
	return c.sendFrame(wsframe.OpText, []byte(text))
}

// SendBinary sends a BINARY frame.
func (c *Connection) SendBinary(data []byte) error {
	return c.sendFrame(wsframe.OpBinary, data)
}

// SendPing sends an unsolicited PING.
func (c *Connection) SendPing(payload []byte) error {
	return c.sendFrame(wsframe.OpPing, payload)
}

// SendPong replies to a PING.
func (c *Connection) SendPong(payload []byte) error {
	return c.sendFrame(wsframe.OpPong, payload)
}

// Close initiates a locally-triggered close: sends a CLOSE frame, enters
// CLOSING, and schedules the socket close 100ms later so the peer's final
// TCP ACK lands (spec.md §4.7 "Close initiated locally").
func (c *Connection) Close(code uint16, reason string) error {
	c.state = StateClosing
	err := c.sendFrame(wsframe.OpClose, wsframe.ClosePayload(code, reason))
	time.AfterFunc(constants.CloseLinger, func() {
		c.stream.Close()
	})
	return err
}

// State returns the current lifecycle state.
func (c *Connection) State() State {
	return c.state
}
