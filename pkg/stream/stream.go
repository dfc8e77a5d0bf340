// Package stream defines the byte-stream capability that both plain TCP
// and TLS connections satisfy, so pkg/conn can be generic over transport
// instead of split across an inheritance hierarchy (spec.md §9 "Inheritance
// hierarchy for plain/TLS connections").
package stream

import (
	"net"
	"time"
)

// Stream is the minimal capability a Connection needs from its transport:
// read some bytes, write all bytes, close, and arm a deadline. Both
// net.Conn and *tls.Conn already satisfy this directly.
type Stream interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Close() error
	SetDeadline(t time.Time) error
	SetReadDeadline(t time.Time) error
	RemoteAddr() net.Addr
}

// CloseWriter is implemented by streams that support half-close, used for
// the non-keep-alive shutdown sequence (spec.md §4.3 "half-closed then
// closed"). *net.TCPConn and *tls.Conn both implement it; a stream without
// it (such as one end of a net.Pipe) is only closed fully.
type CloseWriter interface {
	CloseWrite() error
}
