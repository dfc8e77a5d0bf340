package server

import (
	"crypto/tls"
	"net"
)

// tlsListen wraps a plain TCP listener with the given TLS config, per
// spec.md §4.3 "TLS variant differs only in the acquisition step". Accept
// on the tls.NewListener returns a *tls.Conn without handshaking;
// serveOne runs the handshake before handing the conn to pkg/conn, which
// never has to know whether its stream.Stream is plain or TLS.
func tlsListen(addr string, cfg *tls.Config) (net.Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return tls.NewListener(ln, cfg), nil
}
