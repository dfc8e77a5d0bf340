// Package wsconn implements the WebSocket connection lifecycle of
// spec.md §4.7: handshake validation, the framed message loop, ping/pong,
// fragmentation reassembly, and the close protocol.
package wsconn

import (
	"encoding/base64"

	"github.com/corehttp/httpd/pkg/httpmsg"
	"github.com/corehttp/httpd/pkg/wsframe"
)

// HandshakeResult is the outcome of ValidateHandshake.
type HandshakeResult struct {
	OK           bool
	RejectReason string
	AcceptKey    string
}

// ValidateHandshake checks the request against spec.md §4.7's handshake
// requirements: Upgrade: websocket, a Connection header containing the
// "upgrade" token, Sec-WebSocket-Version: 13, and a Sec-WebSocket-Key
// whose base64 decoding is exactly 16 bytes.
func ValidateHandshake(req *httpmsg.Request) HandshakeResult {
	if req.Headers.Get("upgrade") != "websocket" {
		return HandshakeResult{RejectReason: "missing or invalid Upgrade header"}
	}
	if !wsframe.HasUpgradeToken(req.Headers.Get("connection")) {
		return HandshakeResult{RejectReason: "Connection header missing Upgrade token"}
	}
	if req.Headers.Get("sec-websocket-version") != "13" {
		return HandshakeResult{RejectReason: "unsupported Sec-WebSocket-Version"}
	}
	key := req.Headers.Get("sec-websocket-key")
	if key == "" {
		return HandshakeResult{RejectReason: "missing Sec-WebSocket-Key"}
	}
	decoded, err := base64.StdEncoding.DecodeString(key)
	if err != nil || len(decoded) != 16 {
		return HandshakeResult{RejectReason: "invalid Sec-WebSocket-Key"}
	}
	return HandshakeResult{OK: true, AcceptKey: wsframe.AcceptKey(key)}
}

// UpgradeResponse builds the 101 Switching Protocols response for a
// successful handshake.
func UpgradeResponse(acceptKey string) *httpmsg.Response {
	resp := httpmsg.NewResponse(101)
	resp.Headers.Set("Upgrade", "websocket")
	resp.Headers.Set("Connection", "Upgrade")
	resp.Headers.Set("Sec-WebSocket-Accept", acceptKey)
	return resp
}

// RejectResponse builds the 400 response for a failed handshake, per
// spec.md §4.7 "respond with 400 and a X-WebSocket-Reject-Reason header".
func RejectResponse(reason string) *httpmsg.Response {
	resp := httpmsg.NewResponse(400)
	resp.Headers.Set("X-WebSocket-Reject-Reason", reason)
	resp.SetBody([]byte(reason))
	return resp
}
