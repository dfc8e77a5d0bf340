package ratelimit

import (
	"strings"

	"github.com/corehttp/httpd/pkg/httpmsg"
)

// KeyFunc extracts a rate-limit key from a request and the connection's
// peer address.
type KeyFunc func(req *httpmsg.Request, peerAddr string) string

// KeyByIP is the default key extractor (spec.md §4.5 "Key extraction"):
// first IP in X-Forwarded-For, else X-Real-IP, else the connection's peer
// address.
func KeyByIP(req *httpmsg.Request, peerAddr string) string {
	if xff := req.Headers.Get("x-forwarded-for"); xff != "" {
		first := strings.TrimSpace(strings.Split(xff, ",")[0])
		if first != "" {
			return first
		}
	}
	if xri := req.Headers.Get("x-real-ip"); xri != "" {
		return xri
	}
	return peerAddr
}

// KeyByAPIKey keys on the X-Api-Key header, falling back to the peer
// address when absent.
func KeyByAPIKey(req *httpmsg.Request, peerAddr string) string {
	if k := req.Headers.Get("x-api-key"); k != "" {
		return k
	}
	return peerAddr
}

// KeyByEndpoint keys on the request path alone (no query string), so all
// clients share one budget per endpoint rather than fragmenting it per
// distinct query value.
func KeyByEndpoint(req *httpmsg.Request, peerAddr string) string {
	return req.Path
}

// KeyByBearerUser keys on the bearer token carried in Authorization,
// treating the token itself as an opaque user id.
func KeyByBearerUser(req *httpmsg.Request, peerAddr string) string {
	auth := req.Headers.Get("authorization")
	const prefix = "Bearer "
	if strings.HasPrefix(auth, prefix) {
		return auth[len(prefix):]
	}
	return peerAddr
}

// KeyByIPAndUserAgent concatenates the IP-derived key with the User-Agent,
// so distinct clients behind the same address are not pooled together.
func KeyByIPAndUserAgent(req *httpmsg.Request, peerAddr string) string {
	return KeyByIP(req, peerAddr) + "|" + req.Headers.Get("user-agent")
}
