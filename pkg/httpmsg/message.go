// Package httpmsg implements the HTTP/1.1 message codec: parsing a byte
// stream into Request/Response values and serializing values back to wire
// bytes, per spec.md §4.1 "HTTP Message Codec".
package httpmsg

import (
	"strconv"

	"github.com/corehttp/httpd/pkg/buffer"
)

// Request is a fully parsed HTTP/1.1 request line + headers. The body is
// copied out of the connection's read buffer (and dechunked, if chunked)
// into Body.
type Request struct {
	Method      string
	Target      string // raw request-target, e.g. "/hello?x=1"
	Path        string // Target with the query string removed, not percent-decoded
	QueryParams map[string]string
	Version     string
	Headers     Headers
	Body        []byte // populated once the full body has been read
	KeepAlive   bool
}

// Response is a server-constructed HTTP/1.1 response, ready for
// serialization. Body is set for small, fully-buffered bodies; BodyStream
// is set instead for static-file or other large responses so the payload
// never sits entirely in heap (spec.md §4.3).
type Response struct {
	Version    string
	StatusCode int
	StatusText string
	Headers    Headers
	Body       []byte
	BodyStream *buffer.Buffer
}

// NewResponse builds a Response with the given status and canonical
// reason phrase, HTTP/1.1, and no body.
func NewResponse(statusCode int) *Response {
	return &Response{
		Version:    "HTTP/1.1",
		StatusCode: statusCode,
		StatusText: ReasonPhrase(statusCode),
		Headers:    NewHeaders(),
	}
}

// SetBody attaches an in-memory body and sets Content-Length accordingly.
func (r *Response) SetBody(body []byte) {
	r.Body = body
	r.BodyStream = nil
	r.Headers.Set("Content-Length", strconv.Itoa(len(body)))
}

// ReasonPhrase returns the standard reason phrase for a status code, or
// "Unknown" if unrecognized.
func ReasonPhrase(code int) string {
	if text, ok := statusText[code]; ok {
		return text
	}
	return "Unknown"
}

var statusText = map[int]string{
	100: "Continue",
	101: "Switching Protocols",
	200: "OK",
	201: "Created",
	204: "No Content",
	206: "Partial Content",
	301: "Moved Permanently",
	302: "Found",
	304: "Not Modified",
	400: "Bad Request",
	401: "Unauthorized",
	403: "Forbidden",
	404: "Not Found",
	405: "Method Not Allowed",
	408: "Request Timeout",
	409: "Conflict",
	411: "Length Required",
	413: "Payload Too Large",
	414: "URI Too Long",
	415: "Unsupported Media Type",
	426: "Upgrade Required",
	429: "Too Many Requests",
	431: "Request Header Fields Too Large",
	500: "Internal Server Error",
	501: "Not Implemented",
	502: "Bad Gateway",
	503: "Service Unavailable",
	505: "HTTP Version Not Supported",
}
