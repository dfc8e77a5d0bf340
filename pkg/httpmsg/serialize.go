package httpmsg

import (
	"bytes"
	"strconv"
)

// Serialize renders the response's status line and headers to wire bytes.
// The body (if any and if not streamed separately) is appended; a
// BodyStream response instead gets Content-Length or Transfer-Encoding set
// by the caller and its bytes written separately by the connection layer.
func (r *Response) Serialize() []byte {
	var buf bytes.Buffer

	buf.WriteString(r.Version)
	buf.WriteByte(' ')
	buf.WriteString(strconv.Itoa(r.StatusCode))
	buf.WriteByte(' ')
	buf.WriteString(r.StatusText)
	buf.WriteString("\r\n")

	for _, key := range r.Headers.Keys() {
		buf.WriteString(canonicalHeaderCase(key))
		buf.WriteString(": ")
		buf.WriteString(r.Headers.m[key])
		buf.WriteString("\r\n")
	}
	buf.WriteString("\r\n")

	if r.Body != nil {
		buf.Write(r.Body)
	}

	return buf.Bytes()
}

// Serialize renders the request line, headers, and body to wire bytes.
// Used by tests and by any component constructing a request by hand.
func (r *Request) Serialize() []byte {
	var buf bytes.Buffer

	buf.WriteString(r.Method)
	buf.WriteByte(' ')
	buf.WriteString(r.Target)
	buf.WriteByte(' ')
	buf.WriteString(r.Version)
	buf.WriteString("\r\n")

	for _, key := range r.Headers.Keys() {
		buf.WriteString(canonicalHeaderCase(key))
		buf.WriteString(": ")
		buf.WriteString(r.Headers.m[key])
		buf.WriteString("\r\n")
	}
	buf.WriteString("\r\n")

	if r.Body != nil {
		buf.Write(r.Body)
	}

	return buf.Bytes()
}
