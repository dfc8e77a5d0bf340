package httpmsg

import (
	"bytes"
	"errors"
	"strconv"
	"strings"

	httpderrors "github.com/corehttp/httpd/pkg/errors"
)

// ErrNeedMore signals that buf does not yet hold a complete message and the
// caller should read more bytes and retry. It is never wrapped, so callers
// compare with ==.
var ErrNeedMore = errors.New("httpmsg: incomplete message")

const maxHeaderLineBytes = 16 * 1024
const maxHeaderCount = 200

// ParseRequest attempts to parse a single HTTP/1.1 request from the front
// of buf. On success it returns the parsed Request and the number of bytes
// consumed (request line + headers + body, including the request's
// trailing CRLFCRLF and any chunked framing). If buf holds an incomplete
// message it returns ErrNeedMore. Any other error is a *errors.Error of
// type ErrorTypeParse or ErrorTypeBody and the connection must not be
// reused.
func ParseRequest(buf []byte, maxBodySize int64) (*Request, int, error) {
	lineEnd := bytes.Index(buf, []byte("\r\n"))
	if lineEnd < 0 {
		if len(buf) > maxHeaderLineBytes {
			return nil, 0, httpderrors.NewParseError("request line too long", nil)
		}
		return nil, 0, ErrNeedMore
	}

	method, target, version, err := parseRequestLine(string(buf[:lineEnd]))
	if err != nil {
		return nil, 0, err
	}

	headersStart := lineEnd + 2
	headerEnd := bytes.Index(buf[headersStart:], []byte("\r\n\r\n"))
	if headerEnd < 0 {
		if len(buf)-headersStart > maxHeaderLineBytes*maxHeaderCount {
			return nil, 0, httpderrors.NewParseError("headers too large", nil)
		}
		return nil, 0, ErrNeedMore
	}
	headerBlockEnd := headersStart + headerEnd
	headers, err := parseHeaderBlock(buf[headersStart:headerBlockEnd])
	if err != nil {
		return nil, 0, err
	}

	bodyStart := headerBlockEnd + 4

	if err := validateFraming(headers); err != nil {
		return nil, 0, err
	}

	path, query := splitPathAndQuery(target)
	req := &Request{
		Method:      method,
		Target:      target,
		Path:        path,
		QueryParams: query,
		Version:     version,
		Headers:     headers,
	}
	req.KeepAlive = isKeepAlive(version, headers)

	if version != "HTTP/1.0" && version != "HTTP/1.1" {
		return nil, 0, &httpderrors.Error{Type: httpderrors.ErrorTypeParse, Op: "version", Message: "unsupported HTTP version: " + version, Status: 505}
	}

	te := headers.Get("transfer-encoding")
	if te != "" {
		if !strings.EqualFold(strings.TrimSpace(lastToken(te)), "chunked") {
			return nil, 0, httpderrors.NewParseError("unsupported transfer-encoding", nil)
		}
		body, consumed, err := dechunk(buf[bodyStart:], maxBodySize)
		if err != nil {
			return nil, 0, err
		}
		if consumed < 0 {
			return nil, 0, ErrNeedMore
		}
		req.Body = body
		return req, bodyStart + consumed, nil
	}

	cl := headers.Get("content-length")
	if cl == "" {
		req.Body = nil
		return req, bodyStart, nil
	}

	length, err := strconv.ParseInt(strings.TrimSpace(cl), 10, 64)
	if err != nil || length < 0 {
		return nil, 0, httpderrors.NewParseError("invalid content-length", nil)
	}
	if length > maxBodySize {
		return nil, 0, httpderrors.NewBodyTooLargeError("request body exceeds maximum size")
	}
	available := int64(len(buf) - bodyStart)
	if available < length {
		return nil, 0, ErrNeedMore
	}
	req.Body = append([]byte(nil), buf[bodyStart:int64(bodyStart)+length]...)
	return req, bodyStart + int(length), nil
}

// validateFraming rejects ambiguous request smuggling vectors: duplicate
// or conflicting Content-Length, and Content-Length alongside
// Transfer-Encoding (RFC 7230 §3.3.3 step 4).
func validateFraming(h Headers) error {
	te := h.Get("transfer-encoding")
	cl := h.Get("content-length")
	if te != "" && cl != "" {
		return httpderrors.NewParseError("both content-length and transfer-encoding present", nil)
	}
	if strings.Contains(cl, ",") {
		values := strings.Split(cl, ",")
		first := strings.TrimSpace(values[0])
		for _, v := range values[1:] {
			if strings.TrimSpace(v) != first {
				return httpderrors.NewParseError("conflicting content-length values", nil)
			}
		}
	}
	return nil
}

// splitPathAndQuery splits a raw request-target into its path and query
// map, per spec.md §3 Data Model: no percent-decoding, query split on '&'
// then each pair on the first '='. A key with no '=' maps to "".
func splitPathAndQuery(target string) (string, map[string]string) {
	query := make(map[string]string)
	path := target
	if idx := strings.IndexByte(target, '?'); idx >= 0 {
		path = target[:idx]
		rawQuery := target[idx+1:]
		if rawQuery != "" {
			for _, pair := range strings.Split(rawQuery, "&") {
				if pair == "" {
					continue
				}
				if eq := strings.IndexByte(pair, '='); eq >= 0 {
					query[pair[:eq]] = pair[eq+1:]
				} else {
					query[pair] = ""
				}
			}
		}
	}
	return path, query
}

func lastToken(commaList string) string {
	parts := strings.Split(commaList, ",")
	return strings.TrimSpace(parts[len(parts)-1])
}

func parseRequestLine(line string) (method, target, version string, err error) {
	parts := strings.SplitN(line, " ", 3)
	if len(parts) != 3 {
		return "", "", "", httpderrors.NewParseError("malformed request line", nil)
	}
	method, target, version = parts[0], parts[1], parts[2]
	if method == "" || target == "" || version == "" {
		return "", "", "", httpderrors.NewParseError("malformed request line", nil)
	}
	for _, c := range method {
		if c < 'A' || c > 'Z' {
			return "", "", "", httpderrors.NewParseError("invalid method token", nil)
		}
	}
	return method, target, version, nil
}

// parseHeaderBlock splits block into header lines and adds each valid one
// to the returned Headers. Per spec.md §3/§4.1, a malformed line (obs-fold,
// whitespace before the colon, an invalid name/value, or a duplicate Host)
// is dropped silently and parsing continues with the next line — only a
// malformed request-line aborts the whole request.
func parseHeaderBlock(block []byte) (Headers, error) {
	h := NewHeaders()
	if len(block) == 0 {
		return h, nil
	}
	lines := bytes.Split(block, []byte("\r\n"))
	count := 0
	for _, lineBytes := range lines {
		if len(lineBytes) == 0 {
			continue
		}
		if lineBytes[0] == ' ' || lineBytes[0] == '\t' {
			// obs-fold: RFC 7230 deprecates it; drop the line rather than
			// risk a smuggling-relevant reinterpretation of it.
			continue
		}
		line := string(lineBytes)
		colon := strings.IndexByte(line, ':')
		if colon <= 0 {
			continue
		}
		name := line[:colon]
		if name != strings.TrimRight(name, " \t") {
			// whitespace before the colon is smuggling-relevant; drop it.
			continue
		}
		if !validHeaderName(name) {
			continue
		}
		value := trimOWS(line[colon+1:])
		if !validHeaderValue(value) {
			continue
		}
		if strings.EqualFold(name, "host") && h.Has("host") {
			continue
		}
		h.Add(name, value)
		count++
		if count > maxHeaderCount {
			return h, httpderrors.NewParseError("too many headers", nil)
		}
	}
	return h, nil
}

func isKeepAlive(version string, h Headers) bool {
	conn := strings.ToLower(h.Get("connection"))
	if conn == "close" {
		return false
	}
	if conn == "keep-alive" {
		return true
	}
	return version == "HTTP/1.1"
}
