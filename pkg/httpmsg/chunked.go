package httpmsg

import (
	"bytes"
	"strconv"
	"strings"

	httpderrors "github.com/corehttp/httpd/pkg/errors"
)

// dechunk decodes a chunked-transfer-encoded body from the front of buf.
// It mirrors the teacher's readChunkedBody (pkg/client/client.go) but
// operates over an already-accumulated buffer instead of a blocking
// bufio.Reader, returning (-1, nil) when more bytes are needed instead of
// blocking on a read. Returns the decoded body and the number of input
// bytes consumed including the trailer section's final CRLF.
func dechunk(buf []byte, maxBodySize int64) ([]byte, int, error) {
	var body bytes.Buffer
	pos := 0

	for {
		lineEnd := bytes.Index(buf[pos:], []byte("\r\n"))
		if lineEnd < 0 {
			return nil, -1, nil
		}
		sizeLine := string(buf[pos : pos+lineEnd])
		pos += lineEnd + 2

		sizeToken := strings.TrimSpace(strings.SplitN(sizeLine, ";", 2)[0])
		size, err := strconv.ParseInt(sizeToken, 16, 64)
		if err != nil || size < 0 {
			return nil, 0, httpderrors.NewParseError("invalid chunk size", err)
		}

		if size == 0 {
			break
		}

		if int64(body.Len())+size > maxBodySize {
			return nil, 0, httpderrors.NewBodyTooLargeError("chunked body exceeds maximum size")
		}

		if int64(len(buf)-pos) < size+2 {
			return nil, -1, nil
		}
		body.Write(buf[pos : pos+int(size)])
		pos += int(size)
		if buf[pos] != '\r' || buf[pos+1] != '\n' {
			return nil, 0, httpderrors.NewParseError("malformed chunk terminator", nil)
		}
		pos += 2
	}

	// Trailer section: zero or more header lines, terminated by a bare CRLF.
	for {
		lineEnd := bytes.Index(buf[pos:], []byte("\r\n"))
		if lineEnd < 0 {
			return nil, -1, nil
		}
		line := buf[pos : pos+lineEnd]
		pos += lineEnd + 2
		if len(line) == 0 {
			break
		}
	}

	return body.Bytes(), pos, nil
}

// encodeChunk wraps payload in a single chunked-transfer-encoding frame.
// An empty payload yields the terminating zero-length chunk.
func encodeChunk(payload []byte) []byte {
	if len(payload) == 0 {
		return []byte("0\r\n\r\n")
	}
	var out bytes.Buffer
	out.WriteString(strconv.FormatInt(int64(len(payload)), 16))
	out.WriteString("\r\n")
	out.Write(payload)
	out.WriteString("\r\n")
	return out.Bytes()
}

// finalChunk is the terminating zero-length chunk with no trailers.
func finalChunk() []byte {
	return []byte("0\r\n\r\n")
}
