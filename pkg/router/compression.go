package router

import (
	"bytes"
	"compress/gzip"
	"strings"

	"github.com/corehttp/httpd/pkg/httpmsg"
)

// defaultCompressibleTypes follows spec.md §4.4's post-dispatch content-type
// list: text/*, application/json, application/javascript, application/xml.
var defaultCompressibleTypes = []string{"text/", "application/json", "application/javascript", "application/xml"}

// CompressionConfig controls MaybeCompress.
type CompressionConfig struct {
	Enabled           bool
	MinSize           int
	Level             int
	CompressibleTypes []string
}

// MaybeCompress implements spec.md §4.4 "Post-dispatch": if enabled and
// the request's Accept-Encoding includes gzip, the response's
// content-type is compressible, the body is at least MinSize bytes, and
// compression actually shrinks it, the body is replaced and
// Content-Encoding: gzip is set. A body-stream response is never
// compressed (it is "already encoded" in the spec's terms — compressing
// it would require buffering the whole stream, defeating its purpose).
func MaybeCompress(cfg CompressionConfig, req *httpmsg.Request, resp *httpmsg.Response) {
	if !cfg.Enabled || resp.BodyStream != nil || resp.Body == nil {
		return
	}
	if len(resp.Body) < cfg.MinSize {
		return
	}
	if !supportsGzip(req.Headers.Get("accept-encoding")) {
		return
	}
	contentType := resp.Headers.Get("content-type")
	types := cfg.CompressibleTypes
	if len(types) == 0 {
		types = defaultCompressibleTypes
	}
	if !isCompressibleType(contentType, types) {
		return
	}

	compressed, err := compress(resp.Body, cfg.Level)
	if err != nil || len(compressed) >= len(resp.Body) {
		return
	}

	resp.SetBody(compressed)
	resp.Headers.Set("Content-Encoding", "gzip")
}

// supportsGzip reports whether an Accept-Encoding header value lists gzip.
func supportsGzip(acceptEncoding string) bool {
	for _, part := range strings.Split(acceptEncoding, ",") {
		token := strings.TrimSpace(strings.SplitN(part, ";", 2)[0])
		if strings.EqualFold(token, "gzip") {
			return true
		}
	}
	return false
}

func isCompressibleType(contentType string, types []string) bool {
	ct := strings.ToLower(contentType)
	for _, t := range types {
		if strings.HasSuffix(t, "/") {
			if strings.HasPrefix(ct, t) {
				return true
			}
			continue
		}
		if ct == t || strings.HasPrefix(ct, t+";") {
			return true
		}
	}
	return false
}

// compress gzips body at the given compression level. This is the
// server's concrete rendering of the spec's assumed
// compress(bytes, level) -> bytes collaborator.
func compress(body []byte, level int) ([]byte, error) {
	var buf bytes.Buffer
	w, err := gzip.NewWriterLevel(&buf, level)
	if err != nil {
		w, _ = gzip.NewWriterLevel(&buf, gzip.DefaultCompression)
	}
	if _, err := w.Write(body); err != nil {
		w.Close()
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
