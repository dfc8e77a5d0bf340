package router

import (
	"fmt"
	"hash/maphash"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/corehttp/httpd/pkg/buffer"
	"github.com/corehttp/httpd/pkg/constants"
	"github.com/corehttp/httpd/pkg/httpmsg"
)

// StaticFileServer resolves requests against a document root with
// conditional-request semantics (spec.md §4.4 "Static file" and
// "Conditional file response").
type StaticFileServer struct {
	documentRoot string
	indexFiles   []string
	mimeTypes    map[string]string
	seed         maphash.Seed
}

// NewStaticFileServer returns a server rooted at documentRoot, trying
// each of indexFiles in order for directory requests.
func NewStaticFileServer(documentRoot string, indexFiles []string, mimeTypes map[string]string) *StaticFileServer {
	root, err := filepath.Abs(documentRoot)
	if err != nil {
		root = documentRoot
	}
	return &StaticFileServer{
		documentRoot: root,
		indexFiles:   indexFiles,
		mimeTypes:    mimeTypes,
		seed:         maphash.MakeSeed(),
	}
}

// Serve resolves req.Path against the document root and returns the
// conditional file response, or a 403/404 per spec.md §4.4.
func (s *StaticFileServer) Serve(req *httpmsg.Request) *httpmsg.Response {
	joined := filepath.Join(s.documentRoot, filepath.FromSlash(req.Path))
	resolved, err := filepath.Abs(joined)
	if err != nil {
		return forbidden()
	}

	// Weakly-canonical containment check (spec.md §4.4): the resolved
	// path must stay within the document root, defending against '..'
	// traversal and symlink escapes.
	if resolved != s.documentRoot && !strings.HasPrefix(resolved, s.documentRoot+string(filepath.Separator)) {
		return forbidden()
	}

	info, err := os.Stat(resolved)
	if err != nil {
		return notFound()
	}

	// The lexical check above cannot see symlinks, so repeat it on the
	// symlink-resolved paths of the root and of the existing target.
	realRoot, err := filepath.EvalSymlinks(s.documentRoot)
	if err != nil {
		realRoot = s.documentRoot
	}
	realPath, err := filepath.EvalSymlinks(resolved)
	if err != nil || (realPath != realRoot && !strings.HasPrefix(realPath, realRoot+string(filepath.Separator))) {
		return forbidden()
	}

	if info.IsDir() {
		for _, indexName := range s.indexFiles {
			candidate := filepath.Join(resolved, indexName)
			if fi, err := os.Stat(candidate); err == nil && !fi.IsDir() {
				return s.serveFile(req, candidate, fi)
			}
		}
		return forbidden()
	}

	return s.serveFile(req, resolved, info)
}

func (s *StaticFileServer) serveFile(req *httpmsg.Request, path string, info os.FileInfo) *httpmsg.Response {
	etag := s.computeETag(path, info)
	lastModified := info.ModTime().UTC().Format(time.RFC1123)
	lastModified = strings.Replace(lastModified, "UTC", "GMT", 1)

	if inm := req.Headers.Get("if-none-match"); inm != "" && ETagMatches(inm, etag) {
		resp := httpmsg.NewResponse(304)
		resp.Headers.Set("ETag", etag)
		resp.Headers.Set("Last-Modified", lastModified)
		resp.Headers.Set("Content-Length", "0")
		return resp
	}

	f, err := os.Open(path)
	if err != nil {
		return notFound()
	}

	resp := httpmsg.NewResponse(200)
	resp.Headers.Set("ETag", etag)
	resp.Headers.Set("Last-Modified", lastModified)
	resp.Headers.Set("Cache-Control", constants.DefaultCacheControl)
	resp.Headers.Set("Content-Type", s.mimeType(path))

	body := buffer.New(constants.DefaultBodyMemLimit)
	if _, err := io.Copy(body, f); err != nil {
		f.Close()
		return serverError()
	}
	f.Close()

	if body.IsSpilled() {
		resp.BodyStream = body
		resp.Headers.Set("Content-Length", strconv.FormatInt(body.Size(), 10))
	} else {
		resp.SetBody(body.Bytes())
		body.Close()
	}
	return resp
}

// computeETag hashes file_path ∥ file_size ∥ modification_time_in_ticks
// with hash/maphash, a stable non-cryptographic hash, rendered as lower-
// case hex (spec.md §4.4 "Conditional file response").
func (s *StaticFileServer) computeETag(path string, info os.FileInfo) string {
	var h maphash.Hash
	h.SetSeed(s.seed)
	h.WriteString(path)
	h.WriteString(strconv.FormatInt(info.Size(), 10))
	h.WriteString(strconv.FormatInt(info.ModTime().UnixNano(), 10))
	return fmt.Sprintf(`"%x"`, h.Sum64())
}

func (s *StaticFileServer) mimeType(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if mt, ok := s.mimeTypes[ext]; ok {
		return mt
	}
	return "application/octet-stream"
}

func forbidden() *httpmsg.Response {
	resp := httpmsg.NewResponse(403)
	resp.SetBody([]byte("403 Forbidden"))
	return resp
}

func notFound() *httpmsg.Response {
	resp := httpmsg.NewResponse(404)
	resp.SetBody([]byte("404 Not Found"))
	return resp
}

func serverError() *httpmsg.Response {
	resp := httpmsg.NewResponse(500)
	resp.SetBody([]byte("500 Internal Server Error"))
	return resp
}

// ETagMatches implements spec.md §4.4 "ETag matching": "*" matches any
// ETag; otherwise the header is split on ',', each candidate trimmed and
// stripped of a leading "W/" before comparing quote-stripped values.
func ETagMatches(ifNoneMatch, etag string) bool {
	if strings.TrimSpace(ifNoneMatch) == "*" {
		return true
	}
	target := stripWeak(strings.TrimSpace(etag))
	for _, candidate := range strings.Split(ifNoneMatch, ",") {
		if stripWeak(strings.TrimSpace(candidate)) == target {
			return true
		}
	}
	return false
}

func stripWeak(s string) string {
	return strings.Trim(strings.TrimPrefix(s, "W/"), `"`)
}
