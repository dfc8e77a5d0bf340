package router

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/corehttp/httpd/pkg/httpmsg"
)

func newReq(method, target string) *httpmsg.Request {
	return &httpmsg.Request{
		Method:      method,
		Target:      target,
		Path:        target,
		QueryParams: map[string]string{},
		Version:     "HTTP/1.1",
		Headers:     httpmsg.NewHeaders(),
	}
}

func TestDispatchMatchesPathIgnoringQueryString(t *testing.T) {
	rt := New()
	rt.Get("/hello", func(req *httpmsg.Request) *httpmsg.Response {
		resp := httpmsg.NewResponse(200)
		resp.SetBody([]byte(req.QueryParams["x"]))
		return resp
	})

	req := &httpmsg.Request{
		Method:      "GET",
		Target:      "/hello?x=1",
		Path:        "/hello",
		QueryParams: map[string]string{"x": "1"},
		Version:     "HTTP/1.1",
		Headers:     httpmsg.NewHeaders(),
	}
	result := rt.Dispatch(req, "127.0.0.1")
	if result.Response.StatusCode != 200 {
		t.Fatalf("expected exact route to match despite query string, got %d", result.Response.StatusCode)
	}
	if string(result.Response.Body) != "1" {
		t.Fatalf("expected handler to see QueryParams, got %q", result.Response.Body)
	}
}

func TestDispatchExactMatchWinsOverPrefix(t *testing.T) {
	rt := New()
	rt.Get("foo/bar", func(*httpmsg.Request) *httpmsg.Response {
		resp := httpmsg.NewResponse(200)
		resp.SetBody([]byte("exact"))
		return resp
	})
	rt.Get("foo/*", func(*httpmsg.Request) *httpmsg.Response {
		resp := httpmsg.NewResponse(200)
		resp.SetBody([]byte("prefix"))
		return resp
	})

	result := rt.Dispatch(newReq("GET", "foo/bar"), "127.0.0.1")
	if string(result.Response.Body) != "exact" {
		t.Fatalf("expected exact match to win, got %q", result.Response.Body)
	}
}

func TestDispatchFirstRegisteredPrefixWins(t *testing.T) {
	rt := New()
	rt.Get("foo/*", func(*httpmsg.Request) *httpmsg.Response {
		resp := httpmsg.NewResponse(200)
		resp.SetBody([]byte("first"))
		return resp
	})
	rt.Get("foo/bar*", func(*httpmsg.Request) *httpmsg.Response {
		resp := httpmsg.NewResponse(200)
		resp.SetBody([]byte("second"))
		return resp
	})

	result := rt.Dispatch(newReq("GET", "foo/bar/baz"), "127.0.0.1")
	if string(result.Response.Body) != "first" {
		t.Fatalf("expected first-registered prefix to win, got %q", result.Response.Body)
	}
}

func TestDispatch404WhenNoMatch(t *testing.T) {
	rt := New()
	result := rt.Dispatch(newReq("GET", "/nope"), "127.0.0.1")
	if result.Response.StatusCode != 404 {
		t.Fatalf("expected 404, got %d", result.Response.StatusCode)
	}
}

func TestMiddlewareStopShortCircuits(t *testing.T) {
	rt := New()
	rt.Use(func(req *httpmsg.Request, peer string) (bool, *httpmsg.Response) {
		resp := httpmsg.NewResponse(403)
		resp.SetBody([]byte("blocked"))
		return true, resp
	})
	rt.Get("/", func(*httpmsg.Request) *httpmsg.Response {
		t.Fatalf("handler should not run")
		return nil
	})

	result := rt.Dispatch(newReq("GET", "/"), "127.0.0.1")
	if result.Response.StatusCode != 403 {
		t.Fatalf("expected 403 from middleware, got %d", result.Response.StatusCode)
	}
}

func TestStaticFileServerTraversalRefused(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "safe.txt"), []byte("ok"), 0o644)

	s := NewStaticFileServer(dir, []string{"index.html"}, map[string]string{".txt": "text/plain"})
	resp := s.Serve(newReq("GET", "/../../../etc/passwd"))
	if resp.StatusCode != 403 {
		t.Fatalf("expected 403 for traversal attempt, got %d", resp.StatusCode)
	}
}

func TestStaticFileServerConditionalGET(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.txt")
	os.WriteFile(path, []byte("Hello, ETag World!"), 0o644)

	s := NewStaticFileServer(dir, []string{"index.html"}, map[string]string{".txt": "text/plain"})

	first := s.Serve(newReq("GET", "/test.txt"))
	if first.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", first.StatusCode)
	}
	etag := first.Headers.Get("etag")
	if etag == "" {
		t.Fatalf("expected ETag header")
	}

	req2 := newReq("GET", "/test.txt")
	req2.Headers.Set("If-None-Match", etag)
	second := s.Serve(req2)
	if second.StatusCode != 304 {
		t.Fatalf("expected 304, got %d", second.StatusCode)
	}
	if second.Headers.Get("etag") != etag {
		t.Fatalf("expected same ETag on 304")
	}
	if len(second.Body) != 0 {
		t.Fatalf("expected empty body on 304")
	}
}

func TestStaticFileServerDirectoryWithNoIndexIsForbidden(t *testing.T) {
	dir := t.TempDir()
	os.Mkdir(filepath.Join(dir, "sub"), 0o755)

	s := NewStaticFileServer(dir, []string{"index.html"}, nil)
	resp := s.Serve(newReq("GET", "/sub"))
	if resp.StatusCode != 403 {
		t.Fatalf("expected 403 for directory with no index, got %d", resp.StatusCode)
	}
}

func TestETagMatchingSymmetryAndWildcard(t *testing.T) {
	if !ETagMatches(`"X"`, `W/"X"`) {
		t.Fatalf(`expected matches("X", W/"X")`)
	}
	if !ETagMatches(`W/"X"`, `"X"`) {
		t.Fatalf(`expected matches(W/"X", "X")`)
	}
	if !ETagMatches(`W/"X"`, `W/"X"`) {
		t.Fatalf(`expected matches(W/"X", W/"X")`)
	}
	if !ETagMatches("*", `"anything"`) {
		t.Fatalf("expected wildcard match")
	}
}
