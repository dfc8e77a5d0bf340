// Package router implements route registration, the middleware pipeline,
// and conditional static-file serving (spec.md §4.4).
package router

import (
	"strings"

	"github.com/corehttp/httpd/pkg/httpmsg"
	"github.com/corehttp/httpd/pkg/wsconn"
)

// Handler processes a request and returns a response.
type Handler func(req *httpmsg.Request) *httpmsg.Response

// WebSocketHandler builds the event handler table for a newly-upgraded
// WebSocket connection on this route (spec.md §4.4 "add_websocket_route").
type WebSocketHandler func(req *httpmsg.Request) wsconn.Handlers

// Middleware observes or modifies the pipeline. Returning stop=true with
// a non-nil resp sends that response immediately instead of continuing
// (spec.md §4.4 "Dispatch order", step 1).
type Middleware func(req *httpmsg.Request, peerAddr string) (stop bool, resp *httpmsg.Response)

type route struct {
	pattern string
	method  string
	handler Handler
	isWS    bool
	wsHandler WebSocketHandler
}

// isPrefix reports whether pattern ends in '*', meaning "literal prefix
// followed by any suffix" (spec.md §3 "Route table").
func (r route) isPrefix() bool {
	return strings.HasSuffix(r.pattern, "*")
}

func (r route) prefix() string {
	return strings.TrimSuffix(r.pattern, "*")
}

// Router holds the route table, the middleware chain, and static-file
// configuration. Once built it is treated as immutable from the request
// path's perspective (spec.md §3 "Ownership"). It has no method for
// swapping the table while serving, and no locking: routes, middleware
// and the static file server are set up before requests are dispatched.
type Router struct {
	routes     []route
	middleware []Middleware
	static     *StaticFileServer
}

// New returns an empty Router.
func New() *Router {
	return &Router{}
}

// Use appends a middleware to the chain, in registration order.
func (rt *Router) Use(mw Middleware) {
	rt.middleware = append(rt.middleware, mw)
}

// AddRoute registers handler for (pattern, method). Per spec.md §4.4,
// pattern is either a literal path or a literal prefix ending in '*'.
func (rt *Router) AddRoute(pattern, method string, handler Handler) {
	rt.routes = append(rt.routes, route{pattern: pattern, method: method, handler: handler})
}

func (rt *Router) Get(pattern string, handler Handler)    { rt.AddRoute(pattern, "GET", handler) }
func (rt *Router) Post(pattern string, handler Handler)   { rt.AddRoute(pattern, "POST", handler) }
func (rt *Router) Put(pattern string, handler Handler)    { rt.AddRoute(pattern, "PUT", handler) }
func (rt *Router) Delete(pattern string, handler Handler) { rt.AddRoute(pattern, "DELETE", handler) }
func (rt *Router) Patch(pattern string, handler Handler)  { rt.AddRoute(pattern, "PATCH", handler) }

// AddWebSocketRoute registers a WebSocket upgrade handler for pattern.
func (rt *Router) AddWebSocketRoute(pattern string, handler WebSocketHandler) {
	rt.routes = append(rt.routes, route{pattern: pattern, method: "GET", isWS: true, wsHandler: handler})
}

// SetStaticFileServer enables static-file fallback for unmatched GETs.
func (rt *Router) SetStaticFileServer(s *StaticFileServer) {
	rt.static = s
}

// MatchResult is what Dispatch found before invoking a handler, exposed
// so the connection layer can special-case the WebSocket upgrade path
// (spec.md §2 "the Connection transfers ownership of the underlying
// socket to a WebSocket Connection").
type MatchResult struct {
	Response  *httpmsg.Response
	IsUpgrade bool
	WSHandler WebSocketHandler
}

// Dispatch runs the middleware chain, then resolves the request against
// the route table and (if enabled) static files, per spec.md §4.4 "Dispatch
// order for an incoming request".
func (rt *Router) Dispatch(req *httpmsg.Request, peerAddr string) MatchResult {
	for _, mw := range rt.middleware {
		if stop, resp := mw(req, peerAddr); stop {
			return MatchResult{Response: resp}
		}
	}

	// Step 2: exact match.
	for _, r := range rt.routes {
		if r.isPrefix() {
			continue
		}
		if r.pattern == req.Path && r.method == req.Method {
			if r.isWS {
				return MatchResult{IsUpgrade: true, WSHandler: r.wsHandler}
			}
			return MatchResult{Response: r.handler(req)}
		}
	}

	// Step 3: prefix match, first registered wins.
	for _, r := range rt.routes {
		if !r.isPrefix() || r.method != req.Method {
			continue
		}
		if strings.HasPrefix(req.Path, r.prefix()) {
			if r.isWS {
				return MatchResult{IsUpgrade: true, WSHandler: r.wsHandler}
			}
			return MatchResult{Response: r.handler(req)}
		}
	}

	// Step 4: static file fallback.
	if rt.static != nil && req.Method == "GET" {
		return MatchResult{Response: rt.static.Serve(req)}
	}

	// Step 5: 404.
	resp := httpmsg.NewResponse(404)
	resp.SetBody([]byte("404 Not Found"))
	return MatchResult{Response: resp}
}
