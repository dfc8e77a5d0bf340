// Package server implements the orchestrator (spec.md §4.6): listening
// sockets, the accept loop, connection-count enforcement, and graceful
// shutdown. Grounded on pepnova-9-go-websocket-server's net.Listen +
// goroutine-per-connection accept loop, generalized to plain and TLS
// listeners and a stop signal instead of a single long-lived process.
package server

import (
	"fmt"
	"log"
	"net"
	"os"
	"sync"
	"sync/atomic"

	"github.com/corehttp/httpd/pkg/config"
	"github.com/corehttp/httpd/pkg/conn"
	"github.com/corehttp/httpd/pkg/ratelimit"
	"github.com/corehttp/httpd/pkg/router"
	"github.com/corehttp/httpd/pkg/stats"
	"github.com/corehttp/httpd/pkg/tlsconfig"
	"github.com/corehttp/httpd/pkg/workerpool"
)

// Server owns the listening sockets, the shared route table, the rate
// limiter, and the statistics (spec.md §4.6 "Maintains listening
// sockets... a shared set of routes and middleware, and the statistics").
type Server struct {
	cfg    *config.Config
	router *router.Router
	stats  *stats.Stats
	logger *log.Logger
	pool   *workerpool.Pool

	plainListener net.Listener
	tlsListener   net.Listener

	closing atomic.Bool
	wg      sync.WaitGroup
}

// New builds a Server. rt should already have its routes, middleware, and
// (if enabled) rate limiter wired in by the caller via rt.Use(rl.Middleware).
func New(cfg *config.Config, rt *router.Router, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(os.Stderr, "[httpd] ", log.LstdFlags)
	}
	return &Server{
		cfg:    cfg,
		router: rt,
		stats:  stats.New(),
		logger: logger,
		pool:   workerpool.New(cfg.WorkerPoolSize),
	}
}

// Stats exposes the live counters, e.g. for a /stats handler.
func (s *Server) Stats() *stats.Stats { return s.stats }

// Pool exposes the worker pool for handlers that opt into offloading
// CPU-heavy work (spec.md §4.6 "utility... not used by the core dispatch
// loop").
func (s *Server) Pool() *workerpool.Pool { return s.pool }

// ListenAndServe starts the plain listener and, if configured, the TLS
// listener, and blocks until both accept loops return.
func (s *Server) ListenAndServe() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.plainListener = ln
	s.logger.Printf("listening on %s", ln.Addr())

	s.wg.Add(1)
	go s.acceptLoop(ln, false)

	if s.cfg.EnableHTTPS {
		tlsCfg, err := tlsconfig.BuildServerConfig(tlsconfig.ServerOptions{
			CertFile:     s.cfg.SSLCertificateFile,
			KeyFile:      s.cfg.SSLPrivateKeyFile,
			CAFile:       s.cfg.SSLCAFile,
			VerifyClient: s.cfg.SSLVerifyClient,
		})
		if err != nil {
			return err
		}
		tlsAddr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.HTTPSPort)
		tln, err := tlsListen(tlsAddr, tlsCfg)
		if err != nil {
			return err
		}
		s.tlsListener = tln
		s.logger.Printf("listening (tls) on %s", tln.Addr())

		s.wg.Add(1)
		go s.acceptLoop(tln, true)
	}

	s.wg.Wait()
	return nil
}

// acceptLoop accepts connections until the listener is closed, refusing
// new work once active_connections reaches the configured limit
// (spec.md §4.6 "On accept: increments total_connections and
// active_connections"; spec.md "Resource limits": max_connections).
func (s *Server) acceptLoop(ln net.Listener, isTLS bool) {
	defer s.wg.Done()
	for {
		c, err := ln.Accept()
		if err != nil {
			if s.closing.Load() {
				return
			}
			s.logger.Printf("accept error: %v", err)
			continue
		}

		if s.cfg.MaxConnections > 0 && s.stats.ActiveConnections.Load() >= int64(s.cfg.MaxConnections) {
			c.Close()
			continue
		}

		go s.serveOne(c)
	}
}

// tlsHandshaker is implemented by *tls.Conn; performing the handshake
// explicitly on accept (rather than lazily on first Read) matches
// spec.md §4.3 "TLS variant... on accept it performs a TLS handshake
// before entering AwaitingRequest".
type tlsHandshaker interface {
	Handshake() error
}

func (s *Server) serveOne(c net.Conn) {
	if th, ok := c.(tlsHandshaker); ok {
		if err := th.Handshake(); err != nil {
			s.logger.Printf("tls handshake failed: %v", err)
			c.Close()
			return
		}
	}
	maxBody := s.cfg.MaxRequestSize
	connection := conn.New(c, s.router, s.stats, s.logger, maxBody, s.compressionConfig())
	connection.Serve()
}

// compressionConfig builds the post-dispatch compression settings
// (spec.md §4.4 "Post-dispatch") from cfg's compression fields.
func (s *Server) compressionConfig() router.CompressionConfig {
	return router.CompressionConfig{
		Enabled:           s.cfg.EnableCompression,
		MinSize:           s.cfg.CompressionMinSize,
		Level:             s.cfg.CompressionLevel,
		CompressibleTypes: s.cfg.CompressibleTypes,
	}
}

// Shutdown closes the acceptors so the accept loops return (spec.md
// §4.6 "On shutdown: closes the acceptors and signals the event loop to
// drain"). In-flight connections finish their current request/response
// naturally via their own keep-alive timeouts.
func (s *Server) Shutdown() {
	s.closing.Store(true)
	if s.plainListener != nil {
		s.plainListener.Close()
	}
	if s.tlsListener != nil {
		s.tlsListener.Close()
	}
}

// BuildRouter wires the rate limiter (if enabled) and static file server
// into rt, in the order spec.md §2 describes (middleware chain including
// the rate limiter runs before route dispatch).
func BuildRouter(cfg *config.Config, rt *router.Router, rl *ratelimit.RateLimiter) {
	if rl != nil {
		rt.Use(rl.Middleware)
	}
	if cfg.ServeStaticFiles && cfg.DocumentRoot != "" {
		rt.SetStaticFileServer(router.NewStaticFileServer(cfg.DocumentRoot, cfg.IndexFiles, cfg.MimeTypes))
	}
}
