package server

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/corehttp/httpd/pkg/config"
	"github.com/corehttp/httpd/pkg/httpmsg"
	"github.com/corehttp/httpd/pkg/router"
)

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port
}

func TestListenAndServeHandlesOneRequest(t *testing.T) {
	cfg := config.Default()
	cfg.Host = "127.0.0.1"
	cfg.Port = freePort(t)

	rt := router.New()
	rt.Get("/hi", func(*httpmsg.Request) *httpmsg.Response {
		resp := httpmsg.NewResponse(200)
		resp.SetBody([]byte("hi"))
		return resp
	})

	srv := New(cfg, rt, nil)
	go srv.ListenAndServe()
	defer srv.Shutdown()

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	var conn net.Conn
	var err error
	for i := 0; i < 50; i++ {
		conn, err = net.Dial("tcp", addr)
		if err == nil {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("GET /hi HTTP/1.1\r\nHost: x\r\nConnection: close\r\n\r\n"))
	require.NoError(t, err)

	conn.SetReadDeadline(time.Now().Add(time.Second))
	resp, err := http.ReadResponse(bufio.NewReader(conn), nil)
	require.NoError(t, err)
	require.Equal(t, 200, resp.StatusCode)
	resp.Body.Close()
}

func TestAcceptLoopRejectsBeyondMaxConnections(t *testing.T) {
	cfg := config.Default()
	cfg.Host = "127.0.0.1"
	cfg.Port = freePort(t)
	cfg.MaxConnections = 1

	rt := router.New()
	srv := New(cfg, rt, nil)
	// Pretend one connection is already active, as acceptLoop would see
	// once Accept hands off to serveOne.
	srv.stats.ActiveConnections.Add(1)

	go srv.ListenAndServe()
	defer srv.Shutdown()

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	var conn net.Conn
	var err error
	for i := 0; i < 50; i++ {
		conn, err = net.Dial("tcp", addr)
		if err == nil {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	require.NoError(t, err)
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(time.Second))
	buf := make([]byte, 1)
	_, err = conn.Read(buf)
	require.Error(t, err, "server should close the connection immediately once over max_connections")
}

func TestShutdownStopsAcceptLoop(t *testing.T) {
	cfg := config.Default()
	cfg.Host = "127.0.0.1"
	cfg.Port = freePort(t)

	rt := router.New()
	srv := New(cfg, rt, nil)

	done := make(chan struct{})
	go func() {
		srv.ListenAndServe()
		close(done)
	}()

	// Wait for the listener to come up before shutting down.
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	for i := 0; i < 50; i++ {
		if c, err := net.Dial("tcp", addr); err == nil {
			c.Close()
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	srv.Shutdown()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("ListenAndServe did not return after Shutdown")
	}
}
