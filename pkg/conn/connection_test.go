package conn

import (
	"bufio"
	"compress/gzip"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/corehttp/httpd/pkg/httpmsg"
	"github.com/corehttp/httpd/pkg/router"
	"github.com/corehttp/httpd/pkg/stats"
)

func readResponse(t *testing.T, c net.Conn) *http.Response {
	t.Helper()
	c.SetReadDeadline(time.Now().Add(time.Second))
	resp, err := http.ReadResponse(bufio.NewReader(c), nil)
	require.NoError(t, err)
	return resp
}

func TestServeRespondsToSimpleGET(t *testing.T) {
	serverSide, clientSide := net.Pipe()
	defer clientSide.Close()

	rt := router.New()
	rt.Get("/hello", func(*httpmsg.Request) *httpmsg.Response {
		resp := httpmsg.NewResponse(200)
		resp.Headers.Set("Content-Type", "text/plain")
		resp.SetBody([]byte("hi"))
		return resp
	})

	c := New(serverSide, rt, stats.New(), nil, 0, router.CompressionConfig{})
	go c.Serve()

	_, err := clientSide.Write([]byte("GET /hello HTTP/1.1\r\nHost: x\r\nConnection: close\r\n\r\n"))
	require.NoError(t, err)

	resp := readResponse(t, clientSide)
	require.Equal(t, 200, resp.StatusCode)
	resp.Body.Close()
}

func TestServeKeepsAliveAcrossRequests(t *testing.T) {
	serverSide, clientSide := net.Pipe()
	defer clientSide.Close()

	rt := router.New()
	hits := 0
	rt.Get("/ping", func(*httpmsg.Request) *httpmsg.Response {
		hits++
		resp := httpmsg.NewResponse(200)
		resp.SetBody([]byte("pong"))
		return resp
	})

	c := New(serverSide, rt, stats.New(), nil, 0, router.CompressionConfig{})
	go c.Serve()

	for i := 0; i < 2; i++ {
		_, err := clientSide.Write([]byte("GET /ping HTTP/1.1\r\nHost: x\r\n\r\n"))
		require.NoError(t, err)
		resp := readResponse(t, clientSide)
		require.Equal(t, 200, resp.StatusCode)
		resp.Body.Close()
	}
	require.Equal(t, 2, hits)
}

func TestServeReturns404ForUnknownRoute(t *testing.T) {
	serverSide, clientSide := net.Pipe()
	defer clientSide.Close()

	rt := router.New()
	c := New(serverSide, rt, stats.New(), nil, 0, router.CompressionConfig{})
	go c.Serve()

	_, err := clientSide.Write([]byte("GET /missing HTTP/1.1\r\nHost: x\r\nConnection: close\r\n\r\n"))
	require.NoError(t, err)

	resp := readResponse(t, clientSide)
	require.Equal(t, 404, resp.StatusCode)
	resp.Body.Close()
}

func TestServeRecoversFromHandlerPanic(t *testing.T) {
	serverSide, clientSide := net.Pipe()
	defer clientSide.Close()

	rt := router.New()
	rt.Get("/boom", func(*httpmsg.Request) *httpmsg.Response {
		panic("exploded")
	})

	c := New(serverSide, rt, stats.New(), nil, 0, router.CompressionConfig{})
	go c.Serve()

	_, err := clientSide.Write([]byte("GET /boom HTTP/1.1\r\nHost: x\r\nConnection: close\r\n\r\n"))
	require.NoError(t, err)

	resp := readResponse(t, clientSide)
	require.Equal(t, 500, resp.StatusCode)
	resp.Body.Close()
}

func TestServeCompressesEligibleResponse(t *testing.T) {
	serverSide, clientSide := net.Pipe()
	defer clientSide.Close()

	body := strings.Repeat("compress me please ", 100)
	rt := router.New()
	rt.Get("/big", func(*httpmsg.Request) *httpmsg.Response {
		resp := httpmsg.NewResponse(200)
		resp.Headers.Set("Content-Type", "text/plain")
		resp.SetBody([]byte(body))
		return resp
	})

	compression := router.CompressionConfig{Enabled: true, MinSize: 256, Level: 6}
	c := New(serverSide, rt, stats.New(), nil, 0, compression)
	go c.Serve()

	req := "GET /big HTTP/1.1\r\nHost: x\r\nAccept-Encoding: gzip\r\nConnection: close\r\n\r\n"
	_, err := clientSide.Write([]byte(req))
	require.NoError(t, err)

	resp := readResponse(t, clientSide)
	defer resp.Body.Close()
	require.Equal(t, "gzip", resp.Header.Get("Content-Encoding"))

	reader, err := gzip.NewReader(resp.Body)
	require.NoError(t, err)
	decoded, err := io.ReadAll(reader)
	require.NoError(t, err)
	require.Equal(t, body, string(decoded))
}

func TestServeSkipsCompressionWithoutAcceptEncoding(t *testing.T) {
	serverSide, clientSide := net.Pipe()
	defer clientSide.Close()

	body := strings.Repeat("compress me please ", 100)
	rt := router.New()
	rt.Get("/big", func(*httpmsg.Request) *httpmsg.Response {
		resp := httpmsg.NewResponse(200)
		resp.Headers.Set("Content-Type", "text/plain")
		resp.SetBody([]byte(body))
		return resp
	})

	compression := router.CompressionConfig{Enabled: true, MinSize: 256, Level: 6}
	c := New(serverSide, rt, stats.New(), nil, 0, compression)
	go c.Serve()

	req := "GET /big HTTP/1.1\r\nHost: x\r\nConnection: close\r\n\r\n"
	_, err := clientSide.Write([]byte(req))
	require.NoError(t, err)

	resp := readResponse(t, clientSide)
	defer resp.Body.Close()
	require.Empty(t, resp.Header.Get("Content-Encoding"))
}
