package wsconn

import (
	"encoding/binary"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/corehttp/httpd/pkg/wsframe"
)

// maskedClientFrame builds a masked TEXT/BINARY frame the way a real
// client would send it (RFC 6455 §5.1 "a client MUST mask all frames").
func maskedClientFrame(opcode byte, payload []byte) []byte {
	key := [4]byte{0x11, 0x22, 0x33, 0x44}
	masked := append([]byte(nil), payload...)
	wsframe.MaskClientFrame(masked, key)

	length := len(masked)
	var out []byte
	switch {
	case length < 126:
		out = make([]byte, 2, 2+4+length)
		out[0] = 0x80 | opcode
		out[1] = 0x80 | byte(length)
	default:
		out = make([]byte, 4, 4+4+length)
		out[0] = 0x80 | opcode
		out[1] = 0x80 | 126
		binary.BigEndian.PutUint16(out[2:4], uint16(length))
	}
	out = append(out, key[:]...)
	out = append(out, masked...)
	return out
}

func TestServeEchoesTextFrame(t *testing.T) {
	serverSide, clientSide := net.Pipe()
	defer clientSide.Close()

	received := make(chan string, 1)
	handlers := Handlers{
		OnText: func(c *Connection, text string) {
			received <- text
		},
	}
	conn := New(serverSide, handlers, 0, nil, nil)
	go conn.Serve(nil)

	_, err := clientSide.Write(maskedClientFrame(wsframe.OpText, []byte("hello")))
	require.NoError(t, err)

	select {
	case text := <-received:
		require.Equal(t, "hello", text)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for OnText")
	}
}

func TestServeReassemblesFragmentedMessage(t *testing.T) {
	serverSide, clientSide := net.Pipe()
	defer clientSide.Close()

	received := make(chan string, 1)
	handlers := Handlers{
		OnText: func(c *Connection, text string) {
			received <- text
		},
	}
	conn := New(serverSide, handlers, 0, nil, nil)
	go conn.Serve(nil)

	key := [4]byte{0xAA, 0xBB, 0xCC, 0xDD}

	first := []byte("hel")
	wsframe.MaskClientFrame(first, key)
	frame1 := []byte{0x01, 0x80 | byte(len(first))}
	frame1 = append(frame1, key[:]...)
	frame1 = append(frame1, first...)

	second := []byte("lo")
	wsframe.MaskClientFrame(second, key)
	frame2 := []byte{0x80 | 0x00, 0x80 | byte(len(second))}
	frame2 = append(frame2, key[:]...)
	frame2 = append(frame2, second...)

	_, err := clientSide.Write(frame1)
	require.NoError(t, err)
	_, err = clientSide.Write(frame2)
	require.NoError(t, err)

	select {
	case text := <-received:
		require.Equal(t, "hello", text)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for reassembled message")
	}
}

func TestCloseHandshakeInvokesOnClose(t *testing.T) {
	serverSide, clientSide := net.Pipe()
	defer clientSide.Close()

	closed := make(chan uint16, 1)
	handlers := Handlers{
		OnClose: func(c *Connection, code uint16, reason string) {
			closed <- code
		},
	}
	conn := New(serverSide, handlers, 0, nil, nil)
	go conn.Serve(nil)

	payload := wsframe.ClosePayload(1000, "bye")
	_, err := clientSide.Write(maskedClientFrame(wsframe.OpClose, payload))
	require.NoError(t, err)

	select {
	case code := <-closed:
		require.Equal(t, uint16(1000), code)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for OnClose")
	}
}

func TestSendTextIsUnmaskedOnWire(t *testing.T) {
	serverSide, clientSide := net.Pipe()
	defer serverSide.Close()
	defer clientSide.Close()

	conn := New(serverSide, Handlers{}, 0, nil, nil)

	go func() {
		_ = conn.SendText("pong")
	}()

	buf := make([]byte, 64)
	clientSide.SetReadDeadline(time.Now().Add(time.Second))
	n, err := clientSide.Read(buf)
	require.NoError(t, err)

	frame, _, err := wsframe.Parse(buf[:n], 0)
	require.NoError(t, err)
	require.Equal(t, byte(wsframe.OpText), frame.Opcode)
	require.Equal(t, "pong", string(frame.Payload))
}
