//go:build linux

package transport_test

import (
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/vdma-stream/api"
	"github.com/momentics/vdma-stream/internal/transport"
)

func TestDatagramLoopback(t *testing.T) {
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	defer pc.Close()

	sock, err := transport.Dial(transport.DialOptions{Kind: api.TransportDatagram, Address: pc.LocalAddr().String()})
	require.NoError(t, err)
	defer sock.Close()

	n, err := sock.Send([]byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	n, err = sock.SendBuffers([][]byte{[]byte("ab"), []byte("cd")})
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	buf := make([]byte, 64)
	require.NoError(t, pc.SetReadDeadline(time.Now().Add(2*time.Second)))
	n, _, err = pc.ReadFrom(buf)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(buf[:n]))
	n, _, err = pc.ReadFrom(buf)
	require.NoError(t, err)
	assert.Equal(t, "abcd", string(buf[:n]), "buffers are gathered into one datagram")
}

func TestStreamLoopback(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	got := make(chan []byte, 1)
	go func() {
		c, err := ln.Accept()
		if err != nil {
			got <- nil
			return
		}
		defer c.Close()
		b := make([]byte, 9)
		_, _ = io.ReadFull(c, b)
		got <- b
	}()

	sock, err := transport.Dial(transport.DialOptions{
		Kind:    api.TransportStream,
		Address: ln.Addr().String(),
		NoDelay: true,
	})
	require.NoError(t, err)
	defer sock.Close()

	n, err := sock.SendBuffers([][]byte{[]byte("head"), []byte("er+pl")})
	require.NoError(t, err)
	assert.Equal(t, 9, n)

	select {
	case b := <-got:
		assert.Equal(t, "header+pl", string(b))
	case <-time.After(2 * time.Second):
		t.Fatal("peer did not receive data")
	}
}

func TestStreamBackpressureIsWouldBlock(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		c, err := ln.Accept()
		if err == nil {
			accepted <- c
		}
	}()

	sock, err := transport.Dial(transport.DialOptions{
		Kind:       api.TransportStream,
		Address:    ln.Addr().String(),
		SendBuffer: 4096,
	})
	require.NoError(t, err)
	defer sock.Close()

	var peer net.Conn
	select {
	case peer = <-accepted:
		defer peer.Close()
	case <-time.After(2 * time.Second):
		t.Fatal("accept timed out")
	}

	chunk := make([]byte, 64<<10)
	var sendErr error
	for i := 0; i < 10000 && sendErr == nil; i++ {
		_, sendErr = sock.Send(chunk)
	}
	assert.ErrorIs(t, sendErr, api.ErrWouldBlock)
}

func TestDialErrors(t *testing.T) {
	_, err := transport.Dial(transport.DialOptions{Kind: api.TransportDatagram})
	assert.ErrorIs(t, err, api.ErrConfiguration)

	_, err = transport.Dial(transport.DialOptions{Kind: api.TransportDatagram, Address: "no-port"})
	assert.ErrorIs(t, err, api.ErrConfiguration)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	_, err = transport.Dial(transport.DialOptions{Kind: api.TransportStream, Address: addr, ConnectTimeout: time.Second})
	require.Error(t, err)
	assert.False(t, errors.Is(err, api.ErrWouldBlock))
}

func TestSocketClose(t *testing.T) {
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	defer pc.Close()

	sock, err := transport.Dial(transport.DialOptions{Kind: api.TransportDatagram, Address: pc.LocalAddr().String()})
	require.NoError(t, err)
	require.NoError(t, sock.Close())
	require.NoError(t, sock.Close())

	_, err = sock.Send([]byte("x"))
	assert.ErrorIs(t, err, api.ErrTransportClosed)
	_, err = sock.SendBuffers([][]byte{[]byte("x")})
	assert.ErrorIs(t, err, api.ErrTransportClosed)
}
