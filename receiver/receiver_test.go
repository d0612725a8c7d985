package receiver_test

import (
	"bytes"
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/vdma-stream/api"
	"github.com/momentics/vdma-stream/control"
	"github.com/momentics/vdma-stream/protocol"
	"github.com/momentics/vdma-stream/receiver"
)

type frame struct {
	h       protocol.Header
	payload []byte
}

var testGeom = api.Geometry{Width: 16, Height: 4, Format: api.PixelYUYV}

func header(t *testing.T, seq uint32, size int) []byte {
	t.Helper()
	h, err := protocol.BuildHeader(seq, testGeom, uint64(size), time.Unix(1700000000, 5000))
	require.NoError(t, err)
	return h[:]
}

func pattern(n int, seed byte) []byte {
	p := make([]byte, n)
	for i := range p {
		p[i] = seed + byte(i)
	}
	return p
}

// start runs a receiver on a loopback port and collects delivered frames.
func start(t *testing.T, opts receiver.Options) (*receiver.Receiver, <-chan frame, func()) {
	t.Helper()
	if opts.Listen == "" {
		opts.Listen = "127.0.0.1:0"
	}
	if opts.ReadTimeout == 0 {
		opts.ReadTimeout = 100 * time.Millisecond
	}
	opts.Logger = zerolog.Nop()
	frames := make(chan frame, 16)
	rx, err := receiver.Listen(opts, func(h protocol.Header, p []byte) error {
		frames <- frame{h: h, payload: bytes.Clone(p)}
		return nil
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- rx.Run(ctx) }()
	stop := func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Fatal("receiver did not stop")
		}
	}
	return rx, frames, stop
}

func next(t *testing.T, frames <-chan frame) frame {
	t.Helper()
	select {
	case f := <-frames:
		return f
	case <-time.After(5 * time.Second):
		t.Fatal("no frame received")
		return frame{}
	}
}

func udpConn(t *testing.T, rx *receiver.Receiver) net.Conn {
	t.Helper()
	c, err := net.Dial("udp", rx.Addr().String())
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestListenValidation(t *testing.T) {
	handler := func(protocol.Header, []byte) error { return nil }
	_, err := receiver.Listen(receiver.Options{Listen: "127.0.0.1:0"}, nil)
	assert.ErrorIs(t, err, api.ErrConfiguration)
	_, err = receiver.Listen(receiver.Options{}, handler)
	assert.ErrorIs(t, err, api.ErrConfiguration)
	_, err = receiver.Listen(receiver.Options{Kind: api.TransportKind(9), Listen: "127.0.0.1:0"}, handler)
	assert.ErrorIs(t, err, api.ErrConfiguration)
}

func TestDatagramTrailingPayloadInHeaderDatagram(t *testing.T) {
	rx, frames, stop := start(t, receiver.Options{Kind: api.TransportDatagram})
	defer stop()
	c := udpConn(t, rx)

	payload := pattern(100, 1)
	_, err := c.Write(append(header(t, 4, len(payload)), payload[:60]...))
	require.NoError(t, err)
	_, err = c.Write(payload[60:])
	require.NoError(t, err)

	f := next(t, frames)
	assert.Equal(t, uint32(4), f.h.Sequence)
	assert.Equal(t, uint32(16), f.h.Width)
	assert.Equal(t, api.PixelYUYV, f.h.Format)
	assert.Equal(t, payload, f.payload)
}

func TestDatagramTruncatesToPayloadSize(t *testing.T) {
	rx, frames, stop := start(t, receiver.Options{Kind: api.TransportDatagram})
	defer stop()
	c := udpConn(t, rx)

	_, err := c.Write(header(t, 0, 10))
	require.NoError(t, err)
	_, err = c.Write(pattern(16, 0))
	require.NoError(t, err)

	f := next(t, frames)
	assert.Equal(t, pattern(10, 0), f.payload)
}

func TestDatagramInvalidAndStray(t *testing.T) {
	rx, frames, stop := start(t, receiver.Options{Kind: api.TransportDatagram})
	defer stop()
	c := udpConn(t, rx)

	_, err := c.Write(make([]byte, 10))
	require.NoError(t, err)
	_, err = c.Write(make([]byte, 40))
	require.NoError(t, err)
	_, err = c.Write(header(t, 1, 0))
	require.NoError(t, err)

	f := next(t, frames)
	assert.Empty(t, f.payload)
	s := rx.Stats()
	assert.Equal(t, uint64(1), s.Stray)
	assert.Equal(t, uint64(1), s.Invalid)
	assert.Equal(t, uint64(1), s.Frames)
	assert.Equal(t, uint64(10+40+protocol.HeaderSize), s.Bytes)
}

func TestDatagramPartialFrameDropped(t *testing.T) {
	rx, frames, stop := start(t, receiver.Options{Kind: api.TransportDatagram, ReadTimeout: 50 * time.Millisecond})
	defer stop()
	c := udpConn(t, rx)

	_, err := c.Write(header(t, 0, 5000))
	require.NoError(t, err)
	_, err = c.Write(pattern(1400, 0))
	require.NoError(t, err)
	require.Eventually(t, func() bool { return rx.Stats().Partial == 1 }, 5*time.Second, 10*time.Millisecond)

	_, err = c.Write(append(header(t, 1, 3), 7, 8, 9))
	require.NoError(t, err)
	f := next(t, frames)
	assert.Equal(t, uint32(1), f.h.Sequence)
	assert.Equal(t, []byte{7, 8, 9}, f.payload)
	assert.Equal(t, uint64(0), rx.Stats().Dropped)
}

func TestDatagramDropDetection(t *testing.T) {
	rx, frames, stop := start(t, receiver.Options{Kind: api.TransportDatagram})
	defer stop()
	c := udpConn(t, rx)

	for _, seq := range []uint32{10, 11, 14} {
		_, err := c.Write(append(header(t, seq, 1), byte(seq)))
		require.NoError(t, err)
		assert.Equal(t, seq, next(t, frames).h.Sequence)
	}
	s := rx.Stats()
	assert.Equal(t, uint64(3), s.Frames)
	assert.Equal(t, uint64(2), s.Dropped)
	assert.Equal(t, uint32(14), s.LastSequence)
}

func TestDatagramOversizedHeaderRejected(t *testing.T) {
	rx, frames, stop := start(t, receiver.Options{Kind: api.TransportDatagram, MaxPayload: 64})
	defer stop()
	c := udpConn(t, rx)

	_, err := c.Write(header(t, 0, 65))
	require.NoError(t, err)
	_, err = c.Write(append(header(t, 1, 1), 1))
	require.NoError(t, err)

	assert.Equal(t, uint32(1), next(t, frames).h.Sequence)
	assert.Equal(t, uint64(1), rx.Stats().Invalid)
}

func TestFormatOverride(t *testing.T) {
	uyvy := api.PixelUYVY
	rx, frames, stop := start(t, receiver.Options{Kind: api.TransportDatagram, Format: &uyvy})
	defer stop()
	c := udpConn(t, rx)

	_, err := c.Write(header(t, 0, 0))
	require.NoError(t, err)
	assert.Equal(t, api.PixelUYVY, next(t, frames).h.Format)
}

func TestStreamFrames(t *testing.T) {
	rx, frames, stop := start(t, receiver.Options{Kind: api.TransportStream})
	defer stop()

	c, err := net.Dial("tcp", rx.Addr().String())
	require.NoError(t, err)
	a, b := pattern(3000, 1), pattern(70, 9)
	var wire []byte
	wire = append(wire, header(t, 0, len(a))...)
	wire = append(wire, a...)
	wire = append(wire, header(t, 2, len(b))...)
	wire = append(wire, b...)
	_, err = c.Write(wire)
	require.NoError(t, err)

	f := next(t, frames)
	assert.Equal(t, uint32(0), f.h.Sequence)
	assert.Equal(t, a, f.payload)
	f = next(t, frames)
	assert.Equal(t, uint32(2), f.h.Sequence)
	assert.Equal(t, b, f.payload)
	require.NoError(t, c.Close())

	// A second sender is accepted after the first disconnects.
	c, err = net.Dial("tcp", rx.Addr().String())
	require.NoError(t, err)
	defer c.Close()
	_, err = c.Write(append(header(t, 3, 2), 5, 6))
	require.NoError(t, err)
	f = next(t, frames)
	assert.Equal(t, []byte{5, 6}, f.payload)

	s := rx.Stats()
	assert.Equal(t, uint64(3), s.Frames)
	assert.Equal(t, uint64(1), s.Dropped)
	assert.Equal(t, uint64(3*protocol.HeaderSize+3000+70+2), s.Bytes)
}

func TestStreamBadMagicDropsConnection(t *testing.T) {
	rx, _, stop := start(t, receiver.Options{Kind: api.TransportStream})
	defer stop()

	c, err := net.Dial("tcp", rx.Addr().String())
	require.NoError(t, err)
	defer c.Close()
	_, err = c.Write(make([]byte, protocol.HeaderSize))
	require.NoError(t, err)

	require.Eventually(t, func() bool { return rx.Stats().Invalid == 1 }, 5*time.Second, 10*time.Millisecond)
	require.NoError(t, c.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, err = c.Read(make([]byte, 1))
	assert.Error(t, err, "receiver closes the connection")
}

func TestStreamPartialFrame(t *testing.T) {
	rx, _, stop := start(t, receiver.Options{Kind: api.TransportStream})
	defer stop()

	c, err := net.Dial("tcp", rx.Addr().String())
	require.NoError(t, err)
	_, err = c.Write(append(header(t, 0, 100), pattern(40, 0)...))
	require.NoError(t, err)
	require.NoError(t, c.Close())

	require.Eventually(t, func() bool { return rx.Stats().Partial == 1 }, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, uint64(0), rx.Stats().Frames)
}

func TestHandlerErrorStopsRun(t *testing.T) {
	boom := errors.New("disk full")
	rx, err := receiver.Listen(receiver.Options{
		Kind:        api.TransportDatagram,
		Listen:      "127.0.0.1:0",
		ReadTimeout: 50 * time.Millisecond,
		Logger:      zerolog.Nop(),
	}, func(protocol.Header, []byte) error { return boom })
	require.NoError(t, err)
	defer rx.Close()

	done := make(chan error, 1)
	go func() { done <- rx.Run(context.Background()) }()

	c := udpConn(t, rx)
	_, err = c.Write(header(t, 0, 0))
	require.NoError(t, err)
	select {
	case err := <-done:
		assert.ErrorIs(t, err, boom)
	case <-time.After(5 * time.Second):
		t.Fatal("run did not stop")
	}
}

func TestFileSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "frames.raw")
	sink, err := receiver.NewFileSink(path)
	require.NoError(t, err)
	require.NoError(t, sink.Write(protocol.Header{}, []byte("abc")))
	require.NoError(t, sink.Write(protocol.Header{}, []byte("de")))
	require.NoError(t, sink.Close())

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "abcde", string(got))
}

func TestReporterPublishes(t *testing.T) {
	rx, frames, stop := start(t, receiver.Options{Kind: api.TransportDatagram})
	defer stop()
	c := udpConn(t, rx)
	_, err := c.Write(append(header(t, 0, 2), 1, 2))
	require.NoError(t, err)
	next(t, frames)

	metrics := control.NewMetricsRegistry()
	rep := receiver.NewReporter(rx, metrics, time.Second, zerolog.Nop())
	now := time.Now()
	rep.Report(now)
	rep.Report(now.Add(time.Second))

	v, ok := metrics.Get("receiver.frames")
	require.True(t, ok)
	assert.Equal(t, uint64(1), v)
}
