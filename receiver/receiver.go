// File: receiver/receiver.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Receiving end of a frame stream: reassembles frames sent over UDP chunks
// or a TCP byte stream and hands them to a handler.

package receiver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/momentics/vdma-stream/api"
	"github.com/momentics/vdma-stream/protocol"
)

// Handler consumes one complete frame. The payload is only valid for the
// duration of the call. A non-nil error stops Run.
type Handler func(h protocol.Header, payload []byte) error

// MaxDatagram is the receive buffer size for one datagram.
const MaxDatagram = 65535

// Options configure a Receiver.
type Options struct {
	Kind api.TransportKind
	// Listen is the local address, e.g. ":5000".
	Listen string
	// ReadTimeout bounds the wait for the next datagram of a frame and the
	// accept poll interval.
	ReadTimeout time.Duration
	// MaxPayload rejects headers announcing larger frames.
	MaxPayload uint32
	// Format, when non-nil, replaces the format tag reported to the handler.
	Format *api.PixelFormat
	Logger zerolog.Logger
}

// DefaultOptions listens on UDP port 5000.
func DefaultOptions() Options {
	return Options{
		Kind:        api.TransportDatagram,
		Listen:      ":5000",
		ReadTimeout: time.Second,
		MaxPayload:  64 << 20,
		Logger:      zerolog.Nop(),
	}
}

// Receiver owns one listening socket.
type Receiver struct {
	opts    Options
	log     zerolog.Logger
	handler Handler

	pc net.PacketConn
	ln net.Listener

	mu   sync.Mutex
	conn net.Conn

	seq      sequenceTracker
	counters counters
}

// Listen binds the local socket. Frames are only read once Run is called.
func Listen(opts Options, handler Handler) (*Receiver, error) {
	if handler == nil {
		return nil, api.ConfigError("receiver needs a frame handler")
	}
	if opts.Listen == "" {
		return nil, api.ConfigError("receiver needs a listen address")
	}
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = time.Second
	}
	if opts.MaxPayload == 0 {
		opts.MaxPayload = protocol.MaxPayload
	}
	r := &Receiver{
		opts:    opts,
		log:     opts.Logger.With().Str("component", "receiver").Str("transport", opts.Kind.String()).Logger(),
		handler: handler,
	}
	var err error
	switch opts.Kind {
	case api.TransportDatagram:
		r.pc, err = net.ListenPacket("udp", opts.Listen)
		if err == nil {
			if uc, ok := r.pc.(*net.UDPConn); ok {
				_ = uc.SetReadBuffer(8 << 20)
			}
		}
	case api.TransportStream:
		r.ln, err = net.Listen("tcp", opts.Listen)
	default:
		return nil, api.ConfigError("unknown transport %s", opts.Kind)
	}
	if err != nil {
		return nil, fmt.Errorf("listen %s %s: %w", opts.Kind, opts.Listen, err)
	}
	r.log.Info().Str("addr", r.Addr().String()).Msg("receiver listening")
	return r, nil
}

// Addr is the bound local address.
func (r *Receiver) Addr() net.Addr {
	if r.pc != nil {
		return r.pc.LocalAddr()
	}
	return r.ln.Addr()
}

// Run receives frames until ctx is cancelled, the handler fails or the
// socket breaks. Cancellation returns nil.
func (r *Receiver) Run(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() { _ = r.Close() })
	defer stop()

	var err error
	if r.pc != nil {
		err = r.runDatagram(ctx)
	} else {
		err = r.runStream(ctx)
	}
	if ctx.Err() != nil && (err == nil || errors.Is(err, net.ErrClosed)) {
		return nil
	}
	return err
}

// Close releases the listening socket and any accepted connection.
func (r *Receiver) Close() error {
	r.mu.Lock()
	if r.conn != nil {
		_ = r.conn.Close()
	}
	r.mu.Unlock()
	if r.pc != nil {
		return ignoreClosed(r.pc.Close())
	}
	return ignoreClosed(r.ln.Close())
}

func (r *Receiver) runDatagram(ctx context.Context) error {
	buf := make([]byte, MaxDatagram)
	var frame []byte
	for ctx.Err() == nil {
		n, err := r.readDatagram(buf)
		if isTimeout(err) {
			continue
		}
		if err != nil {
			return err
		}
		r.counters.bytes.Add(uint64(n))
		if n < protocol.HeaderSize {
			r.counters.stray.Add(1)
			r.log.Debug().Int("len", n).Msg("stray datagram ignored")
			continue
		}
		h, _ := protocol.ParseHeader(buf[:n])
		if !h.Valid() {
			r.counters.invalid.Add(1)
			r.log.Debug().Uint32("magic", h.Magic).Msg("invalid frame header")
			continue
		}
		if h.PayloadSize > r.opts.MaxPayload {
			r.counters.invalid.Add(1)
			r.log.Warn().Uint32("payload_size", h.PayloadSize).Msg("frame too large, ignored")
			continue
		}
		r.track(h)

		size := int(h.PayloadSize)
		frame = append(frame[:0], buf[protocol.HeaderSize:n]...)
		complete := true
		for len(frame) < size {
			n, err := r.readDatagram(buf)
			if isTimeout(err) {
				complete = false
				break
			}
			if err != nil {
				return err
			}
			r.counters.bytes.Add(uint64(n))
			frame = append(frame, buf[:n]...)
		}
		if !complete {
			r.counters.partial.Add(1)
			r.log.Debug().Uint32("seq", h.Sequence).Int("have", len(frame)).Int("want", size).Msg("partial frame dropped")
			continue
		}
		if err := r.deliver(h, frame[:size]); err != nil {
			return err
		}
	}
	return nil
}

func (r *Receiver) readDatagram(buf []byte) (int, error) {
	if err := r.pc.SetReadDeadline(time.Now().Add(r.opts.ReadTimeout)); err != nil {
		return 0, err
	}
	n, _, err := r.pc.ReadFrom(buf)
	return n, err
}

func (r *Receiver) runStream(ctx context.Context) error {
	for ctx.Err() == nil {
		conn, err := r.accept()
		if isTimeout(err) {
			continue
		}
		if err != nil {
			return err
		}
		err = r.serveConn(ctx, conn)
		_ = conn.Close()
		r.mu.Lock()
		r.conn = nil
		r.mu.Unlock()
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *Receiver) accept() (net.Conn, error) {
	if tl, ok := r.ln.(*net.TCPListener); ok {
		if err := tl.SetDeadline(time.Now().Add(r.opts.ReadTimeout)); err != nil {
			return nil, err
		}
	}
	conn, err := r.ln.Accept()
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	r.conn = conn
	r.mu.Unlock()
	r.log.Info().Str("peer", conn.RemoteAddr().String()).Msg("sender connected")
	return conn, nil
}

// serveConn reads frames until the peer closes. A bad header drops the
// connection since the byte stream can no longer be framed.
func (r *Receiver) serveConn(ctx context.Context, conn net.Conn) error {
	var frame []byte
	for ctx.Err() == nil {
		h, err := protocol.ReadHeader(conn)
		if errors.Is(err, protocol.ErrBadMagic) {
			r.counters.invalid.Add(1)
			r.log.Warn().Uint32("magic", h.Magic).Msg("invalid frame header, dropping connection")
			return nil
		}
		if err != nil {
			return r.connEnded(ctx, err)
		}
		r.counters.bytes.Add(protocol.HeaderSize)
		if h.PayloadSize > r.opts.MaxPayload {
			r.counters.invalid.Add(1)
			r.log.Warn().Uint32("payload_size", h.PayloadSize).Msg("frame too large, dropping connection")
			return nil
		}
		r.track(h)

		size := int(h.PayloadSize)
		if cap(frame) < size {
			frame = make([]byte, size)
		}
		frame = frame[:size]
		n, err := io.ReadFull(conn, frame)
		r.counters.bytes.Add(uint64(n))
		if err != nil {
			r.counters.partial.Add(1)
			return r.connEnded(ctx, err)
		}
		if err := r.deliver(h, frame); err != nil {
			return err
		}
	}
	return nil
}

// connEnded turns a read failure into nil when the peer went away.
func (r *Receiver) connEnded(ctx context.Context, err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, net.ErrClosed) || ctx.Err() != nil {
		r.log.Info().Msg("sender disconnected")
		return nil
	}
	return err
}

func (r *Receiver) track(h protocol.Header) {
	if gap := r.seq.observe(h.Sequence); gap > 0 {
		r.counters.dropped.Add(uint64(gap))
		r.log.Debug().Uint32("seq", h.Sequence).Uint32("missed", gap).Msg("frames dropped")
	}
	r.counters.lastSeq.Store(h.Sequence)
}

func (r *Receiver) deliver(h protocol.Header, payload []byte) error {
	if r.opts.Format != nil {
		h.Format = *r.opts.Format
	}
	r.counters.frames.Add(1)
	if err := r.handler(h, payload); err != nil {
		return fmt.Errorf("frame %d: %w", h.Sequence, err)
	}
	return nil
}

func isTimeout(err error) bool {
	return err != nil && errors.Is(err, os.ErrDeadlineExceeded)
}

func ignoreClosed(err error) error {
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}
