// File: internal/transport/sender.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Frame sender: header plus payload over a non-blocking socket.

package transport

import (
	"errors"
	"fmt"
	"time"

	"github.com/eapache/queue"

	"github.com/momentics/vdma-stream/api"
)

// Outcome of one frame send.
type Outcome int

const (
	// Sent means every byte of header and payload was accepted.
	Sent Outcome = iota
	// Skipped means the socket was full before any byte went out.
	Skipped
)

func (o Outcome) String() string {
	if o == Skipped {
		return "skipped"
	}
	return "sent"
}

// Result describes a finished send attempt.
type Result struct {
	Outcome Outcome
	// Bytes counts header and payload bytes accepted by the socket.
	Bytes int
	// Chunks is the number of payload datagrams sent.
	Chunks int
	// Retries counts WouldBlock waits during the frame.
	Retries int
}

// SenderOptions tune framing and backpressure handling.
type SenderOptions struct {
	Kind api.TransportKind
	// ChunkSize is the payload bytes per datagram.
	ChunkSize int
	// RetryDelay is slept before retrying a blocked send.
	RetryDelay time.Duration
	// MaxRetries bounds consecutive WouldBlock results inside one frame.
	MaxRetries int
	// Sleep defaults to time.Sleep.
	Sleep func(time.Duration)
}

// DefaultSenderOptions returns the framing used by the receiver tools.
func DefaultSenderOptions(kind api.TransportKind) SenderOptions {
	return SenderOptions{
		Kind:       kind,
		ChunkSize:  1400,
		RetryDelay: 100 * time.Microsecond,
		MaxRetries: 10000,
		Sleep:      time.Sleep,
	}
}

// Sender owns the socket of a stream session. It is not safe for
// concurrent use.
type Sender struct {
	sock   api.Socket
	opts   SenderOptions
	chunks *queue.Queue
	iov    [][]byte
}

// NewSender validates opts and binds them to sock.
func NewSender(sock api.Socket, opts SenderOptions) (*Sender, error) {
	if sock == nil {
		return nil, api.ConfigError("sender needs a socket")
	}
	if opts.Kind == api.TransportDatagram && opts.ChunkSize <= 0 {
		return nil, api.ConfigError("chunk size must be positive, got %d", opts.ChunkSize)
	}
	if opts.MaxRetries < 0 {
		return nil, api.ConfigError("max retries must not be negative, got %d", opts.MaxRetries)
	}
	if opts.Sleep == nil {
		opts.Sleep = time.Sleep
	}
	return &Sender{
		sock:   sock,
		opts:   opts,
		chunks: queue.New(),
		iov:    make([][]byte, 0, 2),
	}, nil
}

// Kind returns the wire mode.
func (s *Sender) Kind() api.TransportKind { return s.opts.Kind }

// Close closes the socket.
func (s *Sender) Close() error { return s.sock.Close() }

// Send transmits header followed by payload. A full socket before the first
// byte yields Skipped with a nil error. Once bytes are out the frame is
// finished or the send fails with api.ErrSendStalled; any other socket
// error is returned as is.
func (s *Sender) Send(header, payload []byte) (Result, error) {
	if s.opts.Kind == api.TransportStream {
		return s.sendStream(header, payload)
	}
	return s.sendDatagrams(header, payload)
}

func (s *Sender) sendDatagrams(header, payload []byte) (Result, error) {
	var res Result
	n, err := s.sock.Send(header)
	if errors.Is(err, api.ErrWouldBlock) {
		res.Outcome = Skipped
		return res, nil
	}
	if err != nil {
		return res, fmt.Errorf("send header: %w", err)
	}
	if n != len(header) {
		return res, fmt.Errorf("send header: short datagram %d/%d", n, len(header))
	}
	res.Bytes += n

	for off := 0; off < len(payload); off += s.opts.ChunkSize {
		end := min(off+s.opts.ChunkSize, len(payload))
		s.chunks.Add(payload[off:end])
	}
	defer s.drop()

	blocked := 0
	for s.chunks.Length() > 0 {
		chunk := s.chunks.Peek().([]byte)
		n, err := s.sock.Send(chunk)
		if errors.Is(err, api.ErrWouldBlock) {
			if blocked >= s.opts.MaxRetries {
				return res, fmt.Errorf("chunk %d of frame after %d retries: %w", res.Chunks, blocked, api.ErrSendStalled)
			}
			blocked++
			res.Retries++
			s.opts.Sleep(s.opts.RetryDelay)
			continue
		}
		if err != nil {
			return res, fmt.Errorf("send chunk %d: %w", res.Chunks, err)
		}
		if n != len(chunk) {
			return res, fmt.Errorf("send chunk %d: short datagram %d/%d", res.Chunks, n, len(chunk))
		}
		s.chunks.Remove()
		blocked = 0
		res.Bytes += n
		res.Chunks++
	}
	return res, nil
}

// drop empties the chunk queue after an aborted frame.
func (s *Sender) drop() {
	for s.chunks.Length() > 0 {
		s.chunks.Remove()
	}
}

func (s *Sender) sendStream(header, payload []byte) (Result, error) {
	var res Result
	iov := append(s.iov[:0], header, payload)
	total := len(header) + len(payload)
	blocked := 0
	for res.Bytes < total {
		n, err := s.sock.SendBuffers(iov)
		if errors.Is(err, api.ErrWouldBlock) || (err == nil && n == 0) {
			if res.Bytes == 0 {
				res.Outcome = Skipped
				return res, nil
			}
			if blocked >= s.opts.MaxRetries {
				return res, fmt.Errorf("stream stalled at %d/%d bytes after %d retries: %w", res.Bytes, total, blocked, api.ErrSendStalled)
			}
			blocked++
			res.Retries++
			s.opts.Sleep(s.opts.RetryDelay)
			continue
		}
		if err != nil {
			return res, fmt.Errorf("send frame at %d/%d bytes: %w", res.Bytes, total, err)
		}
		res.Bytes += n
		iov = advance(iov, n)
		blocked = 0
	}
	return res, nil
}

// advance drops the first n bytes from bufs.
func advance(bufs [][]byte, n int) [][]byte {
	for n > 0 && len(bufs) > 0 {
		if n < len(bufs[0]) {
			bufs[0] = bufs[0][n:]
			return bufs
		}
		n -= len(bufs[0])
		bufs = bufs[1:]
	}
	for len(bufs) > 0 && len(bufs[0]) == 0 {
		bufs = bufs[1:]
	}
	return bufs
}
