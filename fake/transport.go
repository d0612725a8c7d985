// Package fake
// Author: momentics <momentics@gmail.com>
//
// Fake implementations for testing and development.
// Provides predictable, controllable behavior for all core interfaces.

package fake

import (
	"sync"

	"github.com/momentics/vdma-stream/api"
)

// SendScript decides the outcome of one send call. call counts from zero
// across Send and SendBuffers; want is the number of bytes offered. It
// returns how many bytes the socket accepts, or an error.
type SendScript func(call, want int) (int, error)

// AcceptAll accepts every byte offered.
func AcceptAll(_ int, want int) (int, error) { return want, nil }

// WouldBlockAlways reports a full socket buffer on every call.
func WouldBlockAlways(int, int) (int, error) { return 0, api.ErrWouldBlock }

// WouldBlockOn reports a full socket buffer for the listed calls and accepts
// everything otherwise.
func WouldBlockOn(calls ...int) SendScript {
	set := make(map[int]bool, len(calls))
	for _, c := range calls {
		set[c] = true
	}
	return func(call, want int) (int, error) {
		if set[call] {
			return 0, api.ErrWouldBlock
		}
		return want, nil
	}
}

// WouldBlockAfter accepts the first n calls and blocks forever after.
func WouldBlockAfter(n int) SendScript {
	return func(call, want int) (int, error) {
		if call >= n {
			return 0, api.ErrWouldBlock
		}
		return want, nil
	}
}

// ShortWrites accepts at most max bytes per call.
func ShortWrites(max int) SendScript {
	return func(_ int, want int) (int, error) {
		if want > max {
			return max, nil
		}
		return want, nil
	}
}

// Socket is a fake api.Socket that records what it accepts.
type Socket struct {
	mu         sync.Mutex
	script     SendScript
	calls      int
	datagrams  [][]byte
	stream     []byte
	closed     bool
	sendError  error
	closeError error
}

// NewSocket returns a socket that accepts everything.
func NewSocket() *Socket {
	return &Socket{script: AcceptAll}
}

// Send implements api.Socket. The accepted prefix is recorded both as one
// datagram and as stream bytes.
func (s *Socket) Send(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, err := s.step(len(p))
	if err != nil || n == 0 {
		return n, err
	}
	d := make([]byte, n)
	copy(d, p[:n])
	s.datagrams = append(s.datagrams, d)
	s.stream = append(s.stream, d...)
	return n, nil
}

// SendBuffers implements api.Socket.
func (s *Socket) SendBuffers(bufs [][]byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	want := 0
	for _, b := range bufs {
		want += len(b)
	}
	n, err := s.step(want)
	if err != nil || n == 0 {
		return n, err
	}
	left := n
	for _, b := range bufs {
		if left == 0 {
			break
		}
		k := min(len(b), left)
		s.stream = append(s.stream, b[:k]...)
		left -= k
	}
	return n, nil
}

func (s *Socket) step(want int) (int, error) {
	if s.closed {
		return 0, api.ErrTransportClosed
	}
	if s.sendError != nil {
		return 0, s.sendError
	}
	call := s.calls
	s.calls++
	n, err := s.script(call, want)
	if err != nil {
		return 0, err
	}
	return min(max(n, 0), want), nil
}

// Close implements api.Socket.
func (s *Socket) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closeError != nil {
		return s.closeError
	}
	s.closed = true
	return nil
}

// SetScript replaces the send behaviour. The call counter is reset.
func (s *Socket) SetScript(fn SendScript) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.script = fn
	s.calls = 0
}

// SetSendError makes every send fail with err.
func (s *Socket) SetSendError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sendError = err
}

// SetCloseError makes Close fail with err.
func (s *Socket) SetCloseError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeError = err
}

// Calls returns the number of send attempts that reached the script.
func (s *Socket) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// Closed reports whether Close succeeded.
func (s *Socket) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// GetSentData returns the accepted datagrams in order.
func (s *Socket) GetSentData() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]byte, len(s.datagrams))
	copy(out, s.datagrams)
	return out
}

// StreamBytes returns every accepted byte in order.
func (s *Socket) StreamBytes() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]byte(nil), s.stream...)
}

// ClearSentData drops everything recorded so far.
func (s *Socket) ClearSentData() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.datagrams = nil
	s.stream = nil
}

var _ api.Socket = (*Socket)(nil)
