// File: selector/selector.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Buffer selection against a free-running DMA writer.

// Package selector picks the frame buffer that is safe to read while the
// hardware keeps writing the circular buffer set.
package selector

import "github.com/momentics/vdma-stream/api"

// ReadIndex returns the slot immediately behind writer w in a ring of n
// slots: the most recently completed frame. With a single slot the writer
// and reader share slot 0 and torn frames are possible.
func ReadIndex(w, n int) int {
	if n <= 1 {
		return 0
	}
	return (w%n + n - 1) % n
}

// Selection is the outcome of one poll.
type Selection struct {
	WriteIndex int
	ReadIndex  int
	// Forced is set when an unchanged write index was re-sent by force-send.
	Forced bool
}

// Selector tracks the last observed write index. It is owned by a single
// polling goroutine.
type Selector struct {
	n      int
	polled bool
	last   Selection
}

// New returns a selector for a ring of n slots.
func New(n int) (*Selector, error) {
	if n <= 0 {
		return nil, api.ConfigError("selector needs at least one buffer, got %d", n)
	}
	return &Selector{n: n}, nil
}

// Buffers returns the ring size.
func (s *Selector) Buffers() int { return s.n }

// Next consumes one observation of the write index. It reports false when
// w is unchanged since the previous poll and force is off; the caller backs
// off and polls again. With force on, an unchanged index yields the
// previous selection again.
func (s *Selector) Next(w int, force bool) (Selection, bool) {
	if s.polled && w == s.last.WriteIndex {
		if !force {
			return Selection{}, false
		}
		sel := s.last
		sel.Forced = true
		return sel, true
	}
	s.polled = true
	s.last = Selection{WriteIndex: w, ReadIndex: ReadIndex(w, s.n)}
	return s.last, true
}

// Last returns the most recent selection and whether one was made.
func (s *Selector) Last() (Selection, bool) { return s.last, s.polled }
