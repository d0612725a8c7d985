// Package fake
// Author: momentics <momentics@gmail.com>
//
// Fake implementations for testing and development.
// Provides predictable, controllable behavior for all core interfaces.

package fake

import (
	"sync"

	"github.com/momentics/vdma-stream/internal/regs"
)

// NeverClear makes the simulated reset bit stick forever.
const NeverClear = -1

// RegWrite records one register store.
type RegWrite struct {
	Offset uint32
	Value  uint32
}

// Engine simulates the register block of a VDMA S2MM channel. It
// implements regs.Window.
type Engine struct {
	mu    sync.Mutex
	words map[uint32]uint32
	size  int

	// ResetReads is how many reads of the control register observe the reset
	// bit before it self-clears. NeverClear keeps it set.
	ResetReads int
	// FaultOnArm is raised together with the halted bit when VSIZE is written.
	FaultOnArm uint32
	// HaltOnStop sets the halted bit as soon as the run bit is cleared.
	HaltOnStop bool

	resetLeft    int
	resetPending bool
	armed        bool
	writes       []RegWrite
}

// NewEngine returns a halted, idle engine with a register window of size bytes.
func NewEngine(size int) *Engine {
	e := &Engine{
		words:      make(map[uint32]uint32),
		size:       size,
		HaltOnStop: true,
	}
	e.words[regs.Status.Offset] = regs.StatusHalted
	e.words[regs.Version.Offset] = 0x6200_0000
	return e
}

// Size implements regs.Window.
func (e *Engine) Size() int { return e.size }

// Read32 implements regs.Window.
func (e *Engine) Read32(off uint32) uint32 {
	e.mu.Lock()
	defer e.mu.Unlock()
	if off == regs.Control.Offset && e.resetPending {
		if e.ResetReads != NeverClear {
			if e.resetLeft <= 0 {
				e.completeReset()
			} else {
				e.resetLeft--
			}
		}
	}
	return e.words[off]
}

// Write32 implements regs.Window.
func (e *Engine) Write32(off uint32, v uint32) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.writes = append(e.writes, RegWrite{Offset: off, Value: v})

	switch off {
	case regs.Control.Offset:
		if v&regs.CtrlReset != 0 {
			e.words[off] = regs.CtrlReset
			e.resetPending = true
			e.resetLeft = e.ResetReads
			e.armed = false
			return
		}
		e.words[off] = v
		if v&regs.CtrlRun == 0 {
			e.armed = false
			if e.HaltOnStop {
				e.words[regs.Status.Offset] |= regs.StatusHalted
			}
		}
	case regs.Status.Offset:
		e.words[off] &^= v & regs.StatusClearMask
	case regs.VSize.Offset:
		e.words[off] = v
		if e.words[regs.Control.Offset]&regs.CtrlRun != 0 {
			e.armed = true
			st := e.words[regs.Status.Offset] &^ regs.StatusHalted
			if e.FaultOnArm != 0 {
				st |= regs.StatusHalted | e.FaultOnArm
			}
			e.words[regs.Status.Offset] = st
		}
	default:
		e.words[off] = v
	}
}

func (e *Engine) completeReset() {
	e.resetPending = false
	e.armed = false
	fc := e.words[regs.Status.Offset] & (regs.StatusFrameCountMask << regs.StatusFrameCountShift)
	e.words = map[uint32]uint32{
		regs.Status.Offset:  regs.StatusHalted | fc,
		regs.Version.Offset: 0x6200_0000,
	}
}

// Armed reports whether a transfer is in progress.
func (e *Engine) Armed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.armed
}

// Peek returns a register without read side effects.
func (e *Engine) Peek(off uint32) uint32 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.words[off]
}

// Writes returns the register stores in order.
func (e *Engine) Writes() []RegWrite {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]RegWrite, len(e.writes))
	copy(out, e.writes)
	return out
}

// SetFrameCount sets the frame counter field of the status register.
func (e *Engine) SetFrameCount(n uint32) {
	e.mu.Lock()
	defer e.mu.Unlock()
	st := e.words[regs.Status.Offset] &^ (regs.StatusFrameCountMask << regs.StatusFrameCountShift)
	e.words[regs.Status.Offset] = st | (n&regs.StatusFrameCountMask)<<regs.StatusFrameCountShift
}

// AdvanceFrame increments the frame counter by one, wrapping at the field width.
func (e *Engine) AdvanceFrame() {
	e.mu.Lock()
	n := (e.words[regs.Status.Offset] >> regs.StatusFrameCountShift) & regs.StatusFrameCountMask
	e.mu.Unlock()
	e.SetFrameCount(n + 1)
}

// Fault halts a running engine with the given error bits.
func (e *Engine) Fault(bits uint32) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.armed = false
	e.words[regs.Status.Offset] |= regs.StatusHalted | bits
}
