// File: internal/regs/window.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Raw 32-bit access to a memory-mapped register window.

package regs

import (
	"fmt"
	"sync/atomic"
	"unsafe"
)

// Window is a fixed-size block of 32-bit device registers.
type Window interface {
	Read32(off uint32) uint32
	Write32(off uint32, v uint32)
	Size() int
}

// Mapped is a Window over memory returned by mmap. Every access is a single
// aligned 32-bit load or store, so the device never observes a torn write.
type Mapped struct {
	mem []byte
}

// NewMapped wraps mem. The slice must stay mapped for the lifetime of the window.
func NewMapped(mem []byte) (*Mapped, error) {
	if len(mem) < 4 {
		return nil, fmt.Errorf("regs: window too small (%d bytes)", len(mem))
	}
	if uintptr(unsafe.Pointer(&mem[0]))%4 != 0 {
		return nil, fmt.Errorf("regs: window base is not 32-bit aligned")
	}
	return &Mapped{mem: mem}, nil
}

func (m *Mapped) word(off uint32) *uint32 {
	if off%4 != 0 || int(off)+4 > len(m.mem) {
		panic(fmt.Sprintf("regs: offset 0x%x outside window of %d bytes", off, len(m.mem)))
	}
	return (*uint32)(unsafe.Pointer(&m.mem[off]))
}

// Read32 loads the register at off.
func (m *Mapped) Read32(off uint32) uint32 {
	return atomic.LoadUint32(m.word(off))
}

// Write32 stores v into the register at off.
func (m *Mapped) Write32(off uint32, v uint32) {
	atomic.StoreUint32(m.word(off), v)
}

// Size returns the window length in bytes.
func (m *Mapped) Size() int { return len(m.mem) }
