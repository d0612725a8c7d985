// File: internal/regs/block.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Typed view over the S2MM register window.

package regs

import "fmt"

// Block gives named, access-checked access to the VDMA registers of a Window.
type Block struct {
	w Window
}

// NewBlock checks that w covers the full register layout.
func NewBlock(w Window) (*Block, error) {
	if w == nil {
		return nil, fmt.Errorf("regs: nil window")
	}
	if w.Size() < MinWindowSize {
		return nil, fmt.Errorf("regs: window of %d bytes is smaller than register block (%d)", w.Size(), MinWindowSize)
	}
	return &Block{w: w}, nil
}

// Read returns the current value of r.
func (b *Block) Read(r Reg) uint32 {
	return b.w.Read32(r.Offset)
}

// Write stores v into r. Writing a read-only register is a programming error.
func (b *Block) Write(r Reg, v uint32) {
	if r.Access == ReadOnly {
		panic(fmt.Sprintf("regs: write to read-only register %s", r.Name))
	}
	b.w.Write32(r.Offset, v)
}

// Set ORs bits into a read/write register.
func (b *Block) Set(r Reg, bits uint32) {
	b.mustRW(r)
	b.w.Write32(r.Offset, b.w.Read32(r.Offset)|bits)
}

// Clear clears bits of a read/write register.
func (b *Block) Clear(r Reg, bits uint32) {
	b.mustRW(r)
	b.w.Write32(r.Offset, b.w.Read32(r.Offset)&^bits)
}

// Acknowledge clears the given bits of a write-one-to-clear register.
func (b *Block) Acknowledge(r Reg, bits uint32) {
	if r.Access != WriteOneToClear {
		panic(fmt.Sprintf("regs: %s is not write-one-to-clear", r.Name))
	}
	b.w.Write32(r.Offset, bits)
}

// IsSet reports whether all bits are set in r.
func (b *Block) IsSet(r Reg, bits uint32) bool {
	return b.w.Read32(r.Offset)&bits == bits
}

// FrameCount extracts the frame counter field of the status register.
func (b *Block) FrameCount() uint32 {
	return (b.Read(Status) >> StatusFrameCountShift) & StatusFrameCountMask
}

func (b *Block) mustRW(r Reg) {
	if r.Access != ReadWrite {
		panic(fmt.Sprintf("regs: read-modify-write on %s", r.Name))
	}
}
