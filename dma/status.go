// File: dma/status.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Decoding of the S2MM status register.

package dma

import (
	"fmt"
	"strings"

	"github.com/momentics/vdma-stream/api"
	"github.com/momentics/vdma-stream/internal/regs"
)

// ErrorFlags is the set of error bits reported by the engine.
type ErrorFlags uint32

var flagNames = []struct {
	bit  uint32
	name string
}{
	{regs.StatusIntErr, "internal"},
	{regs.StatusSlvErr, "slave"},
	{regs.StatusDecErr, "decode"},
	{regs.StatusSOFEarly, "sof-early"},
	{regs.StatusEOLEarly, "eol-early"},
	{regs.StatusSOFLate, "sof-late"},
	{regs.StatusEOLLate, "eol-late"},
}

// Internal reports a VDMA internal error.
func (f ErrorFlags) Internal() bool { return uint32(f)&regs.StatusIntErr != 0 }

// Slave reports an AXI slave error on a buffer write.
func (f ErrorFlags) Slave() bool { return uint32(f)&regs.StatusSlvErr != 0 }

// Decode reports an AXI decode error (unmapped buffer address).
func (f ErrorFlags) Decode() bool { return uint32(f)&regs.StatusDecErr != 0 }

// Timing reports any start/end-of-line timing error.
func (f ErrorFlags) Timing() bool {
	return uint32(f)&(regs.StatusSOFEarly|regs.StatusEOLEarly|regs.StatusSOFLate|regs.StatusEOLLate) != 0
}

// Names lists the set flags in register bit order.
func (f ErrorFlags) Names() []string {
	var out []string
	for _, n := range flagNames {
		if uint32(f)&n.bit != 0 {
			out = append(out, n.name)
		}
	}
	return out
}

func (f ErrorFlags) String() string {
	if f == 0 {
		return "none"
	}
	return strings.Join(f.Names(), ",")
}

// Status is a decoded snapshot of the status register.
type Status struct {
	Raw        uint32
	Halted     bool
	Errors     ErrorFlags
	FrameCount uint32
}

// DecodeStatus splits a raw S2MM_VDMASR value into its fields.
func DecodeStatus(raw uint32) Status {
	return Status{
		Raw:        raw,
		Halted:     raw&regs.StatusHalted != 0,
		Errors:     ErrorFlags(raw & regs.StatusErrorMask),
		FrameCount: (raw >> regs.StatusFrameCountShift) & regs.StatusFrameCountMask,
	}
}

// HaltError reports that the engine stopped on its own.
type HaltError struct {
	Status Status
}

func (e *HaltError) Error() string {
	return fmt.Sprintf("dma engine halted (status 0x%08x, errors: %s)", e.Status.Raw, e.Status.Errors)
}

// Unwrap makes HaltError match api.ErrEngineHalted.
func (e *HaltError) Unwrap() error { return api.ErrEngineHalted }
