// File: internal/regs/vdma.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Register layout of the VDMA stream-to-memory (S2MM) channel.

package regs

// Access describes how software may touch a register.
type Access int

const (
	ReadWrite Access = iota
	ReadOnly
	// WriteOneToClear registers clear the bits written as 1.
	WriteOneToClear
)

// Reg names one 32-bit register of the block.
type Reg struct {
	Name   string
	Offset uint32
	Access Access
}

// S2MM channel registers.
var (
	ParkPtr        = Reg{"PARK_PTR_REG", 0x28, ReadWrite}
	Version        = Reg{"VDMA_VERSION", 0x2C, ReadOnly}
	Control        = Reg{"S2MM_VDMACR", 0x30, ReadWrite}
	Status         = Reg{"S2MM_VDMASR", 0x34, WriteOneToClear}
	VSize          = Reg{"S2MM_VSIZE", 0xA0, ReadWrite}
	HSize          = Reg{"S2MM_HSIZE", 0xA4, ReadWrite}
	FrmDelayStride = Reg{"S2MM_FRMDLY_STRIDE", 0xA8, ReadWrite}
)

// AddressSlots is the number of frame buffer start-address registers.
const AddressSlots = 4

const startAddressBase = 0xAC

// StartAddress returns the start-address register of slot i.
func StartAddress(i int) Reg {
	if i < 0 || i >= AddressSlots {
		panic("regs: start address slot out of range")
	}
	return Reg{"S2MM_START_ADDRESS", startAddressBase + 4*uint32(i), ReadWrite}
}

// MinWindowSize covers every register the controller touches.
const MinWindowSize = startAddressBase + 4*AddressSlots

// Control register bits.
const (
	CtrlRun        uint32 = 1 << 0
	CtrlCircular   uint32 = 1 << 1
	CtrlReset      uint32 = 1 << 2
	CtrlGenlock    uint32 = 1 << 3
	CtrlFrameCntEn uint32 = 1 << 4
)

// Status register bits.
const (
	StatusHalted    uint32 = 1 << 0
	StatusIntErr    uint32 = 1 << 4
	StatusSlvErr    uint32 = 1 << 5
	StatusDecErr    uint32 = 1 << 6
	StatusSOFEarly  uint32 = 1 << 7
	StatusEOLEarly  uint32 = 1 << 8
	StatusSOFLate   uint32 = 1 << 11
	StatusFrmCntIrq uint32 = 1 << 12
	StatusDlyCntIrq uint32 = 1 << 13
	StatusErrIrq    uint32 = 1 << 14
	StatusEOLLate   uint32 = 1 << 15

	// StatusErrorMask selects every error flag.
	StatusErrorMask = StatusIntErr | StatusSlvErr | StatusDecErr |
		StatusSOFEarly | StatusEOLEarly | StatusSOFLate | StatusEOLLate

	// StatusClearMask is written back to clear errors and pending interrupts.
	StatusClearMask = StatusErrorMask | StatusFrmCntIrq | StatusDlyCntIrq | StatusErrIrq
)

// Frame counter field of the status register.
const (
	StatusFrameCountShift        = 16
	StatusFrameCountMask  uint32 = 0xFF
)

// StrideMask limits the stride field of S2MM_FRMDLY_STRIDE.
const StrideMask uint32 = 0xFFFF

// VSizeMask limits the vertical size register.
const VSizeMask uint32 = 0x1FFF
