// File: dma/controller.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Controller for a circular stream-to-memory VDMA channel. Progress is
// observed by polling the hardware frame counter; no interrupt path is used.

package dma

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/momentics/vdma-stream/api"
	"github.com/momentics/vdma-stream/internal/regs"
)

// State of the engine as tracked by the controller.
type State int

const (
	StateUnconfigured State = iota
	StateReset
	StateConfigured
	StateRunning
	StateHalted
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateUnconfigured:
		return "unconfigured"
	case StateReset:
		return "reset"
	case StateConfigured:
		return "configured"
	case StateRunning:
		return "running"
	case StateHalted:
		return "halted"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Options tune the controller's blocking waits.
type Options struct {
	// ResetPolls bounds the reset wait together with ResetInterval.
	ResetPolls    int
	ResetInterval time.Duration
	// SettleDelay is waited after arming the transfer before checking for a halt.
	SettleDelay time.Duration
	// HaltTimeout bounds the wait for the halted bit during shutdown.
	HaltTimeout time.Duration

	// Sleep defaults to time.Sleep.
	Sleep  func(time.Duration)
	Logger zerolog.Logger
}

// DefaultOptions returns the timings used on hardware.
func DefaultOptions() Options {
	return Options{
		ResetPolls:    1000,
		ResetInterval: time.Millisecond,
		SettleDelay:   10 * time.Millisecond,
		HaltTimeout:   100 * time.Millisecond,
		Sleep:         time.Sleep,
		Logger:        zerolog.Nop(),
	}
}

// Controller drives one S2MM channel. It is not safe for concurrent use;
// the streaming loop is its only caller.
type Controller struct {
	regs  *regs.Block
	opts  Options
	log   zerolog.Logger
	state State

	resetCleared bool
	geom         api.Geometry
	buffers      *BufferSet
	halt         *HaltError
}

// NewController binds a controller to a register window.
func NewController(w regs.Window, opts Options) (*Controller, error) {
	block, err := regs.NewBlock(w)
	if err != nil {
		return nil, api.ConfigError("%v", err)
	}
	if opts.Sleep == nil {
		opts.Sleep = time.Sleep
	}
	if opts.ResetPolls <= 0 {
		return nil, api.ConfigError("reset polls must be positive, got %d", opts.ResetPolls)
	}
	return &Controller{
		regs: block,
		opts: opts,
		log:  opts.Logger.With().Str("component", "dma").Logger(),
	}, nil
}

// State returns the tracked engine state.
func (c *Controller) State() State { return c.state }

// Geometry returns the configured frame geometry.
func (c *Controller) Geometry() api.Geometry { return c.geom }

// Buffers returns the configured buffer set, or nil before Configure.
func (c *Controller) Buffers() *BufferSet { return c.buffers }

// Reset asserts the soft reset bit and waits for the hardware to clear it.
// On timeout the controller stays in StateReset and cannot be configured.
func (c *Controller) Reset() error {
	c.regs.Write(regs.Control, regs.CtrlReset)
	c.state = StateReset
	c.resetCleared = false
	c.halt = nil

	for i := 0; i < c.opts.ResetPolls; i++ {
		if !c.regs.IsSet(regs.Control, regs.CtrlReset) {
			c.resetCleared = true
			c.log.Debug().Int("polls", i).Msg("reset complete")
			return nil
		}
		c.opts.Sleep(c.opts.ResetInterval)
	}
	if !c.regs.IsSet(regs.Control, regs.CtrlReset) {
		c.resetCleared = true
		return nil
	}
	return api.NewError(api.ErrCodeResetTimeout, "dma reset bit did not clear").
		WithContext("polls", c.opts.ResetPolls).
		WithContext("interval", c.opts.ResetInterval.String())
}

// Configure programs line size, stride and buffer addresses. The vertical
// size is written by Start, since that write arms the transfer.
func (c *Controller) Configure(geom api.Geometry, set *BufferSet) error {
	if c.state != StateReset || !c.resetCleared {
		return api.ConfigError("configure requires a completed reset (state %s)", c.state)
	}
	if err := geom.Validate(); err != nil {
		return err
	}
	if set == nil || set.Len() == 0 {
		return api.ConfigError("no frame buffers")
	}
	if set.Len() > regs.AddressSlots {
		return api.ConfigError("%d buffers requested, hardware has %d address slots", set.Len(), regs.AddressSlots).
			WithContext("buffers", set.Len())
	}
	if geom.FrameSize() > set.Size() {
		return api.ConfigError("frame of %d bytes does not fit buffer of %d bytes", geom.FrameSize(), set.Size())
	}
	line := uint32(geom.BytesPerLine())
	if line > regs.StrideMask {
		return api.ConfigError("line of %d bytes exceeds stride field", line)
	}
	if uint32(geom.Height) > regs.VSizeMask {
		return api.ConfigError("height %d exceeds vsize field", geom.Height)
	}
	for i := 0; i < set.Len(); i++ {
		b := set.At(i)
		if b.Phys+uint64(set.Size()) > 1<<32 {
			return api.ConfigError("buffer %d at 0x%x is outside the 32-bit address range", i, b.Phys)
		}
	}

	c.regs.Write(regs.HSize, line)
	c.regs.Write(regs.FrmDelayStride, line&regs.StrideMask)
	for i := 0; i < set.Len(); i++ {
		c.regs.Write(regs.StartAddress(i), uint32(set.At(i).Phys))
	}

	c.geom = geom
	c.buffers = set
	c.state = StateConfigured
	c.log.Info().
		Str("geometry", geom.String()).
		Int("buffers", set.Len()).
		Int("frame_size", geom.FrameSize()).
		Msg("dma configured")
	return nil
}

// Start clears stale errors, enables circular run mode and arms the transfer.
func (c *Controller) Start() error {
	if c.state != StateConfigured {
		return api.NewError(api.ErrCodeInvalidState, "start requires a configured engine").
			WithContext("state", c.state.String())
	}
	c.regs.Acknowledge(regs.Status, regs.StatusClearMask)
	c.regs.Write(regs.Control, regs.CtrlRun|regs.CtrlCircular)
	c.regs.Write(regs.VSize, uint32(c.geom.Height))

	c.opts.Sleep(c.opts.SettleDelay)

	st := DecodeStatus(c.regs.Read(regs.Status))
	if st.Halted {
		c.state = StateHalted
		c.halt = &HaltError{Status: st}
		c.log.Error().Str("errors", st.Errors.String()).Uint32("status", st.Raw).Msg("dma halted on start")
		return c.halt
	}
	c.state = StateRunning
	c.log.Info().Msg("dma running")
	return nil
}

// Stop clears the run bit. It does not wait for the engine to halt.
func (c *Controller) Stop() {
	c.regs.Clear(regs.Control, regs.CtrlRun)
	if c.state != StateUnconfigured {
		c.state = StateStopped
	}
}

// CurrentWriteIndex returns the slot the engine is writing, derived from
// the free-running frame counter. The counter may advance right after the
// read; callers only use it for change detection.
func (c *Controller) CurrentWriteIndex() int {
	if c.buffers == nil {
		return 0
	}
	return int(c.regs.FrameCount()) % c.buffers.Len()
}

// Frame returns the CPU view of slot i.
func (c *Controller) Frame(i int) []byte {
	return c.buffers.At(i).Data[:c.geom.FrameSize()]
}

// Status reads and decodes the status register.
func (c *Controller) Status() Status {
	return DecodeStatus(c.regs.Read(regs.Status))
}

// Version returns the raw version register.
func (c *Controller) Version() uint32 {
	return c.regs.Read(regs.Version)
}

// Health reports a hardware halt observed while running.
func (c *Controller) Health() error {
	switch c.state {
	case StateHalted:
		if c.halt != nil {
			return c.halt
		}
		return api.ErrEngineHalted
	case StateRunning:
		st := c.Status()
		if st.Halted {
			c.state = StateHalted
			c.halt = &HaltError{Status: st}
			c.log.Error().Str("errors", st.Errors.String()).Uint32("status", st.Raw).Msg("dma halted")
			return c.halt
		}
	}
	return nil
}

// Shutdown stops the engine and waits up to HaltTimeout for it to report
// halted. When the wait times out a reset is attempted instead.
func (c *Controller) Shutdown() error {
	if c.state == StateUnconfigured {
		return nil
	}
	c.Stop()
	step := c.opts.ResetInterval
	if step <= 0 {
		step = time.Millisecond
	}
	for waited := time.Duration(0); waited < c.opts.HaltTimeout; waited += step {
		if c.regs.IsSet(regs.Status, regs.StatusHalted) {
			c.log.Debug().Dur("waited", waited).Msg("dma halted after stop")
			return nil
		}
		c.opts.Sleep(step)
	}
	if c.regs.IsSet(regs.Status, regs.StatusHalted) {
		return nil
	}
	c.log.Warn().Dur("timeout", c.opts.HaltTimeout).Msg("dma did not halt, resetting")
	return c.Reset()
}
