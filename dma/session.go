// File: dma/session.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Acquisition session: register window, frame buffers and controller owned
// together, brought up reset -> configure -> start and torn down in order.

package dma

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/rs/zerolog"

	"github.com/momentics/vdma-stream/api"
	"github.com/momentics/vdma-stream/internal/physmem"
	"github.com/momentics/vdma-stream/internal/regs"
)

// SessionConfig is everything discovery and provisioning hand to the core.
type SessionConfig struct {
	Registers physmem.Region
	Memory    physmem.Region
	// PhysBase is the bus address of Memory as seen by the engine.
	PhysBase uint64

	Geometry api.Geometry
	Buffers  int
	// BufferSize is the slot size. Zero means one frame per slot.
	BufferSize int

	Controller Options
}

// Session exclusively owns one acquisition pipeline.
type Session struct {
	ctrl    *Controller
	regsMem io.Closer
	bufMem  io.Closer
	log     zerolog.Logger

	once    sync.Once
	errDown error
}

// Open maps the register window and buffer region and starts the engine.
// Every mapping made before a failure is released again.
func Open(cfg SessionConfig) (*Session, error) {
	if cfg.Registers.Length < regs.MinWindowSize {
		return nil, api.ConfigError("register window of %d bytes is smaller than %d", cfg.Registers.Length, regs.MinWindowSize)
	}
	regMap, err := physmem.Map(cfg.Registers)
	if err != nil {
		return nil, fmt.Errorf("map registers: %w", err)
	}
	win, err := regs.NewMapped(regMap.Bytes())
	if err != nil {
		_ = regMap.Close()
		return nil, fmt.Errorf("register window: %w", err)
	}
	bufMap, err := physmem.Map(cfg.Memory)
	if err != nil {
		_ = regMap.Close()
		return nil, fmt.Errorf("map frame buffers: %w", err)
	}
	s, err := NewSession(win, regMap, bufMap.Bytes(), bufMap, cfg)
	if err != nil {
		_ = bufMap.Close()
		_ = regMap.Close()
		return nil, err
	}
	return s, nil
}

// NewSession brings up an engine over an already mapped window and buffer
// region. The closers are invoked by Shutdown; on error they are not.
func NewSession(win regs.Window, regsMem io.Closer, mem []byte, bufMem io.Closer, cfg SessionConfig) (*Session, error) {
	if err := cfg.Geometry.Validate(); err != nil {
		return nil, err
	}
	size := cfg.BufferSize
	if size == 0 {
		size = cfg.Geometry.FrameSize()
	}
	set, err := NewBufferSet(mem, cfg.PhysBase, cfg.Buffers, size)
	if err != nil {
		return nil, err
	}
	ctrl, err := NewController(win, cfg.Controller)
	if err != nil {
		return nil, err
	}
	if err := ctrl.Reset(); err != nil {
		return nil, err
	}
	if err := ctrl.Configure(cfg.Geometry, set); err != nil {
		return nil, err
	}
	if err := ctrl.Start(); err != nil {
		ctrl.Stop()
		return nil, err
	}
	return &Session{
		ctrl:    ctrl,
		regsMem: regsMem,
		bufMem:  bufMem,
		log:     cfg.Controller.Logger,
	}, nil
}

// Controller exposes the running controller.
func (s *Session) Controller() *Controller { return s.ctrl }

// CurrentWriteIndex implements the streaming loop's frame source.
func (s *Session) CurrentWriteIndex() int { return s.ctrl.CurrentWriteIndex() }

// Frame returns the payload of slot i.
func (s *Session) Frame(i int) []byte { return s.ctrl.Frame(i) }

// Health reports a hardware halt.
func (s *Session) Health() error { return s.ctrl.Health() }

// Geometry returns the session's frame geometry.
func (s *Session) Geometry() api.Geometry { return s.ctrl.Geometry() }

// BufferCount returns N.
func (s *Session) BufferCount() int { return s.ctrl.Buffers().Len() }

// Shutdown stops the engine, then unmaps the buffers, then the registers.
// Later calls return the first result.
func (s *Session) Shutdown() error {
	s.once.Do(func() {
		var errs []error
		if err := s.ctrl.Shutdown(); err != nil {
			errs = append(errs, fmt.Errorf("stop engine: %w", err))
		}
		if s.bufMem != nil {
			if err := s.bufMem.Close(); err != nil {
				errs = append(errs, fmt.Errorf("unmap buffers: %w", err))
			}
		}
		if s.regsMem != nil {
			if err := s.regsMem.Close(); err != nil {
				errs = append(errs, fmt.Errorf("unmap registers: %w", err))
			}
		}
		s.errDown = errors.Join(errs...)
		s.log.Info().Err(s.errDown).Msg("acquisition session closed")
	})
	return s.errDown
}

var _ api.GracefulShutdown = (*Session)(nil)
