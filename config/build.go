// File: config/build.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Translation of the configuration tree into component options.

package config

import (
	"strings"

	"github.com/rs/zerolog"

	"github.com/momentics/vdma-stream/api"
	"github.com/momentics/vdma-stream/dma"
	"github.com/momentics/vdma-stream/internal/logging"
	"github.com/momentics/vdma-stream/internal/physmem"
	"github.com/momentics/vdma-stream/internal/transport"
	"github.com/momentics/vdma-stream/receiver"
	"github.com/momentics/vdma-stream/stream"
)

// Geometry returns the configured frame geometry.
func (c *Config) Geometry() (api.Geometry, error) {
	f, err := api.ParsePixelFormat(c.Frame.Format)
	if err != nil {
		return api.Geometry{}, err
	}
	g := api.Geometry{Width: c.Frame.Width, Height: c.Frame.Height, Format: f}
	return g, g.Validate()
}

// LogConfig returns the logger settings.
func (c *Config) LogConfig() logging.Config {
	cfg := logging.DefaultConfig()
	cfg.Level, _ = logging.ParseLevel(c.Log.Level)
	cfg.Format, _ = logging.ParseFormat(c.Log.Format)
	return cfg
}

// SessionConfig returns the acquisition session settings. A zero memory
// length maps exactly the buffer ring.
func (c *Config) SessionConfig(log zerolog.Logger) (dma.SessionConfig, error) {
	geom, err := c.Geometry()
	if err != nil {
		return dma.SessionConfig{}, err
	}
	slot := c.Frame.BufferSize
	if slot == 0 {
		slot = geom.FrameSize()
	}
	memLen := c.Device.Memory.Length
	if memLen == 0 {
		memLen = slot * c.Frame.Buffers
	}
	phys := c.Device.PhysBase
	if phys == 0 {
		phys = c.Device.Memory.Offset
	}
	ctrl := dma.DefaultOptions()
	ctrl.ResetPolls = c.DMA.ResetPolls
	ctrl.ResetInterval = c.DMA.ResetInterval
	ctrl.SettleDelay = c.DMA.SettleDelay
	ctrl.HaltTimeout = c.DMA.HaltTimeout
	ctrl.Logger = log

	return dma.SessionConfig{
		Registers: physmem.Region{
			Device: c.Device.Registers.Path,
			Offset: c.Device.Registers.Offset,
			Length: c.Device.Registers.Length,
		},
		Memory: physmem.Region{
			Device: c.Device.Memory.Path,
			Offset: c.Device.Memory.Offset,
			Length: memLen,
		},
		PhysBase:   phys,
		Geometry:   geom,
		Buffers:    c.Frame.Buffers,
		BufferSize: c.Frame.BufferSize,
		Controller: ctrl,
	}, nil
}

// DialOptions returns the sender socket settings.
func (c *Config) DialOptions() (transport.DialOptions, error) {
	kind, err := api.ParseTransportKind(c.Transport.Kind)
	if err != nil {
		return transport.DialOptions{}, err
	}
	if err := c.RequireStreamTarget(); err != nil {
		return transport.DialOptions{}, err
	}
	return transport.DialOptions{
		Kind:           kind,
		Address:        c.Transport.Address,
		SendBuffer:     c.Transport.SendBuffer,
		NoDelay:        c.Transport.NoDelay,
		ConnectTimeout: c.Transport.ConnectTimeout,
	}, nil
}

// SenderOptions returns the framing and backpressure settings.
func (c *Config) SenderOptions() (transport.SenderOptions, error) {
	kind, err := api.ParseTransportKind(c.Transport.Kind)
	if err != nil {
		return transport.SenderOptions{}, err
	}
	opts := transport.DefaultSenderOptions(kind)
	opts.ChunkSize = c.Transport.ChunkSize
	opts.RetryDelay = c.Transport.RetryDelay
	opts.MaxRetries = c.Transport.MaxRetries
	return opts, nil
}

// LoopOptions returns the streaming loop settings.
func (c *Config) LoopOptions(log zerolog.Logger) stream.Options {
	opts := stream.DefaultOptions()
	opts.Rate = c.Stream.Rate
	opts.ForceSend = c.Stream.ForceSend
	opts.IdleBackoff = c.Stream.IdleBackoff
	opts.Logger = log
	return opts
}

// ReceiverFormat returns the forced format tag, or nil for auto.
func (c *Config) ReceiverFormat() (*api.PixelFormat, error) {
	s := strings.ToLower(strings.TrimSpace(c.Receiver.Format))
	if s == "" || s == "auto" {
		return nil, nil
	}
	f, err := api.ParsePixelFormat(s)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

// ReceiverOptions returns the receiving socket settings.
func (c *Config) ReceiverOptions(log zerolog.Logger) (receiver.Options, error) {
	kind, err := api.ParseTransportKind(c.Receiver.Kind)
	if err != nil {
		return receiver.Options{}, err
	}
	format, err := c.ReceiverFormat()
	if err != nil {
		return receiver.Options{}, err
	}
	return receiver.Options{
		Kind:        kind,
		Listen:      c.Receiver.Listen,
		ReadTimeout: c.Receiver.ReadTimeout,
		MaxPayload:  c.Receiver.MaxPayload,
		Format:      format,
		Logger:      log,
	}, nil
}
