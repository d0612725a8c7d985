// File: config/validate.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package config

import (
	"errors"
	"strings"

	"github.com/momentics/vdma-stream/api"
	"github.com/momentics/vdma-stream/internal/logging"
	"github.com/momentics/vdma-stream/stream"
)

// Validate checks every section and reports all problems at once. The
// transport address is only required by the streaming command, see
// RequireStreamTarget.
func (c *Config) Validate() error {
	var errs []error
	add := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		add(err)
	}
	if _, err := logging.ParseFormat(c.Log.Format); err != nil {
		add(err)
	}

	add(validateRegion("device.registers", c.Device.Registers, false))
	add(validateRegion("device.memory", c.Device.Memory, true))

	if _, err := c.Geometry(); err != nil {
		add(err)
	}
	if c.Frame.Buffers < 1 || c.Frame.Buffers > 4 {
		add(api.ConfigError("frame.buffers must be 1..4, got %d", c.Frame.Buffers))
	}
	if c.Frame.BufferSize < 0 {
		add(api.ConfigError("frame.buffer_size must not be negative"))
	}

	if c.DMA.ResetPolls <= 0 || c.DMA.ResetInterval <= 0 {
		add(api.ConfigError("dma.reset_polls and dma.reset_interval must be positive"))
	}
	if c.DMA.SettleDelay < 0 || c.DMA.HaltTimeout < 0 {
		add(api.ConfigError("dma delays must not be negative"))
	}

	if _, err := api.ParseTransportKind(c.Transport.Kind); err != nil {
		add(err)
	}
	if c.Transport.ChunkSize <= 0 || c.Transport.ChunkSize > 65507-32 {
		add(api.ConfigError("transport.chunk_size must be 1..65475, got %d", c.Transport.ChunkSize))
	}
	if c.Transport.RetryDelay < 0 || c.Transport.MaxRetries < 0 {
		add(api.ConfigError("transport retry settings must not be negative"))
	}

	add(stream.ValidateTunables(c.Tunables()))
	if c.Stream.IdleBackoff <= 0 {
		add(api.ConfigError("stream.idle_backoff must be positive"))
	}

	if _, err := api.ParseTransportKind(c.Receiver.Kind); err != nil {
		add(err)
	}
	if _, err := c.ReceiverFormat(); err != nil {
		add(err)
	}
	return errors.Join(errs...)
}

// RequireStreamTarget checks the settings only the sender needs.
func (c *Config) RequireStreamTarget() error {
	if strings.TrimSpace(c.Transport.Address) == "" {
		return api.ConfigError("transport.address is required")
	}
	return nil
}

func validateRegion(name string, r RegionConfig, lengthOptional bool) error {
	if r.Path == "" {
		return api.ConfigError("%s.path is required", name)
	}
	if r.Length < 0 || (!lengthOptional && r.Length == 0) {
		return api.ConfigError("%s.length must be positive, got %d", name, r.Length)
	}
	return nil
}
