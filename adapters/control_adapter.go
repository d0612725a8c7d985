// Package adapters
// Author: momentics <momentics@gmail.com>
//
// Control adapter implementing api.Control interface using control package primitives.

package adapters

import (
	"github.com/momentics/vdma-stream/api"
	"github.com/momentics/vdma-stream/control"
)

// ControlAdapter bundles the tunables store, metrics and debug probes of
// one process.
type ControlAdapter struct {
	config   *control.ConfigStore
	metrics  *control.MetricsRegistry
	debug    *control.DebugProbes
	validate func(map[string]any) error
}

// NewControlAdapter seeds the tunables with initial and registers the
// platform probes.
func NewControlAdapter(initial map[string]any) *ControlAdapter {
	adapter := &ControlAdapter{
		config:  control.NewConfigStore(initial),
		metrics: control.NewMetricsRegistry(),
		debug:   control.NewDebugProbes(),
	}
	control.RegisterPlatformProbes(adapter.debug)
	return adapter
}

// SetValidator installs a check run on the merged tunables before an
// update is applied.
func (c *ControlAdapter) SetValidator(fn func(map[string]any) error) {
	c.validate = fn
}

func (c *ControlAdapter) GetConfig() map[string]any {
	return c.config.GetSnapshot()
}

// SetConfig applies cfg unless the validator rejects the merged result.
func (c *ControlAdapter) SetConfig(cfg map[string]any) error {
	if c.validate != nil {
		merged := c.config.GetSnapshot()
		for k, v := range cfg {
			merged[k] = v
		}
		if err := c.validate(merged); err != nil {
			return err
		}
	}
	c.config.SetConfig(cfg)
	return nil
}

func (c *ControlAdapter) Stats() map[string]any {
	stats := c.metrics.GetSnapshot()
	debugStats := c.debug.DumpState()
	combined := make(map[string]any, len(stats)+len(debugStats))
	for k, v := range stats {
		combined[k] = v
	}
	for k, v := range debugStats {
		combined["debug."+k] = v
	}
	return combined
}

func (c *ControlAdapter) OnReload(fn func(cfg map[string]any)) {
	c.config.OnReload(fn)
}

func (c *ControlAdapter) RegisterDebugProbe(name string, fn func() any) {
	c.debug.RegisterProbe(name, fn)
}

// Metrics returns the registry producers publish into.
func (c *ControlAdapter) Metrics() *control.MetricsRegistry { return c.metrics }

// Debug returns the probe registry.
func (c *ControlAdapter) Debug() *control.DebugProbes { return c.debug }

var _ api.Control = (*ControlAdapter)(nil)
