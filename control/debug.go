// control/debug.go
// Author: momentics <momentics@gmail.com>
//
// Named probes evaluated on demand. Names are dotted, the first segment is
// the group ("dma", "platform").

package control

import (
	"sort"
	"strings"
	"sync"

	"github.com/momentics/vdma-stream/api"
)

// DebugProbes is a registry of probe functions keyed by dotted name.
type DebugProbes struct {
	mu     sync.RWMutex
	probes map[string]func() any
}

// NewDebugProbes creates an empty registry.
func NewDebugProbes() *DebugProbes {
	return &DebugProbes{probes: make(map[string]func() any)}
}

// RegisterProbe adds or replaces the probe called name.
func (dp *DebugProbes) RegisterProbe(name string, fn func() any) {
	dp.mu.Lock()
	dp.probes[name] = fn
	dp.mu.Unlock()
}

// Names returns the registered probe names in sorted order.
func (dp *DebugProbes) Names() []string {
	dp.mu.RLock()
	names := make([]string, 0, len(dp.probes))
	for k := range dp.probes {
		names = append(names, k)
	}
	dp.mu.RUnlock()
	sort.Strings(names)
	return names
}

// DumpState evaluates every probe.
func (dp *DebugProbes) DumpState() map[string]any {
	return dp.Group("")
}

// Group evaluates the probes under group, e.g. "dma" selects "dma.status".
// An empty group selects all. Probes run without the registry lock held.
func (dp *DebugProbes) Group(group string) map[string]any {
	prefix := ""
	if group != "" {
		prefix = group + "."
	}
	dp.mu.RLock()
	selected := make(map[string]func() any, len(dp.probes))
	for k, fn := range dp.probes {
		if strings.HasPrefix(k, prefix) {
			selected[k] = fn
		}
	}
	dp.mu.RUnlock()

	out := make(map[string]any, len(selected))
	for k, fn := range selected {
		out[k] = fn()
	}
	return out
}

var _ api.Debug = (*DebugProbes)(nil)
