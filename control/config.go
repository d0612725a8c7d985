// control/config.go
// Author: momentics <momentics@gmail.com>
//
// Thread-safe store of runtime tunables with reload propagation.

package control

import (
	"reflect"
	"sync"
)

// ConfigStore is a key/value map of tunables that may change while the
// pipeline runs. Listeners see the merged snapshot after every update.
type ConfigStore struct {
	mu        sync.RWMutex
	config    map[string]any
	listeners []func(map[string]any)
}

// NewConfigStore initializes a store seeded with initial.
func NewConfigStore(initial map[string]any) *ConfigStore {
	cs := &ConfigStore{config: make(map[string]any, len(initial))}
	for k, v := range initial {
		cs.config[k] = v
	}
	return cs
}

// Get returns one value.
func (cs *ConfigStore) Get(key string) (any, bool) {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	v, ok := cs.config[key]
	return v, ok
}

// GetSnapshot returns a copy of all values.
func (cs *ConfigStore) GetSnapshot() map[string]any {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return cs.snapshotLocked()
}

// SetConfig merges values and notifies listeners when anything changed.
// Listeners run synchronously on the caller's goroutine, after the lock is
// released, in registration order.
func (cs *ConfigStore) SetConfig(values map[string]any) {
	cs.mu.Lock()
	changed := false
	for k, v := range values {
		if old, ok := cs.config[k]; !ok || !reflect.DeepEqual(old, v) {
			cs.config[k] = v
			changed = true
		}
	}
	if !changed {
		cs.mu.Unlock()
		return
	}
	snap := cs.snapshotLocked()
	listeners := append([]func(map[string]any){}, cs.listeners...)
	cs.mu.Unlock()

	for _, fn := range listeners {
		fn(snap)
	}
}

// OnReload registers a listener for later updates.
func (cs *ConfigStore) OnReload(fn func(map[string]any)) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.listeners = append(cs.listeners, fn)
}

func (cs *ConfigStore) snapshotLocked() map[string]any {
	out := make(map[string]any, len(cs.config))
	for k, v := range cs.config {
		out[k] = v
	}
	return out
}
