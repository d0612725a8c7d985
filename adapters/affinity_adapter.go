// File: adapters/affinity_adapter.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
// Description:
//   Adapter implementing the api.Affinity interface on top of the
//   affinity package, remembering the mask it replaced.
//
// Package adapters provides glue code between the core API contracts
// and the internal implementation.

package adapters

import (
	"runtime"

	"github.com/momentics/vdma-stream/affinity"
	"github.com/momentics/vdma-stream/api"
)

// AffinityAdapter implements api.Affinity. It must be pinned and unpinned
// from the same goroutine.
type AffinityAdapter struct {
	currentCPU int
	previous   []int
	pinned     bool
}

// NewAffinityAdapter creates an unpinned adapter.
func NewAffinityAdapter() api.Affinity {
	return &AffinityAdapter{currentCPU: -1}
}

// Pin locks the goroutine to its OS thread and binds the thread to cpuID.
func (a *AffinityAdapter) Pin(cpuID int) error {
	if a.pinned {
		return api.NewError(api.ErrCodeInvalidState, "already pinned").WithContext("cpu", a.currentCPU)
	}
	runtime.LockOSThread()
	prev, err := affinity.CurrentCPUs()
	if err != nil {
		runtime.UnlockOSThread()
		return err
	}
	if err := affinity.SetAffinity(cpuID); err != nil {
		runtime.UnlockOSThread()
		return err
	}
	a.previous = prev
	a.currentCPU = cpuID
	a.pinned = true
	return nil
}

// Unpin restores the CPU mask seen by Pin and releases the thread.
func (a *AffinityAdapter) Unpin() error {
	if !a.pinned {
		return nil
	}
	err := affinity.SetCPUs(a.previous)
	runtime.UnlockOSThread()
	a.pinned = false
	a.currentCPU = -1
	a.previous = nil
	return err
}

// Get returns the pinned CPU, or -1.
func (a *AffinityAdapter) Get() (int, error) {
	return a.currentCPU, nil
}
