// Package api
// Author: momentics@gmail.com
//
// CPU affinity contract for the polling loop's thread.

package api

// Affinity binds the calling goroutine's OS thread to a CPU.
type Affinity interface {
	// Pin locks the current goroutine to its thread and the thread to cpuID.
	Pin(cpuID int) error
	// Unpin restores the previous CPU mask and unlocks the thread.
	Unpin() error
	// Get returns the pinned CPU, or -1.
	Get() (cpuID int, err error)
}
