// File: affinity/affinity.go
// Author: momentics <momentics@gmail.com>
//
// Platform-neutral API for CPU affinity. Platform-specific implementations are located
// in separate files (affinity_linux.go, affinity_stub.go) guarded by build tags.
//
// All calls act on the calling OS thread; lock the goroutine to its thread
// with runtime.LockOSThread first.

package affinity

import "github.com/momentics/vdma-stream/api"

// SetAffinity pins the current OS thread to one logical CPU.
func SetAffinity(cpuID int) error {
	if cpuID < 0 {
		return api.ConfigError("cpu id must not be negative, got %d", cpuID)
	}
	return setCPUsPlatform([]int{cpuID})
}

// SetCPUs allows the current OS thread on the given CPUs.
func SetCPUs(cpus []int) error {
	if len(cpus) == 0 {
		return api.ConfigError("empty cpu set")
	}
	for _, c := range cpus {
		if c < 0 {
			return api.ConfigError("cpu id must not be negative, got %d", c)
		}
	}
	return setCPUsPlatform(cpus)
}

// CurrentCPUs returns the CPUs the current OS thread may run on, ascending.
func CurrentCPUs() ([]int, error) {
	return currentCPUsPlatform()
}
