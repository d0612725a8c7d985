//go:build !linux
// +build !linux

// File: affinity/affinity_stub.go
// Author: momentics <momentics@gmail.com>
//
// Stub implementation for unsupported platforms.
// Returns error to indicate unavailability.

package affinity

import (
	"fmt"
	"runtime"

	"github.com/momentics/vdma-stream/api"
)

func setCPUsPlatform([]int) error {
	return fmt.Errorf("affinity on %s: %w", runtime.GOOS, api.ErrNotSupported)
}

func currentCPUsPlatform() ([]int, error) {
	return nil, fmt.Errorf("affinity on %s: %w", runtime.GOOS, api.ErrNotSupported)
}
