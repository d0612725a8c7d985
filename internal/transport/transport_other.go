//go:build !linux
// +build !linux

// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package transport

import (
	"fmt"
	"runtime"

	"github.com/momentics/vdma-stream/api"
)

func dialPlatform(DialOptions) (api.Socket, error) {
	return nil, fmt.Errorf("transport on %s: %w", runtime.GOOS, api.ErrNotSupported)
}
