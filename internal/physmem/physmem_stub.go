//go:build !linux
// +build !linux

// File: internal/physmem/physmem_stub.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package physmem

import (
	"github.com/pkg/errors"

	"github.com/momentics/vdma-stream/api"
)

// Map is only available on Linux.
func Map(r Region) (*Mapping, error) {
	return nil, errors.Wrapf(api.ErrNotSupported, "physmem: mapping %s", r)
}

// Close is a no-op on unsupported platforms.
func (m *Mapping) Close() error { return nil }
