//go:build linux
// +build linux

// File: internal/physmem/physmem_linux.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package physmem

import (
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// Map opens r.Device and maps r.Length bytes at r.Offset, read-write and
// uncached (O_SYNC) so register and DMA buffer accesses reach the device.
func Map(r Region) (*Mapping, error) {
	if r.Length <= 0 {
		return nil, errors.Errorf("physmem: invalid length %d for %s", r.Length, r.Device)
	}
	fd, err := unix.Open(r.Device, unix.O_RDWR|unix.O_SYNC|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, errors.Wrapf(err, "physmem: can not open %s", r.Device)
	}
	// The mapping stays valid after the descriptor is closed.
	defer unix.Close(fd)

	base, skip, size := pageSpan(r.Offset, r.Length, pageSize)
	raw, err := unix.Mmap(fd, int64(base), size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, errors.Wrapf(err, "physmem: can not map %s", r)
	}
	return &Mapping{
		region: r,
		raw:    raw,
		data:   raw[skip : skip+r.Length],
	}, nil
}

// Close unmaps the region. Calling Close twice is a no-op.
func (m *Mapping) Close() error {
	if m.raw == nil {
		return nil
	}
	err := unix.Munmap(m.raw)
	m.raw, m.data = nil, nil
	if err != nil {
		return errors.Wrapf(err, "physmem: can not unmap %s", m.region)
	}
	return nil
}
