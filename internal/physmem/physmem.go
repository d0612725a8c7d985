// File: internal/physmem/physmem.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Mapping of device-exposed physical memory (/dev/mem, /dev/uioN) into the
// process address space.

package physmem

import (
	"fmt"
	"os"
)

// Region describes a span of device memory to map.
type Region struct {
	// Device is the node to map from, e.g. /dev/mem or /dev/uio0.
	Device string
	// Offset is the mmap offset into Device. For /dev/mem this is the physical address.
	Offset uint64
	// Length is the number of bytes to map.
	Length int
}

func (r Region) String() string {
	return fmt.Sprintf("%s@0x%x+0x%x", r.Device, r.Offset, r.Length)
}

// Mapping is an exclusively owned mapping of a Region.
type Mapping struct {
	region Region
	raw    []byte // page-aligned mapping as returned by mmap
	data   []byte // the requested span inside raw
}

// Bytes returns the mapped span. It is invalid after Close.
func (m *Mapping) Bytes() []byte { return m.data }

// Region returns what was mapped.
func (m *Mapping) Region() Region { return m.region }

// pageSpan widens [off, off+length) to whole pages.
func pageSpan(off uint64, length int, page int) (base uint64, skip int, size int) {
	p := uint64(page)
	base = off &^ (p - 1)
	skip = int(off - base)
	size = skip + length
	if rem := size % page; rem != 0 {
		size += page - rem
	}
	return base, skip, size
}

var pageSize = os.Getpagesize()
