// File: dma/buffers.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Circular set of physical frame buffers.

package dma

import "github.com/momentics/vdma-stream/api"

// Buffer is one frame slot of the circular set.
type Buffer struct {
	Index int
	// Phys is the bus address programmed into the engine.
	Phys uint64
	// Data is the CPU mapping of the slot.
	Data []byte
}

// BufferSet holds N contiguous, non-overlapping slots of equal size. It is
// never resized after construction.
type BufferSet struct {
	bufs []Buffer
	size int
}

// NewBufferSet carves count slots of size bytes out of mem, which must be
// the CPU mapping of physical memory starting at physBase.
func NewBufferSet(mem []byte, physBase uint64, count, size int) (*BufferSet, error) {
	if count <= 0 {
		return nil, api.ConfigError("buffer count must be positive, got %d", count)
	}
	if size <= 0 {
		return nil, api.ConfigError("buffer size must be positive, got %d", size)
	}
	if size > len(mem)/count || count*size > len(mem) {
		return nil, api.ConfigError("%d buffers of %d bytes exceed mapped region of %d bytes",
			count, size, len(mem)).
			WithContext("count", count).
			WithContext("size", size)
	}
	set := &BufferSet{bufs: make([]Buffer, count), size: size}
	for i := range set.bufs {
		off := i * size
		set.bufs[i] = Buffer{
			Index: i,
			Phys:  physBase + uint64(off),
			Data:  mem[off : off+size : off+size],
		}
	}
	return set, nil
}

// Len returns the number of slots.
func (s *BufferSet) Len() int { return len(s.bufs) }

// Size returns the byte size of each slot.
func (s *BufferSet) Size() int { return s.size }

// At returns slot i.
func (s *BufferSet) At(i int) Buffer { return s.bufs[i] }
