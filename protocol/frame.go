// Package protocol
// Author: momentics <momentics@gmail.com>
//
// Frame header layout shared by sender and receiver.
//
// Every payload, on both transports, is preceded by a fixed 32-byte header
// of eight big-endian uint32 fields:
//
//	magic | sequence | width | height | format_tag | payload_size | ts_sec | ts_usec

package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/momentics/vdma-stream/api"
)

const (
	// HeaderSize is the encoded size of Header.
	HeaderSize = 32
	// Magic identifies the stream format ("VIDF").
	Magic uint32 = 0x56494446
)

var (
	ErrShortHeader = errors.New("frame header truncated")
	ErrBadMagic    = errors.New("frame header has bad magic")
)

// Header describes one transmitted frame.
type Header struct {
	Magic         uint32
	Sequence      uint32
	Width         uint32
	Height        uint32
	Format        api.PixelFormat
	PayloadSize   uint32
	TimestampSec  uint32
	TimestampUsec uint32
}

// Valid reports whether the header carries the stream magic.
func (h Header) Valid() bool { return h.Magic == Magic }

// Timestamp returns the capture time carried in the header.
func (h Header) Timestamp() time.Time {
	return time.Unix(int64(h.TimestampSec), int64(h.TimestampUsec)*int64(time.Microsecond))
}

// Geometry returns the frame geometry the header announces.
func (h Header) Geometry() api.Geometry {
	return api.Geometry{Width: int(h.Width), Height: int(h.Height), Format: h.Format}
}

func (h Header) String() string {
	return fmt.Sprintf("seq=%d %dx%d %s size=%d", h.Sequence, h.Width, h.Height, h.Format, h.PayloadSize)
}

// Put encodes h into dst, which must hold HeaderSize bytes.
func (h Header) Put(dst []byte) {
	_ = dst[HeaderSize-1]
	binary.BigEndian.PutUint32(dst[0:], h.Magic)
	binary.BigEndian.PutUint32(dst[4:], h.Sequence)
	binary.BigEndian.PutUint32(dst[8:], h.Width)
	binary.BigEndian.PutUint32(dst[12:], h.Height)
	binary.BigEndian.PutUint32(dst[16:], uint32(h.Format))
	binary.BigEndian.PutUint32(dst[20:], h.PayloadSize)
	binary.BigEndian.PutUint32(dst[24:], h.TimestampSec)
	binary.BigEndian.PutUint32(dst[28:], h.TimestampUsec)
}

// ReadHeader reads exactly one header from r and checks its magic.
func ReadHeader(r io.Reader) (Header, error) {
	var raw [HeaderSize]byte
	if _, err := io.ReadFull(r, raw[:]); err != nil {
		return Header{}, err
	}
	h, err := ParseHeader(raw[:])
	if err != nil {
		return Header{}, err
	}
	if !h.Valid() {
		return h, fmt.Errorf("%w: 0x%08x", ErrBadMagic, h.Magic)
	}
	return h, nil
}
