// File: api/types.go
// Author: momentics <momentics@gmail.com>
//
// Shared API-level type declarations and constants.

package api

import (
	"fmt"
	"strings"
)

// PixelFormat is the packed pixel layout of a session. Its numeric value
// is the format tag carried in the frame wire header.
type PixelFormat uint32

const (
	// PixelPacked32 is the four-bytes-per-pixel layout of the earlier pipeline generation.
	PixelPacked32 PixelFormat = 0
	// PixelYUYV is packed 4:2:2 luma/chroma, Y0 U Y1 V.
	PixelYUYV PixelFormat = 1
	// PixelUYVY is packed 4:2:2 luma/chroma, U Y0 V Y1.
	PixelUYVY PixelFormat = 2
)

// BytesPerPixel returns the storage size of one pixel, or 0 for unknown formats.
func (f PixelFormat) BytesPerPixel() int {
	switch f {
	case PixelPacked32:
		return 4
	case PixelYUYV, PixelUYVY:
		return 2
	default:
		return 0
	}
}

func (f PixelFormat) String() string {
	switch f {
	case PixelPacked32:
		return "packed32"
	case PixelYUYV:
		return "yuyv"
	case PixelUYVY:
		return "uyvy"
	default:
		return fmt.Sprintf("format(%d)", uint32(f))
	}
}

// ParsePixelFormat accepts the names returned by PixelFormat.String.
func ParsePixelFormat(s string) (PixelFormat, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "packed32", "rgba", "xrgb":
		return PixelPacked32, nil
	case "yuyv", "yuy2":
		return PixelYUYV, nil
	case "uyvy":
		return PixelUYVY, nil
	}
	return 0, ConfigError("unknown pixel format %q", s)
}

// Geometry describes the frames written by the DMA engine.
type Geometry struct {
	Width  int
	Height int
	Format PixelFormat
}

// BytesPerLine is the line stride in bytes.
func (g Geometry) BytesPerLine() int {
	return g.Width * g.Format.BytesPerPixel()
}

// FrameSize is derived from the geometry and never stored separately.
func (g Geometry) FrameSize() int {
	return g.BytesPerLine() * g.Height
}

// Engine limits: the stride field is 16 bits wide and VSIZE 13 bits.
const (
	MaxLineBytes = 0xFFFF
	MaxLines     = 0x1FFF
)

// Validate rejects geometries the engine cannot be programmed with.
func (g Geometry) Validate() error {
	if g.Width <= 0 || g.Height <= 0 {
		return ConfigError("invalid geometry %dx%d", g.Width, g.Height)
	}
	if g.Format.BytesPerPixel() == 0 {
		return ConfigError("unsupported pixel format %v", g.Format)
	}
	if g.Width > MaxLineBytes || g.BytesPerLine() > MaxLineBytes {
		return ConfigError("line of %d pixels exceeds the %d byte stride limit", g.Width, MaxLineBytes)
	}
	if g.Height > MaxLines {
		return ConfigError("height %d exceeds the %d line limit", g.Height, MaxLines)
	}
	return nil
}

func (g Geometry) String() string {
	return fmt.Sprintf("%dx%d/%s", g.Width, g.Height, g.Format)
}

// TransportKind selects how frames are put on the wire.
type TransportKind int

const (
	// TransportDatagram sends the header and fixed-size payload chunks as separate datagrams.
	TransportDatagram TransportKind = iota
	// TransportStream sends header and payload as one ordered byte sequence.
	TransportStream
)

func (k TransportKind) String() string {
	switch k {
	case TransportDatagram:
		return "udp"
	case TransportStream:
		return "tcp"
	default:
		return "unknown"
	}
}

// ParseTransportKind accepts "udp"/"datagram" and "tcp"/"stream".
func ParseTransportKind(s string) (TransportKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "udp", "datagram":
		return TransportDatagram, nil
	case "tcp", "stream":
		return TransportStream, nil
	}
	return 0, ConfigError("unknown transport %q", s)
}
