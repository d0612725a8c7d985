// File: protocol/frame_codec.go
// Package protocol implements the frame header codec with payload size enforcement.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package protocol

import (
	"encoding/binary"
	"math"
	"time"

	"github.com/momentics/vdma-stream/api"
)

// MaxPayload is the largest payload the 32-bit size field can describe.
const MaxPayload = math.MaxUint32

// BuildHeader encodes the header for one transmission attempt. It fails
// with api.ErrPayloadTooLarge instead of truncating the size field.
func BuildHeader(seq uint32, geom api.Geometry, payloadSize uint64, ts time.Time) ([HeaderSize]byte, error) {
	var out [HeaderSize]byte
	if payloadSize > MaxPayload {
		return out, api.NewError(api.ErrCodePayloadTooLarge, "payload does not fit the 32-bit size field").
			WithContext("payload_size", payloadSize)
	}
	if geom.Width < 0 || geom.Height < 0 || uint64(geom.Width) > math.MaxUint32 || uint64(geom.Height) > math.MaxUint32 {
		return out, api.ConfigError("geometry %s does not fit the header", geom)
	}
	h := Header{
		Magic:         Magic,
		Sequence:      seq,
		Width:         uint32(geom.Width),
		Height:        uint32(geom.Height),
		Format:        geom.Format,
		PayloadSize:   uint32(payloadSize),
		TimestampSec:  uint32(ts.Unix()),
		TimestampUsec: uint32(ts.Nanosecond() / int(time.Microsecond)),
	}
	h.Put(out[:])
	return out, nil
}

// ParseHeader decodes the first HeaderSize bytes of raw. The magic is not
// checked; use Header.Valid.
func ParseHeader(raw []byte) (Header, error) {
	if len(raw) < HeaderSize {
		return Header{}, ErrShortHeader
	}
	return Header{
		Magic:         binary.BigEndian.Uint32(raw[0:]),
		Sequence:      binary.BigEndian.Uint32(raw[4:]),
		Width:         binary.BigEndian.Uint32(raw[8:]),
		Height:        binary.BigEndian.Uint32(raw[12:]),
		Format:        api.PixelFormat(binary.BigEndian.Uint32(raw[16:])),
		PayloadSize:   binary.BigEndian.Uint32(raw[20:]),
		TimestampSec:  binary.BigEndian.Uint32(raw[24:]),
		TimestampUsec: binary.BigEndian.Uint32(raw[28:]),
	}, nil
}
