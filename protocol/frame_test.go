package protocol_test

import (
	"bytes"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/vdma-stream/api"
	"github.com/momentics/vdma-stream/protocol"
)

func TestHeaderRoundTrip(t *testing.T) {
	ts := time.Unix(1_700_000_000, 123_456_789)
	geom := api.Geometry{Width: 640, Height: 480, Format: api.PixelUYVY}
	raw, err := protocol.BuildHeader(0xFFFF_FFFE, geom, 614400, ts)
	require.NoError(t, err)

	h, err := protocol.ParseHeader(raw[:])
	require.NoError(t, err)
	assert.True(t, h.Valid())
	assert.Equal(t, protocol.Header{
		Magic:         protocol.Magic,
		Sequence:      0xFFFF_FFFE,
		Width:         640,
		Height:        480,
		Format:        api.PixelUYVY,
		PayloadSize:   614400,
		TimestampSec:  1_700_000_000,
		TimestampUsec: 123_456,
	}, h)
	assert.Equal(t, geom, h.Geometry())
	assert.Equal(t, time.Unix(1_700_000_000, 123_456_000), h.Timestamp())

	var again [protocol.HeaderSize]byte
	h.Put(again[:])
	assert.Equal(t, raw, again)
}

func TestHeaderWireLayout(t *testing.T) {
	raw, err := protocol.BuildHeader(7, api.Geometry{Width: 2, Height: 3, Format: api.PixelYUYV}, 12, time.Unix(5, 6000))
	require.NoError(t, err)
	want := []byte{
		'V', 'I', 'D', 'F',
		0, 0, 0, 7,
		0, 0, 0, 2,
		0, 0, 0, 3,
		0, 0, 0, 1,
		0, 0, 0, 12,
		0, 0, 0, 5,
		0, 0, 0, 6,
	}
	assert.Equal(t, want, raw[:])
}

func TestBuildHeaderPayloadTooLarge(t *testing.T) {
	geom := api.Geometry{Width: 1, Height: 1, Format: api.PixelYUYV}
	_, err := protocol.BuildHeader(0, geom, protocol.MaxPayload, time.Now())
	assert.NoError(t, err)

	_, err = protocol.BuildHeader(0, geom, protocol.MaxPayload+1, time.Now())
	assert.ErrorIs(t, err, api.ErrPayloadTooLarge)
	assert.Equal(t, api.ErrCodePayloadTooLarge, api.CodeOf(err))
}

func TestParseHeaderShort(t *testing.T) {
	_, err := protocol.ParseHeader(make([]byte, protocol.HeaderSize-1))
	assert.ErrorIs(t, err, protocol.ErrShortHeader)
}

func TestReadHeader(t *testing.T) {
	raw, err := protocol.BuildHeader(1, api.Geometry{Width: 4, Height: 4, Format: api.PixelPacked32}, 64, time.Now())
	require.NoError(t, err)

	h, err := protocol.ReadHeader(bytes.NewReader(append(raw[:], 0xAA)))
	require.NoError(t, err)
	assert.Equal(t, uint32(64), h.PayloadSize)
	assert.Equal(t, 4, h.Format.BytesPerPixel())

	bad := raw
	bad[0] = 'X'
	_, err = protocol.ReadHeader(bytes.NewReader(bad[:]))
	assert.ErrorIs(t, err, protocol.ErrBadMagic)

	_, err = protocol.ReadHeader(bytes.NewReader(raw[:10]))
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}
