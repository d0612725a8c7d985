package config

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/vdma-stream/api"
	"github.com/momentics/vdma-stream/stream"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func TestDefaultsAreValid(t *testing.T) {
	m, err := Load(LoadOptions{Logger: zerolog.Nop()})
	require.NoError(t, err)
	cfg := m.Get()
	assert.Equal(t, Default(), *cfg)
	assert.Equal(t, "", m.File())
	assert.ErrorIs(t, cfg.RequireStreamTarget(), api.ErrConfiguration)
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("VDMASTREAM_STREAM_RATE", "60")
	t.Setenv("VDMASTREAM_TRANSPORT_KIND", "tcp")
	t.Setenv("VDMASTREAM_DEVICE_REGISTERS_OFFSET", "0x43000000")
	m, err := Load(LoadOptions{})
	require.NoError(t, err)
	cfg := m.Get()
	assert.Equal(t, 60.0, cfg.Stream.Rate)
	assert.Equal(t, "tcp", cfg.Transport.Kind)
	assert.Equal(t, uint64(0x43000000), cfg.Device.Registers.Offset)
}

func TestFileAndFlags(t *testing.T) {
	path := writeFile(t, t.TempDir(), "vdmastream.yaml", `
frame:
  width: 1280
  height: 720
  format: uyvy
  buffers: 4
device:
  memory:
    offset: 0x30000000
stream:
  rate: 25
  idle_backoff: 2ms
transport:
  address: 10.0.0.2:5000
`)
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.Float64("rate", 30, "")
	fs.Bool("force-send", false, "")
	require.NoError(t, fs.Parse([]string{"--rate=45"}))

	m, err := Load(LoadOptions{
		File: path,
		Flags: map[string]*pflag.Flag{
			stream.KeyRate:      fs.Lookup("rate"),
			stream.KeyForceSend: fs.Lookup("force-send"),
		},
	})
	require.NoError(t, err)
	cfg := m.Get()
	assert.Equal(t, path, m.File())
	assert.Equal(t, 45.0, cfg.Stream.Rate, "a set flag beats the file")
	assert.False(t, cfg.Stream.ForceSend, "an unset flag does not beat the default")
	assert.Equal(t, 2*time.Millisecond, cfg.Stream.IdleBackoff)
	assert.Equal(t, 4, cfg.Frame.Buffers)
	assert.Equal(t, "10.0.0.2:5000", cfg.Transport.Address)

	sc, err := cfg.SessionConfig(zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, api.Geometry{Width: 1280, Height: 720, Format: api.PixelUYVY}, sc.Geometry)
	assert.Equal(t, 1280*720*2*4, sc.Memory.Length)
	assert.Equal(t, uint64(0x30000000), sc.PhysBase)
	assert.Equal(t, uint64(0x80020000), sc.Registers.Offset)
	assert.Equal(t, 1000, sc.Controller.ResetPolls)
}

func TestMissingExplicitFile(t *testing.T) {
	_, err := Load(LoadOptions{File: filepath.Join(t.TempDir(), "nope.yaml")})
	assert.Error(t, err)
}

func TestMissingSearchedFileIsTolerated(t *testing.T) {
	m, err := Load(LoadOptions{SearchPaths: []string{t.TempDir()}})
	require.NoError(t, err)
	assert.Equal(t, 30.0, m.Get().Stream.Rate)
}

func TestValidationCollectsErrors(t *testing.T) {
	cfg := Default()
	cfg.Frame.Buffers = 5
	cfg.Frame.Format = "bayer"
	cfg.Stream.Rate = 0
	cfg.Transport.Kind = "sctp"
	cfg.Receiver.Format = "rgb565"
	cfg.Log.Level = "loud"
	err := cfg.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, api.ErrConfiguration)
	for _, want := range []string{"frame.buffers", "bayer", "stream.rate", "sctp", "rgb565", "loud"} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestInvalidFileRejected(t *testing.T) {
	path := writeFile(t, t.TempDir(), "bad.yaml", "stream:\n  rate: 5000\n")
	_, err := Load(LoadOptions{File: path})
	assert.ErrorIs(t, err, api.ErrConfiguration)
}

func TestReloadNotifiesAndKeepsOldOnError(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "vdmastream.yaml", "stream:\n  rate: 20\n")
	m, err := Load(LoadOptions{File: path})
	require.NoError(t, err)

	var got []map[string]any
	m.OnChange(func(c *Config) { got = append(got, c.Tunables()) })

	writeFile(t, dir, "vdmastream.yaml", "stream:\n  rate: 10\n  force_send: true\n")
	require.NoError(t, m.Reload())
	require.Len(t, got, 1)
	assert.Equal(t, map[string]any{stream.KeyRate: 10.0, stream.KeyForceSend: true}, got[0])

	writeFile(t, dir, "vdmastream.yaml", "stream:\n  rate: -1\n")
	assert.ErrorIs(t, m.Reload(), api.ErrConfiguration)
	assert.Len(t, got, 1)
	assert.Equal(t, 10.0, m.Get().Stream.Rate)
}

func TestWatchPicksUpEdits(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "vdmastream.yaml", "stream:\n  rate: 20\n")
	m, err := Load(LoadOptions{File: path})
	require.NoError(t, err)

	var calls atomic.Int32
	m.OnChange(func(*Config) { calls.Add(1) })
	require.NoError(t, m.Watch())
	require.NoError(t, m.Watch(), "second watch is a no-op")

	writeFile(t, dir, "vdmastream.yaml", "stream:\n  rate: 12\n")
	require.Eventually(t, func() bool {
		return m.Get().Stream.Rate == 12
	}, 5*time.Second, 20*time.Millisecond)
	assert.Positive(t, calls.Load())
}

func TestWatchWithoutFile(t *testing.T) {
	m, err := Load(LoadOptions{})
	require.NoError(t, err)
	assert.Error(t, m.Watch())
}

func TestDialAndReceiverOptions(t *testing.T) {
	cfg := Default()
	_, err := cfg.DialOptions()
	assert.ErrorIs(t, err, api.ErrConfiguration)

	cfg.Transport.Address = "127.0.0.1:5000"
	cfg.Transport.Kind = "stream"
	d, err := cfg.DialOptions()
	require.NoError(t, err)
	assert.Equal(t, api.TransportStream, d.Kind)
	assert.True(t, d.NoDelay)

	s, err := cfg.SenderOptions()
	require.NoError(t, err)
	assert.Equal(t, 10000, s.MaxRetries)
	assert.Equal(t, 100*time.Microsecond, s.RetryDelay)

	r, err := cfg.ReceiverOptions(zerolog.Nop())
	require.NoError(t, err)
	assert.Nil(t, r.Format)
	assert.Equal(t, api.TransportDatagram, r.Kind)

	cfg.Receiver.Format = "UYVY"
	r, err = cfg.ReceiverOptions(zerolog.Nop())
	require.NoError(t, err)
	require.NotNil(t, r.Format)
	assert.Equal(t, api.PixelUYVY, *r.Format)

	l := cfg.LoopOptions(zerolog.Nop())
	assert.Equal(t, 30.0, l.Rate)
	assert.Equal(t, time.Millisecond, l.IdleBackoff)
}
