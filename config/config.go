// File: config/config.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Layered configuration for the streamer and receiver: built-in defaults,
// an optional YAML/TOML file, VDMASTREAM_* environment variables and bound
// command line flags, in increasing precedence.

package config

import (
	"time"

	"github.com/momentics/vdma-stream/stream"
)

// EnvPrefix prefixes environment overrides, e.g. VDMASTREAM_STREAM_RATE.
const EnvPrefix = "VDMASTREAM"

// Config is the complete configuration tree.
type Config struct {
	Log       LogConfig       `mapstructure:"log"`
	Device    DeviceConfig    `mapstructure:"device"`
	Frame     FrameConfig     `mapstructure:"frame"`
	DMA       DMAConfig       `mapstructure:"dma"`
	Transport TransportConfig `mapstructure:"transport"`
	Stream    StreamConfig    `mapstructure:"stream"`
	Receiver  ReceiverConfig  `mapstructure:"receiver"`
}

// LogConfig selects verbosity and output encoding.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// RegionConfig names a span of device memory. Offsets accept 0x notation.
type RegionConfig struct {
	Path   string `mapstructure:"path"`
	Offset uint64 `mapstructure:"offset"`
	Length int    `mapstructure:"length"`
}

// DeviceConfig is what device discovery would otherwise provide.
type DeviceConfig struct {
	Registers RegionConfig `mapstructure:"registers"`
	Memory    RegionConfig `mapstructure:"memory"`
	// PhysBase is the engine-side address of the buffer region. Zero means
	// the memory offset, which holds for /dev/mem.
	PhysBase uint64 `mapstructure:"phys_base"`
}

// FrameConfig is the frame geometry and buffer ring.
type FrameConfig struct {
	Width      int    `mapstructure:"width"`
	Height     int    `mapstructure:"height"`
	Format     string `mapstructure:"format"`
	Buffers    int    `mapstructure:"buffers"`
	BufferSize int    `mapstructure:"buffer_size"`
}

// DMAConfig bounds the controller's waits.
type DMAConfig struct {
	ResetPolls    int           `mapstructure:"reset_polls"`
	ResetInterval time.Duration `mapstructure:"reset_interval"`
	SettleDelay   time.Duration `mapstructure:"settle_delay"`
	HaltTimeout   time.Duration `mapstructure:"halt_timeout"`
}

// TransportConfig is the sending side of the wire.
type TransportConfig struct {
	Kind           string        `mapstructure:"kind"`
	Address        string        `mapstructure:"address"`
	ChunkSize      int           `mapstructure:"chunk_size"`
	RetryDelay     time.Duration `mapstructure:"retry_delay"`
	MaxRetries     int           `mapstructure:"max_retries"`
	SendBuffer     int           `mapstructure:"send_buffer"`
	NoDelay        bool          `mapstructure:"no_delay"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

// StreamConfig drives the streaming loop. Rate and ForceSend reload live.
type StreamConfig struct {
	Rate          float64       `mapstructure:"rate"`
	ForceSend     bool          `mapstructure:"force_send"`
	IdleBackoff   time.Duration `mapstructure:"idle_backoff"`
	StatsInterval time.Duration `mapstructure:"stats_interval"`
	// CPU pins the loop thread when not negative.
	CPU int `mapstructure:"cpu"`
}

// ReceiverConfig is the receiving tool.
type ReceiverConfig struct {
	Kind        string        `mapstructure:"kind"`
	Listen      string        `mapstructure:"listen"`
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
	MaxPayload  uint32        `mapstructure:"max_payload"`
	// Format is auto, yuyv, uyvy or packed32; anything but auto overrides
	// the tag reported for received frames.
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		Log: LogConfig{Level: "info", Format: "console"},
		Device: DeviceConfig{
			Registers: RegionConfig{Path: "/dev/mem", Offset: 0x80020000, Length: 0x10000},
			Memory:    RegionConfig{Path: "/dev/mem", Offset: 0x20000000},
		},
		Frame: FrameConfig{Width: 640, Height: 480, Format: "yuyv", Buffers: 3},
		DMA: DMAConfig{
			ResetPolls:    1000,
			ResetInterval: time.Millisecond,
			SettleDelay:   10 * time.Millisecond,
			HaltTimeout:   100 * time.Millisecond,
		},
		Transport: TransportConfig{
			Kind:           "udp",
			ChunkSize:      1400,
			RetryDelay:     100 * time.Microsecond,
			MaxRetries:     10000,
			SendBuffer:     4 << 20,
			NoDelay:        true,
			ConnectTimeout: 5 * time.Second,
		},
		Stream: StreamConfig{
			Rate:          30,
			IdleBackoff:   time.Millisecond,
			StatsInterval: time.Second,
			CPU:           -1,
		},
		Receiver: ReceiverConfig{
			Kind:        "udp",
			Listen:      ":5000",
			ReadTimeout: time.Second,
			MaxPayload:  64 << 20,
			Format:      "auto",
		},
	}
}

// Tunables extracts the settings the streaming loop applies while running.
func (c *Config) Tunables() map[string]any {
	return map[string]any{
		stream.KeyRate:      c.Stream.Rate,
		stream.KeyForceSend: c.Stream.ForceSend,
	}
}
