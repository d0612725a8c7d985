// File: config/manager.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// LoadOptions select the sources layered over the defaults.
type LoadOptions struct {
	// File is an explicit config file. Empty searches SearchPaths for
	// vdmastream.{yaml,toml} and tolerates its absence.
	File        string
	SearchPaths []string
	// Flags maps config keys to command line flags.
	Flags  map[string]*pflag.Flag
	Logger zerolog.Logger
}

// Manager owns the viper instance and the current validated Config.
type Manager struct {
	mu        sync.RWMutex
	viper     *viper.Viper
	config    *Config
	log       zerolog.Logger
	watching  bool
	callbacks []func(*Config)
}

// Load reads every source, unmarshals and validates.
func Load(opts LoadOptions) (*Manager, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v, Default())

	for key, flag := range opts.Flags {
		if flag == nil {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return nil, fmt.Errorf("bind flag %s: %w", key, err)
		}
	}

	if opts.File != "" {
		v.SetConfigFile(opts.File)
	} else {
		v.SetConfigName("vdmastream")
		for _, p := range opts.SearchPaths {
			v.AddConfigPath(p)
		}
	}
	m := &Manager{viper: v, log: opts.Logger.With().Str("component", "config").Logger()}
	if opts.File == "" && len(opts.SearchPaths) == 0 {
		cfg, err := m.unmarshal()
		if err != nil {
			return nil, err
		}
		m.config = cfg
		return m, nil
	}
	if err := m.readConfigFile(opts.File != ""); err != nil {
		return nil, err
	}
	cfg, err := m.unmarshal()
	if err != nil {
		return nil, err
	}
	m.config = cfg
	return m, nil
}

func (m *Manager) readConfigFile(required bool) error {
	if err := m.viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !required && errors.As(err, &notFound) {
			m.log.Debug().Msg("no config file found, using defaults")
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	m.log.Debug().Str("file", m.viper.ConfigFileUsed()).Msg("config file loaded")
	return nil
}

func (m *Manager) unmarshal() (*Config, error) {
	cfg := &Config{}
	if err := m.viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// Get returns the current configuration. Callers must not modify it.
func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config
}

// File returns the config file in use, if any.
func (m *Manager) File() string {
	return m.viper.ConfigFileUsed()
}

// OnChange registers a callback for successful reloads.
func (m *Manager) OnChange(fn func(*Config)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callbacks = append(m.callbacks, fn)
}

// Watch reloads the file on every change. An invalid edit is logged and
// the previous configuration stays in effect.
func (m *Manager) Watch() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.watching {
		return nil
	}
	if m.viper.ConfigFileUsed() == "" {
		return errors.New("no config file to watch")
	}
	m.viper.OnConfigChange(func(e fsnotify.Event) {
		m.log.Debug().Str("op", e.Op.String()).Str("file", e.Name).Msg("config change detected")
		if err := m.Reload(); err != nil {
			m.log.Warn().Err(err).Msg("config reload rejected")
		}
	})
	m.viper.WatchConfig()
	m.watching = true
	return nil
}

// Reload re-reads the file and notifies callbacks on success.
func (m *Manager) Reload() error {
	m.mu.Lock()
	if err := m.viper.ReadInConfig(); err != nil {
		m.mu.Unlock()
		return fmt.Errorf("read config: %w", err)
	}
	cfg, err := m.unmarshal()
	if err != nil {
		m.mu.Unlock()
		return err
	}
	m.config = cfg
	callbacks := append([]func(*Config){}, m.callbacks...)
	m.mu.Unlock()

	m.log.Info().Str("file", m.viper.ConfigFileUsed()).Msg("config reloaded")
	for _, fn := range callbacks {
		fn(cfg)
	}
	return nil
}

// setDefaults registers every leaf of d so that env variables are seen by
// Unmarshal even when no file mentions the key.
func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)

	v.SetDefault("device.registers.path", d.Device.Registers.Path)
	v.SetDefault("device.registers.offset", d.Device.Registers.Offset)
	v.SetDefault("device.registers.length", d.Device.Registers.Length)
	v.SetDefault("device.memory.path", d.Device.Memory.Path)
	v.SetDefault("device.memory.offset", d.Device.Memory.Offset)
	v.SetDefault("device.memory.length", d.Device.Memory.Length)
	v.SetDefault("device.phys_base", d.Device.PhysBase)

	v.SetDefault("frame.width", d.Frame.Width)
	v.SetDefault("frame.height", d.Frame.Height)
	v.SetDefault("frame.format", d.Frame.Format)
	v.SetDefault("frame.buffers", d.Frame.Buffers)
	v.SetDefault("frame.buffer_size", d.Frame.BufferSize)

	v.SetDefault("dma.reset_polls", d.DMA.ResetPolls)
	v.SetDefault("dma.reset_interval", d.DMA.ResetInterval)
	v.SetDefault("dma.settle_delay", d.DMA.SettleDelay)
	v.SetDefault("dma.halt_timeout", d.DMA.HaltTimeout)

	v.SetDefault("transport.kind", d.Transport.Kind)
	v.SetDefault("transport.address", d.Transport.Address)
	v.SetDefault("transport.chunk_size", d.Transport.ChunkSize)
	v.SetDefault("transport.retry_delay", d.Transport.RetryDelay)
	v.SetDefault("transport.max_retries", d.Transport.MaxRetries)
	v.SetDefault("transport.send_buffer", d.Transport.SendBuffer)
	v.SetDefault("transport.no_delay", d.Transport.NoDelay)
	v.SetDefault("transport.connect_timeout", d.Transport.ConnectTimeout)

	v.SetDefault("stream.rate", d.Stream.Rate)
	v.SetDefault("stream.force_send", d.Stream.ForceSend)
	v.SetDefault("stream.idle_backoff", d.Stream.IdleBackoff)
	v.SetDefault("stream.stats_interval", d.Stream.StatsInterval)
	v.SetDefault("stream.cpu", d.Stream.CPU)

	v.SetDefault("receiver.kind", d.Receiver.Kind)
	v.SetDefault("receiver.listen", d.Receiver.Listen)
	v.SetDefault("receiver.read_timeout", d.Receiver.ReadTimeout)
	v.SetDefault("receiver.max_payload", d.Receiver.MaxPayload)
	v.SetDefault("receiver.format", d.Receiver.Format)
	v.SetDefault("receiver.output", d.Receiver.Output)
}
