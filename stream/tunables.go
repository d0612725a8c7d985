// File: stream/tunables.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package stream

import (
	"github.com/spf13/cast"

	"github.com/momentics/vdma-stream/api"
)

// Tunable keys understood by Apply.
const (
	KeyRate      = "stream.rate"
	KeyForceSend = "stream.force_send"
)

// Tunables returns the loop's current hot-reloadable settings.
func (l *Loop) Tunables() map[string]any {
	return map[string]any{
		KeyRate:      l.Rate(),
		KeyForceSend: l.ForceSend(),
	}
}

// ValidateTunables checks cfg without applying it.
func ValidateTunables(cfg map[string]any) error {
	if v, ok := cfg[KeyRate]; ok {
		fps, err := cast.ToFloat64E(v)
		if err != nil {
			return api.ConfigError("%s: %v", KeyRate, err)
		}
		if !(fps > 0 && fps <= MaxRate) {
			return api.ConfigError("%s must be in (0, %g], got %g", KeyRate, MaxRate, fps)
		}
	}
	if v, ok := cfg[KeyForceSend]; ok {
		if _, err := cast.ToBoolE(v); err != nil {
			return api.ConfigError("%s: %v", KeyForceSend, err)
		}
	}
	return nil
}

// Apply updates the loop from cfg. Unknown keys are ignored. It is meant
// as a control.ConfigStore reload listener.
func (l *Loop) Apply(cfg map[string]any) error {
	if err := ValidateTunables(cfg); err != nil {
		return err
	}
	if v, ok := cfg[KeyRate]; ok {
		if err := l.SetRate(cast.ToFloat64(v)); err != nil {
			return err
		}
	}
	if v, ok := cfg[KeyForceSend]; ok {
		l.SetForceSend(cast.ToBool(v))
	}
	l.log.Info().Float64("rate", l.Rate()).Bool("force_send", l.ForceSend()).Msg("stream tunables applied")
	return nil
}
