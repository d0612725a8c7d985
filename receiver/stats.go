// File: receiver/stats.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package receiver

import (
	"context"
	"math"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/momentics/vdma-stream/control"
)

// sequenceTracker counts sequence gaps. Sequences at or behind the last one
// seen (restarts, reordering) reset the baseline without counting drops.
type sequenceTracker struct {
	last uint32
	seen bool
}

func (t *sequenceTracker) observe(seq uint32) uint32 {
	var gap uint32
	if t.seen {
		// Unsigned subtraction handles the wrap from MaxUint32 to 0.
		if d := seq - t.last - 1; d < math.MaxUint32/2 {
			gap = d
		}
	}
	t.last, t.seen = seq, true
	return gap
}

type counters struct {
	frames  atomic.Uint64
	bytes   atomic.Uint64
	dropped atomic.Uint64
	invalid atomic.Uint64
	partial atomic.Uint64
	stray   atomic.Uint64
	lastSeq atomic.Uint32
}

// Stats is a snapshot of the receive counters.
type Stats struct {
	Frames  uint64
	Bytes   uint64
	Dropped uint64
	Invalid uint64
	Partial uint64
	// Stray counts datagrams too short to hold a header outside a frame.
	Stray        uint64
	LastSequence uint32
}

// Stats reads the counters. Safe from any goroutine.
func (r *Receiver) Stats() Stats {
	return Stats{
		Frames:       r.counters.frames.Load(),
		Bytes:        r.counters.bytes.Load(),
		Dropped:      r.counters.dropped.Load(),
		Invalid:      r.counters.invalid.Load(),
		Partial:      r.counters.partial.Load(),
		Stray:        r.counters.stray.Load(),
		LastSequence: r.counters.lastSeq.Load(),
	}
}

// Map returns the snapshot keyed by metric name.
func (s Stats) Map() map[string]any {
	return map[string]any{
		"frames":        s.Frames,
		"bytes":         s.Bytes,
		"dropped":       s.Dropped,
		"invalid":       s.Invalid,
		"partial":       s.Partial,
		"stray":         s.Stray,
		"last_sequence": s.LastSequence,
	}
}

// Reporter periodically publishes receive statistics and logs throughput.
type Reporter struct {
	rx       *Receiver
	metrics  *control.MetricsRegistry
	log      zerolog.Logger
	interval time.Duration
	prev     Stats
	prevAt   time.Time
}

// NewReporter publishes into metrics, which may be nil, every interval.
func NewReporter(rx *Receiver, metrics *control.MetricsRegistry, interval time.Duration, log zerolog.Logger) *Reporter {
	if interval <= 0 {
		interval = time.Second
	}
	return &Reporter{
		rx:       rx,
		metrics:  metrics,
		log:      log.With().Str("component", "receiver.stats").Logger(),
		interval: interval,
	}
}

// Run reports until ctx is done.
func (p *Reporter) Run(ctx context.Context) error {
	t := time.NewTicker(p.interval)
	defer t.Stop()
	p.prevAt = time.Now()
	for {
		select {
		case <-ctx.Done():
			p.Report(time.Now())
			return nil
		case now := <-t.C:
			p.Report(now)
		}
	}
}

// Report publishes one snapshot and logs the rates since the last one.
func (p *Reporter) Report(now time.Time) {
	s := p.rx.Stats()
	if p.metrics != nil {
		p.metrics.Publish("receiver", s.Map())
	}
	if !p.prevAt.IsZero() {
		if dt := now.Sub(p.prevAt).Seconds(); dt > 0 {
			ev := p.log.Info().
				Float64("fps", float64(s.Frames-p.prev.Frames)/dt).
				Float64("mbps", float64(s.Bytes-p.prev.Bytes)*8/dt/1e6).
				Uint64("frames", s.Frames)
			if s.Dropped > 0 {
				ev = ev.Uint64("dropped", s.Dropped)
			}
			if s.Invalid > 0 {
				ev = ev.Uint64("invalid", s.Invalid)
			}
			if s.Partial > 0 {
				ev = ev.Uint64("partial", s.Partial)
			}
			ev.Msg("receiver stats")
		}
	}
	p.prev, p.prevAt = s, now
}
