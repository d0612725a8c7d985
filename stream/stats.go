// File: stream/stats.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package stream

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/momentics/vdma-stream/control"
)

type counters struct {
	attempted atomic.Uint64
	sent      atomic.Uint64
	skipped   atomic.Uint64
	forced    atomic.Uint64
	idle      atomic.Uint64
	retries   atomic.Uint64
	bytes     atomic.Uint64
	lastSeq   atomic.Uint32
}

// Stats is a snapshot of the loop counters.
type Stats struct {
	Attempted uint64
	Sent      uint64
	// Skipped counts frames abandoned on backpressure before any byte went out.
	Skipped   uint64
	Forced    uint64
	IdlePolls uint64
	Retries   uint64
	Bytes     uint64
	// LastSequence is only meaningful once Attempted > 0.
	LastSequence uint32
}

// Stats reads the counters. Safe from any goroutine.
func (l *Loop) Stats() Stats {
	return Stats{
		Attempted:    l.counters.attempted.Load(),
		Sent:         l.counters.sent.Load(),
		Skipped:      l.counters.skipped.Load(),
		Forced:       l.counters.forced.Load(),
		IdlePolls:    l.counters.idle.Load(),
		Retries:      l.counters.retries.Load(),
		Bytes:        l.counters.bytes.Load(),
		LastSequence: l.counters.lastSeq.Load(),
	}
}

// Map returns the snapshot keyed by metric name.
func (s Stats) Map() map[string]any {
	return map[string]any{
		"attempted":     s.Attempted,
		"sent":          s.Sent,
		"skipped":       s.Skipped,
		"forced":        s.Forced,
		"idle_polls":    s.IdlePolls,
		"retries":       s.Retries,
		"bytes":         s.Bytes,
		"last_sequence": s.LastSequence,
	}
}

// Reporter periodically publishes loop statistics and logs throughput.
type Reporter struct {
	loop     *Loop
	metrics  *control.MetricsRegistry
	log      zerolog.Logger
	interval time.Duration
	prev     Stats
	prevAt   time.Time
}

// NewReporter publishes into metrics, which may be nil, every interval.
func NewReporter(loop *Loop, metrics *control.MetricsRegistry, interval time.Duration, log zerolog.Logger) *Reporter {
	if interval <= 0 {
		interval = time.Second
	}
	return &Reporter{
		loop:     loop,
		metrics:  metrics,
		log:      log.With().Str("component", "stream.stats").Logger(),
		interval: interval,
	}
}

// Run reports until ctx is done, then publishes a final snapshot.
func (r *Reporter) Run(ctx context.Context) error {
	t := time.NewTicker(r.interval)
	defer t.Stop()
	r.prevAt = time.Now()
	for {
		select {
		case <-ctx.Done():
			r.Report(time.Now())
			return nil
		case now := <-t.C:
			r.Report(now)
		}
	}
}

// Report publishes one snapshot and logs the rates since the last one.
func (r *Reporter) Report(now time.Time) {
	s := r.loop.Stats()
	if r.metrics != nil {
		m := s.Map()
		m["rate"] = r.loop.Rate()
		m["force_send"] = r.loop.ForceSend()
		r.metrics.Publish("stream", m)
	}
	if !r.prevAt.IsZero() {
		if dt := now.Sub(r.prevAt).Seconds(); dt > 0 {
			fps := float64(s.Sent-r.prev.Sent) / dt
			mbps := float64(s.Bytes-r.prev.Bytes) * 8 / dt / 1e6
			r.log.Info().
				Float64("fps", fps).
				Float64("mbps", mbps).
				Uint64("sent", s.Sent).
				Uint64("skipped", s.Skipped).
				Uint64("retries", s.Retries).
				Uint32("seq", s.LastSequence).
				Msg("stream stats")
		}
	}
	r.prev, r.prevAt = s, now
}
