// File: stream/loop.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Streaming loop: polls the acquisition session, selects the most recently
// completed buffer, frames it and hands it to the sender at a paced rate.

package stream

import (
	"context"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/momentics/vdma-stream/api"
	"github.com/momentics/vdma-stream/internal/transport"
	"github.com/momentics/vdma-stream/protocol"
	"github.com/momentics/vdma-stream/selector"
)

// Source is the acquisition side of the loop. dma.Session implements it.
type Source interface {
	CurrentWriteIndex() int
	Frame(i int) []byte
	Health() error
	Geometry() api.Geometry
	BufferCount() int
}

// Sender puts one framed payload on the wire. transport.Sender implements it.
type Sender interface {
	Send(header, payload []byte) (transport.Result, error)
}

// Step is what one loop iteration did.
type Step int

const (
	StepIdle Step = iota
	StepSent
	StepSkipped
)

func (s Step) String() string {
	switch s {
	case StepIdle:
		return "idle"
	case StepSent:
		return "sent"
	case StepSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// MaxRate bounds the pacing rate.
const MaxRate = 1000.0

// Options configure a Loop.
type Options struct {
	// Rate is the target frames per second.
	Rate float64
	// IdleBackoff is slept when no new frame is available.
	IdleBackoff time.Duration
	// ForceSend re-sends the last selection when the writer has not moved.
	ForceSend bool

	Now    func() time.Time
	Sleep  func(time.Duration)
	Logger zerolog.Logger
}

// DefaultOptions returns 30 fps pacing with a 1 ms idle backoff.
func DefaultOptions() Options {
	return Options{
		Rate:        30,
		IdleBackoff: time.Millisecond,
		Now:         time.Now,
		Sleep:       time.Sleep,
		Logger:      zerolog.Nop(),
	}
}

// Loop is one stream session. Run, Step and the selector state belong to a
// single goroutine; SetRate, SetForceSend and Stats may be called from any.
type Loop struct {
	src  Source
	snd  Sender
	sel  *selector.Selector
	geom api.Geometry
	log  zerolog.Logger

	idle  time.Duration
	now   func() time.Time
	sleep func(time.Duration)

	seq      uint32
	interval atomic.Int64
	fps      atomic.Uint64
	force    atomic.Bool

	counters counters
}

// New binds a loop to an acquisition source and a sender.
func New(src Source, snd Sender, opts Options) (*Loop, error) {
	if src == nil || snd == nil {
		return nil, api.ConfigError("stream loop needs a source and a sender")
	}
	sel, err := selector.New(src.BufferCount())
	if err != nil {
		return nil, err
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Sleep == nil {
		opts.Sleep = time.Sleep
	}
	if opts.IdleBackoff <= 0 {
		return nil, api.ConfigError("idle backoff must be positive, got %s", opts.IdleBackoff)
	}
	l := &Loop{
		src:   src,
		snd:   snd,
		sel:   sel,
		geom:  src.Geometry(),
		log:   opts.Logger.With().Str("component", "stream").Logger(),
		idle:  opts.IdleBackoff,
		now:   opts.Now,
		sleep: opts.Sleep,
	}
	if err := l.SetRate(opts.Rate); err != nil {
		return nil, err
	}
	l.force.Store(opts.ForceSend)
	return l, nil
}

// SetRate changes the pacing rate; it takes effect on the next frame.
func (l *Loop) SetRate(fps float64) error {
	if !(fps > 0 && fps <= MaxRate) {
		return api.ConfigError("rate must be in (0, %g] fps, got %g", MaxRate, fps)
	}
	l.fps.Store(math.Float64bits(fps))
	l.interval.Store(int64(float64(time.Second) / fps))
	return nil
}

// Rate returns the pacing rate in frames per second as last set.
func (l *Loop) Rate() float64 {
	return math.Float64frombits(l.fps.Load())
}

// Interval returns the pacing interval.
func (l *Loop) Interval() time.Duration { return time.Duration(l.interval.Load()) }

// SetForceSend toggles re-sending of an unchanged buffer.
func (l *Loop) SetForceSend(on bool) { l.force.Store(on) }

// ForceSend reports whether force-send is on.
func (l *Loop) ForceSend() bool { return l.force.Load() }

// NextSequence returns the sequence number the next attempt will carry.
func (l *Loop) NextSequence() uint32 { return l.seq }

// Step runs one iteration without pacing. Errors are fatal to the session.
func (l *Loop) Step() (Step, error) {
	if err := l.src.Health(); err != nil {
		return StepIdle, err
	}
	w := l.src.CurrentWriteIndex()
	sel, ok := l.sel.Next(w, l.force.Load())
	if !ok {
		l.counters.idle.Add(1)
		return StepIdle, nil
	}

	payload := l.src.Frame(sel.ReadIndex)
	seq := l.seq
	l.seq++
	l.counters.attempted.Add(1)
	l.counters.lastSeq.Store(seq)
	if sel.Forced {
		l.counters.forced.Add(1)
	}

	header, err := protocol.BuildHeader(seq, l.geom, uint64(len(payload)), l.now())
	if err != nil {
		return StepIdle, fmt.Errorf("frame %d: %w", seq, err)
	}
	res, err := l.snd.Send(header[:], payload)
	l.counters.retries.Add(uint64(res.Retries))
	l.counters.bytes.Add(uint64(res.Bytes))
	if err != nil {
		return StepIdle, fmt.Errorf("frame %d from buffer %d: %w", seq, sel.ReadIndex, err)
	}
	if res.Outcome == transport.Skipped {
		l.counters.skipped.Add(1)
		return StepSkipped, nil
	}
	l.counters.sent.Add(1)
	l.log.Trace().
		Uint32("seq", seq).
		Int("write_index", sel.WriteIndex).
		Int("read_index", sel.ReadIndex).
		Int("bytes", res.Bytes).
		Msg("frame sent")
	return StepSent, nil
}

// Run polls until ctx is cancelled or a fatal error occurs. Cancellation is
// checked once per iteration; a send in progress is finished first.
func (l *Loop) Run(ctx context.Context) error {
	l.log.Info().
		Str("geometry", l.geom.String()).
		Int("buffers", l.sel.Buffers()).
		Float64("rate", l.Rate()).
		Bool("force_send", l.ForceSend()).
		Msg("streaming started")

	for {
		select {
		case <-ctx.Done():
			s := l.Stats()
			l.log.Info().
				Uint64("sent", s.Sent).
				Uint64("skipped", s.Skipped).
				Msg("streaming stopped")
			return nil
		default:
		}

		started := l.now()
		step, err := l.Step()
		if err != nil {
			l.log.Error().Err(err).Msg("streaming failed")
			return err
		}
		switch step {
		case StepIdle:
			l.sleep(l.idle)
		case StepSent:
			if rest := l.Interval() - l.now().Sub(started); rest > 0 {
				l.sleep(rest)
			}
		}
	}
}
