// File: cmd/vdmastream/stream.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/momentics/vdma-stream/adapters"
	"github.com/momentics/vdma-stream/config"
	"github.com/momentics/vdma-stream/control"
	"github.com/momentics/vdma-stream/dma"
	"github.com/momentics/vdma-stream/internal/logging"
	"github.com/momentics/vdma-stream/internal/transport"
	"github.com/momentics/vdma-stream/stream"
)

func newStreamCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stream",
		Short: "Acquire frames from the VDMA engine and send them to a receiver",
		Example: `  vdmastream stream --address 10.72.43.200:5000
  vdmastream stream --transport tcp --address host:5000 --rate 15 --force-send`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStream(cmd.Context(), a)
		},
	}
	f := cmd.Flags()
	f.StringP("address", "a", "", "receiver host:port")
	f.StringP("transport", "t", "udp", "udp or tcp")
	f.Float64P("rate", "r", 30, "frames per second")
	f.Bool("force-send", false, "resend the last frame when no new frame completed")
	f.Int("cpu", -1, "pin the streaming loop to this CPU")
	f.Int("width", 640, "frame width in pixels")
	f.Int("height", 480, "frame height in lines")
	f.String("format", "yuyv", "pixel format: yuyv, uyvy or packed32")
	f.Int("buffers", 3, "frame buffers in the ring (1..4)")
	bindFlag(f, "address", "transport.address")
	bindFlag(f, "transport", "transport.kind")
	bindFlag(f, "rate", stream.KeyRate)
	bindFlag(f, "force-send", stream.KeyForceSend)
	bindFlag(f, "cpu", "stream.cpu")
	bindFlag(f, "width", "frame.width")
	bindFlag(f, "height", "frame.height")
	bindFlag(f, "format", "frame.format")
	bindFlag(f, "buffers", "frame.buffers")
	return cmd
}

func runStream(parent context.Context, a *app) (err error) {
	cfg := a.cfg.Get()
	dial, err := cfg.DialOptions()
	if err != nil {
		return err
	}
	sendOpts, err := cfg.SenderOptions()
	if err != nil {
		return err
	}

	log := a.log.With().Str("session_id", uuid.NewString()).Logger()
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logging.WithContext(ctx, log)

	sessCfg, err := cfg.SessionConfig(log.With().Str("component", "dma").Logger())
	if err != nil {
		return err
	}
	log.Info().
		Str("registers", sessCfg.Registers.String()).
		Str("memory", sessCfg.Memory.String()).
		Str("geometry", sessCfg.Geometry.String()).
		Int("buffers", sessCfg.Buffers).
		Msg("opening acquisition session")
	sess, err := dma.Open(sessCfg)
	if err != nil {
		return fmt.Errorf("acquisition: %w", err)
	}
	sock, err := transport.Dial(dial)
	if err != nil {
		return errors.Join(fmt.Errorf("transport: %w", err), sess.Shutdown())
	}
	snd, err := transport.NewSender(sock, sendOpts)
	if err != nil {
		return errors.Join(err, sess.Shutdown(), sock.Close())
	}
	// Engine and mappings go first, the socket last.
	defer func() {
		err = errors.Join(err, sess.Shutdown(), snd.Close())
	}()

	loop, err := stream.New(sess, snd, cfg.LoopOptions(log))
	if err != nil {
		return err
	}
	ctrl := adapters.NewControlAdapter(loop.Tunables())
	ctrl.SetValidator(stream.ValidateTunables)
	ctrl.OnReload(func(m map[string]any) {
		if err := loop.Apply(m); err != nil {
			log.Warn().Err(err).Msg("tunables not applied")
		}
	})
	control.RegisterEngineProbes(ctrl.Debug(), sess.Controller())
	a.cfg.OnChange(func(c *config.Config) {
		if err := ctrl.SetConfig(c.Tunables()); err != nil {
			log.Warn().Err(err).Msg("reloaded tunables rejected")
		}
	})
	if a.cfg.File() != "" {
		if err := a.cfg.Watch(); err != nil {
			log.Warn().Err(err).Msg("config watch unavailable")
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if cfg.Stream.CPU >= 0 {
			aff := adapters.NewAffinityAdapter()
			if err := aff.Pin(cfg.Stream.CPU); err != nil {
				return fmt.Errorf("pin streaming loop: %w", err)
			}
			defer func() { _ = aff.Unpin() }()
			log.Info().Int("cpu", cfg.Stream.CPU).Msg("streaming loop pinned")
		}
		return loop.Run(gctx)
	})
	rep := stream.NewReporter(loop, ctrl.Metrics(), cfg.Stream.StatsInterval, log)
	g.Go(func() error { return rep.Run(gctx) })

	notify(log, daemon.SdNotifyReady)
	<-gctx.Done()
	notify(log, daemon.SdNotifyStopping)
	err = g.Wait()

	// The loop has exited; this goroutine owns the controller again.
	if err != nil {
		log.Error().Err(err).Fields(ctrl.Debug().Group("dma")).Msg("engine state at failure")
	}
	dumpState(log, ctrl)
	return err
}

func notify(log zerolog.Logger, state string) {
	if ok, err := daemon.SdNotify(false, state); err != nil {
		log.Debug().Err(err).Str("state", state).Msg("sd_notify failed")
	} else if ok {
		log.Debug().Str("state", state).Msg("sd_notify sent")
	}
}

func dumpState(log zerolog.Logger, ctrl *adapters.ControlAdapter) {
	ev := log.Debug()
	if !ev.Enabled() {
		return
	}
	ev.Fields(ctrl.Stats()).Msg("final state")
}
