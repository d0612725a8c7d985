// File: cmd/vdmastream/receive.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/momentics/vdma-stream/control"
	"github.com/momentics/vdma-stream/protocol"
	"github.com/momentics/vdma-stream/receiver"
)

func newReceiveCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "receive",
		Short: "Receive a frame stream and optionally record the raw frames",
		Example: `  vdmastream receive --listen :5000
  vdmastream receive --transport tcp --output capture.yuv --force-format uyvy`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runReceive(cmd.Context(), a)
		},
	}
	f := cmd.Flags()
	f.StringP("listen", "l", ":5000", "local address to listen on")
	f.StringP("transport", "t", "udp", "udp or tcp")
	f.StringP("output", "o", "", "append raw frame payloads to this file")
	f.String("force-format", "auto", "report frames as auto, yuyv, uyvy or packed32")
	bindFlag(f, "listen", "receiver.listen")
	bindFlag(f, "transport", "receiver.kind")
	bindFlag(f, "output", "receiver.output")
	bindFlag(f, "force-format", "receiver.format")
	return cmd
}

func runReceive(parent context.Context, a *app) (err error) {
	cfg := a.cfg.Get()
	log := a.log
	opts, err := cfg.ReceiverOptions(log)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	handler := receiver.Handler(func(protocol.Header, []byte) error { return nil })
	if cfg.Receiver.Output != "" {
		sink, serr := receiver.NewFileSink(cfg.Receiver.Output)
		if serr != nil {
			return serr
		}
		defer func() { err = errors.Join(err, sink.Close()) }()
		handler = sink.Write
		log.Info().Str("file", cfg.Receiver.Output).Msg("recording raw frames")
	}
	first := true
	next := handler
	handler = func(h protocol.Header, p []byte) error {
		if first {
			first = false
			log.Info().Stringer("header", h).Time("captured", h.Timestamp()).Msg("first frame")
		}
		return next(h, p)
	}

	rx, err := receiver.Listen(opts, handler)
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, rx.Close()) }()

	metrics := control.NewMetricsRegistry()
	rep := receiver.NewReporter(rx, metrics, cfg.Stream.StatsInterval, log)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return rx.Run(gctx) })
	g.Go(func() error { return rep.Run(gctx) })
	notify(log, daemon.SdNotifyReady)
	<-gctx.Done()
	notify(log, daemon.SdNotifyStopping)
	if err := g.Wait(); err != nil {
		return err
	}
	log.Info().Fields(rx.Stats().Map()).Msg("receiver stopped")
	return nil
}
