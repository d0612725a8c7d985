// File: cmd/vdmastream/root.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package main

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/momentics/vdma-stream/config"
	"github.com/momentics/vdma-stream/internal/logging"
)

// configKeyAnnotation marks a flag as an override of a config key.
const configKeyAnnotation = "vdmastream/config-key"

// app is the state shared by the subcommands once configuration is loaded.
type app struct {
	cfg *config.Manager
	log zerolog.Logger
}

func newRootCmd(version, commit, buildDate string) *cobra.Command {
	a := &app{log: zerolog.Nop()}
	root := &cobra.Command{
		Use:   "vdmastream",
		Short: "Stream frames captured by an AXI VDMA engine over UDP or TCP",
		Long: `vdmastream drives a VDMA stream-to-memory channel over mapped registers,
polls its write position and forwards the most recently completed frame to a
remote receiver. The receive command is the matching consumer.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.load(cmd)
		},
	}
	pf := root.PersistentFlags()
	pf.StringP("config", "c", "", "config file (default: vdmastream.yaml in /etc/vdmastream or the working directory)")
	pf.String("log-level", "info", "trace, debug, info, warn or error")
	pf.String("log-format", "console", "console or json")
	bindFlag(pf, "log-level", "log.level")
	bindFlag(pf, "log-format", "log.format")

	root.AddCommand(newStreamCmd(a), newReceiveCmd(a), &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return nil
		},
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "vdmastream %s\ncommit: %s\nbuilt: %s\n", version, commit, buildDate)
		},
	})
	return root
}

// bindFlag records the config key a flag overrides.
func bindFlag(fs *pflag.FlagSet, name, key string) {
	if err := fs.SetAnnotation(name, configKeyAnnotation, []string{key}); err != nil {
		panic(err)
	}
}

func (a *app) load(cmd *cobra.Command) error {
	file, err := cmd.Flags().GetString("config")
	if err != nil {
		return err
	}
	flags := make(map[string]*pflag.Flag)
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if keys := f.Annotations[configKeyAnnotation]; len(keys) == 1 {
			flags[keys[0]] = f
		}
	})
	var search []string
	if file == "" {
		search = []string{"/etc/vdmastream", "."}
	}
	m, err := config.Load(config.LoadOptions{
		File:        file,
		SearchPaths: search,
		Flags:       flags,
		Logger:      logging.New(logging.DefaultConfig()).Level(zerolog.WarnLevel),
	})
	if err != nil {
		return err
	}
	a.cfg = m
	a.log = logging.New(m.Get().LogConfig())
	if f := m.File(); f != "" {
		a.log.Debug().Str("file", f).Msg("using config file")
	}
	return nil
}
