// SPDX-License-Identifier: EPL-2.0

// Package cmd implements the audplay command line.
package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/ik5/audplay/internal/conf"
	"github.com/ik5/audplay/internal/logger"
)

// Version is set at build time with -ldflags.
var Version = "dev"

// app carries state from the root pre-run to the subcommands.
type app struct {
	configFile string
	settings   *conf.Settings
	log        logger.Logger
	logOut     io.Writer
}

// RootCommand creates the root command and its subcommands.
func RootCommand() *cobra.Command {
	a := &app{logOut: os.Stderr}

	rootCmd := &cobra.Command{
		Use:           "audplay [file]",
		Short:         "Buffered audio file player",
		Long:          "audplay decodes an audio file and plays it on a sound device through a bounded playback buffer.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&a.configFile, "config", "c", "", "Config file (default: audplay.yaml in "+fmt.Sprint(conf.DefaultConfigPaths())+")")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level: trace, debug, info, warn, error")
	rootCmd.PersistentFlags().Bool("log-json", false, "Log as JSON")

	play := playCommand(a)
	// A bare "audplay file.wav" plays the file.
	rootCmd.Args = play.Args
	rootCmd.RunE = play.RunE
	rootCmd.Flags().AddFlagSet(play.Flags())

	rootCmd.AddCommand(play, devicesCommand(a), versionCommand())

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		if cmd.Name() == "version" {
			return nil
		}
		return a.initialize(cmd)
	}

	return rootCmd
}

// flagKeys maps flag names to configuration keys.
var flagKeys = map[string]string{
	"log-level":        "log.level",
	"log-json":         "log.json",
	"backend":          "device.backend",
	"device":           "device.name",
	"rate":             "device.samplerate",
	"channels":         "device.channels",
	"period-frames":    "device.periodframes",
	"no-mmap":          "device.nommap",
	"realtime":         "device.realtime",
	"buffer-periods":   "buffer.periods",
	"overflow-policy":  "buffer.overflowpolicy",
	"throttle-timeout": "buffer.throttletimeout",
	"chunk-frames":     "pipeline.chunkframes",
	"dump":             "dump.enabled",
	"dump-path":        "dump.path",
	"dump-format":      "dump.format",
	"metrics-listen":   "metrics.listen",
}

// bindFlags binds every known flag of cmd to its configuration key, so a
// flag set on the command line wins over the file and the environment.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	var err error
	flags.VisitAll(func(f *pflag.Flag) {
		key, ok := flagKeys[f.Name]
		if !ok || err != nil {
			return
		}
		if bindErr := v.BindPFlag(key, f); bindErr != nil {
			err = fmt.Errorf("error binding flag %s: %w", f.Name, bindErr)
		}
	})
	return err
}

// initialize loads the settings and builds the logger.
func (a *app) initialize(cmd *cobra.Command) error {
	v := conf.New(a.configFile)
	if err := bindFlags(v, cmd.Flags()); err != nil {
		return err
	}

	settings, err := conf.Load(v)
	if err != nil {
		return err
	}
	a.settings = settings

	a.log = logger.New(a.logOut, logger.Options{
		Level: settings.Log.Level,
		JSON:  settings.Log.JSON,
	})
	if used := v.ConfigFileUsed(); used != "" {
		a.log.Debug("loaded config", logger.String("file", used))
	}

	return nil
}
