// SPDX-License-Identifier: EPL-2.0

package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/ik5/audplay/internal/conf"
	"github.com/ik5/audplay/internal/device"
	"github.com/ik5/audplay/internal/errors"
	"github.com/ik5/audplay/internal/httpserver"
	"github.com/ik5/audplay/internal/logger"
	"github.com/ik5/audplay/internal/metrics"
	"github.com/ik5/audplay/internal/player"
	"github.com/ik5/audplay/internal/telemetry"
)

// simulatedBackend selects the clock-driven device instead of miniaudio.
const simulatedBackend = "simulated"

func playCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "play [file]",
		Short: "Play an audio file",
		Long: `Play an audio file (wav, aiff, flac, ogg vorbis, mp3) on the selected
device. Without an argument the "input" configuration key is played.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := a.settings.Input
			if len(args) == 1 {
				path = args[0]
			}
			return a.play(cmd.Context(), cmd.OutOrStdout(), path)
		},
	}

	f := cmd.Flags()
	f.String("backend", "auto", `Audio backend: auto, alsa, pulseaudio, jack, wasapi, coreaudio, ..., or "simulated"`)
	f.StringP("device", "D", "default", `Output device name or id; "null" plays on the simulated device`)
	f.IntP("rate", "r", 44100, "Device sample rate")
	f.Int("channels", 2, "Device channel count")
	f.Int("period-frames", 0, "Device period in frames (0 derives it from the rate)")
	f.Bool("no-mmap", false, "Disable ALSA mmap access")
	f.Bool("realtime", true, "Pace the simulated device in real time")
	f.Int("buffer-periods", 16, "Playback buffer capacity in device periods")
	f.String("overflow-policy", "reject", "Overflow policy: reject, drop-newest, drop-oldest, grow")
	f.Duration("throttle-timeout", 5*time.Second, "Longest a throttled producer waits for the device")
	f.Int("chunk-frames", 1024, "Frames decoded and pushed at a time")
	f.Bool("dump", false, "Write the PCM sent to the device to a file")
	f.String("dump-path", "output.pcm", "PCM dump path")
	f.String("dump-format", "raw", "PCM dump format: raw, wav")
	f.String("metrics-listen", "", "Serve /metrics, /stats and /healthz on this address")

	return cmd
}

func newBackend(s conf.DeviceSettings, log logger.Logger) device.Backend {
	if s.Backend == simulatedBackend || s.Name == "null" {
		return device.NewSimulated(device.SimulatedConfig{Realtime: s.Realtime}, log)
	}
	return device.NewMalgo(device.MalgoConfig{
		Backend: s.Backend,
		Device:  s.Name,
		NoMMap:  s.NoMMap,
	}, log)
}

func (a *app) play(ctx context.Context, out io.Writer, path string) error {
	s := a.settings
	if path == "" {
		return errors.Newf("no input file given").
			Component("cli").
			Category(errors.CategoryValidation).
			Build()
	}

	if s.Telemetry.Enabled {
		rep, err := telemetry.New(telemetry.Config{
			DSN:         s.Telemetry.DSN,
			Environment: s.Telemetry.Environment,
			Release:     "audplay@" + Version,
			SampleRate:  s.Telemetry.SampleRate,
		}, a.log)
		if err != nil {
			a.log.Warn("telemetry disabled", logger.Error(err))
		} else {
			defer rep.Install()()
		}
	}

	cfg, err := player.FromSettings(s)
	if err != nil {
		return errors.New(err).
			Component("cli").
			Category(errors.CategoryConfiguration).
			Build()
	}

	p := player.New(newBackend(s.Device, a.log), nil, cfg, a.log)

	if s.Metrics.Listen != "" {
		stop, err := a.serveStatus(ctx, s.Metrics.Listen, p)
		if err != nil {
			return err
		}
		defer stop()
	}

	sum, err := p.Play(ctx, path)
	if err != nil {
		return err
	}

	printSummary(out, sum)
	return nil
}

// serveStatus starts the status server and returns a function that shuts it
// down and waits for it.
func (a *app) serveStatus(ctx context.Context, addr string, p *player.Player) (func(), error) {
	m, err := metrics.New(p, a.log)
	if err != nil {
		return nil, err
	}

	srvCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	srv := httpserver.New(addr, p, m.Handler(), a.log)
	go func() {
		defer close(done)
		if err := srv.Run(srvCtx); err != nil {
			a.log.Error("status server failed", logger.Error(err))
		}
	}()

	return func() {
		cancel()
		<-done
	}, nil
}

func printSummary(w io.Writer, sum player.Summary) {
	fmt.Fprintf(w, "played %s (%s) on %s in %s\n",
		sum.Path, sum.Codec, sum.Device, sum.Elapsed.Round(time.Millisecond))
	fmt.Fprintf(w, "  bytes played:  %d\n", sum.Buffer.BytesRead)
	fmt.Fprintf(w, "  underruns:     %d\n", sum.Buffer.Underruns)
	fmt.Fprintf(w, "  throttle:      %d waits, %d timeouts\n", sum.Buffer.ThrottleWaits, sum.Buffer.ThrottleTimeouts)
	fmt.Fprintf(w, "  overflows:     %d (%d chunks dropped)\n", sum.Buffer.Overflows, sum.Producer.DroppedChunks)
	fmt.Fprintf(w, "  decode errors: %d\n", sum.Producer.DecodeErrors)
}
