// SPDX-License-Identifier: EPL-2.0

package player

import (
	"time"

	"github.com/ik5/audplay/internal/conf"
	"github.com/ik5/audplay/internal/coordinator"
	"github.com/ik5/audplay/internal/device"
	"github.com/ik5/audplay/internal/dump"
	"github.com/ik5/audplay/internal/pipeline"
)

// BufferConfig sizes the coordinator in device periods so it follows the
// negotiated format.
type BufferConfig struct {
	Periods          int
	HighWaterPeriods int
	LowWaterPeriods  int
	// MaxPeriods caps the grow policy; zero uses the coordinator default.
	MaxPeriods      int
	ThrottleTimeout time.Duration
	OverflowPolicy  coordinator.OverflowPolicy
}

// Coordinator returns the coordinator config for a device period.
func (b BufferConfig) Coordinator(periodBytes int) coordinator.Config {
	return coordinator.Config{
		Capacity:        b.Periods * periodBytes,
		FrameSize:       periodBytes,
		HighWater:       b.HighWaterPeriods * periodBytes,
		LowWater:        b.LowWaterPeriods * periodBytes,
		MaxCapacity:     b.MaxPeriods * periodBytes,
		ThrottleTimeout: b.ThrottleTimeout,
		OverflowPolicy:  b.OverflowPolicy,
	}
}

type DumpConfig struct {
	Enabled bool
	Path    string
	Kind    dump.Kind
}

// Config is everything Play needs besides the device backend.
type Config struct {
	Format   device.Format
	Buffer   BufferConfig
	Pipeline pipeline.Config
	Dump     DumpConfig
}

// DefaultConfig mirrors the conf defaults.
func DefaultConfig() Config {
	return Config{
		Format: device.DefaultFormat(),
		Buffer: BufferConfig{
			Periods:          coordinator.DefaultCapacityFrames,
			HighWaterPeriods: coordinator.DefaultHighWaterFrames,
			LowWaterPeriods:  coordinator.DefaultLowWaterFrames,
			ThrottleTimeout:  coordinator.DefaultThrottleTimeout,
			OverflowPolicy:   coordinator.PolicyReject,
		},
		Pipeline: pipeline.Config{OverflowRetries: pipeline.DefaultOverflowRetries},
	}
}

// FromSettings converts loaded settings.
func FromSettings(s *conf.Settings) (Config, error) {
	policy, err := coordinator.ParsePolicy(s.Buffer.OverflowPolicy)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		Format: device.Format{
			SampleRate:   s.Device.SampleRate,
			Channels:     s.Device.Channels,
			Encoding:     device.EncodingS16LE,
			PeriodFrames: s.Device.PeriodFrames,
		},
		Buffer: BufferConfig{
			Periods:          s.Buffer.Periods,
			HighWaterPeriods: s.Buffer.HighWaterPeriods,
			LowWaterPeriods:  s.Buffer.LowWaterPeriods,
			MaxPeriods:       s.Buffer.MaxPeriods,
			ThrottleTimeout:  s.Buffer.ThrottleTimeout,
			OverflowPolicy:   policy,
		},
		Pipeline: pipeline.Config{
			ChunkFrames:          s.Pipeline.ChunkFrames,
			MaxConsecutiveErrors: s.Pipeline.MaxConsecutiveErrors,
			OverflowRetries:      s.Pipeline.OverflowRetries,
		},
	}
	if cfg.Format.PeriodFrames == 0 {
		cfg.Format.PeriodFrames = device.DefaultPeriodFrames(cfg.Format.SampleRate)
	}

	if s.Dump.Enabled {
		kind, err := dump.ParseKind(s.Dump.Format)
		if err != nil {
			return Config{}, err
		}
		cfg.Dump = DumpConfig{Enabled: true, Path: s.Dump.Path, Kind: kind}
	}

	return cfg, nil
}
