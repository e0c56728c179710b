// SPDX-License-Identifier: EPL-2.0

package conf

import (
	"fmt"
	"slices"
	"strings"
)

var (
	validPolicies    = []string{"reject", "drop-newest", "drop-oldest", "grow"}
	validDumpFormats = []string{"raw", "pcm", "wav"}
	validLogLevels   = []string{"trace", "debug", "info", "warn", "error"}
)

// ValidationError collects every problem found in Settings.
type ValidationError struct {
	Errors []string
}

func (ve ValidationError) Error() string {
	return "invalid settings: " + strings.Join(ve.Errors, "; ")
}

// Validate checks ranges and cross-field constraints.
func (s *Settings) Validate() error {
	ve := ValidationError{}
	add := func(format string, args ...any) {
		ve.Errors = append(ve.Errors, fmt.Sprintf(format, args...))
	}

	d := s.Device
	if d.SampleRate < 8000 || d.SampleRate > 384000 {
		add("device.samplerate %d out of range 8000-384000", d.SampleRate)
	}
	if d.Channels < 1 || d.Channels > 8 {
		add("device.channels %d out of range 1-8", d.Channels)
	}
	if d.PeriodFrames < 0 {
		add("device.periodframes %d is negative", d.PeriodFrames)
	}

	b := s.Buffer
	switch {
	case b.LowWaterPeriods < 1:
		add("buffer.lowwaterperiods must be at least 1")
	case b.HighWaterPeriods <= b.LowWaterPeriods:
		add("buffer.highwaterperiods %d must exceed lowwaterperiods %d", b.HighWaterPeriods, b.LowWaterPeriods)
	case b.Periods < b.HighWaterPeriods:
		add("buffer.periods %d below highwaterperiods %d", b.Periods, b.HighWaterPeriods)
	case b.MaxPeriods != 0 && b.MaxPeriods < b.Periods:
		add("buffer.maxperiods %d below periods %d", b.MaxPeriods, b.Periods)
	}
	if b.ThrottleTimeout <= 0 {
		add("buffer.throttletimeout must be positive")
	}
	if !oneOf(b.OverflowPolicy, validPolicies) {
		add("buffer.overflowpolicy %q not one of %v", b.OverflowPolicy, validPolicies)
	}

	p := s.Pipeline
	if p.ChunkFrames < 1 {
		add("pipeline.chunkframes must be positive")
	}
	if p.MaxConsecutiveErrors < 1 {
		add("pipeline.maxconsecutiveerrors must be positive")
	}
	if p.OverflowRetries < 0 {
		add("pipeline.overflowretries is negative")
	}

	if s.Dump.Enabled {
		if s.Dump.Path == "" {
			add("dump.path is required when dump is enabled")
		}
		if !oneOf(s.Dump.Format, validDumpFormats) {
			add("dump.format %q not one of %v", s.Dump.Format, validDumpFormats)
		}
	}

	if !oneOf(s.Log.Level, validLogLevels) {
		add("log.level %q not one of %v", s.Log.Level, validLogLevels)
	}

	if s.Telemetry.Enabled && s.Telemetry.DSN == "" {
		add("telemetry.dsn is required when telemetry is enabled")
	}
	if s.Telemetry.SampleRate < 0 || s.Telemetry.SampleRate > 1 {
		add("telemetry.samplerate %v out of range 0-1", s.Telemetry.SampleRate)
	}

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

func oneOf(v string, allowed []string) bool {
	return slices.Contains(allowed, strings.ToLower(strings.TrimSpace(v)))
}
