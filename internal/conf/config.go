// SPDX-License-Identifier: EPL-2.0

// Package conf loads player settings from defaults, an optional YAML file,
// AUDPLAY_* environment variables and command line flags, in increasing
// order of precedence.
package conf

import (
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/ik5/audplay/internal/errors"
)

const (
	// EnvPrefix prefixes environment overrides: AUDPLAY_DEVICE_BACKEND sets
	// device.backend.
	EnvPrefix = "AUDPLAY"

	configName = "audplay"
)

// Settings is the complete player configuration.
type Settings struct {
	Input     string            `mapstructure:"input" yaml:"input"`
	Device    DeviceSettings    `mapstructure:"device" yaml:"device"`
	Buffer    BufferSettings    `mapstructure:"buffer" yaml:"buffer"`
	Pipeline  PipelineSettings  `mapstructure:"pipeline" yaml:"pipeline"`
	Dump      DumpSettings      `mapstructure:"dump" yaml:"dump"`
	Log       LogSettings       `mapstructure:"log" yaml:"log"`
	Metrics   MetricsSettings   `mapstructure:"metrics" yaml:"metrics"`
	Telemetry TelemetrySettings `mapstructure:"telemetry" yaml:"telemetry"`
}

// DeviceSettings selects and shapes the playback device.
type DeviceSettings struct {
	// Backend is a miniaudio backend name, "auto", or "simulated" for a
	// clock-driven device without hardware.
	Backend string `mapstructure:"backend" yaml:"backend"`
	// Name selects the output device by id or name substring.
	Name         string `mapstructure:"name" yaml:"name"`
	SampleRate   int    `mapstructure:"samplerate" yaml:"samplerate"`
	Channels     int    `mapstructure:"channels" yaml:"channels"`
	PeriodFrames int    `mapstructure:"periodframes" yaml:"periodframes"` // 0 derives it from the rate
	NoMMap       bool   `mapstructure:"nommap" yaml:"nommap"`
	// Realtime paces the simulated device like real hardware.
	Realtime bool `mapstructure:"realtime" yaml:"realtime"`
}

// BufferSettings sizes the playback buffer in device periods.
type BufferSettings struct {
	Periods          int           `mapstructure:"periods" yaml:"periods"`
	HighWaterPeriods int           `mapstructure:"highwaterperiods" yaml:"highwaterperiods"`
	LowWaterPeriods  int           `mapstructure:"lowwaterperiods" yaml:"lowwaterperiods"`
	MaxPeriods       int           `mapstructure:"maxperiods" yaml:"maxperiods"`
	ThrottleTimeout  time.Duration `mapstructure:"throttletimeout" yaml:"throttletimeout"`
	OverflowPolicy   string        `mapstructure:"overflowpolicy" yaml:"overflowpolicy"`
}

type PipelineSettings struct {
	ChunkFrames          int `mapstructure:"chunkframes" yaml:"chunkframes"`
	MaxConsecutiveErrors int `mapstructure:"maxconsecutiveerrors" yaml:"maxconsecutiveerrors"`
	OverflowRetries      int `mapstructure:"overflowretries" yaml:"overflowretries"`
}

// DumpSettings controls the side copy of the pushed PCM.
type DumpSettings struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Path    string `mapstructure:"path" yaml:"path"`
	Format  string `mapstructure:"format" yaml:"format"` // raw or wav
}

type LogSettings struct {
	Level string `mapstructure:"level" yaml:"level"`
	JSON  bool   `mapstructure:"json" yaml:"json"`
}

// MetricsSettings enables the status HTTP server when Listen is set.
type MetricsSettings struct {
	Listen string `mapstructure:"listen" yaml:"listen"`
}

type TelemetrySettings struct {
	Enabled     bool    `mapstructure:"enabled" yaml:"enabled"`
	DSN         string  `mapstructure:"dsn" yaml:"dsn"`
	Environment string  `mapstructure:"environment" yaml:"environment"`
	SampleRate  float64 `mapstructure:"samplerate" yaml:"samplerate"`
}

// New returns a viper instance with defaults, environment binding and the
// config search path set up. configFile, when not empty, replaces the
// search.
func New(configFile string) *viper.Viper {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		return v
	}

	v.SetConfigName(configName)
	v.SetConfigType("yaml")
	for _, path := range DefaultConfigPaths() {
		v.AddConfigPath(path)
	}
	return v
}

// DefaultConfigPaths lists the directories searched for audplay.yaml.
func DefaultConfigPaths() []string {
	paths := []string{"."}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", configName))
	}
	return append(paths, filepath.Join("/etc", configName))
}

// Load reads the config file, if any, and returns validated settings. A
// missing file in the search path is not an error; a missing explicit file
// is.
func Load(v *viper.Viper) (*Settings, error) {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !stderrors.As(err, &notFound) {
			return nil, errors.New(err).
				Component("conf").
				Category(errors.CategoryConfiguration).
				Context("file", v.ConfigFileUsed()).
				Build()
		}
	}

	settings := &Settings{}
	if err := v.Unmarshal(settings); err != nil {
		return nil, errors.New(fmt.Errorf("unmarshal config: %w", err)).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Build()
	}

	if err := settings.Validate(); err != nil {
		return nil, errors.New(err).
			Component("conf").
			Category(errors.CategoryValidation).
			Build()
	}

	return settings, nil
}
