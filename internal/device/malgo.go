// SPDX-License-Identifier: EPL-2.0

package device

import (
	"encoding/hex"
	"fmt"
	"runtime"
	"strings"
	"sync"

	"github.com/gen2brain/malgo"

	"github.com/ik5/audplay/internal/errors"
	"github.com/ik5/audplay/internal/logger"
)

// MalgoConfig selects the miniaudio backend and output device.
type MalgoConfig struct {
	// Backend is "auto", "alsa", "pulseaudio", "jack", "wasapi", "dsound",
	// "winmm", "coreaudio", "sndio", "oss" or "null".
	Backend string
	// Device is empty or "default" for the system default, otherwise a decoded
	// device id or a substring of the device name.
	Device string
	// NoMMap disables ALSA mmap access.
	NoMMap bool
}

// Malgo opens playback streams through miniaudio.
type Malgo struct {
	cfg MalgoConfig
	log logger.Logger
}

// NewMalgo returns a Malgo backend. A nil log discards output.
func NewMalgo(cfg MalgoConfig, log logger.Logger) *Malgo {
	if log == nil {
		log = logger.NewDiscard()
	}
	return &Malgo{cfg: cfg, log: log.Module("device")}
}

var backendNames = map[string]malgo.Backend{
	"alsa":       malgo.BackendAlsa,
	"pulseaudio": malgo.BackendPulseaudio,
	"jack":       malgo.BackendJack,
	"wasapi":     malgo.BackendWasapi,
	"dsound":     malgo.BackendDsound,
	"winmm":      malgo.BackendWinmm,
	"coreaudio":  malgo.BackendCoreaudio,
	"sndio":      malgo.BackendSndio,
	"oss":        malgo.BackendOss,
	"null":       malgo.BackendNull,
}

// parseBackends maps a backend name to the list passed to miniaudio.
func parseBackends(name string) ([]malgo.Backend, error) {
	switch name = strings.ToLower(strings.TrimSpace(name)); name {
	case "", "auto":
		switch runtime.GOOS {
		case "linux":
			return []malgo.Backend{malgo.BackendAlsa}, nil
		case "windows":
			return []malgo.Backend{malgo.BackendWasapi}, nil
		case "darwin":
			return []malgo.Backend{malgo.BackendCoreaudio}, nil
		}
		return nil, nil
	}

	b, ok := backendNames[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, name)
	}
	return []malgo.Backend{b}, nil
}

func decodeDeviceID(info malgo.DeviceInfo) string {
	raw, err := hex.DecodeString(info.ID.String())
	if err != nil {
		return info.ID.String()
	}
	return strings.TrimRight(string(raw), "\x00")
}

func matchesDevice(info malgo.DeviceInfo, selector string) bool {
	if selector == "sysdefault" && runtime.GOOS == "windows" {
		return info.IsDefault == 1
	}
	return decodeDeviceID(info) == selector || strings.Contains(info.Name(), selector)
}

func isDefaultSelector(s string) bool {
	return s == "" || s == "default"
}

func fromMalgoFormat(f malgo.FormatType) Encoding {
	if f == malgo.FormatS16 {
		return EncodingS16LE
	}
	return EncodingUnknown
}

func initContext(backend string, log logger.Logger) (*malgo.AllocatedContext, error) {
	backends, err := parseBackends(backend)
	if err != nil {
		return nil, err
	}

	mctx, err := malgo.InitContext(backends, malgo.ContextConfig{}, func(message string) {
		log.Debug("miniaudio", logger.String("message", strings.TrimSpace(message)))
	})
	if err != nil {
		return nil, errors.New(err).
			Component("device").
			Category(errors.CategoryAudioDevice).
			Context("operation", "init_context").
			Context("backend", backend).
			Build()
	}

	return mctx, nil
}

func releaseContext(mctx *malgo.AllocatedContext) {
	_ = mctx.Uninit()
	mctx.Free()
}

// ListPlaybackDevices enumerates the playback devices of backend.
func ListPlaybackDevices(backend string, log logger.Logger) ([]Info, error) {
	if log == nil {
		log = logger.NewDiscard()
	}

	mctx, err := initContext(backend, log)
	if err != nil {
		return nil, err
	}
	defer releaseContext(mctx)

	infos, err := mctx.Devices(malgo.Playback)
	if err != nil {
		return nil, fmt.Errorf("enumerate playback devices: %w", err)
	}

	out := make([]Info, 0, len(infos))
	for i := range infos {
		out = append(out, Info{
			Index:   i,
			Name:    infos[i].Name(),
			ID:      decodeDeviceID(infos[i]),
			Default: infos[i].IsDefault == 1,
		})
	}

	return out, nil
}

// Open initializes the output device. When the device comes up with a
// sample encoding other than S16 it is re-opened once with fallbackConfig
// before failing with ErrIncompatibleFormat.
func (m *Malgo) Open(requested Format, cb Callback) (Stream, error) {
	if err := requested.Validate(); err != nil {
		return nil, err
	}

	mctx, err := initContext(m.cfg.Backend, m.log)
	if err != nil {
		return nil, err
	}

	s := &malgoStream{ctx: mctx, log: m.log}

	cfg := malgo.DefaultDeviceConfig(malgo.Playback)
	cfg.Playback.Format = malgo.FormatS16
	cfg.Playback.Channels = uint32(requested.Channels)
	cfg.SampleRate = uint32(requested.SampleRate)
	cfg.PeriodSizeInFrames = uint32(requested.PeriodFrames)
	if m.cfg.NoMMap {
		cfg.Alsa.NoMMap = 1
	}

	if !isDefaultSelector(m.cfg.Device) {
		infos, err := mctx.Devices(malgo.Playback)
		if err != nil {
			releaseContext(mctx)
			return nil, fmt.Errorf("enumerate playback devices: %w", err)
		}

		found := false
		for i := range infos {
			if matchesDevice(infos[i], m.cfg.Device) {
				cfg.Playback.DeviceID = infos[i].ID.Pointer()
				s.name = infos[i].Name()
				found = true
				break
			}
		}
		if !found {
			releaseContext(mctx)
			return nil, fmt.Errorf("%w: %q", ErrDeviceNotFound, m.cfg.Device)
		}
	}

	callbacks := malgo.DeviceCallbacks{
		Data: func(out, _ []byte, _ uint32) {
			cb(out)
		},
		Stop: func() {
			m.log.Debug("playback device stopped", logger.String("device", s.name))
		},
	}

	var negotiated Format
	for attempt := 1; ; attempt++ {
		dev, err := malgo.InitDevice(mctx.Context, cfg, callbacks)
		if err != nil {
			releaseContext(mctx)
			return nil, errors.New(err).
				Component("device").
				Category(errors.CategoryAudioDevice).
				Priority(errors.PriorityHigh).
				Context("operation", "init_device").
				Context("format", requested.String()).
				Build()
		}

		actual := Format{
			SampleRate:   int(dev.SampleRate()),
			Channels:     int(dev.PlaybackChannels()),
			Encoding:     fromMalgoFormat(dev.PlaybackFormat()),
			PeriodFrames: requested.PeriodFrames,
		}

		negotiated, err = Negotiate(requested, actual)
		if err == nil {
			s.dev = dev
			break
		}

		dev.Uninit()
		if attempt == 2 {
			releaseContext(mctx)
			return nil, errors.New(err).
				Component("device").
				Category(errors.CategoryAudioDevice).
				Priority(errors.PriorityHigh).
				Context("requested", requested.String()).
				Build()
		}

		m.log.Warn("device opened with unexpected sample format, re-opening with default period and no mmap",
			logger.String("actual", actual.Encoding.String()))
		cfg = fallbackConfig(cfg)
	}

	s.format = negotiated
	if negotiated != requested {
		m.log.Info("device negotiated a different format",
			logger.String("requested", requested.String()),
			logger.String("actual", negotiated.String()))
	}

	return s, nil
}

// fallbackConfig relaxes cfg for the second open: the device picks its own
// period and ALSA uses read/write access instead of mmap. The S16 request
// stays.
func fallbackConfig(cfg malgo.DeviceConfig) malgo.DeviceConfig {
	cfg.PeriodSizeInFrames = 0
	cfg.PeriodSizeInMilliseconds = 0
	cfg.Alsa.NoMMap = 1
	return cfg
}

type malgoStream struct {
	ctx    *malgo.AllocatedContext
	dev    *malgo.Device
	format Format
	name   string
	log    logger.Logger

	mu     sync.Mutex
	closed bool
}

func (s *malgoStream) Format() Format { return s.format }

func (s *malgoStream) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStreamClosed
	}
	if err := s.dev.Start(); err != nil {
		return errors.New(err).
			Component("device").
			Category(errors.CategoryAudioDevice).
			Context("operation", "start").
			Build()
	}
	return nil
}

// Stop returns once miniaudio has stopped invoking the data callback.
func (s *malgoStream) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || !s.dev.IsStarted() {
		return nil
	}
	if err := s.dev.Stop(); err != nil {
		return fmt.Errorf("stop playback device: %w", err)
	}
	return nil
}

func (s *malgoStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	s.dev.Uninit()
	releaseContext(s.ctx)
	return nil
}
