// SPDX-License-Identifier: EPL-2.0

package player

import (
	"bytes"
	"context"
	"encoding/binary"
	stderrors "errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/ik5/audplay/audio"
	"github.com/ik5/audplay/formats/wav"
	"github.com/ik5/audplay/internal/conf"
	"github.com/ik5/audplay/internal/coordinator"
	"github.com/ik5/audplay/internal/device"
	"github.com/ik5/audplay/internal/dump"
	"github.com/ik5/audplay/internal/errors"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// rampPCM returns n S16LE samples 1, 2, 3, ... none of which is zero.
func rampPCM(n int) []byte {
	out := make([]byte, 2*n)
	for i := range n {
		binary.LittleEndian.PutUint16(out[2*i:], uint16(int16(i%32767+1)))
	}
	return out
}

func writeWAV(t *testing.T, rate, channels int, pcm []byte) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "input.wav")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	w := wav.NewWriter(f, rate, channels)
	_, err = w.Write(pcm)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return path
}

// lockedBuffer is a sink shared with the device goroutine.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return bytes.Clone(b.buf.Bytes())
}

// nonZeroSamples drops zero samples, which only silence can produce here.
func nonZeroSamples(pcm []byte) []byte {
	out := make([]byte, 0, len(pcm))
	for i := 0; i+2 <= len(pcm); i += 2 {
		if pcm[i] != 0 || pcm[i+1] != 0 {
			out = append(out, pcm[i], pcm[i+1])
		}
	}
	return out
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Format = device.Format{SampleRate: 8000, Channels: 1, Encoding: device.EncodingS16LE, PeriodFrames: 64}
	cfg.Buffer.ThrottleTimeout = time.Second
	cfg.Pipeline.ChunkFrames = 50
	return cfg
}

func TestPlay_DeliversDecodedAudioInOrder(t *testing.T) {
	t.Parallel()

	pcm := rampPCM(4000)
	path := writeWAV(t, 8000, 1, pcm)

	sink := &lockedBuffer{}
	backend := device.NewSimulated(device.SimulatedConfig{Interval: 100 * time.Microsecond, Sink: sink}, nil)

	cfg := testConfig()
	cfg.Dump = DumpConfig{Enabled: true, Path: filepath.Join(t.TempDir(), "out.pcm"), Kind: dump.KindRaw}

	p := New(backend, nil, cfg, nil)
	sum, err := p.Play(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, "wav", sum.Codec)
	assert.NotEmpty(t, sum.Session)
	assert.Equal(t, cfg.Format, sum.Device)
	assert.EqualValues(t, len(pcm), sum.Buffer.BytesWritten)
	assert.EqualValues(t, len(pcm), sum.Buffer.BytesRead)
	assert.EqualValues(t, len(pcm), sum.Producer.Bytes)
	assert.True(t, sum.Buffer.EndOfStream)
	assert.True(t, sum.Buffer.Closed)

	played := sink.Bytes()
	assert.Equal(t, pcm, nonZeroSamples(played), "decoded samples in order")
	assert.Equal(t, pcm[:128], played[:128], "device starts on real audio after priming")
	assert.Zero(t, len(played)%cfg.Format.PeriodBytes())

	dumped, err := os.ReadFile(cfg.Dump.Path)
	require.NoError(t, err)
	assert.Equal(t, pcm, dumped)

	assert.Empty(t, p.Session(), "session ends with playback")
	assert.EqualValues(t, len(pcm), p.BufferStats().BytesRead, "last stats stay readable")
	assert.EqualValues(t, len(pcm), p.ProducerStats().Bytes)
}

func TestPlay_ConvertsToDeviceFormat(t *testing.T) {
	t.Parallel()

	// 16 kHz mono into an 8 kHz stereo device.
	samples := 16000
	pcm := make([]byte, 2*samples)
	for i := range samples {
		binary.LittleEndian.PutUint16(pcm[2*i:], uint16(int16(8192)))
	}
	path := writeWAV(t, 16000, 1, pcm)

	sink := &lockedBuffer{}
	backend := device.NewSimulated(device.SimulatedConfig{Sink: sink}, nil)

	cfg := testConfig()
	cfg.Format.Channels = 2

	sum, err := New(backend, nil, cfg, nil).Play(context.Background(), path)
	require.NoError(t, err)

	frames := int(sum.Buffer.BytesWritten) / 4
	assert.InDelta(t, 8000, frames, 200)

	for i, b := 0, sink.Bytes(); i+4 <= len(b) && i < 4*frames; i += 4 {
		l := int16(binary.LittleEndian.Uint16(b[i:]))
		r := int16(binary.LittleEndian.Uint16(b[i+2:]))
		require.Equal(t, l, r, "frame %d", i/4)
	}
}

func TestPlay_CancelTearsDown(t *testing.T) {
	t.Parallel()

	// Ten seconds of audio on a real-time clock.
	path := writeWAV(t, 8000, 1, rampPCM(80000))
	backend := device.NewSimulated(device.SimulatedConfig{Realtime: true}, nil)

	p := New(backend, nil, testConfig(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := p.Play(ctx, path)
		done <- err
	}()

	require.Eventually(t, func() bool { return p.Session() != "" }, time.Second, time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Play did not return after cancel")
	}
	assert.True(t, p.BufferStats().Closed)
}

func TestPlay_InputErrors(t *testing.T) {
	t.Parallel()

	p := New(device.NewSimulated(device.SimulatedConfig{}, nil), nil, testConfig(), nil)

	_, err := p.Play(context.Background(), filepath.Join(t.TempDir(), "missing.wav"))
	require.ErrorIs(t, err, os.ErrNotExist)
	assert.True(t, errors.IsCategory(err, errors.CategoryFileIO))

	junk := filepath.Join(t.TempDir(), "junk")
	require.NoError(t, os.WriteFile(junk, []byte("plain text, no audio"), 0o600))
	_, err = p.Play(context.Background(), junk)
	require.ErrorIs(t, err, audio.ErrUnknownFormat)
	assert.True(t, errors.IsCategory(err, errors.CategoryFileParsing))
}

type failingBackend struct{ err error }

func (f failingBackend) Open(device.Format, device.Callback) (device.Stream, error) {
	return nil, f.err
}

func TestPlay_DeviceOpenError(t *testing.T) {
	t.Parallel()

	path := writeWAV(t, 8000, 1, rampPCM(100))
	p := New(failingBackend{err: device.ErrIncompatibleFormat}, nil, testConfig(), nil)

	_, err := p.Play(context.Background(), path)
	require.ErrorIs(t, err, device.ErrIncompatibleFormat)
	assert.True(t, errors.IsCategory(err, errors.CategoryAudioDevice))
}

func TestPlay_DecodeFailureAborts(t *testing.T) {
	t.Parallel()

	path := writeWAV(t, 8000, 1, rampPCM(100))

	reg := audio.NewRegistry()
	reg.Register("broken", brokenDecoder{}, nil, "wav")

	p := New(device.NewSimulated(device.SimulatedConfig{}, nil), reg, testConfig(), nil)
	_, err := p.Play(context.Background(), path)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryAudioSource))
}

type brokenDecoder struct{}

func (brokenDecoder) Decode(io.Reader) (audio.Source, error) {
	return &brokenSource{}, nil
}

type brokenSource struct{}

func (*brokenSource) SampleRate() int { return 8000 }
func (*brokenSource) Channels() int   { return 1 }
func (*brokenSource) BufSize() int    { return 64 }
func (*brokenSource) Close() error    { return nil }

func (*brokenSource) ReadSamples([]float32) (int, error) {
	return 0, stderrors.New("corrupt frame")
}

func TestFromSettings(t *testing.T) {
	t.Parallel()

	s := &conf.Settings{
		Device: conf.DeviceSettings{SampleRate: 44100, Channels: 2},
		Buffer: conf.BufferSettings{
			Periods:          16,
			HighWaterPeriods: 8,
			LowWaterPeriods:  4,
			MaxPeriods:       64,
			ThrottleTimeout:  5 * time.Second,
			OverflowPolicy:   "drop-oldest",
		},
		Pipeline: conf.PipelineSettings{ChunkFrames: 512, MaxConsecutiveErrors: 3, OverflowRetries: 2},
		Dump:     conf.DumpSettings{Enabled: true, Path: "output.pcm", Format: "wav"},
		Log:      conf.LogSettings{Level: "info"},
	}

	cfg, err := FromSettings(s)
	require.NoError(t, err)
	assert.Equal(t, 2048, cfg.Format.PeriodFrames)
	assert.Equal(t, coordinator.PolicyDropOldest, cfg.Buffer.OverflowPolicy)
	assert.Equal(t, dump.KindWAV, cfg.Dump.Kind)
	assert.Equal(t, 512, cfg.Pipeline.ChunkFrames)

	cc := cfg.Buffer.Coordinator(cfg.Format.PeriodBytes())
	require.NoError(t, cc.Validate())
	assert.Equal(t, 16*8192, cc.Capacity)
	assert.Equal(t, 8*8192, cc.HighWater)
	assert.Equal(t, 4*8192, cc.LowWater)
	assert.Equal(t, 64*8192, cc.MaxCapacity)

	s.Buffer.OverflowPolicy = "Drop-Oldest"
	require.NoError(t, s.Validate())
	cfg, err = FromSettings(s)
	require.NoError(t, err, "a policy accepted by validation must parse")
	assert.Equal(t, coordinator.PolicyDropOldest, cfg.Buffer.OverflowPolicy)

	s.Buffer.OverflowPolicy = "explode"
	_, err = FromSettings(s)
	require.Error(t, err)
}
