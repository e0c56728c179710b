// SPDX-License-Identifier: EPL-2.0

// Package audiotest provides synthetic sources for tests. Its types satisfy
// audio.Source without importing it.
package audiotest

import (
	"io"
	"math"
	"sync/atomic"
)

// Waveform returns the sample for a frame index and channel.
type Waveform func(frame, channel int) float32

// MockSource generates a fixed number of frames from a waveform.
type MockSource struct {
	sampleRate  int
	channels    int
	totalFrames int
	generated   int
	waveform    Waveform
	bufSize     int
	closed      atomic.Bool
}

// NewMockSource creates a source of totalFrames frames.
func NewMockSource(sampleRate, channels, totalFrames int, waveform Waveform) *MockSource {
	return &MockSource{
		sampleRate:  sampleRate,
		channels:    channels,
		totalFrames: totalFrames,
		waveform:    waveform,
		bufSize:     4096,
	}
}

func NewSilentSource(sampleRate, channels, totalFrames int) *MockSource {
	return NewConstantSource(sampleRate, channels, totalFrames, 0)
}

func NewSineSource(sampleRate, channels, totalFrames int, frequency float64) *MockSource {
	return NewMockSource(sampleRate, channels, totalFrames, func(frame, _ int) float32 {
		t := float64(frame) / float64(sampleRate)
		return float32(math.Sin(2 * math.Pi * frequency * t))
	})
}

func NewConstantSource(sampleRate, channels, totalFrames int, value float32) *MockSource {
	return NewMockSource(sampleRate, channels, totalFrames, func(int, int) float32 {
		return value
	})
}

// NewRampSource produces the int16 values 0, 1, 2, ... (wrapping) scaled to
// float32, one step per sample, so that encoded output is predictable.
func NewRampSource(sampleRate, channels, totalFrames int) *MockSource {
	return NewMockSource(sampleRate, channels, totalFrames, func(frame, ch int) float32 {
		return float32(int16((frame*channels+ch)%32768)) / 32768
	})
}

// WithBufSize overrides the preferred read size.
func (m *MockSource) WithBufSize(n int) *MockSource {
	m.bufSize = n
	return m
}

func (m *MockSource) SampleRate() int { return m.sampleRate }
func (m *MockSource) Channels() int   { return m.channels }
func (m *MockSource) BufSize() int    { return m.bufSize }

func (m *MockSource) Close() error {
	m.closed.Store(true)
	return nil
}

// Closed reports whether Close was called.
func (m *MockSource) Closed() bool { return m.closed.Load() }

// Reset rewinds the source.
func (m *MockSource) Reset() {
	m.generated = 0
}

// ReadSamples writes whole frames only and returns io.EOF with the last ones.
func (m *MockSource) ReadSamples(dst []float32) (int, error) {
	if m.generated >= m.totalFrames {
		return 0, io.EOF
	}

	frames := min(len(dst)/m.channels, m.totalFrames-m.generated)
	for f := range frames {
		for ch := range m.channels {
			dst[f*m.channels+ch] = m.waveform(m.generated+f, ch)
		}
	}
	m.generated += frames

	n := frames * m.channels
	if m.generated >= m.totalFrames {
		return n, io.EOF
	}
	return n, nil
}

// Reader is the subset of audio.Source that FailingSource wraps.
type Reader interface {
	SampleRate() int
	Channels() int
	ReadSamples(dst []float32) (int, error)
	BufSize() int
	Close() error
}

// FailingSource returns Err instead of reading on the calls listed in
// FailOn (1-based). Calls beyond the wrapped source's end keep returning
// io.EOF.
type FailingSource struct {
	Reader
	Err    error
	FailOn map[int]bool
	// FailAfter, when positive, fails every call after that many reads.
	FailAfter int

	calls int
}

func (f *FailingSource) ReadSamples(dst []float32) (int, error) {
	f.calls++
	if f.FailOn[f.calls] || (f.FailAfter > 0 && f.calls > f.FailAfter) {
		return 0, f.Err
	}
	return f.Reader.ReadSamples(dst)
}

// Calls returns the number of ReadSamples calls.
func (f *FailingSource) Calls() int { return f.calls }
