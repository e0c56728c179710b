// SPDX-License-Identifier: EPL-2.0

package device

import (
	"fmt"
	"math/bits"
	"time"
)

// Encoding is the sample encoding of a device stream.
type Encoding uint8

const (
	EncodingUnknown Encoding = iota
	// EncodingS16LE is signed 16-bit little endian, interleaved.
	EncodingS16LE
)

// BytesPerSample returns the size of one sample, or 0 when unknown.
func (e Encoding) BytesPerSample() int {
	if e == EncodingS16LE {
		return 2
	}
	return 0
}

func (e Encoding) String() string {
	if e == EncodingS16LE {
		return "s16le"
	}
	return "unknown"
}

const (
	DefaultSampleRate = 44100
	DefaultChannels   = 2

	minPeriodFrames = 512
)

// DefaultPeriodFrames returns the callback size used for rate: the larger of
// 512 and the power of two just above rate/30, giving roughly 30 callbacks per
// second. 44100 Hz yields 2048 frames.
func DefaultPeriodFrames(rate int) int {
	if rate < 30 {
		return minPeriodFrames
	}
	log2 := bits.Len(uint(rate/30)) - 1
	return max(minPeriodFrames, 2<<log2)
}

// Format describes a playback stream.
type Format struct {
	SampleRate   int
	Channels     int
	Encoding     Encoding
	PeriodFrames int
}

// DefaultFormat is 44.1 kHz stereo S16LE with the default period.
func DefaultFormat() Format {
	return Format{
		SampleRate:   DefaultSampleRate,
		Channels:     DefaultChannels,
		Encoding:     EncodingS16LE,
		PeriodFrames: DefaultPeriodFrames(DefaultSampleRate),
	}
}

// BytesPerFrame returns the size of one interleaved frame.
func (f Format) BytesPerFrame() int { return f.Channels * f.Encoding.BytesPerSample() }

// PeriodBytes returns the size of one device callback buffer.
func (f Format) PeriodBytes() int { return f.PeriodFrames * f.BytesPerFrame() }

// PeriodDuration returns the playback time of one period.
func (f Format) PeriodDuration() time.Duration {
	if f.SampleRate <= 0 {
		return 0
	}
	return time.Duration(f.PeriodFrames) * time.Second / time.Duration(f.SampleRate)
}

// Validate rejects formats no backend can open.
func (f Format) Validate() error {
	switch {
	case f.SampleRate <= 0:
		return fmt.Errorf("%w: sample rate %d", ErrInvalidFormat, f.SampleRate)
	case f.Channels <= 0:
		return fmt.Errorf("%w: channels %d", ErrInvalidFormat, f.Channels)
	case f.Encoding != EncodingS16LE:
		return fmt.Errorf("%w: encoding %s", ErrInvalidFormat, f.Encoding)
	case f.PeriodFrames <= 0:
		return fmt.Errorf("%w: period %d frames", ErrInvalidFormat, f.PeriodFrames)
	}
	return nil
}

func (f Format) String() string {
	return fmt.Sprintf("%d Hz, %d ch, %s, %d frames/period", f.SampleRate, f.Channels, f.Encoding, f.PeriodFrames)
}

// Negotiate checks the format a device actually opened with against the
// requested one. Rate, channel and period differences are accepted and the
// actual format is returned; an encoding mismatch is ErrIncompatibleFormat.
func Negotiate(requested, actual Format) (Format, error) {
	if actual.Encoding != requested.Encoding {
		return Format{}, fmt.Errorf("%w: requested %s, device opened %s",
			ErrIncompatibleFormat, requested.Encoding, actual.Encoding)
	}
	if actual.SampleRate <= 0 || actual.Channels <= 0 {
		return Format{}, fmt.Errorf("%w: device reported %s", ErrIncompatibleFormat, actual)
	}
	if actual.PeriodFrames <= 0 {
		actual.PeriodFrames = requested.PeriodFrames
	}
	return actual, nil
}
