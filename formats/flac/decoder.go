// SPDX-License-Identifier: EPL-2.0

// Package flac decodes FLAC streams through tphakala/flac. Frames arrive as
// interleaved little endian integers of 8, 16, 24 or 32 bits.
package flac

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/tphakala/flac"

	"github.com/ik5/audplay/audio"
	"github.com/ik5/audplay/utils"
)

// Magic matches the stream marker.
var Magic = audio.Prefix(0, "fLaC")

// frameReader is the part of flac.Decoder the source uses.
type frameReader interface {
	Next() ([]byte, error)
}

type source struct {
	dec        frameReader
	sampleRate int
	channels   int
	bitDepth   int
	width      int

	// pending holds decoded bytes not yet returned.
	pending []byte
	eof     bool
}

func newSource(dec frameReader, rate, channels, bitDepth int) *source {
	return &source{
		dec:        dec,
		sampleRate: rate,
		channels:   channels,
		bitDepth:   bitDepth,
		width:      (bitDepth + 7) / 8,
	}
}

func (s *source) SampleRate() int { return s.sampleRate }
func (s *source) Channels() int   { return s.channels }
func (s *source) Close() error    { return nil }
func (s *source) BufSize() int    { return 4096 - 4096%s.channels }

func (s *source) sample(b []byte) float32 {
	var v int
	switch s.width {
	case 1:
		v = int(int8(b[0]))
	case 2:
		v = int(int16(binary.LittleEndian.Uint16(b)))
	case 3:
		v = int(int32(uint32(b[0])|uint32(b[1])<<8|uint32(b[2])<<16) << 8 >> 8)
	default:
		v = int(int32(binary.LittleEndian.Uint32(b)))
	}
	return utils.IntToFloat32(v, s.width*8)
}

func (s *source) ReadSamples(dst []float32) (int, error) {
	want := len(dst) - len(dst)%s.channels
	frameBytes := s.width * s.channels
	n := 0

	for n < want {
		if len(s.pending) < frameBytes {
			if s.eof {
				break
			}
			frame, err := s.dec.Next()
			if err == io.EOF {
				s.eof = true
				continue
			}
			if err != nil {
				return n, fmt.Errorf("%w", err)
			}
			s.pending = frame
			continue
		}

		frames := min((want-n)/s.channels, len(s.pending)/frameBytes)
		for i := range frames * s.channels {
			dst[n+i] = s.sample(s.pending[i*s.width:])
		}
		n += frames * s.channels
		s.pending = s.pending[frames*frameBytes:]
	}

	if s.eof && len(s.pending) < frameBytes {
		return n, io.EOF
	}
	return n, nil
}

type Decoder struct{}

func (Decoder) Decode(r io.Reader) (audio.Source, error) {
	dec, err := flac.NewDecoder(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotFlacFile, err)
	}

	switch dec.BitsPerSample {
	case 8, 16, 24, 32:
	default:
		return nil, fmt.Errorf("%w: %d bits", ErrUnsupportedBitDepth, dec.BitsPerSample)
	}
	if dec.NChannels <= 0 || dec.SampleRate <= 0 {
		return nil, ErrNotFlacFile
	}

	return newSource(dec, dec.SampleRate, dec.NChannels, dec.BitsPerSample), nil
}
