// SPDX-License-Identifier: EPL-2.0

// Package intpcm adapts go-audio integer PCM decoders to audio.Source.
package intpcm

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	goaudio "github.com/go-audio/audio"

	"github.com/ik5/audplay/utils"
)

// PCMReader is implemented by the go-audio wav and aiff decoders.
type PCMReader interface {
	PCMBuffer(buf *goaudio.IntBuffer) (int, error)
}

// Source reads interleaved integer samples and normalizes them to float32.
type Source struct {
	dec        PCMReader
	sampleRate int
	channels   int
	bitDepth   int
	// unsigned8 shifts 8-bit samples stored as 0..255.
	unsigned8 bool

	buf *goaudio.IntBuffer
	eof bool
}

// New returns a Source for dec. format supplies the rate and channel count.
func New(dec PCMReader, format *goaudio.Format, bitDepth int, unsigned8 bool) *Source {
	return &Source{
		dec:        dec,
		sampleRate: format.SampleRate,
		channels:   format.NumChannels,
		bitDepth:   bitDepth,
		unsigned8:  unsigned8,
		buf: &goaudio.IntBuffer{
			Data:           make([]int, 4096),
			Format:         format,
			SourceBitDepth: bitDepth,
		},
	}
}

func (s *Source) SampleRate() int { return s.sampleRate }
func (s *Source) Channels() int   { return s.channels }
func (s *Source) BitDepth() int   { return s.bitDepth }
func (s *Source) Close() error    { return nil }
func (s *Source) BufSize() int    { return cap(s.buf.Data) }

// ReadSamples returns whole frames. A short read from the decoder marks the
// end of the PCM data.
func (s *Source) ReadSamples(dst []float32) (int, error) {
	if s.eof {
		return 0, io.EOF
	}

	want := len(dst) - len(dst)%s.channels
	if want == 0 {
		return 0, nil
	}

	if cap(s.buf.Data) < want {
		s.buf.Data = make([]int, want)
	}
	s.buf.Data = s.buf.Data[:want]

	n, err := s.dec.PCMBuffer(s.buf)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		if n == 0 {
			return 0, fmt.Errorf("%w", err)
		}
		err = nil
	}

	for i, v := range s.buf.Data[:n] {
		if s.unsigned8 && s.bitDepth == 8 {
			v -= 128
		}
		dst[i] = utils.IntToFloat32(v, s.bitDepth)
	}

	if n < want || err != nil {
		s.eof = true
		return n, io.EOF
	}

	return n, nil
}

// Seekable returns r as an io.ReadSeeker, buffering it in memory when it
// cannot seek. go-audio decoders need to seek between chunks.
func Seekable(r io.Reader) (io.ReadSeeker, error) {
	if rs, ok := r.(io.ReadSeeker); ok {
		return rs, nil
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("buffer input: %w", err)
	}
	return bytes.NewReader(data), nil
}
