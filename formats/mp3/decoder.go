// SPDX-License-Identifier: EPL-2.0

// Package mp3 decodes MPEG-1/2 Layer III through hajimehoshi/go-mp3, which
// always yields 16-bit stereo.
package mp3

import (
	"fmt"
	"io"

	gomp3 "github.com/hajimehoshi/go-mp3"

	"github.com/ik5/audplay/audio"
	"github.com/ik5/audplay/utils"
)

const channels = 2

// Magic matches an ID3v2 tag or an MPEG audio frame sync.
func Magic(h []byte) bool {
	if len(h) >= 3 && string(h[:3]) == "ID3" {
		return true
	}
	// 11 set sync bits, a layer other than reserved, and a valid bitrate.
	return len(h) >= 3 && h[0] == 0xFF && h[1]&0xE0 == 0xE0 && h[1]&0x06 != 0 && h[2]&0xF0 != 0xF0
}

// mp3Reader is the part of gomp3.Decoder the source uses.
type mp3Reader interface {
	Read([]byte) (int, error)
	SampleRate() int
}

type source struct {
	dec        mp3Reader
	sampleRate int
	buf        []byte
	// carry holds the bytes of an incomplete sample at buf[:carry].
	carry int
}

func (s *source) SampleRate() int { return s.sampleRate }
func (s *source) Channels() int   { return channels }
func (s *source) Close() error    { return nil }
func (s *source) BufSize() int    { return cap(s.buf) / 2 }

func (s *source) ReadSamples(dst []float32) (int, error) {
	want := len(dst) - len(dst)%channels
	if want == 0 {
		return 0, nil
	}

	need := want * 2
	if cap(s.buf) < need {
		grown := make([]byte, need)
		copy(grown, s.buf[:s.carry])
		s.buf = grown
	}
	buf := s.buf[:need]

	n, err := s.dec.Read(buf[s.carry:])
	total := s.carry + n
	whole := total - total%(2*channels)

	samples := utils.DecodeS16LE(dst, buf[:whole])
	s.carry = copy(buf, buf[whole:total])

	if err != nil && err != io.EOF {
		return samples, fmt.Errorf("%w", err)
	}
	return samples, err
}

type Decoder struct{}

func (Decoder) Decode(r io.Reader) (audio.Source, error) {
	dec, err := gomp3.NewDecoder(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotMP3File, err)
	}

	return &source{
		dec:        dec,
		sampleRate: dec.SampleRate(),
		buf:        make([]byte, 8192),
	}, nil
}
