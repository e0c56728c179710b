// SPDX-License-Identifier: EPL-2.0

// Package wav decodes and writes RIFF/WAVE PCM files through go-audio/wav.
//
// Decoding accepts integer PCM at 8, 16, 24 and 32 bits per sample with any
// chunk layout go-audio understands. Writing produces 16-bit PCM from S16LE
// byte chunks, the format the player feeds its device.
package wav

import (
	"fmt"
	"io"

	"github.com/go-audio/wav"

	"github.com/ik5/audplay/audio"
	"github.com/ik5/audplay/formats/internal/intpcm"
)

const formatPCM = 1

// Magic matches a RIFF/WAVE header.
var Magic = audio.All(audio.Prefix(0, "RIFF"), audio.Prefix(8, "WAVE"))

type Decoder struct{}

func (Decoder) Decode(r io.Reader) (audio.Source, error) {
	rs, err := intpcm.Seekable(r)
	if err != nil {
		return nil, err
	}

	dec := wav.NewDecoder(rs)
	dec.ReadInfo()
	if err := dec.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotWavFile, err)
	}
	if !dec.IsValidFile() {
		return nil, ErrNotWavFile
	}

	if dec.WavAudioFormat != formatPCM {
		return nil, fmt.Errorf("%w: format tag %d", ErrUnsupportedEncoding, dec.WavAudioFormat)
	}

	switch dec.BitDepth {
	case 8, 16, 24, 32:
	default:
		return nil, fmt.Errorf("%w: %d bits", ErrUnsupportedBitDepth, dec.BitDepth)
	}

	format := dec.Format()
	if format == nil || format.NumChannels <= 0 || format.SampleRate <= 0 {
		return nil, ErrUnsupportedWavLayout
	}

	return intpcm.New(dec, format, int(dec.BitDepth), true), nil
}
