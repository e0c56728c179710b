// SPDX-License-Identifier: EPL-2.0

// Package aiff decodes AIFF integer PCM through go-audio/aiff.
package aiff

import (
	"fmt"
	"io"

	"github.com/go-audio/aiff"

	"github.com/ik5/audplay/audio"
	"github.com/ik5/audplay/formats/internal/intpcm"
)

// Magic matches FORM/AIFF and FORM/AIFC headers.
var Magic = audio.All(audio.Prefix(0, "FORM"), audio.Prefix(8, "AIF"))

type Decoder struct{}

func (Decoder) Decode(r io.Reader) (audio.Source, error) {
	rs, err := intpcm.Seekable(r)
	if err != nil {
		return nil, err
	}

	dec := aiff.NewDecoder(rs)
	if !dec.IsValidFile() {
		return nil, ErrNotAiffFile
	}
	dec.ReadInfo()

	switch dec.BitDepth {
	case 8, 16, 24, 32:
	default:
		return nil, fmt.Errorf("%w: %d bits", ErrUnsupportedBitDepth, dec.BitDepth)
	}

	format := dec.Format()
	if format == nil || format.NumChannels <= 0 || format.SampleRate <= 0 {
		return nil, ErrUnsupportedAiffLayout
	}

	return intpcm.New(dec, format, int(dec.BitDepth), false), nil
}
