// SPDX-License-Identifier: EPL-2.0

package audio_test

import (
	"errors"
	"fmt"
	"io"

	"github.com/ik5/audplay/audio"
	"github.com/ik5/audplay/internal/audiotest"
)

func ExampleRegistry_Detect() {
	r := audio.NewRegistry()
	r.Register("wav", nil, audio.All(audio.Prefix(0, "RIFF"), audio.Prefix(8, "WAVE")), "wav")
	r.Register("vorbis", nil, audio.Prefix(0, "OggS"), "ogg")

	byExt, _ := r.Detect("song.ogg", nil)
	byMagic, _ := r.Detect("download", []byte("RIFF\x24\x00\x00\x00WAVE"))
	_, err := r.Detect("notes.txt", []byte("hello"))

	fmt.Println(byExt, byMagic, errors.Is(err, audio.ErrUnknownFormat))
	// Output: vorbis wav true
}

func ExamplePCM16Reader() {
	// 22.05 kHz mono to 44.1 kHz stereo S16LE.
	src := audiotest.NewConstantSource(22050, 1, 22050, 0.5)
	chain := audio.NewChannelMapper(audio.NewResampler(src, 44100), 2)
	pcm := audio.NewPCM16Reader(chain)

	chunk := make([]byte, 4096)
	total := 0
	for {
		n, err := pcm.ReadChunk(chunk)
		total += n
		if errors.Is(err, io.EOF) {
			break
		}
	}

	fmt.Println(total / pcm.FrameBytes())
	// Output: 44100
}
