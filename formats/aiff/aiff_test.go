// SPDX-License-Identifier: EPL-2.0

package aiff

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/aiff"
	goaudio "github.com/go-audio/audio"
)

func writeAIFF(t *testing.T, rate, depth, channels int, data []int) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.aiff")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	enc := aiff.NewEncoder(f, rate, depth, channels)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{SampleRate: rate, NumChannels: channels},
		Data:           data,
		SourceBitDepth: depth,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatal(err)
	}
	if err := enc.Close(); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDecode_16BitStereo(t *testing.T) {
	t.Parallel()

	f, err := os.Open(writeAIFF(t, 44100, 16, 2, []int{0, 16384, -16384, -32768}))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	src, err := Decoder{}.Decode(f)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if src.SampleRate() != 44100 || src.Channels() != 2 {
		t.Fatalf("format = %d/%d", src.SampleRate(), src.Channels())
	}

	dst := make([]float32, 8)
	n, err := src.ReadSamples(dst)
	if n != 4 || !errors.Is(err, io.EOF) {
		t.Fatalf("ReadSamples() = %d, %v", n, err)
	}
	want := []float32{0, 0.5, -0.5, -1}
	for i := range want {
		if dst[i] != want[i] {
			t.Errorf("sample %d = %v, want %v", i, dst[i], want[i])
		}
	}
}

func TestDecode_NotAiff(t *testing.T) {
	t.Parallel()

	_, err := Decoder{}.Decode(bytes.NewReader([]byte("RIFF\x00\x00\x00\x00WAVEfmt ")))
	if !errors.Is(err, ErrNotAiffFile) {
		t.Errorf("error = %v, want ErrNotAiffFile", err)
	}
}

func TestMagic(t *testing.T) {
	t.Parallel()

	for _, h := range []string{"FORM\x00\x00\x00\x00AIFF", "FORM\x00\x00\x00\x00AIFC"} {
		if !Magic([]byte(h)) {
			t.Errorf("Magic rejected %q", h)
		}
	}
	if Magic([]byte("FORM\x00\x00\x00\x008SVX")) {
		t.Error("Magic accepted 8SVX")
	}
}
