// SPDX-License-Identifier: EPL-2.0

package intpcm

import (
	"errors"
	"io"
	"strings"
	"testing"

	goaudio "github.com/go-audio/audio"
)

type fakePCM struct {
	data []int
	pos  int
	err  error
}

func (f *fakePCM) PCMBuffer(buf *goaudio.IntBuffer) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	n := copy(buf.Data, f.data[f.pos:])
	f.pos += n
	return n, nil
}

func TestSource_ReadSamples(t *testing.T) {
	t.Parallel()

	dec := &fakePCM{data: []int{0, 16384, -16384, -32768, 100, 200}}
	s := New(dec, &goaudio.Format{SampleRate: 8000, NumChannels: 2}, 16, false)

	if s.SampleRate() != 8000 || s.Channels() != 2 || s.BitDepth() != 16 {
		t.Fatalf("metadata = %d/%d/%d", s.SampleRate(), s.Channels(), s.BitDepth())
	}

	dst := make([]float32, 5) // rounds down to two frames
	n, err := s.ReadSamples(dst)
	if err != nil || n != 4 {
		t.Fatalf("first read = %d, %v", n, err)
	}
	want := []float32{0, 0.5, -0.5, -1}
	for i := range want {
		if dst[i] != want[i] {
			t.Errorf("sample %d = %v, want %v", i, dst[i], want[i])
		}
	}

	n, err = s.ReadSamples(dst)
	if n != 2 || !errors.Is(err, io.EOF) {
		t.Fatalf("short read = %d, %v; want 2, EOF", n, err)
	}

	if n, err := s.ReadSamples(dst); n != 0 || !errors.Is(err, io.EOF) {
		t.Fatalf("read after EOF = %d, %v", n, err)
	}
}

func TestSource_Unsigned8(t *testing.T) {
	t.Parallel()

	s := New(&fakePCM{data: []int{128, 0, 192}}, &goaudio.Format{SampleRate: 8000, NumChannels: 1}, 8, true)
	dst := make([]float32, 3)
	if _, err := s.ReadSamples(dst); err != nil && !errors.Is(err, io.EOF) {
		t.Fatal(err)
	}
	if dst[0] != 0 || dst[1] != -1 || dst[2] != 0.5 {
		t.Errorf("samples = %v", dst)
	}
}

func TestSource_DecoderError(t *testing.T) {
	t.Parallel()

	boom := errors.New("corrupt chunk")
	s := New(&fakePCM{err: boom}, &goaudio.Format{SampleRate: 8000, NumChannels: 1}, 16, false)
	if _, err := s.ReadSamples(make([]float32, 4)); !errors.Is(err, boom) {
		t.Errorf("error = %v, want %v", err, boom)
	}
}

func TestSeekable(t *testing.T) {
	t.Parallel()

	rs, err := Seekable(io.LimitReader(strings.NewReader("abcdef"), 4))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := rs.Seek(2, io.SeekStart); err != nil {
		t.Fatal(err)
	}
	rest, _ := io.ReadAll(rs)
	if string(rest) != "cd" {
		t.Errorf("rest = %q", rest)
	}
}
