// SPDX-License-Identifier: EPL-2.0

package audio

import (
	"errors"
	"io"
	"math"
	"testing"

	"github.com/ik5/audplay/internal/audiotest"
)

// readAll drains src with reads of size buf.
func readAll(t *testing.T, src Source, buf int) []float32 {
	t.Helper()

	var out []float32
	tmp := make([]float32, buf)
	for range 1_000_000 {
		n, err := src.ReadSamples(tmp)
		out = append(out, tmp[:n]...)
		if errors.Is(err, io.EOF) {
			return out
		}
		if err != nil {
			t.Fatalf("ReadSamples() error = %v", err)
		}
	}
	t.Fatal("source never reached EOF")
	return nil
}

func TestResampler_PassThrough(t *testing.T) {
	t.Parallel()

	src := audiotest.NewRampSource(44100, 2, 1000)
	want := readAll(t, audiotest.NewRampSource(44100, 2, 1000), 64)

	got := readAll(t, NewResampler(src, 44100), 100)
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("sample %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestResampler_OutputLength(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		srcRate   int
		dstRate   int
		channels  int
		frames    int
		wantRatio float64
	}{
		{"upsample 2x", 22050, 44100, 2, 10000, 2},
		{"downsample 2x", 48000, 24000, 1, 10000, 0.5},
		{"8k to 44.1k", 8000, 44100, 2, 8000, 44100.0 / 8000},
		{"48k to 44.1k", 48000, 44100, 2, 48000, 44100.0 / 48000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			r := NewResampler(audiotest.NewSineSource(tt.srcRate, tt.channels, tt.frames, 440), tt.dstRate)
			if r.SampleRate() != tt.dstRate || r.Channels() != tt.channels {
				t.Fatalf("format = %d/%d", r.SampleRate(), r.Channels())
			}

			got := readAll(t, r, 1024*tt.channels)
			if len(got)%tt.channels != 0 {
				t.Fatalf("output not frame aligned: %d samples", len(got))
			}

			frames := float64(len(got) / tt.channels)
			want := float64(tt.frames) * tt.wantRatio
			if math.Abs(frames-want) > 2 {
				t.Errorf("frames = %v, want about %v", frames, want)
			}
		})
	}
}

func TestResampler_ConstantStaysConstant(t *testing.T) {
	t.Parallel()

	r := NewResampler(audiotest.NewConstantSource(8000, 1, 400, 0.5), 44100)
	for i, v := range readAll(t, r, 256) {
		if math.Abs(float64(v-0.5)) > 1e-5 {
			t.Fatalf("sample %d = %v, want 0.5", i, v)
		}
	}
}

func TestResampler_StartsAtFirstFrame(t *testing.T) {
	t.Parallel()

	src := audiotest.NewMockSource(1000, 1, 10, func(frame, _ int) float32 {
		return float32(frame) / 10
	})
	got := readAll(t, NewResampler(src, 2000), 8)

	if got[0] != 0 {
		t.Errorf("first sample = %v, want 0", got[0])
	}
	if math.Abs(float64(got[2]-0.1)) > 1e-6 {
		t.Errorf("third sample = %v, want 0.1", got[2])
	}
}

func TestResampler_DownsampleAttenuatesNyquist(t *testing.T) {
	t.Parallel()

	// Alternating +1/-1 at 48 kHz sits at Nyquist and must not survive.
	src := audiotest.NewMockSource(48000, 1, 4800, func(frame, _ int) float32 {
		if frame%2 == 0 {
			return 1
		}
		return -1
	})
	got := readAll(t, NewResampler(src, 16000), 512)

	var peak float64
	for _, v := range got[16:] {
		peak = max(peak, math.Abs(float64(v)))
	}
	if peak > 0.5 {
		t.Errorf("peak after filtering = %v, want <= 0.5", peak)
	}
}

func TestResampler_Errors(t *testing.T) {
	t.Parallel()

	r := NewResampler(audiotest.NewSilentSource(8000, 2, 10), 16000)
	if _, err := r.ReadSamples(make([]float32, 3)); !errors.Is(err, ErrInvalidDstSize) {
		t.Errorf("odd dst error = %v, want ErrInvalidDstSize", err)
	}

	bad := NewResampler(audiotest.NewSilentSource(8000, 2, 10), 0)
	if _, err := bad.ReadSamples(make([]float32, 4)); !errors.Is(err, ErrInvalidRate) {
		t.Errorf("zero rate error = %v, want ErrInvalidRate", err)
	}

	empty := NewResampler(audiotest.NewSilentSource(8000, 1, 0), 16000)
	if n, err := empty.ReadSamples(make([]float32, 4)); n != 0 || !errors.Is(err, io.EOF) {
		t.Errorf("empty source = %d, %v", n, err)
	}
	if _, err := empty.ReadSamples(make([]float32, 4)); !errors.Is(err, io.EOF) {
		t.Errorf("read after EOF = %v", err)
	}
}

func TestResampler_SourceErrorIsRecoverable(t *testing.T) {
	t.Parallel()

	errUnit := errors.New("bad frame")
	src := &audiotest.FailingSource{
		Reader: audiotest.NewConstantSource(8000, 1, 2000, 0.25).WithBufSize(1024),
		Err:    errUnit,
		FailOn: map[int]bool{2: true},
	}
	r := NewResampler(src, 16000)

	var total int
	var sawErr bool
	buf := make([]float32, 512)
	for range 100 {
		n, err := r.ReadSamples(buf)
		total += n
		if errors.Is(err, errUnit) {
			sawErr = true
			continue
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("unexpected error %v", err)
		}
	}

	if !sawErr {
		t.Error("source error was not surfaced")
	}
	if total < 3900 || total > 4001 {
		t.Errorf("total = %d, want about 4000", total)
	}
}

func BenchmarkResampler_48kTo44k(b *testing.B) {
	buf := make([]float32, 4096)
	b.ReportAllocs()

	for range b.N {
		r := NewResampler(audiotest.NewSineSource(48000, 2, 48000, 440), 44100)
		for {
			if _, err := r.ReadSamples(buf); err != nil {
				break
			}
		}
	}
}
