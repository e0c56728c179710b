// SPDX-License-Identifier: EPL-2.0

package audplay

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/ik5/audplay/audio"
	"github.com/ik5/audplay/formats/aiff"
	"github.com/ik5/audplay/formats/flac"
	"github.com/ik5/audplay/formats/mp3"
	"github.com/ik5/audplay/formats/vorbis"
	"github.com/ik5/audplay/formats/wav"
)

// DefaultRegistry returns a registry with every bundled decoder. Magic bytes
// are tried in the order listed here; mp3 goes last since a bare frame sync
// is the weakest signature.
func DefaultRegistry() *audio.Registry {
	r := audio.NewRegistry()
	r.Register("wav", wav.Decoder{}, wav.Magic, "wav", "wave")
	r.Register("aiff", aiff.Decoder{}, aiff.Magic, "aiff", "aif", "aifc")
	r.Register("flac", flac.Decoder{}, flac.Magic, "flac")
	r.Register("vorbis", vorbis.Decoder{}, vorbis.Magic, "ogg", "oga")
	r.Register("mp3", mp3.Decoder{}, mp3.Magic, "mp3")
	return r
}

// fileSource closes the file together with the decoder.
type fileSource struct {
	audio.Source
	f *os.File
}

func (s *fileSource) Close() error {
	return errors.Join(s.Source.Close(), s.f.Close())
}

// OpenFile detects the format of path with DefaultRegistry and decodes it.
func OpenFile(path string) (audio.Source, error) {
	src, _, err := OpenFileWith(DefaultRegistry(), path)
	return src, err
}

// OpenFileWith decodes path with reg and also returns the detected format
// name. Closing the returned source closes the file.
func OpenFileWith(reg *audio.Registry, path string) (audio.Source, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, "", fmt.Errorf("open input: %w", err)
	}

	header := make([]byte, audio.HeaderSize)
	n, err := io.ReadFull(f, header)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		_ = f.Close()
		return nil, "", fmt.Errorf("read header: %w", err)
	}

	format, err := reg.Detect(path, header[:n])
	if err != nil {
		_ = f.Close()
		return nil, "", err
	}
	dec, _ := reg.Get(format)

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		_ = f.Close()
		return nil, "", fmt.Errorf("rewind input: %w", err)
	}

	src, err := dec.Decode(f)
	if err != nil {
		_ = f.Close()
		return nil, "", fmt.Errorf("decode %s: %w", format, err)
	}

	return &fileSource{Source: src, f: f}, format, nil
}

// ForDevice converts src to rate and channels. Stages that would not change
// anything are left out.
func ForDevice(src audio.Source, rate, channels int) audio.Source {
	out := src
	if out.SampleRate() != rate {
		out = audio.NewResampler(out, rate)
	}
	if out.Channels() != channels {
		out = audio.NewChannelMapper(out, channels)
	}
	return out
}

// RenderS16 converts src with ForDevice and writes it to w as S16LE until the
// source ends. It returns the number of bytes written. The source is not
// closed.
func RenderS16(src audio.Source, rate, channels int, w io.Writer) (int64, error) {
	enc := audio.NewPCM16Reader(ForDevice(src, rate, channels))

	buf := make([]byte, 4096*enc.FrameBytes())
	var total int64
	for {
		n, err := enc.ReadChunk(buf)
		if n > 0 {
			written, werr := w.Write(buf[:n])
			total += int64(written)
			if werr != nil {
				return total, fmt.Errorf("write pcm: %w", werr)
			}
		}
		if errors.Is(err, io.EOF) {
			return total, nil
		}
		if err != nil {
			return total, fmt.Errorf("%w", err)
		}
	}
}
