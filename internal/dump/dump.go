// SPDX-License-Identifier: EPL-2.0

// Package dump writes a side copy of the PCM pushed into the playback buffer.
package dump

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ik5/audplay/formats/wav"
)

// Kind selects the dump file layout.
type Kind string

const (
	// KindRaw writes headerless S16LE interleaved bytes.
	KindRaw Kind = "raw"
	// KindWAV writes a 16-bit PCM WAV file.
	KindWAV Kind = "wav"
)

var (
	ErrUnknownKind = errors.New("unknown dump kind")
	ErrClosed      = errors.New("dump sink closed")
)

// ParseKind accepts "raw", "pcm" and "wav".
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "raw", "pcm":
		return KindRaw, nil
	case "wav", "wave":
		return KindWAV, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// Sink is an io.WriteCloser over a dump file. It is not safe for concurrent
// use; the producer is its only writer.
type Sink struct {
	f      *os.File
	w      *bufio.Writer
	wav    *wav.Writer
	path   string
	bytes  int64
	closed bool
}

// Create opens path for a dump of the given kind. rate and channels describe
// the PCM and are only used by KindWAV.
func Create(path string, kind Kind, rate, channels int) (*Sink, error) {
	if kind != KindRaw && kind != KindWAV {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create dump directory: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create dump file: %w", err)
	}

	s := &Sink{f: f, path: path}
	if kind == KindWAV {
		s.wav = wav.NewWriter(f, rate, channels)
	} else {
		s.w = bufio.NewWriterSize(f, 64<<10)
	}
	return s, nil
}

// Path returns the file the sink writes to.
func (s *Sink) Path() string { return s.path }

// Bytes returns the PCM byte count written so far.
func (s *Sink) Bytes() int64 { return s.bytes }

func (s *Sink) Write(p []byte) (int, error) {
	if s.closed {
		return 0, ErrClosed
	}

	var w io.Writer = s.w
	if s.wav != nil {
		w = s.wav
	}

	n, err := w.Write(p)
	s.bytes += int64(n)
	if err != nil {
		return n, fmt.Errorf("write dump: %w", err)
	}
	return n, nil
}

// Flush pushes buffered bytes to the file.
func (s *Sink) Flush() error {
	if s.closed || s.w == nil {
		return nil
	}
	if err := s.w.Flush(); err != nil {
		return fmt.Errorf("flush dump: %w", err)
	}
	return nil
}

// Close finalizes and closes the file. It is idempotent.
func (s *Sink) Close() error {
	if s.closed {
		return nil
	}

	var errs []error
	if s.wav != nil {
		errs = append(errs, s.wav.Close())
	} else {
		errs = append(errs, s.Flush())
	}
	s.closed = true
	errs = append(errs, s.f.Close())

	return errors.Join(errs...)
}
