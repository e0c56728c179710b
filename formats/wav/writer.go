// SPDX-License-Identifier: EPL-2.0

package wav

import (
	"encoding/binary"
	"fmt"
	"io"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// Writer writes S16LE byte chunks as a 16-bit PCM WAV file. The header is
// finalized on Close, which needs the seek.
type Writer struct {
	enc    *wav.Encoder
	buf    *goaudio.IntBuffer
	closed bool
}

// NewWriter starts a WAV stream on w.
func NewWriter(w io.WriteSeeker, sampleRate, channels int) *Writer {
	return &Writer{
		enc: wav.NewEncoder(w, sampleRate, 16, channels, formatPCM),
		buf: &goaudio.IntBuffer{
			Format:         &goaudio.Format{SampleRate: sampleRate, NumChannels: channels},
			SourceBitDepth: 16,
		},
	}
}

// Write encodes p, which must hold whole 16-bit samples.
func (w *Writer) Write(p []byte) (int, error) {
	if w.closed {
		return 0, ErrWriterClosed
	}
	if len(p)%2 != 0 {
		return 0, fmt.Errorf("%w: odd byte count %d", ErrUnsupportedWavLayout, len(p))
	}

	samples := len(p) / 2
	if cap(w.buf.Data) < samples {
		w.buf.Data = make([]int, samples)
	}
	w.buf.Data = w.buf.Data[:samples]
	for i := range samples {
		w.buf.Data[i] = int(int16(binary.LittleEndian.Uint16(p[2*i:])))
	}

	if err := w.enc.Write(w.buf); err != nil {
		return 0, fmt.Errorf("write wav samples: %w", err)
	}
	return len(p), nil
}

// Close finalizes the header. It does not close the underlying writer.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	if err := w.enc.Close(); err != nil {
		return fmt.Errorf("finalize wav: %w", err)
	}
	return nil
}
