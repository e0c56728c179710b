// SPDX-License-Identifier: EPL-2.0

package audio

import (
	"errors"
	"fmt"
	"io"

	"github.com/ik5/audplay/utils"
)

// maxEmptyReads bounds consecutive (0, nil) reads from a source.
const maxEmptyReads = 100

// Resampler streams from src to a target sample rate using cubic
// interpolation. It works on interleaved samples and preserves the channel
// count. When downsampling, input frames pass a one-pole low-pass first.
// Equal rates pass samples through untouched.
type Resampler struct {
	src      Source
	dstRate  int
	ratio    float64 // source frames per output frame
	channels int

	passthrough bool

	// Interpolation window: t-1, t0, t+1, t+2. Output lies between
	// window[1] and window[2] at offset pos.
	window [4][]float32
	real   [4]bool
	next   []float32
	pos    float64
	primed bool
	done   bool

	// Block read from src and the cursor into it.
	in         []float32
	inPos      int
	inLen      int
	srcEOF     bool
	pendingErr error

	useFilter   bool
	filterAlpha float32
	filterState []float32
	filterInit  bool
}

func NewResampler(src Source, dstRate int) *Resampler {
	channels := src.Channels()
	r := &Resampler{
		src:      src,
		dstRate:  dstRate,
		channels: channels,
	}

	if dstRate <= 0 || channels <= 0 {
		return r
	}

	r.ratio = float64(src.SampleRate()) / float64(dstRate)
	r.passthrough = src.SampleRate() == dstRate

	if r.ratio > 1 {
		r.useFilter = true
		r.filterAlpha = 0.5
		r.filterState = make([]float32, channels)
	}

	for i := range r.window {
		r.window[i] = make([]float32, channels)
	}
	r.next = make([]float32, channels)

	block := max(src.BufSize(), 1024)
	block -= block % channels
	r.in = make([]float32, max(block, channels))

	return r
}

func (r *Resampler) SampleRate() int { return r.dstRate }
func (r *Resampler) Channels() int   { return r.channels }
func (r *Resampler) BufSize() int    { return r.src.BufSize() }

func (r *Resampler) Close() error {
	if err := r.src.Close(); err != nil {
		return fmt.Errorf("%w", err)
	}
	return nil
}

// readFrame copies the next source frame into dst. It reports false once the
// source is exhausted.
func (r *Resampler) readFrame(dst []float32) (bool, error) {
	empty := 0
	for r.inPos >= r.inLen {
		if r.pendingErr != nil {
			err := r.pendingErr
			r.pendingErr = nil
			return false, err
		}
		if r.srcEOF {
			return false, nil
		}

		n, err := r.src.ReadSamples(r.in)
		n -= n % r.channels
		r.inPos, r.inLen = 0, n

		switch {
		case errors.Is(err, io.EOF):
			r.srcEOF = true
		case err != nil && n == 0:
			return false, err
		case err != nil:
			r.pendingErr = err
		case n == 0:
			empty++
			if empty >= maxEmptyReads {
				return false, io.ErrNoProgress
			}
		}
	}

	copy(dst, r.in[r.inPos:r.inPos+r.channels])
	r.inPos += r.channels

	if r.useFilter {
		if !r.filterInit {
			copy(r.filterState, dst)
			r.filterInit = true
		}
		for c := range r.channels {
			// y[n] = a*x[n] + (1-a)*y[n-1]
			dst[c] = r.filterAlpha*dst[c] + (1-r.filterAlpha)*r.filterState[c]
			r.filterState[c] = dst[c]
		}
	}

	return true, nil
}

// prime fills the window with the first frames, duplicating edges.
func (r *Resampler) prime() error {
	ok, err := r.readFrame(r.window[1])
	if err != nil {
		return err
	}
	if !ok {
		return io.EOF
	}
	r.real[1] = true
	copy(r.window[0], r.window[1])

	for i := 2; i < 4; i++ {
		ok, err := r.readFrame(r.window[i])
		if err != nil {
			return err
		}
		if !ok {
			copy(r.window[i], r.window[i-1])
		}
		r.real[i] = ok
	}

	r.primed = true
	return nil
}

// advance shifts the window by one source frame. It returns io.EOF once no
// real frame remains at t0.
func (r *Resampler) advance() error {
	ok, err := r.readFrame(r.next)
	if err != nil {
		return err
	}

	r.window[0], r.window[1], r.window[2], r.window[3] = r.window[1], r.window[2], r.window[3], r.window[0]
	r.real[0], r.real[1], r.real[2] = r.real[1], r.real[2], r.real[3]

	if ok {
		copy(r.window[3], r.next)
	} else {
		copy(r.window[3], r.window[2])
	}
	r.real[3] = ok

	if !r.real[1] {
		return io.EOF
	}
	return nil
}

// ReadSamples produces samples at the target rate. len(dst) must be a
// multiple of the channel count. The last samples come with io.EOF.
func (r *Resampler) ReadSamples(dst []float32) (int, error) {
	if r.dstRate <= 0 {
		return 0, fmt.Errorf("%w: %d", ErrInvalidRate, r.dstRate)
	}
	if r.channels <= 0 {
		return 0, fmt.Errorf("%w: %d", ErrInvalidChannels, r.channels)
	}
	if len(dst)%r.channels != 0 {
		return 0, ErrInvalidDstSize
	}
	if r.passthrough {
		return r.src.ReadSamples(dst)
	}
	if r.done {
		return 0, io.EOF
	}

	if !r.primed {
		if err := r.prime(); err != nil {
			if errors.Is(err, io.EOF) {
				r.done = true
			}
			return 0, err
		}
	}

	framesNeeded := len(dst) / r.channels
	written := 0

	for written < framesNeeded {
		for r.pos >= 1 {
			if err := r.advance(); err != nil {
				if errors.Is(err, io.EOF) {
					r.done = true
				}
				return written * r.channels, err
			}
			r.pos--
		}

		alpha := float32(r.pos)
		out := dst[written*r.channels : (written+1)*r.channels]
		for c := range out {
			out[c] = utils.CubicInterpolate(r.window[0][c], r.window[1][c], r.window[2][c], r.window[3][c], alpha)
		}

		written++
		r.pos += r.ratio
	}

	return written * r.channels, nil
}
