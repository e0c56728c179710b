// SPDX-License-Identifier: EPL-2.0

package audio

import (
	"errors"
	"fmt"
	"io"

	"github.com/ik5/audplay/utils"
)

// PCM16Reader encodes a Source as signed 16-bit little endian PCM.
type PCM16Reader struct {
	src      Source
	channels int
	buf      []float32
	// carry holds samples of an incomplete trailing frame at buf[:carry].
	carry int
}

func NewPCM16Reader(src Source) *PCM16Reader {
	return &PCM16Reader{
		src:      src,
		channels: src.Channels(),
	}
}

// FrameBytes is the encoded size of one interleaved frame.
func (p *PCM16Reader) FrameBytes() int { return 2 * p.channels }

// ReadChunk fills dst with whole S16LE frames and returns the byte count.
// len(dst) must hold at least one frame. io.EOF may accompany n > 0.
func (p *PCM16Reader) ReadChunk(dst []byte) (int, error) {
	if p.channels <= 0 {
		return 0, fmt.Errorf("%w: %d", ErrInvalidChannels, p.channels)
	}

	frames := len(dst) / p.FrameBytes()
	if frames == 0 {
		return 0, ErrInvalidDstSize
	}

	want := frames * p.channels
	if cap(p.buf) < want {
		grown := make([]float32, want)
		copy(grown, p.buf[:p.carry])
		p.buf = grown
	}
	buf := p.buf[:want]

	n, err := p.src.ReadSamples(buf[p.carry:])
	total := p.carry + n
	whole := total - total%p.channels

	utils.EncodeS16LE(dst, buf[:whole])

	p.carry = copy(buf, buf[whole:total])
	if errors.Is(err, io.EOF) {
		// An incomplete frame at the very end is dropped.
		p.carry = 0
	}

	return whole * 2, err
}
