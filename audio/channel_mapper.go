// SPDX-License-Identifier: EPL-2.0

package audio

import "fmt"

// ChannelMapper converts an N-channel source to M channels.
//
// Mono input is duplicated to every output channel and mono output averages
// all input channels. Otherwise output channel c copies input channel c when
// up-mixing, and averages the input channels j with j%M == c when
// down-mixing.
type ChannelMapper struct {
	src Source
	in  int
	out int
	tmp []float32
}

func NewChannelMapper(src Source, channels int) *ChannelMapper {
	return &ChannelMapper{
		src: src,
		in:  src.Channels(),
		out: channels,
		tmp: make([]float32, 4096),
	}
}

func (m *ChannelMapper) SampleRate() int { return m.src.SampleRate() }
func (m *ChannelMapper) Channels() int   { return m.out }
func (m *ChannelMapper) BufSize() int    { return m.src.BufSize() }

func (m *ChannelMapper) Close() error {
	if err := m.src.Close(); err != nil {
		return fmt.Errorf("%w", err)
	}
	return nil
}

func (m *ChannelMapper) ReadSamples(dst []float32) (int, error) {
	if m.in <= 0 || m.out <= 0 {
		return 0, fmt.Errorf("%w: %d -> %d", ErrInvalidChannels, m.in, m.out)
	}
	if len(dst)%m.out != 0 {
		return 0, ErrInvalidDstSize
	}
	if len(dst) == 0 {
		return 0, nil
	}
	if m.in == m.out {
		return m.src.ReadSamples(dst)
	}

	frames := len(dst) / m.out
	need := frames * m.in
	if cap(m.tmp) < need {
		m.tmp = make([]float32, max(need, 8192))
	}
	tmp := m.tmp[:need]

	n, err := m.src.ReadSamples(tmp)
	got := n / m.in

	switch {
	case m.in == 1:
		for f := range got {
			v := tmp[f]
			for c := range m.out {
				dst[f*m.out+c] = v
			}
		}

	case m.out == 1 && m.in == 2:
		for f := range got {
			dst[f] = (tmp[2*f] + tmp[2*f+1]) * 0.5
		}

	case m.out == 1:
		inv := 1 / float32(m.in)
		for f := range got {
			var sum float32
			for _, v := range tmp[f*m.in : (f+1)*m.in] {
				sum += v
			}
			dst[f] = sum * inv
		}

	case m.in < m.out:
		for f := range got {
			frame := tmp[f*m.in : (f+1)*m.in]
			for c := range m.out {
				dst[f*m.out+c] = frame[c%m.in]
			}
		}

	default:
		for f := range got {
			frame := tmp[f*m.in : (f+1)*m.in]
			out := dst[f*m.out : (f+1)*m.out]
			for c := range out {
				var sum float32
				count := 0
				for j := c; j < m.in; j += m.out {
					sum += frame[j]
					count++
				}
				out[c] = sum / float32(count)
			}
		}
	}

	return got * m.out, err
}
