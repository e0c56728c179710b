// SPDX-License-Identifier: EPL-2.0

// Package audio provides the decode-side building blocks of the player.
//
//   - Source: a stream of interleaved float32 samples
//   - Registry: format name to Decoder, with extension and magic detection
//   - Resampler: cubic sample rate conversion
//   - ChannelMapper: up- and down-mixing between channel counts
//   - PCM16Reader: S16LE encoding into caller-owned chunks
//
// # Source Interface
//
//	type Source interface {
//	    SampleRate() int
//	    Channels() int
//	    ReadSamples(dst []float32) (int, error)
//	    BufSize() int
//	    Close() error
//	}
//
// Decoders and processors all implement Source, so a device chain is a stack
// of wrappers:
//
//	chain := audio.NewChannelMapper(audio.NewResampler(src, 48000), 2)
//	pcm := audio.NewPCM16Reader(chain)
//	n, err := pcm.ReadChunk(chunk)
//
// # End of Stream
//
// io.EOF ends a stream and may arrive together with the final samples, so
// callers consume n before looking at err:
//
//	for {
//	    n, err := src.ReadSamples(buf)
//	    use(buf[:n])
//	    if errors.Is(err, io.EOF) {
//	        break
//	    }
//	    if err != nil {
//	        return err
//	    }
//	}
//
// Any other error describes a single failed read. The Resampler keeps its
// state across such errors so the caller may skip the unit and read on.
//
// # Format Detection
//
//	registry.Register("wav", wav.Decoder{}, wav.Magic, "wav", "wave")
//	format, err := registry.Detect("track.bin", header)
//
// The extension decides when it is registered. Otherwise the first
// HeaderSize bytes are matched against each format's magic.
//
// # Sample Format
//
// Samples are float32 in [-1.0, 1.0]. Conversion to and from 16-bit integers
// scales by 32768, so 16-bit input survives a decode and encode unchanged.
package audio
