// SPDX-License-Identifier: EPL-2.0

// Package pipeline runs the producer side of playback: it reads samples
// already shaped for the device, encodes them as S16LE chunks and pushes the
// chunks into the playback buffer, honoring its backpressure.
package pipeline

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"sync/atomic"

	"github.com/ik5/audplay/audio"
	"github.com/ik5/audplay/internal/coordinator"
	"github.com/ik5/audplay/internal/errors"
	"github.com/ik5/audplay/internal/logger"
	"github.com/ik5/audplay/internal/ring"
)

const (
	DefaultChunkFrames          = 1024
	DefaultMaxConsecutiveErrors = 10
	DefaultOverflowRetries      = 3

	// maxEmptyReads bounds consecutive reads that return nothing and no error.
	maxEmptyReads = 100
)

// Pusher is the producer side of the playback buffer.
type Pusher interface {
	PushSamples(ctx context.Context, chunk []byte) error
	CloseWrite()
}

type flusher interface {
	Flush() error
}

// Config tunes a Producer. Zero values take the defaults, except for
// OverflowRetries.
type Config struct {
	// ChunkFrames is the number of frames encoded and pushed at a time.
	ChunkFrames int
	// MaxConsecutiveErrors aborts production after that many decode errors
	// in a row.
	MaxConsecutiveErrors int
	// OverflowRetries is how often a rejected chunk is pushed again before
	// it is dropped. Zero disables retries; a negative value takes the
	// default.
	OverflowRetries int
	// Dump receives a copy of every chunk the buffer accepted.
	Dump io.Writer
}

func (c Config) withDefaults() Config {
	if c.ChunkFrames <= 0 {
		c.ChunkFrames = DefaultChunkFrames
	}
	if c.MaxConsecutiveErrors <= 0 {
		c.MaxConsecutiveErrors = DefaultMaxConsecutiveErrors
	}
	if c.OverflowRetries < 0 {
		c.OverflowRetries = DefaultOverflowRetries
	}
	return c
}

// Stats are producer counters, safe to read while Run is active.
type Stats struct {
	Chunks          uint64 `json:"chunks"`
	Bytes           uint64 `json:"bytes"`
	DecodeErrors    uint64 `json:"decode_errors"`
	OverflowRetries uint64 `json:"overflow_retries"`
	DroppedChunks   uint64 `json:"dropped_chunks"`
	DumpBytes       uint64 `json:"dump_bytes"`
}

// Producer moves audio from a Source into a Pusher.
type Producer struct {
	enc  *audio.PCM16Reader
	sink Pusher
	cfg  Config
	log  logger.Logger
	buf  []byte
	dump io.Writer

	chunks       atomic.Uint64
	bytes        atomic.Uint64
	decodeErrors atomic.Uint64
	retries      atomic.Uint64
	dropped      atomic.Uint64
	dumpBytes    atomic.Uint64
}

// New returns a Producer reading src, which must already have the device
// sample rate and channel count. A nil log discards output.
func New(src audio.Source, sink Pusher, cfg Config, log logger.Logger) (*Producer, error) {
	if src.Channels() <= 0 {
		return nil, fmt.Errorf("%w: %d", audio.ErrInvalidChannels, src.Channels())
	}
	if log == nil {
		log = logger.NewDiscard()
	}

	cfg = cfg.withDefaults()
	enc := audio.NewPCM16Reader(src)

	return &Producer{
		enc:  enc,
		sink: sink,
		cfg:  cfg,
		log:  log.Module("pipeline"),
		buf:  make([]byte, cfg.ChunkFrames*enc.FrameBytes()),
		dump: cfg.Dump,
	}, nil
}

// ChunkBytes is the size of a full chunk.
func (p *Producer) ChunkBytes() int { return len(p.buf) }

func (p *Producer) Stats() Stats {
	return Stats{
		Chunks:          p.chunks.Load(),
		Bytes:           p.bytes.Load(),
		DecodeErrors:    p.decodeErrors.Load(),
		OverflowRetries: p.retries.Load(),
		DroppedChunks:   p.dropped.Load(),
		DumpBytes:       p.dumpBytes.Load(),
	}
}

// Run produces until the source ends, ctx is done, the buffer closes or
// decoding keeps failing. End of stream is always marked on the Pusher
// before Run returns; the Pusher itself is never closed.
func (p *Producer) Run(ctx context.Context) error {
	defer p.sink.CloseWrite()

	consecutive := 0
	empty := 0

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, err := p.enc.ReadChunk(p.buf)
		eof := stderrors.Is(err, io.EOF)

		if n > 0 {
			empty = 0
			if perr := p.push(ctx, p.buf[:n]); perr != nil {
				return perr
			}
		}

		switch {
		case eof:
			p.flushDump()
			p.log.Debug("source exhausted", logger.Uint64("bytes", p.bytes.Load()))
			return nil

		case err != nil:
			consecutive++
			p.decodeErrors.Add(1)
			p.log.Warn("decode error, skipping",
				logger.Error(err),
				logger.Int("consecutive", consecutive))

			if consecutive >= p.cfg.MaxConsecutiveErrors {
				return errors.New(err).
					Component("pipeline").
					Category(errors.CategoryAudioSource).
					Priority(errors.PriorityHigh).
					Context("consecutive_errors", consecutive).
					Build()
			}

		case n == 0:
			empty++
			if empty >= maxEmptyReads {
				return errors.New(io.ErrNoProgress).
					Component("pipeline").
					Category(errors.CategoryAudioSource).
					Context("empty_reads", empty).
					Build()
			}

		default:
			consecutive = 0
		}
	}
}

// push hands chunk to the buffer, retrying a rejected chunk a bounded number
// of times. Each retry waits for room again.
func (p *Producer) push(ctx context.Context, chunk []byte) error {
	for attempt := 0; ; attempt++ {
		err := p.sink.PushSamples(ctx, chunk)

		switch {
		case err == nil:
			p.chunks.Add(1)
			p.bytes.Add(uint64(len(chunk)))
			p.writeDump(chunk)
			return nil

		case stderrors.Is(err, coordinator.ErrChunkTooLarge):
			return errors.New(err).
				Component("pipeline").
				Category(errors.CategoryConfiguration).
				Context("chunk_bytes", len(chunk)).
				Build()

		case stderrors.Is(err, coordinator.ErrChunkDropped):
			p.dropped.Add(1)
			return nil

		case stderrors.Is(err, ring.ErrOverflow):
			if attempt < p.cfg.OverflowRetries {
				p.retries.Add(1)
				continue
			}
			p.dropped.Add(1)
			p.log.Warn("buffer full, dropping chunk",
				logger.Int("bytes", len(chunk)),
				logger.Int("attempts", attempt+1))
			return nil

		default:
			return err
		}
	}
}

func (p *Producer) writeDump(chunk []byte) {
	if p.dump == nil {
		return
	}
	n, err := p.dump.Write(chunk)
	p.dumpBytes.Add(uint64(n))
	if err != nil {
		p.log.Error("pcm dump write failed, dump disabled", logger.Error(err))
		p.dump = nil
	}
}

func (p *Producer) flushDump() {
	f, ok := p.dump.(flusher)
	if !ok {
		return
	}
	if err := f.Flush(); err != nil {
		p.log.Error("pcm dump flush failed", logger.Error(err))
	}
}
