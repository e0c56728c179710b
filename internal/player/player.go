// SPDX-License-Identifier: EPL-2.0

// Package player plays one file at a time on a device backend. It wires the
// decoder, the conversion chain, the producer, the playback buffer and the
// device together and tears them down in a fixed order: the device stops
// first so no callback runs, then the producer is joined, then the buffer is
// closed, then the device and source are released.
package player

import (
	"context"
	stderrors "errors"
	"io/fs"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/ik5/audplay"
	"github.com/ik5/audplay/audio"
	"github.com/ik5/audplay/internal/coordinator"
	"github.com/ik5/audplay/internal/device"
	"github.com/ik5/audplay/internal/dump"
	"github.com/ik5/audplay/internal/errors"
	"github.com/ik5/audplay/internal/logger"
	"github.com/ik5/audplay/internal/pipeline"
)

// Summary describes a finished playback.
type Summary struct {
	Session  string
	Path     string
	Codec    string
	Device   device.Format
	Elapsed  time.Duration
	Buffer   coordinator.Stats
	Producer pipeline.Stats
}

// Player runs playbacks. Play calls are serialized.
type Player struct {
	backend  device.Backend
	registry *audio.Registry
	cfg      Config
	log      logger.Logger

	playMu sync.Mutex

	mu       sync.RWMutex
	session  string
	coord    *coordinator.Coordinator
	producer *pipeline.Producer
}

// New returns a Player. A nil registry uses audplay.DefaultRegistry.
func New(backend device.Backend, registry *audio.Registry, cfg Config, log logger.Logger) *Player {
	if registry == nil {
		registry = audplay.DefaultRegistry()
	}
	if log == nil {
		log = logger.NewDiscard()
	}
	return &Player{
		backend:  backend,
		registry: registry,
		cfg:      cfg,
		log:      log.Module("player"),
	}
}

// Session returns the id of the playback in progress, or "".
func (p *Player) Session() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.session
}

// BufferStats returns the counters of the current or last playback.
func (p *Player) BufferStats() coordinator.Stats {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.coord == nil {
		return coordinator.Stats{}
	}
	return p.coord.Stats()
}

// ProducerStats returns the counters of the current or last playback.
func (p *Player) ProducerStats() pipeline.Stats {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.producer == nil {
		return pipeline.Stats{}
	}
	return p.producer.Stats()
}

func (p *Player) setSession(id string, c *coordinator.Coordinator, prod *pipeline.Producer) {
	p.mu.Lock()
	p.session, p.coord, p.producer = id, c, prod
	p.mu.Unlock()
}

func (p *Player) endSession() {
	p.mu.Lock()
	p.session = ""
	p.mu.Unlock()
}

// Play plays path to the end or until ctx is done. Startup failures are
// returned as fatal errors; a cancelled ctx returns ctx.Err() after an
// orderly teardown.
func (p *Player) Play(ctx context.Context, path string) (Summary, error) {
	p.playMu.Lock()
	defer p.playMu.Unlock()

	start := time.Now()
	sum := Summary{Session: uuid.NewString(), Path: path}
	log := p.log.With(logger.String("session", sum.Session))

	src, codec, err := audplay.OpenFileWith(p.registry, path)
	if err != nil {
		category := errors.CategoryFileParsing
		if isOpenError(err) {
			category = errors.CategoryFileIO
		}
		return sum, errors.New(err).
			Component("player").
			Category(category).
			Priority(errors.PriorityHigh).
			Context("path", path).
			Build()
	}
	defer func() {
		if err := src.Close(); err != nil {
			log.Warn("closing source", logger.Error(err))
		}
	}()
	sum.Codec = codec

	log.Info("opened input",
		logger.String("path", path),
		logger.String("codec", codec),
		logger.Int("sample_rate", src.SampleRate()),
		logger.Int("channels", src.Channels()))

	// The device may call back before the buffer exists.
	var bound atomic.Pointer[coordinator.Coordinator]
	stream, err := p.backend.Open(p.cfg.Format, func(dst []byte) {
		if c := bound.Load(); c != nil {
			c.PullSamples(dst)
			return
		}
		clear(dst)
	})
	if err != nil {
		return sum, errors.New(err).
			Component("player").
			Category(errors.CategoryAudioDevice).
			Priority(errors.PriorityHigh).
			Context("requested", p.cfg.Format.String()).
			Build()
	}
	defer func() {
		if err := stream.Close(); err != nil {
			log.Warn("closing device", logger.Error(err))
		}
	}()

	format := stream.Format()
	sum.Device = format

	coord, err := coordinator.New(p.cfg.Buffer.Coordinator(format.PeriodBytes()), log.Module("coordinator"))
	if err != nil {
		return sum, errors.New(err).
			Component("player").
			Category(errors.CategoryConfiguration).
			Context("device", format.String()).
			Build()
	}
	defer coord.Close()

	pcfg := p.cfg.Pipeline
	if p.cfg.Dump.Enabled {
		sink, err := dump.Create(p.cfg.Dump.Path, p.cfg.Dump.Kind, format.SampleRate, format.Channels)
		if err != nil {
			return sum, errors.New(err).
				Component("player").
				Category(errors.CategoryFileIO).
				Context("path", p.cfg.Dump.Path).
				Build()
		}
		defer func() {
			if err := sink.Close(); err != nil {
				log.Warn("closing pcm dump", logger.Error(err))
			}
		}()
		pcfg.Dump = sink
		log.Info("dumping pcm", logger.String("path", sink.Path()), logger.String("kind", string(p.cfg.Dump.Kind)))
	}

	chain := audplay.ForDevice(src, format.SampleRate, format.Channels)
	producer, err := pipeline.New(chain, coord, pcfg, log)
	if err != nil {
		return sum, err
	}

	bound.Store(coord)
	p.setSession(sum.Session, coord, producer)
	defer p.endSession()

	err = p.run(ctx, log, stream, coord, producer)

	sum.Elapsed = time.Since(start)
	sum.Buffer = coord.Stats()
	sum.Producer = producer.Stats()

	log.Info("playback finished",
		logger.Duration("elapsed", sum.Elapsed),
		logger.Uint64("bytes_played", sum.Buffer.BytesRead),
		logger.Uint64("underruns", sum.Buffer.Underruns),
		logger.Uint64("throttle_timeouts", sum.Buffer.ThrottleTimeouts),
		logger.Uint64("overflows", sum.Buffer.Overflows),
		logger.Uint64("decode_errors", sum.Producer.DecodeErrors),
		logger.Uint64("dropped_chunks", sum.Producer.DroppedChunks))

	return sum, err
}

// run starts the producer, waits for the buffer to prime, starts the device
// and waits for the stream to drain.
func (p *Player) run(ctx context.Context, log logger.Logger, stream device.Stream, coord *coordinator.Coordinator, producer *pipeline.Producer) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return producer.Run(gctx) })

	err := coord.Primed(gctx)
	if err == nil {
		if err = stream.Start(); err != nil {
			err = errors.New(err).
				Component("player").
				Category(errors.CategoryAudioDevice).
				Priority(errors.PriorityHigh).
				Build()
		}
	}
	if err == nil {
		log.Debug("device started", logger.Int("fill", coord.Fill()))
		err = coord.Drained(gctx)
	}
	if err == nil {
		// Let the last period leave the device.
		select {
		case <-time.After(stream.Format().PeriodDuration()):
		case <-ctx.Done():
		}
	}

	if stopErr := stream.Stop(); stopErr != nil {
		log.Warn("stopping device", logger.Error(stopErr))
	}

	if err != nil {
		// Release a producer blocked on the buffer before joining it.
		_ = coord.Close()
	}
	prodErr := g.Wait()
	_ = coord.Close()

	switch {
	case prodErr != nil && !isShutdownError(prodErr):
		return prodErr
	case ctx.Err() != nil:
		return ctx.Err()
	case err != nil && !isShutdownError(err):
		return err
	}
	return nil
}

// isShutdownError reports errors that only reflect teardown in progress.
func isShutdownError(err error) bool {
	return stderrors.Is(err, coordinator.ErrClosed) ||
		stderrors.Is(err, context.Canceled) ||
		stderrors.Is(err, context.DeadlineExceeded)
}

func isOpenError(err error) bool {
	var pathErr *fs.PathError
	return stderrors.As(err, &pathErr)
}
