// SPDX-License-Identifier: EPL-2.0

package device

import (
	"io"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ik5/audplay/internal/logger"
)

// SimulatedConfig configures the clock-driven device.
type SimulatedConfig struct {
	// Realtime paces callbacks at one period per period duration. Otherwise
	// callbacks run back to back, separated by Interval when it is set.
	Realtime bool
	Interval time.Duration

	// Sink, when set, receives a copy of every delivered period after the
	// callback returns.
	Sink io.Writer
}

// Simulated is a Backend without audio hardware.
type Simulated struct {
	cfg SimulatedConfig
	log logger.Logger
}

// NewSimulated returns a simulated backend. A nil log discards output.
func NewSimulated(cfg SimulatedConfig, log logger.Logger) *Simulated {
	if log == nil {
		log = logger.NewDiscard()
	}
	return &Simulated{cfg: cfg, log: log.Module("device")}
}

// Open always succeeds for a valid format and negotiates it unchanged.
func (s *Simulated) Open(requested Format, cb Callback) (Stream, error) {
	if err := requested.Validate(); err != nil {
		return nil, err
	}

	interval := s.cfg.Interval
	if s.cfg.Realtime {
		interval = requested.PeriodDuration()
	}

	return &SimulatedStream{
		format:   requested,
		cb:       cb,
		sink:     s.cfg.Sink,
		interval: interval,
		buf:      make([]byte, requested.PeriodBytes()),
		log:      s.log,
	}, nil
}

// SimulatedStream is the Stream returned by Simulated.
type SimulatedStream struct {
	format   Format
	cb       Callback
	sink     io.Writer
	interval time.Duration
	buf      []byte
	log      logger.Logger

	mu      sync.Mutex
	stop    chan struct{}
	done    chan struct{}
	closed  bool
	periods atomic.Uint64
}

func (s *SimulatedStream) Format() Format { return s.format }

// Periods returns the number of callbacks delivered so far.
func (s *SimulatedStream) Periods() uint64 { return s.periods.Load() }

func (s *SimulatedStream) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStreamClosed
	}
	if s.stop != nil {
		return nil
	}

	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	go s.run(s.stop, s.done)

	return nil
}

func (s *SimulatedStream) run(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	var tick <-chan time.Time
	if s.interval > 0 {
		t := time.NewTicker(s.interval)
		defer t.Stop()
		tick = t.C
	}

	for {
		if tick != nil {
			select {
			case <-stop:
				return
			case <-tick:
			}
		} else {
			select {
			case <-stop:
				return
			default:
			}
			runtime.Gosched()
		}

		s.cb(s.buf)
		s.periods.Add(1)

		if s.sink != nil {
			if _, err := s.sink.Write(s.buf); err != nil {
				s.log.Error("simulated device sink write failed", logger.Error(err))
				s.sink = nil
			}
		}
	}
}

// Stop waits for the callback goroutine to exit.
func (s *SimulatedStream) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stop == nil {
		return nil
	}
	close(s.stop)
	<-s.done
	s.stop, s.done = nil, nil

	return nil
}

func (s *SimulatedStream) Close() error {
	if err := s.Stop(); err != nil {
		return err
	}

	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	return nil
}
