// SPDX-License-Identifier: EPL-2.0

package coordinator

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ik5/audplay/internal/logger"
	"github.com/ik5/audplay/internal/ring"
)

// Coordinator arbitrates one producer and one real-time consumer over a
// single ring buffer.
type Coordinator struct {
	mu  sync.Mutex
	buf *ring.Buffer

	// wake carries at most one pending consumer signal. Sends and stale-signal
	// drains both happen with mu held.
	wake    chan struct{}
	done    chan struct{}
	drained chan struct{}
	primed  chan struct{}

	highWater   int
	lowWater    int
	timeout     time.Duration
	policy      OverflowPolicy
	maxCapacity int

	eos           bool
	closed        bool
	drainedClosed bool
	primedClosed  bool

	log   logger.Logger
	stats counters
}

// New creates a Coordinator for cfg. A nil log discards log output.
func New(cfg Config, log logger.Logger) (*Coordinator, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	buf, err := ring.New(cfg.Capacity)
	if err != nil {
		return nil, err
	}

	if log == nil {
		log = logger.NewDiscard()
	}

	c := &Coordinator{
		buf:         buf,
		wake:        make(chan struct{}, 1),
		done:        make(chan struct{}),
		drained:     make(chan struct{}),
		primed:      make(chan struct{}),
		highWater:   cfg.HighWater,
		lowWater:    cfg.LowWater,
		timeout:     cfg.ThrottleTimeout,
		policy:      cfg.OverflowPolicy,
		maxCapacity: cfg.MaxCapacity,
		log:         log,
	}
	c.stats.capacity.Store(int64(cfg.Capacity))

	return c, nil
}

// pushOutcome collects what happened under the lock so that logging happens
// after it is released.
type pushOutcome struct {
	spaceTimeout    bool
	throttleTimeout bool
	waited          bool
	evicted         int
	grewTo          int
}

// PushSamples writes chunk into the buffer. It waits, bounded by the throttle
// timeout, for space when the chunk does not fit, and afterwards while the
// fill level is at or above the high-water mark.
//
// It returns ErrChunkTooLarge for chunks that can never fit, an error
// wrapping ring.ErrOverflow when the overflow policy rejects the chunk,
// ErrChunkDropped under the drop-newest policy, ErrClosed after Close or
// CloseWrite, or the context error.
func (c *Coordinator) PushSamples(ctx context.Context, chunk []byte) error {
	if len(chunk) == 0 {
		return nil
	}

	c.mu.Lock()
	out, err := c.pushLocked(ctx, chunk)
	c.mu.Unlock()

	c.report(len(chunk), out)

	return err
}

func (c *Coordinator) pushLocked(ctx context.Context, chunk []byte) (pushOutcome, error) {
	var out pushOutcome

	if c.closed || c.eos {
		return out, ErrClosed
	}

	if limit := c.chunkLimit(); len(chunk) > limit {
		c.stats.overflows.Add(1)
		return out, fmt.Errorf("%w: %d bytes, limit %d", ErrChunkTooLarge, len(chunk), limit)
	}

	fits := func() bool { return len(chunk) <= c.buf.WriteAvail() }

	// A chunk above the current capacity can only land through growth, which
	// needs the consumer to leave room for it below MaxCapacity.
	room := fits
	if len(chunk) > c.buf.Cap() {
		room = func() bool { return c.buf.ReadAvail()+len(chunk) <= c.maxCapacity }
	}

	if !room() {
		out.waited = true
		switch err := c.waitLocked(ctx, room); {
		case err == errWaitTimeout:
			c.stats.throttleTimeouts.Add(1)
			out.spaceTimeout = true
		case err != nil:
			return out, err
		}
	}

	if !fits() {
		if err := c.makeRoomLocked(len(chunk), &out); err != nil {
			return out, err
		}
	}

	if err := c.buf.Write(chunk); err != nil {
		c.stats.overflows.Add(1)
		return out, err
	}
	c.stats.bytesWritten.Add(uint64(len(chunk)))
	c.stats.fill.Store(int64(c.buf.ReadAvail()))

	if c.buf.ReadAvail() < c.highWater {
		return out, nil
	}
	c.markPrimedLocked()

	c.stats.throttleWaits.Add(1)
	belowHigh := func() bool { return c.buf.ReadAvail() < c.highWater }

	switch err := c.waitLocked(ctx, belowHigh); {
	case err == errWaitTimeout:
		// The consumer stalled; proceed and let the next push deal with space.
		c.stats.throttleTimeouts.Add(1)
		out.throttleTimeout = true
		return out, nil
	case err != nil:
		return out, err
	}

	return out, nil
}

// waitLocked blocks until ready reports true, the throttle timeout elapses,
// the coordinator closes or ctx is done. mu is released while blocked and
// held again on return.
func (c *Coordinator) waitLocked(ctx context.Context, ready func() bool) error {
	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	for !ready() {
		if c.closed {
			return ErrClosed
		}

		// Any pending signal predates the check above.
		select {
		case <-c.wake:
		default:
		}

		c.mu.Unlock()

		select {
		case <-c.wake:
			c.mu.Lock()
		case <-timer.C:
			c.mu.Lock()
			if ready() {
				return nil
			}
			return errWaitTimeout
		case <-c.done:
			c.mu.Lock()
			return ErrClosed
		case <-ctx.Done():
			c.mu.Lock()
			return ctx.Err()
		}
	}

	return nil
}

// makeRoomLocked applies the overflow policy for a chunk of n bytes that
// does not fit even after waiting.
func (c *Coordinator) makeRoomLocked(n int, out *pushOutcome) error {
	c.stats.overflows.Add(1)
	free := c.buf.WriteAvail()

	switch c.policy {
	case PolicyDropNewest:
		c.stats.droppedBytes.Add(uint64(n))
		return fmt.Errorf("%w: %d bytes, %d free", ErrChunkDropped, n, free)

	case PolicyDropOldest:
		evict := n - free
		if err := c.buf.Discard(evict); err != nil {
			return err
		}
		c.stats.droppedBytes.Add(uint64(evict))
		out.evicted = evict
		return nil

	case PolicyGrow:
		need := c.buf.ReadAvail() + n
		if need <= c.maxCapacity {
			target := min(max(c.buf.Cap()*2, need), c.maxCapacity)
			if err := c.buf.Grow(target); err != nil {
				return err
			}
			c.stats.grows.Add(1)
			c.stats.capacity.Store(int64(target))
			out.grewTo = target
			return nil
		}
	}

	if !out.waited {
		return fmt.Errorf("%w: %d bytes, %d free", ring.ErrOverflow, n, free)
	}
	return fmt.Errorf("%w: %d bytes, %d free after waiting %s", ring.ErrOverflow, n, free, c.timeout)
}

func (c *Coordinator) chunkLimit() int {
	if c.policy == PolicyGrow {
		return c.maxCapacity
	}
	return c.buf.Cap()
}

func (c *Coordinator) report(n int, out pushOutcome) {
	if out.spaceTimeout {
		c.log.Warn("timed out waiting for buffer space",
			logger.Int("chunk_bytes", n),
			logger.Duration("timeout", c.timeout))
	}
	if out.throttleTimeout {
		c.log.Warn("consumer did not drain within throttle timeout, proceeding",
			logger.Int64("fill", c.stats.fill.Load()),
			logger.Duration("timeout", c.timeout))
	}
	if out.evicted > 0 {
		c.log.Warn("dropped oldest buffered audio to fit chunk",
			logger.Int("evicted_bytes", out.evicted))
	}
	if out.grewTo > 0 {
		c.log.Warn("grew playback buffer",
			logger.Int("capacity", out.grewTo))
	}
}

// PullSamples fills dst for the playback device. Buffered bytes are copied
// first and any shortfall is zero-filled. It never waits for the producer
// and never allocates. The return value is the number of real bytes.
func (c *Coordinator) PullSamples(dst []byte) int {
	if len(dst) == 0 {
		return 0
	}

	c.mu.Lock()

	if c.closed {
		c.mu.Unlock()
		clear(dst)
		return 0
	}

	n := min(len(dst), c.buf.ReadAvail())
	if n > 0 && c.buf.Read(dst[:n]) != nil {
		n = 0
	}
	clear(dst[n:])

	remaining := c.buf.ReadAvail()
	if remaining <= c.lowWater {
		select {
		case c.wake <- struct{}{}:
		default:
		}
	}

	eos := c.eos
	if eos && remaining == 0 && !c.drainedClosed {
		c.drainedClosed = true
		close(c.drained)
	}

	c.stats.fill.Store(int64(remaining))
	c.mu.Unlock()

	c.stats.pulls.Add(1)
	c.stats.bytesRead.Add(uint64(n))
	if short := uint64(len(dst) - n); short > 0 {
		if eos {
			c.stats.tailSilenceBytes.Add(short)
		} else {
			c.stats.underruns.Add(1)
			c.stats.silenceBytes.Add(short)
		}
	}

	return n
}

// CloseWrite marks the end of the stream. Later pushes fail with ErrClosed;
// buffered bytes remain available to the consumer.
func (c *Coordinator) CloseWrite() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.eos {
		return
	}
	c.eos = true
	c.stats.endOfStream.Store(true)
	c.markPrimedLocked()

	if c.buf.ReadAvail() == 0 && !c.drainedClosed {
		c.drainedClosed = true
		close(c.drained)
	}
}

func (c *Coordinator) markPrimedLocked() {
	if !c.primedClosed {
		c.primedClosed = true
		close(c.primed)
	}
}

// Primed waits until the fill level first reaches the high-water mark or
// the stream ends, whichever comes first. Starting the device after Primed
// avoids opening with silence.
func (c *Coordinator) Primed(ctx context.Context) error {
	select {
	case <-c.primed:
		return nil
	case <-c.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Drained waits until the stream was closed for writing and every buffered
// byte was pulled. It returns ErrClosed if the coordinator is closed first.
func (c *Coordinator) Drained(ctx context.Context) error {
	select {
	case <-c.drained:
		return nil
	case <-c.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close releases any blocked producer and Drained waiter. Pulls after Close
// return silence. Close is idempotent.
func (c *Coordinator) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	c.stats.closed.Store(true)
	close(c.done)

	return nil
}

// Fill returns the number of buffered bytes.
func (c *Coordinator) Fill() int { return int(c.stats.fill.Load()) }

// Cap returns the current buffer capacity.
func (c *Coordinator) Cap() int { return int(c.stats.capacity.Load()) }

// Stats returns a snapshot of the counters. It does not take the buffer
// lock.
func (c *Coordinator) Stats() Stats {
	s := c.stats.snapshot()
	s.HighWater = c.highWater
	s.LowWater = c.lowWater
	return s
}

type counters struct {
	capacity atomic.Int64
	fill     atomic.Int64

	bytesWritten     atomic.Uint64
	bytesRead        atomic.Uint64
	pulls            atomic.Uint64
	underruns        atomic.Uint64
	silenceBytes     atomic.Uint64
	tailSilenceBytes atomic.Uint64
	throttleWaits    atomic.Uint64
	throttleTimeouts atomic.Uint64
	overflows        atomic.Uint64
	droppedBytes     atomic.Uint64
	grows            atomic.Uint64

	endOfStream atomic.Bool
	closed      atomic.Bool
}

func (c *counters) snapshot() Stats {
	return Stats{
		Capacity:         int(c.capacity.Load()),
		Fill:             int(c.fill.Load()),
		BytesWritten:     c.bytesWritten.Load(),
		BytesRead:        c.bytesRead.Load(),
		Pulls:            c.pulls.Load(),
		Underruns:        c.underruns.Load(),
		SilenceBytes:     c.silenceBytes.Load(),
		TailSilenceBytes: c.tailSilenceBytes.Load(),
		ThrottleWaits:    c.throttleWaits.Load(),
		ThrottleTimeouts: c.throttleTimeouts.Load(),
		Overflows:        c.overflows.Load(),
		DroppedBytes:     c.droppedBytes.Load(),
		Grows:            c.grows.Load(),
		EndOfStream:      c.endOfStream.Load(),
		Closed:           c.closed.Load(),
	}
}
