// SPDX-License-Identifier: EPL-2.0

// Package ring implements the fixed-capacity byte ring shared between the
// decoding producer and the playback callback.
//
// A Buffer never truncates: a write that does not fit and a read that asks for
// more than is buffered are rejected before any byte moves. Buffer does not
// coordinate goroutines; callers serialize access (see internal/coordinator).
package ring

import (
	"fmt"

	"github.com/smallnest/ringbuffer"
)

// discardChunk bounds the scratch space used by Discard.
const discardChunk = 4096

// Buffer is a byte FIFO of fixed capacity with independent read and write
// cursors.
type Buffer struct {
	rb      *ringbuffer.RingBuffer
	scratch []byte
}

// New allocates a Buffer holding up to capacity bytes.
func New(capacity int) (*Buffer, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidCapacity, capacity)
	}

	return &Buffer{rb: ringbuffer.New(capacity)}, nil
}

// Cap returns the fixed capacity in bytes.
func (b *Buffer) Cap() int { return b.rb.Capacity() }

// ReadAvail returns the number of bytes written and not yet read.
func (b *Buffer) ReadAvail() int { return b.rb.Length() }

// WriteAvail returns the number of bytes that can be written without
// overwriting unread data.
func (b *Buffer) WriteAvail() int { return b.rb.Free() }

// Write appends all of p, wrapping at the end of the storage. It returns
// ErrOverflow, and writes nothing, when len(p) exceeds WriteAvail.
func (b *Buffer) Write(p []byte) error {
	if len(p) == 0 {
		return nil
	}
	if free := b.rb.Free(); len(p) > free {
		return fmt.Errorf("%w: need %d bytes, %d free", ErrOverflow, len(p), free)
	}

	n, err := b.rb.Write(p)
	if err != nil {
		return fmt.Errorf("%w", err)
	}
	if n != len(p) {
		return fmt.Errorf("%w: short write %d of %d", ErrOverflow, n, len(p))
	}

	return nil
}

// Read fills all of p from the read cursor. It returns ErrUnderflow, and
// consumes nothing, when len(p) exceeds ReadAvail.
func (b *Buffer) Read(p []byte) error {
	if len(p) == 0 {
		return nil
	}
	if avail := b.rb.Length(); len(p) > avail {
		return fmt.Errorf("%w: need %d bytes, %d buffered", ErrUnderflow, len(p), avail)
	}

	n, err := b.rb.Read(p)
	if err != nil {
		return fmt.Errorf("%w", err)
	}
	if n != len(p) {
		return fmt.Errorf("%w: short read %d of %d", ErrUnderflow, n, len(p))
	}

	return nil
}

// Discard drops the n oldest buffered bytes.
func (b *Buffer) Discard(n int) error {
	if n <= 0 {
		return nil
	}
	if avail := b.rb.Length(); n > avail {
		return fmt.Errorf("%w: discard %d bytes, %d buffered", ErrUnderflow, n, avail)
	}

	if b.scratch == nil {
		b.scratch = make([]byte, min(discardChunk, b.Cap()))
	}

	for n > 0 {
		step := min(n, len(b.scratch))
		if err := b.Read(b.scratch[:step]); err != nil {
			return err
		}
		n -= step
	}

	return nil
}

// Grow replaces the storage with one of the given capacity, keeping the
// buffered bytes in order. Shrinking is not supported.
func (b *Buffer) Grow(capacity int) error {
	if capacity < b.Cap() {
		return fmt.Errorf("%w: grow to %d below current capacity %d", ErrInvalidCapacity, capacity, b.Cap())
	}
	if capacity == b.Cap() {
		return nil
	}

	pending := make([]byte, b.rb.Length())
	if err := b.Read(pending); err != nil {
		return err
	}

	b.rb = ringbuffer.New(capacity)
	return b.Write(pending)
}

// Reset empties the buffer.
func (b *Buffer) Reset() {
	b.rb.Reset()
}
