// SPDX-License-Identifier: EPL-2.0

package ring

import "errors"

var (
	// ErrOverflow indicates a write larger than the free space.
	ErrOverflow = errors.New("ring buffer overflow")

	// ErrUnderflow indicates a read or discard larger than the buffered data.
	ErrUnderflow = errors.New("ring buffer underflow")

	// ErrInvalidCapacity indicates a non-positive or shrinking capacity.
	ErrInvalidCapacity = errors.New("invalid ring buffer capacity")
)
