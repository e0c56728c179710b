// SPDX-License-Identifier: EPL-2.0

package audio

import "errors"

var (
	ErrInvalidDstSize = errors.New("dst size must be multiple of channels")

	// ErrUnknownFormat indicates no registered decoder matches the input.
	ErrUnknownFormat = errors.New("unknown audio format")

	// ErrInvalidChannels indicates a channel count below one.
	ErrInvalidChannels = errors.New("invalid channel count")

	// ErrInvalidRate indicates a sample rate below one.
	ErrInvalidRate = errors.New("invalid sample rate")
)
