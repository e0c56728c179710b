// SPDX-License-Identifier: EPL-2.0

package device

import "errors"

var (
	// ErrIncompatibleFormat indicates the device could not be opened with a
	// sample encoding the player can produce.
	ErrIncompatibleFormat = errors.New("incompatible device format")

	// ErrInvalidFormat indicates a malformed requested format.
	ErrInvalidFormat = errors.New("invalid device format")

	// ErrDeviceNotFound indicates no playback device matched the selector.
	ErrDeviceNotFound = errors.New("playback device not found")

	// ErrUnknownBackend indicates an unsupported audio backend name.
	ErrUnknownBackend = errors.New("unknown audio backend")

	// ErrStreamClosed is returned when starting a closed stream.
	ErrStreamClosed = errors.New("device stream closed")
)
