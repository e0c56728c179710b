// SPDX-License-Identifier: EPL-2.0

// Package device opens playback streams that pull audio through a callback.
//
// Two backends exist: Malgo drives a real output device through miniaudio,
// and Simulated calls the callback from a clock goroutine for tests and
// offline rendering.
package device

// Callback fills dst with exactly len(dst) bytes of audio. It runs on the
// device's real-time thread and must not block, allocate, or perform I/O.
type Callback func(dst []byte)

// Backend opens playback streams.
type Backend interface {
	// Open prepares a stream for the requested format. The returned stream's
	// Format reports what the device actually negotiated.
	Open(requested Format, cb Callback) (Stream, error)
}

// Stream is an opened playback device.
type Stream interface {
	Format() Format
	Start() error
	// Stop halts callbacks. No callback runs after Stop returns.
	Stop() error
	Close() error
}

// Info describes an enumerated playback device.
type Info struct {
	Index   int    `json:"index"`
	Name    string `json:"name"`
	ID      string `json:"id"`
	Default bool   `json:"default"`
}
