// SPDX-License-Identifier: EPL-2.0

// Package coordinator implements the backpressure protocol between the
// decoding producer and the playback callback.
//
// A Coordinator owns one ring.Buffer guarded by a mutex. The producer calls
// PushSamples, which may block; the device calls PullSamples, which never
// waits for the producer.
//
// # Thresholds
//
// Two fill levels give the protocol hysteresis:
//
//   - HighWater: after a write that leaves at least HighWater bytes buffered,
//     the producer waits until the consumer signals or ThrottleTimeout
//     elapses.
//   - LowWater: a pull that leaves LowWater bytes or fewer buffered signals
//     the producer.
//
// The signal is a channel with room for one token. The consumer sends without
// blocking while holding the mutex, so a signal can be coalesced but never
// lost between the producer's check and its wait.
//
// # Overflow
//
// When a chunk does not fit even after waiting, the configured
// OverflowPolicy decides: reject it, drop it, evict the oldest bytes, or grow
// the buffer up to MaxCapacity.
//
// # End of stream
//
// CloseWrite marks the end of input. Drained returns once every buffered byte
// was pulled. Close releases any waiter and turns later pulls into silence.
package coordinator
