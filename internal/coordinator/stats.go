// SPDX-License-Identifier: EPL-2.0

package coordinator

// Stats is a point-in-time view of the coordinator counters.
type Stats struct {
	Capacity  int `json:"capacity"`
	Fill      int `json:"fill"`
	HighWater int `json:"high_water"`
	LowWater  int `json:"low_water"`

	BytesWritten uint64 `json:"bytes_written"`
	BytesRead    uint64 `json:"bytes_read"`
	Pulls        uint64 `json:"pulls"`

	// Underruns counts pulls that were short before end of stream.
	Underruns    uint64 `json:"underruns"`
	SilenceBytes uint64 `json:"silence_bytes"`

	// TailSilenceBytes is the padding delivered after end of stream.
	TailSilenceBytes uint64 `json:"tail_silence_bytes"`

	ThrottleWaits    uint64 `json:"throttle_waits"`
	ThrottleTimeouts uint64 `json:"throttle_timeouts"`
	Overflows        uint64 `json:"overflows"`
	DroppedBytes     uint64 `json:"dropped_bytes"`
	Grows            uint64 `json:"grows"`

	EndOfStream bool `json:"end_of_stream"`
	Closed      bool `json:"closed"`
}
