// SPDX-License-Identifier: EPL-2.0

package coordinator

import (
	"fmt"
	"strings"
	"time"
)

// OverflowPolicy selects what PushSamples does with a chunk that still does
// not fit after the bounded wait.
type OverflowPolicy string

const (
	PolicyReject     OverflowPolicy = "reject"
	PolicyDropNewest OverflowPolicy = "drop-newest"
	PolicyDropOldest OverflowPolicy = "drop-oldest"
	PolicyGrow       OverflowPolicy = "grow"
)

// ParsePolicy maps a configuration string to a policy, ignoring case and
// surrounding space. The empty string selects PolicyReject.
func ParsePolicy(s string) (OverflowPolicy, error) {
	switch p := OverflowPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return PolicyReject, nil
	case PolicyReject, PolicyDropNewest, PolicyDropOldest, PolicyGrow:
		return p, nil
	default:
		return "", fmt.Errorf("%w: unknown overflow policy %q", ErrInvalidConfig, s)
	}
}

const (
	DefaultThrottleTimeout = 5 * time.Second
	DefaultHighWaterFrames = 8
	DefaultLowWaterFrames  = 4
	DefaultCapacityFrames  = 16
)

// Config sizes a Coordinator. Sizes are in bytes; FrameSize is the device
// period in bytes.
type Config struct {
	Capacity        int
	FrameSize       int
	HighWater       int
	LowWater        int
	ThrottleTimeout time.Duration
	OverflowPolicy  OverflowPolicy

	// MaxCapacity caps PolicyGrow. Zero means four times Capacity.
	MaxCapacity int
}

// ForPeriod returns the default configuration for a device period of
// periodBytes.
func ForPeriod(periodBytes int) Config {
	return Config{
		Capacity:  DefaultCapacityFrames * periodBytes,
		FrameSize: periodBytes,
	}.withDefaults()
}

func (c Config) withDefaults() Config {
	if c.HighWater == 0 {
		c.HighWater = DefaultHighWaterFrames * c.FrameSize
	}
	if c.LowWater == 0 {
		c.LowWater = DefaultLowWaterFrames * c.FrameSize
	}
	if c.ThrottleTimeout == 0 {
		c.ThrottleTimeout = DefaultThrottleTimeout
	}
	if c.OverflowPolicy == "" {
		c.OverflowPolicy = PolicyReject
	}
	if c.MaxCapacity == 0 {
		c.MaxCapacity = 4 * c.Capacity
	}
	return c
}

// Validate reports inconsistent sizes. Zero fields are validated after
// defaults are applied.
func (c Config) Validate() error {
	c = c.withDefaults()

	switch {
	case c.Capacity <= 0:
		return fmt.Errorf("%w: capacity %d", ErrInvalidConfig, c.Capacity)
	case c.FrameSize <= 0:
		return fmt.Errorf("%w: frame size %d", ErrInvalidConfig, c.FrameSize)
	case c.LowWater <= 0 || c.HighWater <= 0:
		return fmt.Errorf("%w: water marks low=%d high=%d", ErrInvalidConfig, c.LowWater, c.HighWater)
	case c.LowWater >= c.HighWater:
		return fmt.Errorf("%w: low water %d not below high water %d", ErrInvalidConfig, c.LowWater, c.HighWater)
	case c.HighWater > c.Capacity:
		return fmt.Errorf("%w: high water %d exceeds capacity %d", ErrInvalidConfig, c.HighWater, c.Capacity)
	case c.ThrottleTimeout < 0:
		return fmt.Errorf("%w: throttle timeout %s", ErrInvalidConfig, c.ThrottleTimeout)
	case c.MaxCapacity < c.Capacity:
		return fmt.Errorf("%w: max capacity %d below capacity %d", ErrInvalidConfig, c.MaxCapacity, c.Capacity)
	}

	if _, err := ParsePolicy(string(c.OverflowPolicy)); err != nil {
		return err
	}

	return nil
}
