package logic

import "time"

// TickSource is a free-running hardware counter that wraps at 2^32.
type TickSource interface {
	Ticks() uint32
}

// Counter extends a wrapping 32-bit tick counter into a monotonic 64-bit
// cycle count. Update must be called at least once per counter period; two
// wraps between calls cannot be detected.
type Counter struct {
	Cycles    uint64 // extended count
	WrapCount uint32 // times the raw counter has rolled over
	LastRaw   uint32 // last observed raw value

	src TickSource
}

// NewCounter creates a counter reading from src. Cycles starts at zero.
func NewCounter(src TickSource) *Counter {
	return &Counter{src: src}
}

// Update samples the tick source and returns the new cycle count.
func (c *Counter) Update() uint64 {
	raw := c.src.Ticks()
	if raw < c.LastRaw {
		c.WrapCount++
	}
	c.LastRaw = raw
	c.Cycles = uint64(c.WrapCount)<<32 | uint64(raw)
	return c.Cycles
}

// MsToCycles converts milliseconds to cycles of a clock running at mhz.
func MsToCycles(ms, mhz uint64) uint64 {
	return ms * mhz * 1000
}

// DurationToCycles converts d to cycles of a clock running at mhz.
// Negative durations convert to zero.
func DurationToCycles(d time.Duration, mhz uint64) uint64 {
	if d <= 0 {
		return 0
	}
	return uint64(d/time.Microsecond) * mhz
}
