// Package timebase provides the clock's notion of time: a wrapping 32-bit
// cycle counter in the manner of a Cortex-M DWT, plus blocking delays.
// The real implementation is driven by github.com/benbjohnson/clock so tests
// can substitute a mock.
package timebase

import (
	"time"

	"github.com/benbjohnson/clock"
)

// DefaultMHz is the core rate the cycle counter emulates.
const DefaultMHz = 72

// Delay pauses the caller.
type Delay interface {
	Sleep(d time.Duration)
}

// Source is a 32-bit cycle counter running at MHz cycles per microsecond,
// measured from the moment it was created. It wraps about every 59.65 s at
// 72 MHz.
type Source struct {
	clk   clock.Clock
	start time.Time
	mhz   uint64
}

// New creates a cycle counter on clk. A nil clk uses the wall clock.
func New(clk clock.Clock, mhz uint64) *Source {
	if clk == nil {
		clk = clock.New()
	}
	return &Source{clk: clk, start: clk.Now(), mhz: mhz}
}

// Ticks returns the counter value. Only the low 32 bits of the elapsed cycle
// count are kept, so the 64-bit product may overflow harmlessly.
func (s *Source) Ticks() uint32 {
	return cyclesSince(s.clk.Since(s.start), s.mhz)
}

// Sleep blocks for d on the underlying clock.
func (s *Source) Sleep(d time.Duration) {
	s.clk.Sleep(d)
}

// Now returns the current time of the underlying clock.
func (s *Source) Now() time.Time {
	return s.clk.Now()
}

// MHz returns the counter rate.
func (s *Source) MHz() uint64 {
	return s.mhz
}

func cyclesSince(elapsed time.Duration, mhz uint64) uint32 {
	if elapsed < 0 {
		return 0
	}
	us := uint64(elapsed / time.Microsecond)
	frac := uint64(elapsed % time.Microsecond)
	return uint32(us*mhz + frac*mhz/1000)
}

// MockDelay advances a mock clock instead of sleeping.
type MockDelay struct {
	Mock *clock.Mock
}

// Sleep moves the mock clock forward by d.
func (m MockDelay) Sleep(d time.Duration) {
	m.Mock.Add(d)
}
