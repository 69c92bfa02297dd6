package timebase

import (
	"sync"
	"time"
)

// Fake is a manual time source for tests. Sleep advances time immediately,
// so a loop paced by Sleep runs as fast as the test can drive it.
type Fake struct {
	mu    sync.Mutex
	start time.Time
	now   time.Time
	mhz   uint64
	slept time.Duration
}

// NewFake creates a fake starting at start and counting at mhz.
func NewFake(start time.Time, mhz uint64) *Fake {
	return &Fake{start: start, now: start, mhz: mhz}
}

// Ticks returns the wrapped cycle count since start.
func (f *Fake) Ticks() uint32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return cyclesSince(f.now.Sub(f.start), f.mhz)
}

// Sleep advances the fake by d.
func (f *Fake) Sleep(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
	f.slept += d
}

// Advance moves time forward without counting it as a sleep.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

// Now returns the fake's current time.
func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// Slept returns the total duration passed to Sleep.
func (f *Fake) Slept() time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.slept
}
