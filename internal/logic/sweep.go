package logic

import (
	"math/rand"
	"time"
)

// Tubes is the number of nixie tubes on the board.
const Tubes = 8

// Characters lists every cathode in the order they are stacked in the tube.
var Characters = [...]rune{'1', '2', '6', '7', '5', '0', '4', '9', '8', '3', '.'}

// DivergenceNumbers are shown in divergence mode. One is picked at random
// each time the anti-poisoning sweep runs.
var DivergenceNumbers = [...]string{
	// Alpha
	"0.337187",
	"0.409420",
	"0.409431",
	"0.456903",
	"0.456914",
	"0.523299",
	"0.523307",
	"0.571015",
	"0.571046",
	"0.571082",

	// Beta
	"1.053649",
	"1.055821",
	"1.064750",
	"1.064756",
	"1.129848",
	"1.129954",
	"1.130205",
	"1.130238",
	"1.130426",
	"1.143688",
	"1.382733",
}

// startPattern puts neighbouring tubes out of phase at the start of a sweep.
var startPattern = [Tubes]int{3, 1, 4, 0, 6, 2, 7, 5}

// Default sweep timings.
const (
	DefaultSweepInterval = 10 * time.Minute
	DefaultSweepDuration = 15 * time.Second
)

// Sweep is one run of the anti-poisoning animation. Each tube walks up and
// down the cathode stack, bouncing one step inside either end.
type Sweep struct {
	Up              [Tubes]bool
	Index           [Tubes]int
	DivergenceIndex int
	DeactivateAt    uint64
	ReactivateAt    uint64
}

// NewSweep starts a sweep at cycle now lasting duration cycles. The
// divergence number is drawn from a generator seeded with now.
func NewSweep(now, duration uint64) *Sweep {
	rng := rand.New(rand.NewSource(int64(now)))
	s := &Sweep{
		DivergenceIndex: rng.Intn(len(DivergenceNumbers)),
		DeactivateAt:    now + duration,
		Index:           startPattern,
	}
	for i := range s.Up {
		s.Up[i] = true
	}
	return s
}

// Done reports whether the sweep has run its course at cycle now.
func (s *Sweep) Done(now uint64) bool {
	return now >= s.DeactivateAt
}

// Advance moves every tube one cathode along.
func (s *Sweep) Advance() {
	last := len(Characters) - 1
	for i := range s.Index {
		if s.Up[i] {
			s.Index[i]++
		} else {
			s.Index[i]--
		}
		switch {
		case s.Index[i] >= last:
			s.Index[i] = last - 1
			s.Up[i] = false
		case s.Index[i] <= 0:
			s.Index[i] = 1
			s.Up[i] = true
		}
	}
}

// Frame returns the characters to show on tubes 0..7.
func (s *Sweep) Frame() string {
	frame := make([]rune, Tubes)
	for i, idx := range s.Index {
		frame[i] = Characters[idx]
	}
	return string(frame)
}

// Divergence returns the divergence number picked for this sweep.
func (s *Sweep) Divergence() string {
	return DivergenceNumbers[s.DivergenceIndex]
}

// Schedule decides when the next sweep is due.
type Schedule struct {
	ActivateAt uint64
	Interval   uint64
	Duration   uint64
}

// Due reports whether a sweep should start at cycle now.
func (s *Schedule) Due(now uint64) bool {
	return now > s.ActivateAt
}

// Start begins a sweep at cycle now.
func (s *Schedule) Start(now uint64) *Sweep {
	return NewSweep(now, s.Duration)
}

// Finish records the end of sw at cycle now and schedules the next one.
func (s *Schedule) Finish(sw *Sweep, now uint64) {
	s.ActivateAt = now + s.Interval
	sw.ReactivateAt = s.ActivateAt
}
