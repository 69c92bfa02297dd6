package logic

import "fmt"

// Field limits for the adjustable time.
const (
	MaxHour   = 23
	MaxMinute = 59
	MaxSecond = 59
)

// AddWithRollover adds add to init. If the sum exceeds max the result rolls
// over to min + sum - max.
//
//	AddWithRollover(5, 7, 0, 10) == 2
func AddWithRollover(init, add, min, max int) int {
	sum := init + add
	if sum > max {
		return min + sum - max
	}
	return sum
}

// Adjuster is the time adjust state machine. The mode toggles on the rising
// edge of the triple long press; after a toggle the gesture must be released
// before it can toggle again, so one continuous hold never flips the mode
// twice.
type Adjuster struct {
	Candidate TimeOfDay // time being edited while adjusting

	mode    Mode
	latched bool // a toggle fired and the hold has not been released since
}

// NewAdjuster returns an adjuster in normal mode.
func NewAdjuster() *Adjuster {
	return &Adjuster{mode: ModeNormal}
}

// Mode returns the current mode.
func (a *Adjuster) Mode() Mode {
	return a.mode
}

// Active reports whether the clock is in adjust mode.
func (a *Adjuster) Active() bool {
	return a.mode == ModeAdjusting
}

// Gesture feeds the current state of the triple hold and reports whether the
// mode toggled on this sample.
func (a *Adjuster) Gesture(hold bool) bool {
	if !hold {
		a.latched = false
		return false
	}
	if a.latched {
		return false
	}
	a.latched = true
	if a.mode == ModeNormal {
		a.mode = ModeAdjusting
	} else {
		a.mode = ModeNormal
	}
	return true
}

// Begin loads the candidate time on entry to adjust mode.
func (a *Adjuster) Begin(t TimeOfDay) {
	a.Candidate = t
}

// Apply increments the hour, minute or second for a press event on button
// 0, 1 or 2. A press only counts while the other two buttons are released,
// so pressing all three to leave adjust mode does not change the time.
// Apply reports whether the candidate changed.
func (a *Adjuster) Apply(pressed, raw [3]bool) bool {
	if !a.Active() {
		return false
	}
	changed := false
	if pressed[0] && !raw[1] && !raw[2] {
		a.Candidate.Hour = AddWithRollover(a.Candidate.Hour, 1, 0, MaxHour)
		changed = true
	}
	if pressed[1] && !raw[2] && !raw[0] {
		a.Candidate.Minute = AddWithRollover(a.Candidate.Minute, 1, 0, MaxMinute)
		changed = true
	}
	if pressed[2] && !raw[0] && !raw[1] {
		a.Candidate.Second = AddWithRollover(a.Candidate.Second, 1, 0, MaxSecond)
		changed = true
	}
	return changed
}

// FormatTime renders t for the tubes: dots between fields in normal mode,
// blanks while adjusting.
func FormatTime(t TimeOfDay, adjusting bool) string {
	sep := "."
	if adjusting {
		sep = " "
	}
	return fmt.Sprintf("%02d%s%02d%s%02d", t.Hour, sep, t.Minute, sep, t.Second)
}
