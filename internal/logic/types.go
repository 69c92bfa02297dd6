// Package logic contains the time-and-input engine of the nixie clock.
// This package has NO external dependencies (no GPIO, SPI, RTC, or time.Sleep).
// Time is always injected as a cycle count.
package logic

import (
	"fmt"
	"time"
)

// Mode is the state of the time adjust controller.
type Mode string

const (
	ModeNormal    Mode = "NORMAL"
	ModeAdjusting Mode = "ADJUSTING"
)

// EventType identifies something the clock did that is worth reporting.
type EventType string

const (
	EventAdjustEnter EventType = "ADJUST_ENTER"
	EventAdjustExit  EventType = "ADJUST_EXIT"
	EventTimeSet     EventType = "TIME_SET"
	EventSweepStart  EventType = "SWEEP_START"
	EventSweepEnd    EventType = "SWEEP_END"
)

// Event is emitted by the controller on mode changes, RTC writes and sweeps.
type Event struct {
	Timestamp  time.Time // wall time, stamped by the caller
	Cycle      uint64
	Type       EventType
	Time       TimeOfDay // candidate time for adjust/time-set events
	Divergence string    // number shown in divergence mode after a sweep
}

// TimeOfDay is an hour/minute/second triple as read from or written to the RTC.
type TimeOfDay struct {
	Hour   int
	Minute int
	Second int
}

// String formats the time as HH:MM:SS.
func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", t.Hour, t.Minute, t.Second)
}

// EventCounts tracks the number of each event type since startup.
type EventCounts struct {
	AdjustEnter int
	AdjustExit  int
	TimeSet     int
	Sweeps      int
}

// Count adds the event to the matching counter.
func (c *EventCounts) Count(e Event) {
	switch e.Type {
	case EventAdjustEnter:
		c.AdjustEnter++
	case EventAdjustExit:
		c.AdjustExit++
	case EventTimeSet:
		c.TimeSet++
	case EventSweepEnd:
		c.Sweeps++
	}
}
