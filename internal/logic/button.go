package logic

import (
	"fmt"
	"time"
)

// Level is a digital input that reads high while the button is held.
type Level interface {
	IsHigh() (bool, error)
}

// Windows holds the button timing thresholds, in cycles.
type Windows struct {
	Debounce    uint64 // minimum cycles between press events
	LongPress   uint64 // continuous high time for a long press
	Consecutive uint64 // presses closer than this are consecutive
}

// Default button timings.
const (
	DefaultDebounce    = 50 * time.Millisecond
	DefaultLongPress   = 650 * time.Millisecond
	DefaultConsecutive = 150 * time.Millisecond
)

// DefaultWindows returns the default timings for a clock running at mhz.
func DefaultWindows(mhz uint64) Windows {
	return Windows{
		Debounce:    DurationToCycles(DefaultDebounce, mhz),
		LongPress:   DurationToCycles(DefaultLongPress, mhz),
		Consecutive: DurationToCycles(DefaultConsecutive, mhz),
	}
}

// Button detects debounced presses, long presses and runs of consecutive
// presses on one input. It is sampled once per loop tick.
type Button struct {
	Raw         bool   // pin level at the last sample
	LongPress   bool   // held for at least LongPress cycles
	LastPress   uint64 // cycle of the last high sample
	Consecutive uint32 // press events spaced closer than the consecutive window

	pressStart uint64
	pressing   bool // pressStart is valid
	windows    Windows
	pin        Level
}

// NewButton creates a button bound to pin.
func NewButton(pin Level, w Windows) *Button {
	return &Button{pin: pin, windows: w}
}

// PressStart returns the cycle at which the current press began, if any.
func (b *Button) PressStart() (uint64, bool) {
	return b.pressStart, b.pressing
}

// Pressed samples the pin at cycle now and reports a press event. Holding the
// button or bouncing on its contacts does not produce further events, since
// every high sample pushes LastPress forward. A read error leaves the state
// untouched.
func (b *Button) Pressed(now uint64) (bool, error) {
	high, err := b.pin.IsHigh()
	if err != nil {
		return false, fmt.Errorf("read button: %w", err)
	}

	b.LongPress = false
	b.Raw = high
	pressed := false

	if high {
		if b.pressing {
			b.LongPress = now-b.pressStart >= b.windows.LongPress
		} else {
			b.pressStart = now
			b.pressing = true
		}

		if now > b.LastPress+b.windows.Debounce {
			pressed = true
		}
		b.LastPress = now
	} else {
		b.pressing = false
	}

	// LastPress has already been moved to now for high samples, so a press
	// event always lands inside the window.
	if now-b.LastPress < b.windows.Consecutive {
		if pressed {
			b.Consecutive++
		}
	} else {
		b.Consecutive = 0
	}

	return pressed, nil
}

// TripleHold reports whether all buttons are long-pressed at once.
func TripleHold(buttons [3]*Button) bool {
	return buttons[0].LongPress && buttons[1].LongPress && buttons[2].LongPress
}
