package gpio

import "sync"

// FakePin is a test double usable as both an Input and an Output.
type FakePin struct {
	mu sync.Mutex

	// Levels contains scripted levels to return. Each call to IsHigh
	// consumes the next one; once exhausted the last is repeated. When
	// Levels is empty, High is returned.
	Levels []bool
	index  int

	// High is the level returned when no script is set.
	High bool

	// ReadError, if set, will be returned by IsHigh.
	ReadError error

	// WriteError, if set, will be returned by SetHigh and SetLow.
	WriteError error

	writes []bool
}

// NewFakePin creates a FakePin reading the given levels in order.
func NewFakePin(levels ...bool) *FakePin {
	return &FakePin{Levels: levels}
}

// Set changes the level returned when no script is set.
func (f *FakePin) Set(high bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.High = high
}

// IsHigh returns the next scripted level.
func (f *FakePin) IsHigh() (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.ReadError != nil {
		return false, f.ReadError
	}
	if len(f.Levels) == 0 {
		return f.High, nil
	}

	level := f.Levels[f.index]
	if f.index < len(f.Levels)-1 {
		f.index++
	}
	return level, nil
}

// SetHigh records a high write.
func (f *FakePin) SetHigh() error {
	return f.write(true)
}

// SetLow records a low write.
func (f *FakePin) SetLow() error {
	return f.write(false)
}

func (f *FakePin) write(level bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.WriteError != nil {
		return f.WriteError
	}
	f.writes = append(f.writes, level)
	f.High = level
	return nil
}

// Writes returns a copy of every level written so far.
func (f *FakePin) Writes() []bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]bool(nil), f.writes...)
}

// Reset resets the pin to the beginning of its script and forgets writes.
func (f *FakePin) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.index = 0
	f.writes = nil
}
