package rtc

import (
	"sync"

	"github.com/sweeney/nixie-clock/internal/logic"
)

// DateTime is one write recorded by Fake.
type DateTime struct {
	Date Date
	Time logic.TimeOfDay
}

// Fake is an in-memory RTC for tests. Its time only changes when set.
type Fake struct {
	mu sync.Mutex

	Date Date
	Time logic.TimeOfDay

	// Err, if set, is returned by the next FailCount calls (every call when
	// FailCount is 0).
	Err       error
	FailCount int

	Reads  int
	writes []DateTime
}

// NewFake creates a fake RTC holding d and t.
func NewFake(d Date, t logic.TimeOfDay) *Fake {
	return &Fake{Date: d, Time: t}
}

func (f *Fake) fail() error {
	if f.Err == nil {
		return nil
	}
	if f.FailCount == 0 {
		return f.Err
	}
	f.FailCount--
	err := f.Err
	if f.FailCount == 0 {
		f.Err = nil
	}
	return err
}

// Set changes the time of day.
func (f *Fake) Set(t logic.TimeOfDay) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Time = t
}

// ReadTime implements RTC.
func (f *Fake) ReadTime() (logic.TimeOfDay, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Reads++
	if err := f.fail(); err != nil {
		return logic.TimeOfDay{}, err
	}
	return f.Time, nil
}

// ReadDate implements RTC.
func (f *Fake) ReadDate() (Date, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail(); err != nil {
		return Date{}, err
	}
	return f.Date, nil
}

// SetDateTime implements RTC.
func (f *Fake) SetDateTime(d Date, t logic.TimeOfDay) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail(); err != nil {
		return err
	}
	f.Date = d
	f.Time = t
	f.writes = append(f.writes, DateTime{Date: d, Time: t})
	return nil
}

// Writes returns a copy of every successful SetDateTime.
func (f *Fake) Writes() []DateTime {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]DateTime(nil), f.writes...)
}

// ReadCount returns the number of ReadTime calls.
func (f *Fake) ReadCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Reads
}
