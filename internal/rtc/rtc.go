// Package rtc reads and sets the battery-backed real time clock.
package rtc

import (
	"fmt"
	"time"

	"github.com/sweeney/nixie-clock/internal/logic"
)

// Date is a calendar date as stored by the RTC.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// String formats the date as YYYY-MM-DD.
func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// RTC is a real time clock.
type RTC interface {
	// ReadTime returns the current time of day.
	ReadTime() (logic.TimeOfDay, error)

	// ReadDate returns the current date.
	ReadDate() (Date, error)

	// SetDateTime sets the date and time of day.
	SetDateTime(d Date, t logic.TimeOfDay) error
}

func validate(d Date, t logic.TimeOfDay) error {
	if t.Hour < 0 || t.Hour > logic.MaxHour ||
		t.Minute < 0 || t.Minute > logic.MaxMinute ||
		t.Second < 0 || t.Second > logic.MaxSecond {
		return fmt.Errorf("invalid time %s", t)
	}
	if d.Year < 2000 || d.Year > 2199 || d.Month < time.January || d.Month > time.December || d.Day < 1 || d.Day > 31 {
		return fmt.Errorf("invalid date %s", d)
	}
	return nil
}
