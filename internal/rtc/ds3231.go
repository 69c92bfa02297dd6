package rtc

import (
	"fmt"
	"time"

	"periph.io/x/conn/v3/i2c"

	"github.com/sweeney/nixie-clock/internal/logic"
)

// DS3231Addr is the fixed I2C address of the DS3231.
const DS3231Addr = 0x68

// Register map.
const (
	regSeconds = 0x00
	regDay     = 0x03
)

const (
	hour12   = 0x40
	hourPM   = 0x20
	century  = 0x80
	monthMax = 0x1f
)

// DS3231 is a Maxim DS3231 on an I2C bus.
type DS3231 struct {
	dev *i2c.Dev
}

// NewDS3231 returns a DS3231 at addr on bus.
func NewDS3231(bus i2c.Bus, addr uint16) *DS3231 {
	return &DS3231{dev: &i2c.Dev{Bus: bus, Addr: addr}}
}

// ReadTime returns the current time of day in 24 hour form, whatever mode the
// chip is in.
func (r *DS3231) ReadTime() (logic.TimeOfDay, error) {
	var b [3]byte
	if err := r.dev.Tx([]byte{regSeconds}, b[:]); err != nil {
		return logic.TimeOfDay{}, fmt.Errorf("read time: %w", err)
	}
	return logic.TimeOfDay{
		Hour:   decodeHour(b[2]),
		Minute: fromBCD(b[1] & 0x7f),
		Second: fromBCD(b[0] & 0x7f),
	}, nil
}

// ReadDate returns the current date.
func (r *DS3231) ReadDate() (Date, error) {
	var b [4]byte
	if err := r.dev.Tx([]byte{regDay}, b[:]); err != nil {
		return Date{}, fmt.Errorf("read date: %w", err)
	}
	year := 2000 + fromBCD(b[3])
	if b[2]&century != 0 {
		year += 100
	}
	return Date{
		Year:  year,
		Month: time.Month(fromBCD(b[2] & monthMax)),
		Day:   fromBCD(b[1] & 0x3f),
	}, nil
}

// SetDateTime writes the date and time in one transaction, leaving the chip
// in 24 hour mode.
func (r *DS3231) SetDateTime(d Date, t logic.TimeOfDay) error {
	if err := validate(d, t); err != nil {
		return fmt.Errorf("set date time: %w", err)
	}
	month := toBCD(int(d.Month))
	if d.Year >= 2100 {
		month |= century
	}
	weekday := time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC).Weekday()
	w := []byte{
		regSeconds,
		toBCD(t.Second),
		toBCD(t.Minute),
		toBCD(t.Hour),
		byte(weekday) + 1,
		toBCD(d.Day),
		month,
		toBCD(d.Year % 100),
	}
	if err := r.dev.Tx(w, nil); err != nil {
		return fmt.Errorf("set date time: %w", err)
	}
	return nil
}

func decodeHour(b byte) int {
	if b&hour12 == 0 {
		return fromBCD(b & 0x3f)
	}
	h := fromBCD(b&0x1f) % 12
	if b&hourPM != 0 {
		h += 12
	}
	return h
}

func fromBCD(b byte) int {
	return int(b>>4)*10 + int(b&0x0f)
}

func toBCD(v int) byte {
	return byte(v/10)<<4 | byte(v%10)
}
