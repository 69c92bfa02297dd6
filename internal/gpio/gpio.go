// Package gpio provides digital inputs and outputs with hardware abstraction.
// The real implementation uses the Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

// Input is a digital input line.
type Input interface {
	// IsHigh returns the electrical level of the line.
	IsHigh() (bool, error)
}

// Output is a digital output line.
type Output interface {
	SetHigh() error
	SetLow() error
}

// Default line offsets (BCM numbering). Every input uses a pull-down, so a
// switch or button reads high while closed.
const (
	PinPower  = 5  // on/off switch
	PinMode   = 6  // time/divergence switch
	PinHour   = 17 // button 0
	PinMinute = 27 // button 1
	PinSecond = 22 // button 2
	PinLatch  = 25 // shift register latch, push-pull
	PinOE     = 24 // output enable, open drain, active low
)

// DefaultChip is the GPIO character device on a Raspberry Pi.
const DefaultChip = "gpiochip0"

// MaxOffset is the highest line offset on the Pi's main GPIO chip.
const MaxOffset = 53
