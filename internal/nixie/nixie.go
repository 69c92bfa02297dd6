// Package nixie drives the tube board: a chain of shift registers on an SPI
// bus with a latch line and an active-low output enable line.
package nixie

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/sweeney/nixie-clock/internal/gpio"
	"github.com/sweeney/nixie-clock/internal/timebase"
)

// Timing of a single write.
const (
	LatchDelay  = time.Microsecond
	SettleDelay = time.Millisecond
)

// ErrNoSuchTube is returned for a tube position outside the chain.
var ErrNoSuchTube = errors.New("no such tube")

var (
	framesWritten = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nixie_frames_written_total",
		Help: "count of words latched into the shift registers",
	})

	transportErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nixie_transport_errors_total",
		Help: "count of failed shift register writes",
	})
)

// Transport sends bytes to the shift registers. spi.Conn satisfies it.
type Transport interface {
	Tx(w, r []byte) error
}

// Driver writes characters to the tubes.
type Driver struct {
	bus    Transport
	latch  gpio.Output
	oe     gpio.Output
	delay  timebase.Delay
	logger *zap.SugaredLogger
}

// New creates a driver and enables the outputs by driving OE low. The
// outputs stay enabled for the driver's lifetime.
func New(bus Transport, latch, oe gpio.Output, delay timebase.Delay, logger *zap.SugaredLogger) (*Driver, error) {
	if err := oe.SetLow(); err != nil {
		return nil, fmt.Errorf("enable outputs: %w", err)
	}
	return &Driver{
		bus:    bus,
		latch:  latch,
		oe:     oe,
		delay:  delay,
		logger: logger,
	}, nil
}

// write sends one word and pulses the latch.
func (d *Driver) write(word uint32) error {
	b := Bytes(word)
	if err := d.bus.Tx(b[:], nil); err != nil {
		transportErrors.Inc()
		return fmt.Errorf("write %06x: %w", word, err)
	}

	d.delay.Sleep(LatchDelay)
	if err := d.latch.SetHigh(); err != nil {
		transportErrors.Inc()
		return fmt.Errorf("latch high: %w", err)
	}
	d.delay.Sleep(LatchDelay)
	if err := d.latch.SetLow(); err != nil {
		transportErrors.Inc()
		return fmt.Errorf("latch low: %w", err)
	}
	framesWritten.Inc()
	return nil
}

// WriteChar lights c on tube and blanks every other tube.
func (d *Driver) WriteChar(c rune, tube int) error {
	if tube < 0 || tube >= Tubes {
		return fmt.Errorf("write %q to tube %d: %w", c, tube, ErrNoSuchTube)
	}
	word, ok := Encode(c, tube)
	if !ok && c != ' ' {
		d.logger.Debugw("No cathode for character", "char", string(c), "tube", tube)
	}
	return d.write(word)
}

// DisplayStr multiplexes s across the tubes, one character per tube starting
// at tube 0, holding each for SettleDelay. Every character is attempted; the
// returned error combines all failures. s must fit the tubes.
func (d *Driver) DisplayStr(s string) error {
	var err error
	tube := 0
	for _, c := range s {
		err = multierr.Append(err, d.WriteChar(c, tube))
		d.delay.Sleep(SettleDelay)
		tube++
	}
	return err
}

// TurnOff blanks every tube.
func (d *Driver) TurnOff() error {
	if err := d.write(0); err != nil {
		return fmt.Errorf("turn off: %w", err)
	}
	return nil
}
