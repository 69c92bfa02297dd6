package main

import (
	"fmt"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"

	"github.com/sweeney/nixie-clock/internal/config"
	"github.com/sweeney/nixie-clock/internal/controller"
	"github.com/sweeney/nixie-clock/internal/gpio"
	"github.com/sweeney/nixie-clock/internal/nixie"
	"github.com/sweeney/nixie-clock/internal/rtc"
	"github.com/sweeney/nixie-clock/internal/timebase"
)

// hardware owns every opened device. Close releases them in reverse order.
type hardware struct {
	chip *gpio.Chip
	spi  *nixie.SPIBus
	i2c  i2c.BusCloser

	clock   *timebase.Source
	inputs  controller.Inputs
	display *nixie.Driver
	rtc     rtc.RTC
}

// openRTC opens only the I2C bus and the RTC behind it.
func openRTC(cfg *config.Config, clock *timebase.Source, logger *zap.SugaredLogger) (rtc.RTC, i2c.BusCloser, error) {
	if _, err := host.Init(); err != nil {
		return nil, nil, fmt.Errorf("init periph host: %w", err)
	}
	bus, err := i2creg.Open(cfg.I2C.Bus)
	if err != nil {
		return nil, nil, fmt.Errorf("open i2c bus %q: %w", cfg.I2C.Bus, err)
	}
	r := rtc.NewRetrying(rtc.NewDS3231(bus, cfg.I2C.Addr), cfg.RTC.Attempts, cfg.RTC.Wait, clock, logger.Named("rtc"))
	return r, bus, nil
}

// openDisplay opens the GPIO chip, the latch and OE lines and the SPI bus,
// and returns a driver with the tubes enabled.
func openDisplay(cfg *config.Config, hw *hardware, logger *zap.SugaredLogger) error {
	chip, err := gpio.OpenChip(cfg.GPIO.Chip)
	if err != nil {
		return err
	}
	hw.chip = chip

	latch, err := chip.Output(cfg.GPIO.Latch, false, false)
	if err != nil {
		return err
	}
	// OE is active low with an external pull-up; start disabled.
	oe, err := chip.Output(cfg.GPIO.OE, true, true)
	if err != nil {
		return err
	}

	bus, err := nixie.OpenSPI(cfg.SPI.Port, cfg.SPIFreq())
	if err != nil {
		return err
	}
	hw.spi = bus

	d, err := nixie.New(bus, latch, oe, hw.clock, logger.Named("nixie"))
	if err != nil {
		return err
	}
	hw.display = d
	return nil
}

// openHardware opens everything the daemon needs. On error the devices
// opened so far are closed.
func openHardware(cfg *config.Config, logger *zap.SugaredLogger) (_ *hardware, err error) {
	hw := &hardware{clock: timebase.New(nil, cfg.Clock.MHz)}
	defer func() {
		if err != nil {
			err = multierr.Append(err, hw.Close())
		}
	}()

	hw.rtc, hw.i2c, err = openRTC(cfg, hw.clock, logger)
	if err != nil {
		return nil, err
	}
	if err := openDisplay(cfg, hw, logger); err != nil {
		return nil, err
	}

	inputs := []struct {
		offset int
		dst    *gpio.Input
	}{
		{cfg.GPIO.Power, &hw.inputs.Power},
		{cfg.GPIO.Mode, &hw.inputs.Mode},
		{cfg.GPIO.Hour, &hw.inputs.Buttons[0]},
		{cfg.GPIO.Minute, &hw.inputs.Buttons[1]},
		{cfg.GPIO.Second, &hw.inputs.Buttons[2]},
	}
	for _, in := range inputs {
		line, err := hw.chip.Input(in.offset)
		if err != nil {
			return nil, err
		}
		*in.dst = line
	}
	return hw, nil
}

// newController builds the loop controller on top of the opened devices.
func (hw *hardware) newController(cfg *config.Config, logger *zap.SugaredLogger) *controller.Controller {
	return controller.New(controller.Config{
		Windows:      cfg.Windows(),
		Schedule:     cfg.Schedule(),
		FrameRepeats: cfg.Clock.FrameRepeats,
	}, hw.clock, hw.clock, hw.inputs, hw.display, hw.rtc, logger.Named("controller"))
}

// Close blanks the tubes and releases every device.
func (hw *hardware) Close() error {
	var err error
	if hw.display != nil {
		err = multierr.Append(err, hw.display.TurnOff())
	}
	if hw.spi != nil {
		err = multierr.Append(err, hw.spi.Close())
	}
	if hw.chip != nil {
		err = multierr.Append(err, hw.chip.Close())
	}
	if hw.i2c != nil {
		err = multierr.Append(err, hw.i2c.Close())
	}
	return err
}
