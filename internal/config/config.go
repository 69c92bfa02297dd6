// Package config loads the clock's YAML configuration.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
	"periph.io/x/conn/v3/physic"

	"github.com/sweeney/nixie-clock/internal/gpio"
	"github.com/sweeney/nixie-clock/internal/logic"
	"github.com/sweeney/nixie-clock/internal/nixie"
	"github.com/sweeney/nixie-clock/internal/rtc"
	"github.com/sweeney/nixie-clock/internal/timebase"
)

// Config is the full daemon configuration.
type Config struct {
	GPIO  GPIOConfig  `yaml:"gpio"`
	SPI   SPIConfig   `yaml:"spi"`
	I2C   I2CConfig   `yaml:"i2c"`
	Clock ClockConfig `yaml:"clock"`
	RTC   RTCConfig   `yaml:"rtc"`
	MQTT  MQTTConfig  `yaml:"mqtt"`
	HTTP  HTTPConfig  `yaml:"http"`
	Log   LogConfig   `yaml:"log"`
}

// GPIOConfig holds the chip name and line offsets (BCM numbering).
type GPIOConfig struct {
	Chip   string `yaml:"chip"`
	Power  int    `yaml:"power"`
	Mode   int    `yaml:"mode"`
	Hour   int    `yaml:"hour"`
	Minute int    `yaml:"minute"`
	Second int    `yaml:"second"`
	Latch  int    `yaml:"latch"`
	OE     int    `yaml:"oe"`
}

// SPIConfig selects the shift register bus. An empty port picks the first
// one registered.
type SPIConfig struct {
	Port   string `yaml:"port"`
	FreqHz int64  `yaml:"freq_hz"`
}

// I2CConfig selects the RTC bus.
type I2CConfig struct {
	Bus  string `yaml:"bus"`
	Addr uint16 `yaml:"addr"`
}

// ClockConfig holds the core rate and the time windows.
type ClockConfig struct {
	MHz           uint64        `yaml:"mhz"`
	Debounce      time.Duration `yaml:"debounce"`
	LongPress     time.Duration `yaml:"long_press"`
	Consecutive   time.Duration `yaml:"consecutive"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
	SweepDuration time.Duration `yaml:"sweep_duration"`
	FrameRepeats  int           `yaml:"frame_repeats"`
}

// RTCConfig is the retry policy for RTC operations.
type RTCConfig struct {
	Attempts int           `yaml:"attempts"`
	Wait     time.Duration `yaml:"wait"`
}

// MQTTConfig configures telemetry. An empty broker disables it.
type MQTTConfig struct {
	Broker    string        `yaml:"broker"`
	Heartbeat time.Duration `yaml:"heartbeat"`
}

// HTTPConfig configures the status server. An empty address disables it.
type HTTPConfig struct {
	Addr     string `yaml:"addr"`
	WSBroker string `yaml:"ws_broker"`
}

// LogConfig sets the log level.
type LogConfig struct {
	Level string `yaml:"level"`
}

// DefaultFrameRepeats is how many times each sweep frame is drawn.
const DefaultFrameRepeats = 4

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		GPIO: GPIOConfig{
			Chip:   gpio.DefaultChip,
			Power:  gpio.PinPower,
			Mode:   gpio.PinMode,
			Hour:   gpio.PinHour,
			Minute: gpio.PinMinute,
			Second: gpio.PinSecond,
			Latch:  gpio.PinLatch,
			OE:     gpio.PinOE,
		},
		SPI: SPIConfig{
			FreqHz: int64(nixie.DefaultSPIFreq / physic.Hertz),
		},
		I2C: I2CConfig{
			Addr: rtc.DS3231Addr,
		},
		Clock: ClockConfig{
			MHz:           timebase.DefaultMHz,
			Debounce:      logic.DefaultDebounce,
			LongPress:     logic.DefaultLongPress,
			Consecutive:   logic.DefaultConsecutive,
			SweepInterval: logic.DefaultSweepInterval,
			SweepDuration: logic.DefaultSweepDuration,
			FrameRepeats:  DefaultFrameRepeats,
		},
		RTC: RTCConfig{
			Attempts: rtc.DefaultAttempts,
			Wait:     rtc.DefaultWait,
		},
		MQTT: MQTTConfig{
			Heartbeat: 15 * time.Minute,
		},
		HTTP: HTTPConfig{
			Addr: ":80",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads the YAML file at path over the defaults and validates the
// result. An empty path returns the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML over the defaults and validates the result. Unknown
// keys are rejected.
func Parse(data []byte) (*Config, error) {
	c := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate reports every invalid field.
func (c *Config) Validate() error {
	var err error

	pins := map[string]int{
		"power":  c.GPIO.Power,
		"mode":   c.GPIO.Mode,
		"hour":   c.GPIO.Hour,
		"minute": c.GPIO.Minute,
		"second": c.GPIO.Second,
		"latch":  c.GPIO.Latch,
		"oe":     c.GPIO.OE,
	}
	seen := make(map[int]string, len(pins))
	for _, name := range []string{"power", "mode", "hour", "minute", "second", "latch", "oe"} {
		offset := pins[name]
		if offset < 0 || offset > gpio.MaxOffset {
			err = multierr.Append(err, fmt.Errorf("gpio.%s: offset %d out of range [0, %d]", name, offset, gpio.MaxOffset))
			continue
		}
		if other, ok := seen[offset]; ok {
			err = multierr.Append(err, fmt.Errorf("gpio.%s: offset %d already used by gpio.%s", name, offset, other))
			continue
		}
		seen[offset] = name
	}
	if c.GPIO.Chip == "" {
		err = multierr.Append(err, errors.New("gpio.chip: must not be empty"))
	}

	if c.SPI.FreqHz <= 0 {
		err = multierr.Append(err, fmt.Errorf("spi.freq_hz: must be positive, got %d", c.SPI.FreqHz))
	}
	if c.I2C.Addr < 0x03 || c.I2C.Addr > 0x77 {
		err = multierr.Append(err, fmt.Errorf("i2c.addr: %#x is not a 7-bit device address", c.I2C.Addr))
	}

	if c.Clock.MHz == 0 {
		err = multierr.Append(err, errors.New("clock.mhz: must be positive"))
	}
	windows := []struct {
		name string
		d    time.Duration
	}{
		{"clock.debounce", c.Clock.Debounce},
		{"clock.long_press", c.Clock.LongPress},
		{"clock.consecutive", c.Clock.Consecutive},
		{"clock.sweep_interval", c.Clock.SweepInterval},
		{"clock.sweep_duration", c.Clock.SweepDuration},
		{"rtc.wait", c.RTC.Wait},
	}
	for _, w := range windows {
		if w.d <= 0 {
			err = multierr.Append(err, fmt.Errorf("%s: must be positive, got %v", w.name, w.d))
		}
	}
	if c.Clock.FrameRepeats < 1 {
		err = multierr.Append(err, fmt.Errorf("clock.frame_repeats: must be at least 1, got %d", c.Clock.FrameRepeats))
	}
	if c.RTC.Attempts < 1 {
		err = multierr.Append(err, fmt.Errorf("rtc.attempts: must be at least 1, got %d", c.RTC.Attempts))
	}
	if c.MQTT.Heartbeat < 0 {
		err = multierr.Append(err, fmt.Errorf("mqtt.heartbeat: must not be negative, got %v", c.MQTT.Heartbeat))
	}

	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Windows converts the button windows to cycles.
func (c *Config) Windows() logic.Windows {
	return logic.Windows{
		Debounce:    logic.DurationToCycles(c.Clock.Debounce, c.Clock.MHz),
		LongPress:   logic.DurationToCycles(c.Clock.LongPress, c.Clock.MHz),
		Consecutive: logic.DurationToCycles(c.Clock.Consecutive, c.Clock.MHz),
	}
}

// SPIFreq returns the SPI clock rate.
func (c *Config) SPIFreq() physic.Frequency {
	return physic.Frequency(c.SPI.FreqHz) * physic.Hertz
}

// Schedule converts the sweep timings to cycles.
func (c *Config) Schedule() logic.Schedule {
	return logic.Schedule{
		Interval: logic.DurationToCycles(c.Clock.SweepInterval, c.Clock.MHz),
		Duration: logic.DurationToCycles(c.Clock.SweepDuration, c.Clock.MHz),
	}
}
