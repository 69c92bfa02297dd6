//go:build linux

package gpio

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
	"go.uber.org/multierr"
)

const consumer = "nixie-clock"

// Chip owns the lines requested from a Linux GPIO character device.
type Chip struct {
	chip  *gpiocdev.Chip
	lines []*Line
}

// Line is one requested GPIO line.
type Line struct {
	line   *gpiocdev.Line
	offset int
}

// OpenChip opens the named GPIO chip, e.g. "gpiochip0".
func OpenChip(name string) (*Chip, error) {
	chip, err := gpiocdev.NewChip(name, gpiocdev.WithConsumer(consumer))
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}
	return &Chip{chip: chip}, nil
}

// Input requests offset as an input with pull-down, matching Pi boot
// defaults.
func (c *Chip) Input(offset int) (*Line, error) {
	l, err := c.chip.RequestLine(offset, gpiocdev.AsInput, gpiocdev.WithPullDown)
	if err != nil {
		return nil, fmt.Errorf("request input pin %d: %w", offset, err)
	}
	line := &Line{line: l, offset: offset}
	c.lines = append(c.lines, line)
	return line, nil
}

// Output requests offset as an output at the given initial level. Open drain
// outputs only sink current and rely on an external pull-up for high.
func (c *Chip) Output(offset int, high, openDrain bool) (*Line, error) {
	value := 0
	if high {
		value = 1
	}
	opts := []gpiocdev.LineReqOption{gpiocdev.AsOutput(value)}
	if openDrain {
		opts = append(opts, gpiocdev.AsOpenDrain)
	}
	l, err := c.chip.RequestLine(offset, opts...)
	if err != nil {
		return nil, fmt.Errorf("request output pin %d: %w", offset, err)
	}
	line := &Line{line: l, offset: offset}
	c.lines = append(c.lines, line)
	return line, nil
}

// IsHigh reads the line level.
func (l *Line) IsHigh() (bool, error) {
	v, err := l.line.Value()
	if err != nil {
		return false, fmt.Errorf("read pin %d: %w", l.offset, err)
	}
	return v == 1, nil
}

// SetHigh drives the line high.
func (l *Line) SetHigh() error {
	if err := l.line.SetValue(1); err != nil {
		return fmt.Errorf("set pin %d high: %w", l.offset, err)
	}
	return nil
}

// SetLow drives the line low.
func (l *Line) SetLow() error {
	if err := l.line.SetValue(0); err != nil {
		return fmt.Errorf("set pin %d low: %w", l.offset, err)
	}
	return nil
}

// Close releases every line and the chip.
// Lines are reconfigured to input with pull-down (matching Pi boot defaults)
// before closing. For the output enable line this lets the external pull-up
// disable the tubes.
func (c *Chip) Close() error {
	var err error
	for _, l := range c.lines {
		if rerr := l.line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); rerr != nil {
			err = multierr.Append(err, fmt.Errorf("reconfigure pin %d: %w", l.offset, rerr))
		}
		if cerr := l.line.Close(); cerr != nil {
			err = multierr.Append(err, fmt.Errorf("close pin %d: %w", l.offset, cerr))
		}
	}
	c.lines = nil
	if c.chip != nil {
		if cerr := c.chip.Close(); cerr != nil {
			err = multierr.Append(err, fmt.Errorf("close chip: %w", cerr))
		}
	}
	return err
}
