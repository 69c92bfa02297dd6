//go:build !linux

package gpio

import "errors"

var errUnsupported = errors.New("gpio: not supported on this platform (requires Linux)")

// Chip is not available on non-Linux platforms.
type Chip struct{}

// Line is not available on non-Linux platforms.
type Line struct{}

// OpenChip returns an error on non-Linux platforms.
func OpenChip(name string) (*Chip, error) {
	return nil, errUnsupported
}

// Input is not implemented on non-Linux platforms.
func (c *Chip) Input(offset int) (*Line, error) {
	return nil, errUnsupported
}

// Output is not implemented on non-Linux platforms.
func (c *Chip) Output(offset int, high, openDrain bool) (*Line, error) {
	return nil, errUnsupported
}

// Close is not implemented on non-Linux platforms.
func (c *Chip) Close() error {
	return nil
}

// IsHigh is not implemented on non-Linux platforms.
func (l *Line) IsHigh() (bool, error) {
	return false, errUnsupported
}

// SetHigh is not implemented on non-Linux platforms.
func (l *Line) SetHigh() error {
	return errUnsupported
}

// SetLow is not implemented on non-Linux platforms.
func (l *Line) SetLow() error {
	return errUnsupported
}
