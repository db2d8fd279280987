//go:build !linux

package gpio

import "errors"

// DefaultChip is the GPIO chip carrying the 40-pin header on a Raspberry Pi.
const DefaultChip = "gpiochip0"

// Chip is not available on non-Linux platforms.
type Chip struct{}

// OpenChip returns an error on non-Linux platforms.
func OpenChip(name string) (*Chip, error) {
	return nil, errors.New("gpio: not supported on this platform (requires Linux)")
}

// Open is not implemented on non-Linux platforms.
func (c *Chip) Open(n int) (Pin, error) {
	return nil, errors.New("gpio: not supported")
}

// Close is not implemented on non-Linux platforms.
func (c *Chip) Close() error {
	return nil
}
