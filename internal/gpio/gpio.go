// Package gpio provides the raw pin abstraction the sensor devices are built on.
// The real implementation uses the Linux GPIO character device.
// The fake implementations allow testing without hardware.
package gpio

import (
	"errors"
	"fmt"
	"time"
)

// Pin is a single GPIO line. Implementations must be safe for concurrent use:
// edge handlers are invoked from a goroutine owned by the implementation while
// other goroutines read levels or reconfigure the pin.
type Pin interface {
	// Number returns the line offset (BCM numbering on a Raspberry Pi).
	Number() int

	// Name returns a stable identity for the pin, e.g. "GPIO4".
	Name() string

	Function() Function
	SetFunction(f Function) error

	Pull() Pull
	// SetPull changes the bias of an input. It fails with ErrPinFixedPull if
	// the hardware pull of this pin cannot be changed to p.
	SetPull(p Pull) error

	// FixedPull reports the hardware pull of pins whose bias cannot be
	// configured.
	FixedPull() (Pull, bool)

	// Read returns the current level, true = high.
	Read() (bool, error)
	Write(high bool) error

	// SetFrequency enables PWM on the pin at hz, or disables it when hz is 0.
	SetFrequency(hz float64) error
	DutyCycle() (float64, error)
	SetDutyCycle(duty float64) error

	// SetEdgeHandler registers h to be called on the given edges, replacing
	// any previous handler. A nil handler or EdgeNone disables edge delivery.
	SetEdgeHandler(edge Edge, h EdgeHandler) error

	// Close releases the underlying hardware resource.
	Close() error
}

// EdgeHandler receives the new level of a pin and the time the edge was seen.
type EdgeHandler func(high bool, t time.Time)

// Function is the direction of a pin.
type Function int

const (
	Input Function = iota
	Output
)

func (f Function) String() string {
	switch f {
	case Input:
		return "input"
	case Output:
		return "output"
	}
	return fmt.Sprintf("Function(%d)", int(f))
}

// Pull is the bias applied to an input pin.
type Pull int

const (
	PullFloating Pull = iota
	PullUp
	PullDown
)

func (p Pull) String() string {
	switch p {
	case PullFloating:
		return "floating"
	case PullUp:
		return "up"
	case PullDown:
		return "down"
	}
	return fmt.Sprintf("Pull(%d)", int(p))
}

// ParsePull converts "up", "down" or "floating" to a Pull.
func ParsePull(s string) (Pull, error) {
	switch s {
	case "up":
		return PullUp, nil
	case "down":
		return PullDown, nil
	case "floating", "none", "":
		return PullFloating, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrPinInvalidPull, s)
}

// Edge selects which level transitions are delivered to an EdgeHandler.
type Edge int

const (
	EdgeNone Edge = iota
	EdgeRising
	EdgeFalling
	EdgeBoth
)

func (e Edge) String() string {
	switch e {
	case EdgeNone:
		return "none"
	case EdgeRising:
		return "rising"
	case EdgeFalling:
		return "falling"
	case EdgeBoth:
		return "both"
	}
	return fmt.Sprintf("Edge(%d)", int(e))
}

// Matches reports whether a transition to level high is selected by e.
func (e Edge) Matches(high bool) bool {
	switch e {
	case EdgeBoth:
		return true
	case EdgeRising:
		return high
	case EdgeFalling:
		return !high
	}
	return false
}

var (
	// ErrPinFixedPull is returned when the requested pull conflicts with a
	// pull resistor fixed in hardware.
	ErrPinFixedPull = errors.New("gpio: pin has a fixed pull resistor")

	// ErrPinInvalidPull is returned for unknown pull values, or a pull on an
	// output.
	ErrPinInvalidPull = errors.New("gpio: invalid pull")

	// ErrPinInvalidFunction is returned for unknown functions.
	ErrPinInvalidFunction = errors.New("gpio: invalid function")

	// ErrPinPWMUnsupported is returned by pins that cannot generate PWM.
	ErrPinPWMUnsupported = errors.New("gpio: pin does not support PWM")

	// ErrInvalidDutyCycle is returned for duty cycles outside 0.0 to 1.0.
	ErrInvalidDutyCycle = errors.New("gpio: invalid duty cycle")

	// ErrPinClosed is returned by operations on a closed pin.
	ErrPinClosed = errors.New("gpio: pin closed")
)

// ValidateDutyCycle checks that duty is usable as a PWM duty cycle and
// returns the value to apply. Values a hair over 1.0 are treated as 1.0.
func ValidateDutyCycle(duty float64) (float64, error) {
	if duty < 0.0 {
		return 0, fmt.Errorf("%w: %v is negative", ErrInvalidDutyCycle, duty)
	}
	if duty > 1.0 {
		if duty < 1.01 {
			return 1.0, nil
		}
		return 0, fmt.Errorf("%w: %v exceeds 1.0", ErrInvalidDutyCycle, duty)
	}
	return duty, nil
}

// PinName returns the conventional name of a BCM line offset.
func PinName(n int) string {
	return fmt.Sprintf("GPIO%d", n)
}

// Fixed pull-ups on the Raspberry Pi I2C lines (BCM numbering).
var piFixedPullUps = map[int]bool{
	2: true,
	3: true,
}

// HasFixedPullUp reports whether line n has a hardware pull-up on a
// Raspberry Pi.
func HasFixedPullUp(n int) bool {
	return piFixedPullUps[n]
}
