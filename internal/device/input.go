// Package device implements debounced and smoothed input devices on top of
// raw GPIO pins: plain digital inputs with edge callbacks, a windowed
// majority filter sampled in the background, and the sensors built from
// them (buttons, motion, line, light and distance sensors).
package device

import (
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/sweeney/sensord/internal/gpio"
)

// InputDevice is a pin configured as an input with a pull resistor and a
// polarity. It is the base of every sensor in this package.
type InputDevice struct {
	pin        gpio.Pin
	name       string
	pullUp     bool
	activeHigh bool
	registry   *Registry
	ownPin     bool
	log        zerolog.Logger

	closeOnce sync.Once
	closed    chan struct{}
}

// NewInputDevice reserves pin and configures it as an input. By default the
// pin is pulled down and active when high; WithPullUp(true) pulls it up and
// makes it active when low.
func NewInputDevice(pin gpio.Pin, opts ...Option) (*InputDevice, error) {
	return newInputDevice(pin, newOptions(nil, opts))
}

func newInputDevice(pin gpio.Pin, o *options) (*InputDevice, error) {
	if pin == nil {
		return nil, fmt.Errorf("%w: no pin", ErrInvalidValue)
	}

	var activeHigh bool
	switch {
	case o.activeHigh != nil:
		activeHigh = *o.activeHigh
	case o.pull == gpio.PullFloating:
		return nil, fmt.Errorf("%w: a floating input needs an explicit active state", ErrInvalidValue)
	default:
		activeHigh = o.pull != gpio.PullUp
	}

	name := o.name
	if name == "" {
		name = pin.Name()
	}
	d := &InputDevice{
		pin:        pin,
		name:       name,
		pullUp:     o.pull == gpio.PullUp,
		activeHigh: activeHigh,
		registry:   o.registry,
		ownPin:     o.ownPins,
		log:        log.With().Str("device", name).Str("pin", pin.Name()).Logger(),
		closed:     make(chan struct{}),
	}

	if err := d.registry.Reserve(d, pin); err != nil {
		return nil, err
	}
	if err := d.configure(o.pull); err != nil {
		d.registry.Release(d, pin)
		return nil, err
	}
	return d, nil
}

func (d *InputDevice) configure(pull gpio.Pull) error {
	if fixed, ok := d.pin.FixedPull(); ok && fixed != pull {
		return fmt.Errorf("configure %s: %w: pulled %s, requested %s", d.pin.Name(), gpio.ErrPinFixedPull, fixed, pull)
	}
	if err := d.pin.SetFunction(gpio.Input); err != nil {
		return fmt.Errorf("configure %s: %w", d.pin.Name(), err)
	}
	if d.pin.Pull() != pull {
		if err := d.pin.SetPull(pull); err != nil {
			return fmt.Errorf("configure %s: %w", d.pin.Name(), err)
		}
	}
	return nil
}

// Pin returns the underlying pin.
func (d *InputDevice) Pin() gpio.Pin { return d.pin }

// Name returns the device name.
func (d *InputDevice) Name() string { return d.name }

// PullUp reports whether the pin is pulled up.
func (d *InputDevice) PullUp() bool { return d.pullUp }

// ActiveHigh reports whether the device is active when the pin reads high.
func (d *InputDevice) ActiveHigh() bool { return d.activeHigh }

// Closed reports whether Close has been called.
func (d *InputDevice) Closed() bool {
	select {
	case <-d.closed:
		return true
	default:
		return false
	}
}

// IsActive reads the pin and applies the device polarity. Read errors are
// logged and report inactive.
func (d *InputDevice) IsActive() bool {
	active, err := d.readActive()
	if err != nil {
		if !errors.Is(err, ErrDeviceClosed) {
			d.log.Warn().Err(err).Msg("read failed")
		}
		return false
	}
	return active
}

// Value returns 1 when active and 0 otherwise.
func (d *InputDevice) Value() float64 {
	if d.IsActive() {
		return 1
	}
	return 0
}

func (d *InputDevice) readActive() (bool, error) {
	if d.Closed() {
		return false, ErrDeviceClosed
	}
	high, err := d.pin.Read()
	if err != nil {
		return false, err
	}
	return high == d.activeHigh, nil
}

func (d *InputDevice) String() string {
	if d.Closed() {
		return "InputDevice(closed)"
	}
	return fmt.Sprintf("InputDevice(%s, pull_up=%t, is_active=%t)", d.pin.Name(), d.pullUp, d.IsActive())
}

// Close releases the pin reservation and unblocks waiters. It is safe to
// call more than once.
func (d *InputDevice) Close() error {
	var err error
	d.closeOnce.Do(func() {
		close(d.closed)
		err = d.release()
	})
	return err
}

func (d *InputDevice) release() error {
	var errs []error
	if err := d.pin.SetEdgeHandler(gpio.EdgeNone, nil); err != nil && !errors.Is(err, gpio.ErrPinClosed) {
		errs = append(errs, fmt.Errorf("clear edge handler: %w", err))
	}
	if d.ownPin {
		if err := d.pin.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", d.pin.Name(), err))
		}
	}
	d.registry.Release(d, d.pin)
	return errors.Join(errs...)
}
