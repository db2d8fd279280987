package device

import (
	"fmt"
	"sync"
	"time"

	"github.com/sweeney/sensord/internal/gpio"
)

// Button is a push button wired between the pin and ground. The pin is
// pulled up by default, so the button is pressed when the pin reads low.
//
// A button held down for HoldTime becomes held and runs the when-held
// handler once, or every HoldTime while pressed when HoldRepeat is set.
type Button struct {
	*DigitalInputDevice

	holdTime   time.Duration
	holdRepeat bool

	holdMu    sync.Mutex
	holdTimer *time.Timer
	holdGen   uint64
	heldSince time.Time
	held      bool
	whenHeld  Handler
}

// NewButton reserves pin for a button.
func NewButton(pin gpio.Pin, opts ...Option) (*Button, error) {
	o := newOptions([]Option{WithPullUp(true), WithHoldTime(time.Second)}, opts)
	if o.holdTime <= 0 {
		return nil, fmt.Errorf("%w: hold time must be greater than 0", ErrInvalidValue)
	}
	d, err := newDigitalInputDevice(pin, o)
	if err != nil {
		return nil, err
	}
	b := &Button{
		DigitalInputDevice: d,
		holdTime:           o.holdTime,
		holdRepeat:         o.holdRepeat,
	}

	d.notifier.mu.Lock()
	d.notifier.onChange = b.onChange
	pressed := d.notifier.last
	d.notifier.mu.Unlock()
	if pressed {
		b.onChange(true, time.Now())
	}
	return b, nil
}

// onChange runs with the notifier lock held.
func (b *Button) onChange(pressed bool, _ time.Time) {
	b.holdMu.Lock()
	defer b.holdMu.Unlock()

	b.holdGen++
	if b.holdTimer != nil {
		b.holdTimer.Stop()
		b.holdTimer = nil
	}
	b.held = false
	b.heldSince = time.Time{}
	if !pressed || b.Closed() {
		return
	}
	gen := b.holdGen
	b.holdTimer = time.AfterFunc(b.holdTime, func() { b.onHold(gen) })
}

func (b *Button) onHold(gen uint64) {
	b.holdMu.Lock()
	defer b.holdMu.Unlock()
	if gen != b.holdGen || b.Closed() {
		return
	}
	if !b.held {
		b.held = true
		b.heldSince = time.Now().Add(-b.holdTime)
	}
	b.log.Debug().Msg("held")
	b.dispatch(b.whenHeld)
	if b.holdRepeat {
		b.holdTimer = time.AfterFunc(b.holdTime, func() { b.onHold(gen) })
	} else {
		b.holdTimer = nil
	}
}

// IsPressed reports whether the button is pressed.
func (b *Button) IsPressed() bool { return b.IsActive() }

// IsHeld reports whether the button has been pressed for at least HoldTime.
func (b *Button) IsHeld() bool {
	b.holdMu.Lock()
	defer b.holdMu.Unlock()
	return b.held
}

// HeldTime returns how long the button has been held, measured from the
// press. ok is false when it is not held.
func (b *Button) HeldTime() (d time.Duration, ok bool) {
	b.holdMu.Lock()
	defer b.holdMu.Unlock()
	if !b.held {
		return 0, false
	}
	return time.Since(b.heldSince), true
}

// HoldTime returns the press duration after which the button is held.
func (b *Button) HoldTime() time.Duration { return b.holdTime }

// HoldRepeat reports whether the held handler repeats while pressed.
func (b *Button) HoldRepeat() bool { return b.holdRepeat }

// WaitForPress blocks until the button is pressed or timeout elapses.
func (b *Button) WaitForPress(timeout time.Duration) bool { return b.WaitForActive(timeout) }

// WaitForRelease blocks until the button is released or timeout elapses.
func (b *Button) WaitForRelease(timeout time.Duration) bool { return b.WaitForInactive(timeout) }

// SetWhenPressed sets the handler run on each press.
func (b *Button) SetWhenPressed(h Handler) { b.SetWhenActivated(h) }

// SetWhenReleased sets the handler run on each release.
func (b *Button) SetWhenReleased(h Handler) { b.SetWhenDeactivated(h) }

// SetWhenHeld sets the handler run when the button becomes held.
func (b *Button) SetWhenHeld(h Handler) {
	b.holdMu.Lock()
	b.whenHeld = h
	b.holdMu.Unlock()
}

func (b *Button) String() string {
	if b.Closed() {
		return "Button(closed)"
	}
	return fmt.Sprintf("Button(%s, pull_up=%t, is_active=%t)", b.pin.Name(), b.pullUp, b.IsActive())
}

// Close cancels any pending hold and closes the device.
func (b *Button) Close() error {
	err := b.DigitalInputDevice.Close()
	b.holdMu.Lock()
	b.holdGen++
	if b.holdTimer != nil {
		b.holdTimer.Stop()
		b.holdTimer = nil
	}
	b.held = false
	b.holdMu.Unlock()
	return err
}
