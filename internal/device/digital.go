package device

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sweeney/sensord/internal/gpio"
)

// DigitalInputDevice is an input whose state follows pin edges directly,
// with an optional bounce time. Edges inside the bounce time are ignored and
// the pin is read again once it has passed, so a state change that only
// bounced is still reported.
type DigitalInputDevice struct {
	*InputDevice
	*notifier

	bounce   time.Duration
	edgeMu   sync.Mutex
	lastEdge time.Time
	settle   *time.Timer // pending re-read after a dropped edge
}

// NewDigitalInputDevice reserves pin and starts listening for edges on it.
func NewDigitalInputDevice(pin gpio.Pin, opts ...Option) (*DigitalInputDevice, error) {
	return newDigitalInputDevice(pin, newOptions(nil, opts))
}

func newDigitalInputDevice(pin gpio.Pin, o *options) (*DigitalInputDevice, error) {
	if o.bounce < 0 {
		return nil, fmt.Errorf("%w: bounce time must be 0 or greater", ErrInvalidValue)
	}
	in, err := newInputDevice(pin, o)
	if err != nil {
		return nil, err
	}
	d := &DigitalInputDevice{
		InputDevice: in,
		notifier:    newNotifier(in.closed, in.log),
		bounce:      o.bounce,
	}
	if err := pin.SetEdgeHandler(gpio.EdgeBoth, d.onEdge); err != nil {
		d.Close()
		return nil, fmt.Errorf("watch %s: %w", pin.Name(), err)
	}
	active, err := d.readActive()
	if err != nil {
		d.Close()
		return nil, fmt.Errorf("read %s: %w", pin.Name(), err)
	}
	d.fire(active, time.Now())
	return d, nil
}

func (d *DigitalInputDevice) onEdge(high bool, t time.Time) {
	if d.bounce > 0 {
		d.edgeMu.Lock()
		if since := t.Sub(d.lastEdge); !d.lastEdge.IsZero() && since < d.bounce {
			if d.settle == nil && !d.Closed() {
				d.settle = time.AfterFunc(d.bounce-since, d.resample)
			}
			d.edgeMu.Unlock()
			return
		}
		d.lastEdge = t
		d.edgeMu.Unlock()
	}
	d.log.Debug().Bool("high", high).Msg("edge")
	d.fire(high == d.activeHigh, t)
}

func (d *DigitalInputDevice) resample() {
	d.edgeMu.Lock()
	d.settle = nil
	d.edgeMu.Unlock()

	active, err := d.readActive()
	if err != nil {
		if !errors.Is(err, ErrDeviceClosed) {
			d.log.Warn().Err(err).Msg("read after bounce failed")
		}
		return
	}
	d.log.Debug().Bool("active", active).Msg("settled")
	d.fire(active, time.Now())
}

// BounceTime returns the bounce time, 0 when disabled.
func (d *DigitalInputDevice) BounceTime() time.Duration { return d.bounce }

func (d *DigitalInputDevice) String() string {
	if d.Closed() {
		return "DigitalInputDevice(closed)"
	}
	return fmt.Sprintf("DigitalInputDevice(%s, pull_up=%t, is_active=%t)", d.pin.Name(), d.pullUp, d.IsActive())
}

// Close stops edge delivery, releases waiters and the pin reservation.
// Queued handlers that have not started are dropped.
func (d *DigitalInputDevice) Close() error {
	d.edgeMu.Lock()
	if d.settle != nil {
		d.settle.Stop()
		d.settle = nil
	}
	d.edgeMu.Unlock()
	err := d.InputDevice.Close()
	d.notifier.close()
	return err
}
