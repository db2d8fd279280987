package device

import (
	"fmt"
	"sync"
	"time"

	"github.com/sweeney/sensord/internal/gpio"
)

// LightSensor reads a light dependent resistor in series with a capacitor.
// Each sample drains the capacitor, then times how long it takes to charge
// back past the pin's input threshold: the brighter the light, the faster
// the charge. The sample value is 1 - charge/limit, so 1 is bright and 0 is
// dark or slower than the charge time limit.
type LightSensor struct {
	*SmoothedInputDevice

	chargeTimeLimit time.Duration
	dischargeTime   time.Duration

	edgeMu  sync.Mutex
	charged *Event
	riseAt  time.Time
}

// NewLightSensor reserves pin for a light sensor and starts sampling.
func NewLightSensor(pin gpio.Pin, opts ...Option) (*LightSensor, error) {
	o := newOptions([]Option{
		WithQueueLen(5),
		WithSampleInterval(0),
		WithThreshold(0.1),
		WithChargeTimeLimit(10 * time.Millisecond),
		WithDischargeTime(100 * time.Millisecond),
	}, opts)
	if o.chargeTimeLimit <= 0 {
		return nil, fmt.Errorf("%w: charge time limit must be greater than 0", ErrInvalidValue)
	}
	if o.dischargeTime < 0 {
		return nil, fmt.Errorf("%w: discharge time must be 0 or greater", ErrInvalidValue)
	}
	s, err := newSmoothedInputDevice(pin, o, true)
	if err != nil {
		return nil, err
	}
	l := &LightSensor{
		SmoothedInputDevice: s,
		chargeTimeLimit:     o.chargeTimeLimit,
		dischargeTime:       o.dischargeTime,
		charged:             NewEvent(),
	}
	s.source = l.measure
	if err := pin.SetEdgeHandler(gpio.EdgeRising, l.onRise); err != nil {
		s.Close()
		return nil, fmt.Errorf("watch %s: %w", pin.Name(), err)
	}
	if err := s.Start(); err != nil {
		s.Close()
		return nil, err
	}
	return l, nil
}

func (l *LightSensor) onRise(_ bool, t time.Time) {
	l.edgeMu.Lock()
	l.riseAt = t
	l.edgeMu.Unlock()
	l.charged.Set()
}

func (l *LightSensor) measure(stop <-chan struct{}) (float64, error) {
	if err := l.pin.SetFunction(gpio.Output); err != nil {
		return 0, fmt.Errorf("discharge: %w", err)
	}
	if err := l.pin.Write(false); err != nil {
		return 0, fmt.Errorf("discharge: %w", err)
	}
	if l.dischargeTime > 0 {
		t := time.NewTimer(l.dischargeTime)
		select {
		case <-stop:
			t.Stop()
			return 0, errStopped
		case <-t.C:
		}
	}

	l.charged.Clear()
	start := time.Now()
	if err := l.pin.SetFunction(gpio.Input); err != nil {
		return 0, fmt.Errorf("charge: %w", err)
	}
	if !l.charged.waitOrDone(l.chargeTimeLimit, stop) {
		select {
		case <-stop:
			return 0, errStopped
		default:
		}
		l.log.Debug().Msg("no charge within limit")
		return 0, nil
	}

	l.edgeMu.Lock()
	charge := l.riseAt.Sub(start)
	l.edgeMu.Unlock()
	if charge < 0 {
		charge = 0
	}
	ratio := float64(charge) / float64(l.chargeTimeLimit)
	if ratio > 1 {
		ratio = 1
	}
	return 1 - ratio, nil
}

// LightDetected reports whether the smoothed light level reaches the
// threshold.
func (l *LightSensor) LightDetected() bool { return l.IsActive() }

// ChargeTimeLimit returns the longest charge time measured.
func (l *LightSensor) ChargeTimeLimit() time.Duration { return l.chargeTimeLimit }

// WaitForLight blocks until light is detected or timeout elapses.
func (l *LightSensor) WaitForLight(timeout time.Duration) bool { return l.WaitForActive(timeout) }

// WaitForDark blocks until it is dark or timeout elapses.
func (l *LightSensor) WaitForDark(timeout time.Duration) bool { return l.WaitForInactive(timeout) }

func (l *LightSensor) SetWhenLight(h Handler) { l.SetWhenActivated(h) }
func (l *LightSensor) SetWhenDark(h Handler)  { l.SetWhenDeactivated(h) }

func (l *LightSensor) String() string {
	if l.Closed() {
		return "LightSensor(closed)"
	}
	return fmt.Sprintf("LightSensor(%s, value=%.2f, is_active=%t)", l.pin.Name(), l.Value(), l.IsActive())
}
