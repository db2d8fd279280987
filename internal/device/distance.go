package device

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/sweeney/sensord/internal/gpio"
)

// SpeedOfSound is the speed of sound in dry air at 20°C, in m/s.
const SpeedOfSound = 343.26

const (
	triggerPulse = 10 * time.Microsecond
	echoRiseWait = time.Second
	echoFallWait = 40 * time.Millisecond
)

// DistanceSensor is an HC-SR04 style ultrasonic ranger. Each sample pulses
// the trigger pin and times the pulse returned on the echo pin. Samples are
// stored as a fraction of MaxDistance; a missing echo reads as max range.
//
// The sensor is active while the smoothed distance is within
// ThresholdDistance.
type DistanceSensor struct {
	*SmoothedInputDevice

	trigger      gpio.Pin
	speedOfSound float64

	// Guarded by SmoothedInputDevice.mu, which the threshold test runs under.
	maxDistance       float64
	thresholdDistance float64

	echoMu         sync.Mutex
	rose, fell     *Event
	low            *Event // set while the echo line is known to be low
	riseAt, fallAt time.Time
}

// NewDistanceSensor reserves the echo and trigger pins and starts sampling.
func NewDistanceSensor(echo, trigger gpio.Pin, opts ...Option) (*DistanceSensor, error) {
	o := newOptions([]Option{
		WithQueueLen(30),
		WithSampleInterval(60 * time.Millisecond),
		WithMaxDistance(1),
		WithThresholdDistance(0.3),
		WithSpeedOfSound(SpeedOfSound),
	}, opts)
	if err := validateMaxDistance(o.maxDistance); err != nil {
		return nil, err
	}
	if o.thresholdDistance <= 0 || o.thresholdDistance > o.maxDistance || math.IsNaN(o.thresholdDistance) {
		return nil, fmt.Errorf("%w: threshold distance %v must be in (0, %v]", ErrInvalidValue, o.thresholdDistance, o.maxDistance)
	}
	if o.speedOfSound <= 0 {
		return nil, fmt.Errorf("%w: speed of sound must be greater than 0", ErrInvalidValue)
	}
	if trigger == nil {
		return nil, fmt.Errorf("%w: no trigger pin", ErrInvalidValue)
	}
	if echo != nil && echo.Name() == trigger.Name() {
		return nil, fmt.Errorf("%w: echo and trigger must be different pins", ErrInvalidValue)
	}

	s, err := newSmoothedInputDevice(echo, o, true)
	if err != nil {
		return nil, err
	}
	if err := s.registry.Reserve(s.InputDevice, trigger); err != nil {
		s.Close()
		return nil, err
	}
	d := &DistanceSensor{
		SmoothedInputDevice: s,
		trigger:             trigger,
		speedOfSound:        o.speedOfSound,
		maxDistance:         o.maxDistance,
		thresholdDistance:   o.thresholdDistance,
		rose:                NewEvent(),
		fell:                NewEvent(),
		low:                 NewEvent(),
	}
	if err := d.setupTrigger(); err != nil {
		d.Close()
		return nil, err
	}
	if err := echo.SetEdgeHandler(gpio.EdgeBoth, d.onEcho); err != nil {
		d.Close()
		return nil, fmt.Errorf("watch %s: %w", echo.Name(), err)
	}
	s.source = d.measure
	s.activeFn = d.inRangeLocked
	if err := s.Start(); err != nil {
		d.Close()
		return nil, err
	}
	return d, nil
}

func validateMaxDistance(m float64) error {
	if m <= 0 || math.IsNaN(m) || math.IsInf(m, 0) {
		return fmt.Errorf("%w: max distance %v must be greater than 0", ErrInvalidValue, m)
	}
	return nil
}

func (d *DistanceSensor) setupTrigger() error {
	if err := d.trigger.SetFunction(gpio.Output); err != nil {
		return fmt.Errorf("configure trigger %s: %w", d.trigger.Name(), err)
	}
	if err := d.trigger.Write(false); err != nil {
		return fmt.Errorf("configure trigger %s: %w", d.trigger.Name(), err)
	}
	return nil
}

func (d *DistanceSensor) onEcho(high bool, t time.Time) {
	d.echoMu.Lock()
	defer d.echoMu.Unlock()
	if high {
		d.low.Clear()
		d.riseAt = t
		d.rose.Set()
		return
	}
	d.low.Set()
	if d.rose.IsSet() {
		d.fallAt = t
		d.fell.Set()
	}
}

func (d *DistanceSensor) measure(stop <-chan struct{}) (float64, error) {
	// A pulse sent while the previous echo is still high would be timed
	// from the wrong edge.
	high, err := d.pin.Read()
	if err != nil {
		return 0, fmt.Errorf("read echo: %w", err)
	}
	if high && !d.low.waitOrDone(echoFallWait, stop) {
		select {
		case <-stop:
			return 0, errStopped
		default:
		}
		return 0, fmt.Errorf("echo %s still high", d.pin.Name())
	}

	d.echoMu.Lock()
	d.rose.Clear()
	d.fell.Clear()
	d.echoMu.Unlock()

	if err := d.trigger.Write(true); err != nil {
		return 0, fmt.Errorf("trigger: %w", err)
	}
	time.Sleep(triggerPulse)
	if err := d.trigger.Write(false); err != nil {
		return 0, fmt.Errorf("trigger: %w", err)
	}

	if !d.rose.waitOrDone(echoRiseWait, stop) {
		return d.noEcho(stop, "no echo received")
	}
	if !d.fell.waitOrDone(echoFallWait, stop) {
		return d.noEcho(stop, "echo did not end")
	}

	d.echoMu.Lock()
	dt := d.fallAt.Sub(d.riseAt)
	d.echoMu.Unlock()

	d.mu.Lock()
	maxDistance := d.maxDistance
	d.mu.Unlock()

	distance := dt.Seconds() * d.speedOfSound / 2
	ratio := distance / maxDistance
	switch {
	case ratio < 0:
		ratio = 0
	case ratio > 1:
		ratio = 1
	}
	d.log.Debug().Dur("echo", dt).Float64("distance", distance).Msg("sample")
	return ratio, nil
}

func (d *DistanceSensor) noEcho(stop <-chan struct{}, msg string) (float64, error) {
	select {
	case <-stop:
		return 0, errStopped
	default:
	}
	d.log.Warn().Msg(msg)
	return 1, nil
}

func (d *DistanceSensor) inRangeLocked(mean float64) bool {
	return mean*d.maxDistance < d.thresholdDistance
}

// Trigger returns the trigger pin.
func (d *DistanceSensor) Trigger() gpio.Pin { return d.trigger }

// Echo returns the echo pin.
func (d *DistanceSensor) Echo() gpio.Pin { return d.pin }

// Distance returns the smoothed distance in metres, between 0 and
// MaxDistance. Before the window can report it returns MaxDistance.
func (d *DistanceSensor) Distance() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.window.Ready(d.partial) {
		return d.maxDistance
	}
	return d.window.Mean() * d.maxDistance
}

// InRange reports whether the smoothed distance is within the threshold.
func (d *DistanceSensor) InRange() bool { return d.IsActive() }

// MaxDistance returns the sensor range in metres.
func (d *DistanceSensor) MaxDistance() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.maxDistance
}

// SetMaxDistance changes the sensor range. A non-positive value fails and
// leaves the range unchanged. The threshold distance is kept unless it
// exceeds the new range, in which case it is clamped to it.
func (d *DistanceSensor) SetMaxDistance(m float64) error {
	if err := validateMaxDistance(m); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.maxDistance = m
	if d.thresholdDistance > m {
		d.thresholdDistance = m
	}
	return nil
}

// ThresholdDistance returns the in-range distance in metres.
func (d *DistanceSensor) ThresholdDistance() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.thresholdDistance
}

// SetThresholdDistance changes the in-range distance. It must be greater
// than 0 and no more than MaxDistance.
func (d *DistanceSensor) SetThresholdDistance(m float64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if m <= 0 || m > d.maxDistance || math.IsNaN(m) {
		return fmt.Errorf("%w: threshold distance %v must be in (0, %v]", ErrInvalidValue, m, d.maxDistance)
	}
	d.thresholdDistance = m
	return nil
}

// WaitForInRange blocks until an object is within the threshold distance or
// timeout elapses.
func (d *DistanceSensor) WaitForInRange(timeout time.Duration) bool { return d.WaitForActive(timeout) }

// WaitForOutOfRange blocks until no object is within the threshold distance
// or timeout elapses.
func (d *DistanceSensor) WaitForOutOfRange(timeout time.Duration) bool {
	return d.WaitForInactive(timeout)
}

func (d *DistanceSensor) SetWhenInRange(h Handler)    { d.SetWhenActivated(h) }
func (d *DistanceSensor) SetWhenOutOfRange(h Handler) { d.SetWhenDeactivated(h) }

func (d *DistanceSensor) String() string {
	if d.Closed() {
		return "DistanceSensor(closed)"
	}
	return fmt.Sprintf("DistanceSensor(echo=%s, trigger=%s, distance=%.3f)", d.pin.Name(), d.trigger.Name(), d.Distance())
}

// Close stops sampling and releases both pins.
func (d *DistanceSensor) Close() error {
	err := d.SmoothedInputDevice.Close()
	var errs []error
	if err != nil {
		errs = append(errs, err)
	}
	if d.ownPin {
		if cerr := d.trigger.Close(); cerr != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", d.trigger.Name(), cerr))
		}
	}
	d.registry.Release(d.InputDevice, d.trigger)
	return errors.Join(errs...)
}
