package device

import (
	"fmt"
	"math"
	"time"

	"github.com/sweeney/sensord/internal/gpio"
)

// Option configures a device at construction.
type Option func(*options)

type options struct {
	name string

	pull       gpio.Pull
	activeHigh *bool
	bounce     time.Duration

	queueLen  int
	interval  time.Duration
	threshold float64
	partial   bool

	holdTime   time.Duration
	holdRepeat bool

	chargeTimeLimit time.Duration
	dischargeTime   time.Duration

	maxDistance       float64
	thresholdDistance float64
	speedOfSound      float64

	registry *Registry
	ownPins  bool
}

func newOptions(defaults []Option, opts []Option) *options {
	o := &options{
		pull:      gpio.PullDown,
		queueLen:  5,
		interval:  10 * time.Millisecond,
		threshold: 0.5,
		registry:  DefaultRegistry,
	}
	for _, fn := range defaults {
		fn(o)
	}
	for _, fn := range opts {
		fn(o)
	}
	return o
}

// WithName sets the name used in logs and events. Defaults to the pin name.
func WithName(name string) Option {
	return func(o *options) { o.name = name }
}

// WithPullUp selects a pull-up (true) or pull-down (false) resistor.
func WithPullUp(up bool) Option {
	return func(o *options) {
		if up {
			o.pull = gpio.PullUp
		} else {
			o.pull = gpio.PullDown
		}
	}
}

// WithPull selects the pull resistor directly. A floating input also needs
// WithActiveState.
func WithPull(p gpio.Pull) Option {
	return func(o *options) { o.pull = p }
}

// WithActiveState overrides the polarity derived from the pull: high=true
// means the device is active when the pin reads high.
func WithActiveState(high bool) Option {
	return func(o *options) { o.activeHigh = &high }
}

// WithBounceTime ignores edges arriving within d of the previous edge.
func WithBounceTime(d time.Duration) Option {
	return func(o *options) { o.bounce = d }
}

// WithQueueLen sets the smoothing window length.
func WithQueueLen(n int) Option {
	return func(o *options) { o.queueLen = n }
}

// WithSampleInterval sets the wait between samples.
func WithSampleInterval(d time.Duration) Option {
	return func(o *options) { o.interval = d }
}

// WithSampleRate sets the sample interval from a rate in Hz.
func WithSampleRate(hz float64) Option {
	return func(o *options) {
		if hz > 0 {
			o.interval = time.Duration(float64(time.Second) / hz)
		} else {
			o.interval = -1
		}
	}
}

// WithThreshold sets the fraction of active samples needed for the smoothed
// state to be active.
func WithThreshold(t float64) Option {
	return func(o *options) { o.threshold = t }
}

// WithPartial allows a state to be reported before the window is full.
func WithPartial(partial bool) Option {
	return func(o *options) { o.partial = partial }
}

// WithHoldTime sets how long a button must stay pressed to be held.
func WithHoldTime(d time.Duration) Option {
	return func(o *options) { o.holdTime = d }
}

// WithHoldRepeat repeats the held handler every hold time while pressed.
func WithHoldRepeat(repeat bool) Option {
	return func(o *options) { o.holdRepeat = repeat }
}

// WithChargeTimeLimit sets the longest capacitor charge time a light sensor
// measures; slower charges read as fully dark.
func WithChargeTimeLimit(d time.Duration) Option {
	return func(o *options) { o.chargeTimeLimit = d }
}

// WithDischargeTime sets how long a light sensor drains the capacitor
// before each measurement.
func WithDischargeTime(d time.Duration) Option {
	return func(o *options) { o.dischargeTime = d }
}

// WithMaxDistance sets the range of a distance sensor in metres.
func WithMaxDistance(m float64) Option {
	return func(o *options) { o.maxDistance = m }
}

// WithThresholdDistance sets the in-range distance of a distance sensor in
// metres.
func WithThresholdDistance(m float64) Option {
	return func(o *options) { o.thresholdDistance = m }
}

// WithSpeedOfSound overrides the speed of sound (m/s) used for ranging.
func WithSpeedOfSound(v float64) Option {
	return func(o *options) { o.speedOfSound = v }
}

// WithRegistry uses r instead of DefaultRegistry for pin reservations.
func WithRegistry(r *Registry) Option {
	return func(o *options) { o.registry = r }
}

// WithOwnedPins makes Close also close the pins handed to the device.
func WithOwnedPins() Option {
	return func(o *options) { o.ownPins = true }
}

// validateSmoothing checks the window settings. A zero interval is only
// allowed when each sample blocks on the hardware; reading a pin level in a
// tight loop would spin a core.
func (o *options) validateSmoothing(blocking bool) error {
	if o.queueLen < 1 {
		return fmt.Errorf("%w: got %d", ErrBadQueueLen, o.queueLen)
	}
	if o.interval < 0 {
		return fmt.Errorf("%w: sample interval must be 0 or greater", ErrInvalidValue)
	}
	if o.interval == 0 && !blocking {
		return fmt.Errorf("%w: sample interval must be greater than 0 when reading a pin level", ErrInvalidValue)
	}
	return validateThreshold(o.threshold)
}

func validateThreshold(t float64) error {
	if math.IsNaN(t) || t < 0 || t > 1 {
		return fmt.Errorf("%w: threshold %v must be between 0 and 1", ErrInvalidValue, t)
	}
	return nil
}
