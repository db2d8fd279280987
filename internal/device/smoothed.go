package device

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sweeney/sensord/internal/gpio"
	"github.com/sweeney/sensord/internal/logic"
)

// source takes one measurement. It returns errStopped if stop is closed
// while it waits.
type source func(stop <-chan struct{}) (float64, error)

// SmoothedInputDevice samples a measurement source in the background and
// reports active once the mean of a sliding window of samples reaches the
// threshold. For plain pins each sample is 1 when the pin is active and 0
// otherwise, so the mean is the fraction of active samples.
//
// Until the window is full, a device created without WithPartial(true) is
// inactive and fires no handlers.
type SmoothedInputDevice struct {
	*InputDevice
	*notifier

	mu        sync.Mutex // guards everything below
	window    *logic.Window
	threshold float64
	partial   bool
	interval  time.Duration
	running   bool
	stop      chan struct{}

	source source
	// activeFn overrides the threshold test on the window mean.
	activeFn func(mean float64) bool

	wg sync.WaitGroup
}

// NewSmoothedInputDevice reserves pin for a smoothed input. Sampling does not
// begin until Start is called.
func NewSmoothedInputDevice(pin gpio.Pin, opts ...Option) (*SmoothedInputDevice, error) {
	return newSmoothedInputDevice(pin, newOptions(nil, opts), false)
}

// newSmoothedInputDevice builds the sampler around the pin level. Sensors
// that replace the source with a blocking measurement pass blocking=true,
// which permits a zero sample interval.
func newSmoothedInputDevice(pin gpio.Pin, o *options, blocking bool) (*SmoothedInputDevice, error) {
	if err := o.validateSmoothing(blocking); err != nil {
		return nil, err
	}
	in, err := newInputDevice(pin, o)
	if err != nil {
		return nil, err
	}
	s := &SmoothedInputDevice{
		InputDevice: in,
		notifier:    newNotifier(in.closed, in.log),
		window:      logic.NewWindow(o.queueLen),
		threshold:   o.threshold,
		partial:     o.partial,
		interval:    o.interval,
	}
	s.source = s.readLevel
	return s, nil
}

func (s *SmoothedInputDevice) readLevel(<-chan struct{}) (float64, error) {
	active, err := s.readActive()
	if err != nil {
		return 0, err
	}
	if active {
		return 1, nil
	}
	return 0, nil
}

// Start begins background sampling. Starting a running device is a no-op.
func (s *SmoothedInputDevice) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Closed() {
		return ErrDeviceClosed
	}
	if s.running {
		return nil
	}
	s.running = true
	s.stop = make(chan struct{})
	s.wg.Add(1)
	go s.sample(s.stop)
	return nil
}

// Stop halts sampling, empties the window and forgets the reported state.
// It is idempotent.
func (s *SmoothedInputDevice) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stop)
	s.mu.Unlock()

	s.wg.Wait()

	s.mu.Lock()
	s.window.Clear()
	s.mu.Unlock()
	s.notifier.reset()
}

// Running reports whether the sampler is active.
func (s *SmoothedInputDevice) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *SmoothedInputDevice) sample(stop <-chan struct{}) {
	defer s.wg.Done()

	timer := time.NewTimer(0)
	defer timer.Stop()
	<-timer.C

	for {
		if s.interval > 0 {
			timer.Reset(s.interval)
			select {
			case <-stop:
				return
			case <-timer.C:
			}
		} else {
			select {
			case <-stop:
				return
			default:
			}
		}

		v, err := s.source(stop)
		if errors.Is(err, errStopped) {
			return
		}
		if err != nil {
			s.log.Warn().Err(err).Msg("sample failed")
			if s.interval == 0 {
				select {
				case <-stop:
					return
				case <-time.After(10 * time.Millisecond):
				}
			}
			continue
		}

		s.mu.Lock()
		s.window.Push(v)
		active, ready := s.stateLocked()
		s.mu.Unlock()

		if ready {
			s.fire(active, time.Now())
		}
	}
}

func (s *SmoothedInputDevice) stateLocked() (active, ready bool) {
	if s.activeFn == nil {
		return s.window.Active(s.threshold, s.partial)
	}
	if !s.window.Ready(s.partial) {
		return false, false
	}
	return s.activeFn(s.window.Mean()), true
}

// IsActive reports the smoothed state.
func (s *SmoothedInputDevice) IsActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	active, ready := s.stateLocked()
	return active && ready
}

// Value returns the mean of the window, or 0 before the window can report.
func (s *SmoothedInputDevice) Value() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.window.Ready(s.partial) {
		return 0
	}
	return s.window.Mean()
}

// Ready reports whether the window holds enough samples to report a state.
func (s *SmoothedInputDevice) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.window.Ready(s.partial)
}

// QueueLen returns the window length.
func (s *SmoothedInputDevice) QueueLen() int { return s.window.Cap() }

// Partial reports whether states are reported before the window fills.
func (s *SmoothedInputDevice) Partial() bool { return s.partial }

// SampleInterval returns the wait between samples.
func (s *SmoothedInputDevice) SampleInterval() time.Duration { return s.interval }

// Threshold returns the fraction of active samples needed to be active.
func (s *SmoothedInputDevice) Threshold() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.threshold
}

// SetThreshold changes the threshold. The sampler must be stopped first.
func (s *SmoothedInputDevice) SetThreshold(t float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return fmt.Errorf("%w: cannot change threshold while sampling; stop first", ErrInputDevice)
	}
	if err := validateThreshold(t); err != nil {
		return err
	}
	s.threshold = t
	return nil
}

func (s *SmoothedInputDevice) String() string {
	if s.Closed() {
		return "SmoothedInputDevice(closed)"
	}
	return fmt.Sprintf("SmoothedInputDevice(%s, pull_up=%t)", s.pin.Name(), s.pullUp)
}

// Close stops the sampler, releases waiters and the pin reservation.
func (s *SmoothedInputDevice) Close() error {
	s.Stop()
	err := s.InputDevice.Close()
	s.notifier.close()
	return err
}
