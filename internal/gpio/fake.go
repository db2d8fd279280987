package gpio

import (
	"fmt"
	"sync"
	"time"
)

// FakePin is a test double for a GPIO line. Tests drive the input level
// with Drive, DriveHigh and DriveLow; edge handlers run synchronously in the
// driving goroutine.
type FakePin struct {
	mu sync.Mutex

	number    int
	function  Function
	pull      Pull
	fixedPull Pull
	hasFixed  bool
	level     bool

	// PWM state. PWM is only available when SupportsPWM was set at creation.
	supportsPWM bool
	frequency   float64
	duty        float64

	edge    Edge
	handler EdgeHandler

	closed bool
}

// NewFakePin creates a floating input pin.
func NewFakePin(number int) *FakePin {
	return &FakePin{number: number, function: Input}
}

// NewFakePinFixedPull creates an input pin whose pull resistor is fixed in
// hardware to pull.
func NewFakePinFixedPull(number int, pull Pull) *FakePin {
	p := &FakePin{number: number, function: Input, fixedPull: pull, hasFixed: true}
	p.applyPullLocked(pull)
	return p
}

// NewFakePWMPin creates a pin that supports PWM output.
func NewFakePWMPin(number int) *FakePin {
	return &FakePin{number: number, function: Input, supportsPWM: true}
}

func (p *FakePin) Number() int  { return p.number }
func (p *FakePin) Name() string { return PinName(p.number) }

func (p *FakePin) String() string {
	return p.Name()
}

func (p *FakePin) Function() Function {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.function
}

func (p *FakePin) SetFunction(f Function) error {
	if f != Input && f != Output {
		return fmt.Errorf("%w: %v", ErrPinInvalidFunction, f)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrPinClosed
	}
	p.function = f
	if f == Output {
		p.pull = PullFloating
	}
	return nil
}

func (p *FakePin) Pull() Pull {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pull
}

func (p *FakePin) FixedPull() (Pull, bool) {
	return p.fixedPull, p.hasFixed
}

// SetPull applies a bias. Pulling up or down drives the level accordingly
// and fires edge handlers if the level changes.
func (p *FakePin) SetPull(pull Pull) error {
	if pull != PullFloating && pull != PullUp && pull != PullDown {
		return fmt.Errorf("%w: %v", ErrPinInvalidPull, pull)
	}
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrPinClosed
	}
	if p.function != Input {
		p.mu.Unlock()
		return fmt.Errorf("%w: cannot set pull on output %s", ErrPinInvalidPull, p.Name())
	}
	if p.hasFixed && pull != p.fixedPull {
		p.mu.Unlock()
		return fmt.Errorf("%w: %s is pulled %s", ErrPinFixedPull, p.Name(), p.fixedPull)
	}
	fire := p.applyPullLocked(pull)
	p.mu.Unlock()
	fire()
	return nil
}

// applyPullLocked records pull and returns the edge notification, if any,
// to run once the lock is released.
func (p *FakePin) applyPullLocked(pull Pull) func() {
	p.pull = pull
	switch pull {
	case PullUp:
		return p.setLevelLocked(true)
	case PullDown:
		return p.setLevelLocked(false)
	}
	return func() {}
}

func (p *FakePin) Read() (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return false, ErrPinClosed
	}
	if p.frequency > 0 {
		return p.duty > 0, nil
	}
	return p.level, nil
}

func (p *FakePin) Write(high bool) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrPinClosed
	}
	if p.function != Output {
		p.mu.Unlock()
		return fmt.Errorf("%w: cannot write to input %s", ErrPinInvalidFunction, p.Name())
	}
	fire := p.setLevelLocked(high)
	p.mu.Unlock()
	fire()
	return nil
}

func (p *FakePin) SetFrequency(hz float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.supportsPWM {
		return fmt.Errorf("%w: %s", ErrPinPWMUnsupported, p.Name())
	}
	if hz < 0 {
		return fmt.Errorf("gpio: invalid frequency %v", hz)
	}
	p.frequency = hz
	if hz == 0 {
		p.duty = 0
	}
	return nil
}

func (p *FakePin) DutyCycle() (float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.supportsPWM {
		return 0, fmt.Errorf("%w: %s", ErrPinPWMUnsupported, p.Name())
	}
	return p.duty, nil
}

func (p *FakePin) SetDutyCycle(duty float64) error {
	d, err := ValidateDutyCycle(duty)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.supportsPWM || p.frequency == 0 {
		return fmt.Errorf("%w: %s", ErrPinPWMUnsupported, p.Name())
	}
	p.duty = d
	return nil
}

func (p *FakePin) SetEdgeHandler(edge Edge, h EdgeHandler) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrPinClosed
	}
	p.edge = edge
	p.handler = h
	return nil
}

// Close marks the pin as closed and drops its edge handler.
func (p *FakePin) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	p.handler = nil
	p.edge = EdgeNone
	return nil
}

// Closed reports whether Close was called.
func (p *FakePin) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// Drive sets the level seen on the pin from outside, as a connected circuit
// would.
func (p *FakePin) Drive(high bool) {
	p.mu.Lock()
	fire := p.setLevelLocked(high)
	p.mu.Unlock()
	fire()
}

func (p *FakePin) DriveHigh() { p.Drive(true) }
func (p *FakePin) DriveLow()  { p.Drive(false) }

// EdgeHandlerSet reports whether an edge handler is registered.
func (p *FakePin) EdgeHandlerSet() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.handler != nil && p.edge != EdgeNone
}

func (p *FakePin) setLevelLocked(high bool) func() {
	if p.level == high {
		return func() {}
	}
	p.level = high
	h := p.handler
	if h == nil || !p.edge.Matches(high) {
		return func() {}
	}
	now := time.Now()
	return func() { h(high, now) }
}

// FakeChargingPin simulates an RC circuit: once switched to input, the
// level rises after the configured charge time.
type FakeChargingPin struct {
	*FakePin

	cmu        sync.Mutex
	chargeTime time.Duration
	stop       chan struct{}
	wg         sync.WaitGroup
}

// NewFakeChargingPin creates a charging pin with the given charge time.
func NewFakeChargingPin(number int, chargeTime time.Duration) *FakeChargingPin {
	return &FakeChargingPin{FakePin: NewFakePin(number), chargeTime: chargeTime}
}

// SetChargeTime changes the charge time used by the next charge cycle.
func (c *FakeChargingPin) SetChargeTime(d time.Duration) {
	c.cmu.Lock()
	c.chargeTime = d
	c.cmu.Unlock()
}

func (c *FakeChargingPin) SetFunction(f Function) error {
	c.stopCharge()
	if err := c.FakePin.SetFunction(f); err != nil {
		return err
	}
	if f != Input {
		return nil
	}
	c.cmu.Lock()
	d := c.chargeTime
	stop := make(chan struct{})
	c.stop = stop
	c.wg.Add(1)
	c.cmu.Unlock()
	go func() {
		defer c.wg.Done()
		t := time.NewTimer(d)
		defer t.Stop()
		select {
		case <-stop:
		case <-t.C:
			c.Drive(true)
		}
	}()
	return nil
}

func (c *FakeChargingPin) Close() error {
	c.stopCharge()
	return c.FakePin.Close()
}

func (c *FakeChargingPin) stopCharge() {
	c.cmu.Lock()
	if c.stop != nil {
		close(c.stop)
		c.stop = nil
	}
	c.cmu.Unlock()
	c.wg.Wait()
}

// FakeTriggerPin simulates the trigger line of an ultrasonic ranger. Each
// rising write produces a pulse on the echo pin lasting the echo time.
type FakeTriggerPin struct {
	*FakePin

	tmu      sync.Mutex
	echo     *FakePin
	echoTime time.Duration
	wg       sync.WaitGroup
}

// NewFakeTriggerPin creates a trigger pin wired to echo.
func NewFakeTriggerPin(number int, echo *FakePin, echoTime time.Duration) *FakeTriggerPin {
	return &FakeTriggerPin{FakePin: NewFakePin(number), echo: echo, echoTime: echoTime}
}

// SetEchoTime changes the pulse length of subsequent echoes.
func (t *FakeTriggerPin) SetEchoTime(d time.Duration) {
	t.tmu.Lock()
	t.echoTime = d
	t.tmu.Unlock()
}

func (t *FakeTriggerPin) Write(high bool) error {
	if err := t.FakePin.Write(high); err != nil {
		return err
	}
	if !high {
		return nil
	}
	t.wg.Wait()
	t.tmu.Lock()
	echo, d := t.echo, t.echoTime
	t.tmu.Unlock()
	if echo == nil {
		return nil
	}
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		time.Sleep(time.Millisecond)
		echo.DriveHigh()
		time.Sleep(d)
		echo.DriveLow()
	}()
	return nil
}

func (t *FakeTriggerPin) Close() error {
	t.wg.Wait()
	return t.FakePin.Close()
}

// FakeFactory hands out fake pins by number, mimicking a Raspberry Pi where
// GPIO2 and GPIO3 have fixed pull-ups.
type FakeFactory struct {
	mu   sync.Mutex
	pins map[int]Pin
}

// NewFakeFactory creates an empty factory.
func NewFakeFactory() *FakeFactory {
	return &FakeFactory{pins: make(map[int]Pin)}
}

// Pin returns the plain fake pin for n, creating it on first use.
func (f *FakeFactory) Pin(n int) *FakePin {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.pins[n].(*FakePin); ok {
		return p
	}
	var p *FakePin
	if HasFixedPullUp(n) {
		p = NewFakePinFixedPull(n, PullUp)
	} else {
		p = NewFakePin(n)
	}
	f.pins[n] = p
	return p
}

// ChargingPin returns a charging pin for n, replacing any other pin type.
func (f *FakeFactory) ChargingPin(n int, chargeTime time.Duration) *FakeChargingPin {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.pins[n].(*FakeChargingPin); ok {
		return p
	}
	p := NewFakeChargingPin(n, chargeTime)
	f.pins[n] = p
	return p
}

// TriggerPin returns a trigger pin for n wired to echo.
func (f *FakeFactory) TriggerPin(n int, echo *FakePin, echoTime time.Duration) *FakeTriggerPin {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.pins[n].(*FakeTriggerPin); ok {
		return p
	}
	p := NewFakeTriggerPin(n, echo, echoTime)
	f.pins[n] = p
	return p
}

// Open implements the pin opener used by the daemon.
func (f *FakeFactory) Open(n int) (Pin, error) {
	f.mu.Lock()
	p, ok := f.pins[n]
	f.mu.Unlock()
	if ok {
		return p, nil
	}
	return f.Pin(n), nil
}

// Reset closes every pin handed out and forgets them.
func (f *FakeFactory) Reset() {
	f.mu.Lock()
	pins := f.pins
	f.pins = make(map[int]Pin)
	f.mu.Unlock()
	for _, p := range pins {
		p.Close()
	}
}
