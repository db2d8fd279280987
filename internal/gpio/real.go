//go:build linux

package gpio

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/warthog618/go-gpiocdev"
)

// DefaultChip is the GPIO chip carrying the 40-pin header on a Raspberry Pi.
const DefaultChip = "gpiochip0"

// Chip opens pins on a Linux GPIO character device.
type Chip struct {
	chip      *gpiocdev.Chip
	fixedPull map[int]Pull
}

// OpenChip opens the named chip, e.g. "gpiochip0". On the default chip the
// Raspberry Pi I2C lines are reported as having fixed pull-ups.
func OpenChip(name string) (*Chip, error) {
	chip, err := gpiocdev.NewChip(name, gpiocdev.WithConsumer("sensord"))
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}
	c := &Chip{chip: chip, fixedPull: make(map[int]Pull)}
	if name == DefaultChip {
		for n := range piFixedPullUps {
			c.fixedPull[n] = PullUp
		}
	}
	return c, nil
}

// Open requests line n as an input with both-edge detection. The returned
// pin is configured further by the device that owns it.
func (c *Chip) Open(n int) (Pin, error) {
	p := &chipPin{number: n, function: Input}
	if fp, ok := c.fixedPull[n]; ok {
		p.fixedPull, p.hasFixed = fp, true
		p.pull = fp
	}
	line, err := c.chip.RequestLine(n,
		gpiocdev.AsInput,
		gpiocdev.WithBothEdges,
		gpiocdev.WithEventHandler(p.onEvent),
	)
	if err != nil {
		return nil, fmt.Errorf("request pin %d: %w", n, err)
	}
	p.line = line
	return p, nil
}

// Close releases the chip. Pins opened from it must be closed first.
func (c *Chip) Close() error {
	return c.chip.Close()
}

// chipPin is a single requested line.
type chipPin struct {
	mu sync.Mutex

	line      *gpiocdev.Line
	number    int
	function  Function
	pull      Pull
	fixedPull Pull
	hasFixed  bool

	edge    Edge
	handler EdgeHandler
	closed  bool
}

func (p *chipPin) Number() int  { return p.number }
func (p *chipPin) Name() string { return PinName(p.number) }

func (p *chipPin) String() string {
	return p.Name()
}

func (p *chipPin) Function() Function {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.function
}

func (p *chipPin) SetFunction(f Function) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrPinClosed
	}
	switch f {
	case Input:
		if err := p.line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithBothEdges, biasOption(p.pull)); err != nil {
			return fmt.Errorf("reconfigure %s as input: %w", p.Name(), err)
		}
	case Output:
		if err := p.line.Reconfigure(gpiocdev.AsOutput(0)); err != nil {
			return fmt.Errorf("reconfigure %s as output: %w", p.Name(), err)
		}
		p.pull = PullFloating
	default:
		return fmt.Errorf("%w: %v", ErrPinInvalidFunction, f)
	}
	p.function = f
	return nil
}

func (p *chipPin) Pull() Pull {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pull
}

func (p *chipPin) FixedPull() (Pull, bool) {
	return p.fixedPull, p.hasFixed
}

func (p *chipPin) SetPull(pull Pull) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrPinClosed
	}
	if pull != PullFloating && pull != PullUp && pull != PullDown {
		return fmt.Errorf("%w: %v", ErrPinInvalidPull, pull)
	}
	if p.function != Input {
		return fmt.Errorf("%w: cannot set pull on output %s", ErrPinInvalidPull, p.Name())
	}
	if p.hasFixed && pull != p.fixedPull {
		return fmt.Errorf("%w: %s is pulled %s", ErrPinFixedPull, p.Name(), p.fixedPull)
	}
	if err := p.line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithBothEdges, biasOption(pull)); err != nil {
		return fmt.Errorf("set pull on %s: %w", p.Name(), err)
	}
	p.pull = pull
	return nil
}

func (p *chipPin) Read() (bool, error) {
	p.mu.Lock()
	line, closed := p.line, p.closed
	p.mu.Unlock()
	if closed {
		return false, ErrPinClosed
	}
	v, err := line.Value()
	if err != nil {
		return false, fmt.Errorf("read %s: %w", p.Name(), err)
	}
	return v == 1, nil
}

func (p *chipPin) Write(high bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrPinClosed
	}
	if p.function != Output {
		return fmt.Errorf("%w: cannot write to input %s", ErrPinInvalidFunction, p.Name())
	}
	v := 0
	if high {
		v = 1
	}
	if err := p.line.SetValue(v); err != nil {
		return fmt.Errorf("write %s: %w", p.Name(), err)
	}
	return nil
}

// The character device has no PWM support.

func (p *chipPin) SetFrequency(float64) error {
	return fmt.Errorf("%w: %s", ErrPinPWMUnsupported, p.Name())
}

func (p *chipPin) DutyCycle() (float64, error) {
	return 0, fmt.Errorf("%w: %s", ErrPinPWMUnsupported, p.Name())
}

func (p *chipPin) SetDutyCycle(float64) error {
	return fmt.Errorf("%w: %s", ErrPinPWMUnsupported, p.Name())
}

func (p *chipPin) SetEdgeHandler(edge Edge, h EdgeHandler) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrPinClosed
	}
	p.edge = edge
	p.handler = h
	return nil
}

func (p *chipPin) onEvent(evt gpiocdev.LineEvent) {
	high := evt.Type == gpiocdev.LineEventRisingEdge
	p.mu.Lock()
	h, edge := p.handler, p.edge
	p.mu.Unlock()
	if h == nil || !edge.Matches(high) {
		return
	}
	h(high, time.Now())
}

// Close releases the line. Inputs are returned to pull-down (the Pi boot
// default) first so attached hardware sees a known state.
func (p *chipPin) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	p.handler = nil

	var errs []error
	if !p.hasFixed {
		if err := p.line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure %s: %w", p.Name(), err))
		}
	}
	if err := p.line.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close %s: %w", p.Name(), err))
	}
	if len(errs) > 0 {
		log.Warn().Errs("errors", errs).Int("pin", p.number).Msg("gpio: close errors")
		return errors.Join(errs...)
	}
	return nil
}

func biasOption(p Pull) gpiocdev.LineBias {
	switch p {
	case PullUp:
		return gpiocdev.WithPullUp
	case PullDown:
		return gpiocdev.WithPullDown
	}
	return gpiocdev.WithBiasDisabled
}
