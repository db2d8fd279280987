package device

import (
	"fmt"
	"time"

	"github.com/sweeney/sensord/internal/gpio"
)

// MotionSensor is a passive infra-red motion sensor whose output goes high
// while motion is detected. It samples at 10Hz with a window of one sample
// by default.
type MotionSensor struct {
	*SmoothedInputDevice
}

// NewMotionSensor reserves pin for a motion sensor and starts sampling.
func NewMotionSensor(pin gpio.Pin, opts ...Option) (*MotionSensor, error) {
	o := newOptions([]Option{
		WithQueueLen(1),
		WithSampleInterval(100 * time.Millisecond),
		WithThreshold(0.5),
	}, opts)
	s, err := newSmoothedInputDevice(pin, o, false)
	if err != nil {
		return nil, err
	}
	if err := s.Start(); err != nil {
		s.Close()
		return nil, err
	}
	return &MotionSensor{s}, nil
}

// MotionDetected reports whether motion is currently detected.
func (m *MotionSensor) MotionDetected() bool { return m.IsActive() }

// WaitForMotion blocks until motion is detected or timeout elapses.
func (m *MotionSensor) WaitForMotion(timeout time.Duration) bool { return m.WaitForActive(timeout) }

// WaitForNoMotion blocks until motion stops or timeout elapses.
func (m *MotionSensor) WaitForNoMotion(timeout time.Duration) bool {
	return m.WaitForInactive(timeout)
}

func (m *MotionSensor) SetWhenMotion(h Handler)   { m.SetWhenActivated(h) }
func (m *MotionSensor) SetWhenNoMotion(h Handler) { m.SetWhenDeactivated(h) }

func (m *MotionSensor) String() string {
	if m.Closed() {
		return "MotionSensor(closed)"
	}
	return fmt.Sprintf("MotionSensor(%s, pull_up=%t, is_active=%t)", m.pin.Name(), m.pullUp, m.IsActive())
}

// LineSensor is a reflective line-following sensor. Its output is pulled
// low over a dark line, so the sensor is active, and a line detected, while
// the pin reads low. It samples at 100Hz with a window of five samples by
// default.
type LineSensor struct {
	*SmoothedInputDevice
}

// NewLineSensor reserves pin for a line sensor and starts sampling.
func NewLineSensor(pin gpio.Pin, opts ...Option) (*LineSensor, error) {
	o := newOptions([]Option{
		WithQueueLen(5),
		WithSampleInterval(10 * time.Millisecond),
		WithThreshold(0.5),
		WithActiveState(false),
	}, opts)
	s, err := newSmoothedInputDevice(pin, o, false)
	if err != nil {
		return nil, err
	}
	if err := s.Start(); err != nil {
		s.Close()
		return nil, err
	}
	return &LineSensor{s}, nil
}

// LineDetected reports whether the sensor is over a line.
func (l *LineSensor) LineDetected() bool { return l.IsActive() }

// WaitForLine blocks until a line is detected or timeout elapses.
func (l *LineSensor) WaitForLine(timeout time.Duration) bool { return l.WaitForActive(timeout) }

// WaitForNoLine blocks until the line is lost or timeout elapses.
func (l *LineSensor) WaitForNoLine(timeout time.Duration) bool { return l.WaitForInactive(timeout) }

func (l *LineSensor) SetWhenLine(h Handler)   { l.SetWhenActivated(h) }
func (l *LineSensor) SetWhenNoLine(h Handler) { l.SetWhenDeactivated(h) }

func (l *LineSensor) String() string {
	if l.Closed() {
		return "LineSensor(closed)"
	}
	return fmt.Sprintf("LineSensor(%s, pull_up=%t, is_active=%t)", l.pin.Name(), l.pullUp, l.IsActive())
}
