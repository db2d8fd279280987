package device

import "time"

// Sensor is the behaviour shared by every device in this package.
type Sensor interface {
	Name() string
	IsActive() bool
	Value() float64
	WaitForActive(timeout time.Duration) bool
	WaitForInactive(timeout time.Duration) bool
	SetWhenActivated(h Handler)
	SetWhenDeactivated(h Handler)
	String() string
	Close() error
}

var (
	_ Sensor = (*DigitalInputDevice)(nil)
	_ Sensor = (*SmoothedInputDevice)(nil)
	_ Sensor = (*Button)(nil)
	_ Sensor = (*MotionSensor)(nil)
	_ Sensor = (*LineSensor)(nil)
	_ Sensor = (*LightSensor)(nil)
	_ Sensor = (*DistanceSensor)(nil)
)
