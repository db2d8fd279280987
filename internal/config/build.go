package config

import (
	"errors"
	"fmt"

	"github.com/sweeney/sensord/internal/device"
	"github.com/sweeney/sensord/internal/gpio"
	"github.com/sweeney/sensord/internal/logic"
)

// PinOpener hands out pins by number. *gpio.Chip and *gpio.FakeFactory
// implement it.
type PinOpener interface {
	Open(n int) (gpio.Pin, error)
}

// Sensor is a device built from a SensorConfig.
type Sensor struct {
	Name   string
	Kind   logic.Kind
	Device device.Sensor
}

// Options converts the configured overrides to device options. Devices
// built from configuration own their pins.
func (s *SensorConfig) Options() []device.Option {
	opts := []device.Option{device.WithName(s.Name), device.WithOwnedPins()}
	if s.PullUp != nil {
		opts = append(opts, device.WithPullUp(*s.PullUp))
	}
	if s.Bounce > 0 {
		opts = append(opts, device.WithBounceTime(s.Bounce))
	}
	if s.Hold > 0 {
		opts = append(opts, device.WithHoldTime(s.Hold))
	}
	if s.HoldRepeat {
		opts = append(opts, device.WithHoldRepeat(true))
	}
	if s.QueueLen > 0 {
		opts = append(opts, device.WithQueueLen(s.QueueLen))
	}
	if s.SampleRate > 0 {
		opts = append(opts, device.WithSampleRate(s.SampleRate))
	}
	if s.Threshold != nil {
		opts = append(opts, device.WithThreshold(*s.Threshold))
	}
	if s.Partial {
		opts = append(opts, device.WithPartial(true))
	}
	if s.MaxDistance > 0 {
		opts = append(opts, device.WithMaxDistance(s.MaxDistance))
	}
	if s.ThresholdDistance > 0 {
		opts = append(opts, device.WithThresholdDistance(s.ThresholdDistance))
	}
	if s.ChargeTimeLimit > 0 {
		opts = append(opts, device.WithChargeTimeLimit(s.ChargeTimeLimit))
	}
	return opts
}

// Build opens the pins for every configured sensor and constructs the
// devices. On failure every device already built is closed.
func (c *Config) Build(open PinOpener) ([]Sensor, error) {
	var out []Sensor
	for i := range c.Sensors {
		sc := &c.Sensors[i]
		d, err := sc.build(open)
		if err != nil {
			for _, s := range out {
				s.Device.Close()
			}
			return nil, fmt.Errorf("build sensor %q: %w", sc.Name, err)
		}
		out = append(out, Sensor{Name: sc.Name, Kind: sc.Kind, Device: d})
	}
	return out, nil
}

func (s *SensorConfig) build(open PinOpener) (device.Sensor, error) {
	opts := s.Options()

	if s.Kind == logic.KindDistance {
		echo, err := open.Open(*s.Echo)
		if err != nil {
			return nil, err
		}
		trigger, err := open.Open(*s.Trigger)
		if err != nil {
			echo.Close()
			return nil, err
		}
		d, err := device.NewDistanceSensor(echo, trigger, opts...)
		if err != nil {
			return nil, errors.Join(err, echo.Close(), trigger.Close())
		}
		return d, nil
	}

	pin, err := open.Open(*s.Pin)
	if err != nil {
		return nil, err
	}
	d, err := s.newDevice(pin, opts)
	if err != nil {
		return nil, errors.Join(err, pin.Close())
	}
	return d, nil
}

func (s *SensorConfig) newDevice(pin gpio.Pin, opts []device.Option) (device.Sensor, error) {
	var (
		d   device.Sensor
		err error
	)
	switch s.Kind {
	case logic.KindDigital:
		d, err = asSensor(device.NewDigitalInputDevice(pin, opts...))
	case logic.KindSmoothed:
		var sd *device.SmoothedInputDevice
		if sd, err = device.NewSmoothedInputDevice(pin, opts...); err == nil {
			if err = sd.Start(); err != nil {
				sd.Close()
			} else {
				d = sd
			}
		}
	case logic.KindButton:
		d, err = asSensor(device.NewButton(pin, opts...))
	case logic.KindMotion:
		d, err = asSensor(device.NewMotionSensor(pin, opts...))
	case logic.KindLine:
		d, err = asSensor(device.NewLineSensor(pin, opts...))
	case logic.KindLight:
		d, err = asSensor(device.NewLightSensor(pin, opts...))
	default:
		err = fmt.Errorf("%w: unknown kind %q", ErrInvalid, s.Kind)
	}
	if err != nil {
		return nil, err
	}
	return d, nil
}

// asSensor avoids storing a typed nil pointer in the interface when a
// constructor fails.
func asSensor[T device.Sensor](d T, err error) (device.Sensor, error) {
	if err != nil {
		return nil, err
	}
	return d, nil
}
