package device

import "errors"

var (
	// ErrInputDevice is returned when a smoothing parameter is changed while
	// the sampler is running.
	ErrInputDevice = errors.New("device: input device error")

	// ErrInvalidValue is returned for out-of-range numeric configuration.
	ErrInvalidValue = errors.New("device: invalid value")

	// ErrBadQueueLen is returned for a smoothing window shorter than one.
	ErrBadQueueLen = errors.New("device: queue length must be at least one")

	// ErrPinInUse is returned when a pin is already reserved by another device.
	ErrPinInUse = errors.New("device: pin in use")

	// ErrDeviceClosed is returned by operations on a closed device.
	ErrDeviceClosed = errors.New("device: closed")

	// errStopped is returned by measurement sources interrupted by Stop.
	errStopped = errors.New("device: sampler stopped")
)
