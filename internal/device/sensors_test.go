package device

import (
	"errors"
	"testing"
	"time"
)

func TestMotionSensor(t *testing.T) {
	f := newFactory(t)
	pin := f.Pin(4)
	s, err := NewMotionSensor(pin)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer s.Close()

	if s.QueueLen() != 1 || s.SampleInterval() != 100*time.Millisecond {
		t.Errorf("defaults: queue %d interval %v", s.QueueLen(), s.SampleInterval())
	}
	pin.DriveHigh()
	if !s.WaitForMotion(time.Second) {
		t.Fatal("timed out waiting for motion")
	}
	if !s.MotionDetected() {
		t.Error("motion should be detected")
	}
	pin.DriveLow()
	if !s.WaitForNoMotion(time.Second) {
		t.Fatal("timed out waiting for no motion")
	}
	if s.MotionDetected() {
		t.Error("motion should not be detected")
	}
}

func TestLineSensor(t *testing.T) {
	f := newFactory(t)
	pin := f.Pin(4)
	s, err := NewLineSensor(pin)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer s.Close()

	pin.DriveLow()
	if !s.WaitForLine(time.Second) {
		t.Fatal("timed out waiting for line")
	}
	if !s.LineDetected() {
		t.Error("line should be detected when the pin is low")
	}
	pin.DriveHigh()
	if !s.WaitForNoLine(time.Second) {
		t.Fatal("timed out waiting for no line")
	}
	if s.LineDetected() {
		t.Error("line should not be detected when the pin is high")
	}
}

func TestLightSensor(t *testing.T) {
	f := newFactory(t)
	pin := f.ChargingPin(4, 100*time.Millisecond)
	s, err := NewLightSensor(pin)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer s.Close()

	if !s.WaitForDark(2 * time.Second) {
		t.Fatal("timed out waiting for dark")
	}
	if s.LightDetected() {
		t.Error("slow charge should read as dark")
	}
	pin.SetChargeTime(0)
	if !s.WaitForLight(2 * time.Second) {
		t.Fatal("timed out waiting for light")
	}
	if s.Value() <= 0 {
		t.Errorf("Value() = %v, want > 0", s.Value())
	}
}

func TestLightSensorInvalidConfig(t *testing.T) {
	f := newFactory(t)
	pin := f.ChargingPin(4, time.Millisecond)
	if _, err := NewLightSensor(pin, WithChargeTimeLimit(0)); !errors.Is(err, ErrInvalidValue) {
		t.Errorf("expected ErrInvalidValue, got %v", err)
	}
}

func TestDistanceSensor(t *testing.T) {
	f := newFactory(t)
	echo := f.Pin(4)
	trig := f.TriggerPin(5, echo, 20*time.Millisecond)

	if _, err := NewDistanceSensor(echo, trig, WithMaxDistance(-1)); !errors.Is(err, ErrInvalidValue) {
		t.Fatalf("max distance -1: expected ErrInvalidValue, got %v", err)
	}
	if DefaultRegistry.Reserved(echo) || DefaultRegistry.Reserved(trig) {
		t.Fatal("failed construction left a pin reserved")
	}

	s, err := NewDistanceSensor(echo, trig, WithQueueLen(5), WithMaxDistance(1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer s.Close()

	if s.MaxDistance() != 1 {
		t.Errorf("MaxDistance() = %v", s.MaxDistance())
	}
	if s.Trigger() != trig || s.Echo() != echo {
		t.Error("pins not exposed")
	}
	if !s.WaitForOutOfRange(time.Second) {
		t.Fatal("timed out waiting for out of range")
	}
	if s.InRange() {
		t.Error("should be out of range")
	}
	if s.Distance() != 1.0 {
		t.Errorf("Distance() = %v, want 1.0", s.Distance())
	}

	trig.SetEchoTime(0)
	if !s.WaitForInRange(time.Second) {
		t.Fatal("timed out waiting for in range")
	}
	if !s.InRange() {
		t.Error("should be in range")
	}
	if s.Distance() >= s.ThresholdDistance() {
		t.Errorf("Distance() = %v, want < %v", s.Distance(), s.ThresholdDistance())
	}

	if err := s.SetThresholdDistance(0.1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.ThresholdDistance() != 0.1 {
		t.Errorf("ThresholdDistance() = %v", s.ThresholdDistance())
	}
	if err := s.SetMaxDistance(-1); !errors.Is(err, ErrInvalidValue) {
		t.Errorf("SetMaxDistance(-1): expected ErrInvalidValue, got %v", err)
	}
	if s.MaxDistance() != 1 {
		t.Errorf("rejected max distance changed state: %v", s.MaxDistance())
	}
	if err := s.SetMaxDistance(20); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.MaxDistance() != 20 || s.ThresholdDistance() != 0.1 {
		t.Errorf("max %v threshold %v, want 20 and 0.1", s.MaxDistance(), s.ThresholdDistance())
	}
}

func TestDistanceSensorThresholdClampedToMax(t *testing.T) {
	f := newFactory(t)
	echo := f.Pin(4)
	trig := f.TriggerPin(5, echo, time.Millisecond)
	s, err := NewDistanceSensor(echo, trig, WithMaxDistance(2), WithThresholdDistance(1.5))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer s.Close()

	if err := s.SetMaxDistance(1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.ThresholdDistance() != 1 {
		t.Errorf("ThresholdDistance() = %v, want 1", s.ThresholdDistance())
	}
	if err := s.SetThresholdDistance(2); !errors.Is(err, ErrInvalidValue) {
		t.Errorf("threshold beyond max: expected ErrInvalidValue, got %v", err)
	}
}

func TestDistanceSensorNoEcho(t *testing.T) {
	f := newFactory(t)
	echo := f.Pin(4)
	trig := f.Pin(5)
	s, err := NewDistanceSensor(echo, trig, WithQueueLen(1), WithSampleInterval(0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	closed := make(chan struct{})
	go func() {
		s.Close()
		close(closed)
	}()
	recv(t, closed, "close while waiting for an echo")

	if DefaultRegistry.Reserved(echo) || DefaultRegistry.Reserved(trig) {
		t.Error("close should release both pins")
	}
}

func TestDistanceSensorMissingEchoReadsMaxRange(t *testing.T) {
	f := newFactory(t)
	echo := f.Pin(4)
	trig := f.Pin(5)
	s, err := NewDistanceSensor(echo, trig, WithQueueLen(1), WithSampleInterval(0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer s.Close()

	// No echo for a full second resolves to max range, never an error.
	if !s.WaitForOutOfRange(2 * time.Second) {
		t.Fatal("timed out waiting for out of range")
	}
	if s.Distance() != s.MaxDistance() {
		t.Errorf("Distance() = %v, want %v", s.Distance(), s.MaxDistance())
	}
}

func TestDistanceSensorWaitsForEchoLow(t *testing.T) {
	f := newFactory(t)
	echo := f.Pin(4)
	trig := f.TriggerPin(5, echo, 0)
	s, err := NewDistanceSensor(echo, trig, WithQueueLen(1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer s.Close()
	s.Stop()

	echo.DriveHigh()
	stop := make(chan struct{})
	start := time.Now()
	if _, err := s.measure(stop); err == nil {
		t.Error("measuring with the echo stuck high should fail")
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("stuck echo took %v to report, want well under the echo timeout", elapsed)
	}

	go func() {
		time.Sleep(10 * time.Millisecond)
		echo.DriveLow()
	}()
	v, err := s.measure(stop)
	if err != nil {
		t.Fatalf("echo released: unexpected error: %v", err)
	}
	if v >= 0.3 {
		t.Errorf("measure() = %v, want a near reading once the echo is low", v)
	}

	echo.DriveHigh()
	close(stop)
	if _, err := s.measure(stop); !errors.Is(err, errStopped) {
		t.Errorf("stopped while echo high: expected errStopped, got %v", err)
	}
}

func TestDistanceSensorSamePin(t *testing.T) {
	f := newFactory(t)
	pin := f.Pin(4)
	if _, err := NewDistanceSensor(pin, pin); !errors.Is(err, ErrInvalidValue) {
		t.Errorf("expected ErrInvalidValue, got %v", err)
	}
}
