package gpio

import (
	"errors"
	"testing"
	"time"
)

func TestFakePinPullDrivesLevel(t *testing.T) {
	p := NewFakePin(4)

	if err := p.SetPull(PullUp); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	high, _ := p.Read()
	if !high {
		t.Error("expected high after pull up")
	}

	if err := p.SetPull(PullDown); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	high, _ = p.Read()
	if high {
		t.Error("expected low after pull down")
	}
}

func TestFakePinFixedPull(t *testing.T) {
	f := NewFakeFactory()
	p := f.Pin(2)

	pull, fixed := p.FixedPull()
	if !fixed || pull != PullUp {
		t.Fatalf("expected fixed pull up on GPIO2, got (%v, %v)", pull, fixed)
	}
	if p.Pull() != PullUp {
		t.Errorf("expected pull up, got %s", p.Pull())
	}

	for _, pull := range []Pull{PullDown, PullFloating} {
		if err := p.SetPull(pull); !errors.Is(err, ErrPinFixedPull) {
			t.Errorf("SetPull(%s): expected ErrPinFixedPull, got %v", pull, err)
		}
	}
	if err := p.SetPull(PullUp); err != nil {
		t.Errorf("SetPull(up) on pulled-up pin: unexpected error: %v", err)
	}
}

func TestFakePinInvalidConfig(t *testing.T) {
	p := NewFakePin(4)

	if err := p.SetFunction(Function(7)); !errors.Is(err, ErrPinInvalidFunction) {
		t.Errorf("expected ErrPinInvalidFunction, got %v", err)
	}
	if err := p.SetPull(Pull(9)); !errors.Is(err, ErrPinInvalidPull) {
		t.Errorf("expected ErrPinInvalidPull, got %v", err)
	}
	if err := p.Write(true); !errors.Is(err, ErrPinInvalidFunction) {
		t.Errorf("write to input: expected ErrPinInvalidFunction, got %v", err)
	}

	p.SetFunction(Output)
	if err := p.SetPull(PullUp); !errors.Is(err, ErrPinInvalidPull) {
		t.Errorf("pull on output: expected ErrPinInvalidPull, got %v", err)
	}
}

func TestFakePinEdgeHandler(t *testing.T) {
	p := NewFakePin(4)

	var got []bool
	p.SetEdgeHandler(EdgeBoth, func(high bool, _ time.Time) {
		got = append(got, high)
	})

	p.DriveHigh()
	p.DriveHigh() // no change, no edge
	p.DriveLow()

	if len(got) != 2 {
		t.Fatalf("expected 2 edges, got %d", len(got))
	}
	if got[0] != true || got[1] != false {
		t.Errorf("expected [true false], got %v", got)
	}
}

func TestFakePinRisingEdgeOnly(t *testing.T) {
	p := NewFakePin(4)

	count := 0
	p.SetEdgeHandler(EdgeRising, func(bool, time.Time) { count++ })

	p.DriveHigh()
	p.DriveLow()
	p.DriveHigh()

	if count != 2 {
		t.Errorf("expected 2 rising edges, got %d", count)
	}
}

func TestFakePinClose(t *testing.T) {
	p := NewFakePin(4)
	p.SetEdgeHandler(EdgeBoth, func(bool, time.Time) {})

	if err := p.Close(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if !p.Closed() {
		t.Error("should be closed after Close()")
	}
	if p.EdgeHandlerSet() {
		t.Error("edge handler should be dropped on close")
	}
	if _, err := p.Read(); !errors.Is(err, ErrPinClosed) {
		t.Errorf("expected ErrPinClosed, got %v", err)
	}
}

func TestFakePinPWM(t *testing.T) {
	plain := NewFakePin(4)
	if err := plain.SetFrequency(100); !errors.Is(err, ErrPinPWMUnsupported) {
		t.Errorf("expected ErrPinPWMUnsupported, got %v", err)
	}

	p := NewFakePWMPin(18)
	p.SetFunction(Output)
	if err := p.SetDutyCycle(0.5); !errors.Is(err, ErrPinPWMUnsupported) {
		t.Errorf("duty cycle without frequency: expected ErrPinPWMUnsupported, got %v", err)
	}
	if err := p.SetFrequency(100); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, duty := range []float64{0.0, 0.1, 0.5, 1.0} {
		if err := p.SetDutyCycle(duty); err != nil {
			t.Fatalf("SetDutyCycle(%v): unexpected error: %v", duty, err)
		}
		got, _ := p.DutyCycle()
		if got != duty {
			t.Errorf("duty cycle: got %v, want %v", got, duty)
		}
	}
	if err := p.SetDutyCycle(1.1); !errors.Is(err, ErrInvalidDutyCycle) {
		t.Errorf("expected ErrInvalidDutyCycle, got %v", err)
	}
}

func TestValidateDutyCycle(t *testing.T) {
	tests := []struct {
		in      float64
		want    float64
		wantErr bool
	}{
		{0, 0, false},
		{0.5, 0.5, false},
		{1, 1, false},
		{1.005, 1, false},
		{-0.1, 0, true},
		{1.1, 0, true},
	}
	for _, tt := range tests {
		got, err := ValidateDutyCycle(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateDutyCycle(%v): error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ValidateDutyCycle(%v): got %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestFakeChargingPin(t *testing.T) {
	p := NewFakeChargingPin(4, 10*time.Millisecond)

	rose := make(chan struct{}, 1)
	p.SetEdgeHandler(EdgeRising, func(bool, time.Time) {
		select {
		case rose <- struct{}{}:
		default:
		}
	})

	p.SetFunction(Output)
	p.Write(false)
	p.SetFunction(Input)

	select {
	case <-rose:
	case <-time.After(time.Second):
		t.Fatal("expected rising edge after charge time")
	}
	p.Close()
}

func TestFakeChargingPinDischargeCancels(t *testing.T) {
	p := NewFakeChargingPin(4, 50*time.Millisecond)
	p.SetFunction(Input)
	p.SetFunction(Output)

	time.Sleep(100 * time.Millisecond)
	high, _ := p.Read()
	if high {
		t.Error("charge should be cancelled by switching to output")
	}
	p.Close()
}

func TestFakeTriggerPin(t *testing.T) {
	echo := NewFakePin(4)
	trig := NewFakeTriggerPin(5, echo, 20*time.Millisecond)
	trig.SetFunction(Output)

	edges := make(chan bool, 4)
	echo.SetEdgeHandler(EdgeBoth, func(high bool, _ time.Time) { edges <- high })

	trig.Write(true)
	trig.Write(false)

	for _, want := range []bool{true, false} {
		select {
		case got := <-edges:
			if got != want {
				t.Errorf("echo edge: got %v, want %v", got, want)
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for echo edge %v", want)
		}
	}
	trig.Close()
}

func TestFakeFactoryReset(t *testing.T) {
	f := NewFakeFactory()
	p := f.Pin(4)
	if f.Pin(4) != p {
		t.Error("expected the same pin for the same number")
	}

	f.Reset()
	if !p.Closed() {
		t.Error("reset should close handed out pins")
	}
	if f.Pin(4) == p {
		t.Error("expected a fresh pin after reset")
	}
}

func TestParsePull(t *testing.T) {
	for s, want := range map[string]Pull{"up": PullUp, "down": PullDown, "floating": PullFloating, "": PullFloating} {
		got, err := ParsePull(s)
		if err != nil {
			t.Errorf("ParsePull(%q): unexpected error: %v", s, err)
		}
		if got != want {
			t.Errorf("ParsePull(%q): got %s, want %s", s, got, want)
		}
	}
	if _, err := ParsePull("sideways"); !errors.Is(err, ErrPinInvalidPull) {
		t.Errorf("expected ErrPinInvalidPull, got %v", err)
	}
}
