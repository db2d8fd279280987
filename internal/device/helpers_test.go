package device

import (
	"testing"
	"time"

	"github.com/sweeney/sensord/internal/gpio"
)

// newFactory returns a fake pin factory that is reset, along with the
// default registry, when the test ends.
func newFactory(t *testing.T) *gpio.FakeFactory {
	t.Helper()
	f := gpio.NewFakeFactory()
	t.Cleanup(func() {
		f.Reset()
		DefaultRegistry.Clear()
	})
	return f
}

// recv waits for a value on ch, failing the test after a second.
func recv[T any](t *testing.T, ch <-chan T, what string) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for %s", what)
	}
	var zero T
	return zero
}

// none asserts nothing arrives on ch for a short while.
func none[T any](t *testing.T, ch <-chan T, what string) {
	t.Helper()
	select {
	case v := <-ch:
		t.Fatalf("unexpected %s: %v", what, v)
	case <-time.After(50 * time.Millisecond):
	}
}

// signal returns a handler that sends on a buffered channel.
func signal() (Handler, <-chan struct{}) {
	ch := make(chan struct{}, 16)
	return func() { ch <- struct{}{} }, ch
}
