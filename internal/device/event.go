package device

import (
	"sync"
	"time"
)

// Forever makes wait calls block until the awaited state is reached or the
// device is closed.
const Forever time.Duration = -1

// Event is a boolean latch. Goroutines can block until it is set.
type Event struct {
	mu  sync.Mutex
	set bool
	ch  chan struct{} // closed while set
}

// NewEvent returns an unset Event.
func NewEvent() *Event {
	return &Event{ch: make(chan struct{})}
}

// Set sets the latch, releasing all waiters.
func (e *Event) Set() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.set {
		e.set = true
		close(e.ch)
	}
}

// Clear resets the latch.
func (e *Event) Clear() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.set {
		e.set = false
		e.ch = make(chan struct{})
	}
}

// IsSet reports whether the latch is set.
func (e *Event) IsSet() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.set
}

// C returns a channel that is closed once the latch is set. A later Clear
// does not reopen a channel already returned.
func (e *Event) C() <-chan struct{} {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ch
}

// Wait blocks until the latch is set or timeout elapses and reports whether
// it was set. A zero timeout polls; Forever waits indefinitely.
func (e *Event) Wait(timeout time.Duration) bool {
	return e.waitOrDone(timeout, nil)
}

// waitOrDone is Wait that also gives up when done is closed.
func (e *Event) waitOrDone(timeout time.Duration, done <-chan struct{}) bool {
	ch := e.C()
	select {
	case <-ch:
		return true
	default:
	}
	if timeout == 0 {
		return false
	}

	var expired <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		expired = t.C
	}
	select {
	case <-ch:
		return true
	case <-expired:
		return false
	case <-done:
		return false
	}
}
