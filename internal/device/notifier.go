package device

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// notifier tracks the last reported state of a device, keeps the
// active/inactive latches in step with it and queues user handlers on
// transitions.
type notifier struct {
	mu          sync.Mutex
	known       bool
	last        bool
	lastChanged time.Time

	active   *Event
	inactive *Event

	whenActivated   Handler
	whenDeactivated Handler

	// onChange is called with the lock held on every transition after the
	// initial state. It must not block.
	onChange func(active bool, t time.Time)

	disp *dispatcher
	done <-chan struct{}
}

func newNotifier(done <-chan struct{}, log zerolog.Logger) *notifier {
	return &notifier{
		active:   NewEvent(),
		inactive: NewEvent(),
		disp:     newDispatcher(log),
		done:     done,
	}
}

// fire records state. The first call sets the initial state without
// running handlers, since no edge has been seen.
func (n *notifier) fire(state bool, t time.Time) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if !n.known {
		n.known = true
		n.last = state
		n.lastChanged = t
		n.latch(state)
		return
	}
	if state == n.last {
		return
	}
	n.last = state
	n.lastChanged = t
	n.latch(state)
	if n.onChange != nil {
		n.onChange(state, t)
	}
	if state {
		n.disp.enqueue(n.whenActivated)
	} else {
		n.disp.enqueue(n.whenDeactivated)
	}
}

func (n *notifier) latch(state bool) {
	if state {
		n.inactive.Clear()
		n.active.Set()
	} else {
		n.active.Clear()
		n.inactive.Set()
	}
}

// WaitForActive blocks until the device is active or timeout elapses and
// reports whether it became active. It returns false immediately once the
// device is closed.
func (n *notifier) WaitForActive(timeout time.Duration) bool {
	return n.active.waitOrDone(timeout, n.done)
}

// WaitForInactive blocks until the device is inactive or timeout elapses.
func (n *notifier) WaitForInactive(timeout time.Duration) bool {
	return n.inactive.waitOrDone(timeout, n.done)
}

// SetWhenActivated replaces the handler run on each activation. nil
// disables it.
func (n *notifier) SetWhenActivated(h Handler) {
	n.mu.Lock()
	n.whenActivated = h
	n.mu.Unlock()
}

// SetWhenDeactivated replaces the handler run on each deactivation. nil
// disables it.
func (n *notifier) SetWhenDeactivated(h Handler) {
	n.mu.Lock()
	n.whenDeactivated = h
	n.mu.Unlock()
}

// ActiveTime returns how long the device has been active. ok is false while
// it is inactive or its state is unknown.
func (n *notifier) ActiveTime() (d time.Duration, ok bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.known || !n.last {
		return 0, false
	}
	return time.Since(n.lastChanged), true
}

// InactiveTime returns how long the device has been inactive.
func (n *notifier) InactiveTime() (d time.Duration, ok bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.known || n.last {
		return 0, false
	}
	return time.Since(n.lastChanged), true
}

// dispatch queues h on the device's handler goroutine.
func (n *notifier) dispatch(h Handler) {
	n.disp.enqueue(h)
}

// reset forgets the last state and clears both latches, so waiters block
// until the next transition and the next fire only re-baselines.
func (n *notifier) reset() {
	n.mu.Lock()
	n.known = false
	n.active.Clear()
	n.inactive.Clear()
	n.mu.Unlock()
}

func (n *notifier) close() {
	n.disp.close()
}
