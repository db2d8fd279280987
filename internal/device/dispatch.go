package device

import (
	"sync"

	"github.com/rs/zerolog"
)

// Handler is a user callback for a device transition. Arguments are bound
// by closure capture when the handler is created.
type Handler func()

// dispatcher runs handlers on its own goroutine, in the order they were
// queued. The queue is unbounded so that edge delivery and sampling never
// wait on a slow handler.
type dispatcher struct {
	mu     sync.Mutex
	queue  []Handler
	wake   chan struct{}
	done   chan struct{}
	closed bool
	log    zerolog.Logger
}

func newDispatcher(log zerolog.Logger) *dispatcher {
	d := &dispatcher{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
		log:  log,
	}
	go d.run()
	return d
}

// enqueue schedules h. It never blocks.
func (d *dispatcher) enqueue(h Handler) {
	if h == nil {
		return
	}
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.queue = append(d.queue, h)
	d.mu.Unlock()

	select {
	case d.wake <- struct{}{}:
	default:
	}
}

func (d *dispatcher) run() {
	for {
		select {
		case <-d.done:
			return
		case <-d.wake:
		}
		for {
			d.mu.Lock()
			if d.closed || len(d.queue) == 0 {
				d.mu.Unlock()
				break
			}
			h := d.queue[0]
			d.queue[0] = nil
			d.queue = d.queue[1:]
			d.mu.Unlock()
			d.invoke(h)
		}
	}
}

func (d *dispatcher) invoke(h Handler) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error().Interface("panic", r).Msg("handler panicked")
		}
	}()
	h()
}

// close drops queued handlers and stops the goroutine. It does not wait for
// a running handler, so it is safe to call from inside one.
func (d *dispatcher) close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.closed = true
	d.queue = nil
	close(d.done)
}
