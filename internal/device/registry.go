package device

import (
	"fmt"
	"sync"

	"github.com/sweeney/sensord/internal/gpio"
)

// Registry tracks which device owns each pin so that two devices cannot
// drive or sample the same line.
type Registry struct {
	mu     sync.Mutex
	owners map[string]any
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{owners: make(map[string]any)}
}

// DefaultRegistry is the process-wide registry used unless a device is
// given its own with WithRegistry.
var DefaultRegistry = NewRegistry()

// Reserve records owner as the user of pin.
func (r *Registry) Reserve(owner any, pin gpio.Pin) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := pin.Name()
	if cur, ok := r.owners[key]; ok && cur != owner {
		return fmt.Errorf("%w: %s", ErrPinInUse, key)
	}
	r.owners[key] = owner
	return nil
}

// Release frees pin if it is held by owner.
func (r *Registry) Release(owner any, pin gpio.Pin) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := pin.Name()
	if cur, ok := r.owners[key]; ok && cur == owner {
		delete(r.owners, key)
	}
}

// Reserved reports whether any device holds pin.
func (r *Registry) Reserved(pin gpio.Pin) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.owners[pin.Name()]
	return ok
}

// Len returns the number of reserved pins.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.owners)
}

// Clear forgets every reservation. Tests call it between cases.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.owners = make(map[string]any)
}
