package logic

// Window is a fixed-capacity sliding window of samples. Pushing onto a full
// window evicts the oldest sample. Boolean samples are stored as 0 and 1 so
// the mean is the fraction of active samples.
// Not safe for concurrent use; the owning device synchronizes access.
type Window struct {
	buf   []float64
	head  int // next write position
	count int
}

// NewWindow creates a window holding up to capacity samples. capacity must
// be at least one.
func NewWindow(capacity int) *Window {
	if capacity < 1 {
		panic("logic: window capacity must be at least one")
	}
	return &Window{buf: make([]float64, capacity)}
}

// Push appends v, evicting the oldest sample if the window is full.
func (w *Window) Push(v float64) {
	if w.count < len(w.buf) {
		w.count++
	}
	w.buf[w.head] = v
	w.head = (w.head + 1) % len(w.buf)
}

// PushBool appends 1 for true and 0 for false.
func (w *Window) PushBool(b bool) {
	if b {
		w.Push(1)
	} else {
		w.Push(0)
	}
}

// Len returns the number of samples held.
func (w *Window) Len() int { return w.count }

// Cap returns the window capacity.
func (w *Window) Cap() int { return len(w.buf) }

// Full reports whether the window holds Cap samples.
func (w *Window) Full() bool { return w.count == len(w.buf) }

// Mean returns the average of the held samples, or 0 for an empty window.
func (w *Window) Mean() float64 {
	if w.count == 0 {
		return 0
	}
	var sum float64
	start := (w.head - w.count + len(w.buf)) % len(w.buf)
	for i := 0; i < w.count; i++ {
		sum += w.buf[(start+i)%len(w.buf)]
	}
	return sum / float64(w.count)
}

// Samples returns the held samples, oldest first.
func (w *Window) Samples() []float64 {
	out := make([]float64, w.count)
	start := (w.head - w.count + len(w.buf)) % len(w.buf)
	for i := 0; i < w.count; i++ {
		out[i] = w.buf[(start+i)%len(w.buf)]
	}
	return out
}

// Clear empties the window.
func (w *Window) Clear() {
	w.head = 0
	w.count = 0
}

// Ready reports whether the window can produce a state: it holds at least
// one sample, and is full unless partial is set.
func (w *Window) Ready(partial bool) bool {
	return w.count > 0 && (partial || w.Full())
}

// Active reports the thresholded state of the window: the mean of the held
// samples is at least threshold. A window that is not full only reports
// active when partial is set. ready is false while the window is empty, or
// not full and not partial.
func (w *Window) Active(threshold float64, partial bool) (active, ready bool) {
	if !w.Ready(partial) {
		return false, false
	}
	return w.Mean() >= threshold, true
}
