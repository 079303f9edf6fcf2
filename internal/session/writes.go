package session

import "sync"

// writeTracker counts in-flight progress writes. New writes may start while
// a caller is waiting for the tracker to go idle.
type writeTracker struct {
	mu      sync.Mutex
	pending int
	idle    chan struct{} // closed when pending drops to zero
}

func (w *writeTracker) start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.pending == 0 {
		w.idle = make(chan struct{})
	}
	w.pending++
}

func (w *writeTracker) done() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pending--
	if w.pending == 0 {
		close(w.idle)
	}
}

// wait returns a channel that is closed once no writes are in flight.
func (w *writeTracker) wait() <-chan struct{} {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.pending == 0 {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return w.idle
}
