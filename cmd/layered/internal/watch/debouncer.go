// Package watch regenerates the corpus when post files change.
package watch

import (
	"slices"
	"sync"
	"time"
)

// MaxPendingPaths is the maximum number of paths that can be pending.
// Reaching it triggers a flush immediately instead of waiting for quiet.
const MaxPendingPaths = 1000

// Debouncer coalesces rapid file change events into one batch of paths.
// A batch is flushed once no event has arrived for the window, so editors
// that write a file in several steps cause a single refresh.
type Debouncer struct {
	mu      sync.Mutex
	pending map[string]struct{}
	timer   *time.Timer
	window  time.Duration
	onFlush func(paths []string)
	stopped bool
}

// NewDebouncer creates a debouncer with the given quiescence window.
// onFlush receives the sorted set of changed paths.
func NewDebouncer(window time.Duration, onFlush func(paths []string)) *Debouncer {
	return &Debouncer{
		pending: make(map[string]struct{}),
		window:  window,
		onFlush: onFlush,
	}
}

// Add records a change to path and restarts the quiescence window.
func (d *Debouncer) Add(path string) {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}

	d.pending[path] = struct{}{}

	if len(d.pending) >= MaxPendingPaths {
		d.stopTimerLocked()
		paths := d.drainLocked()
		d.mu.Unlock()
		d.emit(paths)
		return
	}

	// A timer that already fired may have queued flush; flush copes with an
	// empty pending set.
	d.stopTimerLocked()
	d.timer = time.AfterFunc(d.window, d.flush)
	d.mu.Unlock()
}

// flush is called when the timer expires.
func (d *Debouncer) flush() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	paths := d.drainLocked()
	d.mu.Unlock()
	d.emit(paths)
}

// FlushNow flushes pending paths without waiting for the window.
func (d *Debouncer) FlushNow() {
	d.mu.Lock()
	d.stopTimerLocked()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	paths := d.drainLocked()
	d.mu.Unlock()
	d.emit(paths)
}

// Stop stops the debouncer. Pending paths are flushed one last time and
// later events are ignored.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	d.stopped = true
	d.stopTimerLocked()
	paths := d.drainLocked()
	d.mu.Unlock()
	d.emit(paths)
}

// PendingCount returns the number of paths waiting to be flushed.
func (d *Debouncer) PendingCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

func (d *Debouncer) stopTimerLocked() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

// drainLocked empties the pending set. Caller must hold d.mu.
func (d *Debouncer) drainLocked() []string {
	if len(d.pending) == 0 {
		return nil
	}
	paths := make([]string, 0, len(d.pending))
	for p := range d.pending {
		paths = append(paths, p)
	}
	slices.Sort(paths)
	d.pending = make(map[string]struct{})
	return paths
}

// emit runs the handler outside the lock so it may take as long as a
// refresh needs.
func (d *Debouncer) emit(paths []string) {
	if len(paths) > 0 && d.onFlush != nil {
		d.onFlush(paths)
	}
}
