package autosave

import (
	"sync"
	"time"

	"chainstate/internal/clock"
)

// Deferred is a cancellable single-shot action. Scheduling again replaces the
// pending run; a cancelled run has no effect.
type Deferred struct {
	clock clock.Clock
	fn    func()

	mu    sync.Mutex
	timer clock.Timer
	gen   uint64
}

// NewDeferred returns an idle action that will run fn.
func NewDeferred(c clock.Clock, fn func()) *Deferred {
	if c == nil {
		c = clock.Real{}
	}
	return &Deferred{clock: c, fn: fn}
}

// Schedule arms the action to run after d, cancelling any pending run.
func (d *Deferred) Schedule(delay time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.gen++
	gen := d.gen
	d.timer = d.clock.AfterFunc(delay, func() {
		d.mu.Lock()
		if d.gen != gen {
			d.mu.Unlock()
			return
		}
		d.timer = nil
		d.mu.Unlock()
		d.fn()
	})
}

// Cancel drops the pending run. It reports whether one was pending.
func (d *Deferred) Cancel() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer == nil {
		return false
	}
	d.timer.Stop()
	d.timer = nil
	d.gen++
	return true
}

// Pending reports whether a run is armed.
func (d *Deferred) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.timer != nil
}
