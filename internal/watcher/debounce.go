package watcher

import (
	"sync"
	"time"
)

// debouncer collapses bursts of calls into one callback invocation
// after a quiet period. The callback never overlaps with itself: a new
// call while the timer is armed just rearms it.
type debouncer struct {
	mu      sync.Mutex
	delay   time.Duration
	timer   *time.Timer
	pending bool
	// seq invalidates timer callbacks that lost the race with a newer
	// call or a cancel.
	seq uint64
	fn  func()
}

func newDebouncer(delay time.Duration, fn func()) *debouncer {
	return &debouncer{delay: delay, fn: fn}
}

// call schedules the callback one quiet period from now, superseding
// any earlier schedule.
func (d *debouncer) call() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.pending = true
	d.seq++
	seq := d.seq

	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, func() {
		d.mu.Lock()
		if !d.pending || d.seq != seq {
			d.mu.Unlock()
			return
		}
		d.pending = false
		d.mu.Unlock()
		d.fn()
	})
}

// cancel drops any pending invocation.
func (d *debouncer) cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.seq++
	d.pending = false
}
