package engine

import (
	"sync"
	"time"
)

// Clock is the time source used by the engine. Tests substitute a manual
// clock to fire the debounce timer deterministically.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is a cancellable pending call.
type Timer interface {
	Stop() bool
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

// Debouncer runs fn once after delay has elapsed since the last Trigger.
// Triggers inside the window restart the timer (trailing edge).
type Debouncer struct {
	clock Clock
	delay time.Duration
	fn    func()

	mu     sync.Mutex
	idle   *sync.Cond
	timer  Timer
	gen    uint64
	active int
}

// NewDebouncer creates a Debouncer. fn runs on the clock's timer goroutine.
func NewDebouncer(clock Clock, delay time.Duration, fn func()) *Debouncer {
	d := &Debouncer{clock: clock, delay: delay, fn: fn}
	d.idle = sync.NewCond(&d.mu)
	return d
}

// Trigger (re)starts the timer.
func (d *Debouncer) Trigger() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
	}
	d.gen++
	gen := d.gen
	d.timer = d.clock.AfterFunc(d.delay, func() { d.fire(gen) })
}

// Cancel stops a pending run and reports whether one was pending.
func (d *Debouncer) Cancel() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cancelLocked()
}

// Stop is Cancel followed by waiting for a run that has already started.
func (d *Debouncer) Stop() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	dropped := d.cancelLocked()
	for d.active > 0 {
		d.idle.Wait()
	}
	return dropped
}

func (d *Debouncer) cancelLocked() bool {
	if d.timer == nil {
		return false
	}
	d.timer.Stop()
	d.timer = nil
	d.gen++
	return true
}

// Pending reports whether a run is scheduled.
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.timer != nil
}

func (d *Debouncer) fire(gen uint64) {
	d.mu.Lock()
	// A timer that lost the race with Stop still fires; drop it.
	if gen != d.gen || d.timer == nil {
		d.mu.Unlock()
		return
	}
	d.timer = nil
	d.active++
	d.mu.Unlock()

	defer func() {
		d.mu.Lock()
		d.active--
		d.idle.Broadcast()
		d.mu.Unlock()
	}()
	d.fn()
}
