package services

import (
	"sync"
	"time"
)

// Debouncer coalesces bursts of work per key into one trailing call. A call
// scheduled while one is pending is absorbed by it; the pending call reads
// state when it fires, so nothing scheduled before it fires is lost.
type Debouncer struct {
	delay   time.Duration
	mu      sync.Mutex
	pending map[string]*time.Timer
	fns     map[string]func()
	stopped bool
}

func NewDebouncer(delay time.Duration) *Debouncer {
	return &Debouncer{
		delay:   delay,
		pending: make(map[string]*time.Timer),
		fns:     make(map[string]func()),
	}
}

// Schedule runs fn after the delay unless a call for key is already pending.
// With a zero delay fn runs synchronously.
func (d *Debouncer) Schedule(key string, fn func()) {
	if d.delay <= 0 {
		fn()
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	if _, ok := d.pending[key]; ok {
		return
	}
	d.fns[key] = fn
	d.pending[key] = time.AfterFunc(d.delay, func() {
		if run := d.take(key); run != nil {
			run()
		}
	})
}

func (d *Debouncer) take(key string) func() {
	d.mu.Lock()
	defer d.mu.Unlock()
	fn := d.fns[key]
	delete(d.fns, key)
	delete(d.pending, key)
	return fn
}

// Pending returns the number of keys waiting to fire.
func (d *Debouncer) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

// Flush stops accepting work and runs every pending call now.
func (d *Debouncer) Flush() {
	d.mu.Lock()
	d.stopped = true
	var runs []func()
	for key, timer := range d.pending {
		// A timer that already fired takes its own fn.
		if timer.Stop() {
			runs = append(runs, d.fns[key])
			delete(d.pending, key)
			delete(d.fns, key)
		}
	}
	d.mu.Unlock()

	for _, run := range runs {
		run()
	}
}
