package view

import (
	"sync"
	"time"
)

// DefaultDebounce is the delay between the last keystroke and a search.
const DefaultDebounce = 300 * time.Millisecond

// Debouncer delivers only the last search input received within a quiet
// period. Inputs are normalized with NormalizeSearch.
type Debouncer struct {
	delay time.Duration
	fn    func(string)

	mu      sync.Mutex
	timer   *time.Timer
	stopped bool
}

// NewDebouncer calls fn with the settled input. delay <= 0 uses
// DefaultDebounce.
func NewDebouncer(delay time.Duration, fn func(string)) *Debouncer {
	if delay <= 0 {
		delay = DefaultDebounce
	}
	return &Debouncer{delay: delay, fn: fn}
}

// Set records new input, restarting the quiet period.
func (d *Debouncer) Set(input string) {
	q := NormalizeSearch(input)

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, func() { d.fn(q) })
}

// Stop cancels any pending delivery. Later Sets are ignored.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
	}
}
