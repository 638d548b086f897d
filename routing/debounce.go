package routing

import (
	"sync"
	"time"
)

// DefaultSaveDebounce is the coalescing window spec.md §4.G "Persistence"
// specifies: every mutating operation schedules a save, and repeated
// mutations within this window collapse into one write.
const DefaultSaveDebounce = 1 * time.Second

// debouncedSaver coalesces repeated Schedule calls into a single save
// after delay has elapsed with no further calls, and can be forced
// synchronously via Flush (used on clean shutdown).
type debouncedSaver struct {
	mu    sync.Mutex
	timer *time.Timer
	delay time.Duration
	save  func()
}

func newDebouncedSaver(delay time.Duration, save func()) *debouncedSaver {
	return &debouncedSaver{delay: delay, save: save}
}

// Schedule (re)arms the timer; a save happens at most once per idle window.
func (d *debouncedSaver) Schedule() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, d.save)
}

// Flush cancels any pending timer and saves immediately, synchronously.
func (d *debouncedSaver) Flush() {
	d.mu.Lock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.mu.Unlock()
	d.save()
}
