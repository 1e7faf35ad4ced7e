package opsalert

import (
	"sync"
	"time"
)

// Debouncer suppresses repeat alerts for the same key within a window. A
// flapping SMTP relay should produce one operator ping, not one per update.
type Debouncer struct {
	lastSent map[string]time.Time
	window   time.Duration
	now      func() time.Time
	mu       sync.Mutex
}

// NewDebouncer creates a debouncer with the given suppression window.
func NewDebouncer(window time.Duration) *Debouncer {
	if window <= 0 {
		window = 10 * time.Minute
	}
	return &Debouncer{
		lastSent: make(map[string]time.Time),
		window:   window,
		now:      time.Now,
	}
}

// Allow reports whether an alert for the key may be sent now, and records it
// when allowed.
func (d *Debouncer) Allow(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	if sent, ok := d.lastSent[key]; ok && now.Sub(sent) < d.window {
		return false
	}

	d.lastSent[key] = now
	d.cleanupLocked(now)
	return true
}

// Size returns the number of tracked keys.
func (d *Debouncer) Size() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.lastSent)
}

// cleanupLocked drops keys whose window already elapsed.
func (d *Debouncer) cleanupLocked(now time.Time) {
	for key, sent := range d.lastSent {
		if now.Sub(sent) >= d.window {
			delete(d.lastSent, key)
		}
	}
}
