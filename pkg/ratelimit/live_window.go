// Package ratelimit provides admission primitives for the comment queue and
// the ingest edge.
package ratelimit

import "time"

// =============================================================================
// SlidingWindow - per-key sliding count, in memory
// =============================================================================

// SlidingWindow counts admitted events per key over the last Window.
// Not safe for concurrent use: the owner serializes access and passes the
// current time explicitly so decisions are reproducible.
type SlidingWindow struct {
	limit     int
	window    time.Duration
	idleGrace time.Duration // a key idle this long past its last event is dropped
	lastSweep time.Time
	keys      map[string][]time.Time
}

// NewSlidingWindow allows at most limit events per window for each key.
func NewSlidingWindow(limit int, window, idleGrace time.Duration) *SlidingWindow {
	if idleGrace < window {
		idleGrace = window
	}
	return &SlidingWindow{
		limit:     limit,
		window:    window,
		idleGrace: idleGrace,
		keys:      make(map[string][]time.Time),
	}
}

// Allow reports whether one more event for key fits in the window at now.
// It does not record anything.
func (w *SlidingWindow) Allow(key string, now time.Time) bool {
	if w.limit <= 0 {
		return true
	}
	events := w.trim(key, now)
	return len(events) < w.limit
}

// Record counts one event for key at now.
func (w *SlidingWindow) Record(key string, now time.Time) {
	w.keys[key] = append(w.trim(key, now), now)
}

// Count returns the number of events for key inside the window at now.
func (w *SlidingWindow) Count(key string, now time.Time) int {
	return len(w.trim(key, now))
}

// Sweep drops keys whose newest event is older than the idle grace.
// It runs at most once per idle grace interval; forced sweeps use SweepNow.
func (w *SlidingWindow) Sweep(now time.Time) int {
	if !w.lastSweep.IsZero() && now.Sub(w.lastSweep) < w.idleGrace {
		return 0
	}
	return w.SweepNow(now)
}

// SweepNow drops idle keys unconditionally.
func (w *SlidingWindow) SweepNow(now time.Time) int {
	w.lastSweep = now
	removed := 0
	for key, events := range w.keys {
		if len(events) == 0 || now.Sub(events[len(events)-1]) >= w.idleGrace {
			delete(w.keys, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked keys.
func (w *SlidingWindow) Len() int {
	return len(w.keys)
}

// Reset forgets every key.
func (w *SlidingWindow) Reset() {
	w.keys = make(map[string][]time.Time)
	w.lastSweep = time.Time{}
}

func (w *SlidingWindow) trim(key string, now time.Time) []time.Time {
	events, ok := w.keys[key]
	if !ok {
		return nil
	}
	cutoff := now.Add(-w.window)
	i := 0
	for i < len(events) && !events[i].After(cutoff) {
		i++
	}
	if i > 0 {
		events = append(events[:0], events[i:]...)
		w.keys[key] = events
	}
	return events
}

// =============================================================================
// Debouncer - duplicate suppression, in memory
// =============================================================================

// Debouncer remembers keys for a fixed window. Same concurrency contract as
// SlidingWindow.
type Debouncer struct {
	window    time.Duration
	lastSweep time.Time
	seen      map[string]time.Time
}

// NewDebouncer creates a debouncer with the given window.
func NewDebouncer(window time.Duration) *Debouncer {
	return &Debouncer{
		window: window,
		seen:   make(map[string]time.Time),
	}
}

// IsDuplicate reports whether key was marked within the window before now.
func (d *Debouncer) IsDuplicate(key string, now time.Time) bool {
	at, ok := d.seen[key]
	if !ok {
		return false
	}
	if now.Sub(at) >= d.window {
		delete(d.seen, key)
		return false
	}
	return true
}

// Mark records key at now.
func (d *Debouncer) Mark(key string, now time.Time) {
	d.seen[key] = now
}

// Sweep drops expired keys and returns how many were removed. Like
// SlidingWindow.Sweep it runs at most once per window.
func (d *Debouncer) Sweep(now time.Time) int {
	if !d.lastSweep.IsZero() && now.Sub(d.lastSweep) < d.window {
		return 0
	}
	return d.SweepNow(now)
}

// SweepNow drops expired keys unconditionally.
func (d *Debouncer) SweepNow(now time.Time) int {
	d.lastSweep = now
	removed := 0
	for key, at := range d.seen {
		if now.Sub(at) >= d.window {
			delete(d.seen, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of remembered keys.
func (d *Debouncer) Len() int {
	return len(d.seen)
}

// Reset forgets every key.
func (d *Debouncer) Reset() {
	d.seen = make(map[string]time.Time)
	d.lastSweep = time.Time{}
}
