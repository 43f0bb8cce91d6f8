// Package metrics provides dispatch latency percentiles and the Prometheus
// collectors of the engine.
package metrics

import (
	"sort"
	"sync"
	"time"
)

// =============================================================================
// LatencyTracker - ring buffer of recent samples
// =============================================================================

// LatencyTracker keeps the most recent samples and reports percentiles.
type LatencyTracker struct {
	mu      sync.Mutex
	samples []time.Duration
	next    int
	full    bool
	total   int64
}

// NewLatencyTracker keeps the last window samples (default 1000).
func NewLatencyTracker(window int) *LatencyTracker {
	if window <= 0 {
		window = 1000
	}
	return &LatencyTracker{samples: make([]time.Duration, window)}
}

// Record adds one sample.
func (lt *LatencyTracker) Record(d time.Duration) {
	lt.mu.Lock()
	lt.samples[lt.next] = d
	lt.next++
	if lt.next == len(lt.samples) {
		lt.next = 0
		lt.full = true
	}
	lt.total++
	lt.mu.Unlock()
}

// Stats computes percentiles over the retained samples.
func (lt *LatencyTracker) Stats() LatencyStats {
	lt.mu.Lock()
	n := lt.next
	if lt.full {
		n = len(lt.samples)
	}
	buf := make([]time.Duration, n)
	copy(buf, lt.samples[:n])
	total := lt.total
	lt.mu.Unlock()

	if n == 0 {
		return LatencyStats{}
	}
	sort.Slice(buf, func(i, j int) bool { return buf[i] < buf[j] })

	var sum time.Duration
	for _, d := range buf {
		sum += d
	}
	at := func(p float64) time.Duration {
		return buf[int(float64(n-1)*p)]
	}
	return LatencyStats{
		Count:   total,
		Min:     buf[0],
		Max:     buf[n-1],
		Avg:     sum / time.Duration(n),
		P50:     at(0.50),
		P95:     at(0.95),
		P99:     at(0.99),
		Samples: n,
	}
}

// LatencyStats holds latency statistics.
type LatencyStats struct {
	Count   int64         `json:"count"`
	Min     time.Duration `json:"min"`
	Max     time.Duration `json:"max"`
	Avg     time.Duration `json:"avg"`
	P50     time.Duration `json:"p50"`
	P95     time.Duration `json:"p95"`
	P99     time.Duration `json:"p99"`
	Samples int           `json:"samples"`
}

// ToMap renders the stats in milliseconds for JSON responses.
func (s LatencyStats) ToMap() map[string]any {
	ms := func(d time.Duration) float64 { return float64(d.Microseconds()) / 1000 }
	return map[string]any{
		"count":       s.Count,
		"min_ms":      ms(s.Min),
		"max_ms":      ms(s.Max),
		"avg_ms":      ms(s.Avg),
		"p50_ms":      ms(s.P50),
		"p95_ms":      ms(s.P95),
		"p99_ms":      ms(s.P99),
		"sample_size": s.Samples,
	}
}

// =============================================================================
// LatencyRegistry - one tracker per name (tier)
// =============================================================================

// LatencyRegistry lazily creates trackers by name.
type LatencyRegistry struct {
	mu       sync.Mutex
	window   int
	trackers map[string]*LatencyTracker
}

// NewLatencyRegistry creates a registry whose trackers keep window samples.
func NewLatencyRegistry(window int) *LatencyRegistry {
	return &LatencyRegistry{window: window, trackers: make(map[string]*LatencyTracker)}
}

// Record adds a sample to the named tracker.
func (r *LatencyRegistry) Record(name string, d time.Duration) {
	r.tracker(name).Record(d)
}

// Snapshot returns stats for every tracker.
func (r *LatencyRegistry) Snapshot() map[string]LatencyStats {
	r.mu.Lock()
	names := make(map[string]*LatencyTracker, len(r.trackers))
	for k, v := range r.trackers {
		names[k] = v
	}
	r.mu.Unlock()

	out := make(map[string]LatencyStats, len(names))
	for k, t := range names {
		out[k] = t.Stats()
	}
	return out
}

func (r *LatencyRegistry) tracker(name string) *LatencyTracker {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.trackers[name]
	if !ok {
		t = NewLatencyTracker(r.window)
		r.trackers[name] = t
	}
	return t
}
