package ratelimit

import (
	"testing"
	"time"
)

func TestSlidingWindow(t *testing.T) {
	t0 := time.Unix(1_700_000_000, 0)
	w := NewSlidingWindow(3, 10*time.Second, 30*time.Second)

	for i := 0; i < 3; i++ {
		now := t0.Add(time.Duration(i) * time.Second)
		if !w.Allow("u1", now) {
			t.Fatalf("event %d should be allowed", i)
		}
		w.Record("u1", now)
	}

	if w.Allow("u1", t0.Add(3*time.Second)) {
		t.Fatalf("fourth event inside window must be refused")
	}
	if !w.Allow("u2", t0.Add(3*time.Second)) {
		t.Fatalf("other keys are independent")
	}

	// first event leaves the window at t0+10s
	if !w.Allow("u1", t0.Add(10*time.Second)) {
		t.Fatalf("slot should free up once the oldest event ages out")
	}
	if got := w.Count("u1", t0.Add(10*time.Second)); got != 2 {
		t.Errorf("Count = %d, want 2", got)
	}
}

func TestSlidingWindowSweep(t *testing.T) {
	t0 := time.Unix(1_700_000_000, 0)
	w := NewSlidingWindow(5, 10*time.Second, 30*time.Second)

	w.Record("idle", t0)
	w.Record("busy", t0.Add(25*time.Second))

	if removed := w.Sweep(t0.Add(31 * time.Second)); removed != 1 {
		t.Fatalf("Sweep removed %d, want 1", removed)
	}
	if w.Len() != 1 {
		t.Fatalf("Len = %d, want 1", w.Len())
	}

	// rate limited: a second sweep inside the grace interval is a no-op
	if removed := w.Sweep(t0.Add(60 * time.Second)); removed != 0 {
		t.Fatalf("throttled sweep removed %d", removed)
	}
	if removed := w.SweepNow(t0.Add(60 * time.Second)); removed != 1 {
		t.Fatalf("SweepNow removed %d, want 1", removed)
	}
}

func TestDebouncer(t *testing.T) {
	t0 := time.Unix(1_700_000_000, 0)
	d := NewDebouncer(3 * time.Second)

	if d.IsDuplicate("k", t0) {
		t.Fatalf("unseen key is not a duplicate")
	}
	d.Mark("k", t0)

	tests := []struct {
		name string
		at   time.Duration
		want bool
	}{
		{"same instant", 0, true},
		{"inside window", 2999 * time.Millisecond, true},
		{"window elapsed", 3 * time.Second, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d.Mark("k", t0)
			if got := d.IsDuplicate("k", t0.Add(tt.at)); got != tt.want {
				t.Errorf("IsDuplicate = %v, want %v", got, tt.want)
			}
		})
	}

	d.Mark("old", t0)
	if removed := d.Sweep(t0.Add(time.Minute)); removed < 1 {
		t.Errorf("Sweep removed %d", removed)
	}
}

func TestDebouncerSweepIsThrottled(t *testing.T) {
	t0 := time.Unix(1_700_000_000, 0)
	d := NewDebouncer(3 * time.Second)

	d.Mark("a", t0)
	if removed := d.Sweep(t0.Add(5 * time.Second)); removed != 1 {
		t.Fatalf("first Sweep removed %d, want 1", removed)
	}

	d.Mark("b", t0.Add(5*time.Second))
	if removed := d.Sweep(t0.Add(9 * time.Second)); removed != 1 {
		t.Fatalf("Sweep after a full window removed %d, want 1", removed)
	}

	d.Mark("c", t0.Add(9*time.Second))
	if removed := d.Sweep(t0.Add(13 * time.Second)); removed != 1 {
		t.Fatalf("Sweep removed %d, want 1", removed)
	}
	d.Mark("d", t0.Add(9*time.Second))
	if removed := d.Sweep(t0.Add(14 * time.Second)); removed != 0 {
		t.Errorf("Sweep inside the throttle interval removed %d, want 0", removed)
	}
	if removed := d.SweepNow(t0.Add(14 * time.Second)); removed != 1 {
		t.Errorf("SweepNow removed %d, want 1", removed)
	}
}

func TestKeyedLimiter(t *testing.T) {
	l := NewKeyedLimiter(1, 2)

	if !l.Allow("tiktok") || !l.Allow("tiktok") {
		t.Fatalf("burst of 2 should pass")
	}
	if l.Allow("tiktok") {
		t.Fatalf("third immediate call must be throttled")
	}
	if !l.Allow("facebook") {
		t.Fatalf("keys have separate buckets")
	}

	unlimited := NewKeyedLimiter(0, 0)
	for i := 0; i < 100; i++ {
		if !unlimited.Allow("x") {
			t.Fatalf("non-positive rps disables limiting")
		}
	}
}
