// Package queue is the per-session scheduling core: a bounded, deduplicating,
// rate-limited, expiring priority queue of scored comments.
//
// Selection is a linear scan over a bounded slice that evaluates the decayed
// priority of every entry at call time. Pop, Peek and the eviction check are
// O(n) with n <= Capacity (a few hundred at most); insertion is O(1). The
// scan gives an exact total order on decayed priority, which a heap keyed
// on base priority would only approximate.
package queue

import (
	"sort"
	"sync"
	"time"

	"live_server/core/domain"
	"live_server/core/service/priority"
	"live_server/pkg/ratelimit"
)

// Config bounds the queue.
type Config struct {
	Capacity    int
	DedupWindow time.Duration // same user + same normalized text
	RateLimit   int           // admitted non-gift comments per user per RateWindow
	RateWindow  time.Duration
	MaxAge      time.Duration // entries older than this are never served
	IdleGrace   time.Duration // per-user windows idle this long are dropped
}

// DefaultConfig returns the reference limits.
func DefaultConfig() Config {
	return Config{
		Capacity:    200,
		DedupWindow: 3 * time.Second,
		RateLimit:   5,
		RateWindow:  10 * time.Second,
		MaxAge:      120 * time.Second,
		IdleGrace:   30 * time.Second,
	}
}

// Option configures a CommentQueue.
type Option func(*CommentQueue)

// WithClock replaces time.Now.
func WithClock(clock func() time.Time) Option {
	return func(q *CommentQueue) { q.clock = clock }
}

// WithDecay replaces the default decay.
func WithDecay(d priority.Decay) Option {
	return func(q *CommentQueue) { q.decay = d }
}

// WithExpiredHook is called, outside the lock, with entries dropped as stale
// by Pop, Peek or Enqueue.
func WithExpiredHook(fn func([]domain.QueueEntry)) Option {
	return func(q *CommentQueue) { q.onExpired = fn }
}

// CommentQueue is safe for many concurrent producers and one consumer. All
// state sits behind one mutex; no call blocks on anything but that lock.
type CommentQueue struct {
	mu      sync.Mutex
	cfg     Config
	clock   func() time.Time
	decay   priority.Decay
	entries []domain.QueueEntry
	seq     uint64
	dedup   *ratelimit.Debouncer
	rate    *ratelimit.SlidingWindow
	closed  bool

	notify    chan struct{}
	onExpired func([]domain.QueueEntry)
}

// New creates an empty queue.
func New(cfg Config, opts ...Option) *CommentQueue {
	def := DefaultConfig()
	if cfg.Capacity <= 0 {
		cfg.Capacity = def.Capacity
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = def.MaxAge
	}
	if cfg.IdleGrace <= 0 {
		cfg.IdleGrace = def.IdleGrace
	}

	q := &CommentQueue{
		cfg:     cfg,
		clock:   time.Now,
		decay:   priority.DefaultDecay(),
		entries: make([]domain.QueueEntry, 0, cfg.Capacity),
		dedup:   ratelimit.NewDebouncer(cfg.DedupWindow),
		rate:    ratelimit.NewSlidingWindow(cfg.RateLimit, cfg.RateWindow, cfg.IdleGrace),
		notify:  make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// =============================================================================
// Admission
// =============================================================================

// Enqueue admits entry or says why not. Checks run in order: duplicate,
// per-user rate (gifts bypass), capacity. At capacity the entry must beat
// the current minimum strictly; it then evicts exactly that minimum.
// EnqueuedAt is taken from the entry when set, else from the queue clock.
func (q *CommentQueue) Enqueue(entry domain.QueueEntry) domain.EnqueueResult {
	q.mu.Lock()
	now := q.clock()
	if entry.EnqueuedAt.IsZero() {
		entry.EnqueuedAt = now
	}

	expired := q.expireLocked(now)
	res := q.admitLocked(entry, now)
	q.mu.Unlock()

	q.fireExpired(expired)
	if res.Accepted {
		q.signal()
	}
	return res
}

func (q *CommentQueue) admitLocked(entry domain.QueueEntry, now time.Time) domain.EnqueueResult {
	if q.closed {
		return domain.EnqueueResult{Reason: domain.ReasonClosed}
	}

	c := &entry.Comment
	dkey := dedupKey(&entry)
	q.dedup.Sweep(now)
	if q.cfg.DedupWindow > 0 && q.dedup.IsDuplicate(dkey, now) {
		return domain.EnqueueResult{Reason: domain.ReasonDuplicate}
	}

	q.rate.Sweep(now)
	if !c.IsGift && !q.rate.Allow(c.UserID, now) {
		return domain.EnqueueResult{Reason: domain.ReasonRateLimited}
	}

	res := domain.EnqueueResult{Accepted: true, Reason: domain.ReasonAccepted}
	if len(q.entries) >= q.cfg.Capacity {
		idx := q.worstLocked(now)
		if q.decayed(&entry, now) <= q.decayed(&q.entries[idx], now) {
			return domain.EnqueueResult{Reason: domain.ReasonQueueFull}
		}
		evicted := q.removeLocked(idx)
		res.Evicted = &evicted
		res.Reason = domain.ReasonEvicted
	}

	q.seq++
	entry.Seq = q.seq
	q.entries = append(q.entries, entry)

	if q.cfg.DedupWindow > 0 {
		q.dedup.Mark(dkey, now)
	}
	if !c.IsGift {
		q.rate.Record(c.UserID, now)
	}
	return res
}

// dedupKey scopes text duplicates to the sender. Gifts are keyed by comment
// id so repeated gifts with the same (often empty) text all count.
func dedupKey(e *domain.QueueEntry) string {
	if e.Comment.IsGift {
		return "gift\x00" + e.Comment.ID
	}
	return e.Comment.UserID + "\x00" + e.NormalizedText
}

// =============================================================================
// Consumption
// =============================================================================

// PopHighest removes and returns the entry with the highest decayed
// priority at call time. Ties go to the earlier enqueue, then to the lower
// sequence number, so the order is total.
func (q *CommentQueue) PopHighest() (domain.QueueEntry, bool) {
	q.mu.Lock()
	now := q.clock()
	expired := q.expireLocked(now)

	var (
		entry domain.QueueEntry
		ok    bool
	)
	if len(q.entries) > 0 {
		entry, ok = q.removeLocked(q.bestLocked(now)), true
	}
	q.mu.Unlock()

	q.fireExpired(expired)
	return entry, ok
}

// Peek returns what PopHighest would return without removing it.
func (q *CommentQueue) Peek() (domain.QueueEntry, bool) {
	q.mu.Lock()
	now := q.clock()
	expired := q.expireLocked(now)

	var (
		entry domain.QueueEntry
		ok    bool
	)
	if len(q.entries) > 0 {
		entry, ok = q.entries[q.bestLocked(now)], true
	}
	q.mu.Unlock()

	q.fireExpired(expired)
	return entry, ok
}

// ExpireStale drops entries older than MaxAge at now and returns them.
func (q *CommentQueue) ExpireStale(now time.Time) []domain.QueueEntry {
	q.mu.Lock()
	expired := q.expireLocked(now)
	q.mu.Unlock()

	q.fireExpired(expired)
	return expired
}

// Notify is signalled, without blocking, after each admission. The
// consumer waits on it when the queue is empty.
func (q *CommentQueue) Notify() <-chan struct{} {
	return q.notify
}

// =============================================================================
// Introspection and teardown
// =============================================================================

// Len returns the number of queued entries.
func (q *CommentQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// Snapshot returns the queued entries in pop order with their decayed
// priority at now. The queue is not modified.
func (q *CommentQueue) Snapshot() []Ranked {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.clock()
	out := make([]Ranked, len(q.entries))
	for i := range q.entries {
		out[i] = Ranked{Entry: q.entries[i], Effective: q.decayed(&q.entries[i], now)}
	}
	sortRanked(out)
	return out
}

// Ranked pairs an entry with its decayed priority.
type Ranked struct {
	Entry     domain.QueueEntry `json:"entry"`
	Effective float64           `json:"effective_priority"`
}

// TrackedUsers returns how many per-user rate windows are live.
func (q *CommentQueue) TrackedUsers() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.rate.Len()
}

// DedupKeys returns how many duplicate-suppression keys are remembered.
func (q *CommentQueue) DedupKeys() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dedup.Len()
}

// Clear drops every entry and all per-user state, returning the entries.
func (q *CommentQueue) Clear() []domain.QueueEntry {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.clearLocked()
}

func (q *CommentQueue) clearLocked() []domain.QueueEntry {
	dropped := q.entries
	q.entries = make([]domain.QueueEntry, 0, q.cfg.Capacity)
	q.dedup.Reset()
	q.rate.Reset()
	return dropped
}

// Close clears the queue and refuses further admissions.
func (q *CommentQueue) Close() []domain.QueueEntry {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.closed = true
	return q.clearLocked()
}

// =============================================================================
// Internals (q.mu held)
// =============================================================================

func (q *CommentQueue) decayed(e *domain.QueueEntry, now time.Time) float64 {
	return q.decay.Apply(e.Priority, e.EnqueuedAt, now)
}

// before reports whether a is served before b.
func before(a, b *domain.QueueEntry, pa, pb float64) bool {
	if pa != pb {
		return pa > pb
	}
	if !a.EnqueuedAt.Equal(b.EnqueuedAt) {
		return a.EnqueuedAt.Before(b.EnqueuedAt)
	}
	return a.Seq < b.Seq
}

func sortRanked(r []Ranked) {
	sort.SliceStable(r, func(i, j int) bool {
		return before(&r[i].Entry, &r[j].Entry, r[i].Effective, r[j].Effective)
	})
}

func (q *CommentQueue) bestLocked(now time.Time) int {
	best, bestP := 0, q.decayed(&q.entries[0], now)
	for i := 1; i < len(q.entries); i++ {
		p := q.decayed(&q.entries[i], now)
		if before(&q.entries[i], &q.entries[best], p, bestP) {
			best, bestP = i, p
		}
	}
	return best
}

func (q *CommentQueue) worstLocked(now time.Time) int {
	worst, worstP := 0, q.decayed(&q.entries[0], now)
	for i := 1; i < len(q.entries); i++ {
		p := q.decayed(&q.entries[i], now)
		if before(&q.entries[worst], &q.entries[i], worstP, p) {
			worst, worstP = i, p
		}
	}
	return worst
}

// removeLocked deletes index i by swapping with the last element; order in
// the slice carries no meaning.
func (q *CommentQueue) removeLocked(i int) domain.QueueEntry {
	e := q.entries[i]
	last := len(q.entries) - 1
	q.entries[i] = q.entries[last]
	q.entries[last] = domain.QueueEntry{}
	q.entries = q.entries[:last]
	return e
}

func (q *CommentQueue) expireLocked(now time.Time) []domain.QueueEntry {
	var expired []domain.QueueEntry
	for i := 0; i < len(q.entries); {
		if now.Sub(q.entries[i].EnqueuedAt) > q.cfg.MaxAge {
			expired = append(expired, q.removeLocked(i))
			continue
		}
		i++
	}
	return expired
}

func (q *CommentQueue) fireExpired(expired []domain.QueueEntry) {
	if len(expired) > 0 && q.onExpired != nil {
		q.onExpired(expired)
	}
}

func (q *CommentQueue) signal() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}
