package queue

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"live_server/core/domain"
	"live_server/core/service/classification"
	"live_server/core/service/emotion"
	"live_server/core/service/priority"
	"live_server/pkg/textnorm"
)

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *manualClock {
	return &manualClock{now: time.Unix(1_700_000_000, 0)}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func entry(id, user, msg string, p float64) domain.QueueEntry {
	return domain.QueueEntry{
		Comment: domain.Comment{
			ID: id, UserID: user, Message: msg,
			Platform: domain.PlatformTikTok, SenderTier: domain.SenderFree,
		},
		Priority:       p,
		NormalizedText: textnorm.Key(msg),
	}
}

func newQueue(clock *manualClock, mutate func(*Config)) *CommentQueue {
	cfg := DefaultConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	return New(cfg, WithClock(clock.Now))
}

func TestPopReturnsStrictlyDecreasingPriority(t *testing.T) {
	clock := newClock()
	q := newQueue(clock, func(c *Config) { c.RateLimit = 0 })

	for i := 1; i <= 20; i++ {
		res := q.Enqueue(entry(fmt.Sprintf("c%d", i), fmt.Sprintf("u%d", i), "hello", float64(i)))
		require.True(t, res.Accepted)
	}

	prev := 1e9
	for {
		e, ok := q.PopHighest()
		if !ok {
			break
		}
		assert.Less(t, e.Priority, prev)
		prev = e.Priority
	}
	assert.Equal(t, 0, q.Len())
}

func TestTiesPopInEnqueueOrder(t *testing.T) {
	clock := newClock()
	q := newQueue(clock, nil)

	for i := 0; i < 5; i++ {
		require.True(t, q.Enqueue(entry(fmt.Sprintf("c%d", i), fmt.Sprintf("u%d", i), "x", 10)).Accepted)
	}
	for i := 0; i < 5; i++ {
		e, ok := q.PopHighest()
		require.True(t, ok)
		assert.Equal(t, fmt.Sprintf("c%d", i), e.ID())
	}
}

func TestDuplicateWithinWindowRejected(t *testing.T) {
	clock := newClock()
	q := newQueue(clock, nil)

	require.True(t, q.Enqueue(entry("c1", "u1", "Giá bao nhiêu?", 10)).Accepted)

	clock.Advance(time.Second)
	res := q.Enqueue(entry("c2", "u1", "gia BAO nhieu ?", 10))
	assert.False(t, res.Accepted)
	assert.Equal(t, domain.ReasonDuplicate, res.Reason)

	// other users are not affected
	assert.True(t, q.Enqueue(entry("c3", "u2", "Giá bao nhiêu?", 10)).Accepted)

	// window elapsed
	clock.Advance(3 * time.Second)
	assert.True(t, q.Enqueue(entry("c4", "u1", "Giá bao nhiêu?", 10)).Accepted)
}

func TestRateLimitAndGiftBypass(t *testing.T) {
	clock := newClock()
	q := newQueue(clock, nil) // K=5, W=10s

	for i := 0; i < 5; i++ {
		res := q.Enqueue(entry(fmt.Sprintf("c%d", i), "u1", fmt.Sprintf("msg %d", i), 10))
		require.True(t, res.Accepted, "comment %d", i)
		clock.Advance(100 * time.Millisecond)
	}

	res := q.Enqueue(entry("c5", "u1", "msg 5", 10))
	assert.False(t, res.Accepted)
	assert.Equal(t, domain.ReasonRateLimited, res.Reason)

	gift := entry("g1", "u1", "", 90)
	gift.Comment.IsGift, gift.Comment.GiftValue = true, 500
	assert.True(t, q.Enqueue(gift).Accepted)

	gift2 := entry("g2", "u1", "", 90)
	gift2.Comment.IsGift, gift2.Comment.GiftValue = true, 500
	assert.True(t, q.Enqueue(gift2).Accepted, "gifts with equal text are keyed by id")

	// window slides: the first comment leaves at t0+10s
	clock.Advance(10 * time.Second)
	assert.True(t, q.Enqueue(entry("c6", "u1", "msg 6", 10)).Accepted)
}

func TestRejectedCommentsDoNotConsumeRate(t *testing.T) {
	clock := newClock()
	q := newQueue(clock, func(c *Config) { c.RateLimit = 2 })

	require.True(t, q.Enqueue(entry("c1", "u1", "a", 10)).Accepted)
	for i := 0; i < 3; i++ {
		assert.Equal(t, domain.ReasonDuplicate, q.Enqueue(entry("dup", "u1", "a", 10)).Reason)
	}
	assert.True(t, q.Enqueue(entry("c2", "u1", "b", 10)).Accepted)
}

func TestExpiredEntryNeverServed(t *testing.T) {
	clock := newClock()
	var expired []domain.QueueEntry
	q := New(DefaultConfig(), WithClock(clock.Now), WithExpiredHook(func(e []domain.QueueEntry) {
		expired = append(expired, e...)
	}))

	require.True(t, q.Enqueue(entry("old", "u1", "a", 1000)).Accepted)
	clock.Advance(100 * time.Second)
	require.True(t, q.Enqueue(entry("fresh", "u2", "b", 1)).Accepted)

	clock.Advance(21 * time.Second) // old is now 121s
	dropped := q.ExpireStale(clock.Now())
	require.Len(t, dropped, 1)
	assert.Equal(t, "old", dropped[0].ID())

	e, ok := q.Peek()
	require.True(t, ok)
	assert.Equal(t, "fresh", e.ID())
	e, ok = q.PopHighest()
	require.True(t, ok)
	assert.Equal(t, "fresh", e.ID())
	assert.Len(t, expired, 1)
}

func TestPopExpiresOpportunistically(t *testing.T) {
	clock := newClock()
	q := newQueue(clock, nil)

	require.True(t, q.Enqueue(entry("old", "u1", "a", 1000)).Accepted)
	clock.Advance(121 * time.Second)

	_, ok := q.PopHighest()
	assert.False(t, ok)
}

func TestFullQueueEvictsExactlyMinimum(t *testing.T) {
	clock := newClock()
	q := newQueue(clock, func(c *Config) { c.Capacity = 3 })

	require.True(t, q.Enqueue(entry("a", "u1", "a", 10)).Accepted)
	require.True(t, q.Enqueue(entry("b", "u2", "b", 5)).Accepted)
	require.True(t, q.Enqueue(entry("c", "u3", "c", 20)).Accepted)

	res := q.Enqueue(entry("d", "u4", "d", 6))
	require.True(t, res.Accepted)
	assert.Equal(t, domain.ReasonEvicted, res.Reason)
	require.NotNil(t, res.Evicted)
	assert.Equal(t, "b", res.Evicted.ID())
	assert.Equal(t, 3, q.Len())

	var ids []string
	for _, r := range q.Snapshot() {
		ids = append(ids, r.Entry.ID())
	}
	assert.Equal(t, []string{"c", "a", "d"}, ids)
}

func TestFullQueueRejectsEqualOrLower(t *testing.T) {
	clock := newClock()
	q := newQueue(clock, func(c *Config) { c.Capacity = 2 })

	require.True(t, q.Enqueue(entry("a", "u1", "a", 10)).Accepted)
	require.True(t, q.Enqueue(entry("b", "u2", "b", 5)).Accepted)
	before := q.Snapshot()

	for _, p := range []float64{5, 4, 0} {
		res := q.Enqueue(entry(fmt.Sprintf("n%v", p), fmt.Sprintf("x%v", p), "n", p))
		assert.False(t, res.Accepted)
		assert.Equal(t, domain.ReasonQueueFull, res.Reason)
		assert.Nil(t, res.Evicted)
	}
	assert.Equal(t, before, q.Snapshot())
}

func TestDecayLetsFreshItemOvertakeStaleBacklog(t *testing.T) {
	clock := newClock()
	q := newQueue(clock, nil)

	require.True(t, q.Enqueue(entry("stale", "u1", "a", 30)).Accepted)
	clock.Advance(60 * time.Second) // factor 0.25 -> 7.5
	require.True(t, q.Enqueue(entry("fresh", "u2", "b", 10)).Accepted)

	e, ok := q.PopHighest()
	require.True(t, ok)
	assert.Equal(t, "fresh", e.ID())
	// stored priority is never rewritten
	e, _ = q.PopHighest()
	assert.Equal(t, 30.0, e.Priority)
}

func TestIdleUserWindowsAreCollected(t *testing.T) {
	clock := newClock()
	q := newQueue(clock, nil)

	for i := 0; i < 10; i++ {
		require.True(t, q.Enqueue(entry(fmt.Sprintf("c%d", i), fmt.Sprintf("u%d", i), "x", 1)).Accepted)
	}
	assert.Equal(t, 10, q.TrackedUsers())

	clock.Advance(31 * time.Second)
	require.True(t, q.Enqueue(entry("late", "late-user", "x", 1)).Accepted)
	assert.Equal(t, 1, q.TrackedUsers())
}

func TestDedupKeysAreCollected(t *testing.T) {
	clock := newClock()
	q := newQueue(clock, nil)

	for i := 0; i < 5000; i++ {
		res := q.Enqueue(entry(fmt.Sprintf("c%d", i), fmt.Sprintf("u%d", i%50), fmt.Sprintf("msg %d", i), 1))
		require.True(t, res.Accepted, "comment %d: %s", i, res.Reason)
		_, ok := q.PopHighest()
		require.True(t, ok)
		clock.Advance(time.Second)
	}
	// window is 3s: only keys marked in roughly the last two windows survive
	assert.LessOrEqual(t, q.DedupKeys(), 6)
}

func TestCloseClearsStateAndRefuses(t *testing.T) {
	clock := newClock()
	q := newQueue(clock, nil)
	require.True(t, q.Enqueue(entry("a", "u1", "a", 1)).Accepted)

	dropped := q.Close()
	assert.Len(t, dropped, 1)
	assert.Equal(t, 0, q.Len())
	assert.Equal(t, 0, q.TrackedUsers())
	assert.Equal(t, 0, q.DedupKeys())
	assert.Equal(t, domain.ReasonClosed, q.Enqueue(entry("b", "u2", "b", 1)).Reason)
}

func TestCloseDuringEnqueueLeavesNothingBehind(t *testing.T) {
	for round := 0; round < 20; round++ {
		q := New(Config{Capacity: 10_000, RateLimit: 1000, RateWindow: time.Second})

		var wg sync.WaitGroup
		for p := 0; p < 4; p++ {
			wg.Add(1)
			go func(p int) {
				defer wg.Done()
				for i := 0; i < 200; i++ {
					q.Enqueue(entry(fmt.Sprintf("c%d-%d", p, i), fmt.Sprintf("u%d", p), fmt.Sprintf("m%d", i), 1))
				}
			}(p)
		}
		q.Close()
		wg.Wait()

		assert.Equal(t, 0, q.Len(), "round %d: entry admitted after close", round)
	}
}

func TestNotifySignalsAdmission(t *testing.T) {
	q := newQueue(newClock(), nil)
	q.Enqueue(entry("a", "u1", "a", 1))

	select {
	case <-q.Notify():
	default:
		t.Fatal("expected notification")
	}
}

func TestConcurrentProducersSingleConsumer(t *testing.T) {
	q := New(Config{Capacity: 10_000, RateLimit: 1000, RateWindow: time.Second, DedupWindow: time.Second})

	var wg sync.WaitGroup
	for p := 0; p < 8; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				q.Enqueue(entry(fmt.Sprintf("p%d-%d", p, i), fmt.Sprintf("u%d", p), fmt.Sprintf("m%d", i), float64(i)))
			}
		}(p)
	}

	popped := 0
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	for {
		if _, ok := q.PopHighest(); ok {
			popped++
			continue
		}
		select {
		case <-done:
			for {
				if _, ok := q.PopHighest(); !ok {
					assert.Equal(t, 1600, popped)
					return
				}
				popped++
			}
		default:
		}
	}
}

func TestPriceInquiryScenario(t *testing.T) {
	clock := newClock()
	q := newQueue(clock, nil)
	cls := classification.NewDefaultClassifier()
	det := emotion.NewDefaultDetector()
	scorer := priority.NewDefaultScorer()

	c := domain.Comment{
		ID: "tiktok_1", UserID: "u1", Message: "giá bao nhiêu?",
		SenderTier: domain.SenderFree, Platform: domain.PlatformTikTok,
	}
	r := cls.Classify(c.Message)
	require.Equal(t, domain.IntentPriceInquiry, r.IntentID)
	require.Equal(t, domain.TierTemplate, r.Tier)

	e := domain.QueueEntry{
		Comment: c, Classification: r, Emotion: det.Detect(c.Message),
		Priority: scorer.Score(&c, r, det.Detect(c.Message)), NormalizedText: textnorm.Key(c.Message),
	}
	require.True(t, q.Enqueue(e).Accepted)

	got, ok := q.PopHighest()
	require.True(t, ok)
	assert.Equal(t, "tiktok_1", got.ID())
	assert.Equal(t, priority.IntentBasePrice+priority.SenderBonusFree+priority.PlatformBonusTikTok, got.Priority)
}

func TestGiftOutranksRateLimitedBurst(t *testing.T) {
	clock := newClock()
	q := newQueue(clock, nil)
	cls := classification.NewDefaultClassifier()
	det := emotion.NewDefaultDetector()
	scorer := priority.NewDefaultScorer()

	build := func(c domain.Comment) domain.QueueEntry {
		r, em := cls.Classify(c.Message), det.Detect(c.Message)
		return domain.QueueEntry{
			Comment: c, Classification: r, Emotion: em,
			Priority: scorer.Score(&c, r, em), NormalizedText: textnorm.Key(c.Message),
		}
	}

	msgs := []string{"chốt đơn", "giá bao nhiêu", "còn size L không", "ship COD không", "hàng lỗi rồi 😡"}
	for i, m := range msgs {
		c := domain.Comment{ID: fmt.Sprintf("c%d", i), UserID: "u1", Message: m,
			SenderTier: domain.SenderFree, Platform: domain.PlatformTikTok}
		require.True(t, q.Enqueue(build(c)).Accepted)
	}
	extra := domain.Comment{ID: "c5", UserID: "u1", Message: "alo", SenderTier: domain.SenderFree, Platform: domain.PlatformTikTok}
	require.Equal(t, domain.ReasonRateLimited, q.Enqueue(build(extra)).Reason)

	gift := domain.Comment{ID: "gift", UserID: "u1", IsGift: true, GiftValue: 500,
		SenderTier: domain.SenderFree, Platform: domain.PlatformTikTok}
	require.True(t, q.Enqueue(build(gift)).Accepted)

	first, ok := q.PopHighest()
	require.True(t, ok)
	assert.Equal(t, "gift", first.ID())
	for i := 0; i < 5; i++ {
		e, ok := q.PopHighest()
		require.True(t, ok)
		assert.Less(t, e.Priority, first.Priority)
	}
}
