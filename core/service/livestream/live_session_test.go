package livestream

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"live_server/core/domain"
	"live_server/core/port/in"
	"live_server/core/port/out"
	"live_server/core/service/priority"
	"live_server/pkg/apperr"
)

type recorder struct {
	mu     sync.Mutex
	events []domain.Event
}

func (r *recorder) Publish(e domain.Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *recorder) count(t domain.EventType) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Type == t {
			n++
		}
	}
	return n
}

func templateOnly() out.ResponseGenerator {
	return out.ResponseGeneratorFunc(func(ctx context.Context, e domain.QueueEntry, tier domain.ResponseTier) (*domain.Response, error) {
		if tier != domain.TierTemplate {
			return nil, fmt.Errorf("%s unavailable", tier)
		}
		return &domain.Response{Text: "Dạ " + e.Comment.Name() + " ơi"}, nil
	})
}

func blocking() out.ResponseGenerator {
	return out.ResponseGeneratorFunc(func(ctx context.Context, _ domain.QueueEntry, _ domain.ResponseTier) (*domain.Response, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
}

func newTestSession(t *testing.T, responder out.ResponseGenerator, pub out.EventPublisher) *Session {
	t.Helper()
	settings := DefaultSettings()
	settings.Loop.IdlePoll = 10 * time.Millisecond
	settings.Budgets.TemplateHardLimit = 5 * time.Second
	s := NewSession("s1", in.StartSessionRequest{Title: "flash sale"}, Components{
		Responder: responder,
		Publisher: pub,
		Logger:    zerolog.Nop(),
	}, settings)
	t.Cleanup(s.Close)
	return s
}

func tiktok(id, user, msg string) *domain.Comment {
	return &domain.Comment{ID: id, UserID: user, Message: msg, Platform: domain.PlatformTikTok, SenderTier: domain.SenderFree}
}

func TestIngestValidation(t *testing.T) {
	s := newTestSession(t, templateOnly(), nil)

	tests := []struct {
		name  string
		c     *domain.Comment
		field string
	}{
		{"nil", nil, "comment"},
		{"missing id", &domain.Comment{UserID: "u", Message: "x", Platform: domain.PlatformTikTok}, "id"},
		{"missing user", &domain.Comment{ID: "c", Message: "x", Platform: domain.PlatformTikTok}, "user_id"},
		{"empty message", &domain.Comment{ID: "c", UserID: "u", Message: "  ", Platform: domain.PlatformTikTok}, "message"},
		{"bad platform", &domain.Comment{ID: "c", UserID: "u", Message: "x", Platform: "youtube"}, "platform"},
		{"bad tier", &domain.Comment{ID: "c", UserID: "u", Message: "x", Platform: domain.PlatformGemral, SenderTier: "VIP"}, "sender_tier"},
		{"negative gift", &domain.Comment{ID: "c", UserID: "u", IsGift: true, GiftValue: -1, Platform: domain.PlatformTikTok}, "gift_value"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := s.Ingest(context.Background(), tt.c)
			require.Error(t, err)
			assert.Nil(t, res)
			assert.True(t, apperr.IsCode(err, apperr.CodeValidationFailed))
			assert.Equal(t, tt.field, apperr.AsAppError(err).Details["field"])
		})
	}
	assert.Equal(t, 0, s.Queue().Len())
}

func TestGiftWithoutMessageIsValid(t *testing.T) {
	s := newTestSession(t, templateOnly(), nil)

	res, err := s.Ingest(context.Background(), &domain.Comment{
		ID: "g", UserID: "u", IsGift: true, GiftValue: 100, Platform: domain.PlatformFacebook,
	})
	require.NoError(t, err)
	assert.True(t, res.Accepted)
	assert.Equal(t, domain.IntentGeneral, res.Classification.IntentID)
}

func TestPriceInquiryIsAnsweredByTemplate(t *testing.T) {
	rec := &recorder{}
	s := newTestSession(t, templateOnly(), rec)

	res, err := s.Ingest(context.Background(), tiktok("tiktok_1", "u1", "giá bao nhiêu?"))
	require.NoError(t, err)
	require.True(t, res.Accepted)
	assert.Equal(t, domain.IntentPriceInquiry, res.Classification.IntentID)
	assert.Equal(t, domain.TierTemplate, res.Classification.Tier)
	assert.Equal(t, priority.IntentBasePrice+priority.SenderBonusFree+priority.PlatformBonusTikTok, res.Priority)

	s.Start(context.Background())

	select {
	case o := <-s.Outcomes():
		assert.Equal(t, "tiktok_1", o.Entry.ID())
		assert.Equal(t, domain.StateCompleted, o.State)
		assert.Equal(t, domain.TierTemplate, o.FinalTier)
		require.NotNil(t, o.Response)
		assert.Contains(t, o.Response.Text, "u1")
	case <-time.After(2 * time.Second):
		t.Fatal("no outcome")
	}

	assert.Equal(t, 1, rec.count(domain.EventEnqueued))
	assert.Equal(t, 1, rec.count(domain.EventCompleted))
	assert.Equal(t, 1, rec.count(domain.EventSessionStarted))
}

func TestFullTierFallsBackToTemplateThroughSession(t *testing.T) {
	s := newTestSession(t, templateOnly(), nil)

	res, err := s.Ingest(context.Background(), tiktok("c1", "u1", "hàng bị lỗi, shop làm ăn kiểu gì vậy"))
	require.NoError(t, err)
	require.Equal(t, domain.TierFull, res.Classification.Tier)

	s.Start(context.Background())
	o := <-s.Outcomes()
	assert.Equal(t, domain.StateCompleted, o.State)
	assert.Equal(t, domain.TierFull, o.OriginalTier)
	assert.Equal(t, domain.TierTemplate, o.FinalTier)

	require.Eventually(t, func() bool { return s.Stats().Fallbacks == 1 }, time.Second, 5*time.Millisecond)
}

func TestGiftOutranksExhaustedUser(t *testing.T) {
	s := newTestSession(t, templateOnly(), nil) // not started: inspect the queue

	msgs := []string{"chốt đơn", "giá bao nhiêu", "còn size M không", "ship cod không", "màu đen còn không"}
	for i, m := range msgs {
		res, err := s.Ingest(context.Background(), tiktok(fmt.Sprintf("c%d", i), "u1", m))
		require.NoError(t, err)
		require.True(t, res.Accepted, m)
	}

	res, err := s.Ingest(context.Background(), tiktok("c5", "u1", "alo shop"))
	require.NoError(t, err)
	assert.False(t, res.Accepted)
	assert.Equal(t, domain.ReasonRateLimited, res.Reason)

	gift := tiktok("gift", "u1", "")
	gift.IsGift, gift.GiftValue = true, 500
	res, err = s.Ingest(context.Background(), gift)
	require.NoError(t, err)
	require.True(t, res.Accepted)

	e, ok := s.Queue().PopHighest()
	require.True(t, ok)
	assert.Equal(t, "gift", e.ID())

	st := s.Stats()
	assert.Equal(t, int64(6), st.Accepted)
	assert.Equal(t, int64(1), st.Rejected[domain.ReasonRateLimited])
}

func TestCloseCancelsAndRefuses(t *testing.T) {
	rec := &recorder{}
	s := newTestSession(t, blocking(), rec)
	s.Start(context.Background())

	_, err := s.Ingest(context.Background(), tiktok("c1", "u1", "giá bao nhiêu"))
	require.NoError(t, err)
	require.Eventually(t, func() bool { return s.Stats().InFlight == 1 }, time.Second, 5*time.Millisecond)

	s.Close()

	o, ok := <-s.Outcomes()
	require.True(t, ok)
	assert.Equal(t, domain.StateCancelled, o.State)
	_, ok = <-s.Outcomes()
	assert.False(t, ok, "outcomes closed after the loop stopped")

	_, err = s.Ingest(context.Background(), tiktok("c2", "u2", "hi"))
	assert.True(t, apperr.IsCode(err, apperr.CodeSessionClosed))
	assert.False(t, s.Info().Active)
	assert.NotNil(t, s.Info().EndedAt)
	assert.Equal(t, 1, rec.count(domain.EventSessionEnded))

	s.Close() // idempotent
	assert.Equal(t, 1, rec.count(domain.EventSessionEnded))
}

func TestExpiredEntriesArePublished(t *testing.T) {
	rec := &recorder{}
	now := time.Unix(1_700_000_000, 0)
	var mu sync.Mutex
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}

	s := NewSession("s1", in.StartSessionRequest{}, Components{Responder: templateOnly(), Publisher: rec, Logger: zerolog.Nop()}, DefaultSettings(), WithClock(clock))
	t.Cleanup(s.Close)

	_, err := s.Ingest(context.Background(), tiktok("old", "u1", "giá bao nhiêu"))
	require.NoError(t, err)

	mu.Lock()
	now = now.Add(3 * time.Minute)
	mu.Unlock()

	_, ok := s.Queue().PopHighest()
	assert.False(t, ok)
	assert.Equal(t, 1, rec.count(domain.EventExpired))
	assert.Equal(t, int64(1), s.Stats().Expired)
}

func TestConcurrentIngest(t *testing.T) {
	s := newTestSession(t, templateOnly(), nil)

	var wg sync.WaitGroup
	for p := 0; p < 4; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < 25; i++ {
				_, err := s.Ingest(context.Background(), tiktok(fmt.Sprintf("p%d-%d", p, i), fmt.Sprintf("u%d-%d", p, i), "giá bao nhiêu"))
				assert.NoError(t, err)
			}
		}(p)
	}
	wg.Wait()
	assert.Equal(t, 100, s.Queue().Len())
}
