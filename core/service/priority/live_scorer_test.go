package priority

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"live_server/core/domain"
)

func comment(tier domain.SenderTier, p domain.Platform) *domain.Comment {
	return &domain.Comment{ID: "c", UserID: "u1", Message: "x", SenderTier: tier, Platform: p}
}

var (
	price   = domain.ClassificationResult{IntentID: domain.IntentPriceInquiry, Tier: domain.TierTemplate}
	neutral = domain.EmotionResult{EmotionID: domain.EmotionNeutral}
)

func TestScorePriceScenario(t *testing.T) {
	s := NewDefaultScorer()
	got := s.Score(comment(domain.SenderFree, domain.PlatformTikTok), price, neutral)

	// FREE / tiktok / no gift
	assert.Equal(t, IntentBasePrice+SenderBonusFree+PlatformBonusTikTok, got)
}

func TestScoreMonotonicInEachFactor(t *testing.T) {
	s := NewDefaultScorer()

	t.Run("sender tier strictly increasing", func(t *testing.T) {
		tiers := []domain.SenderTier{domain.SenderFree, domain.SenderTier1, domain.SenderTier2, domain.SenderTier3}
		prev := -1.0
		for _, tier := range tiers {
			got := s.Score(comment(tier, domain.PlatformGemral), price, neutral)
			assert.Greater(t, got, prev, tier)
			prev = got
		}
	})

	t.Run("negative emotion adds bonus", func(t *testing.T) {
		base := s.Score(comment(domain.SenderFree, domain.PlatformGemral), price, neutral)
		for _, e := range []domain.EmotionID{domain.EmotionAngry, domain.EmotionFrustrated, domain.EmotionSad} {
			got := s.Score(comment(domain.SenderFree, domain.PlatformGemral), price, domain.EmotionResult{EmotionID: e})
			assert.Equal(t, base+NegativeEmotionBonus, got, e)
		}
		happy := s.Score(comment(domain.SenderFree, domain.PlatformGemral), price, domain.EmotionResult{EmotionID: domain.EmotionHappy})
		assert.Equal(t, base, happy)
	})

	t.Run("external platforms above in-app", func(t *testing.T) {
		in := s.Score(comment(domain.SenderFree, domain.PlatformGemral), price, neutral)
		assert.Greater(t, s.Score(comment(domain.SenderFree, domain.PlatformTikTok), price, neutral), in)
		assert.Greater(t, s.Score(comment(domain.SenderFree, domain.PlatformFacebook), price, neutral), in)
	})

	t.Run("gift value non-decreasing and capped", func(t *testing.T) {
		prev := -1.0
		for _, v := range []float64{0, 1, 10, 100, 400, 500, 1e9} {
			c := comment(domain.SenderFree, domain.PlatformTikTok)
			c.IsGift, c.GiftValue = true, v
			got := s.Score(c, price, neutral)
			assert.GreaterOrEqual(t, got, prev)
			prev = got
		}
		assert.Equal(t, IntentBasePrice+PlatformBonusTikTok+GiftBonusCap, prev)
	})
}

func TestCappedGiftOutranksAnyChat(t *testing.T) {
	s := NewDefaultScorer()

	best := comment(domain.SenderTier3, domain.PlatformTikTok)
	maxChat := s.Score(best,
		domain.ClassificationResult{IntentID: domain.IntentPurchase},
		domain.EmotionResult{EmotionID: domain.EmotionAngry})

	gift := comment(domain.SenderFree, domain.PlatformGemral)
	gift.IsGift, gift.GiftValue = true, 500
	giftScore := s.Score(gift, domain.ClassificationResult{IntentID: domain.IntentSpam}, neutral)

	assert.Greater(t, giftScore, maxChat)
}

func TestWeightsOverridable(t *testing.T) {
	w := DefaultWeights().WithPlatformBonus(domain.PlatformGemral, 7)
	w.NegativeEmotionBonus = 0
	w.GiftCap = 1

	s := NewScorer(w)
	c := comment(domain.SenderFree, domain.PlatformGemral)
	c.IsGift, c.GiftValue = true, 500

	got := s.Explain(c, price, domain.EmotionResult{EmotionID: domain.EmotionAngry})
	assert.Equal(t, 7.0, got.Platform)
	assert.Equal(t, 0.0, got.Emotion)
	assert.Equal(t, 1.0, got.Gift)

	// original defaults untouched
	assert.Equal(t, PlatformBonusGemral, DefaultWeights().PlatformBonus[domain.PlatformGemral])
}

func TestUnknownIntentUsesDefaultBase(t *testing.T) {
	s := NewDefaultScorer()
	got := s.Explain(comment(domain.SenderFree, domain.PlatformGemral),
		domain.ClassificationResult{IntentID: "SOMETHING_NEW"}, neutral)
	assert.Equal(t, IntentBaseGeneral, got.Intent)
}

func TestGiftBonus(t *testing.T) {
	tests := []struct {
		name  string
		value float64
		want  float64
	}{
		{"zero", 0, 0},
		{"negative", -5, 0},
		{"proportional", 100, 20},
		{"capped", 10_000, 80},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GiftBonus(tt.value, GiftBonusPerUnit, GiftBonusCap))
		})
	}
}

func TestDecay(t *testing.T) {
	d := DefaultDecay()
	t0 := time.Unix(1_700_000_000, 0)

	tests := []struct {
		name string
		age  time.Duration
		want float64
	}{
		{"fresh", 0, 1},
		{"skewed clock", -time.Second, 1},
		{"half horizon", 30 * time.Second, 0.625},
		{"at horizon", 60 * time.Second, 0.25},
		{"past horizon", 10 * time.Minute, 0.25},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, d.Factor(tt.age), 1e-9)
			assert.InDelta(t, 40*tt.want, d.Apply(40, t0, t0.Add(tt.age)), 1e-9)
		})
	}

	prev := 2.0
	for age := time.Duration(0); age <= 90*time.Second; age += 5 * time.Second {
		f := d.Factor(age)
		assert.LessOrEqual(t, f, prev)
		assert.Greater(t, f, 0.0)
		prev = f
	}
}
