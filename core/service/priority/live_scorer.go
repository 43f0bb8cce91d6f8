package priority

import (
	"math"

	"live_server/core/domain"
)

// Scorer computes base priorities. It has no mutable state.
type Scorer struct {
	weights Weights
}

func NewScorer(w Weights) *Scorer {
	return &Scorer{weights: w}
}

func NewDefaultScorer() *Scorer {
	return NewScorer(DefaultWeights())
}

// Breakdown lists the contribution of each term.
type Breakdown struct {
	Intent   float64 `json:"intent"`
	Emotion  float64 `json:"emotion"`
	Sender   float64 `json:"sender"`
	Platform float64 `json:"platform"`
	Gift     float64 `json:"gift"`
}

// Total sums the terms.
func (b Breakdown) Total() float64 {
	return b.Intent + b.Emotion + b.Sender + b.Platform + b.Gift
}

// Score returns the base priority frozen into the queue entry.
func (s *Scorer) Score(c *domain.Comment, cls domain.ClassificationResult, emo domain.EmotionResult) float64 {
	return s.Explain(c, cls, emo).Total()
}

// Explain returns the per-term breakdown behind Score.
func (s *Scorer) Explain(c *domain.Comment, cls domain.ClassificationResult, emo domain.EmotionResult) Breakdown {
	w := s.weights
	var b Breakdown

	if v, ok := w.IntentBase[cls.IntentID]; ok {
		b.Intent = v
	} else {
		b.Intent = w.DefaultIntentBase
	}
	if emo.EmotionID.IsNegative() {
		b.Emotion = w.NegativeEmotionBonus
	}
	b.Sender = w.SenderTierBonus[c.SenderTier]
	b.Platform = w.PlatformBonus[c.Platform]
	if c.IsGift {
		b.Gift = GiftBonus(c.GiftValue, w.GiftPerUnit, w.GiftCap)
	}
	return b
}

// GiftBonus is proportional to value and capped. Negative or NaN values
// earn nothing.
func GiftBonus(value, perUnit, limit float64) float64 {
	if value <= 0 || math.IsNaN(value) {
		return 0
	}
	return math.Min(value*perUnit, limit)
}

// Weights returns the weights in use.
func (s *Scorer) Weights() Weights {
	return s.weights
}
