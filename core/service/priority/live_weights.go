// Package priority turns a classified comment into a scalar priority.
package priority

import "live_server/core/domain"

// =============================================================================
// Priority Weights
// =============================================================================
//
// base = IntentBase[intent]
//      + NegativeEmotionBonus (ANGRY, FRUSTRATED, SAD)
//      + SenderTierBonus[tier]
//      + PlatformBonus[platform]
//      + min(giftValue * GiftPerUnit, GiftCap)   (gifts only)
//
// read = base * decay(now - enqueuedAt)
//
// Every term is non-negative and each lookup is monotonic in its factor.
// The largest possible non-gift score is 40+10+12+3 = 65, below GiftCap, so
// a gift that reaches the cap outranks any ordinary comment.

// -----------------------------------------------------------------------------
// Intent base scores
// -----------------------------------------------------------------------------
const (
	IntentBasePurchase       float64 = 40 // buying signal, highest
	IntentBaseComplaint      float64 = 34
	IntentBaseOrderStatus    float64 = 30
	IntentBasePrice          float64 = 28
	IntentBaseStock          float64 = 27
	IntentBaseDiscount       float64 = 26
	IntentBaseSize           float64 = 25
	IntentBaseColor          float64 = 24
	IntentBaseShipping       float64 = 24
	IntentBasePayment        float64 = 24
	IntentBaseProductDetail  float64 = 22
	IntentBaseCompare        float64 = 22
	IntentBaseRecommendation float64 = 22
	IntentBaseUsage          float64 = 20
	IntentBaseWarranty       float64 = 18
	IntentBaseReturn         float64 = 18
	IntentBaseTrading        float64 = 18
	IntentBaseCourse         float64 = 18
	IntentBaseDemo           float64 = 16
	IntentBaseHost           float64 = 12
	IntentBaseCompliment     float64 = 8
	IntentBaseThanks         float64 = 6
	IntentBaseGreeting       float64 = 6
	IntentBaseGeneral        float64 = 5 // generic chat
	IntentBaseSpam           float64 = 0
)

// -----------------------------------------------------------------------------
// Adjustments
// -----------------------------------------------------------------------------
const (
	NegativeEmotionBonus float64 = 10

	SenderBonusFree  float64 = 0
	SenderBonusTier1 float64 = 4
	SenderBonusTier2 float64 = 8
	SenderBonusTier3 float64 = 12

	// Policy: comments arriving from external platforms carry reach outside
	// the app, so they get a small lift over in-app chat.
	PlatformBonusGemral   float64 = 0
	PlatformBonusTikTok   float64 = 3
	PlatformBonusFacebook float64 = 3

	GiftBonusPerUnit float64 = 0.2
	GiftBonusCap     float64 = 80
)

// Weights holds every scoring term so tests and config can override each
// one independently.
type Weights struct {
	IntentBase           map[domain.IntentID]float64
	DefaultIntentBase    float64 // intents missing from IntentBase
	NegativeEmotionBonus float64
	SenderTierBonus      map[domain.SenderTier]float64
	PlatformBonus        map[domain.Platform]float64
	GiftPerUnit          float64
	GiftCap              float64
}

// DefaultWeights returns the reference weighting.
func DefaultWeights() Weights {
	return Weights{
		IntentBase: map[domain.IntentID]float64{
			domain.IntentPurchase:        IntentBasePurchase,
			domain.IntentComplaint:       IntentBaseComplaint,
			domain.IntentOrderStatus:     IntentBaseOrderStatus,
			domain.IntentPriceInquiry:    IntentBasePrice,
			domain.IntentStockInquiry:    IntentBaseStock,
			domain.IntentDiscountInquiry: IntentBaseDiscount,
			domain.IntentSizeInquiry:     IntentBaseSize,
			domain.IntentColorInquiry:    IntentBaseColor,
			domain.IntentShippingInquiry: IntentBaseShipping,
			domain.IntentPaymentInquiry:  IntentBasePayment,
			domain.IntentProductDetail:   IntentBaseProductDetail,
			domain.IntentProductCompare:  IntentBaseCompare,
			domain.IntentRecommendation:  IntentBaseRecommendation,
			domain.IntentUsageQuestion:   IntentBaseUsage,
			domain.IntentWarrantyInquiry: IntentBaseWarranty,
			domain.IntentReturnPolicy:    IntentBaseReturn,
			domain.IntentTradingQuestion: IntentBaseTrading,
			domain.IntentCourseInquiry:   IntentBaseCourse,
			domain.IntentDemoRequest:     IntentBaseDemo,
			domain.IntentHostQuestion:    IntentBaseHost,
			domain.IntentCompliment:      IntentBaseCompliment,
			domain.IntentThanks:          IntentBaseThanks,
			domain.IntentGreeting:        IntentBaseGreeting,
			domain.IntentGeneral:         IntentBaseGeneral,
			domain.IntentSpam:            IntentBaseSpam,
		},
		DefaultIntentBase:    IntentBaseGeneral,
		NegativeEmotionBonus: NegativeEmotionBonus,
		SenderTierBonus: map[domain.SenderTier]float64{
			domain.SenderFree:  SenderBonusFree,
			domain.SenderTier1: SenderBonusTier1,
			domain.SenderTier2: SenderBonusTier2,
			domain.SenderTier3: SenderBonusTier3,
		},
		PlatformBonus: map[domain.Platform]float64{
			domain.PlatformGemral:   PlatformBonusGemral,
			domain.PlatformTikTok:   PlatformBonusTikTok,
			domain.PlatformFacebook: PlatformBonusFacebook,
		},
		GiftPerUnit: GiftBonusPerUnit,
		GiftCap:     GiftBonusCap,
	}
}

// WithPlatformBonus returns a copy with one platform bonus replaced.
func (w Weights) WithPlatformBonus(p domain.Platform, bonus float64) Weights {
	m := make(map[domain.Platform]float64, len(w.PlatformBonus))
	for k, v := range w.PlatformBonus {
		m[k] = v
	}
	m[p] = bonus
	w.PlatformBonus = m
	return w
}
