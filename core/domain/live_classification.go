package domain

// IntentID is one of the fixed comment intent categories.
type IntentID string

const (
	IntentPriceInquiry      IntentID = "PRICE_INQUIRY"
	IntentPurchase          IntentID = "PURCHASE_INTENT"
	IntentSizeInquiry       IntentID = "SIZE_INQUIRY"
	IntentColorInquiry      IntentID = "COLOR_INQUIRY"
	IntentStockInquiry      IntentID = "STOCK_INQUIRY"
	IntentShippingInquiry   IntentID = "SHIPPING_INQUIRY"
	IntentPaymentInquiry    IntentID = "PAYMENT_INQUIRY"
	IntentDiscountInquiry   IntentID = "DISCOUNT_INQUIRY"
	IntentProductDetail     IntentID = "PRODUCT_DETAIL"
	IntentProductCompare    IntentID = "PRODUCT_COMPARISON"
	IntentRecommendation    IntentID = "RECOMMENDATION_REQUEST"
	IntentUsageQuestion     IntentID = "USAGE_QUESTION"
	IntentWarrantyInquiry   IntentID = "WARRANTY_INQUIRY"
	IntentReturnPolicy      IntentID = "RETURN_POLICY"
	IntentOrderStatus       IntentID = "ORDER_STATUS"
	IntentComplaint         IntentID = "COMPLAINT"
	IntentTradingQuestion   IntentID = "TRADING_QUESTION"
	IntentCourseInquiry     IntentID = "COURSE_INQUIRY"
	IntentDemoRequest       IntentID = "DEMO_REQUEST"
	IntentHostQuestion      IntentID = "HOST_QUESTION"
	IntentGreeting          IntentID = "GREETING"
	IntentThanks            IntentID = "THANKS"
	IntentCompliment        IntentID = "COMPLIMENT"
	IntentSpam              IntentID = "SPAM"
	IntentGeneral           IntentID = "GENERAL"
)

// ResponseTier is the response-generation class a comment is routed to.
type ResponseTier string

const (
	TierTemplate ResponseTier = "TIER1_TEMPLATE" // canned template, ~50ms
	TierQuick    ResponseTier = "TIER2_QUICK"    // small LLM, ~500ms
	TierFull     ResponseTier = "TIER3_FULL"     // full LLM, ~2s
)

// IsValid reports whether t is a known response tier.
func (t ResponseTier) IsValid() bool {
	switch t {
	case TierTemplate, TierQuick, TierFull:
		return true
	}
	return false
}

// Fallback returns the next cheaper tier, or false for the template tier.
func (t ResponseTier) Fallback() (ResponseTier, bool) {
	switch t {
	case TierFull:
		return TierQuick, true
	case TierQuick:
		return TierTemplate, true
	}
	return "", false
}

// ClassificationResult is the Classifier output for one message.
type ClassificationResult struct {
	IntentID   IntentID     `json:"intent_id"`
	Confidence float64      `json:"confidence"` // 0.0 - 1.0
	Tier       ResponseTier `json:"tier"`
	Matched    []string     `json:"matched,omitempty"` // keywords that fired
}
