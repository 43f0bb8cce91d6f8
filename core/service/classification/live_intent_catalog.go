// Package classification maps livestream chat messages to a fixed set of
// intents, each routed to a response tier.
package classification

import "live_server/core/domain"

// =============================================================================
// Intent Catalog
// =============================================================================
//
// Declaration order is the tie-break when two intents with the same weight
// match. Weights only rank intents against each other; they are not the
// priority score (see core/service/priority).
//
// Keywords are folded before compiling, so "giá", "gia" and "GIÁ" are one
// keyword. Matching is on whole tokens. A single word whose folded form is
// another common word ("xịn" and "xin", "đẹp" and "dép") only goes in as
// part of a phrase.

// Intent is one catalog row.
type Intent struct {
	ID       domain.IntentID
	Weight   float64
	Tier     domain.ResponseTier
	Keywords []string
}

// Default result when nothing matches.
const (
	DefaultIntent = domain.IntentGeneral
	DefaultTier   = domain.TierQuick
)

// DefaultCatalog returns the built-in intent table.
func DefaultCatalog() []Intent {
	return []Intent{
		{
			ID: domain.IntentPurchase, Weight: 100, Tier: domain.TierQuick,
			Keywords: []string{
				"chốt", "chốt đơn", "mua", "đặt hàng", "đặt mua", "lên đơn", "lấy 1", "lấy 2",
				"em lấy", "mình lấy", "cho mình 1", "cho em 1", "order", "buy", "add to cart",
			},
		},
		{
			ID: domain.IntentComplaint, Weight: 95, Tier: domain.TierFull,
			Keywords: []string{
				"lừa đảo", "hàng lỗi", "bị lỗi", "thất vọng", "không giống hình", "kém chất lượng",
				"giao sai", "thiếu hàng", "tệ quá", "quá tệ", "scam", "complaint", "report",
			},
		},
		{
			ID: domain.IntentOrderStatus, Weight: 90, Tier: domain.TierQuick,
			Keywords: []string{
				"đơn hàng của", "đơn của mình", "đơn của em", "chưa nhận được", "khi nào giao",
				"mã vận đơn", "kiểm tra đơn", "tracking", "order status",
			},
		},
		{
			ID: domain.IntentDiscountInquiry, Weight: 87, Tier: domain.TierTemplate,
			Keywords: []string{
				"giảm giá", "sale", "voucher", "mã giảm", "khuyến mãi", "ưu đãi", "freeship",
				"flash sale", "combo", "discount", "coupon",
			},
		},
		{
			ID: domain.IntentPriceInquiry, Weight: 85, Tier: domain.TierTemplate,
			Keywords: []string{
				"giá", "bao nhiêu tiền", "bao nhiêu", "nhiêu tiền", "bn", "mấy k", "giá sao",
				"price", "how much",
			},
		},
		{
			ID: domain.IntentStockInquiry, Weight: 78, Tier: domain.TierTemplate,
			Keywords: []string{
				"còn hàng", "còn không", "còn ko", "hết hàng", "có sẵn", "còn size", "còn màu",
				"in stock", "sold out",
			},
		},
		{
			ID: domain.IntentSizeInquiry, Weight: 75, Tier: domain.TierTemplate,
			Keywords: []string{
				"size", "sz", "kích thước", "kích cỡ", "số đo", "cân nặng", "mặc vừa", "form",
				"freesize",
			},
		},
		{
			ID: domain.IntentColorInquiry, Weight: 74, Tier: domain.TierTemplate,
			Keywords: []string{
				"màu", "màu gì", "màu đen", "màu trắng", "màu đỏ", "màu be", "color", "colour",
			},
		},
		{
			ID: domain.IntentShippingInquiry, Weight: 72, Tier: domain.TierTemplate,
			Keywords: []string{
				"ship", "phí ship", "giao hàng", "vận chuyển", "mấy ngày", "bao lâu nhận", "cod",
				"shipping", "delivery",
			},
		},
		{
			ID: domain.IntentPaymentInquiry, Weight: 70, Tier: domain.TierTemplate,
			Keywords: []string{
				"thanh toán", "chuyển khoản", "ck", "momo", "zalopay", "trả góp", "payment", "visa",
			},
		},
		{
			ID: domain.IntentWarrantyInquiry, Weight: 68, Tier: domain.TierTemplate,
			Keywords: []string{"bảo hành", "warranty", "guarantee"},
		},
		{
			ID: domain.IntentReturnPolicy, Weight: 66, Tier: domain.TierTemplate,
			Keywords: []string{"đổi trả", "đổi hàng", "trả hàng", "hoàn tiền", "refund", "return"},
		},
		{
			ID: domain.IntentProductCompare, Weight: 64, Tier: domain.TierFull,
			Keywords: []string{
				"so sánh", "khác gì", "khác nhau", "tốt hơn", "cái nào", "compare", "vs",
			},
		},
		{
			ID: domain.IntentRecommendation, Weight: 62, Tier: domain.TierFull,
			Keywords: []string{
				"tư vấn", "gợi ý", "nên mua", "nên chọn", "phù hợp", "recommend", "suggest",
			},
		},
		{
			ID: domain.IntentProductDetail, Weight: 60, Tier: domain.TierQuick,
			Keywords: []string{
				"chất liệu", "chất vải", "xuất xứ", "thành phần", "chính hãng", "hàng auth",
				"made in", "material", "cotton",
			},
		},
		{
			ID: domain.IntentUsageQuestion, Weight: 58, Tier: domain.TierQuick,
			Keywords: []string{
				"cách dùng", "sử dụng", "hướng dẫn", "bảo quản", "cách giặt", "how to use",
			},
		},
		{
			ID: domain.IntentTradingQuestion, Weight: 56, Tier: domain.TierFull,
			Keywords: []string{
				"chứng khoán", "cổ phiếu", "crypto", "bitcoin", "forex", "trading", "vào lệnh",
				"stop loss", "chart", "phân tích kỹ thuật",
			},
		},
		{
			ID: domain.IntentCourseInquiry, Weight: 54, Tier: domain.TierQuick,
			Keywords: []string{
				"khóa học", "học phí", "đăng ký học", "lớp học", "course", "webinar", "mentor",
			},
		},
		{
			ID: domain.IntentDemoRequest, Weight: 52, Tier: domain.TierQuick,
			Keywords: []string{
				"mặc thử", "thử đi", "thử cho", "cho xem", "xem thử", "soi", "cận cảnh", "quay gần", "demo",
			},
		},
		{
			ID: domain.IntentHostQuestion, Weight: 45, Tier: domain.TierQuick,
			Keywords: []string{
				"chị ơi", "anh ơi", "shop ơi", "idol", "bạn tên gì", "chị tên gì", "host",
			},
		},
		{
			ID: domain.IntentCompliment, Weight: 40, Tier: domain.TierTemplate,
			Keywords: []string{
				"đẹp quá", "đẹp thế", "đẹp lắm", "xinh", "dễ thương", "tuyệt vời", "xịn xò", "xịn quá",
				"beautiful", "cute", "❤", "😍",
			},
		},
		{
			ID: domain.IntentThanks, Weight: 35, Tier: domain.TierTemplate,
			Keywords: []string{"cảm ơn", "cám ơn", "thank", "thanks", "tks", "🙏"},
		},
		{
			ID: domain.IntentGreeting, Weight: 30, Tier: domain.TierTemplate,
			Keywords: []string{"xin chào", "chào", "hello", "hi", "alo", "👋"},
		},
		{
			ID: domain.IntentSpam, Weight: 10, Tier: domain.TierTemplate,
			Keywords: []string{
				"http", "https", "www", "bit ly", "kết bạn", "follow me", "sub chéo", "like chéo",
				"kiếm tiền online",
			},
		},
	}
}

// TierFor returns the catalog tier for id, or the default tier.
func TierFor(catalog []Intent, id domain.IntentID) domain.ResponseTier {
	for _, in := range catalog {
		if in.ID == id {
			return in.Tier
		}
	}
	return DefaultTier
}
