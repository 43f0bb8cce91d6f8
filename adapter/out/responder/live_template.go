// Package responder implements the response pipelines behind each tier.
package responder

import (
	"context"
	"hash/fnv"
	"strings"

	"live_server/core/domain"
)

// =============================================================================
// Tier 1 - templates
// =============================================================================

// DefaultTemplates are per-intent canned replies. {name} is replaced with
// the sender's display name.
func DefaultTemplates() map[domain.IntentID][]string {
	return map[domain.IntentID][]string{
		domain.IntentPriceInquiry: {
			"Dạ {name} ơi, giá sản phẩm đang hiển thị ngay trên giỏ hàng live ạ!",
			"{name} bấm vào giỏ hàng để xem giá ưu đãi trong live nha!",
		},
		domain.IntentPurchase: {
			"Cảm ơn {name} đã chốt đơn! Shop lên đơn ngay cho mình ạ.",
			"{name} ơi, shop ghi nhận đơn rồi nha, bấm giỏ hàng để thanh toán giúp shop ạ!",
		},
		domain.IntentSizeInquiry: {
			"{name} cho shop xin chiều cao cân nặng để tư vấn size chuẩn nha!",
		},
		domain.IntentColorInquiry: {
			"Dạ {name}, các màu đang có shop để trong giỏ hàng, mình chọn màu yêu thích nha!",
		},
		domain.IntentStockInquiry: {
			"Dạ {name}, mẫu này vẫn còn hàng ạ, mình đặt sớm kẻo hết nha!",
		},
		domain.IntentShippingInquiry: {
			"{name} ơi, shop giao toàn quốc, có hỗ trợ COD ạ!",
		},
		domain.IntentPaymentInquiry: {
			"Dạ {name}, shop nhận COD, chuyển khoản và ví điện tử ạ!",
		},
		domain.IntentDiscountInquiry: {
			"{name} ơi, mã giảm giá đang ghim trên màn hình, áp dụng ngay nha!",
		},
		domain.IntentWarrantyInquiry: {
			"Dạ {name}, sản phẩm được bảo hành chính hãng, chi tiết trong mô tả ạ.",
		},
		domain.IntentReturnPolicy: {
			"Dạ {name}, shop hỗ trợ đổi trả trong 7 ngày nếu lỗi từ nhà sản xuất ạ.",
		},
		domain.IntentOrderStatus: {
			"{name} ơi, shop kiểm tra đơn và nhắn riêng cho mình ngay nha!",
		},
		domain.IntentGreeting: {
			"Chào {name}! Cảm ơn mình đã ghé live của shop nha!",
			"Hello {name}, chúc mình xem live vui vẻ!",
		},
		domain.IntentThanks: {
			"Shop cảm ơn {name} nhiều ạ!",
		},
		domain.IntentCompliment: {
			"Cảm ơn {name} đã khen shop nha, yêu mình!",
		},
		domain.IntentComplaint: {
			"Shop rất xin lỗi {name}! Mình nhắn riêng mã đơn để shop xử lý ngay ạ.",
		},
		domain.IntentSpam: {
			"Cảm ơn {name} đã theo dõi live!",
		},
	}
}

const defaultTemplate = "Cảm ơn {name} đã bình luận, shop trả lời ngay đây ạ!"

const apologyPrefix = "Shop xin lỗi vì để {name} chờ lâu. "

// TemplateResponder answers from fixed templates. It does no I/O and never
// blocks.
type TemplateResponder struct {
	templates map[domain.IntentID][]string
	fallback  string
}

func NewTemplateResponder(templates map[domain.IntentID][]string) *TemplateResponder {
	if templates == nil {
		templates = DefaultTemplates()
	}
	return &TemplateResponder{templates: templates, fallback: defaultTemplate}
}

// Dispatch renders a template for any tier it is asked to serve.
func (r *TemplateResponder) Dispatch(_ context.Context, entry domain.QueueEntry, _ domain.ResponseTier) (*domain.Response, error) {
	tpl := r.pick(&entry)
	if entry.Emotion.EmotionID.IsNegative() && entry.Classification.IntentID != domain.IntentComplaint {
		tpl = apologyPrefix + tpl
	}
	return &domain.Response{
		Text:     Render(tpl, &entry.Comment),
		Tier:     domain.TierTemplate,
		Template: string(entry.Classification.IntentID),
	}, nil
}

// pick is stable per comment so a retried entry gets the same wording.
func (r *TemplateResponder) pick(e *domain.QueueEntry) string {
	choices := r.templates[e.Classification.IntentID]
	if len(choices) == 0 {
		return r.fallback
	}
	h := fnv.New32a()
	h.Write([]byte(e.Comment.ID))
	return choices[int(h.Sum32()%uint32(len(choices)))]
}

// Render substitutes {name} and {user} in tpl.
func Render(tpl string, c *domain.Comment) string {
	return strings.NewReplacer(
		"{name}", c.Name(),
		"{user}", c.Username,
	).Replace(tpl)
}
