package livestream

import (
	"math"
	"strings"
	"time"

	"live_server/core/domain"
	"live_server/pkg/apperr"
)

// prepare validates c and fills the defaults a platform adapter may leave
// out. It returns a copy; the caller's comment is not touched.
func prepare(c *domain.Comment, now time.Time) (domain.Comment, error) {
	if c == nil {
		return domain.Comment{}, apperr.Validation("comment", "required")
	}
	cp := *c

	if strings.TrimSpace(cp.ID) == "" {
		return cp, apperr.Validation("id", "required")
	}
	if strings.TrimSpace(cp.UserID) == "" {
		return cp, apperr.Validation("user_id", "required")
	}
	if !cp.Platform.IsValid() {
		return cp, apperr.Validation("platform", "unknown platform "+string(cp.Platform))
	}
	if cp.SenderTier == "" {
		cp.SenderTier = domain.SenderFree
	}
	if !cp.SenderTier.IsValid() {
		return cp, apperr.Validation("sender_tier", "unknown tier "+string(cp.SenderTier))
	}
	if math.IsNaN(cp.GiftValue) || math.IsInf(cp.GiftValue, 0) || cp.GiftValue < 0 {
		return cp, apperr.Validation("gift_value", "must be a finite non-negative number")
	}
	if !cp.IsGift && strings.TrimSpace(cp.Message) == "" {
		return cp, apperr.Validation("message", "required unless the comment is a gift")
	}
	if cp.Timestamp.IsZero() {
		cp.Timestamp = now
	}
	if len(cp.Badges) > 0 {
		cp.Badges = append([]string(nil), cp.Badges...)
	}
	return cp, nil
}
