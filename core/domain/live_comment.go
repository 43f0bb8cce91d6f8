package domain

import "time"

// Platform identifies where a comment originated.
type Platform string

const (
	PlatformGemral   Platform = "gemral"   // in-app chat
	PlatformTikTok   Platform = "tiktok"   // TikTok LIVE bridge
	PlatformFacebook Platform = "facebook" // Facebook Graph polling
)

// IsValid reports whether p is one of the supported platforms.
func (p Platform) IsValid() bool {
	switch p {
	case PlatformGemral, PlatformTikTok, PlatformFacebook:
		return true
	}
	return false
}

// IsExternal reports whether the platform is outside the app.
func (p Platform) IsExternal() bool {
	return p == PlatformTikTok || p == PlatformFacebook
}

// SenderTier is the membership tier of the comment author.
type SenderTier string

const (
	SenderFree  SenderTier = "FREE"
	SenderTier1 SenderTier = "TIER1"
	SenderTier2 SenderTier = "TIER2"
	SenderTier3 SenderTier = "TIER3"
)

// IsValid reports whether t is a known sender tier.
func (t SenderTier) IsValid() bool {
	switch t {
	case SenderFree, SenderTier1, SenderTier2, SenderTier3:
		return true
	}
	return false
}

// Comment is the normalized chat or gift event produced by a platform adapter.
// It is immutable once built.
type Comment struct {
	ID          string     `json:"id"` // platform-qualified, e.g. "tiktok_<msgId>"
	Platform    Platform   `json:"platform"`
	UserID      string     `json:"user_id"` // fairness and rate-limit key
	Username    string     `json:"username"`
	DisplayName string     `json:"display_name"`
	Message     string     `json:"message"` // may be empty for pure gift events
	Timestamp   time.Time  `json:"timestamp"`
	SenderTier  SenderTier `json:"sender_tier"`
	IsGift      bool       `json:"is_gift"`
	GiftValue   float64    `json:"gift_value"`
	Badges      []string   `json:"badges,omitempty"` // informational only
}

// Name returns the best human-facing name for the sender.
func (c *Comment) Name() string {
	if c.DisplayName != "" {
		return c.DisplayName
	}
	if c.Username != "" {
		return c.Username
	}
	return c.UserID
}
