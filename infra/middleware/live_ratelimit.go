package middleware

import (
	"github.com/gofiber/fiber/v2"

	"live_server/pkg/apperr"
	"live_server/pkg/ratelimit"
)

// PlatformRateLimit throttles ingest per platform. The key is the platform
// claim of the bridge token, falling back to the bridge id and then the
// client IP.
func PlatformRateLimit(limiter *ratelimit.KeyedLimiter) fiber.Handler {
	return func(c *fiber.Ctx) error {
		key, _ := c.Locals(LocalPlatform).(string)
		if key == "" {
			key, _ = c.Locals(LocalBridgeID).(string)
		}
		if key == "" {
			key = c.IP()
		}
		if !limiter.Allow(key) {
			c.Set(fiber.HeaderRetryAfter, "1")
			return apperr.RateLimited(key)
		}
		return c.Next()
	}
}
