package middleware

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"live_server/pkg/apperr"
)

// Locals keys set by BridgeAuth.
const (
	LocalBridgeID = "bridge_id"
	LocalPlatform = "platform"
	LocalClaims   = "claims"
)

// BridgeClaims identify a platform bridge (TikTok relay, Facebook poller,
// in-app chat gateway) pushing comments into the engine.
type BridgeClaims struct {
	Platform string `json:"platform,omitempty"`
	jwt.RegisteredClaims
}

// Revocations tracks revoked token ids in Redis. A nil *Revocations or nil
// client never revokes.
type Revocations struct {
	redis  *redis.Client
	prefix string
}

func NewRevocations(client *redis.Client) *Revocations {
	return &Revocations{redis: client, prefix: "live:token:revoked:"}
}

// Revoke blacklists a token id until expiry.
func (r *Revocations) Revoke(ctx context.Context, tokenID string, expiry time.Duration) error {
	if r == nil || r.redis == nil {
		return nil
	}
	return r.redis.Set(ctx, r.prefix+tokenID, "1", expiry).Err()
}

func (r *Revocations) IsRevoked(ctx context.Context, tokenID string) bool {
	if r == nil || r.redis == nil || tokenID == "" {
		return false
	}
	n, err := r.redis.Exists(ctx, r.prefix+tokenID).Result()
	return err == nil && n > 0
}

// AuthConfig configures BridgeAuth.
type AuthConfig struct {
	Secret      string
	Revocations *Revocations
	Logger      zerolog.Logger
}

// BridgeAuth validates HS256 bearer tokens. The token may also come from the
// token query parameter, since EventSource cannot set headers. An empty
// secret disables the check (development only; config refuses it in
// production).
func BridgeAuth(cfg AuthConfig) fiber.Handler {
	log := cfg.Logger.With().Str("component", "auth").Logger()
	if cfg.Secret == "" {
		log.Warn().Msg("ingest JWT secret not configured, bridge auth disabled")
		return func(c *fiber.Ctx) error { return c.Next() }
	}
	key := []byte(cfg.Secret)

	return func(c *fiber.Ctx) error {
		if c.Method() == fiber.MethodOptions {
			return c.Next()
		}

		tokenString := bearer(c.Get(fiber.HeaderAuthorization))
		if tokenString == "" {
			tokenString = c.Query("token")
		}
		if tokenString == "" {
			return apperr.Unauthorized("missing authorization")
		}

		claims := &BridgeClaims{}
		token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unsupported signing method: %v", t.Header["alg"])
			}
			return key, nil
		},
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithIssuedAt(),
			jwt.WithLeeway(time.Minute),
		)
		if err != nil || !token.Valid {
			log.Debug().Err(err).Str("path", c.Path()).Msg("bridge token rejected")
			return apperr.InvalidToken("invalid token")
		}
		if claims.Subject == "" {
			return apperr.InvalidToken("missing subject")
		}
		if cfg.Revocations.IsRevoked(c.UserContext(), claims.ID) {
			return apperr.InvalidToken("token has been revoked")
		}

		c.Locals(LocalBridgeID, claims.Subject)
		c.Locals(LocalPlatform, claims.Platform)
		c.Locals(LocalClaims, claims)
		return c.Next()
	}
}

func bearer(header string) string {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// IssueBridgeToken signs a token for a bridge. Used by ops tooling and tests.
func IssueBridgeToken(secret, bridgeID, platform, tokenID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := BridgeClaims{
		Platform: platform,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   bridgeID,
			ID:        tokenID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
