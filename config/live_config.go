package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"live_server/adapter/out/analytics"
	"live_server/core/domain"
	"live_server/core/service/dispatch"
	"live_server/core/service/livestream"
	"live_server/core/service/priority"
	"live_server/core/service/queue"
	"live_server/pkg/apperr"
)

// generateConsumerName creates a unique stream consumer name using hostname and PID
func generateConsumerName() string {
	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "engine"
	}
	return fmt.Sprintf("%s-%d", hostname, os.Getpid())
}

type Config struct {
	Port        string
	Environment string
	LogLevel    string
	NodeID      int64

	// Queue
	QueueCapacity    int
	QueueDedupWindow time.Duration
	QueueRateLimit   int
	QueueRateWindow  time.Duration
	QueueMaxAge      time.Duration
	QueueIdleGrace   time.Duration

	// Decay
	DecayHorizon time.Duration
	DecayFloor   float64

	// Dispatch
	Tier1Budget      time.Duration
	Tier1HardLimit   time.Duration
	Tier2Budget      time.Duration
	Tier3Budget      time.Duration
	MaxInFlight      int
	DispatchIdlePoll time.Duration

	// Scoring
	PlatformBonusTikTok   float64
	PlatformBonusFacebook float64
	PlatformBonusGemral   float64
	GiftBonusPerUnit      float64
	GiftBonusCap          float64

	// Storage
	DatabaseURL         string
	RedisURL            string
	AnalyticsSQLitePath string
	AnalyticsStream     string
	AnalyticsWorkers    int

	// Ingest
	IngestStream    string
	IngestGroup     string
	IngestConsumer  string
	IngestBatchSize int
	IngestBlock     time.Duration
	IngestRPS       float64
	IngestBurst     int
	IngestJWTSecret string
	MetricsInterval time.Duration

	// OpenAI
	OpenAIAPIKey      string
	OpenAIBaseURL     string
	LLMQuickModel     string
	LLMFullModel      string
	LLMQuickMaxTokens int
	LLMFullMaxTokens  int
	LLMPersona        string

	// CORS
	AllowedOrigins []string
}

func Load() (*Config, error) {
	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENV", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		NodeID:      int64(getEnvInt("NODE_ID", 1)),

		// Queue
		QueueCapacity:    getEnvInt("QUEUE_CAPACITY", 200),
		QueueDedupWindow: getEnvDuration("QUEUE_DEDUP_WINDOW_MS", 3*time.Second),
		QueueRateLimit:   getEnvInt("QUEUE_RATE_LIMIT", 5),
		QueueRateWindow:  getEnvDuration("QUEUE_RATE_WINDOW_MS", 10*time.Second),
		QueueMaxAge:      getEnvDuration("QUEUE_MAX_AGE_MS", 120*time.Second),
		QueueIdleGrace:   getEnvDuration("QUEUE_IDLE_GRACE_MS", 30*time.Second),

		// Decay
		DecayHorizon: getEnvDuration("DECAY_HORIZON_MS", priority.DefaultDecayHorizon),
		DecayFloor:   getEnvFloat("DECAY_FLOOR", priority.DefaultDecayFloor),

		// Dispatch
		Tier1Budget:      getEnvDuration("TIER1_BUDGET_MS", 50*time.Millisecond),
		Tier1HardLimit:   getEnvDuration("TIER1_HARD_LIMIT_MS", 500*time.Millisecond),
		Tier2Budget:      getEnvDuration("TIER2_BUDGET_MS", 500*time.Millisecond),
		Tier3Budget:      getEnvDuration("TIER3_BUDGET_MS", 2*time.Second),
		MaxInFlight:      getEnvInt("DISPATCH_MAX_IN_FLIGHT", 4),
		DispatchIdlePoll: getEnvDuration("DISPATCH_IDLE_POLL_MS", 200*time.Millisecond),

		// Scoring
		PlatformBonusTikTok:   getEnvFloat("PLATFORM_BONUS_TIKTOK", priority.PlatformBonusTikTok),
		PlatformBonusFacebook: getEnvFloat("PLATFORM_BONUS_FACEBOOK", priority.PlatformBonusFacebook),
		PlatformBonusGemral:   getEnvFloat("PLATFORM_BONUS_GEMRAL", priority.PlatformBonusGemral),
		GiftBonusPerUnit:      getEnvFloat("GIFT_BONUS_PER_UNIT", priority.GiftBonusPerUnit),
		GiftBonusCap:          getEnvFloat("GIFT_BONUS_CAP", priority.GiftBonusCap),

		// Storage
		DatabaseURL:         getEnv("DATABASE_URL", ""),
		RedisURL:            getEnv("REDIS_URL", ""),
		AnalyticsSQLitePath: getEnv("ANALYTICS_SQLITE_PATH", ""),
		AnalyticsStream:     getEnv("ANALYTICS_STREAM", "live:events"),
		AnalyticsWorkers:    getEnvInt("ANALYTICS_WORKERS", 4),

		// Ingest
		IngestStream:    getEnv("INGEST_STREAM", "live:comments"),
		IngestGroup:     getEnv("INGEST_GROUP", "live-engine"),
		IngestConsumer:  getEnv("INGEST_CONSUMER", generateConsumerName()),
		IngestBatchSize: getEnvInt("INGEST_BATCH_SIZE", 50),
		IngestBlock:     getEnvDuration("INGEST_BLOCK_MS", 2*time.Second),
		IngestRPS:       getEnvFloat("INGEST_RPS", 200),
		IngestBurst:     getEnvInt("INGEST_BURST", 400),
		IngestJWTSecret: getEnv("INGEST_JWT_SECRET", ""),
		MetricsInterval: getEnvDuration("METRICS_INTERVAL_MS", time.Minute),

		// OpenAI
		OpenAIAPIKey:      getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:     getEnv("OPENAI_BASE_URL", ""),
		LLMQuickModel:     getEnv("LLM_QUICK_MODEL", "gpt-4o-mini"),
		LLMFullModel:      getEnv("LLM_FULL_MODEL", "gpt-4o"),
		LLMQuickMaxTokens: getEnvInt("LLM_QUICK_MAX_TOKENS", 80),
		LLMFullMaxTokens:  getEnvInt("LLM_FULL_MAX_TOKENS", 300),
		LLMPersona:        getEnv("LLM_PERSONA", ""),

		// CORS
		AllowedOrigins: getEnvSlice("ALLOWED_ORIGINS", []string{"http://localhost:3000", "http://localhost:5173"}),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the engine cannot run with.
func (c *Config) Validate() error {
	switch {
	case c.QueueCapacity <= 0:
		return apperr.ConfigError("QUEUE_CAPACITY must be positive")
	case c.QueueRateLimit <= 0:
		return apperr.ConfigError("QUEUE_RATE_LIMIT must be positive")
	case c.DecayFloor <= 0 || c.DecayFloor > 1:
		return apperr.ConfigError("DECAY_FLOOR must be in (0, 1]")
	case c.Tier1Budget <= 0 || c.Tier2Budget <= 0 || c.Tier3Budget <= 0:
		return apperr.ConfigError("tier budgets must be positive")
	case c.MaxInFlight <= 0:
		return apperr.ConfigError("DISPATCH_MAX_IN_FLIGHT must be positive")
	case c.IsProduction() && c.IngestJWTSecret == "":
		return apperr.ConfigError("INGEST_JWT_SECRET is required in production")
	}
	return nil
}

// EngineSettings derives the per-session engine settings.
func (c *Config) EngineSettings() livestream.Settings {
	s := livestream.DefaultSettings()
	s.Queue = queue.Config{
		Capacity:    c.QueueCapacity,
		DedupWindow: c.QueueDedupWindow,
		RateLimit:   c.QueueRateLimit,
		RateWindow:  c.QueueRateWindow,
		MaxAge:      c.QueueMaxAge,
		IdleGrace:   c.QueueIdleGrace,
	}
	s.Decay = priority.Decay{Horizon: c.DecayHorizon, Floor: c.DecayFloor}
	s.Budgets = dispatch.Budgets{
		Template:          c.Tier1Budget,
		TemplateHardLimit: c.Tier1HardLimit,
		Quick:             c.Tier2Budget,
		Full:              c.Tier3Budget,
	}
	s.Loop = dispatch.LoopConfig{MaxInFlight: c.MaxInFlight, IdlePoll: c.DispatchIdlePoll}
	return s
}

// Weights returns the scoring weights with the configured overrides.
func (c *Config) Weights() priority.Weights {
	w := priority.DefaultWeights().
		WithPlatformBonus(domain.PlatformTikTok, c.PlatformBonusTikTok).
		WithPlatformBonus(domain.PlatformFacebook, c.PlatformBonusFacebook).
		WithPlatformBonus(domain.PlatformGemral, c.PlatformBonusGemral)
	w.GiftPerUnit = c.GiftBonusPerUnit
	w.GiftCap = c.GiftBonusCap
	return w
}

// DeliveryConfig sizes the analytics sink workers.
func (c *Config) DeliveryConfig() analytics.DeliveryConfig {
	d := analytics.DefaultDeliveryConfig()
	d.Workers = c.AnalyticsWorkers
	return d
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvDuration reads a millisecond count; keys end in _MS.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if ms, err := strconv.Atoi(value); err == nil && ms >= 0 {
			return time.Duration(ms) * time.Millisecond
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts
	}
	return defaultValue
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// Pretty reports whether logs should use the console writer.
func (c *Config) Pretty() bool {
	return getEnvBool("LOG_PRETTY", c.IsDevelopment())
}
