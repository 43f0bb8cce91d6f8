// Package bootstrap wires configuration into running components.
package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"live_server/adapter/out/analytics"
	"live_server/adapter/out/responder"
	"live_server/config"
	"live_server/core/domain"
	"live_server/core/port/out"
	"live_server/core/service/classification"
	"live_server/core/service/emotion"
	"live_server/core/service/livestream"
	"live_server/core/service/priority"
	"live_server/infra/database"
	"live_server/pkg/metrics"
	"live_server/pkg/resilience"
	"live_server/pkg/snowflake"
)

type Dependencies struct {
	Config *config.Config
	Log    zerolog.Logger

	DB        *pgxpool.Pool
	Redis     *redis.Client
	Analytics *database.AnalyticsDB

	Metrics  *metrics.Engine
	Bus      *analytics.Bus
	Delivery *analytics.Delivery
	SQLSink  *analytics.SQLSink
	Router   *responder.Router
	Manager  *livestream.Manager
}

// NewDependencies connects storage, builds the engine and starts analytics
// delivery. Postgres, Redis and OpenAI are optional: without them the
// engine runs with SQLite or no event store, no streams, and template-only
// replies. The returned cleanup releases everything in reverse order.
func NewDependencies(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Dependencies, func(), error) {
	d := &Dependencies{Config: cfg, Log: log, Metrics: metrics.NewEngine()}
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) (*Dependencies, func(), error) {
		cleanup()
		return nil, nil, err
	}

	// Storage
	if cfg.DatabaseURL != "" {
		pool, err := database.NewPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return fail(fmt.Errorf("postgres: %w", err))
		}
		d.DB = pool
		closers = append(closers, pool.Close)
		log.Info().Msg("postgres connected")
	}
	if cfg.RedisURL != "" {
		client, err := database.NewRedis(ctx, cfg.RedisURL)
		if err != nil {
			return fail(fmt.Errorf("redis: %w", err))
		}
		d.Redis = client
		closers = append(closers, func() { client.Close() })
		log.Info().Msg("redis connected")
	}
	if d.DB != nil || cfg.AnalyticsSQLitePath != "" {
		adb, err := database.OpenAnalytics(d.DB, cfg.AnalyticsSQLitePath)
		if err != nil {
			return fail(fmt.Errorf("analytics db: %w", err))
		}
		d.Analytics = adb
		closers = append(closers, func() { adb.Close() })
	}

	// Analytics
	ids, err := snowflake.NewGenerator(cfg.NodeID)
	if err != nil {
		return fail(err)
	}
	d.Bus = analytics.NewBus(ids, log)
	closers = append(closers, d.Bus.Close)

	sinks := []out.EventSink{analytics.NewLogSink(log)}
	if d.Analytics != nil {
		d.SQLSink = analytics.NewSQLSink(d.Analytics.DB, d.Analytics.Dialect)
		if err := d.SQLSink.Migrate(ctx); err != nil {
			return fail(err)
		}
		sinks = append(sinks, d.SQLSink)
	}
	if d.Redis != nil {
		sinks = append(sinks, analytics.NewStreamSink(d.Redis, cfg.AnalyticsStream, 0))
	}
	d.Delivery = analytics.NewDelivery(d.Bus, sinks, cfg.DeliveryConfig(), log)
	if err := d.Delivery.Start(ctx); err != nil {
		return fail(err)
	}
	// runs before Bus.Close so queued events still reach the sinks
	closers = append(closers, func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), cfg.Tier3Budget+5*time.Second)
		defer cancel()
		if err := d.Delivery.Stop(stopCtx); err != nil {
			log.Warn().Err(err).Msg("analytics delivery stop")
		}
	})

	// Responders
	d.Router = newRouter(cfg, log)

	// Engine
	d.Manager = livestream.NewManager(ctx, livestream.Components{
		Classifier: classification.NewDefaultClassifier(),
		Detector:   emotion.NewDefaultDetector(),
		Scorer:     priority.NewScorer(cfg.Weights()),
		Responder:  d.Router,
		Publisher:  d.Bus,
		Metrics:    d.Metrics,
		Logger:     log,
	}, cfg.EngineSettings(), d.Bus)

	return d, cleanup, nil
}

// newRouter registers the template tier always and the LLM tiers when a
// provider is configured. Without them tier 2/3 entries fall back to
// templates.
func newRouter(cfg *config.Config, log zerolog.Logger) *responder.Router {
	r := responder.NewRouter().Handle(domain.TierTemplate, responder.NewTemplateResponder(nil))
	if cfg.OpenAIAPIKey == "" && cfg.OpenAIBaseURL == "" {
		log.Warn().Msg("OPENAI_API_KEY not set, quick and full tiers fall back to templates")
		return r
	}

	client := responder.NewOpenAIClient(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL)

	quick := responder.QuickConfig(cfg.LLMQuickModel)
	quick.MaxTokens = cfg.LLMQuickMaxTokens
	quick.Persona = cfg.LLMPersona
	full := responder.FullConfig(cfg.LLMFullModel)
	full.MaxTokens = cfg.LLMFullMaxTokens
	full.Persona = cfg.LLMPersona

	r.Handle(domain.TierQuick, responder.NewLLMResponder(client, quick,
		resilience.NewBreaker(resilience.DefaultBreakerConfig("llm_quick"), log), log))
	r.Handle(domain.TierFull, responder.NewLLMResponder(client, full,
		resilience.NewBreaker(resilience.DefaultBreakerConfig("llm_full"), log), log))
	return r
}
