package http

import (
	"context"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"live_server/pkg/metrics"
)

// SessionCounter reports the number of live sessions.
type SessionCounter interface {
	Count() int
}

type HealthHandler struct {
	db        *pgxpool.Pool
	redis     *redis.Client
	analytics *sqlx.DB
	sessions  SessionCounter
	registry  *prometheus.Registry
	started   time.Time
}

// HealthDeps are all optional; missing ones report "not configured".
type HealthDeps struct {
	DB        *pgxpool.Pool
	Redis     *redis.Client
	Analytics *sqlx.DB
	Sessions  SessionCounter
	Registry  *prometheus.Registry
}

func NewHealthHandler(deps HealthDeps) *HealthHandler {
	return &HealthHandler{
		db:        deps.DB,
		redis:     deps.Redis,
		analytics: deps.Analytics,
		sessions:  deps.Sessions,
		registry:  deps.Registry,
		started:   time.Now(),
	}
}

func (h *HealthHandler) Register(app fiber.Router) {
	app.Get("/health", h.Health)
	app.Get("/ready", h.Ready)
	if h.registry != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(h.registry, promhttp.HandlerOpts{})))
	}
}

func (h *HealthHandler) Health(c *fiber.Ctx) error {
	body := fiber.Map{
		"status":    "ok",
		"uptime":    time.Since(h.started).Round(time.Second).String(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	if h.sessions != nil {
		body["sessions"] = h.sessions.Count()
	}
	return c.JSON(body)
}

func (h *HealthHandler) Ready(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	checks := make(map[string]string)
	allHealthy := true

	if h.db != nil {
		if err := h.db.Ping(ctx); err != nil {
			checks["postgres"] = "unhealthy: " + err.Error()
			allHealthy = false
		} else {
			checks["postgres"] = "healthy"
		}
	} else {
		checks["postgres"] = "not configured"
	}

	if h.redis != nil {
		if err := h.redis.Ping(ctx).Err(); err != nil {
			checks["redis"] = "unhealthy: " + err.Error()
			allHealthy = false
		} else {
			checks["redis"] = "healthy"
		}
	} else {
		checks["redis"] = "not configured"
	}

	if h.analytics != nil {
		pool := metrics.AssessPool(h.analytics.DB)
		if err := h.analytics.PingContext(ctx); err != nil {
			checks["analytics"] = "unhealthy: " + err.Error()
			allHealthy = false
		} else {
			checks["analytics"] = string(pool.Status) + " (" + strconv.Itoa(pool.InUse) + " in use)"
			if pool.Status == metrics.PoolUnhealthy {
				allHealthy = false
			}
		}
	} else {
		checks["analytics"] = "not configured"
	}

	status := "ready"
	statusCode := fiber.StatusOK
	if !allHealthy {
		status = "not ready"
		statusCode = fiber.StatusServiceUnavailable
	}

	return c.Status(statusCode).JSON(fiber.Map{
		"status":    status,
		"checks":    checks,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}
