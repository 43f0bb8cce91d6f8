package bootstrap

import (
	"strings"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"

	"live_server/adapter/in/http"
	"live_server/infra/middleware"
	"live_server/pkg/ratelimit"
)

// NewAPI builds the fiber app over deps.
func NewAPI(deps *Dependencies) *fiber.App {
	cfg := deps.Config
	log := deps.Log

	app := fiber.New(fiber.Config{
		ErrorHandler:          middleware.ErrorHandler(log),
		DisableStartupMessage: cfg.IsProduction(),
		ReadBufferSize:        16384,
		WriteBufferSize:       16384,
		JSONEncoder:           json.Marshal,
		JSONDecoder:           json.Unmarshal,
		BodyLimit:             2 * 1024 * 1024, // batches of up to 500 comments
		ServerHeader:          "",
		DisableDefaultDate:    true,
	})

	// order matters
	app.Use(middleware.Recover(log))
	app.Use(middleware.RequestID())
	app.Use(middleware.SecurityHeaders())
	app.Use(middleware.RequestLogger(log))

	allowOrigins := strings.Join(cfg.AllowedOrigins, ",")
	allowCredentials := true
	if allowOrigins == "" || allowOrigins == "*" {
		if cfg.IsProduction() {
			allowOrigins = ""
			allowCredentials = false
		} else {
			allowOrigins = "http://localhost:3000,http://localhost:5173"
		}
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowOrigins,
		AllowMethods:     "GET,POST,DELETE,OPTIONS",
		AllowHeaders:     "Origin,Content-Type,Accept,Authorization,X-Request-ID",
		ExposeHeaders:    "X-Request-ID,Retry-After",
		AllowCredentials: allowCredentials,
		MaxAge:           86400,
	}))

	// no auth
	var analyticsDB = deps.Analytics
	healthDeps := http.HealthDeps{
		DB:       deps.DB,
		Redis:    deps.Redis,
		Sessions: deps.Manager,
		Registry: deps.Metrics.Registry,
	}
	if analyticsDB != nil {
		healthDeps.Analytics = analyticsDB.DB
	}
	http.NewHealthHandler(healthDeps).Register(app)

	api := app.Group("/api/v1")
	api.Use(middleware.BridgeAuth(middleware.AuthConfig{
		Secret:      cfg.IngestJWTSecret,
		Revocations: middleware.NewRevocations(deps.Redis),
		Logger:      log,
	}))

	var history http.EventHistory
	if deps.SQLSink != nil {
		history = deps.SQLSink
	}
	http.NewSessionHandler(deps.Manager, history, log).Register(api)
	http.NewEventStreamHandler(deps.Manager, log).Register(api)

	ingest := api.Group("", middleware.PlatformRateLimit(ratelimit.NewKeyedLimiter(cfg.IngestRPS, cfg.IngestBurst)))
	http.NewIngestHandler(deps.Manager, log).Register(ingest)

	return app
}
