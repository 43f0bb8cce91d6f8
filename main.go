package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"live_server/config"
	"live_server/internal/bootstrap"
	"live_server/pkg/logger"
)

const (
	shutdownTimeout = 30 * time.Second // Maximum time to wait for graceful shutdown
)

func main() {
	// .env is optional, for local development
	envErr := godotenv.Load()

	mode := flag.String("mode", "all", "Run mode: api (HTTP ingest only), all (HTTP + stream consumer)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		l := logger.Default()
		l.Fatal().Err(err).Msg("failed to load config")
	}

	log := logger.Init(logger.Config{
		Level:   cfg.LogLevel,
		Service: "live-engine",
		Pretty:  cfg.Pretty(),
	})
	if envErr != nil {
		log.Debug().Msg("no .env file found, using environment variables")
	}

	if *mode != "api" && *mode != "all" {
		log.Fatal().Str("mode", *mode).Msg("unknown mode")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *mode, log); err != nil {
		log.Error().Err(err).Msg("engine exited with error")
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, mode string, log zerolog.Logger) error {
	engineCtx, cancelEngine := context.WithCancel(context.Background())
	defer cancelEngine()
	// cleanup runs before cancelEngine so analytics delivery drains first

	deps, cleanup, err := bootstrap.NewDependencies(engineCtx, cfg, log)
	if err != nil {
		return err
	}
	defer cleanup()

	var worker *bootstrap.Worker
	if mode == "all" {
		worker = bootstrap.NewWorker(deps)
		if err := worker.Start(engineCtx); err != nil {
			return err
		}
	}

	app := bootstrap.NewAPI(deps)
	serveErr := make(chan error, 1)
	go func() {
		addr := ":" + cfg.Port
		log.Info().Str("addr", addr).Str("mode", mode).Msg("starting API server")
		serveErr <- app.Listen(addr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			log.Error().Err(err).Msg("API server failed")
		}
	}

	log.Info().Dur("timeout", shutdownTimeout).Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	// stop taking input first, then drain sessions, then analytics (cleanup)
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("API shutdown")
	}
	if worker != nil {
		worker.Stop(shutdownTimeout / 3)
	}
	if err := deps.Manager.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("session shutdown")
	}
	log.Info().Msg("shut down gracefully")
	return nil
}
