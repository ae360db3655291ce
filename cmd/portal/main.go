package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"accountdesk/portal/internal/apiclient"
	"accountdesk/portal/internal/audit"
	"accountdesk/portal/internal/config"
	"accountdesk/portal/internal/handlers"
	"accountdesk/portal/internal/jobs"
	"accountdesk/portal/internal/log"
	"accountdesk/portal/internal/server"
	"accountdesk/portal/internal/storage"
)

func main() {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := log.New(cfg.Environment, cfg.Logging.Level)

	ctx := context.Background()

	var (
		store       storage.Store
		redisClient *redis.Client
	)
	switch cfg.Session.Driver {
	case config.StorageDriverMemory:
		logger.Warn().Msg("using in-memory session storage; sessions are lost on restart")
		store = storage.NewMemoryStore()
	default:
		redisClient, err = storage.Dial(ctx, cfg.Redis)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect redis")
		}
		store = storage.NewRedisStore(redisClient)
	}

	client, err := apiclient.New(cfg.Upstream, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid upstream configuration")
	}

	var (
		publisher *audit.Publisher
		trimmer   jobs.Trimmer
	)
	if cfg.Audit.Enabled {
		publisher = audit.NewPublisher(redisClient, cfg.Audit.Stream, cfg.Audit.MaxLen)
	}
	if publisher != nil {
		trimmer = publisher
	} else if cfg.Audit.Enabled {
		logger.Warn().Msg("audit trail needs the redis driver; admin actions will not be recorded")
	}

	scheduler := jobs.NewScheduler(jobs.Schedules{
		UpstreamHealth: cfg.Upstream.HealthSchedule,
		AuditTrim:      cfg.Audit.TrimSchedule,
	}, client, trimmer, logger)
	handlerSet := handlers.NewHandlerSet(logger, cfg, store, client, publisher)
	if err := scheduler.Start(); err != nil {
		logger.Error().Err(err).Msg("scheduler start failed; health checks will ping the upstream directly")
	} else {
		handlerSet = handlerSet.WithUpstreamStatus(scheduler)
	}
	httpServer, err := server.NewHTTPServer(cfg, logger, handlerSet)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build http server")
	}

	go func() {
		if err := httpServer.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	waitForShutdown(logger, httpServer, scheduler, redisClient)
}

func waitForShutdown(logger zerolog.Logger, srv *server.HTTPServer, scheduler *jobs.Scheduler, redisClient *redis.Client) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	scheduler.Stop()

	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("redis close error")
		}
	}

	logger.Info().Msg("server exited cleanly")
}
