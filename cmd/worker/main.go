// Package main is the entrypoint for the click ingest worker.
package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spoo-me/url-shortener/internal/analytics"
	"github.com/spoo-me/url-shortener/internal/cache"
	"github.com/spoo-me/url-shortener/internal/config"
	"github.com/spoo-me/url-shortener/internal/geoip"
	"github.com/spoo-me/url-shortener/internal/metrics"
	"github.com/spoo-me/url-shortener/internal/repository"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := initLogger(cfg)

	repo, err := repository.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer repo.Close()
	logger.Info("connected to database")

	cacheClient, err := cache.New(ctx, cfg.RedisURL)
	if err != nil {
		logger.Error("failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	defer cacheClient.Close()
	logger.Info("connected to Redis")

	geoResolver := initGeoIP(cfg, logger)
	defer geoResolver.Close()

	metricsRecorder := metrics.NewNoop()
	clickRepo := repository.NewClickRepository(repo)
	enricher := analytics.NewEnricher(geoResolver)

	worker := analytics.NewWorker(
		cacheClient.Client(),
		clickRepo,
		enricher,
		logger,
		analytics.NewConsumerID(),
		metricsRecorder,
	)
	worker.SetPrefetch(cfg.WorkerPrefetch)
	worker.SetBlockTimeout(cfg.WorkerBlockTimeout)
	worker.SetClaimInterval(cfg.WorkerClaimInterval)
	worker.SetClaimIdle(cfg.WorkerClaimIdle)

	var flusher *analytics.Flusher
	if cfg.BufferEnabled {
		buffer := cache.NewClickEventBuffer(cacheClient.Client(), cfg.BufferTTL, logger)
		flusher = analytics.NewFlusher(buffer, clickRepo, cfg.BufferFlushInterval, logger, metricsRecorder)
	}

	runCtx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	errCh := make(chan error, 2)
	go func() {
		errCh <- worker.Run(runCtx)
	}()
	if flusher != nil {
		go func() {
			errCh <- flusher.Run(runCtx)
		}()
	}

	err = <-errCh
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker stopped with error", "error", err)
	}

	// Drain in-flight work with the shutdown deadline.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := worker.Shutdown(shutdownCtx); err != nil {
		logger.Error("worker shutdown error", "error", err)
	}
	if flusher != nil {
		if err := flusher.Shutdown(shutdownCtx); err != nil {
			logger.Error("flusher shutdown error", "error", err)
		}
	}

	logger.Info("worker stopped")
}

// initLogger initializes the slog logger based on configuration.
func initLogger(cfg *config.Config) *slog.Logger {
	var h slog.Handler

	opts := &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}

	if cfg.LogFormat == "json" {
		h = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		h = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(h)
	slog.SetDefault(logger)

	return logger
}

// parseLogLevel converts string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// initGeoIP opens the configured GeoIP database, degrading to the noop
// resolver when none is configured or the open fails.
func initGeoIP(cfg *config.Config, logger *slog.Logger) geoip.Resolver {
	if cfg.GeoIPDatabasePath == "" {
		logger.Info("geoip database not configured, geographic enrichment disabled")
		return geoip.NoopResolver{}
	}
	resolver, err := geoip.Open(cfg.GeoIPDatabasePath)
	if err != nil {
		logger.Warn("failed to open geoip database, geographic enrichment disabled",
			"path", cfg.GeoIPDatabasePath,
			"error", err,
		)
		return geoip.NoopResolver{}
	}
	logger.Info("geoip database loaded", "path", cfg.GeoIPDatabasePath)
	return resolver
}
