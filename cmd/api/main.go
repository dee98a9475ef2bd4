// Package main is the entrypoint for the URL shortener API server.
package main

import (
	"context"
	"log/slog"
	"net/url"
	"os"
	"regexp"
	"strings"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/spoo-me/url-shortener/internal/analytics"
	"github.com/spoo-me/url-shortener/internal/cache"
	"github.com/spoo-me/url-shortener/internal/config"
	"github.com/spoo-me/url-shortener/internal/geoip"
	"github.com/spoo-me/url-shortener/internal/handler"
	"github.com/spoo-me/url-shortener/internal/metrics"
	"github.com/spoo-me/url-shortener/internal/middleware"
	"github.com/spoo-me/url-shortener/internal/repository"
	"github.com/spoo-me/url-shortener/internal/server"
	"github.com/spoo-me/url-shortener/internal/service"
	"github.com/spoo-me/url-shortener/internal/stats"
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
		logger.Error(
			"failed to connect to database",
			slog.String("error", sanitizeError(err, cfg.DatabaseURL)),
			slog.String("database_url", redactURL(cfg.DatabaseURL)),
		)
		os.Exit(1)
	}
	defer repo.Close()
	logger.Info("connected to database")

	cacheClient, err := cache.New(ctx, cfg.RedisURL)
	if err != nil {
		logger.Error(
			"failed to connect to Redis",
			slog.String("error", sanitizeError(err, cfg.RedisURL)),
			slog.String("redis_url", redactURL(cfg.RedisURL)),
		)
		os.Exit(1)
	}
	defer cacheClient.Close()
	logger.Info("connected to Redis")

	geoResolver := initGeoIP(cfg, logger)
	defer geoResolver.Close()

	metricsRecorder := metrics.NewNoop()

	// Repositories
	urlRepo := repository.NewURLRepository(repo)
	clickRepo := repository.NewClickRepository(repo)

	// Caches
	urlCache := cache.NewURLCache(
		cacheClient.Backend(),
		cfg.URLCachePrimaryTTL, cfg.URLCacheStaleTTL, cfg.URLCacheLockTTL,
		logger, metricsRecorder,
	)
	var statsCache *cache.DualCache
	if cfg.StatsCacheEnabled {
		statsCache = cache.NewDualCache(
			cacheClient.Backend(),
			cfg.StatsCachePrimaryTTL, cfg.StatsCacheStaleTTL, cfg.StatsCacheLockTTL,
			logger, metricsRecorder,
		)
	}
	var buffer *cache.ClickEventBuffer
	if cfg.BufferEnabled {
		buffer = cache.NewClickEventBuffer(cacheClient.Client(), cfg.BufferTTL, logger)
	}

	// Services
	publisher := analytics.NewPublisher(cacheClient.Client(), logger, metricsRecorder)
	redirectService := service.NewRedirectService(urlRepo, urlCache, publisher, buffer, geoResolver, logger, metricsRecorder)
	urlService := service.NewURLService(urlRepo, urlCache)
	statsEngine := stats.NewEngine(clickRepo, urlRepo, logger)
	statsService := service.NewStatsService(statsEngine, statsCache, logger, metricsRecorder)

	// Handlers
	healthHandler := handler.NewHealthHandler(repo, cacheClient)
	redirectHandler := handler.NewRedirectHandler(redirectService, logger)
	urlHandler := handler.NewURLHandler(urlService, logger)
	statsHandler := handler.NewStatsHandler(statsService, logger)

	r := setupRouter(healthHandler, redirectHandler, urlHandler, statsHandler, cfg, logger)

	srv := server.New(
		r,
		cfg.AppPort,
		cfg.ReadTimeout,
		cfg.WriteTimeout,
		cfg.ShutdownTimeout,
		logger,
	)

	logger.Info("starting server",
		"port", cfg.AppPort,
		"env", cfg.AppEnv,
		"click_buffer", cfg.BufferEnabled,
	)

	if err := srv.Run(); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
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
		logger.Info("geoip database not configured, geographic stats disabled")
		return geoip.NoopResolver{}
	}
	resolver, err := geoip.Open(cfg.GeoIPDatabasePath)
	if err != nil {
		logger.Warn("failed to open geoip database, geographic stats disabled",
			"path", cfg.GeoIPDatabasePath,
			"error", err,
		)
		return geoip.NoopResolver{}
	}
	logger.Info("geoip database loaded", "path", cfg.GeoIPDatabasePath)
	return resolver
}

// setupRouter configures the chi router with all routes and middleware.
func setupRouter(
	healthHandler *handler.HealthHandler,
	redirectHandler *handler.RedirectHandler,
	urlHandler *handler.URLHandler,
	statsHandler *handler.StatsHandler,
	cfg *config.Config,
	logger *slog.Logger,
) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recoverer(logger))

	// Health endpoints
	r.Get("/healthz", healthHandler.Healthz)
	r.Get("/readyz", healthHandler.Readyz)

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Use(chimiddleware.RequestSize(cfg.MaxRequestBodySize))

		r.Route("/urls", func(r chi.Router) {
			r.Post("/", urlHandler.Create)
			r.Patch("/{alias}", urlHandler.Update)
			r.Delete("/{alias}", urlHandler.Delete)
		})

		r.Get("/stats", statsHandler.OwnerStats)
		r.Get("/stats/{alias}", statsHandler.URLStats)
	})

	// Redirect hot path
	r.Get("/{alias}", redirectHandler.Redirect)

	// 404 and 405 handlers
	r.NotFound(handler.NotFound)
	r.MethodNotAllowed(handler.MethodNotAllowed)

	return r
}

var passwordPattern = regexp.MustCompile(`(?i)password=[^\s]+`)

func redactURL(raw string) string {
	if raw == "" {
		return ""
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "[redacted]"
	}

	if parsed.User != nil {
		username := parsed.User.Username()
		if username == "" {
			parsed.User = url.User("redacted")
		} else {
			parsed.User = url.User(username)
		}
	}

	return parsed.String()
}

func sanitizeError(err error, secrets ...string) string {
	if err == nil {
		return ""
	}

	msg := err.Error()
	for _, secret := range secrets {
		if secret == "" {
			continue
		}
		redacted := redactURL(secret)
		if redacted == "" {
			redacted = "[redacted]"
		}
		msg = strings.ReplaceAll(msg, secret, redacted)
	}

	return passwordPattern.ReplaceAllString(msg, "password=redacted")
}
