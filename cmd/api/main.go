package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	"github.com/tariffmatch/backend/internal/api/handlers"
	"github.com/tariffmatch/backend/internal/cache"
	"github.com/tariffmatch/backend/internal/classifier"
	"github.com/tariffmatch/backend/internal/matching"
	"github.com/tariffmatch/backend/internal/metrics"
	"github.com/tariffmatch/backend/internal/middleware/ratelimit"
	"github.com/tariffmatch/backend/internal/middleware/security"
	"github.com/tariffmatch/backend/internal/middleware/validation"
	"github.com/tariffmatch/backend/pkg/config"
	appLogger "github.com/tariffmatch/backend/pkg/logger"
	"github.com/tariffmatch/backend/pkg/retry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	err = appLogger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.OutputPath)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer appLogger.Sync()

	appLogger.Info("Starting tariff match API server")

	metrics.Init()

	// A redis outage is never fatal: the cache runs disabled and every
	// request goes straight to the classifier.
	store, err := cache.NewRedisStore(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		appLogger.Warn("Redis unreachable, caching disabled", zap.Error(err))
		store = nil
	}

	resultCache := cache.New(store, cache.Config{
		DefaultTTL:  cfg.Cache.DefaultTTL,
		FrequentTTL: cfg.Cache.FrequentTTL,
		KeyPrefix:   cfg.Cache.KeyPrefix,
	})

	registry, err := classifier.NewRegistry(cfg.Classifier.MaxCountries, func(country string) classifier.Classifier {
		return classifier.NewClient(classifier.Config{
			APIKey:        cfg.Classifier.APIKey,
			Model:         cfg.Classifier.Model,
			Country:       country,
			Temperature:   cfg.Classifier.Temperature,
			MaxTokens:     cfg.Classifier.MaxTokens,
			Timeout:       time.Duration(cfg.Classifier.TimeoutSec) * time.Second,
			MaxCandidates: cfg.Classifier.MaxCandidates,
		})
	})
	if err != nil {
		appLogger.Fatal("Failed to create classifier registry", zap.Error(err))
	}

	retryCfg := retry.Config{
		MaxAttempts:    cfg.Matcher.MaxAttempts,
		InitialDelay:   time.Duration(cfg.Matcher.InitialDelayMS) * time.Millisecond,
		MaxDelay:       time.Duration(cfg.Matcher.MaxDelayMS) * time.Millisecond,
		Multiplier:     2.0,
		JitterFraction: 0.1,
		Logger:         appLogger.GetLogger(),
	}

	matcher := matching.New(resultCache, registry, matching.Options{
		MaxConcurrency:  cfg.Matcher.MaxConcurrency,
		MaxBatchSize:    cfg.Matcher.MaxBatchSize,
		MaxAlternatives: cfg.Matcher.MaxAlternatives,
		Retry:           retryCfg,
	})

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    cfg.Server.BodyLimit,
	})

	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-API-Key",
		AllowMethods: "GET, POST, DELETE, OPTIONS",
	}))
	app.Use(security.HeadersMiddleware())

	limiter := ratelimit.New(ratelimit.Config{
		MaxRequestsPerMinute: cfg.RateLimit.MaxRequestsPerMinute,
		Logger:               appLogger.GetLogger(),
	})
	defer limiter.Stop()
	app.Use(limiter.Middleware())

	app.Use(validation.Middleware(validation.Config{
		MaxBatchSize: cfg.Matcher.MaxBatchSize,
		Logger:       appLogger.GetLogger(),
	}))

	matchHandler := handlers.NewMatchHandler(matcher)
	adminHandler := handlers.NewAdminHandler(matcher)

	api := app.Group("/api/v1")

	api.Post("/match", matchHandler.HandleMatch)
	api.Post("/match/batch", matchHandler.HandleMatchBatch)

	api.Post("/cache/warm", adminHandler.HandleWarmCache)
	api.Delete("/cache", adminHandler.HandleInvalidateCache)
	api.Get("/cache/stats", adminHandler.HandleCacheStats)

	api.Get("/health", adminHandler.HandleHealth)

	app.Get("/metrics", metrics.MetricsHandler())

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	appLogger.Info("Server starting", zap.String("address", addr))

	go func() {
		if err := app.Listen(addr); err != nil {
			appLogger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Server shutting down gracefully...")
	app.Shutdown()
	appLogger.Info("Server stopped")
}
