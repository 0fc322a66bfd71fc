package main

import (
	"context"
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

	"github.com/worldlines/backend/internal/api/handlers"
	rediscache "github.com/worldlines/backend/internal/cache/redis"
	"github.com/worldlines/backend/internal/classify"
	"github.com/worldlines/backend/internal/digest"
	"github.com/worldlines/backend/internal/exposure"
	"github.com/worldlines/backend/internal/linking"
	"github.com/worldlines/backend/internal/metrics"
	"github.com/worldlines/backend/internal/pipeline"
	"github.com/worldlines/backend/internal/query"
	"github.com/worldlines/backend/internal/storage/sqlite"
	"github.com/worldlines/backend/pkg/config"
	appLogger "github.com/worldlines/backend/pkg/logger"
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

	appLogger.Info("Starting Worldlines API Server")

	store, err := sqlite.Open(cfg.SQLite.Path)
	if err != nil {
		appLogger.Fatal("Failed to open SQLite store", zap.Error(err))
	}
	defer store.Close()

	if err := store.InitSchema(); err != nil {
		appLogger.Fatal("Failed to initialize schema", zap.Error(err))
	}

	var cache *rediscache.Client
	if cfg.Redis.Enabled {
		cache, err = rediscache.NewClient(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			appLogger.Warn("Redis unavailable, continuing without cache", zap.Error(err))
			cache = nil
		} else {
			defer cache.Close()
		}
	}

	classifier := classify.NewClient(classify.Options{
		APIKey:      cfg.LLM.APIKey,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
		TimeoutSec:  cfg.LLM.TimeoutSec,
		MaxRetries:  cfg.LLM.MaxRetries,
	})
	mapper := exposure.NewClient(exposure.Options{
		APIKey:      cfg.LLM.APIKey,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
		TimeoutSec:  cfg.LLM.TimeoutSec,
		MaxRetries:  cfg.LLM.MaxRetries,
	})
	rationales := linking.NewClient(linking.Options{
		APIKey:     cfg.LLM.APIKey,
		Model:      cfg.LLM.Model,
		TimeoutSec: cfg.LLM.TimeoutSec,
	})

	pipe := pipeline.New(store, classifier, mapper, rationales, pipeline.Options{
		FrameworkVersion: cfg.Pipeline.FrameworkVersion,
		MaxAttempts:      cfg.Pipeline.MaxAttempts,
		MaxLinksPerItem:  cfg.Pipeline.MaxLinksPerItem,
	})

	engine := query.NewEngine(store.DB())
	composer := digest.NewComposer(store.DB(), cfg.Digest.MaxItems)

	metrics.Init()

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    cfg.Server.BodyLimit,
	})

	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, OPTIONS",
	}))

	itemsHandler := handlers.NewItemsHandler(pipe, store, engine)
	exposuresHandler := handlers.NewExposuresHandler(store, engine)
	digestHandler := handlers.NewDigestHandler(composer, engine, cache,
		time.Duration(cfg.Digest.CacheTTLSec)*time.Second)

	api := app.Group("/api/v1")

	api.Post("/items", itemsHandler.Ingest)
	api.Post("/items/batch", itemsHandler.IngestBatch)
	api.Get("/items", itemsHandler.List)
	api.Get("/items/:id", itemsHandler.Get)
	api.Post("/items/:id/reanalyze", itemsHandler.Reanalyze)
	api.Get("/items/:id/links", itemsHandler.Links)
	api.Post("/items/:id/links", itemsHandler.CreateLink)

	api.Post("/pipeline/retry", itemsHandler.RetryPending)
	api.Get("/runs", itemsHandler.Runs)

	api.Get("/exposures", exposuresHandler.List)
	api.Get("/classifications/:id/exposure", exposuresHandler.ByClassification)

	api.Get("/digest", digestHandler.Get)
	api.Get("/stats", digestHandler.Stats)

	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now().Unix(),
		})
	})

	app.Get("/metrics", metrics.MetricsHandler())

	stopBackups := startBackupLoop(store, cfg.Backup)
	defer stopBackups()

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

// startBackupLoop snapshots the store on a fixed interval. Returns a
// stop function for shutdown.
func startBackupLoop(store *sqlite.Store, cfg config.BackupConfig) func() {
	if cfg.Dir == "" || cfg.IntervalHours <= 0 {
		return func() {}
	}

	ticker := time.NewTicker(time.Duration(cfg.IntervalHours) * time.Hour)
	done := make(chan struct{})

	go func() {
		for {
			select {
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
				path, err := store.Backup(ctx, cfg.Dir, cfg.RetentionDays)
				cancel()
				if err != nil {
					appLogger.Error("Backup failed", zap.Error(err))
					continue
				}
				appLogger.Info("Backup written", zap.String("path", path))
			case <-done:
				return
			}
		}
	}()

	return func() {
		ticker.Stop()
		close(done)
	}
}
