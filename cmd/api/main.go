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
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/bomlens/backend/internal/api/handlers"
	"github.com/bomlens/backend/internal/cache/redis"
	"github.com/bomlens/backend/internal/enrichment"
	"github.com/bomlens/backend/internal/extraction"
	"github.com/bomlens/backend/internal/ingestion"
	"github.com/bomlens/backend/internal/llm"
	"github.com/bomlens/backend/internal/metrics"
	"github.com/bomlens/backend/internal/middleware/ratelimit"
	"github.com/bomlens/backend/internal/middleware/security"
	"github.com/bomlens/backend/internal/middleware/validation"
	"github.com/bomlens/backend/internal/pipeline"
	"github.com/bomlens/backend/internal/storage/sqlite"
	"github.com/bomlens/backend/internal/tariff"
	"github.com/bomlens/backend/internal/vector/milvus"
	"github.com/bomlens/backend/pkg/config"
	appLogger "github.com/bomlens/backend/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	err = appLogger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.OutputPath,
		zap.String("service", "bomlens-api"))
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer appLogger.Sync()

	appLogger.Info("Starting BOMLens API Server")

	metrics.Init()

	sqliteClient, err := sqlite.NewClient(cfg.SQLite.Path)
	if err != nil {
		appLogger.Fatal("Failed to create SQLite client", zap.Error(err))
	}
	defer sqliteClient.Close()

	if err := sqliteClient.InitSchema(); err != nil {
		appLogger.Fatal("Failed to initialize schema", zap.Error(err))
	}

	milvusClient, err := milvus.NewClient(
		cfg.Milvus.Endpoint,
		cfg.Milvus.APIKey,
		cfg.Milvus.CollectionName,
		cfg.Milvus.VectorDim,
	)
	if err != nil {
		appLogger.Fatal("Failed to create Milvus client", zap.Error(err))
	}
	defer milvusClient.Close()

	if err := milvusClient.EnsureCollection(context.Background()); err != nil {
		appLogger.Fatal("Failed to ensure component collection", zap.Error(err))
	}

	llmClient := llm.NewClient(llm.Options{
		APIKey:          cfg.LLM.APIKey,
		BaseURL:         cfg.LLM.BaseURL,
		VisionModel:     cfg.LLM.VisionModel,
		EstimationModel: cfg.LLM.EstimationModel,
		ReasoningModel:  cfg.LLM.ReasoningModel,
		EmbeddingModel:  cfg.LLM.EmbeddingModel,
		Temperature:     cfg.LLM.Temperature,
		MaxTokens:       cfg.LLM.MaxTokens,
		Timeout:         time.Duration(cfg.LLM.TimeoutSec) * time.Second,
	})

	// The embedding cache is optional; enrichment recomputes on miss.
	var embeddingCache enrichment.EmbeddingCache
	if cfg.Redis.Enabled {
		redisClient, err := redis.NewClient(
			cfg.Redis.Host,
			cfg.Redis.Port,
			cfg.Redis.Password,
			cfg.Redis.DB,
			time.Duration(cfg.Redis.TTLHours)*time.Hour,
		)
		if err != nil {
			appLogger.Warn("Redis unavailable, running without embedding cache", zap.Error(err))
		} else {
			embeddingCache = redisClient
			defer redisClient.Close()
		}
	}

	enricher := enrichment.NewEngine(llmClient, milvusClient, llmClient, embeddingCache, enrichment.Options{
		Concurrency:    cfg.Enrichment.Concurrency,
		MatchThreshold: cfg.Enrichment.MatchThreshold,
		SearchTopK:     cfg.Enrichment.SearchTopK,
		RetryDelay:     time.Duration(cfg.Enrichment.RetryDelayMS) * time.Millisecond,
		CallTimeout:    time.Duration(cfg.Enrichment.CallTimeoutSec) * time.Second,
	})

	tariffEngine := tariff.NewEngine(llmClient, tariff.Options{
		FallbackUnitValueUSD: cfg.Tariff.FallbackUnitValueUSD,
	})

	controller := pipeline.NewController(
		extraction.NewAdapter(llmClient),
		enricher,
		tariffEngine,
	)

	processor := ingestion.NewProcessor(sqliteClient, milvusClient, llmClient)

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    cfg.Server.BodyLimit,
	})

	app.Use(recover.New())
	app.Use(fiberlogger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, PUT, DELETE, OPTIONS",
	}))
	app.Use(security.HeadersMiddleware(security.HeadersConfig{}))
	app.Use(validation.Middleware(validation.Config{}))

	limiter := ratelimit.New(ratelimit.Config{
		MaxRequestsPerMinute: cfg.Server.MaxRequestsPerMinute,
	})
	defer limiter.Stop()

	analyzeHandler := handlers.NewAnalyzeHandler(
		controller,
		sqliteClient,
		cfg.Tariff.DefaultOrigin,
		cfg.Tariff.DefaultDestination,
	)
	catalogHandler := handlers.NewCatalogHandler(processor, ingestion.NewFetcher(10*time.Second))
	wsHandler := handlers.NewWebSocketHandler(
		controller,
		cfg.Tariff.DefaultOrigin,
		cfg.Tariff.DefaultDestination,
	)

	api := app.Group("/api")

	api.Post("/analyze", limiter.Middleware(), analyzeHandler.HandleAnalyze)
	api.Get("/demo", analyzeHandler.HandleDemo)
	api.Get("/reports", analyzeHandler.ListReports)
	api.Get("/reports/:id", analyzeHandler.GetReport)

	api.Post("/catalog/documents", catalogHandler.HandleDocument)
	api.Post("/catalog/components", catalogHandler.HandleComponents)

	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now().Unix(),
		})
	})

	app.Get("/metrics", metrics.MetricsHandler())

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/analyze", websocket.New(wsHandler.HandleConnection))

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
