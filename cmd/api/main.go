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
	"go.uber.org/zap"

	"techmatch/talent-matcher/internal/config"
	"techmatch/talent-matcher/internal/handlers"
	"techmatch/talent-matcher/internal/logger"
	"techmatch/talent-matcher/internal/pipeline"
	"techmatch/talent-matcher/internal/repositories"
	"techmatch/talent-matcher/internal/services"
)

func main() {
	// Load configuration
	cfg := config.Load()

	log := logger.New(cfg.Log.FilePath, cfg.Log.JSON, cfg.IsDevelopment())
	defer func() { _ = log.Sync() }()
	log.Info("✅ Config loaded successfully", zap.String("env", cfg.Server.Env))

	ctx := context.Background()

	// Initialize database
	db, err := config.InitDatabase(cfg, log)
	if err != nil {
		log.Fatal("❌ Failed to initialize database", zap.Error(err))
	}

	recordRepo := repositories.NewSearchRecordRepository(db)

	store, err := services.OpenProfileStore(ctx, cfg, db, log)
	if err != nil {
		log.Fatal("❌ Failed to initialize profile store", zap.Error(err))
	}
	log.Info("✅ Profile store ready", zap.String("store", cfg.Pipeline.ProfileStore))

	// Initialize Gemini AI
	gemini, err := services.NewGeminiService(ctx, cfg.Gemini, log)
	if err != nil {
		log.Fatal("❌ Failed to initialize Gemini AI", zap.Error(err))
	}
	log.Info("✅ Gemini AI initialized successfully",
		zap.String(logger.FieldModel, gemini.DefaultModel()),
		zap.String("embed_model", gemini.EmbedModel()),
	)

	embedder := services.NewCachedEmbedder(gemini, gemini.EmbedModel(), cfg.Gemini.EmbeddingCacheTTL, log)

	matcher := pipeline.New(gemini, embedder, store, pipeline.Options{
		MaxFileSize:         cfg.Pipeline.MaxFileSize,
		AllowedMimeTypes:    cfg.Pipeline.AllowedMimeTypes,
		SimilarityThreshold: cfg.Pipeline.SimilarityThreshold,
		EmbeddingDimensions: cfg.Gemini.EmbeddingDimensions,
		Inspector:           services.NewPDFInspector(),
		Logger:              log,
	})
	log.Info("✅ Pipeline initialized", zap.Float64("similarity_threshold", matcher.Threshold()))

	// Search records are written in the background
	recorder := services.NewSearchRecorder(recordRepo, cfg.Recorder.Concurrency, cfg.Recorder.QueueSize, log)
	recorder.Start(ctx)
	log.Info("✅ Search recorder started")

	structurer := services.NewProfileStructurer(gemini, log)

	// Initialize Handlers
	searchHandler := handlers.NewSearchHandler(matcher, gemini, structurer, recorder, cfg.Server.RequestTimeout, log)
	usageHandler := handlers.NewUsageHandler(recordRepo)

	// Create Fiber app
	app := fiber.New(fiber.Config{
		AppName:      "TechMatch Talent Matcher API",
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.Server.RequestTimeout + 30*time.Second,
		// leave room for the multipart envelope; the pipeline enforces the file limit
		BodyLimit:    int(cfg.Pipeline.MaxFileSize) + 1024*1024,
		ErrorHandler: handlers.ErrorHandler,
	})

	// Middleware
	app.Use(recover.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		Format:     "[${time}] ${status} - ${latency} ${method} ${path}\n",
		TimeFormat: "2006-01-02 15:04:05",
	}))

	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
	}))

	// Routes
	api := app.Group("/api/v1")

	// Health check
	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now(),
		})
	})

	api.Post("/match", searchHandler.HandleMatch)
	api.Post("/search-profiles", searchHandler.HandleSearchProfiles)
	api.Post("/process-pdf", searchHandler.HandleProcessPDF)
	api.Get("/models", searchHandler.HandleModels)
	api.Get("/token-usage", usageHandler.HandleTokenUsage)
	api.Get("/history", usageHandler.HandleHistory)

	// Root route
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"message": "TechMatch Talent Matcher API",
			"version": "1.0.0",
			"endpoints": []string{
				"POST /api/v1/match",
				"POST /api/v1/search-profiles",
				"POST /api/v1/process-pdf",
				"GET /api/v1/models",
				"GET /api/v1/token-usage",
				"GET /api/v1/history",
			},
		})
	})

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Info("🛑 Shutting down server...")
		if err := app.ShutdownWithTimeout(cfg.Server.RequestTimeout); err != nil {
			log.Error("❌ Server forced to shutdown", zap.Error(err))
		}
	}()

	// Start server
	addr := fmt.Sprintf(":%s", cfg.Server.Port)
	log.Info("🚀 Server starting", zap.String("addr", addr))

	if err := app.Listen(addr); err != nil {
		log.Fatal("❌ Failed to start server", zap.Error(err))
	}

	// drain pending search records before exit
	recorder.Stop()
	log.Info("👋 Server stopped")
}
