package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"github.com/cesargomez89/artshelf/internal/app"
	"github.com/cesargomez89/artshelf/internal/config"
	"github.com/cesargomez89/artshelf/internal/extractor"
	httpapp "github.com/cesargomez89/artshelf/internal/http"
	"github.com/cesargomez89/artshelf/internal/logger"
	"github.com/cesargomez89/artshelf/internal/maintenance"
	"github.com/cesargomez89/artshelf/internal/pipeline"
	"github.com/cesargomez89/artshelf/internal/storage"
	"github.com/cesargomez89/artshelf/internal/store"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Configuration error: %v", err)
	}

	// Initialize Logger
	appLogger := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
	})

	// Initialize DB
	db, err := store.NewSQLiteDB(cfg.DBPath)
	if err != nil {
		appLogger.Error("Failed to init DB", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := storage.EnsureDir(cfg.ThumbnailsDir); err != nil {
		appLogger.Error("Failed to create thumbnails dir", "path", cfg.ThumbnailsDir, "error", err)
		os.Exit(1)
	}

	ext := extractor.NewCLI(
		extractor.WithPython(cfg.ExtractorPython),
		extractor.WithScript(cfg.ExtractorScript),
		extractor.WithTimeouts(cfg.MetadataTimeout, cfg.VectorTimeout),
	)
	settings := app.NewSettingsService(store.NewSettingsRepo(db), cfg)

	// Initialize Pipeline
	p := pipeline.New(db, ext, storage.NewThumbnails(cfg.ThumbnailsDir), settings, cfg, appLogger)
	if err := p.Resume(context.Background()); err != nil {
		appLogger.Error("Failed to resume queues", "error", err)
	}
	defer p.Stop()
	appLogger.Info("Pipeline started", "worker_id", p.WorkerID())

	// Initialize Services
	queueService := app.NewQueueService(db, appLogger)
	maintenanceService := maintenance.New(db, ext, settings, cfg, appLogger)

	// Initialize Router
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Routes
	h := httpapp.NewHandler(queueService, app.NewLibraryService(db), settings, p, maintenanceService, appLogger)
	h.RegisterRoutes(r)

	// Start Server
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		appLogger.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		appLogger.Error("Server forced to shutdown", "error", err)
	}

	appLogger.Info("Server exiting")
}
