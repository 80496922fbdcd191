package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/evidrop/evidrop/internal/config"
	"github.com/evidrop/evidrop/internal/database"
	"github.com/evidrop/evidrop/internal/handlers"
	"github.com/evidrop/evidrop/internal/metrics"
	"github.com/evidrop/evidrop/internal/middleware"
	"github.com/evidrop/evidrop/internal/storage"
	"github.com/evidrop/evidrop/internal/storage/filesystem"
	"github.com/evidrop/evidrop/internal/storage/s3"
	"github.com/evidrop/evidrop/internal/utils"
)

func main() {
	// Setup structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("starting evidrop",
		"port", cfg.Port,
		"max_file_size", cfg.MaxFileSize,
		"chunk_size", cfg.ChunkSize,
		"session_expiry_hours", cfg.SessionExpiryHours,
		"s3_enabled", cfg.S3Enabled(),
	)

	// Initialize database
	db, err := database.Initialize(cfg.DBPath)
	if err != nil {
		slog.Error("failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	slog.Info("database initialized", "path", cfg.DBPath)

	// Create upload directory if it doesn't exist
	if err := os.MkdirAll(cfg.UploadDir, 0755); err != nil {
		slog.Error("failed to create upload directory", "error", err)
		os.Exit(1)
	}

	slog.Info("upload directory ready", "path", cfg.UploadDir)

	// Select the artifact storage backend
	var store storage.Backend
	if cfg.S3Enabled() {
		store, err = s3.New(context.Background(), s3.Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.S3AccessKey,
			SecretAccessKey: cfg.S3SecretKey,
			PathStyle:       cfg.S3Endpoint != "",
		})
		if err != nil {
			slog.Error("failed to initialize S3 storage", "error", err)
			os.Exit(1)
		}
	} else {
		store, err = filesystem.New(filepath.Join(cfg.UploadDir, "artifacts"))
		if err != nil {
			slog.Error("failed to initialize filesystem storage", "error", err)
			os.Exit(1)
		}
	}

	// In-flight work tracker for graceful shutdown
	tracker := utils.NewSessionTracker()

	// Setup HTTP router
	mux := http.NewServeMux()
	mux.HandleFunc("/api/upload/chunk", handlers.UploadChunkHandler(db, cfg, store, tracker))
	mux.HandleFunc("/api/upload/status/", handlers.UploadStatusHandler(db))
	mux.HandleFunc("/api/upload/", handlers.CancelUploadHandler(db, cfg))
	mux.HandleFunc("/health", handlers.HealthHandler(db))
	mux.Handle("/metrics", promhttp.Handler())

	// Wrap with middleware (order: Recovery -> Logging -> Metrics -> handlers)
	handler := middleware.Recovery(
		middleware.Logging(
			metrics.Middleware(mux),
		),
	)

	// Setup HTTP server. Long read/write timeouts: a 5MB chunk over a slow
	// uplink legitimately takes minutes.
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  5 * time.Minute,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	// Start the expiry sweeper
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go handlers.StartExpirySweeper(ctx, db, cfg)

	// Start HTTP server in a goroutine
	serverErrors := make(chan error, 1)
	go func() {
		slog.Info("http server listening", "address", server.Addr)
		serverErrors <- server.ListenAndServe()
	}()

	// Setup graceful shutdown
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		slog.Error("server error", "error", err)
		os.Exit(1)

	case sig := <-shutdown:
		slog.Info("shutdown signal received", "signal", sig)

		// Stop the sweeper and refuse new chunks, then drain in-flight
		// writes and assemblies before closing listeners.
		cancel()
		tracker.Drain(cfg.ShutdownTimeout)

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("graceful shutdown failed", "error", err)
			if err := server.Close(); err != nil {
				slog.Error("server close failed", "error", err)
			}
			os.Exit(1)
		}

		slog.Info("server shutdown complete")
	}
}
