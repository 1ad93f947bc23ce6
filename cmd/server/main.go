package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mmynk/splittat/internal/auth"
	"github.com/mmynk/splittat/internal/blob"
	"github.com/mmynk/splittat/internal/config"
	"github.com/mmynk/splittat/internal/jobs"
	"github.com/mmynk/splittat/internal/metrics"
	"github.com/mmynk/splittat/internal/ocr"
	"github.com/mmynk/splittat/internal/server"
	"github.com/mmynk/splittat/internal/storage/sqlite"
	"github.com/mmynk/splittat/pkg/logging"
)

func main() {
	if err := run(); err != nil {
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logging.Setup(cfg.Log.Level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("initialize storage: %w", err)
	}
	defer store.Close()
	slog.Info("Storage initialized", "database", cfg.Database.Path)

	blobs, err := openBlobStore(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	if c, ok := blobs.(interface{ Close() error }); ok {
		defer c.Close()
	}

	extractor, err := openExtractor(ctx, cfg.OCR)
	if err != nil {
		return err
	}

	m := metrics.New()
	queue := jobs.NewQueue(cfg.Worker.Buffer, cfg.Worker.Count, cfg.Worker.MaxRetries,
		jobs.WithObserver(func(status jobs.JobStatus, took time.Duration) {
			m.ObserveJob(string(status), took)
		}),
	)

	srv := server.New(server.Options{
		Store:          store,
		Blobs:          blobs,
		Extractor:      extractor,
		Publisher:      queue,
		JWT:            auth.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.Audience, cfg.TokenDuration()),
		Metrics:        m,
		MaxUploadBytes: cfg.MaxUploadBytes(),
		AllowedOrigins: cfg.Server.CORSAllowedOrigins,
	})

	// Workers outlive the signal so in-flight OCR gets the shutdown timeout.
	workerCtx, cancelWorkers := context.WithCancel(context.Background())
	defer cancelWorkers()
	if err := queue.Start(workerCtx, srv.Receipts.Process); err != nil {
		return fmt.Errorf("start job queue: %w", err)
	}
	if _, err := srv.Receipts.Requeue(ctx); err != nil {
		slog.Warn("Could not requeue unfinished receipts", "error", err)
	}

	httpServer := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Server starting", "address", httpServer.Addr, "url", "http://localhost"+httpServer.Addr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		slog.Info("Shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout())
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Warn("HTTP shutdown incomplete", "error", err)
	}
	if err := queue.Stop(shutdownCtx); err != nil {
		slog.Warn("Job queue did not drain", "error", err)
	}
	cancelWorkers()
	slog.Info("Server stopped")
	return nil
}

func openBlobStore(ctx context.Context, cfg config.StorageConfig) (blob.Store, error) {
	switch cfg.Backend {
	case "gcs":
		g, err := blob.NewGCS(ctx, cfg.GCSBucket)
		if err != nil {
			return nil, fmt.Errorf("open gcs bucket: %w", err)
		}
		slog.Info("Receipt images stored in GCS", "bucket", cfg.GCSBucket)
		return g, nil
	default:
		l, err := blob.NewLocal(cfg.LocalDir)
		if err != nil {
			return nil, fmt.Errorf("open upload dir: %w", err)
		}
		slog.Info("Receipt images stored locally", "dir", cfg.LocalDir)
		return l, nil
	}
}

func openExtractor(ctx context.Context, cfg config.OCRConfig) (ocr.Extractor, error) {
	if cfg.Provider != "gemini" {
		slog.Warn("No OCR provider configured; receipts need manual item entry")
		return ocr.Manual{}, nil
	}
	g, err := ocr.NewGemini(ctx, cfg.APIKey, cfg.Model)
	if err != nil {
		return nil, err
	}
	slog.Info("OCR provider configured", "provider", cfg.Provider, "model", cfg.Model)
	return g, nil
}
