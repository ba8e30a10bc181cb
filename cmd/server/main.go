package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/spacesedan/moodmeter/config"
	"github.com/spacesedan/moodmeter/internal/clients"
	"github.com/spacesedan/moodmeter/internal/db"
	"github.com/spacesedan/moodmeter/internal/feedback"
	"github.com/spacesedan/moodmeter/internal/logging"
	"github.com/spacesedan/moodmeter/internal/monitoring"
	"github.com/spacesedan/moodmeter/internal/sentiment"
	"github.com/spacesedan/moodmeter/internal/server"
)

func main() {
	if err := run(); err != nil {
		slog.Error("[Main] Server stopped", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

// run returns instead of exiting so deferred closes always run.
func run() error {
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "dev"
	}
	config.LoadEnv(env)

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	logging.InitLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var cache sentiment.PredictionCache
	if cfg.Valkey.Address != "" {
		client, err := clients.NewValkeyClient(cfg.Valkey)
		if err != nil {
			slog.Warn("[Main] Valkey unavailable, running without prediction cache",
				slog.String("error", err.Error()))
		} else {
			valkeyCache := clients.NewValkeyCache(client, cfg.Valkey.CacheTTL)
			defer valkeyCache.Close()
			cache = valkeyCache
		}
	}

	backend, err := clients.NewBackend(cfg.Classifier, cache)
	if err != nil {
		return fmt.Errorf("failed to initialize classifier: %w", err)
	}
	defer backend.Close()

	awsCfg, err := clients.NewAWSConfig(ctx, cfg.AWS.Region)
	if err != nil {
		return err
	}
	repo := db.NewFeedbackRepository(clients.NewDynamoDBClient(awsCfg, cfg.AWS.Endpoint), cfg.AWS.FeedbackTable)
	if !cfg.IsProduction() {
		if err := repo.EnsureTable(ctx); err != nil {
			slog.Warn("[Main] Could not ensure feedback table", slog.String("error", err.Error()))
		}
	}

	analyzer := sentiment.NewAnalyzer(backend.Classifier,
		sentiment.WithConcurrency(cfg.Analyzer.Concurrency),
		sentiment.WithBatchSize(cfg.Analyzer.BatchSize),
		sentiment.WithItemTimeout(cfg.Analyzer.ItemTimeout))

	healthy := &atomic.Bool{}
	healthy.Store(true)
	if backend.Health != nil {
		go monitoring.MonitorClassifierHealth(ctx, backend.Health, healthy, cfg.Classifier.HealthCheckInterval)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           server.SetupRouter(feedback.NewService(analyzer, repo), healthy, cfg.MaxUploadBytes),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("[Main] HTTP server listening",
			slog.String("addr", srv.Addr),
			slog.String("classifier", backend.Name))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return fmt.Errorf("HTTP server failed: %w", err)
	case <-ctx.Done():
	}
	slog.Info("[Main] Shutting down server gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("forced shutdown: %w", err)
	}
	return nil
}
