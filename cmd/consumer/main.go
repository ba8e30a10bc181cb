package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/spacesedan/moodmeter/config"
	"github.com/spacesedan/moodmeter/internal/clients"
	"github.com/spacesedan/moodmeter/internal/clients/kafka_client"
	"github.com/spacesedan/moodmeter/internal/consumers"
	"github.com/spacesedan/moodmeter/internal/db"
	"github.com/spacesedan/moodmeter/internal/feedback"
	"github.com/spacesedan/moodmeter/internal/logging"
	"github.com/spacesedan/moodmeter/internal/monitoring"
	"github.com/spacesedan/moodmeter/internal/sentiment"
)

func main() {
	if err := run(); err != nil {
		slog.Error("[Main] Consumer stopped", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

// run returns instead of exiting so the producer is flushed on every path.
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

	var producer *kafka_client.Producer
	for {
		producer, err = kafka_client.NewProducer(ctx, cfg.Kafka)
		if err == nil {
			break
		}
		slog.Warn("[Main] Kafka init failed, retrying...", slog.String("error", err.Error()))
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(5 * time.Second):
		}
	}
	defer producer.Close()

	consumer, err := kafka_client.NewConsumer(cfg.Kafka, cfg.Kafka.SubmittedTopic)
	if err != nil {
		return fmt.Errorf("failed to start consumer: %w", err)
	}
	defer consumer.Close()

	var cache sentiment.PredictionCache
	if cfg.Valkey.Address != "" {
		if client, err := clients.NewValkeyClient(cfg.Valkey); err != nil {
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

	analyzer := sentiment.NewAnalyzer(backend.Classifier,
		sentiment.WithConcurrency(cfg.Analyzer.Concurrency),
		sentiment.WithBatchSize(cfg.Analyzer.BatchSize),
		sentiment.WithItemTimeout(cfg.Analyzer.ItemTimeout))

	var opts []consumers.FeedbackConsumerOption
	if backend.Health != nil {
		healthy := &atomic.Bool{}
		healthy.Store(true)
		go monitoring.MonitorClassifierHealth(ctx, backend.Health, healthy, cfg.Classifier.HealthCheckInterval)
		opts = append(opts, consumers.WithHealthGate(healthy))
	}

	worker := consumers.NewFeedbackConsumer(
		kafka_client.NewKafkaMessageIterator(ctx, consumer),
		kafka_client.NewCommitHandler(ctx, consumer),
		feedback.NewService(analyzer, repo),
		producer,
		cfg.Kafka.AnalyzedTopic,
		cfg.Kafka.BatchSize,
		cfg.Kafka.BatchTimeout,
		opts...,
	)

	slog.Info("[Main] Starting consumer for topic...", slog.String("topic", cfg.Kafka.SubmittedTopic))
	return worker.Run(ctx)
}
