// cmd/assignmentd/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"assignment-service/internal/api"
	"assignment-service/internal/assignment/estimator"
	"assignment-service/internal/assignment/generator"
	"assignment-service/internal/assignment/selector"
	"assignment-service/internal/assignment/statemachine"
	"assignment-service/internal/assignment/sweeper"
	"assignment-service/internal/billing"
	"assignment-service/internal/common/config"
	"assignment-service/internal/common/database"
	"assignment-service/internal/common/logger"
	"assignment-service/internal/common/observability"
	"assignment-service/internal/models"
	"assignment-service/internal/notify"
	"assignment-service/internal/pool"
	"assignment-service/internal/storage"
	"assignment-service/internal/webhook"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	zapLog := logger.New("info", "console")
	defer zapLog.Sync()

	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting assignment service...")

	cfg, err := config.Load()
	if err != nil {
		zapLog.Fatal("config load failed", zap.Error(err))
	}

	obs := observability.New("assignment-service")
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	// --- Init Redis with retry ---
	var redisClient *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		redisClient, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return redisClient.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")
	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer redisClient.Close()
	zapLog.Info("Redis connected successfully")

	// --- Init Elasticsearch with retry ---
	var esClient *database.ElasticsearchClient
	err = retryWithBackoff(func() error {
		var err error
		esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
		if err != nil {
			return err
		}
		return esClient.Ping()
	}, 15, 2*time.Second, zapLog, "Elasticsearch connection")
	if err != nil {
		zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
	}
	zapLog.Info("Elasticsearch connected successfully")

	// --- Assemble components ---
	store := storage.NewPostgresStore(pg.GetDB())

	notifier, err := notify.NewAWSNotifier(ctx, &cfg.Notifications, store, log)
	if err != nil {
		zapLog.Fatal("notifier init failed", zap.Error(err))
	}
	dispatcher := notify.NewDispatcher(notifier, cfg.Notifications.QueueSize, cfg.Notifications.MaxRetries, log)
	defer dispatcher.Close()

	devPool := pool.NewElasticsearchPool(esClient.Client, cfg.Database.Elasticsearch.DevIndex, log)
	snapshots := estimator.NewSnapshotProvider(store, redisClient.GetClient(),
		time.Duration(cfg.Assignment.SnapshotCacheTTLMinutes)*time.Minute,
		int64(cfg.Assignment.DefaultResponseTimeMs), log)
	sel := selector.New(devPool, store, snapshots, log)

	defaultQuota := models.TierQuota{
		FresherCount: cfg.Assignment.DefaultFresherCount,
		MidCount:     cfg.Assignment.DefaultMidCount,
		ExpertCount:  cfg.Assignment.DefaultExpertCount,
	}
	gen := generator.New(store, sel, dispatcher, cfg.Assignment.AcceptanceWindow(), defaultQuota,
		int64(cfg.Assignment.DefaultResponseTimeMs), log)
	machine := statemachine.New(store, dispatcher, log)

	swp := sweeper.New(store, cfg.Assignment.SweepInterval(), cfg.Assignment.SweepPageSize, log)
	swp.Start(ctx)
	defer swp.Stop()
	zapLog.Info("Expiration sweeper started",
		zap.Duration("interval", cfg.Assignment.SweepInterval()))

	hook := webhook.NewAdapter(store, machine, redisClient.GetClient(),
		time.Duration(cfg.Assignment.WebhookDedupTTLHours)*time.Hour, log)
	gate := billing.NewHTTPGate(&cfg.Billing, log)

	server := api.NewServer(cfg.HTTP.Port, gen, machine, hook, gate, store, swp, cfg.HTTP.AdminSweepToken, obs, log)
	go func() {
		if err := server.Start(); err != nil {
			zapLog.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("HTTP server shutdown failed", zap.Error(err))
	}

	zapLog.Info("Assignment service stopped gracefully")
}
