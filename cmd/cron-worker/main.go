package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/warrantyflow-sys/warrantyflow-sub001/internal/cron"
	"github.com/warrantyflow-sys/warrantyflow-sub001/internal/ledger"
	"github.com/warrantyflow-sys/warrantyflow-sub001/internal/notifications"
	"github.com/warrantyflow-sys/warrantyflow-sub001/internal/payments"
	"github.com/warrantyflow-sys/warrantyflow-sub001/internal/repairs"
	"github.com/warrantyflow-sys/warrantyflow-sub001/internal/replacements"
	"github.com/warrantyflow-sys/warrantyflow-sub001/internal/users"
	"github.com/warrantyflow-sys/warrantyflow-sub001/internal/warranties"
	"github.com/warrantyflow-sys/warrantyflow-sub001/pkg/config"
	"github.com/warrantyflow-sys/warrantyflow-sub001/pkg/db"
	"github.com/warrantyflow-sys/warrantyflow-sub001/pkg/logger"
	"github.com/warrantyflow-sys/warrantyflow-sub001/pkg/metrics"
	"github.com/warrantyflow-sys/warrantyflow-sub001/pkg/migrate"
	"github.com/warrantyflow-sys/warrantyflow-sub001/pkg/outbox"
	"github.com/warrantyflow-sys/warrantyflow-sub001/pkg/redis"
)

const lockKeyFormat = "wf:cron-worker:lock:%s"

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	metricsCollector := metrics.NewCronJobMetrics(prometheus.DefaultRegisterer)
	lock, err := cron.NewRedisLock(redisClient, lockKey(cfg.App.Env), 0)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	outboxRepo := outbox.NewRepository(dbClient.DB())
	outboxService := outbox.NewService(outboxRepo, logg)

	warrantyExpiryJob, err := cron.NewWarrantyExpiryJob(cron.WarrantyExpiryJobParams{
		Logger:        logg,
		DB:            dbClient,
		ExpiredReader: warranties.NewRepository(dbClient.DB()),
		Outbox:        outboxService,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create warranty expiry job", err)
		os.Exit(1)
	}

	staleReplacementJob, err := cron.NewStaleReplacementJob(cron.StaleReplacementJobParams{
		Logger:     logg,
		DB:         dbClient,
		Pending:    replacements.NewRepository(dbClient.DB()),
		Outbox:     outboxService,
		OutboxRepo: outboxRepo,
		MaxAge:     cfg.Reconcile.StalePendingAge,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create stale replacement job", err)
		os.Exit(1)
	}

	notificationCleanupJob, err := cron.NewNotificationCleanupJob(cron.NotificationCleanupJobParams{
		Logger:     logg,
		Repository: notifications.NewRepository(dbClient.DB()),
		Retention:  cfg.Retention.NotificationTTL,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create notification cleanup job", err)
		os.Exit(1)
	}

	outboxRetentionJob, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:      logg,
		DB:          dbClient,
		Repository:  outboxRepo,
		Retention:   cfg.Retention.OutboxPublishedTTL,
		MinAttempts: cfg.Outbox.MaxAttempts,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create outbox retention job", err)
		os.Exit(1)
	}

	ledgerService, err := ledger.NewService(
		repairs.NewRepository(dbClient.DB()),
		payments.NewRepository(dbClient.DB()),
		users.NewRepository(dbClient.DB()),
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create ledger service", err)
		os.Exit(1)
	}

	reconciliationJob, err := cron.NewReconciliationJob(cron.ReconciliationJobParams{
		Logger:      logg,
		DB:          dbClient,
		Balances:    ledgerService,
		Unread:      notifications.NewRepository(dbClient.DB()),
		Snapshots:   redisClient,
		Activity:    outboxRepo,
		Outbox:      outboxService,
		SnapshotTTL: cfg.Reconcile.SnapshotTTL,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create reconciliation job", err)
		os.Exit(1)
	}

	registry := cron.NewRegistry(
		warrantyExpiryJob,
		staleReplacementJob,
		notificationCleanupJob,
		outboxRetentionJob,
		reconciliationJob,
	)
	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  metricsCollector,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	go metrics.ListenAndServe(ctx, cfg.App.MetricsAddr, logg)
	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

func lockKey(env string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf(lockKeyFormat, env)
}
