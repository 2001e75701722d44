package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/noor-academy/lessonledger/internal/cron"
	"github.com/noor-academy/lessonledger/internal/earnings"
	"github.com/noor-academy/lessonledger/internal/ledger"
	"github.com/noor-academy/lessonledger/pkg/config"
	"github.com/noor-academy/lessonledger/pkg/db"
	"github.com/noor-academy/lessonledger/pkg/instance"
	"github.com/noor-academy/lessonledger/pkg/logger"
	"github.com/noor-academy/lessonledger/pkg/metrics"
	"github.com/noor-academy/lessonledger/pkg/migrate"
	"github.com/noor-academy/lessonledger/pkg/outbox"
	"github.com/noor-academy/lessonledger/pkg/redis"
)

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
		Instance:    instance.GetID(),
		Format:      cfg.App.LogFormat,
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

	ledgerMetrics := metrics.NewLedgerMetrics(prometheus.DefaultRegisterer)
	outboxRepo := outbox.NewRepository(dbClient.DB())
	emitter := outbox.NewService(outboxRepo, logg)

	ledgerSvc, err := ledger.NewService(ledger.ServiceParams{
		Repo:           ledger.NewRepository(dbClient.DB()),
		Tx:             dbClient,
		Outbox:         emitter,
		Logger:         logg,
		Metrics:        ledgerMetrics,
		MaturityWindow: cfg.Ledger.MaturityWindow,
	})
	exitOnErr(logg, "failed to create ledger service", err)

	earningsSvc, err := earnings.NewService(earnings.ServiceParams{
		Repo:       earnings.NewRepository(dbClient.DB()),
		Tx:         dbClient,
		Outbox:     emitter,
		HoldPeriod: cfg.Ledger.HoldPeriod,
		Logger:     logg,
		Metrics:    ledgerMetrics,
	})
	exitOnErr(logg, "failed to create earnings service", err)

	clearingJob, err := cron.NewEarningsClearingJob(logg, earningsSvc)
	exitOnErr(logg, "failed to create earnings clearing job", err)
	reconcileJob, err := cron.NewLedgerReconcileJob(logg, ledgerSvc)
	exitOnErr(logg, "failed to create ledger reconcile job", err)
	retentionJob, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:     logg,
		DB:         dbClient,
		Repository: outboxRepo,
		Retention:  cfg.Cron.OutboxRetentionDays,
	})
	exitOnErr(logg, "failed to create outbox retention job", err)

	dlqWatchJob, err := cron.NewOutboxDLQWatchJob(logg, outbox.NewDLQRepository(dbClient.DB()), cfg.Cron.Interval)
	exitOnErr(logg, "failed to create outbox dlq watch job", err)

	registry, err := cron.NewRegistry(clearingJob, reconcileJob, retentionJob, dlqWatchJob)
	exitOnErr(logg, "failed to build cron registry", err)

	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey("cron-worker:"+cfg.App.Env), cfg.Cron.LockTTL)
	exitOnErr(logg, "failed to create cron lock", err)

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval: cfg.Cron.Interval,
	})
	exitOnErr(logg, "failed to create cron service", err)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
		"interval":    cfg.Cron.Interval.String(),
	})
	logg.Info(ctx, "starting cron worker")

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error { return service.Run(groupCtx) })
	group.Go(func() error { return metrics.Serve(groupCtx, cfg.Service.MetricsAddr, prometheus.DefaultGatherer) })
	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "cron worker shutting down gracefully")
}

func exitOnErr(logg *logger.Logger, msg string, err error) {
	if err == nil {
		return
	}
	logg.Error(context.Background(), msg, err)
	os.Exit(1)
}
