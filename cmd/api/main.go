package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/noor-academy/lessonledger/api/routes"
	"github.com/noor-academy/lessonledger/internal/earnings"
	"github.com/noor-academy/lessonledger/internal/ledger"
	"github.com/noor-academy/lessonledger/internal/lessons"
	"github.com/noor-academy/lessonledger/internal/referrals"
	"github.com/noor-academy/lessonledger/internal/sadaqah"
	"github.com/noor-academy/lessonledger/internal/teachertiers"
	"github.com/noor-academy/lessonledger/internal/transfers"
	"github.com/noor-academy/lessonledger/internal/users"
	"github.com/noor-academy/lessonledger/pkg/config"
	"github.com/noor-academy/lessonledger/pkg/db"
	"github.com/noor-academy/lessonledger/pkg/instance"
	"github.com/noor-academy/lessonledger/pkg/logger"
	"github.com/noor-academy/lessonledger/pkg/metrics"
	"github.com/noor-academy/lessonledger/pkg/migrate"
	"github.com/noor-academy/lessonledger/pkg/outbox"
	"github.com/noor-academy/lessonledger/pkg/redis"
	"github.com/noor-academy/lessonledger/pkg/tiers"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Instance:    instance.GetID(),
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})

	ladders, err := tiers.Load(cfg.Tiers.File)
	exitOnErr(logg, "failed to load tier ladders", err)

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	exitOnErr(logg, "failed to bootstrap database", err)
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	err = migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient)
	exitOnErr(logg, "failed to run dev migrations", err)

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	exitOnErr(logg, "failed to bootstrap redis", err)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	ledgerMetrics := metrics.NewLedgerMetrics(registry)

	gdb := dbClient.DB()
	emitter := outbox.NewService(outbox.NewRepository(gdb), logg)

	usersSvc, err := users.NewService(users.NewRepository(gdb))
	exitOnErr(logg, "failed to create users service", err)

	ledgerSvc, err := ledger.NewService(ledger.ServiceParams{
		Repo:           ledger.NewRepository(gdb),
		Tx:             dbClient,
		Outbox:         emitter,
		Logger:         logg,
		Metrics:        ledgerMetrics,
		MaturityWindow: cfg.Ledger.MaturityWindow,
	})
	exitOnErr(logg, "failed to create ledger service", err)

	transfersSvc, err := transfers.NewService(transfers.ServiceParams{
		Repo:    transfers.NewRepository(gdb),
		Tx:      dbClient,
		Ledger:  ledgerSvc,
		Users:   usersSvc,
		Outbox:  emitter,
		Logger:  logg,
		Metrics: ledgerMetrics,
	})
	exitOnErr(logg, "failed to create transfers service", err)

	sadaqahSvc, err := sadaqah.NewService(sadaqah.ServiceParams{
		Repo:    sadaqah.NewRepository(gdb),
		Tx:      dbClient,
		Ledger:  ledgerSvc,
		Outbox:  emitter,
		Logger:  logg,
		Metrics: ledgerMetrics,
	})
	exitOnErr(logg, "failed to create sadaqah service", err)

	referralsSvc, err := referrals.NewService(referrals.ServiceParams{
		Repo:           referrals.NewRepository(gdb),
		Tx:             dbClient,
		Ledger:         ledgerSvc,
		Outbox:         emitter,
		Ladder:         ladders.Referral,
		MilestoneHours: cfg.Ledger.ReferralMilestoneHour,
		Logger:         logg,
		Metrics:        ledgerMetrics,
	})
	exitOnErr(logg, "failed to create referrals service", err)

	tiersSvc, err := teachertiers.NewService(teachertiers.ServiceParams{
		Repo:    teachertiers.NewRepository(gdb),
		Tx:      dbClient,
		Outbox:  emitter,
		Ladder:  ladders.Teacher,
		Logger:  logg,
		Metrics: ledgerMetrics,
	})
	exitOnErr(logg, "failed to create teacher tiers service", err)

	earningsSvc, err := earnings.NewService(earnings.ServiceParams{
		Repo:       earnings.NewRepository(gdb),
		Tx:         dbClient,
		Outbox:     emitter,
		HoldPeriod: cfg.Ledger.HoldPeriod,
		Logger:     logg,
		Metrics:    ledgerMetrics,
	})
	exitOnErr(logg, "failed to create earnings service", err)

	lessonsSvc, err := lessons.NewService(lessons.ServiceParams{
		Repo:      lessons.NewRepository(gdb),
		Tx:        dbClient,
		Earnings:  earningsSvc,
		Tiers:     tiersSvc,
		Referrals: referralsSvc,
		Logger:    logg,
		Metrics:   ledgerMetrics,
	})
	exitOnErr(logg, "failed to create lessons service", err)

	handler := routes.NewRouter(cfg, logg, routes.Dependencies{
		DB:          dbClient,
		Redis:       redisClient,
		Idempotency: redisClient,
		RateLimiter: redisClient,
		Gatherer:    registry,
		HTTPMetrics: metrics.NewHTTPMetrics(registry),
	}, routes.Services{
		Ledger:       ledgerSvc,
		Transfers:    transfersSvc,
		Sadaqah:      sadaqahSvc,
		Referrals:    referralsSvc,
		TeacherTiers: tiersSvc,
		Earnings:     earningsSvc,
		Lessons:      lessonsSvc,
		Users:        usersSvc,
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})

	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logg.Info(ctx, "starting api server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "api server shut down gracefully")
}

func exitOnErr(logg *logger.Logger, msg string, err error) {
	if err == nil {
		return
	}
	logg.Error(context.Background(), msg, err)
	os.Exit(1)
}
