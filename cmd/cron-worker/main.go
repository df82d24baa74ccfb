package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/skillbridge-billing/internal/alerts"
	"github.com/angelmondragon/skillbridge-billing/internal/cron"
	"github.com/angelmondragon/skillbridge-billing/internal/profiles"
	"github.com/angelmondragon/skillbridge-billing/pkg/config"
	"github.com/angelmondragon/skillbridge-billing/pkg/db"
	"github.com/angelmondragon/skillbridge-billing/pkg/instance"
	"github.com/angelmondragon/skillbridge-billing/pkg/logger"
	"github.com/angelmondragon/skillbridge-billing/pkg/metrics"
	"github.com/angelmondragon/skillbridge-billing/pkg/migrate"
	"github.com/angelmondragon/skillbridge-billing/pkg/paypal"
	"github.com/angelmondragon/skillbridge-billing/pkg/redis"
)

const lockScope = "cron"

func main() {
	runOnce := flag.Bool("run-once", false, "run every registered job once and exit")
	jobName := flag.String("job", "", "with -run-once, run only the named job")
	flag.Parse()

	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

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

	alertSink, closeAlerts, err := alerts.NewSink(context.Background(), cfg, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap alerts", err)
		os.Exit(1)
	}
	defer func() {
		if err := closeAlerts(); err != nil {
			logg.Error(context.Background(), "error closing alerts", err)
		}
	}()

	legacy := redis.NewConfigSource(redisClient, cfg.PayPal.LegacyConfigKey, logg)
	stack, err := paypal.NewStack(cfg.PayPal, legacy, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create paypal client", err)
		os.Exit(1)
	}

	syncJob, err := cron.NewSubscriptionSyncJob(cron.SubscriptionSyncJobParams{
		Logger:      logg,
		Profiles:    profiles.NewRepository(dbClient.DB()),
		Client:      stack.Client,
		Alerts:      alertSink,
		Metrics:     metrics.NewBillingMetrics(prometheus.DefaultRegisterer),
		BatchSize:   cfg.Cron.SyncBatchSize,
		Concurrency: cfg.Cron.SyncConcurrency,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create subscription sync job", err)
		os.Exit(1)
	}

	lock, err := cron.NewRedisLock(redisClient, func(job string) string {
		return redisClient.LockKey(lockScope, job)
	}, cfg.Cron.LockTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: cron.NewRegistry(syncJob),
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Schedule: cfg.Cron.Schedule,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"schedule": cfg.Cron.Schedule,
		"instance": instance.ID(),
	})

	if *runOnce {
		logg.Info(ctx, "running cron jobs once")
		if *jobName != "" {
			err = service.RunJob(ctx, *jobName)
		} else {
			err = service.RunOnce(ctx)
		}
		if err != nil {
			logg.Error(ctx, "cron run failed", err)
			os.Exit(1)
		}
		return
	}

	logg.Info(ctx, "starting cron worker")
	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}
