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

	"github.com/angelmondragon/skillbridge-billing/api/controllers"
	"github.com/angelmondragon/skillbridge-billing/api/routes"
	"github.com/angelmondragon/skillbridge-billing/internal/alerts"
	"github.com/angelmondragon/skillbridge-billing/internal/catalog"
	"github.com/angelmondragon/skillbridge-billing/internal/payments"
	"github.com/angelmondragon/skillbridge-billing/internal/plans"
	"github.com/angelmondragon/skillbridge-billing/internal/profiles"
	"github.com/angelmondragon/skillbridge-billing/internal/subscriptions"
	"github.com/angelmondragon/skillbridge-billing/pkg/config"
	"github.com/angelmondragon/skillbridge-billing/pkg/db"
	"github.com/angelmondragon/skillbridge-billing/pkg/instance"
	"github.com/angelmondragon/skillbridge-billing/pkg/logger"
	"github.com/angelmondragon/skillbridge-billing/pkg/metrics"
	"github.com/angelmondragon/skillbridge-billing/pkg/migrate"
	"github.com/angelmondragon/skillbridge-billing/pkg/paypal"
	"github.com/angelmondragon/skillbridge-billing/pkg/redis"
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
	if creds := stack.Resolver.Resolve(context.Background()); creds.Validate() != nil {
		// Credentials resolve per request; only payment calls fail until they appear.
		logg.Warn(logg.WithFields(context.Background(), creds.Diagnostics()), "paypal credentials not configured at startup")
	}

	billingMetrics := metrics.NewBillingMetrics(prometheus.DefaultRegisterer)

	productService, err := catalog.NewService(catalog.ServiceParams{
		Client:    stack.Client,
		Logger:    logg,
		BrandName: cfg.PayPal.BrandName,
		CacheTTL:  cfg.PayPal.ProductCacheTTL,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create product resolver", err)
		os.Exit(1)
	}

	planService, err := plans.NewService(plans.ServiceParams{
		Client:          stack.Client,
		Products:        productService,
		Logger:          logg,
		Metrics:         billingMetrics,
		BrandName:       cfg.PayPal.BrandName,
		ConflictRetries: cfg.PayPal.ConflictRetries,
		ConflictBackoff: cfg.PayPal.ConflictBackoff,
		PageSize:        cfg.PayPal.PlanListPageSize,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create plan provisioner", err)
		os.Exit(1)
	}

	subscriptionCreator, err := subscriptions.NewCreator(subscriptions.CreatorParams{
		Client:           stack.Client,
		Logger:           logg,
		Metrics:          billingMetrics,
		BrandName:        cfg.PayPal.BrandName,
		DefaultReturnURL: cfg.PayPal.ReturnURL,
		DefaultCancelURL: cfg.PayPal.CancelURL,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create subscription creator", err)
		os.Exit(1)
	}

	paymentService, err := payments.NewService(payments.ServiceParams{
		Credentials:   stack.Resolver,
		Plans:         planService,
		Subscriptions: subscriptionCreator,
		Profiles:      profiles.NewRepository(dbClient.DB()),
		Alerts:        alertSink,
		Logger:        logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create payment service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": instance.ID(),
	})

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.RouterParams{
			Config:   cfg,
			Logger:   logg,
			Payments: paymentService,
			Gatherer: prometheus.DefaultGatherer,
			Checks: []controllers.ReadinessCheck{
				{Name: "postgres", Pinger: dbClient},
				{Name: "redis", Pinger: redisClient},
			},
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logg.Info(ctx, "starting api server")
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-sigCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "api server shutdown failed", err)
		}
		logg.Info(ctx, "api server stopped")
	}
}
