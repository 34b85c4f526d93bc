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
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/multierr"

	"github.com/angelmondragon/easyrecs-backend/api/routes"
	"github.com/angelmondragon/easyrecs-backend/internal/analytics"
	"github.com/angelmondragon/easyrecs-backend/internal/dashboard"
	"github.com/angelmondragon/easyrecs-backend/internal/recommendations"
	"github.com/angelmondragon/easyrecs-backend/internal/shops"
	"github.com/angelmondragon/easyrecs-backend/internal/usage"
	"github.com/angelmondragon/easyrecs-backend/pkg/config"
	"github.com/angelmondragon/easyrecs-backend/pkg/db"
	"github.com/angelmondragon/easyrecs-backend/pkg/logger"
	"github.com/angelmondragon/easyrecs-backend/pkg/metrics"
	"github.com/angelmondragon/easyrecs-backend/pkg/migrate"
	"github.com/angelmondragon/easyrecs-backend/pkg/redis"
	"github.com/angelmondragon/easyrecs-backend/pkg/shopify"
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
		Env:         cfg.App.Env,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	recMetrics := metrics.NewRecommendationMetrics(registry)

	deps, err := buildDependencies(cfg, logg, dbClient, redisClient, recMetrics)
	if err != nil {
		logg.Error(context.Background(), "failed to wire services", err)
		os.Exit(1)
	}
	deps.MetricsHandler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry})

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})

	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(cfg, logg, deps),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      cfg.App.RequestTimeout + 5*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		logg.Info(ctx, "starting api server")
		serveErr <- server.ListenAndServe()
	}()

	exitCode := 0
	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			exitCode = 1
		}
	case <-sigCtx.Done():
		logg.Info(ctx, "shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	closeErr := multierr.Combine(
		server.Shutdown(shutdownCtx),
		redisClient.Close(),
		dbClient.Close(),
	)
	if closeErr != nil {
		logg.Error(ctx, "error during shutdown", closeErr)
		exitCode = 1
	}

	logg.Info(ctx, "api server stopped")
	os.Exit(exitCode)
}

func buildDependencies(
	cfg *config.Config,
	logg *logger.Logger,
	dbClient *db.Client,
	redisClient *redis.Client,
	recMetrics *metrics.RecommendationMetrics,
) (routes.Dependencies, error) {
	shopsRepo := shops.NewRepository(dbClient.DB())
	ledger, err := usage.NewLedger(shopsRepo, cfg.Billing.CycleLength())
	if err != nil {
		return routes.Dependencies{}, err
	}

	catalog, err := shopify.NewClient(shopsRepo,
		shopify.WithAPIVersion(cfg.Shopify.APIVersion),
		shopify.WithTimeout(cfg.Shopify.HTTPTimeout),
		shopify.WithBreaker(shopify.NewBreaker(shopify.DefaultBreakerSettings(), logg)),
	)
	if err != nil {
		return routes.Dependencies{}, err
	}

	recRepo := recommendations.NewRepository(dbClient.DB())
	recService, err := recommendations.NewService(recommendations.ServiceParams{
		Repo:    recRepo,
		Catalog: catalog,
		Logger:  logg,
	})
	if err != nil {
		return routes.Dependencies{}, err
	}
	resolver, err := recommendations.NewResolver(recommendations.ResolverParams{
		Repo:      recRepo,
		Catalog:   catalog,
		Metrics:   recMetrics,
		ScanLimit: cfg.Recommendations.ResolverScanLimit,
	})
	if err != nil {
		return routes.Dependencies{}, err
	}

	analyticsService, err := analytics.NewService(
		analytics.NewRepository(dbClient.DB()),
		analytics.WithScanBatchSize(cfg.Analytics.ScanBatchSize),
	)
	if err != nil {
		return routes.Dependencies{}, err
	}

	dashboardService, err := dashboard.NewService(ledger, analyticsService, logg)
	if err != nil {
		return routes.Dependencies{}, err
	}

	return routes.Dependencies{
		DB:              dbClient,
		Redis:           redisClient,
		Ledger:          ledger,
		Recommendations: recService,
		Resolver:        resolver,
		Events:          analyticsService,
		Dashboard:       dashboardService,
		Metrics:         recMetrics,
	}, nil
}
