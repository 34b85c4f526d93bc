package routes

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/angelmondragon/easyrecs-backend/api/controllers"
	"github.com/angelmondragon/easyrecs-backend/api/middleware"
	"github.com/angelmondragon/easyrecs-backend/pkg/config"
	"github.com/angelmondragon/easyrecs-backend/pkg/logger"
	"github.com/angelmondragon/easyrecs-backend/pkg/metrics"
	"github.com/angelmondragon/easyrecs-backend/pkg/redis"
)

// redisStore is the Redis surface shared by rate limiting, idempotency and
// the readiness probe.
type redisStore interface {
	redis.RateLimiter
	redis.IdempotencyStore
	Ping(ctx context.Context) error
}

// Dependencies carries everything the router mounts.
type Dependencies struct {
	DB              controllers.Pinger
	Redis           redisStore
	Ledger          controllers.UsageLedger
	Recommendations controllers.RecommendationStore
	Resolver        controllers.RecommendationResolver
	Events          controllers.EventRecorder
	Dashboard       controllers.OverviewLoader
	Metrics         *metrics.RecommendationMetrics
	MetricsHandler  http.Handler
}

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	readiness := map[string]controllers.Pinger{}
	if deps.DB != nil {
		readiness["db"] = deps.DB
	}
	if deps.Redis != nil {
		readiness["redis"] = deps.Redis
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, readiness))
	})
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	trackPolicy := middleware.NewRateLimitPolicy(
		"proxy-track",
		cfg.ProxyRateLimit.Window,
		cfg.ProxyRateLimit.IPLimit,
	)

	r.Route("/proxy", func(r chi.Router) {
		if cfg.App.RequestTimeout > 0 {
			r.Use(chimw.Timeout(cfg.App.RequestTimeout))
		}
		r.Use(middleware.ProxySignature(cfg.Shopify.APISecret, cfg.FeatureFlags.SkipProxySignature, logg))
		r.Get("/recommendations", controllers.ProxyRecommendations(deps.Resolver, logg))
		r.With(middleware.RateLimit(trackPolicy, deps.Redis, logg)).
			Post("/recommendations", controllers.ProxyTrack(deps.Ledger, deps.Events, deps.Metrics, logg))
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.CORS(cfg.App.AllowedOrigins))
		if cfg.App.RequestTimeout > 0 {
			r.Use(chimw.Timeout(cfg.App.RequestTimeout))
		}
		r.Use(middleware.SessionToken(cfg.Shopify.APIKey, cfg.Shopify.APISecret, logg))
		r.Use(middleware.ProvisionShop(deps.Ledger, logg))
		r.Use(middleware.Idempotency(deps.Redis, cfg.FeatureFlags.RequireIdempotencyID, logg))

		r.Route("/recommendations", func(r chi.Router) {
			r.Get("/", controllers.AdminListRecommendations(deps.Recommendations, logg))
			r.Post("/", controllers.AdminCreateRecommendation(deps.Recommendations, logg))
			r.Put("/{handle}", controllers.AdminUpdateRecommendation(deps.Recommendations, logg))
			r.Delete("/{id}", controllers.AdminDeleteRecommendation(deps.Recommendations, logg))
			r.Post("/{id}/toggle", controllers.AdminToggleRecommendation(deps.Recommendations, logg))
		})
		r.Get("/dashboard", controllers.AdminDashboard(deps.Dashboard, logg))
		r.Get("/usage", controllers.AdminUsage(deps.Ledger, logg))
		r.Put("/plan", controllers.AdminUpdatePlan(deps.Ledger, logg))
	})

	return r
}
