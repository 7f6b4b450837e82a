package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"go-query-gateway/internal/cache"
	"go-query-gateway/internal/config"
	"go-query-gateway/internal/guard"
	v1 "go-query-gateway/internal/handlers/v1"
	custommw "go-query-gateway/internal/middleware/chi"
)

// RouterDeps are the collaborators the HTTP surface needs. Cache, Schemas
// and BigQuery may be nil.
type RouterDeps struct {
	Config   *config.Config
	Guard    *guard.Guard
	Cache    cache.Cache
	Schemas  *cache.CachedSchemaSource
	BigQuery Pinger
	Logger   *zap.Logger
}

// NewRouter builds the chi router. Background work started for the router,
// such as rate limiter cleanup, stops when ctx is done.
func NewRouter(ctx context.Context, deps RouterDeps) http.Handler {
	metrics := custommw.NewMetrics()

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(custommw.Logger(deps.Logger))
	r.Use(middleware.Recoverer)
	r.Use(custommw.CORS(deps.Config.CORSOrigins...))
	r.Use(metrics.Collector)
	r.Use(middleware.Compress(5))

	// Health endpoints (no auth)
	r.Get("/health", Health)
	r.Get("/ready", Ready(map[string]Pinger{"bigquery": deps.BigQuery}))
	r.Handle("/metrics", metrics.Handler())
	r.Get("/cache/stats", CacheStats(deps.Cache, deps.Schemas))
	r.With(custommw.APIKeyAuth(deps.Config.APIKeys)).
		Post("/cache/invalidate", InvalidateCache(deps.Schemas))

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(custommw.APIKeyAuth(deps.Config.APIKeys))
		r.Use(custommw.RateLimiter(ctx, deps.Config.RateLimit))
		r.Use(middleware.Timeout(60 * time.Second))

		v1.NewQueryHandler(deps.Guard, metrics, deps.Logger).Routes(r)
	})

	return r
}
