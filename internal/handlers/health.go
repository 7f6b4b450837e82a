package handlers

import (
	"context"
	"net/http"

	"go-query-gateway/internal/cache"
	"go-query-gateway/internal/response"
	"go-query-gateway/internal/security"
)

const serviceName = "go-query-gateway"

// Pinger is anything /ready can probe, such as the BigQuery client
type Pinger interface {
	TestConnection(ctx context.Context) error
}

// Health returns service health status
func Health(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": serviceName,
	})
}

// Ready checks every named dependency. A nil dependency is reported as
// not configured and does not fail readiness.
func Ready(deps map[string]Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := make(map[string]string, len(deps))
		status, code := "ready", http.StatusOK

		for name, dep := range deps {
			if dep == nil {
				checks[name] = "not configured"
				continue
			}
			if err := dep.TestConnection(r.Context()); err != nil {
				checks[name] = "unhealthy: " + err.Error()
				status, code = "not ready", http.StatusServiceUnavailable
				continue
			}
			checks[name] = "healthy"
		}

		response.JSON(w, code, map[string]interface{}{
			"status": status,
			"checks": checks,
		})
	}
}

// CacheStats reports the cache tier and the schema source hit rates
func CacheStats(c cache.Cache, schemas *cache.CachedSchemaSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats := make(map[string]interface{})

		if c != nil {
			if cacheStats, err := c.Stats(r.Context()); err == nil {
				stats["cache"] = cacheStats
			} else {
				stats["cache"] = map[string]interface{}{"error": err.Error()}
			}
		}
		if schemas != nil {
			stats["schemas"] = schemas.GetMetrics()
		}

		response.JSON(w, http.StatusOK, stats)
	}
}

// InvalidateCache drops cached schemas: one table when ?table= is given,
// otherwise every table of the source.
func InvalidateCache(schemas *cache.CachedSchemaSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if schemas == nil {
			response.ErrorWithCode(w, "unavailable", "schema cache not configured", "", http.StatusServiceUnavailable)
			return
		}

		target := "all"
		var err error
		if raw := r.URL.Query().Get("table"); raw != "" {
			if target, err = security.ValidateTableID(raw); err != nil {
				response.ErrorWithCode(w, "invalid_table_id", err.Error(), "", http.StatusBadRequest)
				return
			}
			err = schemas.InvalidateTable(r.Context(), target)
		} else {
			err = schemas.InvalidateCache(r.Context())
		}
		if err != nil {
			response.Error(w, "cache invalidation failed: "+err.Error(), http.StatusInternalServerError)
			return
		}

		response.Success(w, map[string]string{"invalidated": target}, nil)
	}
}
