package cache

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"go-query-gateway/internal/config"
)

// Cache defines the interface for cache implementations
type Cache interface {
	// Get retrieves data from cache
	// Returns: data, hit/miss, error
	Get(ctx context.Context, key string) (interface{}, bool, error)

	// Set stores data in cache with TTL
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error

	// Delete removes a key from cache
	Delete(ctx context.Context, key string) error

	// Invalidate removes all keys matching a glob pattern
	Invalidate(ctx context.Context, pattern string) error

	// GenerateKey creates a schema cache key for a table of a source
	GenerateKey(source, tableID string) string

	// Stats returns cache statistics
	Stats(ctx context.Context) (map[string]interface{}, error)

	// Close closes any connections
	Close() error
}

// schemaKey is shared by every implementation so keys are portable between
// tiers. BigQuery dataset and table names are case-sensitive, so the id keeps
// its case.
func schemaKey(source, tableID string) string {
	return "schema:" + source + ":" + strings.TrimSpace(tableID)
}

// New picks Redis when a host is configured and reachable, otherwise an
// in-process store with the given default TTL. A non-positive ttl disables
// caching.
func New(cfg config.RedisConfig, ttl time.Duration, logger *zap.Logger) Cache {
	if ttl <= 0 {
		logger.Info("Schema cache disabled")
		return &NoOpCache{}
	}
	if cfg.Host == "" {
		logger.Info("Redis not configured, using in-memory cache", zap.Duration("ttl", ttl))
		return NewMemoryCache(ttl, logger)
	}

	redisCache, err := NewRedisCache(cfg, ttl, logger)
	if err != nil {
		logger.Warn("Failed to initialize Redis cache, using in-memory cache", zap.Error(err))
		return NewMemoryCache(ttl, logger)
	}
	return redisCache
}

// NoOpCache is a cache that does nothing
type NoOpCache struct{}

func (n *NoOpCache) Get(ctx context.Context, key string) (interface{}, bool, error) {
	return nil, false, nil
}

func (n *NoOpCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return nil
}

func (n *NoOpCache) Delete(ctx context.Context, key string) error {
	return nil
}

func (n *NoOpCache) Invalidate(ctx context.Context, pattern string) error {
	return nil
}

func (n *NoOpCache) GenerateKey(source, tableID string) string {
	return ""
}

func (n *NoOpCache) Stats(ctx context.Context) (map[string]interface{}, error) {
	return map[string]interface{}{
		"connected": false,
		"type":      "noop",
	}, nil
}

func (n *NoOpCache) Close() error {
	return nil
}
