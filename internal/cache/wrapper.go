package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"go-query-gateway/internal/datasource"
)

// CachedSchemaSource wraps a SchemaSource with caching. Only table metadata
// is cached; query results and dry-run estimates never pass through here.
type CachedSchemaSource struct {
	source  datasource.SchemaSource
	cache   Cache
	ttl     time.Duration
	metrics *Metrics
	logger  *zap.Logger
}

// NewCachedSchemaSource creates a new cached schema source
func NewCachedSchemaSource(source datasource.SchemaSource, cache Cache, ttl time.Duration, logger *zap.Logger) *CachedSchemaSource {
	return &CachedSchemaSource{
		source:  source,
		cache:   cache,
		ttl:     ttl,
		metrics: NewMetrics(),
		logger:  logger,
	}
}

// TableSchema returns cached metadata when present, otherwise fetches and
// stores it. Cache failures degrade to a direct fetch.
func (c *CachedSchemaSource) TableSchema(ctx context.Context, tableID string) (*datasource.TableSchema, error) {
	start := time.Now()
	cacheKey := c.cache.GenerateKey(string(c.source.GetType()), tableID)

	if cacheKey != "" {
		cached, hit, err := c.cache.Get(ctx, cacheKey)
		if err != nil {
			c.metrics.RecordError()
		}
		if err == nil && hit {
			if schema, ok := decodeSchema(cached); ok {
				c.metrics.RecordHit(time.Since(start))
				c.logger.Debug("Schema cache hit",
					zap.String("table", tableID),
					zap.String("key", cacheKey),
					zap.Duration("latency", time.Since(start)))

				schema.CacheHit = true
				return schema, nil
			}
			c.logger.Warn("Discarding undecodable cache entry", zap.String("key", cacheKey))
		}
	}

	c.metrics.RecordMiss(time.Since(start))

	schema, err := c.source.TableSchema(ctx, tableID)
	if err != nil {
		c.metrics.RecordError()
		return nil, err
	}

	if cacheKey != "" {
		if err := c.cache.Set(ctx, cacheKey, *schema, c.ttl); err != nil {
			c.logger.Warn("Failed to cache table schema",
				zap.String("key", cacheKey),
				zap.Error(err))
		} else {
			c.metrics.RecordSet()
		}
	}

	return schema, nil
}

// TestConnection tests the underlying source
func (c *CachedSchemaSource) TestConnection(ctx context.Context) error {
	return c.source.TestConnection(ctx)
}

// GetType returns the data source type
func (c *CachedSchemaSource) GetType() datasource.SourceType {
	return c.source.GetType()
}

// GetMetrics returns cache metrics
func (c *CachedSchemaSource) GetMetrics() map[string]interface{} {
	return c.metrics.GetStats()
}

// InvalidateTable drops the cached schema of one table
func (c *CachedSchemaSource) InvalidateTable(ctx context.Context, tableID string) error {
	key := c.cache.GenerateKey(string(c.source.GetType()), tableID)
	if key == "" {
		return nil
	}
	if err := c.cache.Delete(ctx, key); err != nil {
		return err
	}
	c.metrics.RecordDelete()
	return nil
}

// InvalidateCache drops every cached schema of this source
func (c *CachedSchemaSource) InvalidateCache(ctx context.Context) error {
	pattern := fmt.Sprintf("schema:%s:*", c.source.GetType())
	if err := c.cache.Invalidate(ctx, pattern); err != nil {
		return err
	}
	c.metrics.RecordDelete()
	return nil
}

// decodeSchema accepts the struct stored by an in-process cache or the raw
// JSON returned by Redis.
func decodeSchema(v interface{}) (*datasource.TableSchema, bool) {
	var raw []byte
	switch s := v.(type) {
	case datasource.TableSchema:
		return &s, true
	case *datasource.TableSchema:
		if s == nil {
			return nil, false
		}
		cp := *s
		return &cp, true
	case json.RawMessage:
		raw = s
	case []byte:
		raw = s
	default:
		return nil, false
	}

	var schema datasource.TableSchema
	if err := json.Unmarshal(raw, &schema); err != nil || schema.TableID == "" {
		return nil, false
	}
	return &schema, true
}
