package cache

import (
	"context"
	"path"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

// MemoryCache keeps entries in process with go-cache. It is used when Redis
// is not configured, so schema lookups are still cached per instance.
type MemoryCache struct {
	store  *gocache.Cache
	ttl    time.Duration
	logger *zap.Logger
}

// NewMemoryCache creates a store whose expired entries are purged every 2*ttl.
func NewMemoryCache(ttl time.Duration, logger *zap.Logger) *MemoryCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &MemoryCache{
		store:  gocache.New(ttl, 2*ttl),
		ttl:    ttl,
		logger: logger,
	}
}

func (m *MemoryCache) Get(ctx context.Context, key string) (interface{}, bool, error) {
	v, ok := m.store.Get(key)
	if ok {
		m.logger.Debug("Cache hit", zap.String("key", key))
	}
	return v, ok, nil
}

func (m *MemoryCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if ttl == 0 {
		ttl = m.ttl
	}
	m.store.Set(key, value, ttl)
	m.logger.Debug("Data cached", zap.String("key", key), zap.Duration("ttl", ttl))
	return nil
}

func (m *MemoryCache) Delete(ctx context.Context, key string) error {
	m.store.Delete(key)
	return nil
}

// Invalidate removes keys matching a path.Match glob, the same '*' and '?'
// syntax Redis SCAN MATCH accepts.
func (m *MemoryCache) Invalidate(ctx context.Context, pattern string) error {
	if _, err := path.Match(pattern, ""); err != nil {
		return err
	}

	deleted := 0
	for key := range m.store.Items() {
		if ok, _ := path.Match(pattern, key); ok {
			m.store.Delete(key)
			deleted++
		}
	}

	if deleted > 0 {
		m.logger.Info("Cache invalidated",
			zap.String("pattern", pattern),
			zap.Int("keys_deleted", deleted))
	}
	return nil
}

func (m *MemoryCache) GenerateKey(source, tableID string) string {
	return schemaKey(source, tableID)
}

func (m *MemoryCache) Stats(ctx context.Context) (map[string]interface{}, error) {
	return map[string]interface{}{
		"connected": true,
		"type":      "memory",
		"items":     len(m.store.Items()),
		"ttl":       m.ttl.String(),
	}, nil
}

func (m *MemoryCache) Close() error {
	m.store.Flush()
	return nil
}
