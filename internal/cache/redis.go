package cache

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"go-query-gateway/internal/config"
)

const unlinkBatch = 100

// RedisCache shares schema entries between gateway instances. Values are
// stored as JSON and returned undecoded as json.RawMessage.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	addr   string
	logger *zap.Logger
}

// NewRedisCache connects and pings with a 5s budget. ttl is the default
// expiry for Set calls that pass zero.
func NewRedisCache(cfg config.RedisConfig, ttl time.Duration, logger *zap.Logger) (*RedisCache, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}

	if ttl <= 0 {
		ttl = 5 * time.Minute
	}

	logger.Info("Redis schema cache initialized",
		zap.String("addr", addr),
		zap.Int("db", cfg.DB),
		zap.Duration("ttl", ttl))

	return &RedisCache{
		client: client,
		ttl:    ttl,
		addr:   addr,
		logger: logger,
	}, nil
}

func (r *RedisCache) GenerateKey(source, tableID string) string {
	return schemaKey(source, tableID)
}

// Get returns the stored JSON as json.RawMessage
func (r *RedisCache) Get(ctx context.Context, key string) (interface{}, bool, error) {
	raw, err := r.client.Get(ctx, key).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return nil, false, nil
	case err != nil:
		r.logger.Warn("Redis get failed", zap.String("key", key), zap.Error(err))
		return nil, false, err
	}
	return json.RawMessage(raw), true, nil
}

func (r *RedisCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode cache entry %s: %w", key, err)
	}
	if ttl == 0 {
		ttl = r.ttl
	}
	if err := r.client.Set(ctx, key, raw, ttl).Err(); err != nil {
		r.logger.Warn("Redis set failed", zap.String("key", key), zap.Error(err))
		return err
	}
	return nil
}

func (r *RedisCache) Delete(ctx context.Context, key string) error {
	return r.client.Unlink(ctx, key).Err()
}

// Invalidate scans for pattern and unlinks matches in batches so a large
// keyspace is never held in memory at once.
func (r *RedisCache) Invalidate(ctx context.Context, pattern string) error {
	iter := r.client.Scan(ctx, 0, pattern, unlinkBatch).Iterator()
	batch := make([]string, 0, unlinkBatch)
	deleted := 0

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := r.client.Unlink(ctx, batch...).Result()
		if err != nil {
			return err
		}
		deleted += int(n)
		batch = batch[:0]
		return nil
	}

	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == unlinkBatch {
			if err := flush(); err != nil {
				return fmt.Errorf("invalidate %s: %w", pattern, err)
			}
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("scan %s: %w", pattern, err)
	}
	if err := flush(); err != nil {
		return fmt.Errorf("invalidate %s: %w", pattern, err)
	}

	if deleted > 0 {
		r.logger.Info("Cache invalidated",
			zap.String("pattern", pattern),
			zap.Int("keys_deleted", deleted))
	}
	return nil
}

// Stats reports the server-wide keyspace hit counters and the db size
func (r *RedisCache) Stats(ctx context.Context) (map[string]interface{}, error) {
	info, err := r.client.Info(ctx, "stats").Result()
	if err != nil {
		return nil, err
	}
	dbSize, err := r.client.DBSize(ctx).Result()
	if err != nil {
		return nil, err
	}

	counters := parseInfo(info)
	return map[string]interface{}{
		"connected":       true,
		"type":            "redis",
		"addr":            r.addr,
		"ttl":             r.ttl.String(),
		"db_size":         dbSize,
		"keyspace_hits":   counters["keyspace_hits"],
		"keyspace_misses": counters["keyspace_misses"],
		"evicted_keys":    counters["evicted_keys"],
		"expired_keys":    counters["expired_keys"],
	}, nil
}

func (r *RedisCache) Close() error {
	return r.client.Close()
}

// parseInfo reads the integer fields of an INFO section
func parseInfo(info string) map[string]int64 {
	out := make(map[string]int64)
	sc := bufio.NewScanner(strings.NewReader(info))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		name, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		if n, err := strconv.ParseInt(value, 10, 64); err == nil {
			out[name] = n
		}
	}
	return out
}
