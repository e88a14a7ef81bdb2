package llm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/reasonloop/reasonloop/internal/config"
	"github.com/reasonloop/reasonloop/internal/metrics"
)

// Cache stores model completions in Redis, keyed by (model, prompt) digest.
// Cache failures are soft: a Redis error is a miss on read and a no-op on
// write, so a flaky cache can never fail a query.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewCache connects to Redis and verifies the connection. A connection
// failure is reported to the caller; whether that is fatal is the caller's
// policy (main treats it as a configuration error when caching is enabled).
func NewCache(cfg config.CacheConfig, logger *zap.Logger) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Cache{client: client, ttl: ttl, logger: logger}, nil
}

// Close releases the underlying Redis connection.
func (c *Cache) Close() error {
	return c.client.Close()
}

func cacheKey(modelID, prompt string) string {
	sum := sha256.Sum256([]byte(modelID + "\x00" + prompt))
	return "completion:" + hex.EncodeToString(sum[:])
}

// Get returns a cached completion and whether it was present.
func (c *Cache) Get(ctx context.Context, modelID, prompt string) (string, bool) {
	text, err := c.client.Get(ctx, cacheKey(modelID, prompt)).Result()
	if err == redis.Nil {
		metrics.CacheMisses.Inc()
		return "", false
	}
	if err != nil {
		metrics.CacheMisses.Inc()
		c.logger.Warn("Cache read failed", zap.Error(err))
		return "", false
	}
	metrics.CacheHits.Inc()
	return text, true
}

// Put stores a completion. Errors are logged and dropped.
func (c *Cache) Put(ctx context.Context, modelID, prompt, text string) {
	if err := c.client.Set(ctx, cacheKey(modelID, prompt), text, c.ttl).Err(); err != nil {
		c.logger.Warn("Cache write failed", zap.Error(err))
	}
}
