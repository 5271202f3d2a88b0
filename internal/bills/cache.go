package bills

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	cachePrefix      = "onebills:catalog:"
	categoriesKey    = "bill-categories"
	providersKeyBase = "service-providers:"
	withProvidersKey = "bill-categories:with-providers"
)

// Cache keeps catalog reads in Redis. Every failure is logged and treated as
// a miss so the repository stays the source of truth.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewCache builds a catalog cache with the given entry lifetime.
func NewCache(client *redis.Client, ttl time.Duration, logger *slog.Logger) *Cache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{client: client, ttl: ttl, logger: logger}
}

func providersKey(categoryID string) string {
	if categoryID == "" {
		return providersKeyBase + "all"
	}
	return providersKeyBase + categoryID
}

func (c *Cache) get(ctx context.Context, key string, dst any) bool {
	if c == nil {
		return false
	}
	payload, err := c.client.Get(ctx, cachePrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false
	}
	if err != nil {
		c.logger.Warn("bills.cache_read_failed", slog.String("key", key), slog.Any("error", err))
		return false
	}
	if err := json.Unmarshal(payload, dst); err != nil {
		c.logger.Warn("bills.cache_decode_failed", slog.String("key", key), slog.Any("error", err))
		return false
	}
	return true
}

func (c *Cache) set(ctx context.Context, key string, value any) {
	if c == nil {
		return
	}
	payload, err := json.Marshal(value)
	if err != nil {
		c.logger.Warn("bills.cache_encode_failed", slog.String("key", key), slog.Any("error", err))
		return
	}
	if err := c.client.Set(ctx, cachePrefix+key, payload, c.ttl).Err(); err != nil {
		c.logger.Warn("bills.cache_write_failed", slog.String("key", key), slog.Any("error", err))
	}
}

// Invalidate drops every cached catalog entry.
func (c *Cache) Invalidate(ctx context.Context) error {
	if c == nil {
		return nil
	}
	iter := c.client.Scan(ctx, 0, cachePrefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("scan catalog cache: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}
