package auth

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// Limiter decides whether another attempt for key is allowed.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// RedisLimiter counts attempts per key in fixed windows.
type RedisLimiter struct {
	client *redis.Client
	max    int
	window time.Duration
}

// NewRedisLimiter allows max attempts per key per window.
func NewRedisLimiter(client *redis.Client, max int, window time.Duration) *RedisLimiter {
	if max <= 0 {
		max = 5
	}
	if window <= 0 {
		window = time.Minute
	}
	return &RedisLimiter{client: client, max: max, window: window}
}

// Allow increments the counter for key. Cache failures fail open.
func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	k := "onebills:rl:" + key
	cnt, err := l.client.Incr(ctx, k).Result()
	if err != nil {
		return true, err
	}
	if cnt == 1 {
		l.client.Expire(ctx, k, l.window)
	}
	return cnt <= int64(l.max), nil
}

// MemoryLimiter is a token bucket per key, for single-process setups.
type MemoryLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	every    rate.Limit
	burst    int
}

// NewMemoryLimiter allows burst attempts per key, refilled evenly over window.
func NewMemoryLimiter(burst int, window time.Duration) *MemoryLimiter {
	if burst <= 0 {
		burst = 5
	}
	if window <= 0 {
		window = time.Minute
	}
	return &MemoryLimiter{
		limiters: make(map[string]*rate.Limiter),
		every:    rate.Every(window / time.Duration(burst)),
		burst:    burst,
	}
}

// Allow consumes a token for key.
func (l *MemoryLimiter) Allow(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	lim, ok := l.limiters[key]
	if !ok {
		lim = rate.NewLimiter(l.every, l.burst)
		l.limiters[key] = lim
	}
	l.mu.Unlock()
	return lim.Allow(), nil
}
