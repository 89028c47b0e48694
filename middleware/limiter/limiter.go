// Package limiter provides rate limiting middleware, either in-process
// via a token bucket or shared across processes via Redis.
package limiter

import (
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/sweetpotato0/chatflow/config"
	"github.com/sweetpotato0/chatflow/middleware"
)

var (
	// ErrRateLimitExceeded indicates rate limit has been exceeded
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
)

// RateLimiter throttles conversation turns with an in-process token
// bucket allowing maxRequests per second with an equal burst.
type RateLimiter struct {
	limiter *rate.Limiter
}

// NewRateLimiter creates a rate limiting middleware
func NewRateLimiter(maxRequests int) (*RateLimiter, error) {
	if err := config.ValidateRateLimiterConfig(maxRequests); err != nil {
		return nil, err
	}
	return &RateLimiter{
		limiter: rate.NewLimiter(rate.Limit(maxRequests), maxRequests),
	}, nil
}

// Name returns the middleware name
func (m *RateLimiter) Name() string {
	return "RateLimiter"
}

// Execute checks rate limit
func (m *RateLimiter) Execute(ctx *middleware.Context, next middleware.Handler) error {
	if !m.limiter.Allow() {
		return ErrRateLimitExceeded
	}
	return next(ctx)
}

// RedisConfig holds the Redis connection settings for the shared limiter.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// RedisLimiter throttles conversation turns across processes using a
// fixed window counter in Redis.
type RedisLimiter struct {
	client *redis.Client
	prefix string
	max    int
	window time.Duration
}

// NewRedisLimiter creates a shared rate limiting middleware allowing
// maxRequests per window.
func NewRedisLimiter(cfg *RedisConfig, maxRequests int, window time.Duration) (*RedisLimiter, error) {
	if cfg == nil {
		cfg = &RedisConfig{Addr: "localhost:6379", Prefix: "chatflow"}
	}
	if err := config.ValidateRedisConfig(cfg.Addr, cfg.DB, cfg.Prefix); err != nil {
		return nil, err
	}
	if err := config.ValidateRateLimiterConfig(maxRequests); err != nil {
		return nil, err
	}
	if window < time.Second {
		window = time.Minute
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	return &RedisLimiter{
		client: client,
		prefix: cfg.Prefix,
		max:    maxRequests,
		window: window,
	}, nil
}

// Name returns the middleware name
func (m *RedisLimiter) Name() string {
	return "RedisLimiter"
}

// Execute checks the shared rate limit
func (m *RedisLimiter) Execute(ctx *middleware.Context, next middleware.Handler) error {
	key := m.windowKey(time.Now())

	count, err := m.client.Incr(ctx.Context(), key).Result()
	if err != nil {
		return fmt.Errorf("rate limit check failed: %w", err)
	}
	if count == 1 {
		// First hit in this window owns the expiry.
		if err := m.client.Expire(ctx.Context(), key, m.window).Err(); err != nil {
			return fmt.Errorf("rate limit expire failed: %w", err)
		}
	}
	if count > int64(m.max) {
		return ErrRateLimitExceeded
	}
	return next(ctx)
}

// Close closes the underlying Redis client.
func (m *RedisLimiter) Close() error {
	return m.client.Close()
}

// Ping checks if the Redis connection is alive.
func (m *RedisLimiter) Ping(ctx *middleware.Context) error {
	return m.client.Ping(ctx.Context()).Err()
}

func (m *RedisLimiter) windowKey(now time.Time) string {
	bucket := now.Unix() / int64(m.window/time.Second)
	return fmt.Sprintf("%s:ratelimit:%d", m.prefix, bucket)
}
