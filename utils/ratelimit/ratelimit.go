package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Limiter defines the interface for rate limiting operations
type Limiter interface {
	// Allow checks if a request should be allowed based on rate limits
	// Returns true if allowed, false if rate limit exceeded
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)

	// AllowN checks if N requests should be allowed
	AllowN(ctx context.Context, key string, n int, limit int, window time.Duration) (bool, error)

	// Reset clears the counter of the current window for a key
	Reset(ctx context.Context, key string, window time.Duration) error

	// GetRemaining returns the number of remaining requests in the current window
	GetRemaining(ctx context.Context, key string, limit int, window time.Duration) (int, error)
}

// FixedWindowLimiter counts requests per key in fixed time windows stored in Redis.
// INCRBY and EXPIRE run in one pipeline so every server instance shares the counter.
type FixedWindowLimiter struct {
	redisClient *redis.Client
	logger      *zap.Logger
	fallback    bool // If true, allow requests when Redis is unavailable (fail-open)
	now         func() time.Time
}

// Option configures a FixedWindowLimiter
type Option func(*FixedWindowLimiter)

// WithClock replaces time.Now, used by tests to pin the window
func WithClock(now func() time.Time) Option {
	return func(l *FixedWindowLimiter) {
		l.now = now
	}
}

// NewFixedWindowLimiter creates a new Redis-backed rate limiter
//
// Parameters:
//   - redisClient: Redis client for storing rate limit state
//   - logger: Logger for recording rate limit events
//   - fallback: If true, allows requests when Redis fails (fail-open strategy)
func NewFixedWindowLimiter(redisClient *redis.Client, logger *zap.Logger, fallback bool, opts ...Option) *FixedWindowLimiter {
	l := &FixedWindowLimiter{
		redisClient: redisClient,
		logger:      logger,
		fallback:    fallback,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Allow checks if a single request should be allowed based on rate limits
//
// Parameters:
//   - key: Unique identifier for the bucket (e.g. "ip:127.0.0.1:create")
//   - limit: Maximum number of requests allowed in the time window
//   - window: Time window for the rate limit (e.g. 1 minute)
func (l *FixedWindowLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	return l.AllowN(ctx, key, 1, limit, window)
}

// AllowN consumes n units from the current window of key.
func (l *FixedWindowLimiter) AllowN(ctx context.Context, key string, n int, limit int, window time.Duration) (bool, error) {
	bucketKey := l.getBucketKey(key, window)

	pipe := l.redisClient.Pipeline()
	incrCmd := pipe.IncrBy(ctx, bucketKey, int64(n))
	pipe.Expire(ctx, bucketKey, window+time.Second) // Add 1 second buffer

	if _, err := pipe.Exec(ctx); err != nil {
		l.logger.Error("rate limit check failed",
			zap.String("key", bucketKey),
			zap.Error(err),
		)

		if l.fallback {
			l.logger.Warn("rate limit check failed, allowing request (fail-open)",
				zap.String("key", key),
			)
			return true, nil
		}
		return false, fmt.Errorf("rate limit check failed: %w", err)
	}

	count := incrCmd.Val()
	allowed := count <= int64(limit)
	if !allowed {
		l.logger.Warn("rate limit exceeded",
			zap.String("key", key),
			zap.Int64("count", count),
			zap.Int("limit", limit),
			zap.Duration("window", window),
		)
	}
	return allowed, nil
}

// Reset deletes the counter of the current window for key
func (l *FixedWindowLimiter) Reset(ctx context.Context, key string, window time.Duration) error {
	if err := l.redisClient.Del(ctx, l.getBucketKey(key, window)).Err(); err != nil {
		return fmt.Errorf("failed to reset rate limit for key %s: %w", key, err)
	}
	l.logger.Info("rate limit reset", zap.String("key", key))
	return nil
}

// GetRemaining returns the number of remaining requests in the current window (0 if exceeded)
func (l *FixedWindowLimiter) GetRemaining(ctx context.Context, key string, limit int, window time.Duration) (int, error) {
	count, err := l.redisClient.Get(ctx, l.getBucketKey(key, window)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return limit, nil
		}
		return 0, fmt.Errorf("failed to get remaining tokens: %w", err)
	}
	return max(limit-int(count), 0), nil
}

// RetryAfter returns how long until the current window of the given size ends
func (l *FixedWindowLimiter) RetryAfter(window time.Duration) time.Duration {
	seconds := max(int64(window/time.Second), 1)
	return time.Duration(seconds-l.now().Unix()%seconds) * time.Second
}

// getBucketKey names the counter of the window containing now
func (l *FixedWindowLimiter) getBucketKey(key string, window time.Duration) string {
	seconds := max(int64(window/time.Second), 1)
	return fmt.Sprintf("ratelimit:%s:%d", key, l.now().Unix()/seconds)
}

// RateLimitConfig holds the per-minute limits of each endpoint
type RateLimitConfig struct {
	CreatePerMinute int
	ListPerMinute   int
}

// RateLimitRule defines a rate limiting rule
type RateLimitRule struct {
	Limit  int
	Window time.Duration
}

// GetRuleForEndpoint returns the rate limit rule for an endpoint
func GetRuleForEndpoint(endpoint string, config *RateLimitConfig) RateLimitRule {
	switch endpoint {
	case "create":
		return RateLimitRule{Limit: config.CreatePerMinute, Window: time.Minute}
	case "list":
		return RateLimitRule{Limit: config.ListPerMinute, Window: time.Minute}
	default:
		// Default rule: 100 requests per minute
		return RateLimitRule{Limit: 100, Window: time.Minute}
	}
}

var _ Limiter = (*FixedWindowLimiter)(nil)
