package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const loginAttemptsKeyPrefix = "login-attempts::"

// RedisLimiter shares the login attempt windows between service instances.
type RedisLimiter struct {
	redisClient *redis.Client
	limit       int
	window      time.Duration
	now         func() time.Time
}

func NewRedisLimiter(redisClient *redis.Client, limit int, window time.Duration) *RedisLimiter {
	if limit <= 0 {
		limit = DefaultLoginAttemptsLimit
	}
	if window <= 0 {
		window = DefaultLoginWindow
	}
	return &RedisLimiter{
		redisClient: redisClient,
		limit:       limit,
		window:      window,
		now:         time.Now,
	}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (Attempt, error) {
	redisKey := loginAttemptsKeyPrefix + key

	count, err := l.redisClient.Incr(ctx, redisKey).Result()
	if err != nil {
		return Attempt{}, fmt.Errorf("%w: incr login attempts: %s", ErrUpstreamUnavailable, err)
	}
	if count == 1 {
		if err := l.redisClient.PExpire(ctx, redisKey, l.window).Err(); err != nil {
			return Attempt{}, fmt.Errorf("%w: expire login attempts: %s", ErrUpstreamUnavailable, err)
		}
	}

	ttl, err := l.redisClient.PTTL(ctx, redisKey).Result()
	if err != nil {
		return Attempt{}, fmt.Errorf("%w: ttl login attempts: %s", ErrUpstreamUnavailable, err)
	}
	if ttl < 0 {
		// key left without expiry, window restarts now
		ttl = l.window
		if err := l.redisClient.PExpire(ctx, redisKey, ttl).Err(); err != nil {
			return Attempt{}, fmt.Errorf("%w: expire login attempts: %s", ErrUpstreamUnavailable, err)
		}
	}

	resetAt := l.now().Add(ttl)
	if int(count) > l.limit {
		return Attempt{Allowed: false, Count: l.limit, ResetAt: resetAt}, nil
	}
	return Attempt{Allowed: true, Count: int(count), ResetAt: resetAt}, nil
}

func (l *RedisLimiter) Reset(ctx context.Context, key string) error {
	if err := l.redisClient.Del(ctx, loginAttemptsKeyPrefix+key).Err(); err != nil {
		return fmt.Errorf("%w: reset login attempts: %s", ErrUpstreamUnavailable, err)
	}
	return nil
}
