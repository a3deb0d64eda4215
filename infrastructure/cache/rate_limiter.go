package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"newshub/domain/model"
)

// RateLimiter is the Redis-backed publishing rate limiter: a counter per
// user x platform that expires with the window. INCR is atomic, so concurrent
// publish bursts cannot lose updates.
type RateLimiter struct {
	client   *redis.Client
	limitMax int
	window   time.Duration
}

func NewRateLimiter(client *redis.Client, limitMax int, window time.Duration) *RateLimiter {
	return &RateLimiter{client: client, limitMax: limitMax, window: window}
}

func rateLimitKey(userID string, platform model.Platform) string {
	return fmt.Sprintf("publish:ratelimit:%s:%s", userID, platform)
}

func (rl *RateLimiter) Check(ctx context.Context, userID string, platform model.Platform) (bool, time.Time, error) {
	key := rateLimitKey(userID, platform)
	made, err := rl.client.Get(ctx, key).Int()
	if err == redis.Nil {
		return true, time.Now().UTC().Add(rl.window), nil
	}
	if err != nil {
		return false, time.Time{}, err
	}
	ttl, err := rl.client.TTL(ctx, key).Result()
	if err != nil {
		return false, time.Time{}, err
	}
	if ttl < 0 {
		ttl = rl.window
	}
	return made < rl.limitMax, time.Now().UTC().Add(ttl), nil
}

// Increment consumes one unit of quota. The first increment of a window stamps
// the expiry; later increments leave it untouched so the window slides by
// reset timestamp, not by request.
func (rl *RateLimiter) Increment(ctx context.Context, userID string, platform model.Platform) error {
	key := rateLimitKey(userID, platform)
	n, err := rl.client.Incr(ctx, key).Result()
	if err != nil {
		return err
	}
	if n == 1 {
		return rl.client.Expire(ctx, key, rl.window).Err()
	}
	return nil
}
