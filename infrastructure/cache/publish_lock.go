package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"newshub/domain/model"
)

// PublishLock serializes publishes for the same post x platform via SETNX so
// concurrent retries cannot produce duplicate live posts.
type PublishLock struct {
	client *redis.Client
}

func NewPublishLock(client *redis.Client) *PublishLock {
	return &PublishLock{client: client}
}

func lockKey(postID int64, platform model.Platform) string {
	return fmt.Sprintf("publish:lock:%d:%s", postID, platform)
}

func (l *PublishLock) Acquire(ctx context.Context, postID int64, platform model.Platform, ttl time.Duration) (bool, error) {
	return l.client.SetNX(ctx, lockKey(postID, platform), 1, ttl).Result()
}

func (l *PublishLock) Release(ctx context.Context, postID int64, platform model.Platform) error {
	return l.client.Del(ctx, lockKey(postID, platform)).Err()
}
