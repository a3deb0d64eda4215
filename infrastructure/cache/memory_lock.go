package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"newshub/domain/model"
)

// MemoryLock is the single-process fallback for IPublishLock used when Redis
// is unavailable. It does not serialize publishes across replicas.
type MemoryLock struct {
	mu    sync.Mutex
	locks map[string]time.Time
}

func NewMemoryLock() *MemoryLock {
	return &MemoryLock{locks: make(map[string]time.Time)}
}

func (l *MemoryLock) key(postID int64, platform model.Platform) string {
	return fmt.Sprintf("%d:%s", postID, platform)
}

func (l *MemoryLock) Acquire(_ context.Context, postID int64, platform model.Platform, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	key := l.key(postID, platform)
	if expiry, held := l.locks[key]; held && time.Now().Before(expiry) {
		return false, nil
	}
	l.locks[key] = time.Now().Add(ttl)
	return true, nil
}

func (l *MemoryLock) Release(_ context.Context, postID int64, platform model.Platform) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.locks, l.key(postID, platform))
	return nil
}
