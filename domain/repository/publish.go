package repository

import (
	"context"
	"time"

	"newshub/domain/model"
)

// IPublishHistory persists publish attempts. One row per post x platform,
// upserted on resubmission; rows are never deleted by this subsystem.
type IPublishHistory interface {
	// Upsert creates or resets the attempt for post x platform and returns the
	// current row. Status is set to publishing and started_at stamped.
	Upsert(ctx context.Context, attempt *model.PublishAttempt) (*model.PublishAttempt, error)
	GetByID(ctx context.Context, attemptID int64, userID string) (*model.PublishAttempt, error)
	List(ctx context.Context, userID string, platform, status string, postID int64, limit, offset int) ([]*model.PublishAttempt, int64, error)
	MarkSuccess(ctx context.Context, attemptID int64, platformPostID, platformURL string, publishedAt time.Time) error
	MarkFailed(ctx context.Context, attemptID int64, category, message string, details *string) error
	// ScheduleRetry moves the attempt to retrying, increments retry_count and
	// stamps next_retry_at.
	ScheduleRetry(ctx context.Context, attemptID int64, category, message string, nextRetryAt time.Time) error
	// MarkRetrying consumes one manual retry: increments retry_count, moves the
	// attempt to retrying and clears next_retry_at.
	MarkRetrying(ctx context.Context, attemptID int64) error
	// FetchDueRetries returns attempts in retrying state whose next_retry_at has
	// passed, oldest first.
	FetchDueRetries(ctx context.Context, now time.Time, limit int) ([]*model.PublishAttempt, error)
}

// IRateLimiter is the publishing-specific sliding-window limiter, independent
// from any authentication-layer limiter.
type IRateLimiter interface {
	// Check reports whether the user may publish to the platform right now and
	// when the current window resets.
	Check(ctx context.Context, userID string, platform model.Platform) (allowed bool, resetAt time.Time, err error)
	// Increment consumes one unit of quota. Must be atomic under concurrent
	// publishes for the same user+platform.
	Increment(ctx context.Context, userID string, platform model.Platform) error
}

// IPublishLock serializes concurrent publishes for the same post x platform so
// duplicate live posts cannot be produced by racing retries.
type IPublishLock interface {
	// Acquire returns false when another publish currently holds the lock.
	Acquire(ctx context.Context, postID int64, platform model.Platform, ttl time.Duration) (bool, error)
	Release(ctx context.Context, postID int64, platform model.Platform) error
}

// IPublishArchive stores raw platform API payloads for failed attempts
// (structured error_details beyond the relational row). Optional collaborator;
// a nil archive disables archiving.
type IPublishArchive interface {
	ArchiveOutcome(ctx context.Context, attemptID int64, platform model.Platform, payload map[string]interface{}) error
}
