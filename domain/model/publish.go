package model

import "time"

// Platform identifies a supported social network.
type Platform string

const (
	PlatformTwitter   Platform = "twitter"
	PlatformLinkedIn  Platform = "linkedin"
	PlatformInstagram Platform = "instagram"
	PlatformThreads   Platform = "threads"
)

// SupportedPlatforms lists every platform a post can be published to.
var SupportedPlatforms = []Platform{PlatformTwitter, PlatformLinkedIn, PlatformInstagram, PlatformThreads}

// IsSupportedPlatform reports whether p is one of the four publishable platforms.
func IsSupportedPlatform(p Platform) bool {
	switch p {
	case PlatformTwitter, PlatformLinkedIn, PlatformInstagram, PlatformThreads:
		return true
	}
	return false
}

// Attempt lifecycle: pending -> publishing -> success | failed; failed may go
// retrying -> publishing up to MaxRetries times.
const (
	AttemptStatusPending    = "pending"
	AttemptStatusPublishing = "publishing"
	AttemptStatusSuccess    = "success"
	AttemptStatusFailed     = "failed"
	AttemptStatusRetrying   = "retrying"
)

// ResultStatusRateLimited marks a publish rejected by the quota check before
// any attempt row is written. It never appears on a PublishAttempt.
const ResultStatusRateLimited = "rate_limited"

// Error categories for normalized publish outcomes.
const (
	ErrCategoryValidation = "validation_error"
	ErrCategoryAuth       = "auth_error"
	ErrCategoryRateLimit  = "rate_limit_error"
	ErrCategoryPlatform   = "platform_error"
	ErrCategoryUnknown    = "unknown_error"
)

// DefaultMaxRetries is the automatic retry budget per attempt.
const DefaultMaxRetries = 3

// RetryDelays is the backoff schedule indexed by retry_count after increment:
// first retry after 1 minute, then 5, then 15.
var RetryDelays = []time.Duration{60 * time.Second, 300 * time.Second, 900 * time.Second}

// RetryableCategory reports whether a failed attempt in the given category may
// be retried automatically. Auth and validation failures require user action.
func RetryableCategory(category string) bool {
	switch category {
	case ErrCategoryPlatform, ErrCategoryRateLimit, ErrCategoryUnknown:
		return true
	}
	return false
}

// PublishAttempt is the durable record of one post x platform publish, upserted
// on resubmission and retained for audit.
type PublishAttempt struct {
	ID             int64      `json:"id"`
	PostID         int64      `json:"post_id"`
	UserID         string     `json:"user_id"`
	Platform       Platform   `json:"platform"`
	Content        string     `json:"content"`
	ContentHash    string     `json:"content_hash"`
	MediaURLs      []string   `json:"media_urls,omitempty"`
	Status         string     `json:"status"`
	PlatformPostID *string    `json:"platform_post_id,omitempty"`
	PlatformURL    *string    `json:"platform_url,omitempty"`
	ErrorCategory  *string    `json:"error_category,omitempty"`
	ErrorMessage   *string    `json:"error_message,omitempty"`
	ErrorDetails   *string    `json:"error_details,omitempty"`
	RetryCount     int        `json:"retry_count"`
	MaxRetries     int        `json:"max_retries"`
	NextRetryAt    *time.Time `json:"next_retry_at,omitempty"`
	StartedAt      *time.Time `json:"started_at,omitempty"`
	PublishedAt    *time.Time `json:"published_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// RateLimitWindow tracks publish quota per user x platform x endpoint.
type RateLimitWindow struct {
	UserID        string    `json:"user_id"`
	Platform      Platform  `json:"platform"`
	Endpoint      string    `json:"endpoint"`
	LimitMax      int       `json:"limit_max"`
	WindowSeconds int       `json:"window_seconds"`
	RequestsMade  int       `json:"requests_made"`
	WindowStart   time.Time `json:"window_start"`
	WindowEnd     time.Time `json:"window_end"`
}

// PublishResult is the normalized outcome of a single-platform publish call.
// Every publish returns one of these; platform exceptions never escape the
// orchestrator.
type PublishResult struct {
	Success        bool       `json:"success"`
	Status         string     `json:"status"`
	Platform       Platform   `json:"platform"`
	AttemptID      int64      `json:"attempt_id,omitempty"`
	PlatformPostID string     `json:"platform_post_id,omitempty"`
	PlatformURL    string     `json:"platform_url,omitempty"`
	Error          string     `json:"error,omitempty"`
	ErrorCategory  string     `json:"error_category,omitempty"`
	RetryScheduled bool       `json:"retry_scheduled"`
	NextRetryAt    *time.Time `json:"next_retry_at,omitempty"`
	ThreadCount    int        `json:"thread_count,omitempty"`
}

// MultiPublishSummary tallies a multi-platform publish.
type MultiPublishSummary struct {
	Total       int `json:"total"`
	Successful  int `json:"successful"`
	Failed      int `json:"failed"`
	RateLimited int `json:"rate_limited"`
}

// MultiPublishResult maps each requested platform to its independent outcome.
type MultiPublishResult struct {
	PostID  int64                       `json:"post_id"`
	Results map[Platform]*PublishResult `json:"results"`
	Summary MultiPublishSummary         `json:"summary"`
}
