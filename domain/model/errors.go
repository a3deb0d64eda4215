package model

import (
	"errors"
	"fmt"
	"time"
)

// ValidationError indicates the content failed pre-flight checks before any
// network call. Never retried; the caller must fix the content.
type ValidationError struct {
	Platform Platform
	Message  string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s validation error: %s", e.Platform, e.Message)
}

// AuthError indicates the platform rejected our credentials. Never retried
// automatically; the user must reconnect the account.
type AuthError struct {
	Platform Platform
	Message  string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s auth error: %s", e.Platform, e.Message)
}

// RateLimitError indicates the platform itself throttled the request. RetryAfter
// carries the platform-provided hint when available.
type RateLimitError struct {
	Platform   Platform
	Message    string
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%s rate limited: %s", e.Platform, e.Message)
}

// PlatformError is a generic platform-side publish failure (5xx, content policy,
// quota). Retryable.
type PlatformError struct {
	Platform   Platform
	StatusCode int
	Message    string
}

func (e *PlatformError) Error() string {
	return fmt.Sprintf("%s platform error (status %d): %s", e.Platform, e.StatusCode, e.Message)
}

// CategorizeError maps a publisher error onto the normalized error taxonomy.
func CategorizeError(err error) string {
	var valErr *ValidationError
	var authErr *AuthError
	var rlErr *RateLimitError
	var pfErr *PlatformError
	switch {
	case errors.As(err, &valErr):
		return ErrCategoryValidation
	case errors.As(err, &authErr):
		return ErrCategoryAuth
	case errors.As(err, &rlErr):
		return ErrCategoryRateLimit
	case errors.As(err, &pfErr):
		return ErrCategoryPlatform
	default:
		return ErrCategoryUnknown
	}
}

// ErrPublishInProgress is returned when a concurrent publish for the same
// post x platform already holds the serialization lock.
var ErrPublishInProgress = errors.New("publish already in progress for this post and platform")

// ErrUnsupportedPlatform is a caller input error, not persisted as history.
var ErrUnsupportedPlatform = errors.New("unsupported platform")
