package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"newshub/domain/dto"
	"newshub/domain/model"
	"newshub/domain/repository"
	"newshub/infrastructure/logger"
	"newshub/infrastructure/pubsub"
	"newshub/infrastructure/realtime"
	"newshub/infrastructure/servicebus"
	"newshub/infrastructure/utils"
)

// publishLockTTL covers the slowest publish path (Instagram container polling)
// with headroom.
const publishLockTTL = 3 * time.Minute

var (
	ErrPostNotFound         = errors.New("post not found")
	ErrAttemptNotFound      = errors.New("publish attempt not found")
	ErrNotRetryable         = errors.New("attempt is not in a retryable state")
	ErrPostStoreUnavailable = errors.New("post store unavailable")
)

type IPublishUsecase interface {
	PublishToPlatform(ctx context.Context, userID string, postID int64, platform model.Platform, req dto.SinglePublishRequest) *model.PublishResult
	PublishToMultiple(ctx context.Context, userID string, postID int64, req dto.PublishRequest) (*model.MultiPublishResult, error)
	RetryPublish(ctx context.Context, userID string, attemptID int64) (*model.PublishResult, error)
	ProcessDueRetries(ctx context.Context, batchSize int) error
	GetHistory(ctx context.Context, userID string, q dto.HistoryQuery) (*dto.HistoryPage, error)
	GetStatus(ctx context.Context, userID string, attemptID int64) (*model.PublishAttempt, error)
}

type publishUsecase struct {
	history    repository.IPublishHistory
	limiter    repository.IRateLimiter
	lock       repository.IPublishLock
	postRepo   repository.IPost
	connMgr    repository.IConnectionManager
	publishers map[model.Platform]repository.IPlatformPublisher
	archive    repository.IPublishArchive
	hub        *realtime.Hub
	events     pubsub.IPublishEvents
	alerts     servicebus.IAlertSender
}

// NewPublishUsecase wires the orchestrator. archive, hub, events and alerts may
// be nil; the corresponding side effects are skipped.
func NewPublishUsecase(
	history repository.IPublishHistory,
	limiter repository.IRateLimiter,
	lock repository.IPublishLock,
	postRepo repository.IPost,
	connMgr repository.IConnectionManager,
	publishers map[model.Platform]repository.IPlatformPublisher,
	archive repository.IPublishArchive,
	hub *realtime.Hub,
	events pubsub.IPublishEvents,
	alerts servicebus.IAlertSender,
) IPublishUsecase {
	return &publishUsecase{
		history:    history,
		limiter:    limiter,
		lock:       lock,
		postRepo:   postRepo,
		connMgr:    connMgr,
		publishers: publishers,
		archive:    archive,
		hub:        hub,
		events:     events,
		alerts:     alerts,
	}
}

// PublishToPlatform runs the full pipeline for one post x platform. It never
// returns an error; every outcome is a normalized PublishResult.
func (u *publishUsecase) PublishToPlatform(ctx context.Context, userID string, postID int64, platform model.Platform, req dto.SinglePublishRequest) *model.PublishResult {
	if !model.IsSupportedPlatform(platform) {
		return failResult(platform, model.ErrCategoryValidation, model.ErrUnsupportedPlatform.Error())
	}
	if u.postRepo == nil {
		return failResult(platform, model.ErrCategoryUnknown, ErrPostStoreUnavailable.Error())
	}

	// Quota is checked before any attempt row exists; a rejected publish
	// leaves no history.
	allowed, resetAt, err := u.limiter.Check(ctx, userID, platform)
	if err != nil {
		logger.GetLogger().WithField("error", err).Error("Error while checking rate limit")
		return failResult(platform, model.ErrCategoryUnknown, "rate limit check failed")
	}
	if !allowed {
		return rateLimitedResult(platform, resetAt)
	}

	post, err := u.postRepo.GetForUser(ctx, postID, userID)
	if err != nil {
		logger.GetLogger().WithField("error", err).Error("Error while loading post")
		return failResult(platform, model.ErrCategoryUnknown, "could not load post")
	}
	if post == nil {
		return failResult(platform, model.ErrCategoryValidation, ErrPostNotFound.Error())
	}

	content := req.Content
	if content == "" {
		content = post.ContentFor(platform)
	}
	mediaURLs := req.MediaURLs
	if len(mediaURLs) == 0 {
		mediaURLs = post.MediaFor(platform)
	}

	acquired, err := u.lock.Acquire(ctx, postID, platform, publishLockTTL)
	if err != nil {
		logger.GetLogger().WithField("error", err).Error("Error while acquiring publish lock")
		return failResult(platform, model.ErrCategoryUnknown, "could not acquire publish lock")
	}
	if !acquired {
		return failResult(platform, model.ErrCategoryValidation, model.ErrPublishInProgress.Error())
	}
	defer func() {
		if err := u.lock.Release(context.WithoutCancel(ctx), postID, platform); err != nil {
			logger.GetLogger().WithField("error", err).Error("Error while releasing publish lock")
		}
	}()

	attempt, err := u.history.Upsert(ctx, &model.PublishAttempt{
		PostID:      postID,
		UserID:      userID,
		Platform:    platform,
		Content:     content,
		ContentHash: utils.ContentHash(content),
		MediaURLs:   mediaURLs,
		Status:      model.AttemptStatusPending,
		MaxRetries:  model.DefaultMaxRetries,
	})
	if err != nil {
		logger.GetLogger().WithField("error", err).Error("Error while upserting publish attempt")
		return failResult(platform, model.ErrCategoryUnknown, "could not record publish attempt")
	}

	// Validation runs after the upsert so a rejected publish is still part of
	// the attempt history.
	if err := ValidateContent(platform, content, mediaURLs); err != nil {
		return u.handleFailure(ctx, attempt, err)
	}

	return u.dispatch(ctx, attempt)
}

// dispatch resolves credentials, consumes quota and calls the platform
// publisher. Shared by first-time publishes and retries.
func (u *publishUsecase) dispatch(ctx context.Context, attempt *model.PublishAttempt) *model.PublishResult {
	conn, err := u.connMgr.GetConnection(ctx, attempt.UserID, attempt.Platform, true)
	if err != nil {
		if errors.Is(err, ErrNotConnected) {
			return u.handleFailure(ctx, attempt, &model.AuthError{Platform: attempt.Platform, Message: "platform not connected"})
		}
		return u.handleFailure(ctx, attempt, err)
	}
	creds, err := u.connMgr.GetDecryptedCredentials(conn)
	if err != nil {
		return u.handleFailure(ctx, attempt, &model.AuthError{Platform: attempt.Platform, Message: err.Error()})
	}

	publisher, ok := u.publishers[attempt.Platform]
	if !ok {
		return u.handleFailure(ctx, attempt, &model.ValidationError{Platform: attempt.Platform, Message: "no publisher registered"})
	}

	// Quota is consumed only once the publish actually goes to the network.
	if err := u.limiter.Increment(ctx, attempt.UserID, attempt.Platform); err != nil {
		logger.GetLogger().WithField("error", err).Error("Error while incrementing rate limit")
	}

	output, err := publisher.Publish(ctx, attempt.Content, creds, attempt.MediaURLs)
	if err != nil {
		return u.handleFailure(ctx, attempt, err)
	}
	return u.handleSuccess(ctx, attempt, output)
}

func (u *publishUsecase) handleSuccess(ctx context.Context, attempt *model.PublishAttempt, output *repository.PublishOutput) *model.PublishResult {
	publishedAt := utils.GetCurrentTime()
	if err := u.history.MarkSuccess(ctx, attempt.ID, output.PlatformPostID, output.PlatformURL, publishedAt); err != nil {
		logger.GetLogger().WithField("error", err).Error("Error while marking attempt success")
	}

	attempt.Status = model.AttemptStatusSuccess
	attempt.PlatformPostID = &output.PlatformPostID
	attempt.PlatformURL = &output.PlatformURL
	attempt.PublishedAt = &publishedAt
	u.notify(ctx, attempt)

	logger.GetLogger().
		WithField("attempt_id", attempt.ID).
		WithField("platform", attempt.Platform).
		WithField("platform_post_id", output.PlatformPostID).
		Info("Publish succeeded")

	return &model.PublishResult{
		Success:        true,
		Status:         model.AttemptStatusSuccess,
		Platform:       attempt.Platform,
		AttemptID:      attempt.ID,
		PlatformPostID: output.PlatformPostID,
		PlatformURL:    output.PlatformURL,
		ThreadCount:    output.ThreadCount,
	}
}

// handleFailure categorizes the error, schedules a retry when the category and
// budget allow, and marks the attempt failed otherwise.
func (u *publishUsecase) handleFailure(ctx context.Context, attempt *model.PublishAttempt, cause error) *model.PublishResult {
	category := model.CategorizeError(cause)
	message := cause.Error()

	result := &model.PublishResult{
		Success:       false,
		Platform:      attempt.Platform,
		AttemptID:     attempt.ID,
		Error:         message,
		ErrorCategory: category,
	}

	if model.RetryableCategory(category) && attempt.RetryCount < attempt.MaxRetries {
		nextRetryAt := utils.GetCurrentTime().Add(u.retryDelay(attempt, cause))
		if err := u.history.ScheduleRetry(ctx, attempt.ID, category, message, nextRetryAt); err != nil {
			logger.GetLogger().WithField("error", err).Error("Error while scheduling retry")
		}
		attempt.Status = model.AttemptStatusRetrying
		attempt.RetryCount++
		attempt.ErrorCategory = &category
		attempt.ErrorMessage = &message
		attempt.NextRetryAt = &nextRetryAt

		result.Status = model.AttemptStatusRetrying
		result.RetryScheduled = true
		result.NextRetryAt = &nextRetryAt
	} else {
		if err := u.history.MarkFailed(ctx, attempt.ID, category, message, nil); err != nil {
			logger.GetLogger().WithField("error", err).Error("Error while marking attempt failed")
		}
		attempt.Status = model.AttemptStatusFailed
		attempt.ErrorCategory = &category
		attempt.ErrorMessage = &message

		result.Status = model.AttemptStatusFailed
		u.alert(attempt)
	}

	u.archiveFailure(ctx, attempt, cause)
	u.notify(ctx, attempt)

	logger.GetLogger().
		WithField("attempt_id", attempt.ID).
		WithField("platform", attempt.Platform).
		WithField("category", category).
		WithField("retry_scheduled", result.RetryScheduled).
		Error("Publish failed")

	return result
}

// retryDelay picks the backoff for the upcoming retry. Rate limit errors honor
// the platform's reset hint when it exceeds the schedule.
func (u *publishUsecase) retryDelay(attempt *model.PublishAttempt, cause error) time.Duration {
	idx := attempt.RetryCount
	if idx >= len(model.RetryDelays) {
		idx = len(model.RetryDelays) - 1
	}
	delay := model.RetryDelays[idx]

	var rlErr *model.RateLimitError
	if errors.As(cause, &rlErr) && rlErr.RetryAfter > delay {
		delay = rlErr.RetryAfter
	}
	return delay
}

func (u *publishUsecase) archiveFailure(ctx context.Context, attempt *model.PublishAttempt, cause error) {
	if u.archive == nil {
		return
	}
	payload := map[string]interface{}{
		"attempt_id":  attempt.ID,
		"post_id":     attempt.PostID,
		"user_id":     attempt.UserID,
		"status":      attempt.Status,
		"retry_count": attempt.RetryCount,
		"error":       cause.Error(),
	}
	var pfErr *model.PlatformError
	if errors.As(cause, &pfErr) {
		payload["status_code"] = pfErr.StatusCode
		if raw := json.RawMessage(pfErr.Message); json.Valid(raw) {
			payload["platform_response"] = raw
		}
	}
	if err := u.archive.ArchiveOutcome(ctx, attempt.ID, attempt.Platform, payload); err != nil {
		logger.GetLogger().WithField("error", err).Error("Error while archiving publish outcome")
	}
}

func (u *publishUsecase) notify(ctx context.Context, attempt *model.PublishAttempt) {
	if u.hub != nil {
		u.hub.BroadcastPublishStatus(attempt)
	}
	if u.events != nil && attempt.Status != model.AttemptStatusRetrying {
		if _, err := u.events.PublishOutcome(ctx, attempt); err != nil {
			logger.GetLogger().WithField("error", err).Error("Error while emitting outcome event")
		}
	}
}

func (u *publishUsecase) alert(attempt *model.PublishAttempt) {
	if u.alerts == nil {
		return
	}
	if err := u.alerts.SendFailureAlert(attempt); err != nil {
		logger.GetLogger().WithField("error", err).Error("Error while sending failure alert")
	}
}

// PublishToMultiple fans out to the requested platforms concurrently. Each
// platform succeeds or fails independently.
func (u *publishUsecase) PublishToMultiple(ctx context.Context, userID string, postID int64, req dto.PublishRequest) (*model.MultiPublishResult, error) {
	if len(req.Platforms) == 0 {
		return nil, errors.New("platforms required")
	}
	if u.postRepo == nil {
		return nil, ErrPostStoreUnavailable
	}
	post, err := u.postRepo.GetForUser(ctx, postID, userID)
	if err != nil {
		return nil, err
	}
	if post == nil {
		return nil, ErrPostNotFound
	}

	platforms := make([]model.Platform, 0, len(req.Platforms))
	seen := make(map[model.Platform]struct{}, len(req.Platforms))
	for _, p := range req.Platforms {
		platform := model.Platform(p)
		if !model.IsSupportedPlatform(platform) {
			return nil, fmt.Errorf("%w: %s", model.ErrUnsupportedPlatform, p)
		}
		if _, dup := seen[platform]; dup {
			continue
		}
		seen[platform] = struct{}{}
		platforms = append(platforms, platform)
	}

	results := make(map[model.Platform]*model.PublishResult, len(platforms))
	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, platform := range platforms {
		content := req.ContentMap[string(platform)]
		if content == "" {
			content = post.ContentFor(platform)
		}
		// A platform with no resolvable content is skipped, not failed.
		if content == "" && len(post.MediaFor(platform)) == 0 {
			logger.GetLogger().
				WithField("post_id", postID).
				WithField("platform", platform).
				Info("Skipping platform with no content")
			continue
		}
		wg.Add(1)
		go func(platform model.Platform, content string) {
			defer wg.Done()
			res := u.PublishToPlatform(ctx, userID, postID, platform, dto.SinglePublishRequest{Content: content})
			mu.Lock()
			results[platform] = res
			mu.Unlock()
		}(platform, content)
	}
	wg.Wait()

	summary := model.MultiPublishSummary{Total: len(results)}
	for _, res := range results {
		if res.Success {
			summary.Successful++
			continue
		}
		summary.Failed++
		if res.ErrorCategory == model.ErrCategoryRateLimit {
			summary.RateLimited++
		}
	}
	return &model.MultiPublishResult{PostID: postID, Results: results, Summary: summary}, nil
}

// RetryPublish re-runs a failed or retrying attempt on demand. A manual retry
// bypasses next_retry_at but still consumes the retry budget.
func (u *publishUsecase) RetryPublish(ctx context.Context, userID string, attemptID int64) (*model.PublishResult, error) {
	attempt, err := u.history.GetByID(ctx, attemptID, userID)
	if err != nil {
		return nil, err
	}
	if attempt == nil {
		return nil, ErrAttemptNotFound
	}
	if attempt.Status != model.AttemptStatusFailed && attempt.Status != model.AttemptStatusRetrying {
		return nil, ErrNotRetryable
	}
	if attempt.RetryCount >= attempt.MaxRetries {
		return nil, ErrNotRetryable
	}

	if err := u.history.MarkRetrying(ctx, attempt.ID); err != nil {
		logger.GetLogger().WithField("error", err).Error("Error while consuming manual retry")
		return nil, err
	}
	attempt.Status = model.AttemptStatusRetrying
	attempt.RetryCount++
	attempt.NextRetryAt = nil

	return u.retryAttempt(ctx, attempt), nil
}

func (u *publishUsecase) retryAttempt(ctx context.Context, attempt *model.PublishAttempt) *model.PublishResult {
	acquired, err := u.lock.Acquire(ctx, attempt.PostID, attempt.Platform, publishLockTTL)
	if err != nil {
		logger.GetLogger().WithField("error", err).Error("Error while acquiring publish lock")
		return failResult(attempt.Platform, model.ErrCategoryUnknown, "could not acquire publish lock")
	}
	if !acquired {
		return failResult(attempt.Platform, model.ErrCategoryValidation, model.ErrPublishInProgress.Error())
	}
	defer func() {
		if err := u.lock.Release(context.WithoutCancel(ctx), attempt.PostID, attempt.Platform); err != nil {
			logger.GetLogger().WithField("error", err).Error("Error while releasing publish lock")
		}
	}()

	allowed, resetAt, err := u.limiter.Check(ctx, attempt.UserID, attempt.Platform)
	if err != nil {
		logger.GetLogger().WithField("error", err).Error("Error while checking rate limit")
		return u.handleFailure(ctx, attempt, &model.PlatformError{Platform: attempt.Platform, Message: "rate limit check failed"})
	}
	if !allowed {
		retryAfter := time.Until(resetAt)
		if retryAfter <= 0 {
			retryAfter = time.Minute
		}
		return u.handleFailure(ctx, attempt, &model.RateLimitError{
			Platform:   attempt.Platform,
			Message:    fmt.Sprintf("publish quota exhausted, resets at %s", resetAt.UTC().Format(time.RFC3339)),
			RetryAfter: retryAfter,
		})
	}

	return u.dispatch(ctx, attempt)
}

// ProcessDueRetries drains attempts whose next_retry_at has passed. Called by
// the background retry processor on a ticker.
func (u *publishUsecase) ProcessDueRetries(ctx context.Context, batchSize int) error {
	due, err := u.history.FetchDueRetries(ctx, utils.GetCurrentTime(), batchSize)
	if err != nil {
		return err
	}
	for _, attempt := range due {
		res := u.retryAttempt(ctx, attempt)
		logger.GetLogger().
			WithField("attempt_id", attempt.ID).
			WithField("platform", attempt.Platform).
			WithField("status", res.Status).
			Info("Processed due retry")
	}
	return nil
}

func (u *publishUsecase) GetHistory(ctx context.Context, userID string, q dto.HistoryQuery) (*dto.HistoryPage, error) {
	limit := q.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}
	items, total, err := u.history.List(ctx, userID, q.Platform, q.Status, q.PostID, limit, offset)
	if err != nil {
		return nil, err
	}
	return &dto.HistoryPage{Items: items, Total: total, Limit: limit, Offset: offset}, nil
}

func (u *publishUsecase) GetStatus(ctx context.Context, userID string, attemptID int64) (*model.PublishAttempt, error) {
	attempt, err := u.history.GetByID(ctx, attemptID, userID)
	if err != nil {
		return nil, err
	}
	if attempt == nil {
		return nil, ErrAttemptNotFound
	}
	return attempt, nil
}

func failResult(platform model.Platform, category, message string) *model.PublishResult {
	return &model.PublishResult{
		Success:       false,
		Status:        model.AttemptStatusFailed,
		Platform:      platform,
		Error:         message,
		ErrorCategory: category,
	}
}

// rateLimitedResult is the quota rejection outcome. No attempt row backs it
// and no retry is scheduled; the caller may resubmit after the window resets.
func rateLimitedResult(platform model.Platform, resetAt time.Time) *model.PublishResult {
	return &model.PublishResult{
		Success:       false,
		Status:        model.ResultStatusRateLimited,
		Platform:      platform,
		Error:         fmt.Sprintf("publish quota exhausted, resets at %s", resetAt.UTC().Format(time.RFC3339)),
		ErrorCategory: model.ErrCategoryRateLimit,
	}
}
