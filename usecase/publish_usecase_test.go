package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"newshub/domain/dto"
	"newshub/domain/model"
	"newshub/domain/repository"
	"newshub/usecase"
)

// Mock implementations

type MockPublishHistory struct {
	mock.Mock
}

func (m *MockPublishHistory) Upsert(ctx context.Context, attempt *model.PublishAttempt) (*model.PublishAttempt, error) {
	args := m.Called(ctx, attempt)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PublishAttempt), args.Error(1)
}

func (m *MockPublishHistory) GetByID(ctx context.Context, attemptID int64, userID string) (*model.PublishAttempt, error) {
	args := m.Called(ctx, attemptID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PublishAttempt), args.Error(1)
}

func (m *MockPublishHistory) List(ctx context.Context, userID string, platform, status string, postID int64, limit, offset int) ([]*model.PublishAttempt, int64, error) {
	args := m.Called(ctx, userID, platform, status, postID, limit, offset)
	var list []*model.PublishAttempt
	if args.Get(0) != nil {
		list = args.Get(0).([]*model.PublishAttempt)
	}
	return list, args.Get(1).(int64), args.Error(2)
}

func (m *MockPublishHistory) MarkSuccess(ctx context.Context, attemptID int64, platformPostID, platformURL string, publishedAt time.Time) error {
	args := m.Called(ctx, attemptID, platformPostID, platformURL, publishedAt)
	return args.Error(0)
}

func (m *MockPublishHistory) MarkFailed(ctx context.Context, attemptID int64, category, message string, details *string) error {
	args := m.Called(ctx, attemptID, category, message, details)
	return args.Error(0)
}

func (m *MockPublishHistory) ScheduleRetry(ctx context.Context, attemptID int64, category, message string, nextRetryAt time.Time) error {
	args := m.Called(ctx, attemptID, category, message, nextRetryAt)
	return args.Error(0)
}

func (m *MockPublishHistory) MarkRetrying(ctx context.Context, attemptID int64) error {
	args := m.Called(ctx, attemptID)
	return args.Error(0)
}

func (m *MockPublishHistory) FetchDueRetries(ctx context.Context, now time.Time, limit int) ([]*model.PublishAttempt, error) {
	args := m.Called(ctx, now, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.PublishAttempt), args.Error(1)
}

type MockRateLimiter struct {
	mock.Mock
}

func (m *MockRateLimiter) Check(ctx context.Context, userID string, platform model.Platform) (bool, time.Time, error) {
	args := m.Called(ctx, userID, platform)
	return args.Bool(0), args.Get(1).(time.Time), args.Error(2)
}

func (m *MockRateLimiter) Increment(ctx context.Context, userID string, platform model.Platform) error {
	args := m.Called(ctx, userID, platform)
	return args.Error(0)
}

type MockPublishLock struct {
	mock.Mock
}

func (m *MockPublishLock) Acquire(ctx context.Context, postID int64, platform model.Platform, ttl time.Duration) (bool, error) {
	args := m.Called(ctx, postID, platform, ttl)
	return args.Bool(0), args.Error(1)
}

func (m *MockPublishLock) Release(ctx context.Context, postID int64, platform model.Platform) error {
	args := m.Called(ctx, postID, platform)
	return args.Error(0)
}

type MockPostRepository struct {
	mock.Mock
}

func (m *MockPostRepository) GetByID(ctx context.Context, postID int64) (*model.Post, error) {
	args := m.Called(ctx, postID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Post), args.Error(1)
}

func (m *MockPostRepository) GetForUser(ctx context.Context, postID int64, userID string) (*model.Post, error) {
	args := m.Called(ctx, postID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Post), args.Error(1)
}

type MockConnectionManager struct {
	mock.Mock
}

func (m *MockConnectionManager) GetConnection(ctx context.Context, userID string, platform model.Platform, autoRefresh bool) (*model.PlatformConnection, error) {
	args := m.Called(ctx, userID, platform, autoRefresh)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PlatformConnection), args.Error(1)
}

func (m *MockConnectionManager) GetDecryptedCredentials(conn *model.PlatformConnection) (model.Credentials, error) {
	args := m.Called(conn)
	return args.Get(0).(model.Credentials), args.Error(1)
}

type MockPublisher struct {
	mock.Mock
	platform model.Platform
}

func (m *MockPublisher) Platform() model.Platform { return m.platform }

func (m *MockPublisher) Publish(ctx context.Context, content string, creds model.Credentials, mediaURLs []string) (*repository.PublishOutput, error) {
	args := m.Called(ctx, content, creds, mediaURLs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.PublishOutput), args.Error(1)
}

func (m *MockPublisher) ValidateToken(ctx context.Context, creds model.Credentials) (bool, error) {
	args := m.Called(ctx, creds)
	return args.Bool(0), args.Error(1)
}

type fixture struct {
	history   *MockPublishHistory
	limiter   *MockRateLimiter
	lock      *MockPublishLock
	posts     *MockPostRepository
	connMgr   *MockConnectionManager
	publisher *MockPublisher
	uc        usecase.IPublishUsecase
}

func newFixture(platform model.Platform) *fixture {
	f := &fixture{
		history:   new(MockPublishHistory),
		limiter:   new(MockRateLimiter),
		lock:      new(MockPublishLock),
		posts:     new(MockPostRepository),
		connMgr:   new(MockConnectionManager),
		publisher: &MockPublisher{platform: platform},
	}
	f.uc = usecase.NewPublishUsecase(
		f.history, f.limiter, f.lock, f.posts, f.connMgr,
		map[model.Platform]repository.IPlatformPublisher{platform: f.publisher},
		nil, nil, nil, nil,
	)
	return f
}

func testPost() *model.Post {
	return &model.Post{
		ID:             42,
		UserID:         "user-1",
		TwitterContent: "breaking news",
	}
}

func testConnection() *model.PlatformConnection {
	return &model.PlatformConnection{
		ID:             7,
		UserID:         "user-1",
		Platform:       model.PlatformTwitter,
		AccessToken:    "token",
		PlatformUserID: "tw-123",
		Active:         true,
	}
}

func expectHappyPathUpTo(f *fixture, attempt *model.PublishAttempt) {
	f.limiter.On("Check", mock.Anything, "user-1", model.PlatformTwitter).
		Return(true, time.Now().Add(time.Hour), nil)
	f.posts.On("GetForUser", mock.Anything, int64(42), "user-1").Return(testPost(), nil)
	f.lock.On("Acquire", mock.Anything, int64(42), model.PlatformTwitter, mock.Anything).Return(true, nil)
	f.lock.On("Release", mock.Anything, int64(42), model.PlatformTwitter).Return(nil)
	// New attempts enter the pipeline as pending before any transition.
	f.history.On("Upsert", mock.Anything, mock.MatchedBy(func(a *model.PublishAttempt) bool {
		return a.Status == model.AttemptStatusPending
	})).Return(attempt, nil)
	f.connMgr.On("GetConnection", mock.Anything, "user-1", model.PlatformTwitter, true).
		Return(testConnection(), nil)
	f.connMgr.On("GetDecryptedCredentials", mock.Anything).
		Return(model.Credentials{AccessToken: "token", PlatformUserID: "tw-123"}, nil)
	f.limiter.On("Increment", mock.Anything, "user-1", model.PlatformTwitter).Return(nil)
}

func TestPublishToPlatform_Success(t *testing.T) {
	f := newFixture(model.PlatformTwitter)
	attempt := &model.PublishAttempt{ID: 1, PostID: 42, UserID: "user-1", Platform: model.PlatformTwitter, Content: "breaking news", MaxRetries: 3}
	expectHappyPathUpTo(f, attempt)
	f.publisher.On("Publish", mock.Anything, "breaking news", mock.Anything, mock.Anything).
		Return(&repository.PublishOutput{PlatformPostID: "tw-post-9", PlatformURL: "https://twitter.com/i/status/tw-post-9"}, nil)
	f.history.On("MarkSuccess", mock.Anything, int64(1), "tw-post-9", "https://twitter.com/i/status/tw-post-9", mock.Anything).Return(nil)

	res := f.uc.PublishToPlatform(context.Background(), "user-1", 42, model.PlatformTwitter, dto.SinglePublishRequest{})

	assert.True(t, res.Success)
	assert.Equal(t, model.AttemptStatusSuccess, res.Status)
	assert.Equal(t, "tw-post-9", res.PlatformPostID)
	assert.False(t, res.RetryScheduled)
	f.history.AssertExpectations(t)
	f.lock.AssertExpectations(t)
	f.limiter.AssertExpectations(t)
}

func TestPublishToPlatform_AuthErrorIsNotRetried(t *testing.T) {
	f := newFixture(model.PlatformTwitter)
	attempt := &model.PublishAttempt{ID: 1, PostID: 42, UserID: "user-1", Platform: model.PlatformTwitter, Content: "breaking news", MaxRetries: 3}
	expectHappyPathUpTo(f, attempt)
	f.publisher.On("Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, &model.AuthError{Platform: model.PlatformTwitter, Message: "token revoked"})
	f.history.On("MarkFailed", mock.Anything, int64(1), model.ErrCategoryAuth, mock.Anything, mock.Anything).Return(nil)

	res := f.uc.PublishToPlatform(context.Background(), "user-1", 42, model.PlatformTwitter, dto.SinglePublishRequest{})

	assert.False(t, res.Success)
	assert.Equal(t, model.AttemptStatusFailed, res.Status)
	assert.Equal(t, model.ErrCategoryAuth, res.ErrorCategory)
	assert.False(t, res.RetryScheduled)
	f.history.AssertNotCalled(t, "ScheduleRetry", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	f.history.AssertExpectations(t)
}

func TestPublishToPlatform_PlatformErrorSchedulesRetry(t *testing.T) {
	f := newFixture(model.PlatformTwitter)
	attempt := &model.PublishAttempt{ID: 1, PostID: 42, UserID: "user-1", Platform: model.PlatformTwitter, Content: "breaking news", MaxRetries: 3}
	expectHappyPathUpTo(f, attempt)
	f.publisher.On("Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, &model.PlatformError{Platform: model.PlatformTwitter, StatusCode: 503, Message: "over capacity"})

	var scheduledAt time.Time
	f.history.On("ScheduleRetry", mock.Anything, int64(1), model.ErrCategoryPlatform, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { scheduledAt = args.Get(4).(time.Time) }).
		Return(nil)

	before := time.Now().UTC()
	res := f.uc.PublishToPlatform(context.Background(), "user-1", 42, model.PlatformTwitter, dto.SinglePublishRequest{})

	assert.False(t, res.Success)
	assert.Equal(t, model.AttemptStatusRetrying, res.Status)
	assert.True(t, res.RetryScheduled)
	assert.NotNil(t, res.NextRetryAt)
	// First retry is scheduled one minute out.
	assert.WithinDuration(t, before.Add(60*time.Second), scheduledAt, 5*time.Second)
	f.history.AssertNotCalled(t, "MarkFailed", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestPublishToPlatform_RetryBudgetExhausted(t *testing.T) {
	f := newFixture(model.PlatformTwitter)
	attempt := &model.PublishAttempt{ID: 1, PostID: 42, UserID: "user-1", Platform: model.PlatformTwitter, Content: "breaking news", RetryCount: 3, MaxRetries: 3}
	expectHappyPathUpTo(f, attempt)
	f.publisher.On("Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, &model.PlatformError{Platform: model.PlatformTwitter, StatusCode: 500, Message: "boom"})
	f.history.On("MarkFailed", mock.Anything, int64(1), model.ErrCategoryPlatform, mock.Anything, mock.Anything).Return(nil)

	res := f.uc.PublishToPlatform(context.Background(), "user-1", 42, model.PlatformTwitter, dto.SinglePublishRequest{})

	assert.Equal(t, model.AttemptStatusFailed, res.Status)
	assert.False(t, res.RetryScheduled)
	f.history.AssertNotCalled(t, "ScheduleRetry", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestPublishToPlatform_RateLimitedLeavesNoAttempt(t *testing.T) {
	f := newFixture(model.PlatformTwitter)
	resetAt := time.Now().UTC().Add(30 * time.Minute)
	f.limiter.On("Check", mock.Anything, "user-1", model.PlatformTwitter).Return(false, resetAt, nil)

	res := f.uc.PublishToPlatform(context.Background(), "user-1", 42, model.PlatformTwitter, dto.SinglePublishRequest{})

	assert.False(t, res.Success)
	assert.Equal(t, model.ResultStatusRateLimited, res.Status)
	assert.Equal(t, model.ErrCategoryRateLimit, res.ErrorCategory)
	assert.False(t, res.RetryScheduled)
	assert.Contains(t, res.Error, resetAt.UTC().Format(time.RFC3339))
	// A quota rejection happens before any attempt row exists: nothing is
	// persisted, no retry is scheduled and no quota is consumed.
	f.history.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything)
	f.history.AssertNotCalled(t, "ScheduleRetry", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	f.limiter.AssertNotCalled(t, "Increment", mock.Anything, mock.Anything, mock.Anything)
	f.publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestPublishToPlatform_LockConflict(t *testing.T) {
	f := newFixture(model.PlatformTwitter)
	f.limiter.On("Check", mock.Anything, "user-1", model.PlatformTwitter).
		Return(true, time.Now().Add(time.Hour), nil)
	f.posts.On("GetForUser", mock.Anything, int64(42), "user-1").Return(testPost(), nil)
	f.lock.On("Acquire", mock.Anything, int64(42), model.PlatformTwitter, mock.Anything).Return(false, nil)

	res := f.uc.PublishToPlatform(context.Background(), "user-1", 42, model.PlatformTwitter, dto.SinglePublishRequest{})

	assert.False(t, res.Success)
	assert.Equal(t, model.ErrPublishInProgress.Error(), res.Error)
	f.history.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything)
	f.lock.AssertNotCalled(t, "Release", mock.Anything, mock.Anything, mock.Anything)
}

func TestPublishToPlatform_UnsupportedPlatform(t *testing.T) {
	f := newFixture(model.PlatformTwitter)

	res := f.uc.PublishToPlatform(context.Background(), "user-1", 42, model.Platform("myspace"), dto.SinglePublishRequest{})

	assert.False(t, res.Success)
	assert.Equal(t, model.ErrCategoryValidation, res.ErrorCategory)
	f.posts.AssertNotCalled(t, "GetForUser", mock.Anything, mock.Anything, mock.Anything)
}

func TestPublishToPlatform_NoPostStore(t *testing.T) {
	history := new(MockPublishHistory)
	limiter := new(MockRateLimiter)
	lock := new(MockPublishLock)
	connMgr := new(MockConnectionManager)
	pub := &MockPublisher{platform: model.PlatformTwitter}
	uc := usecase.NewPublishUsecase(history, limiter, lock, nil, connMgr,
		map[model.Platform]repository.IPlatformPublisher{model.PlatformTwitter: pub},
		nil, nil, nil, nil)

	res := uc.PublishToPlatform(context.Background(), "user-1", 42, model.PlatformTwitter, dto.SinglePublishRequest{})

	assert.False(t, res.Success)
	assert.Equal(t, model.ErrCategoryUnknown, res.ErrorCategory)
	assert.Equal(t, usecase.ErrPostStoreUnavailable.Error(), res.Error)
	history.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything)

	_, err := uc.PublishToMultiple(context.Background(), "user-1", 42, dto.PublishRequest{Platforms: []string{"twitter"}})
	assert.ErrorIs(t, err, usecase.ErrPostStoreUnavailable)
}

func TestPublishToPlatform_MissingContentRecordsFailedAttempt(t *testing.T) {
	f := newFixture(model.PlatformTwitter)
	post := testPost()
	post.TwitterContent = ""
	attempt := &model.PublishAttempt{ID: 1, PostID: 42, UserID: "user-1", Platform: model.PlatformTwitter, MaxRetries: 3}

	f.limiter.On("Check", mock.Anything, "user-1", model.PlatformTwitter).
		Return(true, time.Now().Add(time.Hour), nil)
	f.posts.On("GetForUser", mock.Anything, int64(42), "user-1").Return(post, nil)
	f.lock.On("Acquire", mock.Anything, int64(42), model.PlatformTwitter, mock.Anything).Return(true, nil)
	f.lock.On("Release", mock.Anything, int64(42), model.PlatformTwitter).Return(nil)
	f.history.On("Upsert", mock.Anything, mock.Anything).Return(attempt, nil)
	f.history.On("MarkFailed", mock.Anything, int64(1), model.ErrCategoryValidation, mock.Anything, mock.Anything).Return(nil)

	res := f.uc.PublishToPlatform(context.Background(), "user-1", 42, model.PlatformTwitter, dto.SinglePublishRequest{})

	// The rejected publish still shows up in history as a failed attempt.
	assert.False(t, res.Success)
	assert.Equal(t, model.AttemptStatusFailed, res.Status)
	assert.Equal(t, model.ErrCategoryValidation, res.ErrorCategory)
	assert.False(t, res.RetryScheduled)
	f.history.AssertExpectations(t)
	f.limiter.AssertNotCalled(t, "Increment", mock.Anything, mock.Anything, mock.Anything)
	f.publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestPublishToPlatform_NotConnected(t *testing.T) {
	f := newFixture(model.PlatformTwitter)
	attempt := &model.PublishAttempt{ID: 1, PostID: 42, UserID: "user-1", Platform: model.PlatformTwitter, Content: "breaking news", MaxRetries: 3}
	f.posts.On("GetForUser", mock.Anything, int64(42), "user-1").Return(testPost(), nil)
	f.lock.On("Acquire", mock.Anything, int64(42), model.PlatformTwitter, mock.Anything).Return(true, nil)
	f.lock.On("Release", mock.Anything, int64(42), model.PlatformTwitter).Return(nil)
	f.history.On("Upsert", mock.Anything, mock.Anything).Return(attempt, nil)
	f.limiter.On("Check", mock.Anything, "user-1", model.PlatformTwitter).
		Return(true, time.Now().Add(time.Hour), nil)
	f.connMgr.On("GetConnection", mock.Anything, "user-1", model.PlatformTwitter, true).
		Return(nil, usecase.ErrNotConnected)
	f.history.On("MarkFailed", mock.Anything, int64(1), model.ErrCategoryAuth, mock.Anything, mock.Anything).Return(nil)

	res := f.uc.PublishToPlatform(context.Background(), "user-1", 42, model.PlatformTwitter, dto.SinglePublishRequest{})

	assert.Equal(t, model.ErrCategoryAuth, res.ErrorCategory)
	assert.False(t, res.RetryScheduled)
	f.limiter.AssertNotCalled(t, "Increment", mock.Anything, mock.Anything, mock.Anything)
}

func TestPublishToMultiple_MixedOutcome(t *testing.T) {
	history := new(MockPublishHistory)
	limiter := new(MockRateLimiter)
	lock := new(MockPublishLock)
	posts := new(MockPostRepository)
	connMgr := new(MockConnectionManager)
	twitterPub := &MockPublisher{platform: model.PlatformTwitter}
	threadsPub := &MockPublisher{platform: model.PlatformThreads}

	uc := usecase.NewPublishUsecase(history, limiter, lock, posts, connMgr,
		map[model.Platform]repository.IPlatformPublisher{
			model.PlatformTwitter: twitterPub,
			model.PlatformThreads: threadsPub,
		}, nil, nil, nil, nil)

	post := testPost()
	post.ThreadsContent = "threads version"
	posts.On("GetForUser", mock.Anything, int64(42), "user-1").Return(post, nil)
	lock.On("Acquire", mock.Anything, int64(42), mock.Anything, mock.Anything).Return(true, nil)
	lock.On("Release", mock.Anything, int64(42), mock.Anything).Return(nil)

	twAttempt := &model.PublishAttempt{ID: 1, PostID: 42, UserID: "user-1", Platform: model.PlatformTwitter, Content: "breaking news", MaxRetries: 3}
	thAttempt := &model.PublishAttempt{ID: 2, PostID: 42, UserID: "user-1", Platform: model.PlatformThreads, Content: "threads version", MaxRetries: 3}
	history.On("Upsert", mock.Anything, mock.MatchedBy(func(a *model.PublishAttempt) bool { return a.Platform == model.PlatformTwitter })).Return(twAttempt, nil)
	history.On("Upsert", mock.Anything, mock.MatchedBy(func(a *model.PublishAttempt) bool { return a.Platform == model.PlatformThreads })).Return(thAttempt, nil)

	limiter.On("Check", mock.Anything, "user-1", mock.Anything).Return(true, time.Now().Add(time.Hour), nil)
	limiter.On("Increment", mock.Anything, "user-1", mock.Anything).Return(nil)
	connMgr.On("GetConnection", mock.Anything, "user-1", mock.Anything, true).Return(testConnection(), nil)
	connMgr.On("GetDecryptedCredentials", mock.Anything).Return(model.Credentials{AccessToken: "token"}, nil)

	twitterPub.On("Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(&repository.PublishOutput{PlatformPostID: "tw-1", PlatformURL: "https://twitter.com/i/status/tw-1"}, nil)
	threadsPub.On("Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, &model.AuthError{Platform: model.PlatformThreads, Message: "expired"})

	history.On("MarkSuccess", mock.Anything, int64(1), mock.Anything, mock.Anything, mock.Anything).Return(nil)
	history.On("MarkFailed", mock.Anything, int64(2), model.ErrCategoryAuth, mock.Anything, mock.Anything).Return(nil)

	result, err := uc.PublishToMultiple(context.Background(), "user-1", 42, dto.PublishRequest{
		Platforms: []string{"twitter", "threads"},
	})

	assert.NoError(t, err)
	assert.Equal(t, 2, result.Summary.Total)
	assert.Equal(t, 1, result.Summary.Successful)
	assert.Equal(t, 1, result.Summary.Failed)
	assert.Equal(t, 0, result.Summary.RateLimited)
	assert.True(t, result.Results[model.PlatformTwitter].Success)
	assert.False(t, result.Results[model.PlatformThreads].Success)
}

func TestPublishToMultiple_SkipsPlatformWithoutContent(t *testing.T) {
	f := newFixture(model.PlatformTwitter)
	attempt := &model.PublishAttempt{ID: 1, PostID: 42, UserID: "user-1", Platform: model.PlatformTwitter, Content: "breaking news", MaxRetries: 3}
	expectHappyPathUpTo(f, attempt)
	f.publisher.On("Publish", mock.Anything, "breaking news", mock.Anything, mock.Anything).
		Return(&repository.PublishOutput{PlatformPostID: "tw-1", PlatformURL: "https://twitter.com/i/status/tw-1"}, nil)
	f.history.On("MarkSuccess", mock.Anything, int64(1), mock.Anything, mock.Anything, mock.Anything).Return(nil)

	// testPost has Twitter content only; Threads resolves to nothing and is
	// skipped rather than reported as a failure.
	result, err := f.uc.PublishToMultiple(context.Background(), "user-1", 42, dto.PublishRequest{
		Platforms: []string{"twitter", "threads"},
	})

	assert.NoError(t, err)
	assert.Equal(t, 1, result.Summary.Total)
	assert.Equal(t, 1, result.Summary.Successful)
	assert.Equal(t, 0, result.Summary.Failed)
	assert.NotContains(t, result.Results, model.PlatformThreads)
	f.history.AssertNotCalled(t, "Upsert", mock.Anything, mock.MatchedBy(func(a *model.PublishAttempt) bool {
		return a.Platform == model.PlatformThreads
	}))
}

func TestPublishToMultiple_RejectsUnknownPlatform(t *testing.T) {
	f := newFixture(model.PlatformTwitter)
	_, err := f.uc.PublishToMultiple(context.Background(), "user-1", 42, dto.PublishRequest{
		Platforms: []string{"twitter", "friendster"},
	})
	assert.True(t, errors.Is(err, model.ErrUnsupportedPlatform))
}

func TestRetryPublish_NotRetryableState(t *testing.T) {
	f := newFixture(model.PlatformTwitter)
	f.history.On("GetByID", mock.Anything, int64(5), "user-1").
		Return(&model.PublishAttempt{ID: 5, Status: model.AttemptStatusSuccess}, nil)

	_, err := f.uc.RetryPublish(context.Background(), "user-1", 5)
	assert.ErrorIs(t, err, usecase.ErrNotRetryable)
}

func TestRetryPublish_BudgetExhausted(t *testing.T) {
	f := newFixture(model.PlatformTwitter)
	f.history.On("GetByID", mock.Anything, int64(5), "user-1").
		Return(&model.PublishAttempt{ID: 5, Status: model.AttemptStatusFailed, RetryCount: 3, MaxRetries: 3}, nil)

	_, err := f.uc.RetryPublish(context.Background(), "user-1", 5)

	assert.ErrorIs(t, err, usecase.ErrNotRetryable)
	f.history.AssertNotCalled(t, "MarkRetrying", mock.Anything, mock.Anything)
	f.lock.AssertNotCalled(t, "Acquire", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRetryPublish_ConsumesRetryBudget(t *testing.T) {
	f := newFixture(model.PlatformTwitter)
	f.history.On("GetByID", mock.Anything, int64(5), "user-1").
		Return(&model.PublishAttempt{ID: 5, PostID: 42, UserID: "user-1", Platform: model.PlatformTwitter, Content: "breaking news", Status: model.AttemptStatusFailed, RetryCount: 1, MaxRetries: 3}, nil)
	f.history.On("MarkRetrying", mock.Anything, int64(5)).Return(nil)
	f.lock.On("Acquire", mock.Anything, int64(42), model.PlatformTwitter, mock.Anything).Return(true, nil)
	f.lock.On("Release", mock.Anything, int64(42), model.PlatformTwitter).Return(nil)
	f.limiter.On("Check", mock.Anything, "user-1", model.PlatformTwitter).
		Return(true, time.Now().Add(time.Hour), nil)
	f.limiter.On("Increment", mock.Anything, "user-1", model.PlatformTwitter).Return(nil)
	f.connMgr.On("GetConnection", mock.Anything, "user-1", model.PlatformTwitter, true).
		Return(testConnection(), nil)
	f.connMgr.On("GetDecryptedCredentials", mock.Anything).
		Return(model.Credentials{AccessToken: "token"}, nil)
	f.publisher.On("Publish", mock.Anything, "breaking news", mock.Anything, mock.Anything).
		Return(&repository.PublishOutput{PlatformPostID: "tw-3", PlatformURL: "https://twitter.com/i/status/tw-3"}, nil)
	f.history.On("MarkSuccess", mock.Anything, int64(5), "tw-3", mock.Anything, mock.Anything).Return(nil)

	res, err := f.uc.RetryPublish(context.Background(), "user-1", 5)

	assert.NoError(t, err)
	assert.True(t, res.Success)
	// The manual retry consumed one unit of budget before dispatching.
	f.history.AssertCalled(t, "MarkRetrying", mock.Anything, int64(5))
}

func TestRetryPublish_NotFound(t *testing.T) {
	f := newFixture(model.PlatformTwitter)
	f.history.On("GetByID", mock.Anything, int64(5), "user-1").Return(nil, nil)

	_, err := f.uc.RetryPublish(context.Background(), "user-1", 5)
	assert.ErrorIs(t, err, usecase.ErrAttemptNotFound)
}

func TestProcessDueRetries_DispatchesEach(t *testing.T) {
	f := newFixture(model.PlatformTwitter)
	due := &model.PublishAttempt{ID: 9, PostID: 42, UserID: "user-1", Platform: model.PlatformTwitter, Content: "breaking news", Status: model.AttemptStatusRetrying, RetryCount: 1, MaxRetries: 3}
	f.history.On("FetchDueRetries", mock.Anything, mock.Anything, 10).Return([]*model.PublishAttempt{due}, nil)

	f.lock.On("Acquire", mock.Anything, int64(42), model.PlatformTwitter, mock.Anything).Return(true, nil)
	f.lock.On("Release", mock.Anything, int64(42), model.PlatformTwitter).Return(nil)
	f.limiter.On("Check", mock.Anything, "user-1", model.PlatformTwitter).
		Return(true, time.Now().Add(time.Hour), nil)
	f.limiter.On("Increment", mock.Anything, "user-1", model.PlatformTwitter).Return(nil)
	f.connMgr.On("GetConnection", mock.Anything, "user-1", model.PlatformTwitter, true).
		Return(testConnection(), nil)
	f.connMgr.On("GetDecryptedCredentials", mock.Anything).
		Return(model.Credentials{AccessToken: "token"}, nil)
	f.publisher.On("Publish", mock.Anything, "breaking news", mock.Anything, mock.Anything).
		Return(&repository.PublishOutput{PlatformPostID: "tw-2", PlatformURL: "https://twitter.com/i/status/tw-2"}, nil)
	f.history.On("MarkSuccess", mock.Anything, int64(9), "tw-2", mock.Anything, mock.Anything).Return(nil)

	err := f.uc.ProcessDueRetries(context.Background(), 10)
	assert.NoError(t, err)
	f.publisher.AssertExpectations(t)
}

func TestGetHistory_ClampsLimit(t *testing.T) {
	f := newFixture(model.PlatformTwitter)
	f.history.On("List", mock.Anything, "user-1", "", "", int64(0), 20, 0).
		Return([]*model.PublishAttempt{}, int64(0), nil)

	page, err := f.uc.GetHistory(context.Background(), "user-1", dto.HistoryQuery{Limit: -5})
	assert.NoError(t, err)
	assert.Equal(t, 20, page.Limit)
}
