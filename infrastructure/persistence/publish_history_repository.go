package persistence

import (
	"context"
	"database/sql"
	"time"

	"github.com/lib/pq"

	"newshub/domain/model"
)

// PublishHistoryRepository persists publish attempts in PostgreSQL. One row per
// post x platform, upserted on resubmission; rows are never deleted here.
type PublishHistoryRepository struct {
	db *sql.DB
}

func NewPublishHistoryRepository(db *sql.DB) *PublishHistoryRepository {
	return &PublishHistoryRepository{db: db}
}

const attemptColumns = `id, post_id, user_id, platform, content, content_hash, media_urls, status,
	platform_post_id, platform_url, error_category, error_message, error_details,
	retry_count, max_retries, next_retry_at, started_at, published_at, created_at, updated_at`

func scanAttempt(row interface{ Scan(...interface{}) error }) (*model.PublishAttempt, error) {
	a := &model.PublishAttempt{}
	var platformPostID, platformURL, errCategory, errMessage, errDetails sql.NullString
	var nextRetryAt, startedAt, publishedAt sql.NullTime
	var media pq.StringArray
	err := row.Scan(&a.ID, &a.PostID, &a.UserID, &a.Platform, &a.Content, &a.ContentHash, &media, &a.Status,
		&platformPostID, &platformURL, &errCategory, &errMessage, &errDetails,
		&a.RetryCount, &a.MaxRetries, &nextRetryAt, &startedAt, &publishedAt, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	a.MediaURLs = []string(media)
	if platformPostID.Valid {
		a.PlatformPostID = &platformPostID.String
	}
	if platformURL.Valid {
		a.PlatformURL = &platformURL.String
	}
	if errCategory.Valid {
		a.ErrorCategory = &errCategory.String
	}
	if errMessage.Valid {
		a.ErrorMessage = &errMessage.String
	}
	if errDetails.Valid {
		a.ErrorDetails = &errDetails.String
	}
	if nextRetryAt.Valid {
		a.NextRetryAt = &nextRetryAt.Time
	}
	if startedAt.Valid {
		a.StartedAt = &startedAt.Time
	}
	if publishedAt.Valid {
		a.PublishedAt = &publishedAt.Time
	}
	return a, nil
}

// Upsert creates or resets the attempt row for post x platform. Resubmission
// moves the row back to publishing, clears the previous outcome and restarts
// the retry budget. The unique constraint on (post_id, platform) is what
// serializes concurrent publishes at the database level.
func (r *PublishHistoryRepository) Upsert(ctx context.Context, attempt *model.PublishAttempt) (*model.PublishAttempt, error) {
	now := time.Now().UTC()
	maxRetries := attempt.MaxRetries
	if maxRetries == 0 {
		maxRetries = model.DefaultMaxRetries
	}
	q := `INSERT INTO publish_attempts
			(post_id, user_id, platform, content, content_hash, media_urls, status, retry_count, max_retries, started_at, created_at, updated_at)
		  VALUES ($1,$2,$3,$4,$5,$6,$7,0,$8,$9,$9,$9)
		  ON CONFLICT (post_id, platform) DO UPDATE SET
			content = EXCLUDED.content,
			content_hash = EXCLUDED.content_hash,
			media_urls = EXCLUDED.media_urls,
			status = EXCLUDED.status,
			platform_post_id = NULL,
			platform_url = NULL,
			error_category = NULL,
			error_message = NULL,
			error_details = NULL,
			retry_count = 0,
			next_retry_at = NULL,
			started_at = EXCLUDED.started_at,
			updated_at = EXCLUDED.updated_at
		  RETURNING ` + attemptColumns
	row := r.db.QueryRowContext(ctx, q, attempt.PostID, attempt.UserID, attempt.Platform,
		attempt.Content, attempt.ContentHash, pq.Array(attempt.MediaURLs),
		model.AttemptStatusPublishing, maxRetries, now)
	return scanAttempt(row)
}

func (r *PublishHistoryRepository) GetByID(ctx context.Context, attemptID int64, userID string) (*model.PublishAttempt, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+attemptColumns+` FROM publish_attempts WHERE id=$1 AND user_id=$2`, attemptID, userID)
	a, err := scanAttempt(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return a, err
}

func (r *PublishHistoryRepository) List(ctx context.Context, userID string, platform, status string, postID int64, limit, offset int) ([]*model.PublishAttempt, int64, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	where := ` WHERE user_id=$1
		AND ($2 = '' OR platform = $2)
		AND ($3 = '' OR status = $3)
		AND ($4 = 0 OR post_id = $4)`

	var total int64
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM publish_attempts`+where, userID, platform, status, postID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+attemptColumns+` FROM publish_attempts`+where+` ORDER BY updated_at DESC LIMIT $5 OFFSET $6`,
		userID, platform, status, postID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var list []*model.PublishAttempt
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, 0, err
		}
		list = append(list, a)
	}
	return list, total, rows.Err()
}

func (r *PublishHistoryRepository) MarkSuccess(ctx context.Context, attemptID int64, platformPostID, platformURL string, publishedAt time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE publish_attempts SET status=$1, platform_post_id=$2, platform_url=$3,
			error_category=NULL, error_message=NULL, error_details=NULL, next_retry_at=NULL,
			published_at=$4, updated_at=$5
		 WHERE id=$6`,
		model.AttemptStatusSuccess, platformPostID, platformURL, publishedAt, time.Now().UTC(), attemptID)
	return err
}

func (r *PublishHistoryRepository) MarkFailed(ctx context.Context, attemptID int64, category, message string, details *string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE publish_attempts SET status=$1, error_category=$2, error_message=$3, error_details=$4,
			next_retry_at=NULL, updated_at=$5
		 WHERE id=$6`,
		model.AttemptStatusFailed, category, message, details, time.Now().UTC(), attemptID)
	return err
}

func (r *PublishHistoryRepository) ScheduleRetry(ctx context.Context, attemptID int64, category, message string, nextRetryAt time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE publish_attempts SET status=$1, error_category=$2, error_message=$3,
			retry_count=retry_count+1, next_retry_at=$4, updated_at=$5
		 WHERE id=$6`,
		model.AttemptStatusRetrying, category, message, nextRetryAt, time.Now().UTC(), attemptID)
	return err
}

func (r *PublishHistoryRepository) MarkRetrying(ctx context.Context, attemptID int64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE publish_attempts SET status=$1, retry_count=retry_count+1, next_retry_at=NULL, updated_at=$2
		 WHERE id=$3`,
		model.AttemptStatusRetrying, time.Now().UTC(), attemptID)
	return err
}

func (r *PublishHistoryRepository) FetchDueRetries(ctx context.Context, now time.Time, limit int) ([]*model.PublishAttempt, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+attemptColumns+` FROM publish_attempts
		 WHERE status=$1 AND next_retry_at IS NOT NULL AND next_retry_at <= $2
		 ORDER BY next_retry_at ASC LIMIT $3`,
		model.AttemptStatusRetrying, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []*model.PublishAttempt
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, a)
	}
	return list, rows.Err()
}
