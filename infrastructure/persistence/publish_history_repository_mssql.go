package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"newshub/domain/model"
)

// PublishHistoryRepositoryMSSQL implements publish-attempt persistence for
// SQL Server/Azure SQL using database/sql. media_urls is stored as a JSON
// string because SQL Server has no array type.
type PublishHistoryRepositoryMSSQL struct{ db *sql.DB }

func NewPublishHistoryRepositoryMSSQL(db *sql.DB) *PublishHistoryRepositoryMSSQL {
	return &PublishHistoryRepositoryMSSQL{db: db}
}

// DB exposes the underlying *sql.DB
func (r *PublishHistoryRepositoryMSSQL) DB() *sql.DB { return r.db }

const attemptColumnsMSSQL = `id, post_id, user_id, platform, content, content_hash, media_urls, status,
	platform_post_id, platform_url, error_category, error_message, error_details,
	retry_count, max_retries, next_retry_at, started_at, published_at, created_at, updated_at`

func scanAttemptMSSQL(row interface{ Scan(...interface{}) error }) (*model.PublishAttempt, error) {
	a := &model.PublishAttempt{}
	var mediaJSON, platformPostID, platformURL, errCategory, errMessage, errDetails sql.NullString
	var nextRetryAt, startedAt, publishedAt sql.NullTime
	err := row.Scan(&a.ID, &a.PostID, &a.UserID, &a.Platform, &a.Content, &a.ContentHash, &mediaJSON, &a.Status,
		&platformPostID, &platformURL, &errCategory, &errMessage, &errDetails,
		&a.RetryCount, &a.MaxRetries, &nextRetryAt, &startedAt, &publishedAt, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if mediaJSON.Valid && mediaJSON.String != "" {
		_ = json.Unmarshal([]byte(mediaJSON.String), &a.MediaURLs)
	}
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

func (r *PublishHistoryRepositoryMSSQL) Upsert(ctx context.Context, attempt *model.PublishAttempt) (*model.PublishAttempt, error) {
	now := time.Now().UTC()
	maxRetries := attempt.MaxRetries
	if maxRetries == 0 {
		maxRetries = model.DefaultMaxRetries
	}
	mediaJSON, _ := json.Marshal(attempt.MediaURLs)

	q := `MERGE dbo.[publish_attempts] AS target
USING (VALUES (@p1, @p2)) AS src(post_id, platform)
ON target.post_id = src.post_id AND target.platform = src.platform
WHEN MATCHED THEN UPDATE SET
  content = @p4, content_hash = @p5, media_urls = @p6, status = @p7,
  platform_post_id = NULL, platform_url = NULL,
  error_category = NULL, error_message = NULL, error_details = NULL,
  retry_count = 0, next_retry_at = NULL,
  started_at = @p9, updated_at = @p9
WHEN NOT MATCHED THEN
  INSERT (post_id, user_id, platform, content, content_hash, media_urls, status, retry_count, max_retries, started_at, created_at, updated_at)
  VALUES (src.post_id, @p3, src.platform, @p4, @p5, @p6, @p7, 0, @p8, @p9, @p9, @p9);`
	if _, err := r.db.ExecContext(ctx, q, attempt.PostID, string(attempt.Platform), attempt.UserID,
		attempt.Content, attempt.ContentHash, string(mediaJSON),
		model.AttemptStatusPublishing, maxRetries, now); err != nil {
		return nil, err
	}

	row := r.db.QueryRowContext(ctx, `SELECT TOP (1) `+attemptColumnsMSSQL+`
FROM dbo.[publish_attempts] WHERE post_id=@p1 AND platform=@p2`, attempt.PostID, string(attempt.Platform))
	return scanAttemptMSSQL(row)
}

func (r *PublishHistoryRepositoryMSSQL) GetByID(ctx context.Context, attemptID int64, userID string) (*model.PublishAttempt, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+attemptColumnsMSSQL+` FROM dbo.[publish_attempts] WHERE id=@p1 AND user_id=@p2`, attemptID, userID)
	a, err := scanAttemptMSSQL(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return a, err
}

func (r *PublishHistoryRepositoryMSSQL) List(ctx context.Context, userID string, platform, status string, postID int64, limit, offset int) ([]*model.PublishAttempt, int64, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	where := ` WHERE user_id=@p1
		AND (@p2 = '' OR platform = @p2)
		AND (@p3 = '' OR status = @p3)
		AND (@p4 = 0 OR post_id = @p4)`

	var total int64
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM dbo.[publish_attempts]`+where, userID, platform, status, postID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+attemptColumnsMSSQL+` FROM dbo.[publish_attempts]`+where+`
		 ORDER BY updated_at DESC OFFSET @p6 ROWS FETCH NEXT @p5 ROWS ONLY`,
		userID, platform, status, postID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var list []*model.PublishAttempt
	for rows.Next() {
		a, err := scanAttemptMSSQL(rows)
		if err != nil {
			return nil, 0, err
		}
		list = append(list, a)
	}
	return list, total, rows.Err()
}

func (r *PublishHistoryRepositoryMSSQL) MarkSuccess(ctx context.Context, attemptID int64, platformPostID, platformURL string, publishedAt time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE dbo.[publish_attempts] SET status=@p1, platform_post_id=@p2, platform_url=@p3,
			error_category=NULL, error_message=NULL, error_details=NULL, next_retry_at=NULL,
			published_at=@p4, updated_at=@p5
		 WHERE id=@p6`,
		model.AttemptStatusSuccess, platformPostID, platformURL, publishedAt, time.Now().UTC(), attemptID)
	return err
}

func (r *PublishHistoryRepositoryMSSQL) MarkFailed(ctx context.Context, attemptID int64, category, message string, details *string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE dbo.[publish_attempts] SET status=@p1, error_category=@p2, error_message=@p3, error_details=@p4,
			next_retry_at=NULL, updated_at=@p5
		 WHERE id=@p6`,
		model.AttemptStatusFailed, category, message, details, time.Now().UTC(), attemptID)
	return err
}

func (r *PublishHistoryRepositoryMSSQL) ScheduleRetry(ctx context.Context, attemptID int64, category, message string, nextRetryAt time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE dbo.[publish_attempts] SET status=@p1, error_category=@p2, error_message=@p3,
			retry_count=retry_count+1, next_retry_at=@p4, updated_at=@p5
		 WHERE id=@p6`,
		model.AttemptStatusRetrying, category, message, nextRetryAt, time.Now().UTC(), attemptID)
	return err
}

func (r *PublishHistoryRepositoryMSSQL) MarkRetrying(ctx context.Context, attemptID int64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE dbo.[publish_attempts] SET status=@p1, retry_count=retry_count+1, next_retry_at=NULL, updated_at=@p2
		 WHERE id=@p3`,
		model.AttemptStatusRetrying, time.Now().UTC(), attemptID)
	return err
}

func (r *PublishHistoryRepositoryMSSQL) FetchDueRetries(ctx context.Context, now time.Time, limit int) ([]*model.PublishAttempt, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT TOP (@p3) `+attemptColumnsMSSQL+` FROM dbo.[publish_attempts]
		 WHERE status=@p1 AND next_retry_at IS NOT NULL AND next_retry_at <= @p2
		 ORDER BY next_retry_at ASC`,
		model.AttemptStatusRetrying, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []*model.PublishAttempt
	for rows.Next() {
		a, err := scanAttemptMSSQL(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, a)
	}
	return list, rows.Err()
}
