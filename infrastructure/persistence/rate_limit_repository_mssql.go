package persistence

import (
	"context"
	"database/sql"
	"time"

	"newshub/domain/model"
)

// RateLimitRepositoryMSSQL is the SQL Server variant of the fallback limiter
// used on the production path when Redis is not available.
type RateLimitRepositoryMSSQL struct {
	db            *sql.DB
	limitMax      int
	windowSeconds int
}

func NewRateLimitRepositoryMSSQL(db *sql.DB, limitMax, windowSeconds int) *RateLimitRepositoryMSSQL {
	return &RateLimitRepositoryMSSQL{db: db, limitMax: limitMax, windowSeconds: windowSeconds}
}

func (r *RateLimitRepositoryMSSQL) Check(ctx context.Context, userID string, platform model.Platform) (bool, time.Time, error) {
	now := time.Now().UTC()
	row := r.db.QueryRowContext(ctx,
		`SELECT TOP (1) requests_made, window_end FROM dbo.[rate_limit_windows]
		 WHERE user_id=@p1 AND platform=@p2 AND endpoint=@p3`, userID, string(platform), rateLimitEndpoint)
	var made int
	var windowEnd time.Time
	if err := row.Scan(&made, &windowEnd); err != nil {
		if err == sql.ErrNoRows {
			return true, now.Add(time.Duration(r.windowSeconds) * time.Second), nil
		}
		return false, time.Time{}, err
	}
	if !windowEnd.After(now) {
		return true, now.Add(time.Duration(r.windowSeconds) * time.Second), nil
	}
	return made < r.limitMax, windowEnd, nil
}

func (r *RateLimitRepositoryMSSQL) Increment(ctx context.Context, userID string, platform model.Platform) error {
	now := time.Now().UTC()
	windowEnd := now.Add(time.Duration(r.windowSeconds) * time.Second)
	q := `MERGE dbo.[rate_limit_windows] AS target
USING (VALUES (@p1, @p2, @p3)) AS src(user_id, platform, endpoint)
ON target.user_id = src.user_id AND target.platform = src.platform AND target.endpoint = src.endpoint
WHEN MATCHED THEN UPDATE SET
  requests_made = CASE WHEN target.window_end <= @p6 THEN 1 ELSE target.requests_made + 1 END,
  window_start  = CASE WHEN target.window_end <= @p6 THEN @p6 ELSE target.window_start END,
  window_end    = CASE WHEN target.window_end <= @p6 THEN @p7 ELSE target.window_end END
WHEN NOT MATCHED THEN
  INSERT (user_id, platform, endpoint, limit_max, window_seconds, requests_made, window_start, window_end)
  VALUES (src.user_id, src.platform, src.endpoint, @p4, @p5, 1, @p6, @p7);`
	_, err := r.db.ExecContext(ctx, q, userID, string(platform), rateLimitEndpoint, r.limitMax, r.windowSeconds, now, windowEnd)
	return err
}
