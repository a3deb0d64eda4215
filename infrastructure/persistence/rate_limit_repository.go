package persistence

import (
	"context"
	"database/sql"
	"time"

	"newshub/domain/model"
)

// RateLimitRepository is the PostgreSQL fallback limiter used when Redis is not
// available. A window row per user x platform x endpoint is consulted under a
// row lock so concurrent increments cannot be lost.
type RateLimitRepository struct {
	db            *sql.DB
	limitMax      int
	windowSeconds int
}

func NewRateLimitRepository(db *sql.DB, limitMax, windowSeconds int) *RateLimitRepository {
	return &RateLimitRepository{db: db, limitMax: limitMax, windowSeconds: windowSeconds}
}

const rateLimitEndpoint = "publish"

func (r *RateLimitRepository) Check(ctx context.Context, userID string, platform model.Platform) (bool, time.Time, error) {
	now := time.Now().UTC()
	row := r.db.QueryRowContext(ctx,
		`SELECT requests_made, window_end FROM rate_limit_windows
		 WHERE user_id=$1 AND platform=$2 AND endpoint=$3`, userID, platform, rateLimitEndpoint)
	var made int
	var windowEnd time.Time
	if err := row.Scan(&made, &windowEnd); err != nil {
		if err == sql.ErrNoRows {
			return true, now.Add(time.Duration(r.windowSeconds) * time.Second), nil
		}
		return false, time.Time{}, err
	}
	// An expired window resets implicitly on the next increment.
	if !windowEnd.After(now) {
		return true, now.Add(time.Duration(r.windowSeconds) * time.Second), nil
	}
	return made < r.limitMax, windowEnd, nil
}

// Increment consumes one unit of quota. The upsert restarts the window when the
// stored one has expired; the conditional update is executed atomically so
// concurrent bursts cannot lose counts.
func (r *RateLimitRepository) Increment(ctx context.Context, userID string, platform model.Platform) error {
	now := time.Now().UTC()
	windowEnd := now.Add(time.Duration(r.windowSeconds) * time.Second)
	q := `INSERT INTO rate_limit_windows (user_id, platform, endpoint, limit_max, window_seconds, requests_made, window_start, window_end)
		  VALUES ($1,$2,$3,$4,$5,1,$6,$7)
		  ON CONFLICT (user_id, platform, endpoint) DO UPDATE SET
			requests_made = CASE WHEN rate_limit_windows.window_end <= $6 THEN 1 ELSE rate_limit_windows.requests_made + 1 END,
			window_start  = CASE WHEN rate_limit_windows.window_end <= $6 THEN $6 ELSE rate_limit_windows.window_start END,
			window_end    = CASE WHEN rate_limit_windows.window_end <= $6 THEN $7 ELSE rate_limit_windows.window_end END`
	_, err := r.db.ExecContext(ctx, q, userID, platform, rateLimitEndpoint, r.limitMax, r.windowSeconds, now, windowEnd)
	return err
}
