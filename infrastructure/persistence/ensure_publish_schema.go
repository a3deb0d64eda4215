package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// EnsurePublishSchema creates the publishing tables if they are missing.
// Safe to call at startup.
func EnsurePublishSchema(db *sql.DB) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	ddl := []string{
		`CREATE TABLE IF NOT EXISTS publish_attempts (
			id BIGSERIAL PRIMARY KEY,
			post_id BIGINT NOT NULL,
			user_id TEXT NOT NULL,
			platform TEXT NOT NULL,
			content TEXT NOT NULL,
			content_hash TEXT NOT NULL,
			media_urls TEXT[],
			status TEXT NOT NULL,
			platform_post_id TEXT,
			platform_url TEXT,
			error_category TEXT,
			error_message TEXT,
			error_details TEXT,
			retry_count INT NOT NULL DEFAULT 0,
			max_retries INT NOT NULL DEFAULT 3,
			next_retry_at TIMESTAMPTZ,
			started_at TIMESTAMPTZ,
			published_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL,
			UNIQUE (post_id, platform)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_publish_attempts_user ON publish_attempts (user_id, updated_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_publish_attempts_due ON publish_attempts (status, next_retry_at)`,
		`CREATE TABLE IF NOT EXISTS rate_limit_windows (
			user_id TEXT NOT NULL,
			platform TEXT NOT NULL,
			endpoint TEXT NOT NULL,
			limit_max INT NOT NULL,
			window_seconds INT NOT NULL,
			requests_made INT NOT NULL DEFAULT 0,
			window_start TIMESTAMPTZ NOT NULL,
			window_end TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (user_id, platform, endpoint)
		)`,
		`CREATE TABLE IF NOT EXISTS platform_connections (
			id BIGSERIAL PRIMARY KEY,
			user_id TEXT NOT NULL,
			platform TEXT NOT NULL,
			access_token TEXT NOT NULL,
			access_token_secret TEXT,
			refresh_token TEXT NOT NULL DEFAULT '',
			expires_at TIMESTAMPTZ,
			platform_user_id TEXT NOT NULL DEFAULT '',
			platform_username TEXT,
			scopes TEXT NOT NULL DEFAULT '',
			active BOOLEAN NOT NULL DEFAULT true,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL,
			UNIQUE (user_id, platform)
		)`,
	}

	for _, q := range ddl {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("ensuring publish schema failed: %w", err)
		}
	}
	return nil
}

func columnExists(ctx context.Context, db *sql.DB, table, column string) (bool, error) {
	row := db.QueryRowContext(ctx, `SELECT 1 FROM information_schema.columns WHERE table_name=$1 AND column_name=$2`, table, column)
	var one int
	if err := row.Scan(&one); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// EnsurePublishColumns adds newer columns if they are missing (upgrades from
// older deployments). Performs metadata lookups and conditional ALTER TABLE.
func EnsurePublishColumns(db *sql.DB) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	checks := []struct {
		table  string
		column string
		ddl    string
	}{
		{"publish_attempts", "error_details", "ALTER TABLE publish_attempts ADD COLUMN error_details TEXT"},
		{"publish_attempts", "content_hash", "ALTER TABLE publish_attempts ADD COLUMN content_hash TEXT NOT NULL DEFAULT ''"},
	}

	for _, c := range checks {
		exists, err := columnExists(ctx, db, c.table, c.column)
		if err != nil {
			return err
		}
		if !exists {
			if _, err := db.ExecContext(ctx, c.ddl); err != nil {
				return fmt.Errorf("adding column %s.%s failed: %w", c.table, c.column, err)
			}
		}
	}
	return nil
}
