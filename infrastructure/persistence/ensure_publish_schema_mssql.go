package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// EnsurePublishSchemaMSSQL ensures the publishing tables exist in SQL Server.
func EnsurePublishSchemaMSSQL(db *sql.DB) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	ddl := []struct {
		table string
		stmt  string
	}{
		{"publish_attempts", `CREATE TABLE dbo.[publish_attempts] (
			id BIGINT IDENTITY(1,1) PRIMARY KEY,
			post_id BIGINT NOT NULL,
			user_id NVARCHAR(64) NOT NULL,
			platform NVARCHAR(32) NOT NULL,
			content NVARCHAR(MAX) NOT NULL,
			content_hash NVARCHAR(64) NOT NULL,
			media_urls NVARCHAR(MAX) NULL,
			status NVARCHAR(32) NOT NULL,
			platform_post_id NVARCHAR(255) NULL,
			platform_url NVARCHAR(2048) NULL,
			error_category NVARCHAR(64) NULL,
			error_message NVARCHAR(MAX) NULL,
			error_details NVARCHAR(MAX) NULL,
			retry_count INT NOT NULL DEFAULT 0,
			max_retries INT NOT NULL DEFAULT 3,
			next_retry_at DATETIME2 NULL,
			started_at DATETIME2 NULL,
			published_at DATETIME2 NULL,
			created_at DATETIME2 NOT NULL,
			updated_at DATETIME2 NOT NULL,
			CONSTRAINT uq_publish_attempts UNIQUE (post_id, platform)
		)`},
		{"rate_limit_windows", `CREATE TABLE dbo.[rate_limit_windows] (
			user_id NVARCHAR(64) NOT NULL,
			platform NVARCHAR(32) NOT NULL,
			endpoint NVARCHAR(32) NOT NULL,
			limit_max INT NOT NULL,
			window_seconds INT NOT NULL,
			requests_made INT NOT NULL DEFAULT 0,
			window_start DATETIME2 NOT NULL,
			window_end DATETIME2 NOT NULL,
			CONSTRAINT pk_rate_limit_windows PRIMARY KEY (user_id, platform, endpoint)
		)`},
		{"platform_connections", `CREATE TABLE dbo.[platform_connections] (
			id BIGINT IDENTITY(1,1) PRIMARY KEY,
			user_id NVARCHAR(64) NOT NULL,
			platform NVARCHAR(32) NOT NULL,
			access_token NVARCHAR(MAX) NOT NULL,
			access_token_secret NVARCHAR(MAX) NULL,
			refresh_token NVARCHAR(MAX) NOT NULL DEFAULT '',
			expires_at DATETIME2 NULL,
			platform_user_id NVARCHAR(255) NOT NULL DEFAULT '',
			platform_username NVARCHAR(255) NULL,
			scopes NVARCHAR(1024) NOT NULL DEFAULT '',
			active BIT NOT NULL DEFAULT 1,
			created_at DATETIME2 NOT NULL,
			updated_at DATETIME2 NOT NULL,
			CONSTRAINT uq_platform_connections UNIQUE (user_id, platform)
		)`},
	}

	for _, d := range ddl {
		q := fmt.Sprintf(`IF OBJECT_ID('dbo.%s', 'U') IS NULL BEGIN %s END`, d.table, d.stmt)
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("ensure table dbo.%s: %w", d.table, err)
		}
	}
	return nil
}
