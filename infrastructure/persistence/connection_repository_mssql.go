package persistence

import (
	"context"
	"database/sql"
	"time"

	"newshub/domain/model"
)

// ConnectionRepositoryMSSQL is the SQL Server variant of the connection store
// used on the production path.
type ConnectionRepositoryMSSQL struct{ db *sql.DB }

func NewConnectionRepositoryMSSQL(db *sql.DB) *ConnectionRepositoryMSSQL {
	return &ConnectionRepositoryMSSQL{db: db}
}

const connectionColumnsMSSQL = `id, user_id, platform, access_token, access_token_secret, refresh_token,
	expires_at, platform_user_id, platform_username, scopes, active, created_at, updated_at`

func (r *ConnectionRepositoryMSSQL) Upsert(ctx context.Context, c *model.PlatformConnection) error {
	now := time.Now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
	q := `MERGE dbo.[platform_connections] AS target
USING (VALUES (@p1, @p2)) AS src(user_id, platform)
ON target.user_id = src.user_id AND target.platform = src.platform
WHEN MATCHED THEN UPDATE SET
  access_token = @p3, access_token_secret = @p4, refresh_token = @p5, expires_at = @p6,
  platform_user_id = @p7, platform_username = @p8, scopes = @p9, active = @p10, updated_at = @p12
WHEN NOT MATCHED THEN
  INSERT (user_id, platform, access_token, access_token_secret, refresh_token, expires_at, platform_user_id, platform_username, scopes, active, created_at, updated_at)
  VALUES (src.user_id, src.platform, @p3, @p4, @p5, @p6, @p7, @p8, @p9, @p10, @p11, @p12);`
	_, err := r.db.ExecContext(ctx, q, c.UserID, string(c.Platform), c.AccessToken, c.AccessTokenSecret,
		c.RefreshToken, c.ExpiresAt, c.PlatformUserID, c.PlatformUsername, c.Scopes, c.Active,
		c.CreatedAt, c.UpdatedAt)
	return err
}

func (r *ConnectionRepositoryMSSQL) Get(ctx context.Context, userID string, platform model.Platform) (*model.PlatformConnection, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT TOP (1) `+connectionColumnsMSSQL+`
		 FROM dbo.[platform_connections] WHERE user_id=@p1 AND platform=@p2 AND active=1`,
		userID, string(platform))
	conn, err := scanConnection(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return conn, err
}

func (r *ConnectionRepositoryMSSQL) ListByUser(ctx context.Context, userID string) ([]*model.PlatformConnection, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+connectionColumnsMSSQL+`
		 FROM dbo.[platform_connections] WHERE user_id=@p1 ORDER BY platform`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*model.PlatformConnection
	for rows.Next() {
		conn, err := scanConnection(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, conn)
	}
	return list, rows.Err()
}

func (r *ConnectionRepositoryMSSQL) UpdateTokens(ctx context.Context, id int64, accessToken, refreshToken string, expiresAt *time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE dbo.[platform_connections] SET access_token=@p1, refresh_token=@p2, expires_at=@p3, updated_at=@p4 WHERE id=@p5`,
		accessToken, refreshToken, expiresAt, time.Now().UTC(), id)
	return err
}
