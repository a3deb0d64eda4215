package persistence

import (
	"context"
	"database/sql"
	"time"

	"newshub/domain/model"
)

// ConnectionRepository stores per-user platform OAuth connections in PostgreSQL.
type ConnectionRepository struct{ db *sql.DB }

func NewConnectionRepository(db *sql.DB) *ConnectionRepository { return &ConnectionRepository{db: db} }

func (r *ConnectionRepository) Upsert(ctx context.Context, c *model.PlatformConnection) error {
	now := time.Now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
	q := `INSERT INTO platform_connections (user_id, platform, access_token, access_token_secret, refresh_token, expires_at, platform_user_id, platform_username, scopes, active, created_at, updated_at)
		  VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		  ON CONFLICT (user_id, platform) DO UPDATE SET
			access_token=EXCLUDED.access_token,
			access_token_secret=EXCLUDED.access_token_secret,
			refresh_token=EXCLUDED.refresh_token,
			expires_at=EXCLUDED.expires_at,
			platform_user_id=EXCLUDED.platform_user_id,
			platform_username=EXCLUDED.platform_username,
			scopes=EXCLUDED.scopes,
			active=EXCLUDED.active,
			updated_at=EXCLUDED.updated_at`
	_, err := r.db.ExecContext(ctx, q, c.UserID, c.Platform, c.AccessToken, c.AccessTokenSecret,
		c.RefreshToken, c.ExpiresAt, c.PlatformUserID, c.PlatformUsername, c.Scopes, c.Active,
		c.CreatedAt, c.UpdatedAt)
	return err
}

func (r *ConnectionRepository) Get(ctx context.Context, userID string, platform model.Platform) (*model.PlatformConnection, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, platform, access_token, access_token_secret, refresh_token, expires_at, platform_user_id, platform_username, scopes, active, created_at, updated_at
		 FROM platform_connections WHERE user_id=$1 AND platform=$2 AND active=true`, userID, platform)
	conn, err := scanConnection(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return conn, err
}

func (r *ConnectionRepository) ListByUser(ctx context.Context, userID string) ([]*model.PlatformConnection, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, platform, access_token, access_token_secret, refresh_token, expires_at, platform_user_id, platform_username, scopes, active, created_at, updated_at
		 FROM platform_connections WHERE user_id=$1 ORDER BY platform`, userID)
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

func (r *ConnectionRepository) UpdateTokens(ctx context.Context, id int64, accessToken, refreshToken string, expiresAt *time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE platform_connections SET access_token=$1, refresh_token=$2, expires_at=$3, updated_at=$4 WHERE id=$5`,
		accessToken, refreshToken, expiresAt, time.Now().UTC(), id)
	return err
}

func scanConnection(row interface{ Scan(...interface{}) error }) (*model.PlatformConnection, error) {
	conn := &model.PlatformConnection{}
	var secret, username sql.NullString
	var exp sql.NullTime
	if err := row.Scan(&conn.ID, &conn.UserID, &conn.Platform, &conn.AccessToken, &secret,
		&conn.RefreshToken, &exp, &conn.PlatformUserID, &username, &conn.Scopes, &conn.Active,
		&conn.CreatedAt, &conn.UpdatedAt); err != nil {
		return nil, err
	}
	if secret.Valid {
		conn.AccessTokenSecret = &secret.String
	}
	if username.Valid {
		conn.PlatformUsername = &username.String
	}
	if exp.Valid {
		conn.ExpiresAt = &exp.Time
	}
	return conn, nil
}
