package repository

import (
	"context"
	"time"

	"newshub/domain/model"
)

// PublishOutput is what a platform publisher returns on success.
type PublishOutput struct {
	PlatformPostID string
	PlatformURL    string
	// ThreadCount is >1 when the content was split into a reply chain (Twitter).
	ThreadCount int
}

// IPlatformPublisher turns validated content plus credentials into a live post
// on one platform. Failures are reported as model.AuthError, model.RateLimitError
// or model.PlatformError so the orchestrator can categorize them.
type IPlatformPublisher interface {
	Platform() model.Platform
	Publish(ctx context.Context, content string, creds model.Credentials, mediaURLs []string) (*PublishOutput, error)
	ValidateToken(ctx context.Context, creds model.Credentials) (bool, error)
}

// IConnectionManager resolves a user's platform connection, transparently
// refreshing expiring tokens before returning (auto-refresh contract).
type IConnectionManager interface {
	GetConnection(ctx context.Context, userID string, platform model.Platform, autoRefresh bool) (*model.PlatformConnection, error)
	GetDecryptedCredentials(conn *model.PlatformConnection) (model.Credentials, error)
}

// IConnection is the raw persistence behind the connection manager.
type IConnection interface {
	Get(ctx context.Context, userID string, platform model.Platform) (*model.PlatformConnection, error)
	ListByUser(ctx context.Context, userID string) ([]*model.PlatformConnection, error)
	UpdateTokens(ctx context.Context, id int64, accessToken, refreshToken string, expiresAt *time.Time) error
}
