package usecase

import (
	"context"
	"errors"
	"time"

	"golang.org/x/oauth2"

	"newshub/domain/model"
	"newshub/domain/repository"
	"newshub/infrastructure/configuration"
	"newshub/infrastructure/logger"
)

// refreshSkew triggers a token refresh slightly before actual expiry so a
// publish never races the expiration.
const refreshSkew = 5 * time.Minute

var ErrNotConnected = errors.New("platform not connected for user")

type connectionManager struct {
	connRepo repository.IConnection
	oauthCfg configuration.OAuth
}

func NewConnectionManager(connRepo repository.IConnection) repository.IConnectionManager {
	return &connectionManager{connRepo: connRepo, oauthCfg: configuration.C.OAuth}
}

// GetConnection loads the user's connection and, when autoRefresh is set,
// transparently refreshes an expiring token and persists the new one.
func (m *connectionManager) GetConnection(ctx context.Context, userID string, platform model.Platform, autoRefresh bool) (*model.PlatformConnection, error) {
	conn, err := m.connRepo.Get(ctx, userID, platform)
	if err != nil {
		return nil, err
	}
	if conn == nil || !conn.Active {
		return nil, ErrNotConnected
	}
	if !autoRefresh || !conn.Expired(refreshSkew) {
		return conn, nil
	}
	if conn.RefreshToken == "" {
		return nil, &model.AuthError{Platform: platform, Message: "access token expired and no refresh token available"}
	}

	refreshed, err := m.refresh(ctx, conn)
	if err != nil {
		logger.GetLogger().
			WithField("user_id", userID).
			WithField("platform", platform).
			WithField("error", err).
			Error("Token refresh failed")
		return nil, &model.AuthError{Platform: platform, Message: "token refresh failed: " + err.Error()}
	}
	return refreshed, nil
}

func (m *connectionManager) refresh(ctx context.Context, conn *model.PlatformConnection) (*model.PlatformConnection, error) {
	client := m.clientFor(conn.Platform)
	cfg := &oauth2.Config{
		ClientID:     client.ClientID,
		ClientSecret: client.ClientSecret,
		RedirectURL:  client.RedirectURI,
		Endpoint:     oauth2.Endpoint{TokenURL: client.TokenURL},
	}

	src := cfg.TokenSource(ctx, &oauth2.Token{
		AccessToken:  conn.AccessToken,
		RefreshToken: conn.RefreshToken,
		Expiry:       time.Now().Add(-time.Minute),
	})
	tok, err := src.Token()
	if err != nil {
		return nil, err
	}

	refreshToken := tok.RefreshToken
	if refreshToken == "" {
		refreshToken = conn.RefreshToken
	}
	var expiresAt *time.Time
	if !tok.Expiry.IsZero() {
		e := tok.Expiry
		expiresAt = &e
	}
	if err := m.connRepo.UpdateTokens(ctx, conn.ID, tok.AccessToken, refreshToken, expiresAt); err != nil {
		return nil, err
	}

	conn.AccessToken = tok.AccessToken
	conn.RefreshToken = refreshToken
	conn.ExpiresAt = expiresAt
	return conn, nil
}

func (m *connectionManager) clientFor(platform model.Platform) configuration.OAuthClient {
	switch platform {
	case model.PlatformTwitter:
		return m.oauthCfg.Twitter
	case model.PlatformLinkedIn:
		return m.oauthCfg.LinkedIn
	case model.PlatformInstagram:
		return m.oauthCfg.Instagram
	case model.PlatformThreads:
		return m.oauthCfg.Threads
	}
	return configuration.OAuthClient{}
}

// GetDecryptedCredentials unwraps the stored tokens into the view handed to
// publishers. Tokens are stored encrypted at rest by the database layer.
func (m *connectionManager) GetDecryptedCredentials(conn *model.PlatformConnection) (model.Credentials, error) {
	if conn == nil {
		return model.Credentials{}, ErrNotConnected
	}
	creds := model.Credentials{
		AccessToken:    conn.AccessToken,
		PlatformUserID: conn.PlatformUserID,
	}
	if conn.AccessTokenSecret != nil {
		creds.AccessTokenSecret = *conn.AccessTokenSecret
	}
	return creds, nil
}
