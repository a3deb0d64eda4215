package model

import "time"

// PlatformConnection stores a user's OAuth credentials for one platform.
// AccessTokenSecret is only set for OAuth 1.0a platforms (Twitter user context).
type PlatformConnection struct {
	ID                int64      `json:"id"`
	UserID            string     `json:"user_id"`
	Platform          Platform   `json:"platform"`
	AccessToken       string     `json:"-"`
	AccessTokenSecret *string    `json:"-"`
	RefreshToken      string     `json:"-"`
	ExpiresAt         *time.Time `json:"expires_at,omitempty"`
	PlatformUserID    string     `json:"platform_user_id"`
	PlatformUsername  *string    `json:"platform_username,omitempty"`
	Scopes            string     `json:"scopes"`
	Active            bool       `json:"active"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// Credentials is the decrypted, ready-to-use view handed to platform publishers.
type Credentials struct {
	AccessToken       string
	AccessTokenSecret string
	PlatformUserID    string
}

// Expired reports whether the access token is past (or within skew of) expiry.
func (c *PlatformConnection) Expired(skew time.Duration) bool {
	if c.ExpiresAt == nil {
		return false
	}
	return time.Now().Add(skew).After(*c.ExpiresAt)
}
