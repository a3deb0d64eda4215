package dto

import "newshub/domain/model"

// PublishRequest asks for a post to be published to one or more platforms.
// ContentMap overrides the post's stored platform content when present.
type PublishRequest struct {
	Platforms  []string          `json:"platforms" binding:"required"`
	ContentMap map[string]string `json:"content_map,omitempty"`
}

// SinglePublishRequest carries an optional content override for one platform.
type SinglePublishRequest struct {
	Content   string   `json:"content,omitempty"`
	MediaURLs []string `json:"media_urls,omitempty"`
}

// HistoryQuery filters the publishing history listing.
type HistoryQuery struct {
	Platform string `form:"platform"`
	Status   string `form:"status"`
	PostID   int64  `form:"post_id"`
	Limit    int    `form:"limit"`
	Offset   int    `form:"offset"`
}

// HistoryPage is one page of publishing history.
type HistoryPage struct {
	Items  []*model.PublishAttempt `json:"items"`
	Total  int64                   `json:"total"`
	Limit  int                     `json:"limit"`
	Offset int                     `json:"offset"`
}

// PlatformCapability describes one platform's publishing capability.
type PlatformCapability struct {
	Platform          string `json:"platform"`
	MaxLength         int    `json:"max_length"`
	RequiresMedia     bool   `json:"requires_media"`
	SupportsThread    bool   `json:"supports_thread"`
	TruncatesOverflow bool   `json:"truncates_overflow"`
	Connected         bool   `json:"connected"`
}
