package model

import "time"

// Post holds the generated platform-specific content for one news article.
// Content generation happens upstream; this subsystem only reads these fields.
// Stored in MySQL via gorm on the local path.
type Post struct {
	ID                int64      `json:"id" gorm:"primaryKey;autoIncrement"`
	UserID            string     `json:"user_id" gorm:"size:64;index"`
	Title             string     `json:"title" gorm:"size:512"`
	ArticleURL        string     `json:"article_url" gorm:"size:2048"`
	TwitterContent    string     `json:"twitter_content" gorm:"type:text"`
	LinkedInContent   string     `json:"linkedin_content" gorm:"type:text"`
	InstagramContent  string     `json:"instagram_content" gorm:"type:text"`
	ThreadsContent    string     `json:"threads_content" gorm:"type:text"`
	InstagramImageURL string     `json:"instagram_image_url" gorm:"size:2048"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
	DeletedAt         *time.Time `json:"-" gorm:"index"`
}

// ContentFor returns the stored content for a platform, empty when the
// generation pipeline produced nothing for it.
func (p *Post) ContentFor(platform Platform) string {
	switch platform {
	case PlatformTwitter:
		return p.TwitterContent
	case PlatformLinkedIn:
		return p.LinkedInContent
	case PlatformInstagram:
		return p.InstagramContent
	case PlatformThreads:
		return p.ThreadsContent
	}
	return ""
}

// MediaFor returns media URLs required by a platform. Only Instagram currently
// requires an image.
func (p *Post) MediaFor(platform Platform) []string {
	if platform == PlatformInstagram && p.InstagramImageURL != "" {
		return []string{p.InstagramImageURL}
	}
	return nil
}
