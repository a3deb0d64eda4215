package usecase

import (
	"fmt"
	"strings"

	"newshub/domain/dto"
	"newshub/domain/model"
)

// Per-platform content ceilings, enforced before anything reaches the network.
// The publishers additionally thread-split (Twitter) or hard-truncate
// (Instagram, Threads) as a platform accommodation below this layer.
const (
	TwitterMaxLength    = 280
	LinkedInMaxLength   = 3000
	InstagramMaxCaption = 2200
	ThreadsMaxLength    = 500
)

func maxLength(platform model.Platform) int {
	switch platform {
	case model.PlatformTwitter:
		return TwitterMaxLength
	case model.PlatformLinkedIn:
		return LinkedInMaxLength
	case model.PlatformInstagram:
		return InstagramMaxCaption
	case model.PlatformThreads:
		return ThreadsMaxLength
	}
	return 0
}

// ValidateContent runs the pre-flight checks for one platform. A non-nil error
// is always a *model.ValidationError.
func ValidateContent(platform model.Platform, content string, mediaURLs []string) error {
	limit := maxLength(platform)
	if limit == 0 {
		return &model.ValidationError{Platform: platform, Message: "unsupported platform"}
	}
	if strings.TrimSpace(content) == "" && platform != model.PlatformInstagram {
		return &model.ValidationError{Platform: platform, Message: "content must not be empty"}
	}
	if len([]rune(content)) > limit {
		return &model.ValidationError{
			Platform: platform,
			Message:  fmt.Sprintf("content exceeds %d characters", limit),
		}
	}

	if platform == model.PlatformInstagram {
		if len(mediaURLs) == 0 {
			return &model.ValidationError{Platform: platform, Message: "instagram requires at least one image url"}
		}
		if !strings.HasPrefix(mediaURLs[0], "https://") {
			return &model.ValidationError{Platform: platform, Message: "instagram image url must use https"}
		}
	}
	return nil
}

// PlatformCapabilities describes each platform's publish constraints for the
// capabilities endpoint.
func PlatformCapabilities() []dto.PlatformCapability {
	return []dto.PlatformCapability{
		{Platform: string(model.PlatformTwitter), MaxLength: TwitterMaxLength, SupportsThread: true},
		{Platform: string(model.PlatformLinkedIn), MaxLength: LinkedInMaxLength},
		{Platform: string(model.PlatformInstagram), MaxLength: InstagramMaxCaption, RequiresMedia: true, TruncatesOverflow: true},
		{Platform: string(model.PlatformThreads), MaxLength: ThreadsMaxLength, TruncatesOverflow: true},
	}
}
