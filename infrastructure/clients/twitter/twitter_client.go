package twitter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"newshub/domain/model"
	"newshub/domain/repository"
	"newshub/infrastructure/logger"
	"newshub/infrastructure/utils"
)

const (
	// MaxTweetLength is the hard per-tweet character ceiling.
	MaxTweetLength = 280
	// ThreadSegmentLength leaves a safety margin below the hard ceiling for
	// thread segments.
	ThreadSegmentLength = 270

	defaultBaseURL = "https://api.twitter.com"
)

// Client publishes tweets via the Twitter v2 API. Content longer than the
// thread threshold is split on word boundaries into a reply chain.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

func NewClient() *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    defaultBaseURL,
	}
}

// NewClientWithBase is used by tests to point the client at a fake server.
func NewClientWithBase(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{httpClient: httpClient, baseURL: baseURL}
}

func (c *Client) Platform() model.Platform { return model.PlatformTwitter }

func (c *Client) Publish(ctx context.Context, content string, creds model.Credentials, mediaURLs []string) (*repository.PublishOutput, error) {
	if len([]rune(content)) > ThreadSegmentLength {
		return c.publishThread(ctx, content, creds)
	}
	id, err := c.postTweet(ctx, creds, utils.TruncateRunes(content, MaxTweetLength), "")
	if err != nil {
		return nil, err
	}
	return &repository.PublishOutput{
		PlatformPostID: id,
		PlatformURL:    tweetURL(id),
		ThreadCount:    1,
	}, nil
}

// publishThread splits content into segments and posts each as a reply to the
// previous tweet. The first tweet is the canonical result.
func (c *Client) publishThread(ctx context.Context, content string, creds model.Credentials) (*repository.PublishOutput, error) {
	segments := SplitThread(content, ThreadSegmentLength)
	var firstID, prevID string
	for i, segment := range segments {
		id, err := c.postTweet(ctx, creds, segment, prevID)
		if err != nil {
			if firstID != "" {
				// Partial thread stays up; the platform cannot un-send tweets.
				logger.GetLogger().WithFields(map[string]interface{}{
					"posted": i,
					"total":  len(segments),
				}).Warn("thread publish failed partway")
			}
			return nil, err
		}
		if firstID == "" {
			firstID = id
		}
		prevID = id
	}
	return &repository.PublishOutput{
		PlatformPostID: firstID,
		PlatformURL:    tweetURL(firstID),
		ThreadCount:    len(segments),
	}, nil
}

func (c *Client) postTweet(ctx context.Context, creds model.Credentials, text, inReplyTo string) (string, error) {
	payload := map[string]interface{}{"text": text}
	if inReplyTo != "" {
		payload["reply"] = map[string]string{"in_reply_to_tweet_id": inReplyTo}
	}
	body, _ := json.Marshal(payload)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/2/tweets", bytes.NewReader(body))
	if err != nil {
		return "", &model.PlatformError{Platform: model.PlatformTwitter, Message: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+creds.AccessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &model.PlatformError{Platform: model.PlatformTwitter, Message: err.Error()}
	}
	respBody, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	if err := mapStatus(resp, respBody); err != nil {
		return "", err
	}

	var out struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(respBody, &out); err != nil || out.Data.ID == "" {
		return "", &model.PlatformError{Platform: model.PlatformTwitter, StatusCode: resp.StatusCode, Message: "unexpected response shape"}
	}
	return out.Data.ID, nil
}

func (c *Client) ValidateToken(ctx context.Context, creds model.Credentials) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/2/users/me", nil)
	if err != nil {
		return false, err
	}
	req.Header.Set("Authorization", "Bearer "+creds.AccessToken)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, err
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK, nil
}

func mapStatus(resp *http.Response, body []byte) error {
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return &model.AuthError{Platform: model.PlatformTwitter, Message: strings.TrimSpace(string(body))}
	case resp.StatusCode == http.StatusTooManyRequests:
		return &model.RateLimitError{
			Platform:   model.PlatformTwitter,
			Message:    strings.TrimSpace(string(body)),
			RetryAfter: retryAfterFromReset(resp.Header.Get("x-rate-limit-reset")),
		}
	default:
		return &model.PlatformError{Platform: model.PlatformTwitter, StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(body))}
	}
}

// retryAfterFromReset converts the platform's epoch reset header into a wait
// duration, defaulting conservatively to 15 minutes.
func retryAfterFromReset(reset string) time.Duration {
	if reset != "" {
		if epoch, err := strconv.ParseInt(reset, 10, 64); err == nil {
			if wait := time.Until(time.Unix(epoch, 0)); wait > 0 {
				return wait
			}
		}
	}
	return 15 * time.Minute
}

func tweetURL(id string) string {
	return fmt.Sprintf("https://twitter.com/i/web/status/%s", id)
}

// SplitThread splits content into segments of at most maxLen runes, breaking on
// word boundaries. A single word longer than maxLen is hard-split.
func SplitThread(content string, maxLen int) []string {
	words := strings.Fields(content)
	var segments []string
	var current strings.Builder
	for _, word := range words {
		for len([]rune(word)) > maxLen {
			if current.Len() > 0 {
				segments = append(segments, current.String())
				current.Reset()
			}
			runes := []rune(word)
			segments = append(segments, string(runes[:maxLen]))
			word = string(runes[maxLen:])
		}
		candidate := word
		if current.Len() > 0 {
			candidate = current.String() + " " + word
		}
		if len([]rune(candidate)) > maxLen {
			segments = append(segments, current.String())
			current.Reset()
			current.WriteString(word)
		} else {
			current.Reset()
			current.WriteString(candidate)
		}
	}
	if current.Len() > 0 {
		segments = append(segments, current.String())
	}
	return segments
}
