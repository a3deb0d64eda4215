package linkedin

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"newshub/domain/model"
	"newshub/domain/repository"
	"newshub/infrastructure/utils"
)

// MaxPostLength is LinkedIn's share character ceiling.
const MaxPostLength = 3000

const defaultBaseURL = "https://api.linkedin.com"

// Client publishes shares via the LinkedIn v2 API. Publishing is a two-call
// flow: resolve the authenticated member id, then create a UGC post for that
// member urn.
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

func NewClientWithBase(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{httpClient: httpClient, baseURL: baseURL}
}

func (c *Client) Platform() model.Platform { return model.PlatformLinkedIn }

func (c *Client) Publish(ctx context.Context, content string, creds model.Credentials, mediaURLs []string) (*repository.PublishOutput, error) {
	memberID, err := c.resolveMemberID(ctx, creds)
	if err != nil {
		return nil, err
	}

	payload := map[string]interface{}{
		"author":         fmt.Sprintf("urn:li:person:%s", memberID),
		"lifecycleState": "PUBLISHED",
		"specificContent": map[string]interface{}{
			"com.linkedin.ugc.ShareContent": map[string]interface{}{
				"shareCommentary": map[string]string{
					"text": utils.TruncateRunes(content, MaxPostLength),
				},
				"shareMediaCategory": "NONE",
			},
		},
		"visibility": map[string]string{
			"com.linkedin.ugc.MemberNetworkVisibility": "PUBLIC",
		},
	}
	body, _ := json.Marshal(payload)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v2/ugcPosts", bytes.NewReader(body))
	if err != nil {
		return nil, &model.PlatformError{Platform: model.PlatformLinkedIn, Message: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+creds.AccessToken)
	req.Header.Set("X-Restli-Protocol-Version", "2.0.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &model.PlatformError{Platform: model.PlatformLinkedIn, Message: err.Error()}
	}
	respBody, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	if err := mapStatus(resp, respBody); err != nil {
		return nil, err
	}

	var out struct {
		ID string `json:"id"`
	}
	_ = json.Unmarshal(respBody, &out)
	if out.ID == "" {
		out.ID = resp.Header.Get("X-RestLi-Id")
	}
	if out.ID == "" {
		return nil, &model.PlatformError{Platform: model.PlatformLinkedIn, StatusCode: resp.StatusCode, Message: "missing post id in response"}
	}
	return &repository.PublishOutput{
		PlatformPostID: out.ID,
		PlatformURL:    fmt.Sprintf("https://www.linkedin.com/feed/update/%s", out.ID),
	}, nil
}

// resolveMemberID fetches the authenticated member's id from the userinfo
// endpoint (OpenID Connect).
func (c *Client) resolveMemberID(ctx context.Context, creds model.Credentials) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v2/userinfo", nil)
	if err != nil {
		return "", &model.PlatformError{Platform: model.PlatformLinkedIn, Message: err.Error()}
	}
	req.Header.Set("Authorization", "Bearer "+creds.AccessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &model.PlatformError{Platform: model.PlatformLinkedIn, Message: err.Error()}
	}
	respBody, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	if err := mapStatus(resp, respBody); err != nil {
		return "", err
	}

	var out struct {
		Sub string `json:"sub"`
	}
	if err := json.Unmarshal(respBody, &out); err != nil || out.Sub == "" {
		return "", &model.PlatformError{Platform: model.PlatformLinkedIn, StatusCode: resp.StatusCode, Message: "missing member id in userinfo response"}
	}
	return out.Sub, nil
}

func (c *Client) ValidateToken(ctx context.Context, creds model.Credentials) (bool, error) {
	_, err := c.resolveMemberID(ctx, creds)
	if err != nil {
		var authErr *model.AuthError
		if errors.As(err, &authErr) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func mapStatus(resp *http.Response, body []byte) error {
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return &model.AuthError{Platform: model.PlatformLinkedIn, Message: strings.TrimSpace(string(body))}
	case resp.StatusCode == http.StatusTooManyRequests:
		retryAfter := 30 * time.Minute
		if ra := resp.Header.Get("Retry-After"); ra != "" {
			if secs, err := strconv.Atoi(ra); err == nil && secs > 0 {
				retryAfter = time.Duration(secs) * time.Second
			}
		}
		return &model.RateLimitError{Platform: model.PlatformLinkedIn, Message: strings.TrimSpace(string(body)), RetryAfter: retryAfter}
	default:
		return &model.PlatformError{Platform: model.PlatformLinkedIn, StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(body))}
	}
}
