package threads

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/go-querystring/query"

	"newshub/domain/model"
	"newshub/domain/repository"
	"newshub/infrastructure/utils"
)

// MaxPostLength is the Threads text ceiling. Content over the limit is
// hard-truncated before submission.
const MaxPostLength = 500

const defaultBaseURL = "https://graph.threads.net/v1.0"

// Client publishes text posts through the Threads API. Like Instagram it is a
// container-based flow, but text containers are ready immediately so no
// status polling is needed.
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

func (c *Client) Platform() model.Platform { return model.PlatformThreads }

type containerParams struct {
	MediaType   string `url:"media_type"`
	Text        string `url:"text"`
	AccessToken string `url:"access_token"`
}

type publishParams struct {
	CreationID  string `url:"creation_id"`
	AccessToken string `url:"access_token"`
}

type fieldsParams struct {
	Fields      string `url:"fields"`
	AccessToken string `url:"access_token"`
}

func (c *Client) Publish(ctx context.Context, content string, creds model.Credentials, _ []string) (*repository.PublishOutput, error) {
	text := utils.TruncateRunes(content, MaxPostLength)

	userID := creds.PlatformUserID
	if userID == "" {
		resolved, err := c.resolveUserID(ctx, creds)
		if err != nil {
			return nil, err
		}
		userID = resolved
	}

	containerID, err := c.createContainer(ctx, creds, userID, text)
	if err != nil {
		return nil, err
	}
	postID, err := c.publishContainer(ctx, creds, userID, containerID)
	if err != nil {
		return nil, err
	}

	permalink, err := c.fetchPermalink(ctx, creds, postID)
	if err != nil || permalink == "" {
		permalink = fmt.Sprintf("https://www.threads.net/post/%s", postID)
	}

	return &repository.PublishOutput{
		PlatformPostID: postID,
		PlatformURL:    permalink,
	}, nil
}

func (c *Client) resolveUserID(ctx context.Context, creds model.Credentials) (string, error) {
	params, _ := query.Values(fieldsParams{Fields: "id", AccessToken: creds.AccessToken})
	u := fmt.Sprintf("%s/me?%s", c.baseURL, params.Encode())
	var out struct {
		ID string `json:"id"`
	}
	if err := c.call(ctx, http.MethodGet, u, &out); err != nil {
		return "", err
	}
	if out.ID == "" {
		return "", &model.AuthError{Platform: model.PlatformThreads, Message: "could not resolve threads user id"}
	}
	return out.ID, nil
}

func (c *Client) createContainer(ctx context.Context, creds model.Credentials, userID, text string) (string, error) {
	params, _ := query.Values(containerParams{
		MediaType:   "TEXT",
		Text:        text,
		AccessToken: creds.AccessToken,
	})
	u := fmt.Sprintf("%s/%s/threads?%s", c.baseURL, userID, params.Encode())
	var out struct {
		ID string `json:"id"`
	}
	if err := c.call(ctx, http.MethodPost, u, &out); err != nil {
		return "", err
	}
	if out.ID == "" {
		return "", &model.PlatformError{Platform: model.PlatformThreads, Message: "missing container id in response"}
	}
	return out.ID, nil
}

func (c *Client) publishContainer(ctx context.Context, creds model.Credentials, userID, containerID string) (string, error) {
	params, _ := query.Values(publishParams{CreationID: containerID, AccessToken: creds.AccessToken})
	u := fmt.Sprintf("%s/%s/threads_publish?%s", c.baseURL, userID, params.Encode())
	var out struct {
		ID string `json:"id"`
	}
	if err := c.call(ctx, http.MethodPost, u, &out); err != nil {
		return "", err
	}
	if out.ID == "" {
		return "", &model.PlatformError{Platform: model.PlatformThreads, Message: "missing post id in publish response"}
	}
	return out.ID, nil
}

func (c *Client) fetchPermalink(ctx context.Context, creds model.Credentials, postID string) (string, error) {
	params, _ := query.Values(fieldsParams{Fields: "permalink", AccessToken: creds.AccessToken})
	u := fmt.Sprintf("%s/%s?%s", c.baseURL, postID, params.Encode())
	var out struct {
		Permalink string `json:"permalink"`
	}
	if err := c.call(ctx, http.MethodGet, u, &out); err != nil {
		return "", err
	}
	return out.Permalink, nil
}

func (c *Client) ValidateToken(ctx context.Context, creds model.Credentials) (bool, error) {
	if _, err := c.resolveUserID(ctx, creds); err != nil {
		return false, nil
	}
	return true, nil
}

func (c *Client) call(ctx context.Context, method, url string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return &model.PlatformError{Platform: model.PlatformThreads, Message: err.Error()}
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &model.PlatformError{Platform: model.PlatformThreads, Message: err.Error()}
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	if err := mapStatus(resp, body); err != nil {
		return err
	}
	if out != nil {
		if err := json.Unmarshal(body, out); err != nil {
			return &model.PlatformError{Platform: model.PlatformThreads, StatusCode: resp.StatusCode, Message: "unexpected response shape"}
		}
	}
	return nil
}

func mapStatus(resp *http.Response, body []byte) error {
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return &model.AuthError{Platform: model.PlatformThreads, Message: strings.TrimSpace(string(body))}
	case resp.StatusCode == http.StatusTooManyRequests:
		retryAfter := time.Hour
		if ra := resp.Header.Get("Retry-After"); ra != "" {
			if secs, err := strconv.Atoi(ra); err == nil && secs > 0 {
				retryAfter = time.Duration(secs) * time.Second
			}
		}
		return &model.RateLimitError{Platform: model.PlatformThreads, Message: strings.TrimSpace(string(body)), RetryAfter: retryAfter}
	default:
		return &model.PlatformError{Platform: model.PlatformThreads, StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(body))}
	}
}
