package instagram

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
	"newshub/infrastructure/logger"
	"newshub/infrastructure/utils"
)

// MaxCaptionLength is Instagram's caption ceiling; longer captions are
// hard-truncated before submission rather than rejected.
const MaxCaptionLength = 2200

const (
	defaultBaseURL = "https://graph.facebook.com/v19.0"

	defaultPollInterval = 2 * time.Second
	defaultPollTimeout  = 60 * time.Second
)

// Client publishes photos via the Instagram Graph API. Publishing is a
// three-step asynchronous flow: create a media container (the platform
// downloads the image out-of-band), poll the container's processing status,
// then publish the container and fetch its permalink.
type Client struct {
	httpClient   *http.Client
	baseURL      string
	pollInterval time.Duration
	pollTimeout  time.Duration
}

func NewClient() *Client {
	return &Client{
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		baseURL:      defaultBaseURL,
		pollInterval: defaultPollInterval,
		pollTimeout:  defaultPollTimeout,
	}
}

// NewClientWithBase is used by tests to point the client at a fake server and
// shrink polling delays.
func NewClientWithBase(baseURL string, httpClient *http.Client, pollInterval, pollTimeout time.Duration) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{httpClient: httpClient, baseURL: baseURL, pollInterval: pollInterval, pollTimeout: pollTimeout}
}

func (c *Client) Platform() model.Platform { return model.PlatformInstagram }

type containerParams struct {
	ImageURL    string `url:"image_url"`
	Caption     string `url:"caption"`
	AccessToken string `url:"access_token"`
}

type statusParams struct {
	Fields      string `url:"fields"`
	AccessToken string `url:"access_token"`
}

type publishParams struct {
	CreationID  string `url:"creation_id"`
	AccessToken string `url:"access_token"`
}

func (c *Client) Publish(ctx context.Context, content string, creds model.Credentials, mediaURLs []string) (*repository.PublishOutput, error) {
	if len(mediaURLs) == 0 {
		return nil, &model.PlatformError{Platform: model.PlatformInstagram, Message: "instagram requires an image url"}
	}
	imageURL := mediaURLs[0]
	if !strings.HasPrefix(imageURL, "https://") {
		return nil, &model.PlatformError{Platform: model.PlatformInstagram, Message: "image url must be https"}
	}
	caption := utils.TruncateRunes(content, MaxCaptionLength)

	containerID, err := c.createContainer(ctx, creds, imageURL, caption)
	if err != nil {
		return nil, err
	}
	if err := c.waitForContainer(ctx, creds, containerID); err != nil {
		return nil, err
	}
	mediaID, err := c.publishContainer(ctx, creds, containerID)
	if err != nil {
		return nil, err
	}

	permalink, err := c.fetchPermalink(ctx, creds, mediaID)
	if err != nil {
		// The post is live; a missing permalink is not a publish failure.
		logger.GetLogger().WithField("error", err).Warn("instagram permalink fetch failed")
		permalink = fmt.Sprintf("https://www.instagram.com/p/%s/", mediaID)
	}

	return &repository.PublishOutput{
		PlatformPostID: mediaID,
		PlatformURL:    permalink,
	}, nil
}

func (c *Client) createContainer(ctx context.Context, creds model.Credentials, imageURL, caption string) (string, error) {
	params, _ := query.Values(containerParams{
		ImageURL:    imageURL,
		Caption:     caption,
		AccessToken: creds.AccessToken,
	})
	u := fmt.Sprintf("%s/%s/media?%s", c.baseURL, creds.PlatformUserID, params.Encode())
	var out struct {
		ID string `json:"id"`
	}
	if err := c.call(ctx, http.MethodPost, u, &out); err != nil {
		return "", err
	}
	if out.ID == "" {
		return "", &model.PlatformError{Platform: model.PlatformInstagram, Message: "missing container id in response"}
	}
	return out.ID, nil
}

// waitForContainer polls the container status until FINISHED, ERROR, or the
// poll budget runs out. On timeout we proceed optimistically; the platform
// usually finishes shortly after and the publish call will tell us otherwise.
func (c *Client) waitForContainer(ctx context.Context, creds model.Credentials, containerID string) error {
	params, _ := query.Values(statusParams{Fields: "status_code", AccessToken: creds.AccessToken})
	u := fmt.Sprintf("%s/%s?%s", c.baseURL, containerID, params.Encode())

	deadline := time.Now().Add(c.pollTimeout)
	for {
		var out struct {
			StatusCode string `json:"status_code"`
		}
		if err := c.call(ctx, http.MethodGet, u, &out); err != nil {
			return err
		}
		switch out.StatusCode {
		case "FINISHED":
			return nil
		case "ERROR":
			return &model.PlatformError{Platform: model.PlatformInstagram, Message: "media container processing failed"}
		}
		if time.Now().After(deadline) {
			logger.GetLogger().WithField("container_id", containerID).Warn("container status poll timed out, proceeding optimistically")
			return nil
		}
		select {
		case <-ctx.Done():
			return &model.PlatformError{Platform: model.PlatformInstagram, Message: ctx.Err().Error()}
		case <-time.After(c.pollInterval):
		}
	}
}

func (c *Client) publishContainer(ctx context.Context, creds model.Credentials, containerID string) (string, error) {
	params, _ := query.Values(publishParams{CreationID: containerID, AccessToken: creds.AccessToken})
	u := fmt.Sprintf("%s/%s/media_publish?%s", c.baseURL, creds.PlatformUserID, params.Encode())
	var out struct {
		ID string `json:"id"`
	}
	if err := c.call(ctx, http.MethodPost, u, &out); err != nil {
		return "", err
	}
	if out.ID == "" {
		return "", &model.PlatformError{Platform: model.PlatformInstagram, Message: "missing media id in publish response"}
	}
	return out.ID, nil
}

func (c *Client) fetchPermalink(ctx context.Context, creds model.Credentials, mediaID string) (string, error) {
	params, _ := query.Values(statusParams{Fields: "permalink", AccessToken: creds.AccessToken})
	u := fmt.Sprintf("%s/%s?%s", c.baseURL, mediaID, params.Encode())
	var out struct {
		Permalink string `json:"permalink"`
	}
	if err := c.call(ctx, http.MethodGet, u, &out); err != nil {
		return "", err
	}
	return out.Permalink, nil
}

func (c *Client) ValidateToken(ctx context.Context, creds model.Credentials) (bool, error) {
	params, _ := query.Values(statusParams{Fields: "id", AccessToken: creds.AccessToken})
	u := fmt.Sprintf("%s/%s?%s", c.baseURL, creds.PlatformUserID, params.Encode())
	var out struct {
		ID string `json:"id"`
	}
	if err := c.call(ctx, http.MethodGet, u, &out); err != nil {
		return false, nil
	}
	return out.ID != "", nil
}

func (c *Client) call(ctx context.Context, method, url string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return &model.PlatformError{Platform: model.PlatformInstagram, Message: err.Error()}
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &model.PlatformError{Platform: model.PlatformInstagram, Message: err.Error()}
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	if err := mapStatus(resp, body); err != nil {
		return err
	}
	if out != nil {
		if err := json.Unmarshal(body, out); err != nil {
			return &model.PlatformError{Platform: model.PlatformInstagram, StatusCode: resp.StatusCode, Message: "unexpected response shape"}
		}
	}
	return nil
}

func mapStatus(resp *http.Response, body []byte) error {
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return &model.AuthError{Platform: model.PlatformInstagram, Message: strings.TrimSpace(string(body))}
	case resp.StatusCode == http.StatusTooManyRequests:
		retryAfter := time.Hour
		if ra := resp.Header.Get("Retry-After"); ra != "" {
			if secs, err := strconv.Atoi(ra); err == nil && secs > 0 {
				retryAfter = time.Duration(secs) * time.Second
			}
		}
		return &model.RateLimitError{Platform: model.PlatformInstagram, Message: strings.TrimSpace(string(body)), RetryAfter: retryAfter}
	default:
		return &model.PlatformError{Platform: model.PlatformInstagram, StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(body))}
	}
}
