package linkedin_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"newshub/domain/model"
	"newshub/infrastructure/clients/linkedin"
)

func TestPublish_TwoCallFlow(t *testing.T) {
	var gotAuthor, gotText string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v2/userinfo":
			assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
			fmt.Fprint(w, `{"sub":"member-42"}`)
		case "/v2/ugcPosts":
			assert.Equal(t, "2.0.0", r.Header.Get("X-Restli-Protocol-Version"))
			var body struct {
				Author          string `json:"author"`
				SpecificContent struct {
					ShareContent struct {
						ShareCommentary struct {
							Text string `json:"text"`
						} `json:"shareCommentary"`
					} `json:"com.linkedin.ugc.ShareContent"`
				} `json:"specificContent"`
			}
			_ = json.NewDecoder(r.Body).Decode(&body)
			gotAuthor = body.Author
			gotText = body.SpecificContent.ShareContent.ShareCommentary.Text
			w.WriteHeader(http.StatusCreated)
			fmt.Fprint(w, `{"id":"urn:li:share:99"}`)
		default:
			t.Errorf("unexpected request %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	client := linkedin.NewClientWithBase(srv.URL, srv.Client())
	out, err := client.Publish(context.Background(), "professional update", model.Credentials{AccessToken: "tok"}, nil)

	require.NoError(t, err)
	assert.Equal(t, "urn:li:share:99", out.PlatformPostID)
	assert.Equal(t, "https://www.linkedin.com/feed/update/urn:li:share:99", out.PlatformURL)
	assert.Equal(t, "urn:li:person:member-42", gotAuthor)
	assert.Equal(t, "professional update", gotText)
}

func TestPublish_IDFromRestliHeader(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v2/userinfo" {
			fmt.Fprint(w, `{"sub":"m1"}`)
			return
		}
		w.Header().Set("X-RestLi-Id", "urn:li:share:123")
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	client := linkedin.NewClientWithBase(srv.URL, srv.Client())
	out, err := client.Publish(context.Background(), "update", model.Credentials{AccessToken: "tok"}, nil)

	require.NoError(t, err)
	assert.Equal(t, "urn:li:share:123", out.PlatformPostID)
}

func TestPublish_TruncatesLongContent(t *testing.T) {
	var gotText string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v2/userinfo" {
			fmt.Fprint(w, `{"sub":"m1"}`)
			return
		}
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		share := body["specificContent"].(map[string]any)["com.linkedin.ugc.ShareContent"].(map[string]any)
		gotText = share["shareCommentary"].(map[string]any)["text"].(string)
		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"id":"urn:li:share:1"}`)
	}))
	defer srv.Close()

	client := linkedin.NewClientWithBase(srv.URL, srv.Client())
	long := strings.Repeat("a", 5000)
	_, err := client.Publish(context.Background(), long, model.Credentials{AccessToken: "tok"}, nil)

	require.NoError(t, err)
	assert.Equal(t, linkedin.MaxPostLength, len([]rune(gotText)))
}

func TestPublish_AuthErrorOnUserinfo(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := linkedin.NewClientWithBase(srv.URL, srv.Client())
	_, err := client.Publish(context.Background(), "update", model.Credentials{AccessToken: "expired"}, nil)

	var authErr *model.AuthError
	require.ErrorAs(t, err, &authErr)
}

func TestPublish_RateLimitHonorsRetryAfter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v2/userinfo" {
			fmt.Fprint(w, `{"sub":"m1"}`)
			return
		}
		w.Header().Set("Retry-After", "600")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := linkedin.NewClientWithBase(srv.URL, srv.Client())
	_, err := client.Publish(context.Background(), "update", model.Credentials{AccessToken: "tok"}, nil)

	var rlErr *model.RateLimitError
	require.ErrorAs(t, err, &rlErr)
	assert.Equal(t, float64(600), rlErr.RetryAfter.Seconds())
}

func TestValidateToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "Bearer good" {
			fmt.Fprint(w, `{"sub":"m1"}`)
			return
		}
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := linkedin.NewClientWithBase(srv.URL, srv.Client())

	ok, err := client.ValidateToken(context.Background(), model.Credentials{AccessToken: "good"})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = client.ValidateToken(context.Background(), model.Credentials{AccessToken: "bad"})
	require.NoError(t, err)
	assert.False(t, ok)
}
