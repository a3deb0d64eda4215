package instagram_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"newshub/domain/model"
	"newshub/infrastructure/clients/instagram"
)

func fastClient(srv *httptest.Server) *instagram.Client {
	return instagram.NewClientWithBase(srv.URL, srv.Client(), time.Millisecond, 50*time.Millisecond)
}

func creds() model.Credentials {
	return model.Credentials{AccessToken: "tok", PlatformUserID: "ig-user"}
}

func TestPublish_ThreeStepFlow(t *testing.T) {
	var statusPolls atomic.Int32
	var gotCaption string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/ig-user/media":
			gotCaption = r.URL.Query().Get("caption")
			assert.Equal(t, "https://cdn.example.com/pic.jpg", r.URL.Query().Get("image_url"))
			fmt.Fprint(w, `{"id":"container-1"}`)
		case r.Method == http.MethodGet && r.URL.Path == "/container-1":
			if statusPolls.Add(1) < 3 {
				fmt.Fprint(w, `{"status_code":"IN_PROGRESS"}`)
				return
			}
			fmt.Fprint(w, `{"status_code":"FINISHED"}`)
		case r.Method == http.MethodPost && r.URL.Path == "/ig-user/media_publish":
			assert.Equal(t, "container-1", r.URL.Query().Get("creation_id"))
			fmt.Fprint(w, `{"id":"media-1"}`)
		case r.Method == http.MethodGet && r.URL.Path == "/media-1":
			fmt.Fprint(w, `{"permalink":"https://www.instagram.com/p/abc/"}`)
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	out, err := fastClient(srv).Publish(context.Background(), "a caption", creds(), []string{"https://cdn.example.com/pic.jpg"})

	require.NoError(t, err)
	assert.Equal(t, "media-1", out.PlatformPostID)
	assert.Equal(t, "https://www.instagram.com/p/abc/", out.PlatformURL)
	assert.Equal(t, "a caption", gotCaption)
	assert.GreaterOrEqual(t, statusPolls.Load(), int32(3))
}

func TestPublish_CaptionTruncatedTo2200(t *testing.T) {
	var gotCaption string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/media") && r.Method == http.MethodPost:
			gotCaption = r.URL.Query().Get("caption")
			fmt.Fprint(w, `{"id":"c1"}`)
		case r.URL.Path == "/c1":
			fmt.Fprint(w, `{"status_code":"FINISHED"}`)
		case strings.HasSuffix(r.URL.Path, "/media_publish"):
			fmt.Fprint(w, `{"id":"m1"}`)
		default:
			fmt.Fprint(w, `{"permalink":"https://www.instagram.com/p/x/"}`)
		}
	}))
	defer srv.Close()

	long := strings.Repeat("c", 5000)
	_, err := fastClient(srv).Publish(context.Background(), long, creds(), []string{"https://cdn.example.com/pic.jpg"})

	require.NoError(t, err)
	assert.Equal(t, 2200, len([]rune(gotCaption)))
}

func TestPublish_RequiresHTTPSImage(t *testing.T) {
	client := instagram.NewClient()

	_, err := client.Publish(context.Background(), "caption", creds(), nil)
	var pfErr *model.PlatformError
	require.ErrorAs(t, err, &pfErr)

	_, err = client.Publish(context.Background(), "caption", creds(), []string{"http://insecure.example.com/a.jpg"})
	require.ErrorAs(t, err, &pfErr)
}

func TestPublish_ContainerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/media"):
			fmt.Fprint(w, `{"id":"c1"}`)
		case r.URL.Path == "/c1":
			fmt.Fprint(w, `{"status_code":"ERROR"}`)
		default:
			t.Errorf("publish should not be reached after container error")
		}
	}))
	defer srv.Close()

	_, err := fastClient(srv).Publish(context.Background(), "caption", creds(), []string{"https://cdn.example.com/pic.jpg"})

	var pfErr *model.PlatformError
	require.ErrorAs(t, err, &pfErr)
}

func TestPublish_PollTimeoutProceedsOptimistically(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/media") && r.Method == http.MethodPost:
			fmt.Fprint(w, `{"id":"c1"}`)
		case r.URL.Path == "/c1":
			// Never finishes within the poll budget.
			fmt.Fprint(w, `{"status_code":"IN_PROGRESS"}`)
		case strings.HasSuffix(r.URL.Path, "/media_publish"):
			fmt.Fprint(w, `{"id":"m1"}`)
		default:
			fmt.Fprint(w, `{"permalink":"https://www.instagram.com/p/x/"}`)
		}
	}))
	defer srv.Close()

	client := instagram.NewClientWithBase(srv.URL, srv.Client(), time.Millisecond, 10*time.Millisecond)
	out, err := client.Publish(context.Background(), "caption", creds(), []string{"https://cdn.example.com/pic.jpg"})

	require.NoError(t, err)
	assert.Equal(t, "m1", out.PlatformPostID)
}

func TestPublish_AuthErrorOnContainerCreate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := fastClient(srv).Publish(context.Background(), "caption", creds(), []string{"https://cdn.example.com/pic.jpg"})

	var authErr *model.AuthError
	require.ErrorAs(t, err, &authErr)
}
