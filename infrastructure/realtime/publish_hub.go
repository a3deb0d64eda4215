package realtime

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"

	"newshub/domain/model"
)

// PublishStatusEvent represents an SSE payload for publish status updates.
type PublishStatusEvent struct {
	Type           string  `json:"type"`
	AttemptID      int64   `json:"attempt_id"`
	PostID         int64   `json:"post_id"`
	Platform       string  `json:"platform"`
	Status         string  `json:"status"`
	PlatformPostID *string `json:"platform_post_id,omitempty"`
	PlatformURL    *string `json:"platform_url,omitempty"`
	Error          *string `json:"error,omitempty"`
	RetryCount     int     `json:"retry_count"`
}

// Hub maintains per-user subscribers listening for publish status events.
type Hub struct {
	mu    sync.RWMutex
	users map[string]map[chan PublishStatusEvent]struct{}
}

func NewPublishHub() *Hub {
	return &Hub{users: make(map[string]map[chan PublishStatusEvent]struct{})}
}

// Serve registers an SSE stream for the authenticated user (user_id set by middleware).
func (h *Hub) Serve(c *gin.Context) {
	userID := c.GetString("user_id")
	if userID == "" {
		c.Status(http.StatusUnauthorized)
		return
	}
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no") // disable nginx buffering

	ch := make(chan PublishStatusEvent, 8)
	h.addSubscriber(userID, ch)
	defer h.removeSubscriber(userID, ch)

	// Initial comment to keep connection open
	c.Writer.Write([]byte(":ok\n\n"))
	c.Writer.Flush()

	notify := c.Writer.CloseNotify()
	for {
		select {
		case <-notify:
			return
		case evt := <-ch:
			data, _ := json.Marshal(evt)
			_, _ = c.Writer.Write([]byte("event: publish_status\n"))
			_, _ = c.Writer.Write([]byte("data: "))
			_, _ = c.Writer.Write(data)
			_, _ = c.Writer.Write([]byte("\n\n"))
			c.Writer.Flush()
		case <-c.Request.Context().Done():
			return
		}
	}
}

func (h *Hub) addSubscriber(userID string, ch chan PublishStatusEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.users[userID] == nil {
		h.users[userID] = make(map[chan PublishStatusEvent]struct{})
	}
	h.users[userID][ch] = struct{}{}
}

func (h *Hub) removeSubscriber(userID string, ch chan PublishStatusEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if subs := h.users[userID]; subs != nil {
		delete(subs, ch)
		close(ch)
		if len(subs) == 0 {
			delete(h.users, userID)
		}
	}
}

// BroadcastPublishStatus broadcasts to all subscribers of the user who owns the attempt.
func (h *Hub) BroadcastPublishStatus(attempt *model.PublishAttempt) {
	if h == nil || attempt == nil {
		return
	}
	evt := PublishStatusEvent{
		Type:           "publish_status",
		AttemptID:      attempt.ID,
		PostID:         attempt.PostID,
		Platform:       string(attempt.Platform),
		Status:         attempt.Status,
		PlatformPostID: attempt.PlatformPostID,
		PlatformURL:    attempt.PlatformURL,
		Error:          attempt.ErrorMessage,
		RetryCount:     attempt.RetryCount,
	}
	h.mu.RLock()
	subs := h.users[attempt.UserID]
	for ch := range subs {
		select { // non-blocking
		case ch <- evt:
		default:
		}
	}
	h.mu.RUnlock()
}
