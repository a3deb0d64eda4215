package pubsub

import (
	"context"
	"encoding/json"
	"time"

	"cloud.google.com/go/pubsub"

	"newshub/domain/model"
	"newshub/infrastructure/logger"
)

// IPublishEvents emits publish outcome events for downstream consumers
// (analytics, notification fan-out).
type IPublishEvents interface {
	PublishOutcome(ctx context.Context, attempt *model.PublishAttempt) (string, error)
}

type PublishEvents struct {
	PubSubClient *pubsub.Client
	TopicName    string
}

func NewPublishEvents(pubSubClient *pubsub.Client, topicName string) IPublishEvents {
	return &PublishEvents{
		PubSubClient: pubSubClient,
		TopicName:    topicName,
	}
}

// OutcomeEvent is the wire payload for a terminal publish outcome.
type OutcomeEvent struct {
	AttemptID      int64   `json:"attempt_id"`
	PostID         int64   `json:"post_id"`
	UserID         string  `json:"user_id"`
	Platform       string  `json:"platform"`
	Status         string  `json:"status"`
	PlatformPostID *string `json:"platform_post_id,omitempty"`
	ErrorCategory  *string `json:"error_category,omitempty"`
	RetryCount     int     `json:"retry_count"`
	OccurredAt     string  `json:"occurred_at"`
}

func (publishEvents *PublishEvents) PublishOutcome(
	ctx context.Context,
	attempt *model.PublishAttempt,
) (string, error) {
	if publishEvents == nil || publishEvents.PubSubClient == nil || attempt == nil {
		return "", nil
	}

	payload, err := json.Marshal(OutcomeEvent{
		AttemptID:      attempt.ID,
		PostID:         attempt.PostID,
		UserID:         attempt.UserID,
		Platform:       string(attempt.Platform),
		Status:         attempt.Status,
		PlatformPostID: attempt.PlatformPostID,
		ErrorCategory:  attempt.ErrorCategory,
		RetryCount:     attempt.RetryCount,
		OccurredAt:     time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return "", err
	}

	topic := publishEvents.PubSubClient.Topic(publishEvents.TopicName)

	// Create the topic if it doesn't exist.
	exists, err := topic.Exists(ctx)
	if err != nil {
		return "", err
	}
	if !exists {
		logger.GetLogger().WithField("topic", publishEvents.TopicName).Info("Topic doesn't exist - creating it")
		_, err = publishEvents.PubSubClient.CreateTopic(ctx, publishEvents.TopicName)
		if err != nil {
			return "", err
		}
	}

	serverId, err := topic.Publish(ctx, &pubsub.Message{Data: payload}).Get(ctx)
	if err != nil {
		return "", err
	}

	logger.GetLogger().WithField("server ID", serverId).Info("Publish outcome event emitted")
	return serverId, nil
}
