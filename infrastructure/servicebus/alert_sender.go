package servicebus

import (
	"context"
	"encoding/json"

	"github.com/Azure/azure-sdk-for-go/sdk/messaging/azservicebus"

	"newshub/domain/model"
	"newshub/infrastructure/logger"
)

// IAlertSender delivers terminal publish failure alerts to the operations
// queue. A failure is terminal when its retry budget is exhausted or its
// error category is not retryable.
type IAlertSender interface {
	SendFailureAlert(attempt *model.PublishAttempt) error
}

type AlertSender struct {
	AzservicebusClient *azservicebus.Client
	QueueName          string
}

func NewAlertSender(azServiceBusClient *azservicebus.Client, queueName string) IAlertSender {
	return &AlertSender{AzservicebusClient: azServiceBusClient, QueueName: queueName}
}

// FailureAlert is the queue payload for a publish attempt that will not be
// retried again.
type FailureAlert struct {
	AttemptID     int64   `json:"attempt_id"`
	PostID        int64   `json:"post_id"`
	UserID        string  `json:"user_id"`
	Platform      string  `json:"platform"`
	ErrorCategory *string `json:"error_category,omitempty"`
	ErrorMessage  *string `json:"error_message,omitempty"`
	RetryCount    int     `json:"retry_count"`
}

func (alertSender *AlertSender) SendFailureAlert(attempt *model.PublishAttempt) error {
	if alertSender == nil || alertSender.AzservicebusClient == nil || attempt == nil {
		return nil
	}

	message, err := json.Marshal(FailureAlert{
		AttemptID:     attempt.ID,
		PostID:        attempt.PostID,
		UserID:        attempt.UserID,
		Platform:      string(attempt.Platform),
		ErrorCategory: attempt.ErrorCategory,
		ErrorMessage:  attempt.ErrorMessage,
		RetryCount:    attempt.RetryCount,
	})
	if err != nil {
		return err
	}

	sender, err := alertSender.AzservicebusClient.NewSender(alertSender.QueueName, nil)
	if err != nil {
		logger.GetLogger().
			WithField("error", err).
			Error("Error while making new sender service bus.")
		return err
	}
	defer func(sender *azservicebus.Sender, ctx context.Context) {
		err := sender.Close(ctx)
		if err != nil {
			logger.GetLogger().
				WithField("error", err).
				Error("Error while closing sender.")
		}
	}(sender, context.Background())

	sbMessage := &azservicebus.Message{
		Body: message,
	}
	err = sender.SendMessage(context.Background(), sbMessage, nil)
	if err != nil {
		logger.GetLogger().WithField("error", err).Error("Error while sending message.")
		return err
	}

	return nil
}
