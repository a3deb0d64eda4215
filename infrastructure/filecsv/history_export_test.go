package filecsv

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"newshub/domain/model"
)

func TestHistoryExporter_Export(t *testing.T) {
	postID := "tw-1"
	url := "https://twitter.com/i/status/tw-1"
	errMsg := "service\nunavailable"
	published := time.Date(2026, 8, 1, 10, 30, 0, 0, time.UTC)

	attempts := []*model.PublishAttempt{
		{
			ID:             1,
			PostID:         42,
			Platform:       model.PlatformTwitter,
			Status:         model.AttemptStatusSuccess,
			PlatformPostID: &postID,
			PlatformURL:    &url,
			RetryCount:     0,
			PublishedAt:    &published,
			CreatedAt:      published,
		},
		nil,
		{
			ID:           2,
			PostID:       42,
			Platform:     model.PlatformThreads,
			Status:       model.AttemptStatusFailed,
			ErrorMessage: &errMsg,
			RetryCount:   3,
			CreatedAt:    published,
		},
	}

	var buf bytes.Buffer
	require.NoError(t, NewHistoryExporter(&buf).Export(attempts))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3, "header plus one row per non-nil attempt")

	require.Equal(t, historyHeader, records[0])
	require.Equal(t, "tw-1", records[1][4])
	require.Equal(t, "2026-08-01T10:30:00Z", records[1][9])
	require.Equal(t, "service unavailable", records[2][7], "newlines collapsed to spaces")
	require.Equal(t, "3", records[2][8])
}
