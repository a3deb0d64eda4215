package googlesheet

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"newshub/domain/model"
	"newshub/infrastructure/configuration"
	"newshub/infrastructure/logger"
)

// IGoogleSheet appends publish history reports to a shared spreadsheet.
type IGoogleSheet interface {
	AppendHistory(ctx context.Context, attempts []*model.PublishAttempt) error
}

type GoogleSheet struct {
	service         *sheets.Service
	spreadsheetId   string
	spreadsheetName string
}

func NewGoogleSheet() (IGoogleSheet, error) {
	ctx := context.Background()
	service, err := sheets.NewService(ctx, option.WithCredentialsFile("credentials.json"))
	if err != nil {
		logger.GetLogger().WithField("error", err).Error("Error while creating sheets service")
		return nil, err
	}

	return &GoogleSheet{
		service:         service,
		spreadsheetId:   configuration.C.GoogleSheet.SpreadsheetId,
		spreadsheetName: configuration.C.GoogleSheet.SpreadsheetName,
	}, nil
}

// AppendHistory appends one row per attempt to the configured sheet.
func (googleSheet *GoogleSheet) AppendHistory(ctx context.Context, attempts []*model.PublishAttempt) error {
	if googleSheet == nil || googleSheet.service == nil {
		return nil
	}

	values := make([][]interface{}, 0, len(attempts))
	for _, attempt := range attempts {
		if attempt == nil {
			continue
		}
		values = append(values, []interface{}{
			strconv.FormatInt(attempt.ID, 10),
			strconv.FormatInt(attempt.PostID, 10),
			attempt.UserID,
			string(attempt.Platform),
			attempt.Status,
			deref(attempt.PlatformPostID),
			deref(attempt.ErrorCategory),
			attempt.RetryCount,
			attempt.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	if len(values) == 0 {
		return nil
	}

	writeRange := fmt.Sprintf("%s!A1", googleSheet.spreadsheetName)
	_, err := googleSheet.service.Spreadsheets.Values.
		Append(googleSheet.spreadsheetId, writeRange, &sheets.ValueRange{Values: values}).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	if err != nil {
		logger.GetLogger().WithField("error", err).Error("Error while appending to sheet")
		return err
	}

	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
