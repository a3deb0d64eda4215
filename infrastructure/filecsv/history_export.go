package filecsv

import (
	"encoding/csv"
	"io"
	"strconv"
	"strings"
	"time"

	"newshub/domain/model"
)

// HistoryExporter writes publish attempt history as CSV for download.
type HistoryExporter struct {
	w *csv.Writer
}

func NewHistoryExporter(w io.Writer) *HistoryExporter {
	return &HistoryExporter{w: csv.NewWriter(w)}
}

var historyHeader = []string{
	"id", "post_id", "platform", "status", "platform_post_id", "platform_url",
	"error_category", "error_message", "retry_count", "published_at", "created_at",
}

// Export writes a header row followed by one row per attempt and flushes.
func (e *HistoryExporter) Export(attempts []*model.PublishAttempt) error {
	if err := e.w.Write(historyHeader); err != nil {
		return err
	}
	for _, attempt := range attempts {
		if attempt == nil {
			continue
		}
		if err := e.w.Write(historyRow(attempt)); err != nil {
			return err
		}
	}
	e.w.Flush()
	return e.w.Error()
}

func historyRow(a *model.PublishAttempt) []string {
	return []string{
		strconv.FormatInt(a.ID, 10),
		strconv.FormatInt(a.PostID, 10),
		string(a.Platform),
		a.Status,
		strValue(a.PlatformPostID),
		strValue(a.PlatformURL),
		strValue(a.ErrorCategory),
		sanitize(strValue(a.ErrorMessage)),
		strconv.Itoa(a.RetryCount),
		timeValue(a.PublishedAt),
		a.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func strValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func timeValue(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// sanitize strips newlines so error messages stay on one CSV row in viewers
// that mishandle quoted line breaks.
func sanitize(s string) string {
	s = strings.ReplaceAll(s, "\r", " ")
	return strings.ReplaceAll(s, "\n", " ")
}
