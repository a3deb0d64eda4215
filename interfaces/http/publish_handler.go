package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"newshub/domain/dto"
	"newshub/domain/model"
	"newshub/infrastructure/filecsv"
	"newshub/infrastructure/googlesheet"
	"newshub/infrastructure/logger"
	"newshub/usecase"
)

type IPublishHandler interface {
	PublishToPlatform(ctx *gin.Context)
	PublishToMultiple(ctx *gin.Context)
	RetryPublish(ctx *gin.Context)
	GetStatus(ctx *gin.Context)
	GetHistory(ctx *gin.Context)
	ExportHistory(ctx *gin.Context)
	GetPlatforms(ctx *gin.Context)
	ProcessRetries(ctx *gin.Context)
}

type PublishHandler struct {
	publishUsecase usecase.IPublishUsecase
	sheet          googlesheet.IGoogleSheet
}

// NewPublishHandler wires the publish endpoints. sheet may be nil when the
// Google Sheets report target is not configured.
func NewPublishHandler(publishUsecase usecase.IPublishUsecase, sheet googlesheet.IGoogleSheet) IPublishHandler {
	return &PublishHandler{publishUsecase: publishUsecase, sheet: sheet}
}

func (h *PublishHandler) PublishToPlatform(ctx *gin.Context) {
	userID := ctx.GetString("user_id")
	if userID == "" {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized: missing user_id"})
		return
	}
	postID, err := strconv.ParseInt(ctx.Param("postId"), 10, 64)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid post id"})
		return
	}
	platform := model.Platform(ctx.Param("platform"))

	var req dto.SinglePublishRequest
	// Body is optional; an empty body publishes the stored content.
	if err := ctx.ShouldBindJSON(&req); err != nil && ctx.Request.ContentLength > 0 {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	result := h.publishUsecase.PublishToPlatform(ctx.Request.Context(), userID, postID, platform, req)
	ctx.JSON(publishStatusCode(result), result)
}

func (h *PublishHandler) PublishToMultiple(ctx *gin.Context) {
	userID := ctx.GetString("user_id")
	if userID == "" {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized: missing user_id"})
		return
	}
	postID, err := strconv.ParseInt(ctx.Param("postId"), 10, 64)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid post id"})
		return
	}
	var req dto.PublishRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	result, err := h.publishUsecase.PublishToMultiple(ctx.Request.Context(), userID, postID, req)
	if err != nil {
		logger.GetLogger().
			WithField("post_id", postID).
			WithField("user_id", userID).
			WithField("error", err.Error()).
			Warn("multi publish request failed")
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	status := http.StatusOK
	if result.Summary.Successful == 0 && result.Summary.Failed > 0 {
		status = http.StatusUnprocessableEntity
	} else if result.Summary.Failed > 0 {
		status = http.StatusMultiStatus
	}
	ctx.JSON(status, result)
}

func (h *PublishHandler) RetryPublish(ctx *gin.Context) {
	userID := ctx.GetString("user_id")
	attemptID, err := strconv.ParseInt(ctx.Param("attemptId"), 10, 64)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid attempt id"})
		return
	}
	result, err := h.publishUsecase.RetryPublish(ctx.Request.Context(), userID, attemptID)
	if err != nil {
		switch {
		case errors.Is(err, usecase.ErrAttemptNotFound):
			ctx.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		case errors.Is(err, usecase.ErrNotRetryable):
			ctx.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		default:
			ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}
	ctx.JSON(publishStatusCode(result), result)
}

func (h *PublishHandler) GetStatus(ctx *gin.Context) {
	userID := ctx.GetString("user_id")
	attemptID, err := strconv.ParseInt(ctx.Param("attemptId"), 10, 64)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid attempt id"})
		return
	}
	attempt, err := h.publishUsecase.GetStatus(ctx.Request.Context(), userID, attemptID)
	if err != nil {
		if errors.Is(err, usecase.ErrAttemptNotFound) {
			ctx.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, attempt)
}

func (h *PublishHandler) GetHistory(ctx *gin.Context) {
	userID := ctx.GetString("user_id")
	var q dto.HistoryQuery
	if err := ctx.ShouldBindQuery(&q); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid query parameters"})
		return
	}
	page, err := h.publishUsecase.GetHistory(ctx.Request.Context(), userID, q)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, page)
}

// ExportHistory streams the (filtered) history as a CSV download.
func (h *PublishHandler) ExportHistory(ctx *gin.Context) {
	userID := ctx.GetString("user_id")
	var q dto.HistoryQuery
	if err := ctx.ShouldBindQuery(&q); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid query parameters"})
		return
	}
	q.Limit = 200
	page, err := h.publishUsecase.GetHistory(ctx.Request.Context(), userID, q)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	attempts := page.Items

	// target=sheet appends the rows to the shared report spreadsheet instead
	// of streaming a download.
	if ctx.Query("target") == "sheet" {
		if h.sheet == nil {
			ctx.JSON(http.StatusNotImplemented, gin.H{"error": "sheet export is not configured"})
			return
		}
		if err := h.sheet.AppendHistory(ctx.Request.Context(), attempts); err != nil {
			ctx.JSON(http.StatusBadGateway, gin.H{"error": "sheet export failed"})
			return
		}
		ctx.JSON(http.StatusOK, gin.H{"exported": len(attempts)})
		return
	}

	ctx.Header("Content-Type", "text/csv")
	ctx.Header("Content-Disposition", `attachment; filename="publish_history.csv"`)
	if err := filecsv.NewHistoryExporter(ctx.Writer).Export(attempts); err != nil {
		logger.GetLogger().WithField("error", err).Error("Error while exporting history csv")
	}
}

func (h *PublishHandler) GetPlatforms(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{"platforms": usecase.PlatformCapabilities()})
}

// ProcessRetries allows manual triggering of due retry processing (admin/dev utility)
func (h *PublishHandler) ProcessRetries(ctx *gin.Context) {
	batchSize := 10
	if v := ctx.Query("batch"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 200 {
			batchSize = n
		}
	}
	if err := h.publishUsecase.ProcessDueRetries(ctx.Request.Context(), batchSize); err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"processed": false, "error": err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"processed": true, "batch": batchSize})
}

// publishStatusCode maps a normalized publish result onto an HTTP status.
func publishStatusCode(result *model.PublishResult) int {
	if result.Success {
		return http.StatusOK
	}
	switch result.ErrorCategory {
	case model.ErrCategoryValidation:
		if result.Error == model.ErrPublishInProgress.Error() {
			return http.StatusConflict
		}
		return http.StatusBadRequest
	case model.ErrCategoryAuth:
		return http.StatusUnauthorized
	case model.ErrCategoryRateLimit:
		return http.StatusTooManyRequests
	default:
		return http.StatusBadGateway
	}
}
