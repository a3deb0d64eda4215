package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"newshub/domain/model"
	"newshub/domain/repository"
)

type IConnectionHandler interface {
	ListConnections(ctx *gin.Context)
	ValidateConnection(ctx *gin.Context)
}

type ConnectionHandler struct {
	connRepo   repository.IConnection
	connMgr    repository.IConnectionManager
	publishers map[model.Platform]repository.IPlatformPublisher
}

func NewConnectionHandler(connRepo repository.IConnection, connMgr repository.IConnectionManager, publishers map[model.Platform]repository.IPlatformPublisher) IConnectionHandler {
	return &ConnectionHandler{connRepo: connRepo, connMgr: connMgr, publishers: publishers}
}

// ListConnections returns the user's platform connections without token material.
func (h *ConnectionHandler) ListConnections(ctx *gin.Context) {
	userID := ctx.GetString("user_id")
	if userID == "" {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized: missing user_id"})
		return
	}
	list, err := h.connRepo.ListByUser(ctx.Request.Context(), userID)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if list == nil {
		list = []*model.PlatformConnection{}
	}
	ctx.JSON(http.StatusOK, gin.H{"connections": list})
}

// ValidateConnection checks the stored token against the live platform API.
func (h *ConnectionHandler) ValidateConnection(ctx *gin.Context) {
	userID := ctx.GetString("user_id")
	platform := model.Platform(ctx.Param("platform"))
	if !model.IsSupportedPlatform(platform) {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "unsupported platform"})
		return
	}

	conn, err := h.connMgr.GetConnection(ctx.Request.Context(), userID, platform, true)
	if err != nil {
		ctx.JSON(http.StatusOK, gin.H{"platform": platform, "connected": false, "valid": false})
		return
	}
	creds, err := h.connMgr.GetDecryptedCredentials(conn)
	if err != nil {
		ctx.JSON(http.StatusOK, gin.H{"platform": platform, "connected": true, "valid": false})
		return
	}

	valid := false
	if publisher, ok := h.publishers[platform]; ok {
		valid, _ = publisher.ValidateToken(ctx.Request.Context(), creds)
	}
	ctx.JSON(http.StatusOK, gin.H{"platform": platform, "connected": true, "valid": valid})
}
