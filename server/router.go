package server

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"newshub/domain/repository"
	"newshub/infrastructure/realtime"
	httpHandler "newshub/interfaces/http"
	"newshub/interfaces/middleware"
)

func InitiateRouter(
	userHandler httpHandler.IUserHandler,
	healthHandler httpHandler.IHealthHandler,
	publishHandler httpHandler.IPublishHandler,
	connectionHandler httpHandler.IConnectionHandler,
	userRepository repository.IUser,
	publishHub *realtime.Hub,
) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:4200", "http://localhost:4201", "https://localhost:4200", "https://localhost:4201"},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Requested-With"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.POST("/login", userHandler.Login)
	router.POST("/register", userHandler.Register)
	router.GET("/healthz", healthHandler.Healthz)

	api := router.Group("api")
	api.Use(middleware.Auth(userRepository))

	posts := api.Group("/posts")
	{
		posts.POST("/:postId/publish", publishHandler.PublishToMultiple)
		posts.POST("/:postId/publish/:platform", publishHandler.PublishToPlatform)
	}

	publish := api.Group("/publish")
	{
		publish.GET("/platforms", publishHandler.GetPlatforms)
		publish.GET("/history", publishHandler.GetHistory)
		publish.GET("/history/export", publishHandler.ExportHistory)
		publish.GET("/attempts/:attemptId", publishHandler.GetStatus)
		publish.POST("/attempts/:attemptId/retry", publishHandler.RetryPublish)
		publish.POST("/process-retries", publishHandler.ProcessRetries)
	}

	if connectionHandler != nil {
		api.GET("/connections", connectionHandler.ListConnections)
		api.GET("/connections/:platform/validate", connectionHandler.ValidateConnection)
	}

	// Live publish status stream
	if publishHub != nil {
		api.GET("/publish/events", publishHub.Serve)
	} else {
		api.GET("/publish/events", func(ctx *gin.Context) {
			ctx.JSON(http.StatusNotImplemented, gin.H{"error": "event stream not configured"})
		})
	}

	return router
}
