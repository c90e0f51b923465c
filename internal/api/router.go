package api

import (
	"github.com/gin-gonic/gin"

	"maintenance-service/internal/logging"
	"maintenance-service/internal/metrics"
)

func NewRouter(h *Handler, logger *logging.Logger, basePath string) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLoggingMiddleware(logger))

	r.GET("/health", h.Health)
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	api := r.Group(basePath)
	{
		// Sweeps
		api.POST("/sweeps", h.TriggerSweep)
		api.GET("/sweeps/last", h.LastSweep)

		// In-app notifications
		api.GET("/notifications/user/:user_id", h.GetNotificationsByUserID)
		api.POST("/notifications/:id/read", h.MarkNotificationRead)
		api.GET("/ws/:user_id", h.Subscribe)
	}
	return r
}
