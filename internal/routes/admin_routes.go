package routes

import (
	"github.com/gin-gonic/gin"

	"igx_tracker/internal/controllers"
	"igx_tracker/internal/middleware"
)

func AdminRoutes(r *gin.Engine, h *controllers.Handler) {
	admin := r.Group("/admin")
	admin.Use(middleware.RequireAuthWithRole("admin"))
	{
		admin.POST("/frames", h.IngestFrame)
		admin.POST("/frames/bulk", h.IngestBulk)
		admin.GET("/frames", h.ListFrames)
		admin.GET("/frames/:id", h.GetFrame)

		admin.GET("/devices", h.ListDevices)
		admin.PATCH("/devices/:id", h.UpdateDevice)
		admin.GET("/devices/:id/track", h.DeviceTrack)

		admin.GET("/positions", h.ListPositions)
		admin.GET("/logs", h.ListLogs)
	}
}
