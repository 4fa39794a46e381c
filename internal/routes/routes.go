package routes

import (
	"net/http"

	ginlog "github.com/gin-contrib/logger"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"igx_tracker/internal/controllers"
)

// SetupRouter builds the engine; the caller runs it.
func SetupRouter(h *controllers.Handler) *gin.Engine {
	r := gin.New()
	r.Use(
		ginlog.SetLogger(
			ginlog.WithUTC(true),
			ginlog.WithWriter(logrus.StandardLogger().Out),
			ginlog.WithSkipPath([]string{"/metrics", "/healthz"}),
		),
		gin.Recovery(),
	)

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	AuthRoutes(r, h)
	AdminRoutes(r, h)
	WebSocketRoutes(r, h)

	return r
}
