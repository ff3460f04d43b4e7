package route

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/bassista/go_refresh/internal/api/middleware"
	"github.com/bassista/go_refresh/internal/app"
)

// SetupRoutes builds the admin engine: health, task and repository routes,
// plus /metrics when the application has a metrics registry.
func SetupRoutes(appCtx *app.App, logger *logrus.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.HoneybadgerMiddleware(logger, appCtx.Reporter))
	if origins := appCtx.Config.Server.CORSAllowedOrigins; origins != "" {
		r.Use(middleware.CORSMiddleware(origins))
	}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "UP",
		})
	})

	if appCtx.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(appCtx.Gatherer, promhttp.HandlerOpts{})))
	}

	timeout := appCtx.Config.Server.RequestTimeout

	NewRefreshRouter(appCtx.BaseCtx, timeout, r.Group(""), appCtx.Orchestrator)
	NewRepositoryRouter(timeout, r.Group(""), appCtx.Orchestrator)

	return r
}
