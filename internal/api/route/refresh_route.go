package route

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/bassista/go_refresh/internal/api/controller"
	"github.com/bassista/go_refresh/internal/api/middleware"
)

func NewRefreshRouter(baseCtx context.Context, timeout time.Duration, group *gin.RouterGroup, refresher controller.Refresher) {
	group.Use(middleware.RequestTimeout(timeout))

	rc := controller.NewRefreshController(baseCtx, refresher)

	group.GET("tasks", rc.ListTasks)
	group.POST("tasks/:name/run", rc.RunTask)
	group.POST("update", rc.Update)
	group.POST("reload", rc.Reload)
}
