package route

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/bassista/go_refresh/internal/api/controller"
	"github.com/bassista/go_refresh/internal/api/middleware"
)

func NewRepositoryRouter(timeout time.Duration, group *gin.RouterGroup, source controller.StoreSource) {
	group.Use(middleware.RequestTimeout(timeout))

	rc := controller.NewRepositoryController(source)

	group.GET("repositories", rc.ListRepositories)
	group.GET("repositories/:type", rc.GetRepository)
}
