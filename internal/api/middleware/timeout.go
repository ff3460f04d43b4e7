package middleware

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/bassista/go_refresh/internal/logger"
)

// RequestTimeout bounds the request context of read endpoints. Handlers must
// honor ctx.Done(); a handler that gives up without writing gets a 504.
// Refresh handlers run their work on the application context, so the
// deadline does not interrupt a cycle.
func RequestTimeout(d time.Duration) gin.HandlerFunc {
	if d <= 0 {
		return func(c *gin.Context) { c.Next() }
	}

	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), d)
		defer cancel()

		c.Request = c.Request.WithContext(ctx)
		c.Next()

		if !errors.Is(ctx.Err(), context.DeadlineExceeded) || c.Writer.Written() {
			return
		}
		logger.WithComponent("http").Warnf("%s %s exceeded the %s request timeout", c.Request.Method, c.Request.URL.Path, d)
		c.AbortWithStatusJSON(http.StatusGatewayTimeout, gin.H{
			"error":   "request timeout",
			"timeout": d.String(),
		})
	}
}
