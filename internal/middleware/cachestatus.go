package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/gridhq/tablecache/internal/requestctx"
)

// CacheStatus installs a fresh per-request cache status into the
// request context before any cache access happens. Downstream layers
// mark it; the access logger reads it after completion.
func CacheStatus() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, _ := requestctx.WithStatus(c.Request.Context())
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
