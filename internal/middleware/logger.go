package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/gridhq/tablecache/internal/requestctx"
	"github.com/gridhq/tablecache/pkg/logger"
)

// Logger writes a concise structured access log for each request,
// including the cache outcome when the request touched the cache.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		duration := time.Since(start)
		status := c.Writer.Status()

		fields := []zap.Field{
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", status),
			zap.Duration("duration", duration),
			zap.String("client_ip", c.ClientIP()),
		}
		if cs, ok := requestctx.FromContext(c.Request.Context()); ok {
			if hit, recorded := cs.Hit(); recorded {
				fields = append(fields, zap.Bool("cache_hit", hit))
			}
		}

		logger.WithModule("http").Info("request", fields...)
	}
}
