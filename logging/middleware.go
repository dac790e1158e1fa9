package logging

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const RequestIDHeader = "X-Request-ID"

// GinMiddleware adds a request ID to each request and logs request/response
func GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.New().String()
		}
		ctx := WithRequestID(c.Request.Context(), requestID)
		c.Request = c.Request.WithContext(ctx)
		c.Header(RequestIDHeader, requestID)

		start := time.Now()
		DebugContext(ctx, "request started",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"remoteAddr", c.ClientIP(),
		)

		c.Next()

		status := c.Writer.Status()
		args := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			"durationMs", time.Since(start).Milliseconds(),
		}
		if status >= 500 {
			ErrorContext(ctx, "request failed", args...)
		} else if status >= 400 {
			WarnContext(ctx, "request rejected", args...)
		} else {
			InfoContext(ctx, "request completed", args...)
		}
	}
}
