package server

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/beasroy/shopify-SAAS-sub001/pkg/observability/logger"
)

const requestIDHeader = "X-Request-ID"

// requestID propagates the inbound request id, minting one when absent,
// and stores it on the request context for downstream log correlation.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Request = c.Request.WithContext(logger.ContextWithRequestID(c.Request.Context(), id))
		c.Writer.Header().Set(requestIDHeader, id)
		c.Next()
	}
}

// requestLogging logs one line per completed request.
func requestLogging(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []any{
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
		}
		ctxLog := log.WithContext(c.Request.Context())
		if c.Writer.Status() >= 500 {
			ctxLog.Error("request completed", fields...)
			return
		}
		ctxLog.Info("request completed", fields...)
	}
}
