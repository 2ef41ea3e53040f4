package api

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/telekom/regression-notifier/pkg/system"
)

// RequestIDHeader carries the request id. A client-supplied value is kept.
const RequestIDHeader = "X-Request-ID"

// requestLogger stores a logger carrying the request id under
// system.ReqLoggerKey.
func requestLogger(log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Header(RequestIDHeader, id)
		c.Set(system.ReqLoggerKey, log.With("requestID", id))
		c.Next()
	}
}
