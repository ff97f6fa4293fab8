package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	HeaderXRequestID = "X-Request-ID"
	ContextRequestID = "request_id"

	maxRequestIDLen = 64
)

// RequestID tags every request with an ID, honouring a caller-supplied
// X-Request-ID so the ID stays stable across service hops. Missing or
// oversized values are replaced with a fresh UUID.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(HeaderXRequestID)
		if rid == "" || len(rid) > maxRequestIDLen {
			rid = uuid.New().String()
		}

		c.Set(ContextRequestID, rid)
		c.Header(HeaderXRequestID, rid)
		c.Next()
	}
}

// RequestIDFromContext returns the ID assigned by RequestID, or an
// empty string when the middleware did not run.
func RequestIDFromContext(c *gin.Context) string {
	return c.GetString(ContextRequestID)
}
