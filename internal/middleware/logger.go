package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/clinicore/scheduling-api/pkg/logger"
)

// Logger returns a middleware that logs HTTP requests. Request bodies
// are never logged; appointment payloads carry patient data.
func Logger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		if raw := c.Request.URL.RawQuery; raw != "" {
			path = path + "?" + raw
		}

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		event := log.Zerolog().Info()
		msg := "Request processed"
		switch {
		case status >= 500:
			event = log.Zerolog().Error()
			msg = "Server error"
		case status >= 400:
			event = log.Zerolog().Warn()
			msg = "Client error"
		}

		event.
			Str("request_id", RequestIDFromContext(c)).
			Str("client_ip", c.ClientIP()).
			Str("method", c.Request.Method).
			Str("path", path).
			Int("status", status).
			Dur("latency", latency).
			Str("user_agent", c.Request.UserAgent()).
			Msg(msg)
	}
}
