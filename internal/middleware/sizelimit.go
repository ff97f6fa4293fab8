package middleware

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/clinicore/scheduling-api/pkg/httputil"
)

// SizeLimitConfig represents size limit configuration
type SizeLimitConfig struct {
	MaxBodySize   int64 // in bytes
	MaxHeaderSize int   // in bytes
}

func DefaultSizeLimitConfig() SizeLimitConfig {
	return SizeLimitConfig{
		MaxBodySize:   1 << 20, // 1MB
		MaxHeaderSize: 1 << 14, // 16KB
	}
}

// SizeLimit middleware limits request sizes
func SizeLimit(config SizeLimitConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > config.MaxBodySize {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, httputil.Response{
				Status: "error",
				Error: &httputil.Error{
					Code:    "REQUEST_TOO_LARGE",
					Message: fmt.Sprintf("body size exceeds %d bytes", config.MaxBodySize),
				},
			})
			return
		}

		headerSize := 0
		for name, values := range c.Request.Header {
			headerSize += len(name)
			for _, value := range values {
				headerSize += len(value)
			}
		}
		if headerSize > config.MaxHeaderSize {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, httputil.Response{
				Status: "error",
				Error: &httputil.Error{
					Code:    "REQUEST_TOO_LARGE",
					Message: fmt.Sprintf("header size exceeds %d bytes", config.MaxHeaderSize),
				},
			})
			return
		}

		c.Next()
	}
}
