package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

type CORSConfig struct {
	AllowOrigins     []string
	AllowMethods     []string
	AllowHeaders     []string
	ExposeHeaders    []string
	AllowCredentials bool
	MaxAge           int
}

func DefaultCORSConfig() CORSConfig {
	return CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodPatch,
			http.MethodDelete,
			http.MethodOptions,
		},
		AllowHeaders: []string{
			"Origin",
			"Content-Type",
			"Accept",
			"Authorization",
			"X-Requested-With",
		},
		ExposeHeaders: []string{
			"Content-Length",
			"Content-Type",
			"X-Request-ID",
		},
		AllowCredentials: true,
		MaxAge:           86400,
	}
}

// CORS answers cross-origin requests from the configured origins.
// Origins outside the list get no CORS headers at all, so the browser
// rejects the response.
func CORS(config CORSConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" {
			if allowed := matchOrigin(config, origin); allowed != "" {
				c.Header("Access-Control-Allow-Origin", allowed)
				c.Header("Vary", "Origin")
				c.Header("Access-Control-Expose-Headers", strings.Join(config.ExposeHeaders, ", "))
				if config.AllowCredentials {
					c.Header("Access-Control-Allow-Credentials", "true")
				}
				if c.Request.Method == http.MethodOptions {
					c.Header("Access-Control-Allow-Methods", strings.Join(config.AllowMethods, ", "))
					c.Header("Access-Control-Allow-Headers", strings.Join(config.AllowHeaders, ", "))
					c.Header("Access-Control-Max-Age", strconv.Itoa(config.MaxAge))
				}
			}
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// matchOrigin returns the Allow-Origin value for origin, or "" when
// the origin is not in the list. A wildcard entry echoes the caller's
// origin when credentials are allowed, because browsers reject "*"
// combined with credentials.
func matchOrigin(config CORSConfig, origin string) string {
	for _, o := range config.AllowOrigins {
		if o == "*" {
			if config.AllowCredentials {
				return origin
			}
			return "*"
		}
		if o == origin {
			return o
		}
	}
	return ""
}
