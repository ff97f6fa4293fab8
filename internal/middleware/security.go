package middleware

import (
	"fmt"

	"github.com/gin-gonic/gin"
)

// SecurityConfig controls the hardening headers attached to every
// response.
type SecurityConfig struct {
	HSTS       bool
	HSTSMaxAge int
	// NoStore disables browser and intermediary caching. Appointment
	// and patient responses carry medical data, so it defaults on.
	NoStore bool
}

func DefaultSecurityConfig() SecurityConfig {
	return SecurityConfig{
		HSTS:       true,
		HSTSMaxAge: 31536000,
		NoStore:    true,
	}
}

// SecurityHeaders sets the standard hardening headers for a JSON API.
func SecurityHeaders(config SecurityConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		if config.HSTS {
			c.Header("Strict-Transport-Security",
				fmt.Sprintf("max-age=%d; includeSubDomains", config.HSTSMaxAge))
		}

		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "no-referrer")

		if config.NoStore {
			c.Header("Cache-Control", "no-store")
		}

		c.Next()
	}
}
