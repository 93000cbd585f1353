package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
)

// cspAPI allows nothing: the API serves JSON and a websocket, never documents.
const cspAPI = "default-src 'none'; frame-ancestors 'none'"

// SecurityHeaders sets response headers for a JSON-only API. Dashboard data
// is tenant data, so API responses are marked uncacheable.
func SecurityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")
		h.Set("Content-Security-Policy", cspAPI)
		if strings.HasPrefix(c.Request.URL.Path, "/api/") {
			h.Set("Cache-Control", "no-store")
		}
		if c.Request.TLS != nil {
			h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}
		c.Next()
	}
}
