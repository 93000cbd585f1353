package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/MacJediWizard/parkadmin/internal/config"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

var (
	corsAllowHeaders  = strings.Join([]string{"Content-Type", "Authorization", RequestIDHeader}, ", ")
	corsAllowMethods  = strings.Join([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions}, ", ")
	corsExposeHeaders = strings.Join([]string{RequestIDHeader, "Retry-After", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"}, ", ")
)

// CORS lets the dashboard frontend call the API from its own origin.
// Production requires an explicit origin list; elsewhere an empty list
// allows every origin with a warning.
func CORS(allowedOrigins []string, env config.Environment, logger zerolog.Logger) (gin.HandlerFunc, error) {
	if len(allowedOrigins) == 0 {
		if env == config.EnvProduction {
			return nil, errors.New("CORS_ORIGINS must be set in production")
		}
		logger.Warn().Msg("CORS_ORIGINS is empty, all origins are allowed")
	}

	origins := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		origins[strings.ToLower(strings.TrimRight(o, "/"))] = true
	}
	allowed := func(origin string) bool {
		return len(origins) == 0 || origins[strings.ToLower(origin)]
	}

	return func(c *gin.Context) {
		if origin := c.GetHeader("Origin"); origin != "" && allowed(origin) {
			h := c.Writer.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Credentials", "true")
			h.Set("Access-Control-Allow-Headers", corsAllowHeaders)
			h.Set("Access-Control-Allow-Methods", corsAllowMethods)
			h.Set("Access-Control-Expose-Headers", corsExposeHeaders)
			h.Set("Access-Control-Max-Age", "86400")
			h.Add("Vary", "Origin")
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}, nil
}
