package middleware

import (
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// redactedParams are query parameters kept out of access logs. Search text is
// matched against tenant names and emails, so it counts as personal data.
var redactedParams = []string{"token", "access_token", "client_secret", "password", "email", "search"}

const redacted = "[REDACTED]"

// redactQueryString masks the values of redactedParams. A query that does not
// parse is dropped entirely rather than logged raw.
func redactQueryString(rawQuery string) string {
	if rawQuery == "" {
		return ""
	}

	params, err := url.ParseQuery(rawQuery)
	if err != nil {
		return redacted
	}

	changed := false
	for name, values := range params {
		if !slices.Contains(redactedParams, strings.ToLower(name)) {
			continue
		}
		for i := range values {
			values[i] = redacted
		}
		changed = true
	}
	if !changed {
		return rawQuery
	}
	return params.Encode()
}

// RequestLogger logs one line per request. Client errors log at warn and
// server errors at error; the tenant is attached for tenant routes.
func RequestLogger(logger zerolog.Logger) gin.HandlerFunc {
	log := logger.With().Str("component", "http").Logger()

	return func(c *gin.Context) {
		start := time.Now()
		query := redactQueryString(c.Request.URL.RawQuery)

		c.Next()

		status := c.Writer.Status()
		var event *zerolog.Event
		switch {
		case status >= 500:
			event = log.Error()
		case status >= 400:
			event = log.Warn()
		default:
			event = log.Info()
		}

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}

		event = event.
			Str("request_id", GetRequestID(c)).
			Str("method", c.Request.Method).
			Str("route", route).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Str("client_ip", c.ClientIP())
		if query != "" {
			event = event.Str("query", query)
		}
		if tenant := c.Param("tenantId"); tenant != "" {
			event = event.Str("tenant_id", tenant)
		}
		if len(c.Errors) > 0 {
			event = event.Str("errors", c.Errors.String())
		}
		event.Msg("request")
	}
}
