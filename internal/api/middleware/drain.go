package middleware

import (
	"net/http"

	apimodels "github.com/MacJediWizard/parkadmin/pkg/models"
	"github.com/gin-gonic/gin"
)

// DrainState reports whether the server still accepts mutations.
type DrainState interface {
	AcceptingMutations() bool
}

// RejectWhileDraining returns a Gin middleware that answers 503 to requests
// with unsafe methods once the server has started shutting down. Reads keep
// working until the listener closes.
func RejectWhileDraining(state DrainState) gin.HandlerFunc {
	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			c.Next()
			return
		}
		if !state.AcceptingMutations() {
			c.Header("Retry-After", "30")
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, apimodels.APIError{
				Error: "server is shutting down",
				Code:  http.StatusServiceUnavailable,
			})
			return
		}
		c.Next()
	}
}
