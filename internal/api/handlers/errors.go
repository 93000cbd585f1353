package handlers

import (
	"errors"
	"net/http"

	"github.com/MacJediWizard/parkadmin/internal/api/middleware"
	"github.com/MacJediWizard/parkadmin/internal/subscription"
	apimodels "github.com/MacJediWizard/parkadmin/pkg/models"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// respondError maps engine errors to HTTP responses. Validation failures are
// 400s, backend failures 502s carrying the backend's message verbatim, and
// anything else a 500 with a generic message.
func respondError(c *gin.Context, logger zerolog.Logger, err error, fallback string) {
	var verr *subscription.ValidationError
	var terr *subscription.TransportError

	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, apimodels.APIError{
			Error:   verr.Error(),
			Code:    http.StatusBadRequest,
			Details: verr.Field,
		})
	case errors.As(err, &terr):
		logger.Warn().Err(err).
			Str("op", terr.Op).
			Str("request_id", middleware.GetRequestID(c)).
			Msg(fallback)
		c.JSON(http.StatusBadGateway, apimodels.APIError{
			Error:   terr.Error(),
			Code:    http.StatusBadGateway,
			Details: terr.Op,
		})
	default:
		logger.Error().Err(err).
			Str("request_id", middleware.GetRequestID(c)).
			Msg(fallback)
		c.JSON(http.StatusInternalServerError, apimodels.APIError{
			Error: fallback,
			Code:  http.StatusInternalServerError,
		})
	}
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, apimodels.APIError{Error: message, Code: http.StatusBadRequest})
}

func notFound(c *gin.Context, message string) {
	c.JSON(http.StatusNotFound, apimodels.APIError{Error: message, Code: http.StatusNotFound})
}
