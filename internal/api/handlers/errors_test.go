package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/MacJediWizard/parkadmin/internal/backend"
	"github.com/MacJediWizard/parkadmin/internal/subscription"
	apimodels "github.com/MacJediWizard/parkadmin/pkg/models"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

func TestRespondError(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantError  string
	}{
		{
			name:       "validation",
			err:        &subscription.ValidationError{Field: "plan_id", Message: "no plan selected"},
			wantStatus: http.StatusBadRequest,
			wantError:  "plan_id: no plan selected",
		},
		{
			name: "wrapped transport keeps backend message",
			err: fmt.Errorf("load subscriptions: %w", &subscription.TransportError{
				Op:  "list tenant subscriptions",
				Err: &backend.APIError{StatusCode: http.StatusServiceUnavailable, Message: "maintenance window"},
			}),
			wantStatus: http.StatusBadGateway,
			wantError:  "maintenance window",
		},
		{
			name:       "unexpected",
			err:        errors.New("boom"),
			wantStatus: http.StatusInternalServerError,
			wantError:  "failed to do thing",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest("GET", "/", nil)

			respondError(c, zerolog.Nop(), tt.err, "failed to do thing")

			if w.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d", tt.wantStatus, w.Code)
			}
			var body apimodels.APIError
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatalf("failed to decode body: %v", err)
			}
			if body.Error != tt.wantError {
				t.Errorf("error = %q, want %q", body.Error, tt.wantError)
			}
			if body.Code != tt.wantStatus {
				t.Errorf("code = %d, want %d", body.Code, tt.wantStatus)
			}
		})
	}
}
