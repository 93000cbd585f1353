package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

type fakeData struct {
	loadedAt time.Time
	n        int
}

func (f fakeData) LoadedAt() time.Time { return f.loadedAt }
func (f fakeData) Len() int            { return f.n }

type fakeCache struct{ err error }

func (f fakeCache) Ping(context.Context) error { return f.err }

type fakeDrain struct{ accepting bool }

func (f fakeDrain) AcceptingMutations() bool { return f.accepting }

func healthRequest(t *testing.T, h *HealthHandler) (int, HealthResponse) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h.RegisterPublicRoutes(r)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/health", nil))

	var resp HealthResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode health response: %v", err)
	}
	return w.Code, resp
}

func TestHealthHandler_Overall(t *testing.T) {
	loaded := fakeData{loadedAt: time.Now(), n: 3}

	tests := []struct {
		name       string
		data       DataState
		cache      CachePinger
		drain      DrainState
		wantStatus int
		failing    string
	}{
		{name: "healthy", data: loaded, wantStatus: http.StatusOK},
		{name: "healthy with cache", data: loaded, cache: fakeCache{}, wantStatus: http.StatusOK},
		{name: "not loaded", data: fakeData{}, wantStatus: http.StatusServiceUnavailable, failing: "subscriptions"},
		{name: "cache down", data: loaded, cache: fakeCache{err: errors.New("connection refused")}, wantStatus: http.StatusServiceUnavailable, failing: "cache"},
		{name: "running", data: loaded, drain: fakeDrain{accepting: true}, wantStatus: http.StatusOK},
		{name: "draining", data: loaded, drain: fakeDrain{accepting: false}, wantStatus: http.StatusServiceUnavailable, failing: "shutdown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthHandler(tt.data, tt.cache, zerolog.Nop())
			if tt.drain != nil {
				h.SetDrainState(tt.drain)
			}

			code, resp := healthRequest(t, h)
			if code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", code, tt.wantStatus)
			}
			if tt.failing == "" {
				if resp.Status != HealthStatusHealthy {
					t.Errorf("overall = %q, want healthy", resp.Status)
				}
				return
			}
			check, ok := resp.Checks[tt.failing]
			if !ok {
				t.Fatalf("missing %q check in %+v", tt.failing, resp.Checks)
			}
			if check.Status != HealthStatusUnhealthy || check.Error == "" {
				t.Errorf("%s check = %+v, want unhealthy with an error", tt.failing, check)
			}
		})
	}
}

func TestHealthHandler_Live(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewHealthHandler(fakeData{}, nil, zerolog.Nop()).RegisterPublicRoutes(r)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/health/live", nil))
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 even before data loads", w.Code)
	}
}

func TestVersionHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewVersionHandler(VersionInfo{Version: "1.0.0", Commit: "abc123"}).RegisterPublicRoutes(r)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/version", nil))

	var info VersionInfo
	if err := json.Unmarshal(w.Body.Bytes(), &info); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if info.Version != "1.0.0" || info.Commit != "abc123" {
		t.Errorf("version = %+v", info)
	}
}
