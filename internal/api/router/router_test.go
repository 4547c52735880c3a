package router

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/thegunner2008/taskpay-be/internal/api/handler"
)

func newTestRouter() http.Handler {
	deps := &handler.Dependencies{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	return SetupRouter(deps, &Config{SessionSecret: "test-secret"})
}

func TestHealthEndpoint(t *testing.T) {
	r := newTestRouter()

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	// No infrastructure clients are wired, so nothing can fail.
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "taskpay-api-service")
}

func TestProtectedRoutesRequireAuth(t *testing.T) {
	r := newTestRouter()

	routes := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/v1/jobs/current"},
		{http.MethodPost, "/api/v1/jobs/start"},
		{http.MethodPost, "/api/v1/jobs/finish"},
		{http.MethodPost, "/api/v1/jobs/finish_tool"},
		{http.MethodPost, "/api/v1/jobs/cancel"},
		{http.MethodGet, "/api/v1/jobs/remain"},
		{http.MethodGet, "/api/v1/transactions"},
		{http.MethodGet, "/api/v1/debug/counters"},
	}

	for _, rt := range routes {
		t.Run(rt.method+" "+rt.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(rt.method, rt.path, nil))

			assert.Equal(t, http.StatusUnauthorized, w.Code)
		})
	}
}

func TestCORSPreflight(t *testing.T) {
	r := newTestRouter()

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodOptions, "/api/v1/jobs/current", nil))

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}
