package metrics

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestRegistryHealth tests that one failing component makes the registry unhealthy
func TestRegistryHealth(t *testing.T) {
	r := NewRegistry()
	r.SetVersion("1.0.0")
	r.Set("storage", nil)
	r.Set("upload", nil)

	h := r.Health()
	assert.Equal(t, StatusHealthy, h.Status)
	assert.Equal(t, "1.0.0", h.Version)
	assert.Len(t, h.Components, 2)

	r.Set("upload", errors.New("worker stopped"))
	h = r.Health()
	assert.Equal(t, StatusUnhealthy, h.Status)
	assert.Equal(t, "unhealthy: worker stopped", h.Components["upload"])
	assert.Equal(t, StatusHealthy, h.Components["storage"])

	r.Set("upload", nil)
	assert.Equal(t, StatusHealthy, r.Health().Status)
}

// TestRegistryReadiness tests readiness over the critical set
func TestRegistryReadiness(t *testing.T) {
	tests := []struct {
		name            string
		critical        []string
		report          map[string]error
		expectedStatus  string
		expectedMessage string
	}{
		{
			name:           "all critical ready",
			critical:       []string{"storage", "upload"},
			report:         map[string]error{"storage": nil, "upload": nil},
			expectedStatus: StatusReady,
		},
		{
			name:            "critical never reported",
			critical:        []string{"storage", "upload"},
			report:          map[string]error{"storage": nil},
			expectedStatus:  StatusNotReady,
			expectedMessage: "waiting for upload initialization",
		},
		{
			name:            "critical failing",
			critical:        []string{"storage"},
			report:          map[string]error{"storage": errors.New("disk full")},
			expectedStatus:  StatusNotReady,
			expectedMessage: "waiting for storage",
		},
		{
			name:           "non-critical failing",
			critical:       []string{"storage"},
			report:         map[string]error{"storage": nil, "grpc": errors.New("closed")},
			expectedStatus: StatusReady,
		},
		{
			name:           "empty critical set",
			expectedStatus: StatusReady,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRegistry(tt.critical...)
			for name, err := range tt.report {
				r.Set(name, err)
			}

			h := r.Readiness()
			assert.Equal(t, tt.expectedStatus, h.Status)
			assert.Equal(t, tt.expectedMessage, h.Message)
			assert.Len(t, h.Components, len(tt.critical))
		})
	}
}

// TestRegistryHandlers tests the status codes and bodies of the handlers
func TestRegistryHandlers(t *testing.T) {
	r := NewRegistry("storage")

	tests := []struct {
		name           string
		handler        http.HandlerFunc
		storage        error
		expectedStatus int
		expectedBody   string
	}{
		{name: "healthy", handler: r.HealthHandler(), expectedStatus: http.StatusOK, expectedBody: StatusHealthy},
		{name: "unhealthy", handler: r.HealthHandler(), storage: errors.New("x"), expectedStatus: http.StatusServiceUnavailable, expectedBody: StatusUnhealthy},
		{name: "ready", handler: r.ReadyHandler(), expectedStatus: http.StatusOK, expectedBody: StatusReady},
		{name: "not ready", handler: r.ReadyHandler(), storage: errors.New("x"), expectedStatus: http.StatusServiceUnavailable, expectedBody: StatusNotReady},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r.Set("storage", tt.storage)

			w := httptest.NewRecorder()
			tt.handler(w, httptest.NewRequest(http.MethodGet, "/", nil))

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

			var h HealthStatus
			require.NoError(t, json.NewDecoder(w.Body).Decode(&h))
			assert.Equal(t, tt.expectedBody, h.Status)
		})
	}
}

// TestRegistrySetCritical tests replacing the critical set
func TestRegistrySetCritical(t *testing.T) {
	r := NewRegistry("storage")
	assert.Equal(t, StatusNotReady, r.Readiness().Status)

	r.SetCritical("grpc")
	r.Set("grpc", nil)
	h := r.Readiness()
	assert.Equal(t, StatusReady, h.Status)
	assert.Contains(t, h.Components, "grpc")
	assert.NotContains(t, h.Components, "storage")
}
