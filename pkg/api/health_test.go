package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cuemby/glean/pkg/metrics"
	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gzipped(t *testing.T, v any) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err = zw.Write(data)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

// TestHealthHandler tests the /health endpoint
func TestHealthHandler(t *testing.T) {
	hs := NewHealthServer(nil)

	tests := []struct {
		name           string
		method         string
		expectedStatus int
	}{
		{name: "GET request succeeds", method: http.MethodGet, expectedStatus: http.StatusOK},
		{name: "POST request fails", method: http.MethodPost, expectedStatus: http.StatusMethodNotAllowed},
		{name: "DELETE request fails", method: http.MethodDelete, expectedStatus: http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/health", nil)
			w := httptest.NewRecorder()

			hs.healthHandler(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.expectedStatus == http.StatusOK {
				var response HealthResponse
				assert.NoError(t, json.NewDecoder(w.Body).Decode(&response))
				assert.Equal(t, "healthy", response.Status)
				assert.NotEmpty(t, response.Version)
				assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
			}
		})
	}
}

// TestReadyHandler tests readiness with and without a collector
func TestReadyHandler(t *testing.T) {
	metrics.SetCriticalComponents()
	t.Cleanup(func() { metrics.SetCriticalComponents(metrics.DefaultCriticalComponents...) })

	tests := []struct {
		name           string
		collector      *Collector
		expectedStatus int
		expectedState  string
	}{
		{name: "no collector", expectedStatus: http.StatusServiceUnavailable, expectedState: "not ready"},
		{name: "collector", collector: NewCollector(10, nil), expectedStatus: http.StatusOK, expectedState: "ready"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hs := NewHealthServer(tt.collector)
			req := httptest.NewRequest(http.MethodGet, "/ready", nil)
			w := httptest.NewRecorder()

			hs.readyHandler(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			var response ReadyResponse
			assert.NoError(t, json.NewDecoder(w.Body).Decode(&response))
			assert.Equal(t, tt.expectedState, response.Status)
			assert.Contains(t, response.Checks, "collector")
		})
	}
}

// TestReadyHandlerCriticalComponent tests that an unhealthy critical component fails readiness
func TestReadyHandlerCriticalComponent(t *testing.T) {
	metrics.SetCriticalComponents("grpc")
	t.Cleanup(func() { metrics.SetCriticalComponents(metrics.DefaultCriticalComponents...) })
	metrics.SetComponentStatus("grpc", errors.New("listener closed"))

	hs := NewHealthServer(NewCollector(10, nil))
	w := httptest.NewRecorder()
	hs.readyHandler(w, httptest.NewRequest(http.MethodGet, "/ready", nil))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	var response ReadyResponse
	assert.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	assert.Contains(t, response.Checks["grpc"], "listener closed")
	assert.Equal(t, "waiting for grpc", response.Message)
}

// TestSubmitHandler tests HTTP ping submission
func TestSubmitHandler(t *testing.T) {
	payload := map[string]any{"ping_info": map[string]any{"seq": 0}}

	tests := []struct {
		name           string
		method         string
		path           string
		body           []byte
		gzip           bool
		expectedStatus int
	}{
		{name: "gzipped ping", method: http.MethodPost, path: "/submit/app/metrics/1/abc", body: gzipped(t, payload), gzip: true, expectedStatus: http.StatusOK},
		{name: "plain ping", method: http.MethodPut, path: "/submit/app/metrics/1/def", body: []byte(`{"a":1}`), expectedStatus: http.StatusOK},
		{name: "bad path", method: http.MethodPost, path: "/submit/app/metrics", body: []byte(`{}`), expectedStatus: http.StatusNotFound},
		{name: "bad json", method: http.MethodPost, path: "/submit/app/metrics/1/ghi", body: []byte(`nope`), expectedStatus: http.StatusBadRequest},
		{name: "bad gzip", method: http.MethodPost, path: "/submit/app/metrics/1/jkl", body: []byte(`{}`), gzip: true, expectedStatus: http.StatusBadRequest},
		{name: "GET rejected", method: http.MethodGet, path: "/submit/app/metrics/1/mno", expectedStatus: http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			collector := NewCollector(10, nil)
			hs := NewHealthServer(collector)

			req := httptest.NewRequest(tt.method, tt.path, bytes.NewReader(tt.body))
			if tt.gzip {
				req.Header.Set("Content-Encoding", "gzip")
			}
			w := httptest.NewRecorder()

			hs.GetHandler().ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.expectedStatus == http.StatusOK {
				require.Len(t, collector.Received(), 1)
				assert.Equal(t, "http", collector.Received()[0].Transport)
			} else {
				assert.Empty(t, collector.Received())
			}
		})
	}
}

// TestSubmitHandlerBodyTooLarge tests the collector body limit
func TestSubmitHandlerBodyTooLarge(t *testing.T) {
	collector := NewCollector(10, nil)
	collector.maxBodySize = 8
	hs := NewHealthServer(collector)

	req := httptest.NewRequest(http.MethodPost, "/submit/app/metrics/1/abc", bytes.NewReader([]byte(`{"a":"0123456789"}`)))
	w := httptest.NewRecorder()
	hs.GetHandler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

// TestNewHealthServer tests route registration
func TestNewHealthServer(t *testing.T) {
	hs := NewHealthServer(nil)
	assert.NotNil(t, hs.mux)

	tests := []struct {
		path           string
		expectedStatus int
	}{
		{path: "/health", expectedStatus: http.StatusOK},
		{path: "/metrics", expectedStatus: http.StatusOK},
		{path: "/nonexistent", expectedStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			w := httptest.NewRecorder()

			hs.mux.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code, "Path: %s", tt.path)
		})
	}
}
