package httpserver_test

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ackgis/weather-traffic-etl/internal/adapter/httpserver"
)

type stubStatus struct {
	readyErr  error
	completed int
	total     int
}

func (s *stubStatus) CheckReadiness(context.Context) error { return s.readyErr }
func (s *stubStatus) Progress() (int, int)                 { return s.completed, s.total }

func get(t *testing.T, srv *httpserver.Server, path string) (int, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec.Code, body
}

func TestHealthz(t *testing.T) {
	srv := httpserver.NewServer(":0", &stubStatus{}, slog.Default())
	code, body := get(t, srv, "/healthz")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "healthy", body["status"])
}

func TestReadyz(t *testing.T) {
	srv := httpserver.NewServer(":0", &stubStatus{}, slog.Default())
	code, body := get(t, srv, "/readyz")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ready", body["status"])
}

func TestReadyz_NotReady(t *testing.T) {
	srv := httpserver.NewServer(":0", &stubStatus{readyErr: errors.New("no stage done")}, slog.Default())
	code, body := get(t, srv, "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "not ready", body["status"])
	assert.Equal(t, "no stage done", body["error"])
}

func TestStatusz(t *testing.T) {
	srv := httpserver.NewServer(":0", &stubStatus{completed: 3, total: 8}, slog.Default())
	code, body := get(t, srv, "/statusz")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(3), body["stages_completed"])
	assert.Equal(t, float64(8), body["stages_total"])
}

func TestMetricsEndpoint(t *testing.T) {
	srv := httpserver.NewServer(":0", &stubStatus{}, slog.Default())
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
