package http_test

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpadapter "github.com/couchcryptid/climate-anomaly-etl/internal/adapter/http"
	"github.com/couchcryptid/climate-anomaly-etl/internal/domain"
)

type mockSource struct {
	res *domain.RunResult
}

func (m *mockSource) Ready() bool { return m.res != nil }

func (m *mockSource) LastResult() *domain.RunResult { return m.res }

func newTestServer(res *domain.RunResult) *httpadapter.Server {
	return httpadapter.NewServer(":0", &mockSource{res: res}, slog.Default())
}

func sampleResult() *domain.RunResult {
	return &domain.RunResult{
		RunID:        "run-42",
		Dataset:      "era5-monthly",
		Variable:     "skt",
		Units:        "degC",
		GeneratedAt:  time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC),
		BaselineFrom: 1991,
		BaselineTo:   2020,
		Timesteps:    420,
		LatCells:     180,
		LonCells:     360,
	}
}

func TestHealthzReturns200(t *testing.T) {
	srv := newTestServer(nil)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
}

func TestReadyzReturns200WhenReady(t *testing.T) {
	srv := newTestServer(sampleResult())
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ready", body["status"])
}

func TestReadyzReturns503BeforeFirstRun(t *testing.T) {
	srv := newTestServer(nil)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "not ready", body["status"])
	assert.Equal(t, "no completed run yet", body["error"])
}

func TestSummaryReturns404BeforeFirstRun(t *testing.T) {
	srv := newTestServer(nil)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/summary", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSummaryReturnsLastResult(t *testing.T) {
	srv := newTestServer(sampleResult())
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/summary", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body domain.RunResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "run-42", body.RunID)
	assert.Equal(t, "skt", body.Variable)
	assert.Equal(t, 420, body.Timesteps)
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(nil)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
