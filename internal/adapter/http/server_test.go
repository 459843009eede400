package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emeze-dev/weather-energy-pipeline/internal/pipeline"
)

type stubChecker struct {
	err error
}

func (s stubChecker) CheckReadiness(context.Context) error {
	return s.err
}

type stubSummaries struct {
	summary *pipeline.RunSummary
}

func (s stubSummaries) LastSummary() *pipeline.RunSummary {
	return s.summary
}

func newTestServer(ready error, summary *pipeline.RunSummary) *Server {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewServer(":0", stubChecker{err: ready}, stubSummaries{summary: summary}, logger)
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(nil, nil)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"status":"healthy"}`, rec.Body.String())
}

func TestReadyz(t *testing.T) {
	t.Run("ready", func(t *testing.T) {
		srv := newTestServer(nil, nil)

		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("not ready", func(t *testing.T) {
		srv := newTestServer(errors.New("pipeline has not completed a run yet"), nil)

		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Contains(t, rec.Body.String(), "not completed a run")
	})
}

func TestSummary(t *testing.T) {
	t.Run("no run yet", func(t *testing.T) {
		srv := newTestServer(nil, nil)

		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/summary", nil))

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("returns last run", func(t *testing.T) {
		srv := newTestServer(nil, &pipeline.RunSummary{
			RunID:      "run-1",
			RowsMerged: 42,
			FailedCities: map[string][]string{
				"noaa": {"Houston"},
			},
		})

		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/summary", nil))

		require.Equal(t, http.StatusOK, rec.Code)

		var got pipeline.RunSummary
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Equal(t, "run-1", got.RunID)
		assert.Equal(t, 42, got.RowsMerged)
		assert.Equal(t, []string{"Houston"}, got.FailedCities["noaa"])
	})
}

func TestMetricsRoute(t *testing.T) {
	srv := newTestServer(nil, nil)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMethodNotAllowed(t *testing.T) {
	srv := newTestServer(nil, nil)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/healthz", nil))

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
