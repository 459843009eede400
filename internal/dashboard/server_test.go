package dashboard

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emeze-dev/weather-energy-pipeline/internal/config"
	"github.com/emeze-dev/weather-energy-pipeline/internal/domain"
	"github.com/emeze-dev/weather-energy-pipeline/internal/observability"
	"github.com/emeze-dev/weather-energy-pipeline/internal/storage"
)

var serverCities = []config.City{
	{Name: "Phoenix", NOAAStationID: "GHCND:USW00023183", EIARegionCode: "AZPS", Lat: 33.4, Lon: -112.1},
	{Name: "Seattle", NOAAStationID: "GHCND:USW00024233", EIARegionCode: "SCL", Lat: 47.6, Lon: -122.3},
}

func newDashboard(t *testing.T, records []domain.MergedRecord) *Server {
	t.Helper()
	store := storage.New(t.TempDir())
	if records != nil {
		require.NoError(t, store.WriteMerged(records))
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewServer(":0", NewTable(store), serverCities, 48*time.Hour, logger, observability.NewMetricsForTesting())
}

func get(t *testing.T, srv *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func testRecords() []domain.MergedRecord {
	return []domain.MergedRecord{
		row("Phoenix", 1, 96, 50000),
		row("Phoenix", 2, 100, 54000),
		row("Seattle", 1, 60, 30000),
		row("Seattle", 2, 64, 31000),
	}
}

func TestIndexPage(t *testing.T) {
	rec := get(t, newDashboard(t, testRecords()), "/")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "Weather &amp; Energy Dashboard")
	assert.Contains(t, rec.Body.String(), "timeseries-chart")
}

func TestAPISummary(t *testing.T) {
	rec := get(t, newDashboard(t, testRecords()), "/api/summary")
	require.Equal(t, http.StatusOK, rec.Code)

	var got struct {
		RowCount  int      `json:"row_count"`
		Cities    []string `json:"cities"`
		StartDate string   `json:"start_date"`
		EndDate   string   `json:"end_date"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, 4, got.RowCount)
	assert.Equal(t, []string{"Phoenix", "Seattle"}, got.Cities)
	assert.Equal(t, "2026-06-01", got.StartDate)
	assert.Equal(t, "2026-06-02", got.EndDate)
}

func TestAPICities(t *testing.T) {
	rec := get(t, newDashboard(t, testRecords()), "/api/cities")
	require.Equal(t, http.StatusOK, rec.Code)

	var got []CitySummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 2)
	assert.Equal(t, "Phoenix", got[0].Name)
	assert.Equal(t, 2, got[0].Days)
}

func TestAPITimeseries_CityFilter(t *testing.T) {
	rec := get(t, newDashboard(t, testRecords()), "/api/timeseries?city=Seattle")
	require.Equal(t, http.StatusOK, rec.Code)

	var got []TimeseriesPoint
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 2)
	require.NotNil(t, got[0].AvgMaxTempF)
	assert.InDelta(t, 60, *got[0].AvgMaxTempF, 1e-9)
	assert.InDelta(t, 30000, got[0].AvgConsumptionMWh, 1e-9)
}

func TestAPICorrelation(t *testing.T) {
	rec := get(t, newDashboard(t, testRecords()), "/api/correlation")
	require.Equal(t, http.StatusOK, rec.Code)

	var got struct {
		Points []ScatterPoint `json:"points"`
		Trend  *Trend         `json:"trend"`
		Result struct {
			Overall *float64 `json:"overall"`
		} `json:"result"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Len(t, got.Points, 4)
	assert.NotNil(t, got.Trend)
	assert.NotNil(t, got.Result.Overall)
}

func TestAPIHeatmap_DateFilter(t *testing.T) {
	rec := get(t, newDashboard(t, testRecords()), "/api/heatmap?start=2026-06-02&end=2026-06-02")
	require.Equal(t, http.StatusOK, rec.Code)

	var got []HeatmapCell
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))

	total := 0
	for _, cell := range got {
		total += cell.Days
	}
	assert.Equal(t, 2, total, "only June 2 rows remain after the filter")
}

func TestAPIQuality(t *testing.T) {
	records := testRecords()
	flagged := row("Phoenix", 3, 95, -100)
	flagged.Flags = []domain.Flag{domain.FlagNegativeEnergy}
	records = append(records, flagged)

	rec := get(t, newDashboard(t, records), "/api/quality")
	require.Equal(t, http.StatusOK, rec.Code)

	var got domain.QualityReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, 5, got.RowCount)
	assert.Equal(t, 1, got.NegativeEnergy)
}

func TestBadFilterRejected(t *testing.T) {
	rec := get(t, newDashboard(t, testRecords()), "/api/timeseries?start=tomorrow")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid start date")
}

func TestNoMergedTableYet(t *testing.T) {
	rec := get(t, newDashboard(t, nil), "/api/summary")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "run the pipeline first")
}

func TestDashboardHealthz(t *testing.T) {
	rec := get(t, newDashboard(t, nil), "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, rec.Body.String())
}
