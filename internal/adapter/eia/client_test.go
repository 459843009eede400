package eia

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emeze-dev/weather-energy-pipeline/internal/config"
	"github.com/emeze-dev/weather-energy-pipeline/internal/observability"
)

var testCity = config.City{
	Name:          "New York",
	NOAAStationID: "GHCND:USW00094728",
	EIARegionCode: "NYIS",
}

func newTestClient(baseURL string, pageLimit int) *Client {
	cfg := &config.Config{
		EIAAPIKey:        "test-key",
		EIABaseURL:       baseURL,
		PageLimit:        pageLimit,
		RetryMaxAttempts: 2,
		RetryBaseDelay:   time.Millisecond,
		RetryMaxDelay:    5 * time.Millisecond,
	}
	return NewClient(cfg, observability.NewMetricsForTesting(), slog.Default())
}

func fetchWindow() (time.Time, time.Time) {
	return time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC), time.Date(2026, 6, 3, 0, 0, 0, 0, time.UTC)
}

func TestFetchDaily_SinglePage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "test-key", q.Get("api_key"))
		assert.Equal(t, "daily", q.Get("frequency"))
		assert.Equal(t, "NYIS", q.Get("facets[respondent][]"))
		assert.Equal(t, "period", q.Get("sort[0][column]"))

		fmt.Fprint(w, `{"response": {"total": "2", "data": [
			{"period": "2026-06-01", "respondent": "NYIS", "value": 123456, "value-units": "megawatthours"},
			{"period": "2026-06-02", "respondent": "NYIS", "value": 130000.5, "value-units": "megawatthours"}
		]}}`)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, 1000)
	start, end := fetchWindow()
	records, err := c.FetchDaily(context.Background(), testCity, start, end)

	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "New York", records[0].City)
	assert.Equal(t, "NYIS", records[0].Region)
	assert.Equal(t, 123456.0, records[0].ConsumptionMWh)
	assert.Equal(t, time.Date(2026, 6, 2, 0, 0, 0, 0, time.UTC), records[1].Date)
}

func TestFetchDaily_Paginates(t *testing.T) {
	var offsets []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		offset := r.URL.Query().Get("offset")
		offsets = append(offsets, offset)

		switch offset {
		case "0":
			fmt.Fprint(w, `{"response": {"total": "3", "data": [
				{"period": "2026-06-01", "respondent": "NYIS", "value": 100},
				{"period": "2026-06-02", "respondent": "NYIS", "value": 110}
			]}}`)
		default:
			fmt.Fprint(w, `{"response": {"total": "3", "data": [
				{"period": "2026-06-03", "respondent": "NYIS", "value": 95}
			]}}`)
		}
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, 2)
	start, end := fetchWindow()
	records, err := c.FetchDaily(context.Background(), testCity, start, end)

	require.NoError(t, err)
	assert.Equal(t, []string{"0", "2"}, offsets)
	require.Len(t, records, 3)
	assert.Equal(t, 95.0, records[2].ConsumptionMWh)
}

func TestFetchDaily_NumericTotal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"response": {"total": 1, "data": [
			{"period": "2026-06-01", "respondent": "NYIS", "value": 100}
		]}}`)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, 1000)
	start, end := fetchWindow()
	records, err := c.FetchDaily(context.Background(), testCity, start, end)

	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestFetchDaily_DropsNullValues(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"response": {"total": "2", "data": [
			{"period": "2026-06-01", "respondent": "NYIS", "value": null},
			{"period": "2026-06-02", "respondent": "NYIS", "value": 110}
		]}}`)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, 1000)
	start, end := fetchWindow()
	records, err := c.FetchDaily(context.Background(), testCity, start, end)

	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 110.0, records[0].ConsumptionMWh)
}

func TestFetchDaily_NegativeValueKept(t *testing.T) {
	// Negative demand is a data-quality issue for the processor to flag,
	// not for the fetcher to hide.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"response": {"total": "1", "data": [
			{"period": "2026-06-01", "respondent": "NYIS", "value": -42}
		]}}`)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, 1000)
	start, end := fetchWindow()
	records, err := c.FetchDaily(context.Background(), testCity, start, end)

	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, -42.0, records[0].ConsumptionMWh)
}

func TestFetchDaily_UpstreamFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, 1000)
	start, end := fetchWindow()
	_, err := c.FetchDaily(context.Background(), testCity, start, end)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "NYIS")
}
