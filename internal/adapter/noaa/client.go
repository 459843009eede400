// Package noaa fetches daily TMAX/TMIN observations from the NOAA Climate
// Data Online (CDO) v2 API.
package noaa

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/emeze-dev/weather-energy-pipeline/internal/adapter/httpretry"
	"github.com/emeze-dev/weather-energy-pipeline/internal/config"
	"github.com/emeze-dev/weather-energy-pipeline/internal/domain"
	"github.com/emeze-dev/weather-energy-pipeline/internal/observability"
)

// cdoDateLayout is how CDO formats observation timestamps.
const cdoDateLayout = "2006-01-02T15:04:05"

// Client pages through the CDO data endpoint for one station at a time.
type Client struct {
	token     string
	baseURL   string
	pageLimit int
	doer      *httpretry.Doer
	metrics   *observability.Metrics
	logger    *slog.Logger
}

// NewClient creates a CDO client from service configuration.
func NewClient(cfg *config.Config, metrics *observability.Metrics, logger *slog.Logger) *Client {
	retryCfg := httpretry.Config{
		MaxAttempts: cfg.RetryMaxAttempts,
		BaseDelay:   cfg.RetryBaseDelay,
		MaxDelay:    cfg.RetryMaxDelay,
	}
	httpClient := &http.Client{Timeout: 30 * time.Second}

	return &Client{
		token:     cfg.NOAAToken,
		baseURL:   cfg.NOAABaseURL,
		pageLimit: cfg.PageLimit,
		doer:      httpretry.New("noaa", httpClient, retryCfg, metrics, logger),
		metrics:   metrics,
		logger:    logger,
	}
}

// FetchDaily retrieves every TMAX/TMIN observation for the city's station in
// [start, end], following resultset pagination. Values stay in CDO's native
// tenths of Celsius; conversion happens during processing.
func (c *Client) FetchDaily(ctx context.Context, city config.City, start, end time.Time) ([]domain.WeatherObservation, error) {
	var obs []domain.WeatherObservation

	// CDO offsets are 1-based.
	offset := 1
	for {
		page, err := c.fetchPage(ctx, city, start, end, offset)
		if err != nil {
			return nil, fmt.Errorf("fetch weather for %s: %w", city.Name, err)
		}
		c.metrics.FetchPages.WithLabelValues("noaa").Inc()

		for _, r := range page.Results {
			date, err := time.Parse(cdoDateLayout, r.Date)
			if err != nil {
				c.logger.Warn("skipping observation with unparseable date",
					"city", city.Name, "date", r.Date)
				continue
			}
			obs = append(obs, domain.WeatherObservation{
				City:         city.Name,
				Date:         date.Truncate(24 * time.Hour),
				Datatype:     r.Datatype,
				ValueTenthsC: r.Value,
			})
		}

		count := page.Metadata.Resultset.Count
		fetched := offset - 1 + len(page.Results)
		if len(page.Results) == 0 || fetched >= count {
			break
		}
		offset += c.pageLimit
	}

	c.metrics.RowsFetched.WithLabelValues("noaa").Add(float64(len(obs)))
	return obs, nil
}

func (c *Client) fetchPage(ctx context.Context, city config.City, start, end time.Time, offset int) (*response, error) {
	params := url.Values{
		"datasetid":  {"GHCND"},
		"datatypeid": {"TMAX,TMIN"},
		"stationid":  {city.NOAAStationID},
		"startdate":  {start.Format("2006-01-02")},
		"enddate":    {end.Format("2006-01-02")},
		"limit":      {fmt.Sprint(c.pageLimit)},
		"offset":     {fmt.Sprint(offset)},
	}

	body, err := c.doer.Get(ctx, c.baseURL+"?"+params.Encode(), http.Header{"Token": {c.token}})
	if err != nil {
		return nil, err
	}

	var page response
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &page, nil
}

// CDO API response types.

type response struct {
	Metadata metadata `json:"metadata"`
	Results  []result `json:"results"`
}

type metadata struct {
	Resultset resultset `json:"resultset"`
}

type resultset struct {
	Offset int `json:"offset"`
	Count  int `json:"count"`
	Limit  int `json:"limit"`
}

type result struct {
	Date     string  `json:"date"`
	Datatype string  `json:"datatype"`
	Station  string  `json:"station"`
	Value    float64 `json:"value"`
}
