// Package eia fetches daily electricity demand from the EIA v2
// daily-region-data API, one balancing-authority respondent per city.
package eia

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

// Client pages through the EIA data endpoint for one respondent at a time.
type Client struct {
	apiKey    string
	baseURL   string
	pageLimit int
	doer      *httpretry.Doer
	metrics   *observability.Metrics
	logger    *slog.Logger
}

// NewClient creates an EIA client from service configuration.
func NewClient(cfg *config.Config, metrics *observability.Metrics, logger *slog.Logger) *Client {
	retryCfg := httpretry.Config{
		MaxAttempts: cfg.RetryMaxAttempts,
		BaseDelay:   cfg.RetryBaseDelay,
		MaxDelay:    cfg.RetryMaxDelay,
	}
	httpClient := &http.Client{Timeout: 30 * time.Second}

	return &Client{
		apiKey:    cfg.EIAAPIKey,
		baseURL:   cfg.EIABaseURL,
		pageLimit: cfg.PageLimit,
		doer:      httpretry.New("eia", httpClient, retryCfg, metrics, logger),
		metrics:   metrics,
		logger:    logger,
	}
}

// FetchDaily retrieves daily demand for the city's region in [start, end],
// following offset/length pagination. Rows without a value are dropped and
// logged; they cannot join or correlate.
func (c *Client) FetchDaily(ctx context.Context, city config.City, start, end time.Time) ([]domain.EnergyRecord, error) {
	var records []domain.EnergyRecord
	var missing int

	offset := 0
	for {
		page, err := c.fetchPage(ctx, city, start, end, offset)
		if err != nil {
			return nil, fmt.Errorf("fetch energy for %s (%s): %w", city.Name, city.EIARegionCode, err)
		}
		c.metrics.FetchPages.WithLabelValues("eia").Inc()

		for _, row := range page.Response.Data {
			if row.Value == nil {
				missing++
				continue
			}
			date, err := time.Parse("2006-01-02", row.Period)
			if err != nil {
				c.logger.Warn("skipping row with unparseable period",
					"city", city.Name, "period", row.Period)
				continue
			}
			records = append(records, domain.EnergyRecord{
				Region:         city.EIARegionCode,
				City:           city.Name,
				Date:           date,
				ConsumptionMWh: *row.Value,
			})
		}

		total, err := page.Response.Total.Int64()
		if err != nil {
			return nil, fmt.Errorf("fetch energy for %s: bad total %q", city.Name, page.Response.Total)
		}
		offset += len(page.Response.Data)
		if len(page.Response.Data) == 0 || int64(offset) >= total {
			break
		}
	}

	if missing > 0 {
		c.logger.Warn("dropped energy rows with no value",
			"city", city.Name, "rows", missing)
	}

	c.metrics.RowsFetched.WithLabelValues("eia").Add(float64(len(records)))
	return records, nil
}

func (c *Client) fetchPage(ctx context.Context, city config.City, start, end time.Time, offset int) (*response, error) {
	params := url.Values{
		"api_key":              {c.apiKey},
		"frequency":            {"daily"},
		"data[0]":              {"value"},
		"facets[respondent][]": {city.EIARegionCode},
		"start":                {start.Format("2006-01-02")},
		"end":                  {end.Format("2006-01-02")},
		"sort[0][column]":      {"period"},
		"sort[0][direction]":   {"asc"},
		"offset":               {fmt.Sprint(offset)},
		"length":               {fmt.Sprint(c.pageLimit)},
	}

	body, err := c.doer.Get(ctx, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	var page response
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &page, nil
}

// EIA API response types. Total arrives as a JSON string in current API
// versions, so it is decoded as a json.Number to accept either form.

type response struct {
	Response responseBody `json:"response"`
}

type responseBody struct {
	Total json.Number `json:"total"`
	Data  []dataRow   `json:"data"`
}

type dataRow struct {
	Period     string   `json:"period"`
	Respondent string   `json:"respondent"`
	Value      *float64 `json:"value"`
	ValueUnits string   `json:"value-units"`
}
