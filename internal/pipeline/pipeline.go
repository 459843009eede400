// Package pipeline orchestrates the fetch, process, and analyze stages of a
// run. Stages are sequential; a city that fails to fetch is skipped without
// aborting the rest of the run.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/emeze-dev/weather-energy-pipeline/internal/analysis"
	"github.com/emeze-dev/weather-energy-pipeline/internal/config"
	"github.com/emeze-dev/weather-energy-pipeline/internal/domain"
	"github.com/emeze-dev/weather-energy-pipeline/internal/observability"
)

// WeatherFetcher retrieves raw weather observations for one city.
type WeatherFetcher interface {
	FetchDaily(ctx context.Context, city config.City, start, end time.Time) ([]domain.WeatherObservation, error)
}

// EnergyFetcher retrieves energy records for one city's region.
type EnergyFetcher interface {
	FetchDaily(ctx context.Context, city config.City, start, end time.Time) ([]domain.EnergyRecord, error)
}

// Store persists raw observations and the merged table.
type Store interface {
	ClearRaw() error
	WriteRawWeather(city string, start, end time.Time, obs []domain.WeatherObservation) error
	WriteRawEnergy(city string, start, end time.Time, records []domain.EnergyRecord) error
	ReadRawWeather() ([]domain.WeatherObservation, error)
	ReadRawEnergy() ([]domain.EnergyRecord, error)
	WriteMerged(records []domain.MergedRecord) error
}

// RunSummary reports what one pipeline run produced.
type RunSummary struct {
	RunID        string               `json:"run_id"`
	Start        time.Time            `json:"window_start"`
	End          time.Time            `json:"window_end"`
	FailedCities map[string][]string  `json:"failed_cities"` // source -> city names
	RowsMerged   int                  `json:"rows_merged"`
	Quality      domain.QualityReport `json:"quality"`
	Correlations analysis.Result      `json:"correlations"`
}

// Pipeline wires the stages together with observability.
type Pipeline struct {
	cfg     *config.Config
	weather WeatherFetcher
	energy  EnergyFetcher
	store   Store
	clock   clockwork.Clock
	logger  *slog.Logger
	metrics *observability.Metrics
	ready   atomic.Bool
	last    atomic.Pointer[RunSummary]
}

// New creates a Pipeline with the given stages and observability.
func New(cfg *config.Config, weather WeatherFetcher, energy EnergyFetcher, store Store, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	return &Pipeline{
		cfg:     cfg,
		weather: weather,
		energy:  energy,
		store:   store,
		clock:   clock,
		logger:  logger,
		metrics: metrics,
	}
}

// CheckReadiness returns nil once a run has completed, or an error
// describing why the service is not yet ready.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("pipeline has not completed a run yet")
	}
	return nil
}

// LastSummary returns the most recent completed run's summary, or nil when
// no run has completed.
func (p *Pipeline) LastSummary() *RunSummary {
	return p.last.Load()
}

// Run executes one fetch-process-analyze cycle. Per-city fetch failures are
// partial failures recorded in the summary; an error return means the run
// itself could not complete.
func (p *Pipeline) Run(ctx context.Context) (*RunSummary, error) {
	runStart := time.Now()
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	end := p.clock.Now().UTC().Truncate(24 * time.Hour)
	start := end.AddDate(0, 0, -p.cfg.FetchWindowDays)

	summary := &RunSummary{
		RunID:        uuid.NewString(),
		Start:        start,
		End:          end,
		FailedCities: map[string][]string{},
	}
	logger := p.logger.With("run_id", summary.RunID)

	logger.Info("pipeline run starting",
		"cities", len(p.cfg.Cities),
		"window_start", start.Format("2006-01-02"),
		"window_end", end.Format("2006-01-02"),
	)

	if err := p.fetch(ctx, logger, summary); err != nil {
		return nil, err
	}
	records, err := p.process(logger, summary)
	if err != nil {
		return nil, err
	}
	p.analyze(logger, summary, records)

	p.metrics.RunDuration.Observe(time.Since(runStart).Seconds())
	p.ready.Store(true)
	p.last.Store(summary)
	logger.Info("pipeline run complete",
		"rows_merged", summary.RowsMerged,
		"failed_cities_weather", len(summary.FailedCities["noaa"]),
		"failed_cities_energy", len(summary.FailedCities["eia"]),
	)
	return summary, nil
}

// fetch pulls both sources for every city and writes one raw file per
// (city, source, window). Retry exhaustion for a city is logged and counted,
// then the loop moves on.
func (p *Pipeline) fetch(ctx context.Context, logger *slog.Logger, summary *RunSummary) error {
	stageStart := time.Now()
	defer func() {
		p.metrics.StageDuration.WithLabelValues("fetch").Observe(time.Since(stageStart).Seconds())
	}()

	// Raw file names carry the window, so a previous run's files would
	// otherwise survive a window shift and leak old history into the merge.
	if err := p.store.ClearRaw(); err != nil {
		return fmt.Errorf("clear raw files: %w", err)
	}

	for _, city := range p.cfg.Cities {
		if ctx.Err() != nil {
			return fmt.Errorf("fetch stage interrupted: %w", ctx.Err())
		}

		obs, err := p.weather.FetchDaily(ctx, city, summary.Start, summary.End)
		if err != nil {
			logger.Error("weather fetch failed, skipping city", "city", city.Name, "error", err)
			p.metrics.CitiesFailed.WithLabelValues("noaa").Inc()
			summary.FailedCities["noaa"] = append(summary.FailedCities["noaa"], city.Name)
		} else {
			if err := p.store.WriteRawWeather(city.Name, summary.Start, summary.End, obs); err != nil {
				return fmt.Errorf("persist raw weather: %w", err)
			}
			logger.Info("weather fetched", "city", city.Name, "rows", len(obs))
		}

		records, err := p.energy.FetchDaily(ctx, city, summary.Start, summary.End)
		if err != nil {
			logger.Error("energy fetch failed, skipping city", "city", city.Name, "error", err)
			p.metrics.CitiesFailed.WithLabelValues("eia").Inc()
			summary.FailedCities["eia"] = append(summary.FailedCities["eia"], city.Name)
		} else {
			if err := p.store.WriteRawEnergy(city.Name, summary.Start, summary.End, records); err != nil {
				return fmt.Errorf("persist raw energy: %w", err)
			}
			logger.Info("energy fetched", "city", city.Name, "region", city.EIARegionCode, "rows", len(records))
		}
	}
	return nil
}

// process loads the raw files back from disk so a run always transforms
// exactly what was persisted, then cleans, merges, and writes the table.
func (p *Pipeline) process(logger *slog.Logger, summary *RunSummary) ([]domain.MergedRecord, error) {
	stageStart := time.Now()
	defer func() {
		p.metrics.StageDuration.WithLabelValues("process").Observe(time.Since(stageStart).Seconds())
	}()

	obs, err := p.store.ReadRawWeather()
	if err != nil {
		return nil, fmt.Errorf("load raw weather: %w", err)
	}
	energy, err := p.store.ReadRawEnergy()
	if err != nil {
		return nil, fmt.Errorf("load raw energy: %w", err)
	}

	weather := domain.PivotWeather(obs)
	records, stats := domain.Merge(weather, energy)
	summary.Quality = domain.CheckQuality(records, stats, p.cfg.StaleAfter)
	summary.RowsMerged = len(records)

	p.recordQualityMetrics(summary.Quality)
	p.logQuality(logger, summary.Quality)

	if err := p.store.WriteMerged(records); err != nil {
		return nil, fmt.Errorf("write merged table: %w", err)
	}
	p.metrics.RowsMerged.Add(float64(len(records)))
	logger.Info("merged table written", "rows", len(records))
	return records, nil
}

func (p *Pipeline) analyze(logger *slog.Logger, summary *RunSummary, records []domain.MergedRecord) {
	stageStart := time.Now()
	defer func() {
		p.metrics.StageDuration.WithLabelValues("analyze").Observe(time.Since(stageStart).Seconds())
	}()

	summary.Correlations = analysis.Correlate(records)

	if summary.Correlations.Overall != nil {
		logger.Info("overall correlation",
			"coefficient", *summary.Correlations.Overall,
			"sample_size", summary.Correlations.OverallSampleSize,
		)
	}
	for _, cc := range summary.Correlations.Cities {
		if cc.Coefficient == nil {
			logger.Warn("not enough data for correlation", "city", cc.City, "sample_size", cc.SampleSize)
			continue
		}
		logger.Info("city correlation",
			"city", cc.City,
			"coefficient", *cc.Coefficient,
			"sample_size", cc.SampleSize,
		)
	}
}

func (p *Pipeline) recordQualityMetrics(report domain.QualityReport) {
	add := func(check string, n int) {
		if n > 0 {
			p.metrics.QualityFlags.WithLabelValues(check).Add(float64(n))
		}
	}
	add("duplicate", report.DuplicatesDropped)
	add("high_temp_outlier", report.HighTempOutliers)
	add("low_temp_outlier", report.LowTempOutliers)
	add("negative_energy", report.NegativeEnergy)
	for _, n := range report.MissingValues {
		add("missing_value", n)
	}
	if report.Stale {
		add("stale", 1)
	}
}

func (p *Pipeline) logQuality(logger *slog.Logger, report domain.QualityReport) {
	if !report.HasIssues() {
		logger.Info("quality checks passed", "rows", report.RowCount)
		return
	}
	logger.Warn("quality issues found",
		"rows", report.RowCount,
		"duplicates_dropped", report.DuplicatesDropped,
		"missing_values", report.MissingValues,
		"high_temp_outliers", report.HighTempOutliers,
		"low_temp_outliers", report.LowTempOutliers,
		"negative_energy", report.NegativeEnergy,
		"stale", report.Stale,
		"latest_date", report.LatestDate.Format("2006-01-02"),
	)
}
