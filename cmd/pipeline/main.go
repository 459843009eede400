// Command pipeline runs one fetch-process-analyze cycle over the configured
// cities: NOAA daily temperatures and EIA daily consumption in, a merged
// feature table and correlation report out. An ops HTTP server exposes
// health, readiness, metrics, and the run summary while the cycle runs.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonboulle/clockwork"

	"github.com/emeze-dev/weather-energy-pipeline/internal/adapter/eia"
	httpadapter "github.com/emeze-dev/weather-energy-pipeline/internal/adapter/http"
	"github.com/emeze-dev/weather-energy-pipeline/internal/adapter/noaa"
	"github.com/emeze-dev/weather-energy-pipeline/internal/config"
	"github.com/emeze-dev/weather-energy-pipeline/internal/observability"
	"github.com/emeze-dev/weather-energy-pipeline/internal/pipeline"
	"github.com/emeze-dev/weather-energy-pipeline/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.ValidateAPIKeys(); err != nil {
		slog.Error("invalid credentials", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(observability.LogConfig{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		File:   cfg.LogFile,
	})
	metrics := observability.NewMetrics()

	weather := noaa.NewClient(cfg, metrics, logger)
	energy := eia.NewClient(cfg, metrics, logger)
	store := storage.New(cfg.DataDir)

	p := pipeline.New(cfg, weather, energy, store, clockwork.NewRealClock(), logger, metrics)
	srv := httpadapter.NewServer(cfg.HTTPAddr, p, p, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("ops server error", "error", err)
		}
	}()

	exitCode := 0
	if _, err := p.Run(ctx); err != nil {
		logger.Error("pipeline run failed", "error", err)
		exitCode = 1
	}
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("ops server shutdown error", "error", err)
	}

	logger.Info("shutdown complete")
	os.Exit(exitCode)
}
