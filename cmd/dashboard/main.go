// Command dashboard serves the interactive view over the merged table
// produced by the pipeline. It needs no API credentials and reloads the
// table automatically after each pipeline run.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/emeze-dev/weather-energy-pipeline/internal/config"
	"github.com/emeze-dev/weather-energy-pipeline/internal/dashboard"
	"github.com/emeze-dev/weather-energy-pipeline/internal/observability"
	"github.com/emeze-dev/weather-energy-pipeline/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(observability.LogConfig{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
	})
	metrics := observability.NewMetrics()

	table := dashboard.NewTable(storage.New(cfg.DataDir))
	srv := dashboard.NewServer(cfg.DashboardAddr, table, cfg.Cities, cfg.StaleAfter, logger, metrics)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("dashboard server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("dashboard shutdown error", "error", err)
	}

	logger.Info("shutdown complete")
}
