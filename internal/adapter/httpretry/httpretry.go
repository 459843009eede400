// Package httpretry wraps outbound API GETs with retries, exponential
// backoff, and a per-source circuit breaker. Both fetch clients share it so
// rate-limit handling and attempt accounting behave identically for NOAA
// and EIA.
package httpretry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand"
	"net/http"
	"time"

	"github.com/sony/gobreaker"

	"github.com/emeze-dev/weather-energy-pipeline/internal/observability"
)

var (
	ErrRateLimited    = errors.New("rate limited")
	ErrServerError    = errors.New("server error")
	ErrUnexpected     = errors.New("unexpected status code")
	ErrInvalidRequest = errors.New("invalid request")
	ErrCircuitOpen    = errors.New("circuit breaker open")
	ErrRetryExhausted = errors.New("retry attempts exhausted")
)

// Config controls retry behaviour. MaxAttempts counts every try including
// the first, so 4 means one initial attempt plus three retries.
type Config struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// Doer issues resilient GET requests for one API source.
type Doer struct {
	source  string
	client  *http.Client
	cfg     Config
	breaker *gobreaker.CircuitBreaker
	metrics *observability.Metrics
	logger  *slog.Logger
}

// New creates a Doer for the named source. The breaker trips after repeated
// consecutive failures so a hard-down API fails fast instead of burning the
// full backoff schedule for every remaining city.
func New(source string, client *http.Client, cfg Config, metrics *observability.Metrics, logger *slog.Logger) *Doer {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    source,
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 8
		},
	})

	return &Doer{
		source:  source,
		client:  client,
		cfg:     cfg,
		breaker: breaker,
		metrics: metrics,
		logger:  logger,
	}
}

// Get fetches url with the configured resilience. Non-retryable failures
// (401, 403, 404 and other 4xx except 429, or a URL the request cannot be
// built from) fail immediately; 429, 5xx, and transport errors retry with
// backoff until the attempt ceiling.
func (d *Doer) Get(ctx context.Context, url string, header http.Header) ([]byte, error) {
	var lastErr error

	for attempt := 1; attempt <= d.cfg.MaxAttempts; attempt++ {
		if attempt > 1 {
			d.metrics.FetchRetries.WithLabelValues(d.source).Inc()
			if !sleepWithContext(ctx, d.backoff(attempt)) {
				return nil, ctx.Err()
			}
		}

		body, err := d.getOnce(ctx, url, header)
		if err == nil {
			d.metrics.FetchRequests.WithLabelValues(d.source, "success").Inc()
			return body, nil
		}

		d.metrics.FetchRequests.WithLabelValues(d.source, "error").Inc()

		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %s", ErrCircuitOpen, d.source)
		}
		if ctx.Err() != nil {
			return nil, err
		}
		if !retryable(err) {
			return nil, err
		}

		lastErr = err
		d.logger.Warn("request failed, will retry",
			"source", d.source,
			"attempt", attempt,
			"max_attempts", d.cfg.MaxAttempts,
			"error", err,
		)
	}

	return nil, fmt.Errorf("%w after %d attempts: %w", ErrRetryExhausted, d.cfg.MaxAttempts, lastErr)
}

func (d *Doer) getOnce(ctx context.Context, url string, header http.Header) ([]byte, error) {
	result, err := d.breaker.Execute(func() (any, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			// A URL that fails here fails on every attempt.
			return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
		}
		for k, vs := range header {
			for _, v := range vs {
				req.Header.Add(k, v)
			}
		}
		req.Header.Set("Accept", "application/json")

		resp, err := d.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("http request: %w", err)
		}
		defer resp.Body.Close()

		if err := classifyStatus(resp.StatusCode); err != nil {
			// Drain so the connection can be reused.
			io.Copy(io.Discard, resp.Body) //nolint:errcheck
			return nil, err
		}

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("read response body: %w", err)
		}
		return body, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]byte), nil
}

func classifyStatus(code int) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusTooManyRequests:
		return fmt.Errorf("%w: HTTP %d", ErrRateLimited, code)
	case code >= 500:
		return fmt.Errorf("%w: HTTP %d", ErrServerError, code)
	default:
		return fmt.Errorf("%w: HTTP %d", ErrUnexpected, code)
	}
}

func retryable(err error) bool {
	if errors.Is(err, ErrRateLimited) || errors.Is(err, ErrServerError) {
		return true
	}
	if errors.Is(err, ErrUnexpected) || errors.Is(err, ErrInvalidRequest) {
		return false
	}
	// Transport-level failures (refused, reset, per-request timeout) are
	// retryable. Cancellation of the run's context is caught by the caller.
	return true
}

// backoff doubles the base delay per retry, capped, with up to 10% jitter.
func (d *Doer) backoff(attempt int) time.Duration {
	delay := float64(d.cfg.BaseDelay) * math.Pow(2, float64(attempt-2))
	if limit := float64(d.cfg.MaxDelay); d.cfg.MaxDelay > 0 && delay > limit {
		delay = limit
	}
	jitter := delay * 0.1 * rand.Float64()
	return time.Duration(delay + jitter)
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
