package httpretry

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emeze-dev/weather-energy-pipeline/internal/observability"
)

func newTestDoer(maxAttempts int) *Doer {
	cfg := Config{
		MaxAttempts: maxAttempts,
		BaseDelay:   time.Millisecond,
		MaxDelay:    5 * time.Millisecond,
	}
	return New("test", &http.Client{Timeout: time.Second}, cfg, observability.NewMetricsForTesting(), slog.Default())
}

func TestGet_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"ok":true}`)) //nolint:errcheck
	}))
	defer srv.Close()

	d := newTestDoer(4)
	body, err := d.Get(context.Background(), srv.URL, nil)

	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(body))
}

func TestGet_ThreeFailuresThenSuccess(t *testing.T) {
	var attempts atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if attempts.Add(1) <= 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"ok":true}`)) //nolint:errcheck
	}))
	defer srv.Close()

	d := newTestDoer(4)
	body, err := d.Get(context.Background(), srv.URL, nil)

	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(body))
	// Exactly four attempts: the three failures plus the success.
	assert.Equal(t, int64(4), attempts.Load())
}

func TestGet_ExhaustsRetries(t *testing.T) {
	var attempts atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	d := newTestDoer(3)
	_, err := d.Get(context.Background(), srv.URL, nil)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRetryExhausted)
	assert.ErrorIs(t, err, ErrServerError)
	assert.Equal(t, int64(3), attempts.Load())
}

func TestGet_RateLimitedRetries(t *testing.T) {
	var attempts atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if attempts.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{}`)) //nolint:errcheck
	}))
	defer srv.Close()

	d := newTestDoer(4)
	_, err := d.Get(context.Background(), srv.URL, nil)

	require.NoError(t, err)
	assert.Equal(t, int64(2), attempts.Load())
}

func TestGet_ClientErrorNotRetried(t *testing.T) {
	var attempts atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	d := newTestDoer(4)
	_, err := d.Get(context.Background(), srv.URL, nil)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnexpected)
	assert.Equal(t, int64(1), attempts.Load())
}

func TestGet_InvalidURLNotRetried(t *testing.T) {
	d := newTestDoer(4)

	_, err := d.Get(context.Background(), "://missing-scheme", nil)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidRequest)
	assert.NotErrorIs(t, err, ErrRetryExhausted)
}

func TestGet_SendsHeaders(t *testing.T) {
	var gotToken string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotToken = r.Header.Get("Token")
		w.Write([]byte(`{}`)) //nolint:errcheck
	}))
	defer srv.Close()

	d := newTestDoer(1)
	_, err := d.Get(context.Background(), srv.URL, http.Header{"Token": {"secret"}})

	require.NoError(t, err)
	assert.Equal(t, "secret", gotToken)
}

func TestGet_ContextCancelledDuringBackoff(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	cfg := Config{MaxAttempts: 5, BaseDelay: time.Hour, MaxDelay: time.Hour}
	d := New("test", &http.Client{Timeout: time.Second}, cfg, observability.NewMetricsForTesting(), slog.Default())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := d.Get(ctx, srv.URL, nil)
	require.Error(t, err)
}

func TestClassifyStatus(t *testing.T) {
	assert.NoError(t, classifyStatus(http.StatusOK))
	assert.ErrorIs(t, classifyStatus(http.StatusTooManyRequests), ErrRateLimited)
	assert.ErrorIs(t, classifyStatus(http.StatusBadGateway), ErrServerError)
	assert.ErrorIs(t, classifyStatus(http.StatusNotFound), ErrUnexpected)
}

func TestBackoff_CappedAndGrowing(t *testing.T) {
	cfg := Config{MaxAttempts: 6, BaseDelay: 100 * time.Millisecond, MaxDelay: 300 * time.Millisecond}
	d := New("test", http.DefaultClient, cfg, observability.NewMetricsForTesting(), slog.Default())

	// Jitter adds at most 10%, so bounds are loose but meaningful.
	second := d.backoff(2)
	assert.GreaterOrEqual(t, second, 100*time.Millisecond)
	assert.Less(t, second, 115*time.Millisecond)

	fifth := d.backoff(5)
	assert.GreaterOrEqual(t, fifth, 300*time.Millisecond)
	assert.Less(t, fifth, 335*time.Millisecond)
}
