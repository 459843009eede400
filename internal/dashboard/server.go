package dashboard

import (
	"context"
	"embed"
	"encoding/json"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/emeze-dev/weather-energy-pipeline/internal/analysis"
	"github.com/emeze-dev/weather-energy-pipeline/internal/config"
	"github.com/emeze-dev/weather-energy-pipeline/internal/domain"
	"github.com/emeze-dev/weather-energy-pipeline/internal/observability"
)

//go:embed templates/index.html
var templateFS embed.FS

// Server renders the dashboard page and its JSON APIs.
type Server struct {
	httpServer *http.Server
	table      *Table
	cities     []config.City
	staleAfter time.Duration
	tmpl       *template.Template
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// NewServer creates the dashboard server over the given merged table.
func NewServer(addr string, table *Table, cities []config.City, staleAfter time.Duration, logger *slog.Logger, metrics *observability.Metrics) *Server {
	s := &Server{
		table:      table,
		cities:     cities,
		staleAfter: staleAfter,
		tmpl:       template.Must(template.ParseFS(templateFS, "templates/index.html")),
		logger:     logger,
		metrics:    metrics,
	}

	r := mux.NewRouter()
	r.Use(s.countRequests)
	r.HandleFunc("/", s.handleIndex).Methods(http.MethodGet)
	r.HandleFunc("/api/cities", s.handleCities).Methods(http.MethodGet)
	r.HandleFunc("/api/summary", s.handleSummary).Methods(http.MethodGet)
	r.HandleFunc("/api/timeseries", s.handleTimeseries).Methods(http.MethodGet)
	r.HandleFunc("/api/correlation", s.handleCorrelation).Methods(http.MethodGet)
	r.HandleFunc("/api/heatmap", s.handleHeatmap).Methods(http.MethodGet)
	r.HandleFunc("/api/quality", s.handleQuality).Methods(http.MethodGet)
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("dashboard starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the router, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) countRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := "unknown"
		if current := mux.CurrentRoute(r); current != nil {
			if tmpl, err := current.GetPathTemplate(); err == nil {
				route = tmpl
			}
		}
		s.metrics.DashboardRequests.WithLabelValues(route).Inc()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.tmpl.Execute(w, nil); err != nil {
		s.logger.Error("render index", "error", err)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleCities(w http.ResponseWriter, r *http.Request) {
	// City bubbles always cover every configured city; the filter narrows
	// the rows that feed their averages.
	records, _, ok := s.filteredRecords(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, summarizeCities(records, s.cities))
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	records, _, ok := s.filteredRecords(w, r)
	if !ok {
		return
	}

	type summary struct {
		RowCount  int      `json:"row_count"`
		Cities    []string `json:"cities"`
		StartDate string   `json:"start_date,omitempty"`
		EndDate   string   `json:"end_date,omitempty"`
	}

	out := summary{RowCount: len(records)}
	for _, city := range s.cities {
		out.Cities = append(out.Cities, city.Name)
	}
	if len(records) > 0 {
		first, last := records[0].Date, records[0].Date
		for _, rec := range records[1:] {
			if rec.Date.Before(first) {
				first = rec.Date
			}
			if rec.Date.After(last) {
				last = rec.Date
			}
		}
		out.StartDate = first.Format(dateLayout)
		out.EndDate = last.Format(dateLayout)
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleTimeseries(w http.ResponseWriter, r *http.Request) {
	records, _, ok := s.filteredRecords(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, buildTimeseries(records))
}

func (s *Server) handleCorrelation(w http.ResponseWriter, r *http.Request) {
	records, _, ok := s.filteredRecords(w, r)
	if !ok {
		return
	}

	points, trend := buildScatter(records)
	s.writeJSON(w, http.StatusOK, struct {
		Points []ScatterPoint  `json:"points"`
		Trend  *Trend          `json:"trend"`
		Result analysis.Result `json:"result"`
	}{
		Points: points,
		Trend:  trend,
		Result: analysis.Correlate(records),
	})
}

func (s *Server) handleHeatmap(w http.ResponseWriter, r *http.Request) {
	records, _, ok := s.filteredRecords(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, buildHeatmap(records))
}

func (s *Server) handleQuality(w http.ResponseWriter, r *http.Request) {
	records, _, ok := s.filteredRecords(w, r)
	if !ok {
		return
	}
	// Duplicates were dropped upstream, so only row-level checks apply here.
	s.writeJSON(w, http.StatusOK, domain.CheckQuality(records, domain.MergeStats{}, s.staleAfter))
}

// filteredRecords loads the table and applies the request's filter, writing
// the error response itself when either step fails.
func (s *Server) filteredRecords(w http.ResponseWriter, r *http.Request) ([]domain.MergedRecord, Filter, bool) {
	f, err := parseFilter(r.URL.Query())
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return nil, Filter{}, false
	}

	records, err := s.table.Records()
	if err != nil {
		s.logger.Error("load merged table", "error", err)
		s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "merged table not available, run the pipeline first",
		})
		return nil, Filter{}, false
	}
	return applyFilter(records, f), f, true
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encode response", "error", err)
	}
}
