// Package metrics defines the Prometheus collectors for scrape passes, page
// fetches and the HTTP API. All methods are safe on a nil *Metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the scanner.
type Metrics struct {
	registry *prometheus.Registry

	RunsTotal           *prometheus.CounterVec
	RunDuration         prometheus.Histogram
	CandidatesTotal     *prometheus.CounterVec
	PostingsCreated     *prometheus.CounterVec
	AdapterFailures     *prometheus.CounterVec
	IngestErrors        prometheus.Counter
	FetchAttemptsTotal  *prometheus.CounterVec
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// New creates the collectors on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		RunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scrape_runs_total",
				Help: "Ingestion passes by outcome (ok, partial, failed, rejected).",
			},
			[]string{"status"},
		),
		RunDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "scrape_run_duration_seconds",
				Help:    "Wall time of a full ingestion pass.",
				Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
			},
		),
		CandidatesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scraper_candidates_total",
				Help: "Candidate postings produced per source.",
			},
			[]string{"source"},
		),
		PostingsCreated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "postings_created_total",
				Help: "New postings persisted per source.",
			},
			[]string{"source"},
		),
		AdapterFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scraper_failures_total",
				Help: "Adapter runs that ended with an error, per source.",
			},
			[]string{"source"},
		),
		IngestErrors: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "ingest_record_errors_total",
				Help: "Candidates skipped because they could not be persisted.",
			},
		),
		FetchAttemptsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fetch_attempts_total",
				Help: "Page fetch attempts by result (success, failure).",
			},
			[]string{"result"},
		),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests by method, route, and status.",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"method", "route"},
		),
	}

	m.registry.MustRegister(
		m.RunsTotal,
		m.RunDuration,
		m.CandidatesTotal,
		m.PostingsCreated,
		m.AdapterFailures,
		m.IngestErrors,
		m.FetchAttemptsTotal,
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
	)

	return m
}

// Handler returns the Prometheus scrape HTTP handler for this registry.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry, mostly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) ObserveRun(status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.RunsTotal.WithLabelValues(status).Inc()
	m.RunDuration.Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveSource(source string, scraped, created int) {
	if m == nil {
		return
	}
	m.CandidatesTotal.WithLabelValues(source).Add(float64(scraped))
	m.PostingsCreated.WithLabelValues(source).Add(float64(created))
}

func (m *Metrics) SourceFailed(source string) {
	if m == nil {
		return
	}
	m.AdapterFailures.WithLabelValues(source).Inc()
}

func (m *Metrics) IngestFailed() {
	if m == nil {
		return
	}
	m.IngestErrors.Inc()
}

func (m *Metrics) FetchAttempt(ok bool) {
	if m == nil {
		return
	}
	result := "failure"
	if ok {
		result = "success"
	}
	m.FetchAttemptsTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveHTTP(method, route, status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, route, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}
