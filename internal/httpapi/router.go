// Package httpapi exposes the posting queries, stats and the scrape trigger
// over JSON HTTP.
package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"JobScanner/internal/metrics"
)

// NewRouter builds the HTTP handler.
//
// Route table:
//
//	GET    /health                  → liveness and scheduler settings
//	GET    /api/v1/jobs             → filtered, paginated active postings
//	GET    /api/v1/jobs/stats       → aggregate snapshot
//	GET    /api/v1/jobs/{id}        → one posting
//	POST   /api/v1/scraper/run      → start a pass in the background
//	GET    /api/v1/scraper/status   → configured sources and run state
//	GET    /metrics                 → Prometheus exposition
func NewRouter(h *Handler, m *metrics.Metrics) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(instrument(m))

	r.Get("/health", h.Health)
	if m != nil {
		r.Method(http.MethodGet, "/metrics", m.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/jobs", h.ListJobs)
		r.Get("/jobs/stats", h.Stats)
		r.Get("/jobs/{id}", h.GetJob)
		r.Post("/scraper/run", h.TriggerRun)
		r.Get("/scraper/status", h.RunStatus)
	})

	return r
}

// instrument records request count and latency labelled by route pattern so
// path parameters do not explode label cardinality.
func instrument(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			route := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			m.ObserveHTTP(r.Method, route, strconv.Itoa(status), time.Since(start))
		})
	}
}
