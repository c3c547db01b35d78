package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"JobScanner/internal/domain"
	"JobScanner/internal/logging"
)

// Queries is the read side used by the handlers.
type Queries interface {
	DefaultLimit() int
	List(ctx context.Context, filter domain.ListFilter) ([]domain.Posting, error)
	Get(ctx context.Context, id int64) (domain.Posting, error)
	Stats(ctx context.Context) (domain.StatsSnapshot, error)
}

// Runner starts scrape passes.
type Runner interface {
	RunAsync(ctx context.Context, done func(domain.RunReport, error)) error
	Running() bool
	Sources() []string
}

// HandlerDeps wires the handler. RunContext bounds background passes and is
// usually the process lifetime context.
type HandlerDeps struct {
	Queries          Queries
	Runner           Runner
	Logger           *slog.Logger
	RunContext       context.Context
	SchedulerEnabled bool
	IntervalHours    int
}

// Handler implements the JSON endpoints.
type Handler struct {
	queries          Queries
	runner           Runner
	logger           *slog.Logger
	runCtx           context.Context
	schedulerEnabled bool
	intervalHours    int
}

func NewHandler(deps HandlerDeps) *Handler {
	runCtx := deps.RunContext
	if runCtx == nil {
		runCtx = context.Background()
	}
	return &Handler{
		queries:          deps.Queries,
		runner:           deps.Runner,
		logger:           logging.OrDiscard(deps.Logger),
		runCtx:           runCtx,
		schedulerEnabled: deps.SchedulerEnabled,
		intervalHours:    deps.IntervalHours,
	}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":                 "healthy",
		"scheduler_enabled":      h.schedulerEnabled,
		"scraper_interval_hours": h.intervalHours,
	})
}

// ListJobs serves GET /api/v1/jobs?company&location&job_type&source&skip&limit.
func (h *Handler) ListJobs(w http.ResponseWriter, r *http.Request) {
	filter, err := h.parseFilter(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	postings, err := h.queries.List(r.Context(), filter)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, postings)
}

func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.writeError(w, fmt.Errorf("%w: job id must be an integer", domain.ErrInvalidFilter))
		return
	}

	posting, err := h.queries.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, posting)
}

func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	snap, err := h.queries.Stats(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// TriggerRun starts a pass detached from the request; 409 when one is running.
func (h *Handler) TriggerRun(w http.ResponseWriter, r *http.Request) {
	err := h.runner.RunAsync(h.runCtx, func(report domain.RunReport, err error) {
		if err != nil {
			h.logger.Warn("triggered pass interrupted", "run_id", report.RunID, "error", err)
			return
		}
		h.logger.Info("triggered pass completed",
			"run_id", report.RunID,
			"scraped", report.TotalScraped,
			"created", report.TotalCreated,
		)
	})
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"message": "Scraper started in background",
		"status":  "running",
	})
}

func (h *Handler) RunStatus(w http.ResponseWriter, r *http.Request) {
	running := h.runner.Running()
	status := "available"
	if running {
		status = "running"
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":              status,
		"scrapers_configured": len(h.runner.Sources()),
		"sources":             h.runner.Sources(),
		"running":             running,
		"message":             "Use POST /api/v1/scraper/run to trigger scraping",
	})
}

func (h *Handler) parseFilter(r *http.Request) (domain.ListFilter, error) {
	q := r.URL.Query()
	filter := domain.ListFilter{
		Company:  q.Get("company"),
		Location: q.Get("location"),
		JobType:  q.Get("job_type"),
		Source:   q.Get("source"),
		Limit:    h.queries.DefaultLimit(),
	}

	if v := q.Get("skip"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return filter, fmt.Errorf("%w: skip must be an integer", domain.ErrInvalidFilter)
		}
		filter.Skip = n
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return filter, fmt.Errorf("%w: limit must be an integer", domain.ErrInvalidFilter)
		}
		filter.Limit = n
	}
	return filter, nil
}

// statusFor maps domain sentinels to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidFilter):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrRunInProgress):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		h.logger.Error("request failed", "error", err)
		msg = "internal server error"
	}
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
