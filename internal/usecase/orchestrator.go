package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"JobScanner/internal/domain"
	"JobScanner/internal/logging"
	"JobScanner/internal/metrics"
	"JobScanner/internal/ports"
	"JobScanner/internal/scanner"
)

const (
	runStatusOK       = "ok"
	runStatusPartial  = "partial"
	runStatusFailed   = "failed"
	runStatusRejected = "rejected"
)

// OrchestratorDeps wires the adapters and the components a pass reports to.
type OrchestratorDeps struct {
	Adapters    []scanner.Adapter
	Ingestor    *Ingestor
	Stats       *StatsService
	Notifier    ports.Notifier
	Metrics     *metrics.Metrics
	Logger      *slog.Logger
	MaxPages    int
	Concurrency int
	Clock       func() time.Time
}

// Orchestrator runs every registered adapter once per pass and isolates
// their failures from each other.
type Orchestrator struct {
	adapters    []scanner.Adapter
	ingestor    *Ingestor
	stats       *StatsService
	notifier    ports.Notifier
	metrics     *metrics.Metrics
	logger      *slog.Logger
	maxPages    int
	concurrency int
	now         func() time.Time

	runMu   sync.Mutex
	running atomic.Bool
}

func NewOrchestrator(deps OrchestratorDeps) *Orchestrator {
	now := deps.Clock
	if now == nil {
		now = time.Now
	}
	maxPages := deps.MaxPages
	if maxPages < 1 {
		maxPages = 1
	}
	concurrency := deps.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}
	return &Orchestrator{
		adapters:    append([]scanner.Adapter(nil), deps.Adapters...),
		ingestor:    deps.Ingestor,
		stats:       deps.Stats,
		notifier:    deps.Notifier,
		metrics:     deps.Metrics,
		logger:      logging.OrDiscard(deps.Logger),
		maxPages:    maxPages,
		concurrency: concurrency,
		now:         now,
	}
}

// Running reports whether a pass is in progress.
func (o *Orchestrator) Running() bool {
	return o.running.Load()
}

// Sources lists adapter names in execution order.
func (o *Orchestrator) Sources() []string {
	names := make([]string, len(o.adapters))
	for i, a := range o.adapters {
		names[i] = a.Name()
	}
	return names
}

// RunAll executes one pass. An overlapping call returns
// domain.ErrRunInProgress without touching any adapter. Adapter errors and
// panics are recorded in the report and never abort the pass.
func (o *Orchestrator) RunAll(ctx context.Context) (domain.RunReport, error) {
	if !o.acquire() {
		return domain.RunReport{}, domain.ErrRunInProgress
	}
	defer o.release()
	return o.run(ctx)
}

// RunAsync starts a pass in the background and calls done, when set, with its
// result. The run slot is taken before RunAsync returns, so a concurrent
// RunAll or RunAsync observes domain.ErrRunInProgress.
func (o *Orchestrator) RunAsync(ctx context.Context, done func(domain.RunReport, error)) error {
	if !o.acquire() {
		return domain.ErrRunInProgress
	}
	go func() {
		defer o.release()
		report, err := o.run(ctx)
		if done != nil {
			done(report, err)
		}
	}()
	return nil
}

func (o *Orchestrator) acquire() bool {
	if !o.runMu.TryLock() {
		o.metrics.ObserveRun(runStatusRejected, 0)
		return false
	}
	o.running.Store(true)
	return true
}

func (o *Orchestrator) release() {
	o.running.Store(false)
	o.runMu.Unlock()
}

func (o *Orchestrator) run(ctx context.Context) (domain.RunReport, error) {
	report := domain.RunReport{
		RunID:     uuid.NewString(),
		StartedAt: o.now().UTC(),
		Details:   make([]domain.SourceOutcome, len(o.adapters)),
	}
	log := o.logger.With("run_id", report.RunID)
	log.Info("scrape pass started", "sources", len(o.adapters), "concurrency", o.concurrency)

	var g errgroup.Group
	g.SetLimit(o.concurrency)
	for i, adapter := range o.adapters {
		g.Go(func() error {
			report.Details[i] = o.runAdapter(ctx, adapter, log)
			return nil
		})
	}
	_ = g.Wait()

	for _, d := range report.Details {
		if d.Failed() {
			continue
		}
		report.ScrapersRun++
		report.TotalScraped += d.Scraped
		report.TotalCreated += d.Created
	}
	report.FinishedAt = o.now().UTC()

	failures := len(report.Failures())
	o.metrics.ObserveRun(runStatus(failures, len(o.adapters)), report.FinishedAt.Sub(report.StartedAt))
	log.Info("scrape pass finished",
		"scraped", report.TotalScraped,
		"created", report.TotalCreated,
		"failed_sources", failures,
	)

	if report.TotalCreated > 0 && o.stats != nil {
		o.stats.Invalidate(context.WithoutCancel(ctx))
	}
	if o.notifier != nil && (report.TotalCreated > 0 || failures > 0) {
		if err := o.notifier.PublishDigest(context.WithoutCancel(ctx), buildDigestMessage(report)); err != nil {
			log.Warn("failed to send run digest", "error", err)
		}
	}

	if err := ctx.Err(); err != nil {
		return report, fmt.Errorf("scrape pass interrupted: %w", err)
	}
	return report, nil
}

func (o *Orchestrator) runAdapter(ctx context.Context, adapter scanner.Adapter, log *slog.Logger) (outcome domain.SourceOutcome) {
	name := adapter.Name()
	outcome.Source = name

	defer func() {
		if r := recover(); r != nil {
			log.Error("adapter panicked", "source", name, "panic", r)
			o.metrics.SourceFailed(name)
			outcome = domain.SourceOutcome{Source: name, Error: fmt.Sprintf("panic: %v", r)}
		}
	}()

	candidates, err := adapter.Scrape(ctx, o.maxPages)
	if err != nil {
		log.Error("adapter failed", "source", name, "error", err)
		o.metrics.SourceFailed(name)
		return domain.SourceOutcome{Source: name, Error: err.Error()}
	}

	created, err := o.ingestor.BulkIngest(ctx, candidates)
	if err != nil {
		log.Error("ingestion interrupted", "source", name, "error", err)
		o.metrics.SourceFailed(name)
		return domain.SourceOutcome{Source: name, Error: err.Error()}
	}

	o.metrics.ObserveSource(name, len(candidates), created)
	log.Info("source finished", "source", name, "scraped", len(candidates), "created", created)
	return domain.SourceOutcome{Source: name, Scraped: len(candidates), Created: created}
}

func runStatus(failures, total int) string {
	switch {
	case failures == 0:
		return runStatusOK
	case failures < total:
		return runStatusPartial
	default:
		return runStatusFailed
	}
}

func buildDigestMessage(report domain.RunReport) string {
	var b strings.Builder
	b.WriteString("Job scan finished\n")
	fmt.Fprintf(&b, "Scraped: %d, new: %d, sources ok: %d/%d\n", report.TotalScraped, report.TotalCreated, report.ScrapersRun, len(report.Details))
	for _, d := range report.Details {
		if d.Failed() {
			fmt.Fprintf(&b, "- %s: failed (%s)\n", d.Source, d.Error)
			continue
		}
		fmt.Fprintf(&b, "- %s: %d scraped, %d new\n", d.Source, d.Scraped, d.Created)
	}
	return strings.TrimSuffix(b.String(), "\n")
}
