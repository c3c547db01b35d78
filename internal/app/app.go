package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"JobScanner/internal/config"
	"JobScanner/internal/domain"
	"JobScanner/internal/httpapi"
	"JobScanner/internal/infrastructure/cache"
	"JobScanner/internal/infrastructure/events"
	"JobScanner/internal/infrastructure/fetcher"
	"JobScanner/internal/infrastructure/parser"
	"JobScanner/internal/infrastructure/scheduler"
	"JobScanner/internal/infrastructure/storage"
	"JobScanner/internal/infrastructure/telegram"
	"JobScanner/internal/logging"
	"JobScanner/internal/metrics"
	"JobScanner/internal/ports"
	"JobScanner/internal/scanner"
	"JobScanner/internal/usecase"
)

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg          config.Config
	logger       *slog.Logger
	metrics      *metrics.Metrics
	orchestrator *usecase.Orchestrator
	queries      *usecase.QueryService
	scheduler    *usecase.Scheduler
	closers      []func() error
}

// New builds the application. Storage must be reachable when a DSN is set;
// the Redis cache, Kafka events and Telegram digests are optional.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level, cfg.Logging.Format)
	}
	a := &Application{cfg: cfg, logger: baseLogger, metrics: metrics.New()}

	repo, err := a.openRepository(ctx)
	if err != nil {
		return nil, err
	}

	var statsCache ports.StatsCache
	if cfg.Redis.Addr != "" {
		rc, err := cache.NewRedisStatsCache(ctx, cfg.Redis)
		if err != nil {
			baseLogger.Warn("stats cache disabled", "addr", cfg.Redis.Addr, "error", err)
		} else {
			statsCache = rc
			a.closers = append(a.closers, rc.Close)
		}
	}

	var publisher ports.PostingPublisher
	if len(cfg.Kafka.Brokers) > 0 {
		kp := events.NewKafkaPublisher(cfg.Kafka, baseLogger.With("component", "events.kafka"))
		publisher = kp
		a.closers = append(a.closers, kp.Close)
	}

	var notifier ports.Notifier
	if tg := cfg.Notifications.Telegram; tg.BotToken != "" && tg.ChatID != "" {
		notifier = telegram.NewNotifier(tg)
	}

	pageFetcher := fetcher.New(fetcher.Options{
		MaxRetries:      cfg.Fetcher.MaxRetries,
		Timeout:         cfg.Fetcher.RequestTimeout,
		BackoffBase:     cfg.Fetcher.BackoffBase,
		RotateUserAgent: cfg.Fetcher.Rotate(),
		Logger:          baseLogger.With("component", "fetcher"),
		Metrics:         a.metrics,
	})

	registry := scanner.NewRegistry()
	parser.RegisterDefaults(registry, pageFetcher, cfg.Fetcher.MaxRetries, baseLogger.With("component", "scanner"))
	adapters, err := parser.BuildAdapters(registry, cfg.Sites, baseLogger.With("component", "sources"))
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("build adapters: %w", err)
	}

	stats := usecase.NewStatsService(repo, statsCache, baseLogger.With("component", "stats"))
	ingestor := usecase.NewIngestor(usecase.IngestorDeps{
		Repository: repo,
		Publisher:  publisher,
		Metrics:    a.metrics,
		Logger:     baseLogger.With("component", "ingest"),
	})
	a.orchestrator = usecase.NewOrchestrator(usecase.OrchestratorDeps{
		Adapters:    adapters,
		Ingestor:    ingestor,
		Stats:       stats,
		Notifier:    notifier,
		Metrics:     a.metrics,
		Logger:      baseLogger.With("component", "orchestrator"),
		MaxPages:    cfg.Scraper.MaxPages,
		Concurrency: cfg.Scraper.Concurrency,
	})
	a.queries = usecase.NewQueryService(repo, stats, cfg.API.DefaultLimit, cfg.API.MaxLimit)

	if cfg.Scheduler.IsEnabled() {
		driver := scheduler.NewIntervalScheduler(cfg.Scheduler.Interval(), cfg.Scheduler.RunOnStart)
		a.scheduler = usecase.NewScheduler(driver, a.orchestrator, baseLogger.With("component", "scheduler"))
	}

	return a, nil
}

func (a *Application) openRepository(ctx context.Context) (ports.PostingRepository, error) {
	if a.cfg.Database.DSN == "" {
		a.logger.Info("no database configured, using in-memory store")
		return storage.NewMemoryRepository(), nil
	}

	db, err := storage.Open(ctx, a.cfg.Database)
	if err != nil {
		return nil, err
	}
	repo := storage.NewPostgresRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	a.closers = append(a.closers, db.Close)
	return repo, nil
}

// RunOnce performs a single scrape pass.
func (a *Application) RunOnce(ctx context.Context) (domain.RunReport, error) {
	return a.orchestrator.RunAll(ctx)
}

// Serve starts the scheduler and the HTTP API and blocks until ctx is done,
// then shuts both down within the configured timeout.
func (a *Application) Serve(ctx context.Context) error {
	handler := httpapi.NewHandler(httpapi.HandlerDeps{
		Queries:          a.queries,
		Runner:           a.orchestrator,
		Logger:           a.logger.With("component", "http"),
		RunContext:       ctx,
		SchedulerEnabled: a.cfg.Scheduler.IsEnabled(),
		IntervalHours:    a.cfg.Scheduler.IntervalHours,
	})
	server := &http.Server{
		Addr:         a.cfg.Server.Addr,
		Handler:      httpapi.NewRouter(handler, a.metrics),
		ReadTimeout:  a.cfg.Server.ReadTimeout,
		WriteTimeout: a.cfg.Server.WriteTimeout,
	}

	if a.scheduler != nil {
		if err := a.scheduler.Start(ctx); err != nil {
			return fmt.Errorf("start scheduler: %w", err)
		}
		a.logger.Info("scheduler started", "interval", a.cfg.Scheduler.Interval())
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("http server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
	case err := <-errCh:
		serveErr = fmt.Errorf("http server: %w", err)
	}

	timeout := a.cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	if a.scheduler != nil {
		if err := a.scheduler.Stop(shutdownCtx); err != nil {
			a.logger.Warn("scheduler stop", "error", err)
		}
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		a.logger.Warn("http shutdown", "error", err)
	}
	a.logger.Info("application stopped")
	return serveErr
}

// Close releases storage, cache and broker connections.
func (a *Application) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
