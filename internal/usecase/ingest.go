package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"JobScanner/internal/domain"
	"JobScanner/internal/logging"
	"JobScanner/internal/metrics"
	"JobScanner/internal/ports"
)

// IngestorDeps wires the persistence side of a scrape pass.
type IngestorDeps struct {
	Repository ports.PostingRepository
	Publisher  ports.PostingPublisher
	Metrics    *metrics.Metrics
	Logger     *slog.Logger
	Clock      func() time.Time
}

// Ingestor deduplicates candidates by URL and persists the new ones.
type Ingestor struct {
	repository ports.PostingRepository
	publisher  ports.PostingPublisher
	metrics    *metrics.Metrics
	logger     *slog.Logger
	now        func() time.Time
}

func NewIngestor(deps IngestorDeps) *Ingestor {
	now := deps.Clock
	if now == nil {
		now = time.Now
	}
	return &Ingestor{
		repository: deps.Repository,
		publisher:  deps.Publisher,
		metrics:    deps.Metrics,
		logger:     logging.OrDiscard(deps.Logger),
		now:        now,
	}
}

// BulkIngest stores every candidate whose URL has not been seen before and
// returns how many were created. Invalid candidates and per-record storage
// failures are logged and skipped; the error is non-nil only when ctx ends
// mid-batch.
func (i *Ingestor) BulkIngest(ctx context.Context, candidates []domain.Posting) (int, error) {
	if i.repository == nil || len(candidates) == 0 {
		return 0, nil
	}

	urls := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if c.URL != "" {
			urls = append(urls, c.URL)
		}
	}

	existing, err := i.repository.ExistingURLs(ctx, urls)
	if err != nil {
		i.logger.Warn("existing url precheck failed, relying on unique constraint", "error", err)
		existing = map[string]bool{}
	}

	seen := make(map[string]struct{}, len(candidates))
	created := 0

	for _, candidate := range candidates {
		if err := ctx.Err(); err != nil {
			return created, fmt.Errorf("ingest: %w", err)
		}

		if err := validateCandidate(candidate); err != nil {
			i.logger.Warn("skipping invalid candidate", "source", candidate.Source, "url", candidate.URL, "error", err)
			continue
		}
		if existing[candidate.URL] {
			i.logger.Debug("posting already stored", "url", candidate.URL)
			continue
		}
		if _, dup := seen[candidate.URL]; dup {
			i.logger.Debug("duplicate url in batch", "url", candidate.URL)
			continue
		}
		seen[candidate.URL] = struct{}{}

		posting := candidate
		normalizeSalary(&posting)
		posting.ID = 0
		posting.ScrapedAt = i.now().UTC()
		posting.IsActive = true

		ok, err := i.repository.Insert(ctx, &posting)
		if err != nil {
			i.metrics.IngestFailed()
			i.logger.Error("failed to store posting", "url", posting.URL, "error", err)
			continue
		}
		if !ok {
			i.logger.Debug("posting stored concurrently", "url", posting.URL)
			continue
		}
		created++

		if i.publisher != nil {
			if err := i.publisher.PublishCreated(ctx, posting); err != nil {
				i.logger.Warn("failed to publish posting event", "url", posting.URL, "error", err)
			}
		}
	}

	return created, nil
}

func validateCandidate(p domain.Posting) error {
	switch {
	case strings.TrimSpace(p.URL) == "":
		return fmt.Errorf("%w: empty url", domain.ErrInvalidPosting)
	case strings.TrimSpace(p.Title) == "":
		return fmt.Errorf("%w: empty title", domain.ErrInvalidPosting)
	case strings.TrimSpace(p.Company) == "":
		return fmt.Errorf("%w: empty company", domain.ErrInvalidPosting)
	}
	return nil
}

// normalizeSalary swaps bounds reported in the wrong order.
func normalizeSalary(p *domain.Posting) {
	if p.HasSalaryRange() && *p.SalaryMin > *p.SalaryMax {
		p.SalaryMin, p.SalaryMax = p.SalaryMax, p.SalaryMin
	}
}
