package ports

import (
	"context"
	"time"

	"github.com/PuerkitoBio/goquery"

	"JobScanner/internal/domain"
)

// PostingRepository persists postings keyed by their canonical URL.
type PostingRepository interface {
	// ExistingURLs returns the subset of urls that are already stored.
	ExistingURLs(ctx context.Context, urls []string) (map[string]bool, error)
	// Insert stores p unless its URL already exists. On success p.ID is set.
	Insert(ctx context.Context, p *domain.Posting) (bool, error)
	List(ctx context.Context, filter domain.ListFilter) ([]domain.Posting, error)
	GetByID(ctx context.Context, id int64) (domain.Posting, error)
	Aggregate(ctx context.Context) (domain.StatsSnapshot, error)
}

// PageFetcher downloads and parses a single HTML page.
type PageFetcher interface {
	Fetch(ctx context.Context, pageURL string, maxRetries int) (*goquery.Document, error)
}

// PostingPublisher announces newly created postings to downstream consumers.
type PostingPublisher interface {
	PublishCreated(ctx context.Context, posting domain.Posting) error
}

// StatsCache keeps the last computed snapshot for a short while.
type StatsCache interface {
	Get(ctx context.Context) (*domain.StatsSnapshot, error)
	Set(ctx context.Context, snapshot domain.StatsSnapshot) error
	Invalidate(ctx context.Context) error
}

// Notifier streams run digests to Telegram or other channels.
type Notifier interface {
	PublishDigest(ctx context.Context, digest string) error
}

// Scheduler controls when ingestion passes execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
