package parser

import (
	"context"
	"log/slog"
	"time"

	"JobScanner/internal/domain"
	"JobScanner/internal/logging"
	"JobScanner/internal/scanner"
)

const (
	DemoKind       = "demo"
	demoSourceName = "ExampleJobs"
	demoBaseURL    = "https://example-job-board.com"
)

// DemoScanner is a fixed-size generator of sample postings. It performs no
// network I/O and ignores maxPages.
type DemoScanner struct {
	name    string
	baseURL string
	now     func() time.Time
	logger  *slog.Logger
}

var _ scanner.Adapter = (*DemoScanner)(nil)

// NewDemoScanner builds the demo adapter; blank site fields use the defaults.
func NewDemoScanner(site scanner.Site, log *slog.Logger) *DemoScanner {
	name := site.Name
	if name == "" {
		name = demoSourceName
	}
	base := site.BaseURL
	if base == "" {
		base = demoBaseURL
	}
	return &DemoScanner{
		name:    name,
		baseURL: base,
		now:     time.Now,
		logger:  logging.OrDiscard(log),
	}
}

func (d *DemoScanner) Name() string {
	return d.name
}

// Scrape returns a fresh copy of the sample postings on every call.
func (d *DemoScanner) Scrape(ctx context.Context, maxPages int) ([]domain.Posting, error) {
	d.logger.Info("starting scrape", "source", d.name)

	posted := d.now().UTC()
	jobs := []domain.Posting{
		{
			Title:           "Senior Backend Engineer",
			Company:         "Tech Corp",
			Location:        "Madrid, Spain (Remote)",
			Description:     "We're looking for an experienced backend engineer...",
			SalaryMin:       salary(60000),
			SalaryMax:       salary(80000),
			URL:             d.baseURL + "/job/backend-engineer-1",
			JobType:         "remote",
			ExperienceLevel: "senior",
			Technologies:    []string{"Python", "FastAPI", "PostgreSQL", "Docker"},
		},
		{
			Title:           "Data Engineer",
			Company:         "DataCo",
			Location:        "Barcelona, Spain",
			Description:     "Join our data team to build scalable pipelines...",
			SalaryMin:       salary(50000),
			SalaryMax:       salary(70000),
			URL:             d.baseURL + "/job/data-engineer-1",
			JobType:         "hybrid",
			ExperienceLevel: "mid",
			Technologies:    []string{"Python", "Airflow", "Spark", "AWS"},
		},
		{
			Title:           "Full Stack Developer",
			Company:         "StartupXYZ",
			Location:        "Remote",
			Description:     "Build amazing products with modern stack...",
			SalaryMin:       salary(45000),
			SalaryMax:       salary(65000),
			URL:             d.baseURL + "/job/fullstack-dev-1",
			JobType:         "remote",
			ExperienceLevel: "mid",
			Technologies:    []string{"React", "Node.js", "MongoDB", "TypeScript"},
		},
	}
	for i := range jobs {
		postedAt := posted
		jobs[i].Source = d.name
		jobs[i].PostedDate = &postedAt
	}

	d.logger.Info("scrape finished", "source", d.name, "count", len(jobs))
	return jobs, nil
}

func salary(v float64) *float64 {
	return &v
}
