package storage

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"JobScanner/internal/domain"
)

func salary(v float64) *float64 { return &v }

func seed(t *testing.T, repo *MemoryRepository, postings ...domain.Posting) {
	t.Helper()
	for i := range postings {
		p := postings[i]
		if p.ScrapedAt.IsZero() {
			p.ScrapedAt = time.Date(2025, 11, 8, 10, 0, 0, 0, time.UTC)
		}
		created, err := repo.Insert(context.Background(), &p)
		if err != nil || !created {
			t.Fatalf("seed %s: created=%v err=%v", p.URL, created, err)
		}
	}
}

func TestMemoryRepositoryInsertIsUniqueByURL(t *testing.T) {
	t.Parallel()

	repo := NewMemoryRepository()
	ctx := context.Background()

	first := domain.Posting{Title: "A", Company: "C", URL: "https://x/1", Source: "s", IsActive: true}
	created, err := repo.Insert(ctx, &first)
	if err != nil || !created || first.ID != 1 {
		t.Fatalf("first insert: created=%v id=%d err=%v", created, first.ID, err)
	}

	dup := domain.Posting{Title: "B", Company: "D", URL: "https://x/1", Source: "s", IsActive: true}
	created, err = repo.Insert(ctx, &dup)
	if err != nil || created {
		t.Fatalf("duplicate insert must be a silent skip: created=%v err=%v", created, err)
	}
	if dup.ID != 0 {
		t.Fatalf("skipped posting must not get an id, got %d", dup.ID)
	}

	existing, err := repo.ExistingURLs(ctx, []string{"https://x/1", "https://x/2"})
	if err != nil {
		t.Fatalf("ExistingURLs error: %v", err)
	}
	if !existing["https://x/1"] || existing["https://x/2"] {
		t.Fatalf("unexpected existing set: %v", existing)
	}
}

func TestMemoryRepositoryGetByID(t *testing.T) {
	t.Parallel()

	repo := NewMemoryRepository()
	seed(t, repo, domain.Posting{Title: "A", Company: "C", URL: "https://x/1", Source: "s", IsActive: true, SalaryMin: salary(1)})

	got, err := repo.GetByID(context.Background(), 1)
	if err != nil || got.URL != "https://x/1" {
		t.Fatalf("GetByID: %+v %v", got, err)
	}
	*got.SalaryMin = 999
	again, _ := repo.GetByID(context.Background(), 1)
	if *again.SalaryMin != 1 {
		t.Fatal("returned postings must not alias stored rows")
	}

	if _, err := repo.GetByID(context.Background(), 42); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryRepositoryListFilters(t *testing.T) {
	t.Parallel()

	repo := NewMemoryRepository()
	seed(t, repo,
		domain.Posting{Title: "Go", Company: "Tech Corp", Location: "Madrid, Spain", URL: "https://x/1", Source: "A", JobType: "remote", IsActive: true},
		domain.Posting{Title: "Py", Company: "DataCo", Location: "Barcelona, Spain", URL: "https://x/2", Source: "A", JobType: "hybrid", IsActive: true},
		domain.Posting{Title: "JS", Company: "techies", Location: "Remote", URL: "https://x/3", Source: "B", JobType: "remote", IsActive: true},
		domain.Posting{Title: "Old", Company: "Tech Corp", URL: "https://x/4", Source: "A", JobType: "remote", IsActive: false},
	)

	cases := []struct {
		name   string
		filter domain.ListFilter
		want   []string
	}{
		{"all active", domain.ListFilter{}, []string{"https://x/3", "https://x/2", "https://x/1"}},
		{"company substring ignores case", domain.ListFilter{Company: "TECH"}, []string{"https://x/3", "https://x/1"}},
		{"location substring", domain.ListFilter{Location: "spain"}, []string{"https://x/2", "https://x/1"}},
		{"job type exact", domain.ListFilter{JobType: "remote"}, []string{"https://x/3", "https://x/1"}},
		{"job type is not a substring match", domain.ListFilter{JobType: "rem"}, nil},
		{"filters compose with and", domain.ListFilter{Company: "tech", Source: "A"}, []string{"https://x/1"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := repo.List(context.Background(), tc.filter)
			if err != nil {
				t.Fatalf("List error: %v", err)
			}
			if len(got) != len(tc.want) {
				t.Fatalf("got %d postings, want %d", len(got), len(tc.want))
			}
			for i, p := range got {
				if p.URL != tc.want[i] {
					t.Fatalf("position %d: got %s want %s", i, p.URL, tc.want[i])
				}
			}
		})
	}
}

func TestMemoryRepositoryListPagination(t *testing.T) {
	t.Parallel()

	repo := NewMemoryRepository()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		seed(t, repo, domain.Posting{
			Title: "T", Company: "C", Source: "s", IsActive: true,
			URL:       fmt.Sprintf("https://x/%d", i),
			ScrapedAt: base.Add(time.Duration(i) * time.Minute),
		})
	}

	page, err := repo.List(context.Background(), domain.ListFilter{Skip: 1, Limit: 2})
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if len(page) != 2 || page[0].URL != "https://x/3" || page[1].URL != "https://x/2" {
		t.Fatalf("unexpected page: %+v", page)
	}

	empty, err := repo.List(context.Background(), domain.ListFilter{Skip: 10, Limit: 2})
	if err != nil || len(empty) != 0 {
		t.Fatalf("skip past the end should return an empty page: %v %v", empty, err)
	}
}

func TestMemoryRepositoryAggregate(t *testing.T) {
	t.Parallel()

	repo := NewMemoryRepository()
	seed(t, repo,
		domain.Posting{Title: "1", Company: "Tech Corp", Location: "Madrid", URL: "https://x/1", Source: "ExampleJobs", IsActive: true,
			SalaryMin: salary(60000), SalaryMax: salary(80000), Technologies: []string{"Python", "FastAPI"}},
		domain.Posting{Title: "2", Company: "DataCo", Location: "Madrid", URL: "https://x/2", Source: "ExampleJobs", IsActive: true,
			SalaryMin: salary(40000), SalaryMax: salary(40000), Technologies: []string{"Go"}},
		domain.Posting{Title: "3", Company: "DataCo", URL: "https://x/3", Source: "Board", IsActive: false,
			SalaryMin: salary(10000), Technologies: []string{"Python", "FastAPI"}},
	)

	snap, err := repo.Aggregate(context.Background())
	if err != nil {
		t.Fatalf("Aggregate error: %v", err)
	}
	if snap.TotalJobs != 3 || snap.ActiveJobs != 2 {
		t.Fatalf("unexpected totals: %+v", snap)
	}
	if snap.CompaniesCount != 2 || snap.LocationsCount != 1 {
		t.Fatalf("unexpected distinct counts: companies=%d locations=%d", snap.CompaniesCount, snap.LocationsCount)
	}
	if snap.AvgSalary == nil || *snap.AvgSalary != 55000 {
		t.Fatalf("expected avg salary 55000, got %v", snap.AvgSalary)
	}

	if len(snap.TopTechnologies) != 2 {
		t.Fatalf("unexpected top technologies: %+v", snap.TopTechnologies)
	}
	if snap.TopTechnologies[0] != (domain.TechnologyCount{Technology: "Python, FastAPI", Count: 2}) {
		t.Fatalf("technologies must be grouped by the raw string: %+v", snap.TopTechnologies)
	}
	if snap.JobsBySource[0] != (domain.SourceCount{Source: "ExampleJobs", Count: 2}) ||
		snap.JobsBySource[1] != (domain.SourceCount{Source: "Board", Count: 1}) {
		t.Fatalf("unexpected jobs by source: %+v", snap.JobsBySource)
	}
}

func TestMemoryRepositoryAggregateWithoutSalaries(t *testing.T) {
	t.Parallel()

	repo := NewMemoryRepository()
	seed(t, repo, domain.Posting{Title: "1", Company: "C", URL: "https://x/1", Source: "s", IsActive: true, SalaryMax: salary(1)})

	snap, err := repo.Aggregate(context.Background())
	if err != nil {
		t.Fatalf("Aggregate error: %v", err)
	}
	if snap.AvgSalary != nil {
		t.Fatalf("avg salary must be null without complete ranges, got %v", *snap.AvgSalary)
	}
	if snap.TopTechnologies == nil || len(snap.TopTechnologies) != 0 {
		t.Fatalf("expected an empty technology table, got %v", snap.TopTechnologies)
	}
}

func TestMemoryRepositoryTopTechnologiesLimitAndTies(t *testing.T) {
	t.Parallel()

	repo := NewMemoryRepository()
	for i := 0; i < domain.TopTechnologiesLimit+2; i++ {
		seed(t, repo, domain.Posting{
			Title: "T", Company: "C", Source: "s", IsActive: true,
			URL:          fmt.Sprintf("https://x/%d", i),
			Technologies: []string{fmt.Sprintf("tech-%02d", i)},
		})
	}

	snap, _ := repo.Aggregate(context.Background())
	if len(snap.TopTechnologies) != domain.TopTechnologiesLimit {
		t.Fatalf("expected %d buckets, got %d", domain.TopTechnologiesLimit, len(snap.TopTechnologies))
	}
	if snap.TopTechnologies[0].Technology != "tech-00" || snap.TopTechnologies[9].Technology != "tech-09" {
		t.Fatalf("ties must keep insertion order: %+v", snap.TopTechnologies)
	}
}
