package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"JobScanner/internal/domain"
	"JobScanner/internal/ports"
)

// MemoryRepository keeps postings in process memory. It is used when no
// database DSN is configured and backs the use-case tests.
type MemoryRepository struct {
	mu     sync.RWMutex
	rows   []domain.Posting
	byURL  map[string]int
	nextID int64
}

var _ ports.PostingRepository = (*MemoryRepository)(nil)

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		byURL:  make(map[string]int),
		nextID: 1,
	}
}

func (m *MemoryRepository) ExistingURLs(ctx context.Context, urls []string) (map[string]bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make(map[string]bool)
	for _, u := range urls {
		if _, ok := m.byURL[u]; ok {
			result[u] = true
		}
	}
	return result, nil
}

// Insert assigns the next ID; the URL check and the append happen under one lock.
func (m *MemoryRepository) Insert(ctx context.Context, p *domain.Posting) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.byURL[p.URL]; ok {
		return false, nil
	}
	p.ID = m.nextID
	m.nextID++
	m.byURL[p.URL] = len(m.rows)
	stored := clonePosting(*p)
	stored.Technologies = domain.SplitTechnologies(p.TechnologiesText())
	m.rows = append(m.rows, stored)
	return true, nil
}

func (m *MemoryRepository) List(ctx context.Context, filter domain.ListFilter) ([]domain.Posting, error) {
	m.mu.RLock()
	matched := make([]domain.Posting, 0)
	for _, p := range m.rows {
		if matchesFilter(p, filter) {
			matched = append(matched, clonePosting(p))
		}
	}
	m.mu.RUnlock()

	sort.SliceStable(matched, func(i, j int) bool {
		if !matched[i].ScrapedAt.Equal(matched[j].ScrapedAt) {
			return matched[i].ScrapedAt.After(matched[j].ScrapedAt)
		}
		return matched[i].ID > matched[j].ID
	})

	if filter.Skip >= len(matched) {
		return []domain.Posting{}, nil
	}
	matched = matched[max(filter.Skip, 0):]
	if filter.Limit > 0 && filter.Limit < len(matched) {
		matched = matched[:filter.Limit]
	}
	return matched, nil
}

func (m *MemoryRepository) GetByID(ctx context.Context, id int64) (domain.Posting, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, p := range m.rows {
		if p.ID == id {
			return clonePosting(p), nil
		}
	}
	return domain.Posting{}, fmt.Errorf("posting %d: %w", id, domain.ErrNotFound)
}

// Aggregate mirrors the SQL aggregation: distinct counts skip empty values,
// technologies are grouped by their serialized form and ties keep first
// insertion order.
func (m *MemoryRepository) Aggregate(ctx context.Context) (domain.StatsSnapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snap := domain.StatsSnapshot{
		TotalJobs:       int64(len(m.rows)),
		TopTechnologies: make([]domain.TechnologyCount, 0),
		JobsBySource:    make([]domain.SourceCount, 0),
	}

	companies := map[string]struct{}{}
	locations := map[string]struct{}{}
	techIndex := map[string]int{}
	sourceIndex := map[string]int{}
	var (
		salarySum   float64
		salaryCount int
	)

	for _, p := range m.rows {
		if p.IsActive {
			snap.ActiveJobs++
		}
		if p.Company != "" {
			companies[p.Company] = struct{}{}
		}
		if p.Location != "" {
			locations[p.Location] = struct{}{}
		}
		if p.HasSalaryRange() {
			salarySum += (*p.SalaryMin + *p.SalaryMax) / 2
			salaryCount++
		}
		if tech := p.TechnologiesText(); tech != "" {
			if i, ok := techIndex[tech]; ok {
				snap.TopTechnologies[i].Count++
			} else {
				techIndex[tech] = len(snap.TopTechnologies)
				snap.TopTechnologies = append(snap.TopTechnologies, domain.TechnologyCount{Technology: tech, Count: 1})
			}
		}
		if i, ok := sourceIndex[p.Source]; ok {
			snap.JobsBySource[i].Count++
		} else {
			sourceIndex[p.Source] = len(snap.JobsBySource)
			snap.JobsBySource = append(snap.JobsBySource, domain.SourceCount{Source: p.Source, Count: 1})
		}
	}

	snap.CompaniesCount = int64(len(companies))
	snap.LocationsCount = int64(len(locations))
	if salaryCount > 0 {
		avg := salarySum / float64(salaryCount)
		snap.AvgSalary = &avg
	}

	sort.SliceStable(snap.TopTechnologies, func(i, j int) bool {
		return snap.TopTechnologies[i].Count > snap.TopTechnologies[j].Count
	})
	if len(snap.TopTechnologies) > domain.TopTechnologiesLimit {
		snap.TopTechnologies = snap.TopTechnologies[:domain.TopTechnologiesLimit]
	}

	sort.SliceStable(snap.JobsBySource, func(i, j int) bool {
		a, b := snap.JobsBySource[i], snap.JobsBySource[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return a.Source < b.Source
	})

	return snap, nil
}

func matchesFilter(p domain.Posting, f domain.ListFilter) bool {
	if !p.IsActive {
		return false
	}
	if f.Company != "" && !containsFold(p.Company, f.Company) {
		return false
	}
	if f.Location != "" && !containsFold(p.Location, f.Location) {
		return false
	}
	if f.JobType != "" && p.JobType != f.JobType {
		return false
	}
	if f.Source != "" && p.Source != f.Source {
		return false
	}
	return true
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}

// clonePosting copies the pointer and slice fields so callers cannot mutate
// stored rows.
func clonePosting(p domain.Posting) domain.Posting {
	if p.SalaryMin != nil {
		v := *p.SalaryMin
		p.SalaryMin = &v
	}
	if p.SalaryMax != nil {
		v := *p.SalaryMax
		p.SalaryMax = &v
	}
	if p.PostedDate != nil {
		t := *p.PostedDate
		p.PostedDate = &t
	}
	if p.Technologies != nil {
		p.Technologies = append([]string(nil), p.Technologies...)
	}
	return p
}
