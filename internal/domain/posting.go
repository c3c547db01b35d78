package domain

import (
	"strings"
	"time"
)

// technologiesSeparator joins Technologies into their stored form.
const technologiesSeparator = ", "

// Posting is a single job listing; URL is its only stable identity.
type Posting struct {
	ID              int64      `json:"id"`
	Title           string     `json:"title"`
	Company         string     `json:"company"`
	Location        string     `json:"location,omitempty"`
	Description     string     `json:"description,omitempty"`
	SalaryMin       *float64   `json:"salary_min"`
	SalaryMax       *float64   `json:"salary_max"`
	URL             string     `json:"url"`
	Source          string     `json:"source"`
	JobType         string     `json:"job_type,omitempty"`
	ExperienceLevel string     `json:"experience_level,omitempty"`
	Technologies    []string   `json:"technologies,omitempty"`
	PostedDate      *time.Time `json:"posted_date"`
	ScrapedAt       time.Time  `json:"scraped_at"`
	IsActive        bool       `json:"is_active"`
}

// HasSalaryRange reports whether both salary bounds are known.
func (p Posting) HasSalaryRange() bool {
	return p.SalaryMin != nil && p.SalaryMax != nil
}

// TechnologiesText returns the serialized technologies field, empty when none.
func (p Posting) TechnologiesText() string {
	return JoinTechnologies(p.Technologies)
}

// JoinTechnologies serializes an ordered technology set, dropping blanks and repeats.
func JoinTechnologies(techs []string) string {
	if len(techs) == 0 {
		return ""
	}
	seen := make(map[string]struct{}, len(techs))
	kept := make([]string, 0, len(techs))
	for _, t := range techs {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		key := strings.ToLower(t)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		kept = append(kept, t)
	}
	return strings.Join(kept, technologiesSeparator)
}

// SplitTechnologies is the inverse of JoinTechnologies.
func SplitTechnologies(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	techs := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			techs = append(techs, part)
		}
	}
	return techs
}

// ListFilter narrows a posting listing. Zero-valued string fields are ignored.
type ListFilter struct {
	Company  string
	Location string
	JobType  string
	Source   string
	Skip     int
	Limit    int
}

// SourceOutcome is the result of running one adapter inside a pass.
type SourceOutcome struct {
	Source  string `json:"scraper"`
	Scraped int    `json:"scraped"`
	Created int    `json:"created"`
	Error   string `json:"error,omitempty"`
}

// Failed reports whether the adapter contributed nothing because of an error.
func (o SourceOutcome) Failed() bool {
	return o.Error != ""
}

// RunReport summarises one orchestration pass over all adapters.
type RunReport struct {
	RunID        string          `json:"run_id"`
	StartedAt    time.Time       `json:"started_at"`
	FinishedAt   time.Time       `json:"finished_at"`
	TotalScraped int             `json:"total_scraped"`
	TotalCreated int             `json:"total_created"`
	ScrapersRun  int             `json:"scrapers_run"`
	Details      []SourceOutcome `json:"details"`
}

// Failures returns the outcomes that carry an error.
func (r RunReport) Failures() []SourceOutcome {
	var failed []SourceOutcome
	for _, d := range r.Details {
		if d.Failed() {
			failed = append(failed, d)
		}
	}
	return failed
}

// TechnologyCount is one bucket of the technologies frequency table.
type TechnologyCount struct {
	Technology string `json:"technology"`
	Count      int64  `json:"count"`
}

// SourceCount is the number of postings scraped from one source.
type SourceCount struct {
	Source string `json:"source"`
	Count  int64  `json:"count"`
}

// StatsSnapshot is the aggregate view computed over persisted postings.
type StatsSnapshot struct {
	TotalJobs       int64             `json:"total_jobs"`
	ActiveJobs      int64             `json:"active_jobs"`
	CompaniesCount  int64             `json:"companies_count"`
	LocationsCount  int64             `json:"locations_count"`
	AvgSalary       *float64          `json:"avg_salary"`
	TopTechnologies []TechnologyCount `json:"top_technologies"`
	JobsBySource    []SourceCount     `json:"jobs_by_source"`
}

// TopTechnologiesLimit bounds StatsSnapshot.TopTechnologies.
const TopTechnologiesLimit = 10
