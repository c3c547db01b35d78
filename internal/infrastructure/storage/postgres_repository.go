package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"

	"JobScanner/internal/config"
	"JobScanner/internal/domain"
	"JobScanner/internal/ports"
)

const jobsTable = "jobs"

var postingColumns = []string{
	"id", "title", "company", "location", "description", "salary_min", "salary_max",
	"url", "source", "job_type", "experience_level", "technologies", "posted_date",
	"scraped_at", "is_active",
}

const schema = `
CREATE TABLE IF NOT EXISTS jobs (
    id               BIGSERIAL PRIMARY KEY,
    title            TEXT NOT NULL,
    company          TEXT NOT NULL,
    location         TEXT,
    description      TEXT,
    salary_min       DOUBLE PRECISION,
    salary_max       DOUBLE PRECISION,
    url              TEXT NOT NULL UNIQUE,
    source           TEXT NOT NULL,
    job_type         TEXT,
    experience_level TEXT,
    technologies     TEXT,
    posted_date      TIMESTAMPTZ,
    scraped_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    is_active        BOOLEAN NOT NULL DEFAULT TRUE
);
CREATE INDEX IF NOT EXISTS idx_jobs_company ON jobs (company);
CREATE INDEX IF NOT EXISTS idx_jobs_source ON jobs (source);
CREATE INDEX IF NOT EXISTS idx_jobs_scraped_at ON jobs (scraped_at DESC, id DESC);
`

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// PostgresRepository persists postings into Postgres. The unique constraint on
// url is the only deduplication guarantee across processes.
type PostgresRepository struct {
	db *sql.DB
}

var _ ports.PostingRepository = (*PostgresRepository)(nil)

// NewPostgresRepository wires a sql.DB implementation.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Open connects to Postgres with the configured pool settings and pings it.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("opening postgres connection: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}
	return db, nil
}

// EnsureSchema creates the jobs table and its indexes when missing.
func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// ExistingURLs returns a map with the URLs that already exist in storage.
func (r *PostgresRepository) ExistingURLs(ctx context.Context, urls []string) (map[string]bool, error) {
	if len(urls) == 0 {
		return map[string]bool{}, nil
	}

	query := `SELECT url FROM jobs WHERE url = ANY($1)`

	rows, err := r.db.QueryContext(ctx, query, pq.StringArray(urls))
	if err != nil {
		return nil, fmt.Errorf("query existing urls: %w", err)
	}
	defer rows.Close()

	result := make(map[string]bool)
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, fmt.Errorf("scan url: %w", err)
		}
		result[u] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return result, nil
}

// Insert stores p unless its URL is already taken. A conflict is reported as
// created=false without an error.
func (r *PostgresRepository) Insert(ctx context.Context, p *domain.Posting) (bool, error) {
	query, args, err := insertQuery(*p).ToSql()
	if err != nil {
		return false, fmt.Errorf("build insert: %w", err)
	}

	var id int64
	err = r.db.QueryRowContext(ctx, query, args...).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("insert posting %s: %w", p.URL, err)
	}
	p.ID = id
	return true, nil
}

// List returns active postings matching filter, newest first.
func (r *PostgresRepository) List(ctx context.Context, filter domain.ListFilter) ([]domain.Posting, error) {
	query, args, err := listQuery(filter).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query postings: %w", err)
	}
	defer rows.Close()

	postings := make([]domain.Posting, 0)
	for rows.Next() {
		p, err := scanPosting(rows)
		if err != nil {
			return nil, err
		}
		postings = append(postings, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return postings, nil
}

// GetByID loads one posting. Missing rows map to domain.ErrNotFound.
func (r *PostgresRepository) GetByID(ctx context.Context, id int64) (domain.Posting, error) {
	query, args, err := psql.Select(postingColumns...).From(jobsTable).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return domain.Posting{}, fmt.Errorf("build get: %w", err)
	}

	p, err := scanPosting(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Posting{}, fmt.Errorf("posting %d: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return domain.Posting{}, err
	}
	return p, nil
}

const (
	totalsQuery = `SELECT
    COUNT(*),
    COUNT(*) FILTER (WHERE is_active),
    COUNT(DISTINCT company),
    COUNT(DISTINCT location),
    AVG((salary_min + salary_max) / 2) FILTER (WHERE salary_min IS NOT NULL AND salary_max IS NOT NULL)
FROM jobs`

	topTechnologiesQuery = `SELECT technologies, COUNT(*) AS cnt
FROM jobs
WHERE technologies IS NOT NULL
GROUP BY technologies
ORDER BY cnt DESC, MIN(id)
LIMIT $1`

	bySourceQuery = `SELECT source, COUNT(*) AS cnt
FROM jobs
GROUP BY source
ORDER BY cnt DESC, source`
)

// Aggregate computes the stats snapshot in three read-only queries.
func (r *PostgresRepository) Aggregate(ctx context.Context) (domain.StatsSnapshot, error) {
	var (
		snap domain.StatsSnapshot
		avg  sql.NullFloat64
	)

	err := r.db.QueryRowContext(ctx, totalsQuery).Scan(
		&snap.TotalJobs, &snap.ActiveJobs, &snap.CompaniesCount, &snap.LocationsCount, &avg,
	)
	if err != nil {
		return domain.StatsSnapshot{}, fmt.Errorf("query totals: %w", err)
	}
	if avg.Valid {
		v := avg.Float64
		snap.AvgSalary = &v
	}

	snap.TopTechnologies = make([]domain.TechnologyCount, 0)
	err = r.collect(ctx, topTechnologiesQuery, []any{domain.TopTechnologiesLimit}, func(rows *sql.Rows) error {
		var tc domain.TechnologyCount
		if err := rows.Scan(&tc.Technology, &tc.Count); err != nil {
			return err
		}
		snap.TopTechnologies = append(snap.TopTechnologies, tc)
		return nil
	})
	if err != nil {
		return domain.StatsSnapshot{}, fmt.Errorf("query top technologies: %w", err)
	}

	snap.JobsBySource = make([]domain.SourceCount, 0)
	err = r.collect(ctx, bySourceQuery, nil, func(rows *sql.Rows) error {
		var sc domain.SourceCount
		if err := rows.Scan(&sc.Source, &sc.Count); err != nil {
			return err
		}
		snap.JobsBySource = append(snap.JobsBySource, sc)
		return nil
	})
	if err != nil {
		return domain.StatsSnapshot{}, fmt.Errorf("query jobs by source: %w", err)
	}

	return snap, nil
}

func (r *PostgresRepository) collect(ctx context.Context, query string, args []any, scan func(*sql.Rows) error) error {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		if err := scan(rows); err != nil {
			return err
		}
	}
	return rows.Err()
}

func insertQuery(p domain.Posting) sq.InsertBuilder {
	return psql.Insert(jobsTable).
		Columns(
			"title", "company", "location", "description", "salary_min", "salary_max",
			"url", "source", "job_type", "experience_level", "technologies", "posted_date",
			"scraped_at", "is_active",
		).
		Values(
			p.Title, p.Company, nullString(p.Location), nullString(p.Description),
			nullFloat(p.SalaryMin), nullFloat(p.SalaryMax),
			p.URL, p.Source, nullString(p.JobType), nullString(p.ExperienceLevel),
			nullString(p.TechnologiesText()), nullTime(p.PostedDate),
			p.ScrapedAt, p.IsActive,
		).
		Suffix("ON CONFLICT (url) DO NOTHING RETURNING id")
}

func listQuery(filter domain.ListFilter) sq.SelectBuilder {
	q := psql.Select(postingColumns...).
		From(jobsTable).
		Where(sq.Eq{"is_active": true})

	if filter.Company != "" {
		q = q.Where(sq.ILike{"company": "%" + escapeLike(filter.Company) + "%"})
	}
	if filter.Location != "" {
		q = q.Where(sq.ILike{"location": "%" + escapeLike(filter.Location) + "%"})
	}
	if filter.JobType != "" {
		q = q.Where(sq.Eq{"job_type": filter.JobType})
	}
	if filter.Source != "" {
		q = q.Where(sq.Eq{"source": filter.Source})
	}

	q = q.OrderBy("scraped_at DESC", "id DESC")
	if filter.Skip > 0 {
		q = q.Offset(uint64(filter.Skip))
	}
	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	return q
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike makes user input match literally inside an ILIKE pattern.
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPosting(row rowScanner) (domain.Posting, error) {
	var (
		p                                     domain.Posting
		location, description, jobType, level sql.NullString
		technologies                          sql.NullString
		salaryMin, salaryMax                  sql.NullFloat64
		posted                                sql.NullTime
	)

	err := row.Scan(
		&p.ID, &p.Title, &p.Company, &location, &description, &salaryMin, &salaryMax,
		&p.URL, &p.Source, &jobType, &level, &technologies, &posted,
		&p.ScrapedAt, &p.IsActive,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Posting{}, err
	}
	if err != nil {
		return domain.Posting{}, fmt.Errorf("scan posting: %w", err)
	}

	p.Location = location.String
	p.Description = description.String
	p.JobType = jobType.String
	p.ExperienceLevel = level.String
	p.Technologies = domain.SplitTechnologies(technologies.String)
	if salaryMin.Valid {
		v := salaryMin.Float64
		p.SalaryMin = &v
	}
	if salaryMax.Valid {
		v := salaryMax.Float64
		p.SalaryMax = &v
	}
	if posted.Valid {
		t := posted.Time
		p.PostedDate = &t
	}
	return p, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
