package usecase

import (
	"context"
	"fmt"

	"JobScanner/internal/domain"
	"JobScanner/internal/ports"
)

const (
	defaultListLimit = 100
	maxListLimit     = 500
)

// QueryService is the read side exposed over HTTP.
type QueryService struct {
	repository   ports.PostingRepository
	stats        *StatsService
	defaultLimit int
	maxLimit     int
}

// NewQueryService bounds listings by maxLimit; non-positive limits use the
// built-in defaults.
func NewQueryService(repo ports.PostingRepository, stats *StatsService, defaultLimit, maxLimit int) *QueryService {
	if maxLimit < 1 {
		maxLimit = maxListLimit
	}
	if defaultLimit < 1 || defaultLimit > maxLimit {
		defaultLimit = min(defaultListLimit, maxLimit)
	}
	return &QueryService{
		repository:   repo,
		stats:        stats,
		defaultLimit: defaultLimit,
		maxLimit:     maxLimit,
	}
}

// DefaultLimit is the page size callers use when the client sent none.
func (q *QueryService) DefaultLimit() int {
	return q.defaultLimit
}

// List validates pagination and returns active postings, newest first.
func (q *QueryService) List(ctx context.Context, filter domain.ListFilter) ([]domain.Posting, error) {
	if filter.Skip < 0 {
		return nil, fmt.Errorf("%w: skip must be >= 0", domain.ErrInvalidFilter)
	}
	if filter.Limit < 1 || filter.Limit > q.maxLimit {
		return nil, fmt.Errorf("%w: limit must be between 1 and %d", domain.ErrInvalidFilter, q.maxLimit)
	}

	postings, err := q.repository.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list postings: %w", err)
	}
	return postings, nil
}

// Get returns one posting or an error wrapping domain.ErrNotFound.
func (q *QueryService) Get(ctx context.Context, id int64) (domain.Posting, error) {
	if id < 1 {
		return domain.Posting{}, fmt.Errorf("posting %d: %w", id, domain.ErrNotFound)
	}
	return q.repository.GetByID(ctx, id)
}

func (q *QueryService) Stats(ctx context.Context) (domain.StatsSnapshot, error) {
	return q.stats.Compute(ctx)
}
