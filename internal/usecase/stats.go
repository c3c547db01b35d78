package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"

	"JobScanner/internal/domain"
	"JobScanner/internal/logging"
	"JobScanner/internal/ports"
)

const statsFlightKey = "stats"

// StatsService computes the aggregate snapshot, optionally through a cache.
// Cache failures are logged and never fail the call.
type StatsService struct {
	repository ports.PostingRepository
	cache      ports.StatsCache
	group      singleflight.Group
	logger     *slog.Logger

	// mu guards generation; a flight only writes the cache when no
	// invalidation happened since it started aggregating.
	mu         sync.Mutex
	generation uint64
}

func NewStatsService(repo ports.PostingRepository, cache ports.StatsCache, log *slog.Logger) *StatsService {
	return &StatsService{
		repository: repo,
		cache:      cache,
		logger:     logging.OrDiscard(log),
	}
}

// Compute returns the cached snapshot when present; concurrent misses share
// one repository aggregation.
func (s *StatsService) Compute(ctx context.Context) (domain.StatsSnapshot, error) {
	if s.cache != nil {
		cached, err := s.cache.Get(ctx)
		if err != nil {
			s.logger.Warn("stats cache read failed", "error", err)
		} else if cached != nil {
			return *cached, nil
		}
	}

	v, err, _ := s.group.Do(statsFlightKey, func() (any, error) {
		gen := s.currentGeneration()
		snap, err := s.repository.Aggregate(ctx)
		if err != nil {
			return domain.StatsSnapshot{}, fmt.Errorf("aggregate stats: %w", err)
		}
		if s.cache != nil {
			s.store(ctx, gen, snap)
		}
		return snap, nil
	})
	if err != nil {
		return domain.StatsSnapshot{}, err
	}
	return v.(domain.StatsSnapshot), nil
}

// Invalidate drops the cached snapshot after new postings were stored.
// Aggregations already in flight keep serving their callers but no longer
// populate the cache.
func (s *StatsService) Invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	s.group.Forget(statsFlightKey)
	if err := s.cache.Invalidate(ctx); err != nil {
		s.logger.Warn("stats cache invalidation failed", "error", err)
	}
}

func (s *StatsService) currentGeneration() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

func (s *StatsService) store(ctx context.Context, gen uint64, snap domain.StatsSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation {
		s.logger.Debug("stats snapshot outdated by invalidation, not cached")
		return
	}
	if err := s.cache.Set(ctx, snap); err != nil {
		s.logger.Warn("stats cache write failed", "error", err)
	}
}
