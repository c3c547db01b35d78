package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"JobScanner/internal/domain"
	"JobScanner/internal/infrastructure/storage"
)

type fakeAdapter struct {
	name     string
	postings []domain.Posting
	err      error
	panicMsg string
	started  chan struct{}
	release  chan struct{}
}

func (f *fakeAdapter) Name() string { return f.name }

func (f *fakeAdapter) Scrape(ctx context.Context, maxPages int) ([]domain.Posting, error) {
	if f.started != nil {
		close(f.started)
	}
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.panicMsg != "" {
		panic(f.panicMsg)
	}
	if f.err != nil {
		return nil, f.err
	}
	out := make([]domain.Posting, len(f.postings))
	copy(out, f.postings)
	return out, nil
}

func candidates(source string, n int) []domain.Posting {
	out := make([]domain.Posting, n)
	for i := range out {
		out[i] = domain.Posting{
			Title:   fmt.Sprintf("Job %d", i),
			Company: "Acme",
			URL:     fmt.Sprintf("https://%s.test/job/%d", source, i),
			Source:  source,
		}
	}
	return out
}

// flakyRepository wraps the memory store and injects failures.
type flakyRepository struct {
	*storage.MemoryRepository
	precheckErr error
	failURL     string
}

func (r *flakyRepository) ExistingURLs(ctx context.Context, urls []string) (map[string]bool, error) {
	if r.precheckErr != nil {
		return nil, r.precheckErr
	}
	return r.MemoryRepository.ExistingURLs(ctx, urls)
}

func (r *flakyRepository) Insert(ctx context.Context, p *domain.Posting) (bool, error) {
	if p.URL == r.failURL {
		return false, errors.New("connection reset")
	}
	return r.MemoryRepository.Insert(ctx, p)
}

type recordingPublisher struct {
	mu   sync.Mutex
	urls []string
	err  error
}

func (p *recordingPublisher) PublishCreated(_ context.Context, posting domain.Posting) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.urls = append(p.urls, posting.URL)
	return p.err
}

type recordingNotifier struct {
	mu      sync.Mutex
	digests []string
}

func (n *recordingNotifier) PublishDigest(_ context.Context, digest string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.digests = append(n.digests, digest)
	return nil
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.digests)
}

type memoryCache struct {
	mu          sync.Mutex
	snap        *domain.StatsSnapshot
	getErr      error
	sets        int
	invalidated int
}

func (c *memoryCache) Get(context.Context) (*domain.StatsSnapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return nil, c.getErr
	}
	if c.snap == nil {
		return nil, nil
	}
	s := *c.snap
	return &s, nil
}

func (c *memoryCache) Set(_ context.Context, snap domain.StatsSnapshot) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sets++
	c.snap = &snap
	return nil
}

func (c *memoryCache) Invalidate(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidated++
	c.snap = nil
	return nil
}

func fixedClock() func() time.Time {
	t := time.Date(2025, 11, 8, 12, 0, 0, 0, time.UTC)
	return func() time.Time { return t }
}
