package scanner

import (
	"context"
	"fmt"
	"sort"

	"JobScanner/internal/domain"
)

// Site carries the configuration of one job source.
type Site struct {
	Name    string
	BaseURL string
	Options map[string]string
}

// Option returns a site option or fallback when unset.
func (s Site) Option(key, fallback string) string {
	if v, ok := s.Options[key]; ok && v != "" {
		return v
	}
	return fallback
}

// Adapter produces candidate postings for one origin. Implementations must not
// persist anything and must skip malformed items instead of failing.
type Adapter interface {
	Name() string
	Scrape(ctx context.Context, maxPages int) ([]domain.Posting, error)
}

// Factory builds an adapter for a configured site.
type Factory func(site Site) (Adapter, error)

// Registry keeps a mapping from scanner kinds to their factories.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: map[string]Factory{}}
}

// Register adds or replaces a scanner factory.
func (r *Registry) Register(kind string, factory Factory) {
	if r.factories == nil {
		r.factories = map[string]Factory{}
	}
	r.factories[kind] = factory
}

// Build resolves kind and constructs the adapter for site.
func (r *Registry) Build(kind string, site Site) (Adapter, error) {
	factory, ok := r.factories[kind]
	if !ok {
		return nil, fmt.Errorf("scanner %s: %w", kind, domain.ErrUnknownScanner)
	}
	adapter, err := factory(site)
	if err != nil {
		return nil, fmt.Errorf("build %s scanner for %s: %w", kind, site.Name, err)
	}
	return adapter, nil
}

// Kinds lists the registered scanner kinds in sorted order.
func (r *Registry) Kinds() []string {
	kinds := make([]string, 0, len(r.factories))
	for k := range r.factories {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}
