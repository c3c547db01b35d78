package parser

import (
	"errors"
	"testing"

	"JobScanner/internal/config"
	"JobScanner/internal/domain"
	"JobScanner/internal/infrastructure/fetcher"
	"JobScanner/internal/scanner"
)

func TestBuildAdaptersKeepsConfiguredOrder(t *testing.T) {
	t.Parallel()

	reg := scanner.NewRegistry()
	RegisterDefaults(reg, fetcher.New(fetcher.Options{}), 2, nil)

	adapters, err := BuildAdapters(reg, []config.SiteConfig{
		{Name: "Board", Scanner: BoardKind, BaseURL: "https://board.test"},
		{Name: "ExampleJobs", Scanner: DemoKind},
	}, nil)
	if err != nil {
		t.Fatalf("BuildAdapters error: %v", err)
	}
	if len(adapters) != 2 || adapters[0].Name() != "Board" || adapters[1].Name() != "ExampleJobs" {
		t.Fatalf("unexpected adapters: %v", adapters)
	}
	if _, ok := adapters[0].(*BoardScanner); !ok {
		t.Fatalf("expected a board scanner, got %T", adapters[0])
	}
}

func TestBuildAdaptersRejectsUnknownScanner(t *testing.T) {
	t.Parallel()

	reg := scanner.NewRegistry()
	RegisterDefaults(reg, fetcher.New(fetcher.Options{}), 2, nil)

	_, err := BuildAdapters(reg, []config.SiteConfig{{Name: "x", Scanner: "linkedin"}}, nil)
	if !errors.Is(err, domain.ErrUnknownScanner) {
		t.Fatalf("expected ErrUnknownScanner, got %v", err)
	}
}

func TestBuildAdaptersRejectsDuplicateNames(t *testing.T) {
	t.Parallel()

	reg := scanner.NewRegistry()
	RegisterDefaults(reg, fetcher.New(fetcher.Options{}), 2, nil)

	_, err := BuildAdapters(reg, []config.SiteConfig{
		{Name: "Same", Scanner: DemoKind},
		{Name: "Same", Scanner: DemoKind},
	}, nil)
	if err == nil {
		t.Fatal("expected duplicate site error")
	}
}
