package parser

import (
	"fmt"
	"log/slog"

	"JobScanner/internal/config"
	"JobScanner/internal/logging"
	"JobScanner/internal/ports"
	"JobScanner/internal/scanner"
)

// RegisterDefaults wires the shipped scanner kinds into reg.
func RegisterDefaults(reg *scanner.Registry, fetcher ports.PageFetcher, maxRetries int, log *slog.Logger) {
	log = logging.OrDiscard(log)

	reg.Register(DemoKind, func(site scanner.Site) (scanner.Adapter, error) {
		return NewDemoScanner(site, log.With("scanner", DemoKind, "source", site.Name)), nil
	})
	reg.Register(BoardKind, func(site scanner.Site) (scanner.Adapter, error) {
		return NewBoardScanner(site, fetcher, maxRetries, log.With("scanner", BoardKind, "source", site.Name))
	})
}

// BuildAdapters turns the configured sites into the ordered adapter list of a
// scrape pass. Duplicate site names are rejected because the name is the
// posting source identifier.
func BuildAdapters(reg *scanner.Registry, sites []config.SiteConfig, log *slog.Logger) ([]scanner.Adapter, error) {
	if reg == nil {
		return nil, fmt.Errorf("scanner registry is not configured")
	}
	log = logging.OrDiscard(log)

	adapters := make([]scanner.Adapter, 0, len(sites))
	names := make(map[string]struct{}, len(sites))
	for _, site := range sites {
		if _, dup := names[site.Name]; dup {
			return nil, fmt.Errorf("site %s is configured twice", site.Name)
		}
		names[site.Name] = struct{}{}

		adapter, err := reg.Build(site.Scanner, toScannerSite(site))
		if err != nil {
			return nil, fmt.Errorf("site %s: %w", site.Name, err)
		}
		log.Debug("source registered", "site", site.Name, "scanner", site.Scanner)
		adapters = append(adapters, adapter)
	}
	return adapters, nil
}

func toScannerSite(cfg config.SiteConfig) scanner.Site {
	return scanner.Site{
		Name:    cfg.Name,
		BaseURL: cfg.BaseURL,
		Options: cfg.Options,
	}
}
