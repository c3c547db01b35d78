package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"JobScanner/internal/app"
	"JobScanner/internal/config"
	"JobScanner/internal/logging"
)

func main() {
	once := flag.Bool("once", false, "run a single scrape pass, print the report as JSON and exit")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.Load()
	logger := logging.New(cfg.Logging.Level, cfg.Logging.Format)

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("application init failed", "error", err)
		os.Exit(1)
	}
	defer func() { _ = application.Close() }()

	if *once {
		report, err := application.RunOnce(ctx)
		if err != nil {
			logger.Error("scrape pass failed", "error", err)
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(report)
		if err != nil {
			_ = application.Close()
			os.Exit(1)
		}
		return
	}

	if err := application.Serve(ctx); err != nil {
		logger.Error("application stopped", "error", err)
		_ = application.Close()
		os.Exit(1)
	}
}
