// Command firms-update runs a single FIRMS ingestion and prints the run
// summary as JSON.
//
// Usage:
//
//	go run ./cmd/firms-update -days 3 -source VIIRS_SNPP_NRT
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/wildfire-etl/internal/app"
	"github.com/couchcryptid/wildfire-etl/internal/config"
	"github.com/couchcryptid/wildfire-etl/internal/observability"
	"github.com/couchcryptid/wildfire-etl/internal/pipeline"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "firms-update:", err)
		os.Exit(1)
	}
}

func run() error {
	days := flag.Int("days", config.DefaultLookbackDays, "number of days of detections to fetch")
	source := flag.String("source", config.DefaultFIRMSSource, "FIRMS source product (MODIS_NRT, VIIRS_SNPP_NRT, ...)")
	flag.Parse()

	if *days < 1 {
		return fmt.Errorf("-days must be at least 1, got %d", *days)
	}

	if err := config.LoadDotEnv(); err != nil {
		return err
	}
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := observability.NewLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger, observability.NewMetrics())
	if err != nil {
		return err
	}
	defer a.Close() //nolint:errcheck // best-effort on exit

	summary, err := a.Pipeline.Run(ctx, pipeline.RunOptions{Days: *days, Source: *source})
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(summary)
}
