package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/beneyalraj/listing/internal/ai"
	"github.com/beneyalraj/listing/internal/audit"
	"github.com/beneyalraj/listing/internal/config"
	"github.com/beneyalraj/listing/internal/crawler"
	"github.com/beneyalraj/listing/internal/enrich"
	"github.com/beneyalraj/listing/internal/fetch"
	"github.com/beneyalraj/listing/internal/model"
	"github.com/beneyalraj/listing/internal/pipeline"
	"github.com/beneyalraj/listing/internal/quota"
	"github.com/beneyalraj/listing/internal/store"
)

var (
	cfgPath string
	debug   bool
)

var rootCmd = &cobra.Command{
	Use:   "listing",
	Short: "Quota-governed job crawler",
	Long:  "Listing crawls job sources on a schedule, deduplicates postings, and stores enriched descriptions.",
	// Default to `start` so that `listing` with no args runs the daemon.
	// This preserves compatibility with systemd unit files that invoke the binary directly.
	RunE: runStart,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "path to config file (default: LISTING_CONFIG env var or ./config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
}

// loadConfig resolves the config path and parses it.
// Priority: explicit path arg > LISTING_CONFIG env var > "./config.yaml"
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		if env := os.Getenv("LISTING_CONFIG"); env != "" {
			path = env
		} else {
			path = "config.yaml"
		}
	}
	return config.Load(path)
}

func setupLogger(dbg bool) *slog.Logger {
	logLevel := slog.LevelInfo
	if dbg {
		logLevel = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
}

func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (model.JobStore, error) {
	switch cfg.Store.Type {
	case "postgres":
		logger.Info("using postgres store")
		return store.NewPostgresStore(ctx, cfg.Store.DSN)
	default:
		return store.NewSQLiteStore(cfg.Store.Path)
	}
}

func setupEnricher(cfg *config.Config, logger *slog.Logger) enrich.Enricher {
	if !cfg.AI.Enabled {
		return enrich.NewPassthrough()
	}

	httpClient := &http.Client{Timeout: cfg.AI.Timeout}
	provider := ai.NewOpenAIProvider(cfg.AI.BaseURL, cfg.AI.APIKey, cfg.AI.Model, httpClient)
	ledger := quota.NewLedger(cfg.Quota.StateFile, cfg.Quota.MaxPerDay, cfg.Quota.MaxPerMinute, logger)
	logger.Info("ai enrichment enabled",
		"model", cfg.AI.Model,
		"max_per_minute", cfg.Quota.MaxPerMinute,
		"max_per_day", cfg.Quota.MaxPerDay,
	)
	return enrich.NewGate(provider, ledger, logger)
}

func buildRunners(cfg *config.Config, jobStore model.JobStore, enricher enrich.Enricher, logger *slog.Logger) []*pipeline.Runner {
	httpClient := &http.Client{Timeout: cfg.HTTP.Timeout}
	auditLog := audit.NewLogger(cfg.AuditLog, logger)

	listClient := fetch.NewClient(httpClient, cfg.HTTP.MaxRetries, cfg.HTTP.RetryDelay,
		cfg.HTTP.ListingDelayMin, cfg.HTTP.ListingDelayMax, logger)
	detailClient := fetch.NewClient(httpClient, cfg.HTTP.MaxRetries, cfg.HTTP.RetryDelay,
		cfg.HTTP.DetailDelayMin, cfg.HTTP.DetailDelayMax, logger)

	var runners []*pipeline.Runner

	if len(cfg.Queries.LinkedIn) > 0 {
		opts := crawler.LinkedInOptions{
			GeoID:        cfg.LinkedIn.GeoID,
			PostedWithin: cfg.LinkedIn.PostedWithin,
			JobType:      cfg.LinkedIn.JobType,
			WorkType:     cfg.LinkedIn.WorkType,
			MaxStart:     cfg.LinkedIn.MaxStart,
		}
		c := crawler.NewLinkedInCrawler("", opts, listClient, detailClient, logger)
		runners = append(runners, pipeline.NewRunner(
			cfg.Queries.LinkedIn, c, jobStore, enricher, false, auditLog, logger))
		logger.Info("registered source", "source", c.Source(), "queries", len(cfg.Queries.LinkedIn))
	}

	if len(cfg.Queries.CareersFuture) > 0 {
		opts := crawler.CareersFutureOptions{
			Categories:      cfg.CareersFuture.Categories,
			EmploymentTypes: cfg.CareersFuture.EmploymentTypes,
		}
		c := crawler.NewCareersFutureCrawler("", opts, detailClient, logger)
		// The board issues a fresh UUID when a posting is renewed, so the
		// company/title tier runs here too.
		runners = append(runners, pipeline.NewRunner(
			cfg.Queries.CareersFuture, c, jobStore, enricher, true, auditLog, logger))
		logger.Info("registered source", "source", c.Source(), "queries", len(cfg.Queries.CareersFuture))
	}

	return runners
}
