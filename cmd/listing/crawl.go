package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var crawlCmd = &cobra.Command{
	Use:   "crawl",
	Short: "Run one crawl pass and exit",
	Long:  "Runs every configured source once, saving new jobs to the store, then exits.",
	RunE:  runCrawl,
}

func init() {
	rootCmd.AddCommand(crawlCmd)
}

func runCrawl(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	jobStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	defer jobStore.Close()

	enricher := setupEnricher(cfg, logger)

	runners := buildRunners(cfg, jobStore, enricher, logger)
	if len(runners) == 0 {
		logger.Error("no sources to crawl")
		os.Exit(1)
	}

	for _, r := range runners {
		if err := r.Run(ctx); err != nil {
			logger.Error("crawl pass failed", "source", r.Source, "error", err)
		}
	}

	logger.Info("crawl complete")
	return nil
}
