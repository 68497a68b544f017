package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/beneyalraj/listing/internal/enrich"
	"github.com/beneyalraj/listing/internal/store"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Crawl once without persisting, then exit",
	Long:  "One-shot crawl: runs every source against an empty store, skips enrichment, writes nothing. Useful for verifying config and connectivity.",
	RunE:  runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Info("check mode: nothing will be saved, descriptions stay raw")

	runners := buildRunners(cfg, store.NewNopStore(), enrich.NewPassthrough(), logger)
	if len(runners) == 0 {
		logger.Error("no sources to crawl")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	for _, r := range runners {
		if err := r.Run(ctx); err != nil {
			logger.Error("crawl pass failed", "source", r.Source, "error", err)
		}
	}

	logger.Info("check complete")
	return nil
}
