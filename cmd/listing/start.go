package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/beneyalraj/listing/internal/scheduler"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the crawl daemon",
	Long:  "Start the scheduler daemon; blocks until SIGINT/SIGTERM.",
	RunE:  runStart,
}

func init() {
	rootCmd.AddCommand(startCmd)
}

func runStart(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Info("config loaded",
		"interval", cfg.ScheduleInterval.String(),
		"linkedin_queries", len(cfg.Queries.LinkedIn),
		"careersfuture_queries", len(cfg.Queries.CareersFuture),
		"store", cfg.Store.Type,
		"ai_enabled", cfg.AI.Enabled,
	)

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

	sched := scheduler.NewScheduler(runners, cfg.ScheduleInterval, logger)
	if err := sched.Run(ctx); err != nil {
		logger.Error("scheduler error", "error", err)
		os.Exit(1)
	}

	logger.Info("goodbye")
	return nil
}
