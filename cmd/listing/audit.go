package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/beneyalraj/listing/internal/audit"
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Browse crawl decisions interactively (TUI)",
	Long:  "Launches a TUI over the audit log: every saved, skipped, and failed job from past crawl passes, filterable by outcome.",
	RunE:  runAuditCmd,
}

func init() {
	rootCmd.AddCommand(auditCmd)
}

func runAuditCmd(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	if cfg.AuditLog == "" {
		logger.Error("audit_log is not set in config")
		os.Exit(1)
	}

	entries, err := audit.Load(cfg.AuditLog)
	if err != nil {
		logger.Error("failed to load audit log", "path", cfg.AuditLog, "error", err)
		os.Exit(1)
	}
	if len(entries) == 0 {
		logger.Info("audit log is empty, run a crawl first", "path", cfg.AuditLog)
		return nil
	}

	return audit.RunBrowseTUI(entries)
}
