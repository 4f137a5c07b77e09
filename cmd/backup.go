package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"pgbackup/internal/backup"
	"pgbackup/internal/config"
	"pgbackup/internal/logger"
	"pgbackup/internal/runner"

	"github.com/spf13/cobra"
)

// backupCmd represents the backup command
var backupCmd = &cobra.Command{
	Use:   "backup <env-file>",
	Short: "Back up every configured database on every configured server",
	Long: `Back up every configured database on every configured server.

For each server the configured databases are dumped in order with pg_dump
(custom format, compression level 9) into a temporary directory, which is
then sealed into one timestamped tar.gz archive per server. Archives and
log files older than RETENTION_DAYS are pruned at the end of the run.

A failed database never aborts its siblings; the run summary reports
success and failure counts per server.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBackup(cmd.Context(), args[0])
	},
}

func runBackup(ctx context.Context, envPath string) error {
	cfg, err := config.Load(envPath)
	if err != nil {
		return err
	}

	timestamp := time.Now().Format(config.TimestampFormat)
	log, err := runLogger(cfg.LogRoot, "backup_run_"+timestamp+".log")
	if err != nil {
		return err
	}

	log.Info("PostgreSQL backup started", "config", envPath)

	engine := backup.New(cfg, log, runner.New(log))
	if _, err := engine.Run(ctx, timestamp); err != nil {
		log.Error("Backup run failed", "error", err)
		return err
	}

	log.Info("PostgreSQL backup finished")
	return nil
}

// runLogger builds the global run logger writing to stdout and the
// timestamped run log under logRoot.
func runLogger(logRoot, filename string) (logger.Logger, error) {
	if err := os.MkdirAll(logRoot, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	return logger.FileLogger(logLevel, logFormat, filepath.Join(logRoot, filename))
}
