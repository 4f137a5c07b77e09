package cmd

import (
	"context"
	"time"

	"pgbackup/internal/config"
	"pgbackup/internal/database"
	"pgbackup/internal/restore"
	"pgbackup/internal/runner"

	"github.com/spf13/cobra"
)

// restoreCmd represents the restore command
var restoreCmd = &cobra.Command{
	Use:   "restore <env-file> [backup-dir]",
	Short: "Restore every dump artifact found under a directory tree",
	Long: `Restore every dump artifact found under a directory tree.

The target directory defaults to BACKUP_ROOT from the configuration file.
Each .dump file's database name is recovered from its filename, the
database is created if missing, and pg_restore replays the dump with
--clean --if-exists --no-owner --no-acl against the administrative
endpoint (PG_HOST/PG_PORT/PG_USER/PG_PASS).

A restore that exits non-zero but only hit ignorable drop-time errors
still counts as a success. The summary lists every failed database.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := ""
		if len(args) > 1 {
			dir = args[1]
		}
		return runRestore(cmd.Context(), args[0], dir)
	},
}

func runRestore(ctx context.Context, envPath, dir string) error {
	cfg, err := config.Load(envPath)
	if err != nil {
		return err
	}
	if dir == "" {
		dir = cfg.BackupRoot
	}

	timestamp := time.Now().Format(config.TimestampFormat)
	log, err := runLogger(cfg.LogRoot, "restore_run_"+timestamp+".log")
	if err != nil {
		return err
	}

	log.Info("PostgreSQL restore started", "config", envPath, "dir", dir)

	db := database.NewPostgreSQL(cfg.AdminHost, cfg.AdminPort, cfg.AdminUser, cfg.AdminPassword, log)
	if err := db.Connect(ctx); err != nil {
		log.Error("Cannot connect to administrative endpoint", "error", err)
		return err
	}
	defer db.Close()

	engine := restore.New(cfg, log, db, runner.New(log))
	if _, err := engine.Run(ctx, dir, timestamp); err != nil {
		log.Error("Restore run failed", "error", err)
		return err
	}

	log.Info("PostgreSQL restore finished")
	return nil
}
