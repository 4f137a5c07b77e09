package cmd

import (
	"context"
	"time"

	"pgbackup/internal/config"
	"pgbackup/internal/database"
	"pgbackup/internal/seed"

	"github.com/spf13/cobra"
)

// seedCmd represents the seed command
var seedCmd = &cobra.Command{
	Use:   "seed <env-file>",
	Short: "Provision the configured databases and fill them with generated rows",
	Long: `Provision the configured databases and fill them with generated rows.

For each DB_<n> entry in the configuration file the role is created if
missing, the database is created with that role as owner, privileges are
granted, and a users table is seeded with SEED_ROWS generated rows.
Everything is idempotent, so the command is safe to re-run.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSeed(cmd.Context(), args[0])
	},
}

func runSeed(ctx context.Context, envPath string) error {
	cfg, err := config.Load(envPath)
	if err != nil {
		return err
	}

	timestamp := time.Now().Format(config.TimestampFormat)
	log, err := runLogger(cfg.LogRoot, "seed_run_"+timestamp+".log")
	if err != nil {
		return err
	}

	log.Info("Seeding started", "config", envPath)

	db := database.NewPostgreSQL(cfg.AdminHost, cfg.AdminPort, cfg.AdminUser, cfg.AdminPassword, log)
	if err := db.Connect(ctx); err != nil {
		log.Error("Cannot connect to administrative endpoint", "error", err)
		return err
	}
	defer db.Close()

	results, err := seed.New(cfg, log, db).Run(ctx)
	if err != nil {
		return err
	}

	for _, r := range results {
		log.Info("Seed result", "database", r.Database, "user", r.User, "inserted", r.Inserted)
	}
	log.Info("Seeding finished")
	return nil
}
