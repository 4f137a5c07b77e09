package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	logLevel  string
	logFormat string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "pgbackup",
	Short: "PostgreSQL fleet backup and restore tool",
	Long: `Backs up and restores a fleet of PostgreSQL servers by driving
pg_dump and pg_restore, organizing the resulting artifacts on disk, and
pruning them by age.

Every command takes a single configuration file describing the fleet:
server endpoints (SERVER_*), per-server database credentials
(DB_<n>_NAME/USER/PASS), artifact locations (BACKUP_ROOT, LOG_ROOT) and
the retention window (RETENTION_DAYS).

Commands:
  backup   - dump every configured database, seal per-server archives,
             prune old archives and logs
  restore  - replay every dump artifact found under a directory tree
  seed     - provision the configured databases and fill them with
             generated rows`,
}

// Execute adds all child commands to the root command and runs it.
func Execute(ctx context.Context, version, buildTime, gitCommit string) error {
	rootCmd.Version = fmt.Sprintf("%s (built: %s, commit: %s)", version, buildTime, gitCommit)
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug|info|warn|error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "Log format (text|json)")

	rootCmd.AddCommand(backupCmd)
	rootCmd.AddCommand(restoreCmd)
	rootCmd.AddCommand(seedCmd)
}
