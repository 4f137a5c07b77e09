// Package restore discovers dump artifacts and replays them with
// pg_restore against the administrative endpoint.
package restore

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"pgbackup/internal/config"
	"pgbackup/internal/database"
	"pgbackup/internal/logger"
	"pgbackup/internal/runner"
)

// pg_restore exits non-zero when the --clean pre-drop phase hit missing
// objects; its summary line marks those runs as harmless.
const ignorableRestoreErrors = "errors ignored on restore"

// DatabaseCreator is the administrative capability restore needs: make
// sure a database exists before pg_restore connects to it.
type DatabaseCreator interface {
	EnsureDatabase(ctx context.Context, name string) error
}

// Engine handles restore orchestration
type Engine struct {
	cfg *config.Config
	log logger.Logger
	db  DatabaseCreator
	run *runner.Runner
}

// New creates a new restore engine
func New(cfg *config.Config, log logger.Logger, db DatabaseCreator, run *runner.Runner) *Engine {
	return &Engine{cfg: cfg, log: log, db: db, run: run}
}

// RestoreOutcome is the observable result of one pg_restore attempt.
type RestoreOutcome struct {
	Database string
	ExitCode int
	Output   string
	Err      error
}

// Succeeded reports whether the restore is usable. pg_restore --clean
// exits non-zero when pre-drop statements hit missing objects; those runs
// are still successful when the diagnostic output says the only errors
// were ignored on restore.
func (o RestoreOutcome) Succeeded() bool {
	if o.Err != nil {
		return false
	}
	return o.ExitCode == 0 || strings.Contains(o.Output, ignorableRestoreErrors)
}

// Summary aggregates one restore run
type Summary struct {
	Success  int
	Fail     int
	FailedDB []string
}

// Run discovers every dump artifact under root and restores each into a
// database named after the artifact. Per-database failures are isolated.
func (e *Engine) Run(ctx context.Context, root, timestamp string) (*Summary, error) {
	if err := os.MkdirAll(e.cfg.LogRoot, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	logPath := filepath.Join(e.cfg.LogRoot, fmt.Sprintf("restore_%s.log", timestamp))

	dumps, err := DiscoverDumps(root)
	if err != nil {
		return nil, err
	}
	if len(dumps) == 0 {
		return nil, fmt.Errorf("no .dump files found in %s", root)
	}

	summary := &Summary{}

	for i, dump := range dumps {
		dbName := DatabaseNameFromFile(dump)
		e.log.Info("Restoring database",
			"database", dbName, "file", filepath.Base(dump), "progress", fmt.Sprintf("%d/%d", i+1, len(dumps)))

		// Restore itself reports the authoritative failure, so creation
		// problems only warn.
		if err := e.db.EnsureDatabase(ctx, dbName); err != nil {
			e.log.Warn("Failed to create database", "database", dbName, "error", err)
		}

		outcome := e.restoreDump(ctx, dbName, dump, logPath)
		if outcome.Succeeded() {
			e.log.Info("Database restored", "database", dbName)
			summary.Success++
		} else {
			e.log.Error("Failed to restore database",
				"database", dbName, "exit_code", outcome.ExitCode, "error", outcome.Err)
			if outcome.Output != "" {
				e.log.Error("Restore diagnostics", "database", dbName, "output", outcome.Output)
			}
			summary.Fail++
			summary.FailedDB = append(summary.FailedDB, dbName)
		}
	}

	e.log.Info("Restore summary", "success", summary.Success, "fail", summary.Fail)
	if len(summary.FailedDB) > 0 {
		e.log.Info("Failed databases", "databases", strings.Join(summary.FailedDB, ", "))
	}

	return summary, nil
}

// restoreDump runs one pg_restore attempt against the admin endpoint.
func (e *Engine) restoreDump(ctx context.Context, dbName, dump, logPath string) RestoreOutcome {
	argv := database.BuildRestoreCommand(e.cfg.AdminHost, e.cfg.AdminPort, e.cfg.AdminUser, dbName, dump)

	var extraEnv []string
	if e.cfg.AdminPassword != "" {
		extraEnv = append(extraEnv, "PGPASSWORD="+e.cfg.AdminPassword)
	}

	outcome := RestoreOutcome{Database: dbName}

	result, err := e.run.Run(ctx, argv, extraEnv, logPath)
	if err != nil {
		outcome.ExitCode = -1
		outcome.Err = err
		return outcome
	}

	outcome.ExitCode = result.ExitCode
	outcome.Output = result.Output
	return outcome
}

// DiscoverDumps recursively collects all dump artifacts under root, sorted
// by path so runs are reproducible.
func DiscoverDumps(root string) ([]string, error) {
	var dumps []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(d.Name(), ".dump") {
			dumps = append(dumps, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", root, err)
	}
	sort.Strings(dumps)
	return dumps, nil
}
