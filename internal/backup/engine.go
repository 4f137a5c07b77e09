// Package backup drives pg_dump across the configured server fleet and
// seals each server's artifacts into one archive per run.
package backup

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"pgbackup/internal/archive"
	"pgbackup/internal/checks"
	"pgbackup/internal/config"
	"pgbackup/internal/database"
	"pgbackup/internal/logger"
	"pgbackup/internal/retention"
	"pgbackup/internal/runner"
)

// Engine handles backup orchestration
type Engine struct {
	cfg *config.Config
	log logger.Logger
	run *runner.Runner
}

// New creates a new backup engine
func New(cfg *config.Config, log logger.Logger, run *runner.Runner) *Engine {
	return &Engine{cfg: cfg, log: log, run: run}
}

// DumpOutcome is the observable result of one pg_dump attempt.
type DumpOutcome struct {
	Database string
	ExitCode int
	Artifact string
	Size     int64
	Err      error
}

// Succeeded reports whether the dump produced a usable artifact: exit code
// zero and a non-empty output file. A zero-byte file with a clean exit is
// still a failure.
func (o DumpOutcome) Succeeded() bool {
	return o.Err == nil && o.ExitCode == 0 && o.Size > 0
}

// ServerSummary tallies one server's run
type ServerSummary struct {
	Host    string
	Success int
	Fail    int
}

// Summary aggregates the whole run
type Summary struct {
	Servers      []ServerSummary
	TotalSuccess int
	TotalFail    int
}

// Run backs up every configured database on every configured server, in
// configuration order, then applies retention to the archive and log
// directories. Per-database failures are isolated; only the inability to
// prepare directories aborts the run.
func (e *Engine) Run(ctx context.Context, timestamp string) (*Summary, error) {
	if len(e.cfg.Servers) == 0 {
		return nil, fmt.Errorf("no servers configured")
	}

	if err := os.MkdirAll(e.cfg.BackupRoot, 0755); err != nil {
		return nil, fmt.Errorf("failed to create backup directory: %w", err)
	}
	if err := os.MkdirAll(e.cfg.LogRoot, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	if check := checks.CheckDiskSpace(e.cfg.BackupRoot); check.Critical {
		e.log.Error("Backup volume critically low on space",
			"path", check.Path, "used_percent", fmt.Sprintf("%.1f", check.UsedPercent))
	} else if check.Warning {
		e.log.Warn("Backup volume running low on space",
			"path", check.Path, "used_percent", fmt.Sprintf("%.1f", check.UsedPercent))
	}

	summary := &Summary{}

	for _, server := range e.cfg.Servers {
		srv, err := e.backupServer(ctx, server, timestamp)
		if err != nil {
			return nil, err
		}
		summary.Servers = append(summary.Servers, srv)
		summary.TotalSuccess += srv.Success
		summary.TotalFail += srv.Fail
	}

	e.pruneOldFiles()

	e.log.Info("Backup summary")
	for _, srv := range summary.Servers {
		e.log.Info("Server result", "host", srv.Host, "success", srv.Success, "fail", srv.Fail)
	}
	e.log.Info("Run total", "success", summary.TotalSuccess, "fail", summary.TotalFail)

	return summary, nil
}

// backupServer dumps every configured database of one server into a
// temporary directory and seals it into one archive.
func (e *Engine) backupServer(ctx context.Context, server config.ServerTarget, timestamp string) (ServerSummary, error) {
	srv := ServerSummary{Host: server.Host}

	e.log.Info("Backing up server", "host", server.Host, "port", server.Port)

	serverLog := filepath.Join(e.cfg.LogRoot, fmt.Sprintf("backup_%s_%s.log", server.Host, timestamp))
	tempDir := filepath.Join(e.cfg.BackupRoot, fmt.Sprintf("tmp_backup_%s_%s", server.Host, timestamp))
	if err := os.MkdirAll(tempDir, 0755); err != nil {
		return srv, fmt.Errorf("failed to create temp directory for %s: %w", server.Host, err)
	}
	defer func() {
		// Best-effort; the archive already owns the artifacts.
		if err := os.RemoveAll(tempDir); err != nil {
			e.log.Warn("Failed to remove temp directory", "dir", tempDir, "error", err)
		}
	}()

	for _, cred := range e.cfg.Databases {
		outcome := e.dumpDatabase(ctx, server, cred, tempDir, timestamp, serverLog)
		if outcome.Succeeded() {
			e.log.Info("Backup created", "database", cred.Name, "bytes", outcome.Size)
			srv.Success++
		} else {
			e.log.Error("Failed to backup database",
				"database", cred.Name, "exit_code", outcome.ExitCode, "error", outcome.Err)
			srv.Fail++
		}
	}

	if srv.Success > 0 {
		archivePath := filepath.Join(e.cfg.BackupRoot,
			fmt.Sprintf("postgres_%s_%s.tar.gz", server.Label, timestamp))
		if err := archive.Seal(tempDir, archivePath); err != nil {
			e.log.Error("Compression failed", "host", server.Host, "error", err)
		} else if entries, size, err := archive.Verify(archivePath); err != nil {
			e.log.Error("Archive verification failed", "archive", archivePath, "error", err)
		} else {
			e.log.Info("Compressed", "archive", archivePath, "entries", entries, "bytes", size)
		}
	} else {
		e.log.Warn("No successful backups for server", "host", server.Host)
	}

	return srv, nil
}

// dumpDatabase runs one pg_dump attempt. The credential's password travels
// only through PGPASSWORD in the child environment.
func (e *Engine) dumpDatabase(ctx context.Context, server config.ServerTarget, cred config.Credential, tempDir, timestamp, serverLog string) DumpOutcome {
	artifact := filepath.Join(tempDir, fmt.Sprintf("%s_%s.dump", cred.Name, timestamp))
	argv := database.BuildDumpCommand(server.Host, server.Port, cred.User, cred.Name, artifact)

	var extraEnv []string
	if cred.Password != "" {
		extraEnv = append(extraEnv, "PGPASSWORD="+cred.Password)
	}

	outcome := DumpOutcome{Database: cred.Name, Artifact: artifact}

	result, err := e.run.Run(ctx, argv, extraEnv, serverLog)
	if err != nil {
		outcome.ExitCode = -1
		outcome.Err = err
		return outcome
	}
	outcome.ExitCode = result.ExitCode

	if info, err := os.Stat(artifact); err == nil {
		outcome.Size = info.Size()
	}

	return outcome
}

// pruneOldFiles applies the retention policy to the archive and log
// directories at the end of every run.
func (e *Engine) pruneOldFiles() {
	policy := retention.Policy{RetentionDays: e.cfg.RetentionDays}

	for _, target := range []struct {
		dir     string
		pattern string
	}{
		{e.cfg.BackupRoot, "postgres_*.tar.gz"},
		{e.cfg.LogRoot, "*.log"},
	} {
		result, err := policy.Prune(target.dir, target.pattern)
		if err != nil {
			e.log.Error("Retention pruning failed", "dir", target.dir, "error", err)
			continue
		}
		for _, path := range result.Deleted {
			e.log.Info("Removed old file", "path", path)
		}
		for _, pruneErr := range result.Errors {
			e.log.Error("Retention deletion failed", "error", pruneErr)
		}
	}
}
