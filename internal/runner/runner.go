// Package runner executes external dump/restore tools, streaming their
// merged output into a log file while the caller blocks.
package runner

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"pgbackup/internal/logger"
)

// Result carries the observable outcome of one subprocess: its exit code
// and the merged stdout/stderr text. Classification of success or failure
// is the caller's job and must not depend on how the error was propagated.
type Result struct {
	ExitCode int
	Output   string
}

// Runner is a blocking subprocess primitive. It enforces no timeout and
// performs no retries; cancellation policy belongs to the caller's context.
type Runner struct {
	log logger.Logger
}

// New creates a new runner
func New(log logger.Logger) *Runner {
	return &Runner{log: log}
}

// Run executes argv with extraEnv appended to the process environment and
// streams the merged stdout/stderr into the append-mode log file at
// logPath. A "=== Running: ... ===" marker precedes the output.
// The returned error is reserved for failure to start or to open the log;
// a non-zero exit is reported through Result.ExitCode.
func (r *Runner) Run(ctx context.Context, argv []string, extraEnv []string, logPath string) (Result, error) {
	if len(argv) == 0 {
		return Result{}, fmt.Errorf("empty command")
	}

	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return Result{}, fmt.Errorf("failed to open command log %s: %w", logPath, err)
	}
	defer logFile.Close()

	command := strings.Join(argv, " ")
	if _, err := fmt.Fprintf(logFile, "\n=== Running: %s ===\n", command); err != nil {
		return Result{}, fmt.Errorf("failed to write command marker: %w", err)
	}

	r.log.Debug("Executing command", "cmd", argv[0], "args", argv[1:])

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Env = append(os.Environ(), extraEnv...)

	pr, pw := io.Pipe()
	cmd.Stdout = pw
	cmd.Stderr = pw

	// The copy has no line-length cap; pg_restore diagnostics can run to
	// megabytes on one line and the writer must never block on us.
	var captured strings.Builder
	done := make(chan struct{})
	go func() {
		defer close(done)
		if _, err := io.Copy(io.MultiWriter(logFile, &captured), pr); err != nil {
			pr.CloseWithError(err)
		}
	}()

	if err := cmd.Start(); err != nil {
		pw.Close()
		<-done
		return Result{}, fmt.Errorf("failed to start %s: %w", argv[0], err)
	}

	waitErr := cmd.Wait()
	pw.Close()
	<-done

	result := Result{Output: captured.String()}
	if waitErr != nil {
		exitErr, ok := waitErr.(*exec.ExitError)
		if !ok {
			return result, fmt.Errorf("command %s failed: %w", argv[0], waitErr)
		}
		result.ExitCode = exitErr.ExitCode()
	}

	return result, nil
}
