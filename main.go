package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"pgbackup/cmd"
)

// Build information (set by ldflags)
var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

func main() {
	// Create context that cancels on interrupt
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := cmd.Execute(ctx, version, buildTime, gitCommit); err != nil {
		os.Exit(1)
	}
}
