// Package retention deletes archives and logs past their configured age.
package retention

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Policy defines the retention rules. Retention is age-based on file
// modification time, never count-based.
type Policy struct {
	RetentionDays int
}

// Result contains information about one pruning pass
type Result struct {
	Scanned int
	Deleted []string
	Errors  []error
}

// Prune removes files under dir matching pattern whose modification time
// is strictly older than now minus the retention period. A failed deletion
// is recorded and does not stop pruning of the remaining files. Pruning
// only ever removes files; it never modifies them.
func (p Policy) Prune(dir, pattern string) (*Result, error) {
	return p.pruneBefore(dir, pattern, time.Now().AddDate(0, 0, -p.RetentionDays))
}

func (p Policy) pruneBefore(dir, pattern string, cutoff time.Time) (*Result, error) {
	result := &Result{}

	matches, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return nil, fmt.Errorf("failed to match pattern %s: %w", pattern, err)
	}

	for _, path := range matches {
		info, err := os.Stat(path)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("failed to stat %s: %w", path, err))
			continue
		}
		if info.IsDir() {
			continue
		}
		result.Scanned++

		if !info.ModTime().Before(cutoff) {
			continue
		}

		if err := os.Remove(path); err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("failed to remove %s: %w", path, err))
			continue
		}
		result.Deleted = append(result.Deleted, path)
	}

	return result, nil
}
