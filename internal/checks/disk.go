//go:build linux || darwin

// Package checks runs preflight inspections of the backup volume.
package checks

import (
	"path/filepath"
	"syscall"
)

// DiskSpace describes the filesystem holding a path.
type DiskSpace struct {
	Path           string
	TotalBytes     uint64
	AvailableBytes uint64
	UsedPercent    float64
	Warning        bool
	Critical       bool
}

// CheckDiskSpace inspects the filesystem that holds path. A stat failure
// is reported as critical so callers surface it before writing anything.
func CheckDiskSpace(path string) *DiskSpace {
	absPath, err := filepath.Abs(path)
	if err != nil {
		absPath = path
	}

	var stat syscall.Statfs_t
	if err := syscall.Statfs(absPath, &stat); err != nil {
		return &DiskSpace{Path: absPath, Critical: true}
	}

	total := stat.Blocks * uint64(stat.Bsize)
	available := uint64(stat.Bavail) * uint64(stat.Bsize)
	check := &DiskSpace{
		Path:           absPath,
		TotalBytes:     total,
		AvailableBytes: available,
	}
	if total > 0 {
		check.UsedPercent = float64(total-available) / float64(total) * 100
	}

	check.Critical = check.UsedPercent >= 95
	check.Warning = check.UsedPercent >= 80 && !check.Critical

	return check
}
