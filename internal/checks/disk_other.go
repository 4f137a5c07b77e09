//go:build !linux && !darwin

package checks

// DiskSpace describes the filesystem holding a path.
type DiskSpace struct {
	Path           string
	TotalBytes     uint64
	AvailableBytes uint64
	UsedPercent    float64
	Warning        bool
	Critical       bool
}

// CheckDiskSpace is a no-op on platforms without Statfs support; the
// run proceeds and pg_dump reports write failures itself.
func CheckDiskSpace(path string) *DiskSpace {
	return &DiskSpace{Path: path}
}
