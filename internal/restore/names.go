package restore

import (
	"path/filepath"
	"regexp"
	"strings"
)

// Dump artifacts are named <database>_<YYYY-MM-DD>_<HH-MM-SS>.dump. The
// database portion may itself contain underscores, so the timestamp is
// anchored at the end.
var dumpNamePattern = regexp.MustCompile(`^(.+)_\d{4}-\d{2}-\d{2}_\d{2}-\d{2}-\d{2}\.dump$`)

// DatabaseNameFromFile recovers the target database name from a dump
// artifact's filename. A name that does not match the expected layout
// falls back to the filename without its extension; that is a documented
// fallback, not an error.
func DatabaseNameFromFile(path string) string {
	base := filepath.Base(path)
	if m := dumpNamePattern.FindStringSubmatch(base); m != nil {
		return m[1]
	}
	return strings.TrimSuffix(base, filepath.Ext(base))
}
