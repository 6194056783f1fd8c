// Package version holds build-time identity for the msconvert binary,
// overridden via -ldflags at build time.
package version

import "github.com/mzcore/msarchive/internal/archive"

var (
	// Version is the msconvert release version.
	Version = "dev"
	// GitSHA is the commit this binary was built from.
	GitSHA = "unknown"
	// BuildTime is the build timestamp.
	BuildTime = "unknown"
)

// SchemaVersion is the archive schema version this build writes, reported
// alongside Version so a bug report can tell which migrations a given
// archive file needs without opening it.
func SchemaVersion() int {
	return archive.LatestSchemaVersion
}
