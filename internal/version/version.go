// Package version reports build and engine versions.
package version

import (
	"fmt"
	"runtime"

	"github.com/mattn/go-sqlite3"
)

var (
	// Version is the version of the CLI
	Version = "0.1.0"
	// BuildDate is the build date
	BuildDate = "unknown"
	// GitCommit is the git commit hash
	GitCommit = "unknown"
)

// Info holds version information
type Info struct {
	Version   string
	BuildDate string
	GitCommit string
	GoVersion string
	Platform  string
	SQLite    string
	SourceID  string
}

// Get returns version information
func Get() Info {
	lib, _, source := sqlite3.Version()
	return Info{
		Version:   Version,
		BuildDate: BuildDate,
		GitCommit: GitCommit,
		GoVersion: runtime.Version(),
		Platform:  fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
		SQLite:    lib,
		SourceID:  source,
	}
}

// String returns a formatted version string
func (i Info) String() string {
	return fmt.Sprintf("litesql version %s (sqlite %s, %s %s)", i.Version, i.SQLite, i.Platform, i.GoVersion)
}

// FullString returns a detailed version string
func (i Info) FullString() string {
	return fmt.Sprintf(`litesql version %s
Build Date: %s
Git Commit: %s
SQLite:     %s (%s)
Platform:   %s
Go Version: %s`, i.Version, i.BuildDate, i.GitCommit, i.SQLite, i.SourceID, i.Platform, i.GoVersion)
}
