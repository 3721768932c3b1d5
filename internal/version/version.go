// Package version carries the build identity stamped into the console binary.
// Release builds override the variables below via ldflags, for example:
//
//	go build -ldflags "\
//	  -X github.com/driftwatch/console/internal/version.Version=v0.3.0 \
//	  -X github.com/driftwatch/console/internal/version.GitCommit=$(git rev-parse --short HEAD) \
//	  -X github.com/driftwatch/console/internal/version.BuildDate=$(date -u +%Y-%m-%dT%H:%M:%SZ)" \
//	  ./cmd/server
package version

import (
	"fmt"
	"runtime"
)

var (
	// Version is the console release, a dev placeholder unless overridden
	Version = "v0.1.0-dev"
	// GitCommit identifies the exact source revision
	GitCommit = "unknown"
	// BuildDate is the UTC build timestamp
	BuildDate = "unknown"
	// GoVersion is the toolchain the binary was compiled with
	GoVersion = runtime.Version()
)

// Info is the build identity served on /version and logged at startup.
type Info struct {
	Version   string `json:"version"`
	GitCommit string `json:"gitCommit"`
	BuildDate string `json:"buildDate"`
	GoVersion string `json:"goVersion"`
}

// Get snapshots the stamped build identity.
func Get() Info {
	return Info{
		Version:   Version,
		GitCommit: GitCommit,
		BuildDate: BuildDate,
		GoVersion: GoVersion,
	}
}

// String renders the identity on one line for logs and error reports.
func (i Info) String() string {
	return fmt.Sprintf("%s (commit %s, built %s, %s)",
		i.Version, i.GitCommit, i.BuildDate, i.GoVersion)
}
