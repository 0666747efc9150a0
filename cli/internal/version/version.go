// Package version records build metadata stamped in at release time.
package version

import (
	"fmt"
	"runtime"
)

var (
	// Version is the pgweave release version, overridden with -ldflags.
	Version = "0.1.0"
	// Commit is the git commit the binary was built from.
	Commit = "unknown"
	// BuildDate is the build timestamp.
	BuildDate = "unknown"
)

// Info holds the resolved build metadata of the running binary.
type Info struct {
	Version   string
	Commit    string
	BuildDate string
	GoVersion string
	Platform  string
}

// Get returns the build metadata of the running binary.
func Get() Info {
	return Info{
		Version:   Version,
		Commit:    Commit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
		Platform:  fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
	}
}

// String returns the one-line version banner.
func (i Info) String() string {
	return fmt.Sprintf("pgweave %s (%s, %s)", i.Version, i.Commit, i.Platform)
}

// Verbose returns the multi-line version report.
func (i Info) Verbose() string {
	return fmt.Sprintf(`pgweave %s
Commit:     %s
Built:      %s
Go version: %s
Platform:   %s`, i.Version, i.Commit, i.BuildDate, i.GoVersion, i.Platform)
}
