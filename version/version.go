// Package version defines train-launcher version.
package version

import (
	"fmt"
	"runtime"
	"time"
)

var (
	// GitCommit is the git commit on build.
	GitCommit = ""
	// ReleaseVersion is the release version.
	ReleaseVersion = ""
	// BuildTime is the build timestamp.
	BuildTime = ""
)

func init() {
	now := time.Now()
	if ReleaseVersion == "" {
		ReleaseVersion = fmt.Sprintf(
			"%d%02d%02d%02d%02d",
			now.Year(),
			int(now.Month()),
			now.Day(),
			now.Hour(),
			now.Minute(),
		)
	}
	if BuildTime == "" {
		BuildTime = now.String()
	}
}

// Version returns the version information as one line.
func Version() string {
	return fmt.Sprintf(
		"train-launcher version %s (git commit %q, build time %q, %s %s/%s)",
		ReleaseVersion,
		GitCommit,
		BuildTime,
		runtime.Version(),
		runtime.GOOS,
		runtime.GOARCH,
	)
}
