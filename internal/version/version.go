// Package version provides build version information for relaunch.
package version

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
)

// Build-time variables injected via ldflags
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

// DevModeEnv overrides development-build detection when set to a boolean.
const DevModeEnv = "RELAUNCH_DEV_MODE"

// String returns a full version string including commit and build time.
func String() string {
	return fmt.Sprintf("relaunch %s (%s) built %s", Version, GitCommit, BuildTime)
}

// Short returns just the version number.
func Short() string {
	return Version
}

// Full returns version info with Go version.
func Full() string {
	return fmt.Sprintf("%s - Go %s %s/%s", String(), runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

// IsDevBuild reports whether update checks must be skipped. RELAUNCH_DEV_MODE
// wins when it parses as a boolean; otherwise unversioned builds are dev builds.
func IsDevBuild() bool {
	if v, ok := os.LookupEnv(DevModeEnv); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			return b
		}
	}
	return Version == "" || Version == "dev"
}

// Info contains structured version information.
type Info struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildTime string `json:"build_time"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
	DevBuild  bool   `json:"dev_build"`
}

// GetInfo returns structured version information.
func GetInfo() Info {
	return Info{
		Version:   Version,
		GitCommit: GitCommit,
		BuildTime: BuildTime,
		GoVersion: runtime.Version(),
		Platform:  fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
		DevBuild:  IsDevBuild(),
	}
}
