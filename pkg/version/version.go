package version

import (
	"fmt"
	"runtime"
	"time"

	"github.com/carlmjohnson/versioninfo"
)

// Build information, set via ldflags:
//
//	-X github.com/frostdev-ops/ha-trend-monitor/pkg/version.Version=v1.2.0
//
// When unset, the module and VCS data embedded by the Go toolchain is used.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
	GoVersion = runtime.Version()
)

const appName = "ha-trend-monitor"

// BuildInfo contains all build-related information
type BuildInfo struct {
	Version   string `json:"version" yaml:"version"`
	GitCommit string `json:"git_commit" yaml:"git_commit"`
	BuildDate string `json:"build_date" yaml:"build_date"`
	GoVersion string `json:"go_version" yaml:"go_version"`
}

// GetVersion returns the current version
func GetVersion() string {
	if Version != "dev" {
		return Version
	}
	if short := versioninfo.Short(); short != "" && short != "unknown" && short != "(devel)" {
		return short
	}
	if commit := commit(); len(commit) >= 8 {
		return fmt.Sprintf("dev-%s", commit[:8])
	}
	return "dev"
}

func commit() string {
	if GitCommit != "unknown" {
		return GitCommit
	}
	if versioninfo.Revision != "unknown" && versioninfo.Revision != "" {
		return versioninfo.Revision
	}
	return GitCommit
}

func buildDate() string {
	if BuildDate != "unknown" {
		return BuildDate
	}
	if !versioninfo.LastCommit.IsZero() {
		return versioninfo.LastCommit.UTC().Format(time.RFC3339)
	}
	return BuildDate
}

// GetFullVersion returns a detailed version string
func GetFullVersion() string {
	return fmt.Sprintf("%s %s (commit: %s, built: %s, go: %s)",
		appName, GetVersion(), commit(), buildDate(), GoVersion)
}

// UserAgent is sent with every Home Assistant request.
func UserAgent() string {
	return appName + "/" + GetVersion()
}

// GetBuildInfo returns all build information
func GetBuildInfo() *BuildInfo {
	return &BuildInfo{
		Version:   GetVersion(),
		GitCommit: commit(),
		BuildDate: buildDate(),
		GoVersion: GoVersion,
	}
}
