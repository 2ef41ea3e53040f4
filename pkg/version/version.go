// Package version carries build metadata injected at link time, e.g.
//
//	go build -ldflags "-X github.com/telekom/regression-notifier/pkg/version.Version=v1.2.0"
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"time"
)

// Product is the name reported in mail headers and the version command.
const Product = "regression-notifier"

var (
	// Version is the semantic version, injected at build time via -ldflags
	Version = "dev"
	// GitCommit is the git commit hash, injected at build time
	GitCommit = "unknown"
	// BuildDate is the build timestamp, injected at build time
	BuildDate = "unknown"
)

// BuildInfo contains metadata about the build
type BuildInfo struct {
	Version   string    `json:"version" yaml:"version"`
	GitCommit string    `json:"gitCommit" yaml:"gitCommit"`
	BuildDate string    `json:"buildDate" yaml:"buildDate"`
	GoVersion string    `json:"goVersion" yaml:"goVersion"`
	Platform  string    `json:"platform" yaml:"platform"`
	BuildTime time.Time `json:"buildTime,omitempty" yaml:"buildTime,omitempty"`
}

// GetBuildInfo returns build metadata. When GitCommit was not injected the
// VCS revision recorded by the Go toolchain is used, if any.
func GetBuildInfo() BuildInfo {
	info := BuildInfo{
		Version:   Version,
		GitCommit: GitCommit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}

	if info.GitCommit == "unknown" {
		if bi, ok := debug.ReadBuildInfo(); ok {
			for _, s := range bi.Settings {
				if s.Key == "vcs.revision" && s.Value != "" {
					info.GitCommit = s.Value
				}
			}
		}
	}

	if t, err := time.Parse(time.RFC3339, BuildDate); err == nil {
		info.BuildTime = t
	}

	return info
}

// UserAgent identifies this build in outgoing mail, e.g. "regression-notifier/v1.2.0".
func UserAgent() string {
	return fmt.Sprintf("%s/%s", Product, Version)
}

// String renders the one-line version banner.
func (b BuildInfo) String() string {
	return fmt.Sprintf("%s %s (commit: %s, built: %s, %s %s)", Product, b.Version, b.GitCommit, b.BuildDate, b.GoVersion, b.Platform)
}
