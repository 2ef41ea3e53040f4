package version

import (
	"strings"
	"testing"
	"time"
)

func TestGetBuildInfo(t *testing.T) {
	info := GetBuildInfo()
	if info.Version == "" {
		t.Error("Version should not be empty")
	}
	if info.GitCommit == "" {
		t.Error("GitCommit should not be empty")
	}
	if info.BuildDate == "" {
		t.Error("BuildDate should not be empty")
	}
	if info.GoVersion == "" {
		t.Error("GoVersion should not be empty")
	}
	if info.Platform == "" {
		t.Error("Platform should not be empty")
	}
}

func TestGetBuildInfo_ParsesValidDate(t *testing.T) {
	originalBuildDate := BuildDate
	defer func() { BuildDate = originalBuildDate }()

	validDate := "2026-01-13T20:00:00Z"
	BuildDate = validDate

	info := GetBuildInfo()

	expectedTime, _ := time.Parse(time.RFC3339, validDate)
	if !info.BuildTime.Equal(expectedTime) {
		t.Errorf("BuildTime = %v, want %v", info.BuildTime, expectedTime)
	}
}

func TestGetBuildInfo_InvalidDateLeavesBuildTimeZero(t *testing.T) {
	originalBuildDate := BuildDate
	defer func() { BuildDate = originalBuildDate }()

	BuildDate = "yesterday"
	if info := GetBuildInfo(); !info.BuildTime.IsZero() {
		t.Errorf("BuildTime = %v, want zero", info.BuildTime)
	}
}

func TestGetBuildInfo_InjectedCommitWins(t *testing.T) {
	originalCommit := GitCommit
	defer func() { GitCommit = originalCommit }()

	GitCommit = "abc123"
	if got := GetBuildInfo().GitCommit; got != "abc123" {
		t.Errorf("GitCommit = %q, want abc123", got)
	}
}

func TestUserAgent(t *testing.T) {
	originalVersion := Version
	defer func() { Version = originalVersion }()

	Version = "v1.2.3"
	if got := UserAgent(); got != "regression-notifier/v1.2.3" {
		t.Errorf("UserAgent() = %q", got)
	}
	if s := GetBuildInfo().String(); !strings.HasPrefix(s, "regression-notifier v1.2.3 (commit: ") {
		t.Errorf("String() = %q", s)
	}
}
