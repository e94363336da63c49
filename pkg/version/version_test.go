package version

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGetBuildInfo(t *testing.T) {
	info := GetBuildInfo()
	assert.NotEmpty(t, info.Version)
	assert.NotEmpty(t, info.GitCommit)
	assert.NotEmpty(t, info.BuildDate)
	assert.NotEmpty(t, info.GoVersion)
	assert.NotEmpty(t, info.Platform)
	assert.True(t, info.BuildTime.IsZero(), "unknown build date is not parsed")
}

func TestGetBuildInfo_ParsesValidDate(t *testing.T) {
	originalBuildDate := BuildDate
	defer func() { BuildDate = originalBuildDate }()

	BuildDate = "2026-01-13T20:00:00Z"

	info := GetBuildInfo()
	assert.Equal(t, time.Date(2026, 1, 13, 20, 0, 0, 0, time.UTC), info.BuildTime.UTC())
}

func TestBuildInfo_String(t *testing.T) {
	info := BuildInfo{
		Version:   "1.2.0",
		GitCommit: "abc123",
		BuildDate: "2026-01-13T20:00:00Z",
		GoVersion: "go1.25.0",
		Platform:  "linux/amd64",
	}
	assert.Equal(t, "deploy-auditlog 1.2.0 (commit: abc123, built: 2026-01-13T20:00:00Z, go1.25.0 linux/amd64)", info.String())
}
