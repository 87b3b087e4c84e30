package version

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLdflagsOverride(t *testing.T) {
	saved := [3]string{Version, GitCommit, BuildDate}
	t.Cleanup(func() { Version, GitCommit, BuildDate = saved[0], saved[1], saved[2] })

	Version, GitCommit, BuildDate = "v1.4.0", "0123456789abcdef", "2024-05-01T10:00:00Z"

	assert.Equal(t, "v1.4.0", GetVersion())
	assert.Equal(t, "ha-trend-monitor/v1.4.0", UserAgent())

	info := GetBuildInfo()
	assert.Equal(t, "0123456789abcdef", info.GitCommit)
	assert.Equal(t, "2024-05-01T10:00:00Z", info.BuildDate)
	assert.True(t, strings.HasPrefix(GetFullVersion(), "ha-trend-monitor v1.4.0 (commit: 0123456789abcdef"))
}

func TestDevVersionIsNeverEmpty(t *testing.T) {
	saved := Version
	t.Cleanup(func() { Version = saved })

	Version = "dev"
	assert.NotEmpty(t, GetVersion())
	assert.True(t, strings.HasPrefix(UserAgent(), "ha-trend-monitor/"))
}
