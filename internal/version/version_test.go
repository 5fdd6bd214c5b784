package version

import (
	"runtime/debug"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func withVars(t *testing.T, v, commit, built string) {
	t.Helper()
	oldV, oldC, oldB := Version, GitCommit, BuildTime
	Version, GitCommit, BuildTime = v, commit, built
	t.Cleanup(func() { Version, GitCommit, BuildTime = oldV, oldC, oldB })
}

func TestGet(t *testing.T) {
	vcs := func(settings ...debug.BuildSetting) func() (*debug.BuildInfo, bool) {
		return func() (*debug.BuildInfo, bool) {
			return &debug.BuildInfo{Main: debug.Module{Version: "(devel)"}, Settings: settings}, true
		}
	}

	tests := []struct {
		name        string
		version     string
		commit      string
		built       string
		read        func() (*debug.BuildInfo, bool)
		wantVersion string
		wantCommit  string
		wantDirty   bool
	}{
		{
			name:        "ldflags win",
			version:     "v1.2.0",
			commit:      "3f2a9c1d00",
			built:       "2024-01-02T03:04:05Z",
			read:        vcs(debug.BuildSetting{Key: "vcs.revision", Value: "ffffffffff"}),
			wantVersion: "v1.2.0",
			wantCommit:  "3f2a9c1d00",
		},
		{
			name:        "vcs stamp",
			version:     "dev",
			commit:      "unknown",
			read:        vcs(debug.BuildSetting{Key: "vcs.revision", Value: "abcdef1234"}, debug.BuildSetting{Key: "vcs.modified", Value: "true"}),
			wantVersion: "dev-abcdef1",
			wantCommit:  "abcdef1234",
			wantDirty:   true,
		},
		{
			name:        "no build info",
			version:     "dev",
			commit:      "unknown",
			read:        func() (*debug.BuildInfo, bool) { return nil, false },
			wantVersion: "dev",
			wantCommit:  "unknown",
		},
		{
			name:    "module version",
			version: "dev",
			commit:  "unknown",
			read: func() (*debug.BuildInfo, bool) {
				return &debug.BuildInfo{Main: debug.Module{Version: "v0.4.1"}}, true
			},
			wantVersion: "v0.4.1",
			wantCommit:  "unknown",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			withVars(t, tt.version, tt.commit, tt.built)
			info := get(tt.read)
			assert.Equal(t, tt.wantVersion, info.Version)
			assert.Equal(t, tt.wantCommit, info.Commit)
			assert.Equal(t, tt.wantDirty, info.Dirty)
			assert.NotEmpty(t, info.GoVersion)
			assert.Contains(t, info.Platform, "/")
		})
	}
}

func TestInfoShort(t *testing.T) {
	assert.Equal(t, "v1.0.0 (3f2a9c1)", Info{Version: "v1.0.0", Commit: "3f2a9c1d00"}.Short())
	assert.Equal(t, "v1.0.0 (3f2a9c1, dirty)", Info{Version: "v1.0.0", Commit: "3f2a9c1d00", Dirty: true}.Short())
	assert.Equal(t, "dev-3f2a9c1", Info{Version: "dev-3f2a9c1", Commit: "3f2a9c1d00"}.Short())
	assert.Equal(t, "dev", Info{Version: "dev", Commit: "unknown"}.Short())
}

func TestInfoString(t *testing.T) {
	info := Info{
		Version:   "v1.0.0",
		Commit:    "3f2a9c1d00",
		BuiltAt:   time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		GoVersion: "go1.24.0",
		Platform:  "linux/amd64",
	}
	s := info.String()
	assert.Contains(t, s, "sitesmith v1.0.0")
	assert.Contains(t, s, "3f2a9c1d00")
	assert.Contains(t, s, "2024-01-02T03:04:05Z")
	assert.Contains(t, s, "linux/amd64")
	assert.True(t, info.IsRelease())
	assert.False(t, Info{Version: "dev-abc1234"}.IsRelease())
}

func TestParseTime(t *testing.T) {
	assert.True(t, parseTime("unknown").IsZero())
	assert.True(t, parseTime("garbage").IsZero())
	assert.Equal(t, 2024, parseTime("2024-05-06 07:08:09").Year())
}
