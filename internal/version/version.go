// Package version reports the sitesmith release and the revision it was built
// from. Release builds set the variables below with -ldflags; other builds
// fall back to the VCS stamp the Go toolchain records.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
	"time"
)

// Set with -ldflags "-X github.com/conneroisu/sitesmith/internal/version.Version=v1.2.3".
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

// Info describes the running binary.
type Info struct {
	Version   string    `json:"version"`
	Commit    string    `json:"commit"`
	BuiltAt   time.Time `json:"built_at,omitempty"`
	Dirty     bool      `json:"dirty"`
	GoVersion string    `json:"go_version"`
	Platform  string    `json:"platform"`
}

// Get collects the version information of the running binary.
func Get() Info {
	return get(debug.ReadBuildInfo)
}

func get(read func() (*debug.BuildInfo, bool)) Info {
	info := Info{
		Version:   Version,
		Commit:    GitCommit,
		BuiltAt:   parseTime(BuildTime),
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}

	bi, ok := read()
	if !ok || bi == nil {
		return info
	}

	settings := make(map[string]string, len(bi.Settings))
	for _, s := range bi.Settings {
		settings[s.Key] = s.Value
	}

	if info.Commit == "" || info.Commit == "unknown" {
		if rev := settings["vcs.revision"]; rev != "" {
			info.Commit = rev
		}
	}
	if info.BuiltAt.IsZero() {
		info.BuiltAt = parseTime(settings["vcs.time"])
	}
	info.Dirty = settings["vcs.modified"] == "true"

	if info.Version == "" || info.Version == "dev" {
		switch {
		case bi.Main.Version != "" && bi.Main.Version != "(devel)":
			info.Version = bi.Main.Version
		case len(info.Commit) >= 7 && info.Commit != "unknown":
			info.Version = "dev-" + info.Commit[:7]
		default:
			info.Version = "dev"
		}
	}

	return info
}

// Short returns the version with an abbreviated commit, e.g. "v1.2.0 (3f2a9c1)".
func (i Info) Short() string {
	if len(i.Commit) < 7 || i.Commit == "unknown" || strings.HasPrefix(i.Version, "dev-") {
		return i.Version
	}
	s := fmt.Sprintf("%s (%s", i.Version, i.Commit[:7])
	if i.Dirty {
		s += ", dirty"
	}
	return s + ")"
}

// String is the multi-line form printed by the version command.
func (i Info) String() string {
	lines := []string{"sitesmith " + i.Version}
	if i.Commit != "unknown" && i.Commit != "" {
		commit := i.Commit
		if i.Dirty {
			commit += " (modified)"
		}
		lines = append(lines, "commit:   "+commit)
	}
	if !i.BuiltAt.IsZero() {
		lines = append(lines, "built:    "+i.BuiltAt.UTC().Format(time.RFC3339))
	}
	lines = append(lines, "go:       "+i.GoVersion, "platform: "+i.Platform)
	return strings.Join(lines, "\n")
}

// IsRelease reports whether the binary carries a real release version.
func (i Info) IsRelease() bool {
	return i.Version != "dev" && !strings.HasPrefix(i.Version, "dev-")
}

func parseTime(s string) time.Time {
	if s == "" || s == "unknown" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
