// Package version provides build-time version information for aptledger.
//
// Variables in this package are set at build time using ldflags:
//
//	go build -ldflags "-X github.com/jmylchreest/aptledger/internal/version.Version=1.0.0 ..."
//
// Binaries built with plain `go install` fall back to the module version and
// VCS stamp recorded in the build info.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
)

// Build-time variables set via ldflags
var (
	// Version is the semantic version (e.g., "1.0.0" or "1.0.0-dev.5+abc123")
	Version = "dev"

	// Commit is the git commit SHA
	Commit = "unknown"

	// Dirty indicates if the working tree had uncommitted changes
	Dirty = "false"

	// BuildDate is the UTC build timestamp in RFC3339 format
	BuildDate = "unknown"
)

// Info contains structured version information
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	Dirty     bool   `json:"dirty"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

var readBuildInfo = debug.ReadBuildInfo

// Get returns the current version information
func Get() Info {
	info := Info{
		Version:   Version,
		Commit:    Commit,
		Dirty:     Dirty == "true",
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
		Platform:  fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
	}
	fillFromBuildInfo(&info)
	return info
}

// fillFromBuildInfo replaces unset ldflags values with build info.
func fillFromBuildInfo(info *Info) {
	bi, ok := readBuildInfo()
	if !ok {
		return
	}
	if info.Version == "dev" && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		info.Version = strings.TrimPrefix(bi.Main.Version, "v")
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			if info.Commit == "unknown" {
				info.Commit = s.Value
			}
		case "vcs.time":
			if info.BuildDate == "unknown" {
				info.BuildDate = s.Value
			}
		case "vcs.modified":
			if s.Value == "true" {
				info.Dirty = true
			}
		}
	}
}

// String returns a single-line version string
func String() string {
	return Get().short()
}

func (i Info) short() string {
	if i.Dirty {
		return i.Version + "-dirty"
	}
	return i.Version
}

// Full returns a multi-line version string with all details
func Full() string {
	i := Get()
	var sb strings.Builder
	fmt.Fprintf(&sb, "aptledger %s\n", i.short())
	fmt.Fprintf(&sb, "  Commit:     %s\n", i.Commit)
	fmt.Fprintf(&sb, "  Built:      %s\n", i.BuildDate)
	fmt.Fprintf(&sb, "  Go version: %s\n", i.GoVersion)
	fmt.Fprintf(&sb, "  OS/Arch:    %s", i.Platform)
	return sb.String()
}
