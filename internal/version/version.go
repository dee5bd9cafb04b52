// Package version carries the build identity stamped into the pilebox
// binary. Release builds set these through ldflags; dev builds fall back
// to Go build metadata.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
	"time"
)

var (
	AppName = "Pilebox"

	Version = "0.1.0-dev"

	// Revision is the VCS commit, suffixed with -dirty for modified trees.
	Revision = "HEAD"

	BuildDate = ""
)

func isDev() bool {
	return Version == "" || strings.HasSuffix(Version, "-dev")
}

func init() {
	info, ok := debug.ReadBuildInfo()
	if ok && info != nil {
		fill(info)
	}
	if BuildDate == "" {
		BuildDate = time.Now().UTC().Format(time.RFC3339)
	}
}

func fill(info *debug.BuildInfo) {
	if isDev() {
		if v := info.Main.Version; v != "" && v != "(devel)" {
			Version = strings.TrimPrefix(v, "v")
		}
	}

	var revision, modified, vcsTime string
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			revision = s.Value
		case "vcs.modified":
			modified = s.Value
		case "vcs.time":
			vcsTime = s.Value
		}
	}

	if (Revision == "HEAD" || Revision == "") && revision != "" {
		Revision = revision
		if modified == "true" {
			Revision += "-dirty"
		}
	}
	if BuildDate == "" {
		BuildDate = vcsTime
	}
}

// Short returns `0.1.0 (5e23a4)`.
func Short() string {
	return fmt.Sprintf("%s (%s)", Version, Revision)
}

// ShortWithApp returns `Pilebox 0.1.0 (5e23a4)`.
func ShortWithApp() string {
	return fmt.Sprintf("%s %s", AppName, Short())
}

// Detailed returns `0.1.0 (5e23a4; go1.23.6; linux/amd64; 2026-01-02T…)`.
func Detailed() string {
	return fmt.Sprintf("%s (%s; %s; %s/%s; %s)", Version, Revision, runtime.Version(), runtime.GOOS, runtime.GOARCH, BuildDate)
}

// DetailedWithApp prefixes Detailed with the application name.
func DetailedWithApp() string {
	return fmt.Sprintf("%s %s", AppName, Detailed())
}
