// Package version carries build metadata stamped in with -ldflags, e.g.
//
//	-X github.com/banshee-data/huskylens/internal/version.Version=v0.3.0
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

var (
	// Version is the release tag.
	Version = "dev"
	// GitSHA is the commit the binary was built from.
	GitSHA = "unknown"
	// BuildTime is the build timestamp.
	BuildTime = "unknown"
)

// Commit returns GitSHA, falling back to the VCS revision recorded by the
// Go toolchain when the binary was not stamped.
func Commit() string {
	if GitSHA != "unknown" {
		return GitSHA
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, s := range info.Settings {
			if s.Key == "vcs.revision" && s.Value != "" {
				return s.Value
			}
		}
	}
	return GitSHA
}

// String is the one-line form printed by `huskyctl version`.
func String() string {
	return fmt.Sprintf("huskyctl %s (commit %s, built %s, %s/%s)",
		Version, Commit(), BuildTime, runtime.GOOS, runtime.GOARCH)
}
