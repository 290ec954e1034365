// Package version reports the build that is running.
package version

import (
	"fmt"
	"runtime/debug"
)

// Set at build time via -ldflags "-X". When left unset, the VCS stamp the
// Go toolchain records in the binary is used instead.
var (
	Commit    = ""
	BuildTime = ""
)

// String returns the version string (commit-hash based, no semver).
func String() string {
	commit, built := Commit, BuildTime
	if commit == "" || built == "" {
		stampCommit, stampTime := vcsStamp()
		if commit == "" {
			commit = stampCommit
		}
		if built == "" {
			built = stampTime
		}
	}
	return format(commit, built)
}

func format(commit, built string) string {
	if commit == "" {
		commit = "unknown"
	}
	if built == "" {
		built = "unknown"
	}
	if len(commit) > 7 {
		commit = commit[:7]
	}
	return fmt.Sprintf("rig dev (commit: %s, built: %s)", commit, built)
}

func vcsStamp() (commit, built string) {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "", ""
	}
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			commit = s.Value
		case "vcs.time":
			built = s.Value
		}
	}
	return commit, built
}
