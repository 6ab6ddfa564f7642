// Package main implements the mediacord command: the presence daemon that
// mirrors Emby and Jellyfin playback into Discord, and the commands that
// manage its servers and settings.
package main

import (
	"os"
	"path/filepath"
	"runtime/debug"

	"tools.zach/dev/mediacord/internal/paths"
)

// version is stamped by the release build with -X main.version=<semver>.
// Unstamped builds fall back to the VCS info in the binary.
var version = "dev"

func resolveVersion() string {
	if version != "dev" {
		return version
	}
	info, _ := debug.ReadBuildInfo()
	return devVersion(info)
}

// devVersion formats an unstamped build as "dev+<short hash>", with a
// ".dirty" suffix for modified trees. Without VCS info it is plain "dev".
func devVersion(info *debug.BuildInfo) string {
	if info == nil {
		return "dev"
	}
	vcs := make(map[string]string, len(info.Settings))
	for _, s := range info.Settings {
		vcs[s.Key] = s.Value
	}
	rev := vcs["vcs.revision"]
	if rev == "" {
		return "dev"
	}
	v := "dev+" + rev[:min(7, len(rev))]
	if vcs["vcs.modified"] == "true" {
		v += ".dirty"
	}
	return v
}

// defaultDataDir is ~/.mediacord, relative to the working directory when
// there is no home.
func defaultDataDir() string {
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, paths.DataDirRel)
	}
	return paths.DataDirRel
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
