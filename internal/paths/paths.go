// Package paths names the files mediacord reads and writes, both in the
// data directory and in the repository it fetches from.
package paths

import (
	"path"
	"path/filepath"
)

const (
	BinaryName = "mediacord"
	DeviceName = "Mediacord"

	// DataDirRel is the data directory, relative to the user's home.
	DataDirRel = ".mediacord"

	PIDFile    = "daemon.pid"
	ConfigFile = "config.toml"
	LogFile    = "mediacord.log"

	// ReleaseManifest holds the version of the last release.
	ReleaseManifest = ".release-manifest.json"
)

// DiscordAsset is the repository path of a rendered rich presence asset,
// as written by tools/generate-assets.
func DiscordAsset(brand, key string) string {
	return path.Join("assets", "discord", brand, key+".png")
}

// DataDir is a data directory. The zero value resolves names relative to the
// working directory.
type DataDir struct {
	Root string
}

func (d DataDir) file(name string) string {
	return filepath.Join(d.Root, name)
}

func (d DataDir) PID() string    { return d.file(PIDFile) }
func (d DataDir) Config() string { return d.file(ConfigFile) }
func (d DataDir) Log() string    { return d.file(LogFile) }
