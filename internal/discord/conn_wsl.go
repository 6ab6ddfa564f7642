// Under WSL2 Discord runs on Windows and its named pipe is reachable only
// through a relay, for example:
//
//	socat UNIX-LISTEN:/tmp/discord-ipc-0,fork EXEC:"npiperelay.exe -ep -s //./pipe/discord-ipc-0"
//
// Relays in /tmp are covered by the regular candidates; WSLg's runtime
// directory is added here.

//go:build linux

package discord

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
)

const wslgRuntimeDir = "/mnt/wslg/runtime-dir"

var isWSL = sync.OnceValue(func() bool {
	return kernelIsWSL("/proc/version")
})

// kernelIsWSL reports whether the kernel version file names Microsoft.
func kernelIsWSL(versionFile string) bool {
	data, err := os.ReadFile(versionFile)
	return err == nil && strings.Contains(strings.ToLower(string(data)), "microsoft")
}

func wslSocketPaths() []string {
	if !isWSL() {
		return nil
	}
	names := slotNames(prefixStable)
	for i, n := range names {
		names[i] = filepath.Join(wslgRuntimeDir, n)
	}
	return names
}
