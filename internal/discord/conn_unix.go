//go:build !windows

package discord

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"time"
)

const dialTimeout = 2 * time.Second

// sandboxDirs hold the sockets of Snap and Flatpak installs, under
// /run/user/<uid>.
var sandboxDirs = []string{
	"snap.discord",
	"snap.discord-canary",
	"snap.discord-ptb",
	"app/com.discordapp.Discord",
	"app/com.discordapp.DiscordCanary",
	"app/com.discordapp.DiscordPTB",
	".flatpak/dev.vencord.Vesktop/xdg-run",
}

// candidatePaths returns every socket path worth trying, most likely first:
// each temp-style base directory with every client prefix, then sandboxed
// installs, then WSL relays.
func candidatePaths(getenv func(string) string, uid int) []string {
	var bases []string
	for _, key := range []string{"XDG_RUNTIME_DIR", "TMPDIR", "TMP", "TEMP"} {
		if dir := getenv(key); dir != "" {
			bases = append(bases, dir)
		}
	}
	bases = append(bases, "/tmp")

	var out []string
	for _, base := range bases {
		for _, prefix := range []string{prefixStable, prefixCanary, prefixPTB} {
			for _, name := range slotNames(prefix) {
				out = append(out, filepath.Join(base, name))
			}
		}
	}
	runUser := filepath.Join("/run/user", strconv.Itoa(uid))
	for _, dir := range sandboxDirs {
		for _, name := range slotNames(prefixStable) {
			out = append(out, filepath.Join(runUser, dir, name))
		}
	}
	out = append(out, wslSocketPaths()...)

	// Bases often coincide, e.g. TMPDIR=/tmp. Keep the first of each.
	seen := make(map[string]bool, len(out))
	return slices.DeleteFunc(out, func(p string) bool {
		dup := seen[p]
		seen[p] = true
		return dup
	})
}

// connectToDiscord dials the first existing socket that accepts.
func connectToDiscord() (net.Conn, error) {
	for _, path := range candidatePaths(os.Getenv, os.Getuid()) {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if conn, err := net.DialTimeout("unix", path, dialTimeout); err == nil {
			return conn, nil
		}
	}
	if isWSL() {
		return nil, fmt.Errorf("%w: under WSL Discord needs a socat and npiperelay.exe relay", ErrIPCNotAvailable)
	}
	return nil, ErrIPCNotAvailable
}
