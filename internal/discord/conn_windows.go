//go:build windows

package discord

import (
	"fmt"
	"net"
	"time"

	"github.com/Microsoft/go-winio"
)

// pipeTimeout bounds the wait on a pipe whose instances are all busy.
var pipeTimeout = 2 * time.Second

// pipePaths lists \\.\pipe\discord-ipc-N for every slot.
func pipePaths() []string {
	names := slotNames(prefixStable)
	for i, n := range names {
		names[i] = `\\.\pipe\` + n
	}
	return names
}

// connectToDiscord returns a connection to the first named pipe a Discord
// client is serving.
func connectToDiscord() (net.Conn, error) {
	var last error
	for _, p := range pipePaths() {
		conn, err := winio.DialPipe(p, &pipeTimeout)
		if err == nil {
			return conn, nil
		}
		last = err
	}
	return nil, fmt.Errorf("%w: %w", ErrIPCNotAvailable, last)
}
