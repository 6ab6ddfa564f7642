//go:build !windows

package main

import (
	"os"
	"os/signal"
	"syscall"
)

// shutdownSignals are the signals that stop the daemon: Ctrl+C and the
// SIGTERM sent by systemd and launchd.
var shutdownSignals = []os.Signal{os.Interrupt, syscall.SIGTERM}

// signalChannel returns a channel that receives the shutdown signals.
func signalChannel() (<-chan os.Signal, func()) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, shutdownSignals...)
	return ch, func() { signal.Stop(ch) }
}
