//go:build windows

package main

import (
	"os"
	"os/signal"
)

// Windows has no SIGTERM; the runtime maps CTRL_BREAK and console close to
// os.Interrupt.
var shutdownSignals = []os.Signal{os.Interrupt}

// signalChannel returns a channel that receives the shutdown signals.
func signalChannel() (<-chan os.Signal, func()) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, shutdownSignals...)
	return ch, func() { signal.Stop(ch) }
}
