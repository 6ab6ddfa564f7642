//go:build windows

package main

import (
	"fmt"
	"os"

	"golang.org/x/sys/windows"
)

// The PID file lock covers its first byte. LockFileEx locks are mandatory,
// so other processes cannot read that byte while the daemon runs.
const (
	lockOffset = 0
	lockLength = 1
)

func lockFile(f *os.File) error {
	return byteLock(f, true)
}

func unlockFile(f *os.File) error {
	return byteLock(f, false)
}

// byteLock takes or releases the exclusive lock without waiting.
func byteLock(f *os.File, lock bool) error {
	h := windows.Handle(f.Fd())
	ol := &windows.Overlapped{Offset: lockOffset}

	var err error
	if lock {
		err = windows.LockFileEx(h, windows.LOCKFILE_EXCLUSIVE_LOCK|windows.LOCKFILE_FAIL_IMMEDIATELY, 0, lockLength, 0, ol)
	} else {
		err = windows.UnlockFileEx(h, 0, lockLength, 0, ol)
	}
	if err != nil {
		op := "unlock"
		if lock {
			op = "lock"
		}
		return fmt.Errorf("%s %s: %w", op, f.Name(), err)
	}
	return nil
}
