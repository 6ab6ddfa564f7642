package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// ///////////////////////////////////////////////
// PID File
// ///////////////////////////////////////////////

// pidRecord is the content of the PID file: "<pid>:<token>". The token ties
// the file to the daemon that wrote it.
type pidRecord struct {
	pid   int
	token string
}

func (r pidRecord) String() string {
	return strconv.Itoa(r.pid) + ":" + r.token
}

func parsePIDRecord(data []byte) (pidRecord, error) {
	pidStr, token, ok := strings.Cut(strings.TrimSpace(string(data)), ":")
	if !ok {
		return pidRecord{}, errors.New("missing token")
	}
	pid, err := strconv.Atoi(pidStr)
	if err != nil || pid <= 0 {
		return pidRecord{}, fmt.Errorf("bad pid %q", pidStr)
	}
	return pidRecord{pid: pid, token: token}, nil
}

func readPIDRecord(path string) (pidRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return pidRecord{}, err
	}
	return parsePIDRecord(data)
}

// pidToken returns 16 random hex characters.
func pidToken() string {
	id := uuid.New()
	return strings.ReplaceAll(id.String(), "-", "")[:16]
}

// writePID locks the PID file and records this process in it. The handle
// holds the lock and must stay open until [removePID].
func writePID(paths DataPaths, token string) (f *os.File, err error) {
	f, err = os.OpenFile(paths.PID(), os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open PID file: %w", err)
	}
	if err = lockFile(f); err != nil {
		f.Close()
		return nil, fmt.Errorf("lock PID file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = unlockFile(f)
			f.Close()
			f = nil
		}
	}()

	rec := pidRecord{pid: os.Getpid(), token: token}
	if err = f.Truncate(0); err != nil {
		return nil, fmt.Errorf("truncate PID file: %w", err)
	}
	if _, err = f.WriteAt([]byte(rec.String()), 0); err != nil {
		return nil, fmt.Errorf("write PID file: %w", err)
	}
	return f, nil
}

// removePID unlocks and closes f, then deletes the PID file if it still
// carries token.
func removePID(paths DataPaths, token string, f *os.File) {
	if f != nil {
		_ = unlockFile(f)
		f.Close()
	}
	if rec, err := readPIDRecord(paths.PID()); err == nil && rec.token == token {
		os.Remove(paths.PID())
	}
}

// checkStalePID reports whether a running daemon holds the PID file lock,
// and its PID when the file is readable. An unheld file is deleted.
func checkStalePID(paths DataPaths) (alive bool, pid int) {
	f, err := os.OpenFile(paths.PID(), os.O_RDWR, 0o600)
	if err != nil {
		return false, 0
	}
	defer f.Close()

	if lockFile(f) != nil {
		rec, _ := readPIDRecord(paths.PID())
		return true, rec.pid
	}
	_ = unlockFile(f)
	os.Remove(paths.PID())
	return false, 0
}
