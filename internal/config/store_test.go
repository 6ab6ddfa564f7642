package config

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_UpdatePersists(t *testing.T) {
	dir := t.TempDir()
	st := NewStore(dir)

	_, err := st.Update(func(c *Config) error {
		c.AddServer(server("a"))
		return nil
	})
	require.NoError(t, err)

	cfg, err := st.Load()
	require.NoError(t, err)
	require.Len(t, cfg.Servers, 1)
	assert.NotEmpty(t, cfg.DeviceID)

	info, err := os.Stat(st.Path())
	require.NoError(t, err)
	if runtime.GOOS != "windows" {
		assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
	}
}

func TestStore_UpdateErrorWritesNothing(t *testing.T) {
	dir := t.TempDir()
	st := NewStore(dir)
	boom := errors.New("boom")

	_, err := st.Update(func(c *Config) error {
		c.AddServer(server("a"))
		return boom
	})
	assert.ErrorIs(t, err, boom)
	_, statErr := os.Stat(st.Path())
	assert.True(t, os.IsNotExist(statErr))
}

func TestStore_UpdateRejectsInvalid(t *testing.T) {
	st := NewStore(t.TempDir())
	_, err := st.Update(func(c *Config) error {
		c.Behavior.PollIntervalSeconds = 0
		return nil
	})
	assert.Error(t, err)
}

func TestStore_LoadSeesExternalEdits(t *testing.T) {
	dir := t.TempDir()
	st := NewStore(dir)
	_, err := st.Update(func(c *Config) error { return nil })
	require.NoError(t, err)

	writeConfig(t, dir, "version = 2\ndevice_id = \"x\"\n[display]\nenabled = false\n")

	cfg, err := st.Load()
	require.NoError(t, err)
	assert.False(t, cfg.Display.Enabled)
}

func TestWatcherSignalsOnSave(t *testing.T) {
	for _, poll := range []bool{false, true} {
		name := "fsnotify"
		if poll {
			name = "polling"
		}
		t.Run(name, func(t *testing.T) {
			st := NewStore(t.TempDir())
			_, err := st.Update(func(c *Config) error { return nil })
			require.NoError(t, err)

			w, err := newWatcher(st.Path(), 20*time.Millisecond, poll)
			require.NoError(t, err)
			defer w.Close()
			if poll {
				assert.True(t, w.Polling())
			}

			// The poller compares size as well as mtime, so a same-second
			// save is still seen when the content grows.
			_, err = st.Update(func(c *Config) error {
				c.Privacy.IgnoreDevices = append(c.Privacy.IgnoreDevices, "Living Room TV")
				return nil
			})
			require.NoError(t, err)

			select {
			case <-w.Events():
			case <-time.After(5 * time.Second):
				t.Fatal("no change event after save")
			}
		})
	}
}

func TestWatcherIgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWatcher(NewStore(dir).Path())
	require.NoError(t, err)
	defer w.Close()
	if w.Polling() {
		t.Skip("fsnotify unavailable")
	}

	require.NoError(t, os.WriteFile(filepath.Join(dir, "mediacord.log"), []byte("x"), 0o600))
	select {
	case <-w.Events():
		t.Fatal("event for an unrelated file")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestWatcherCloseIdempotent(t *testing.T) {
	w, err := NewWatcher(NewStore(t.TempDir()).Path())
	require.NoError(t, err)
	assert.NoError(t, w.Close())
	assert.NoError(t, w.Close())
}

func TestWatcherEmptyPath(t *testing.T) {
	_, err := NewWatcher("")
	assert.Error(t, err)
}
