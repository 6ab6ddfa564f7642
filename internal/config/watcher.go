package config

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ///////////////////////////////////////////////
// Watcher
// ///////////////////////////////////////////////

const watchPollInterval = 2 * time.Second

// Watcher reports edits to the config file, whether made by a management
// command or by hand. Store saves rename a temp file over the config, so
// the directory is watched and events are matched by file name. When
// fsnotify fails the watcher stats the file instead.
type Watcher struct {
	path     string
	interval time.Duration
	changed  chan struct{}
	stop     chan struct{}
	done     chan struct{}
	polling  atomic.Bool
	close    sync.Once
}

// fileStamp is what the poller compares between ticks.
type fileStamp struct {
	mod  time.Time
	size int64
}

func stampOf(path string) fileStamp {
	info, err := os.Stat(path)
	if err != nil {
		return fileStamp{}
	}
	return fileStamp{mod: info.ModTime(), size: info.Size()}
}

// NewWatcher starts watching the config file at path.
func NewWatcher(path string) (*Watcher, error) {
	return newWatcher(path, watchPollInterval, false)
}

func newWatcher(path string, interval time.Duration, forcePoll bool) (*Watcher, error) {
	if path == "" {
		return nil, errors.New("config watcher: empty path")
	}
	w := &Watcher{
		path:     path,
		interval: interval,
		changed:  make(chan struct{}, 1),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}

	var fsw *fsnotify.Watcher
	if !forcePoll {
		fsw = w.openNotify()
	}
	if fsw == nil {
		w.polling.Store(true)
	}
	go w.loop(fsw)
	return w, nil
}

// openNotify returns nil when the directory cannot be watched.
func (w *Watcher) openNotify() *fsnotify.Watcher {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		slog.Info("fsnotify unavailable, polling config", "error", err)
		return nil
	}
	if err := fsw.Add(filepath.Dir(w.path)); err != nil {
		slog.Info("cannot watch config directory, polling config", "dir", filepath.Dir(w.path), "error", err)
		fsw.Close()
		return nil
	}
	return fsw
}

// Polling reports whether changes are detected by stat polling.
func (w *Watcher) Polling() bool {
	return w.polling.Load()
}

// Events delivers one value per burst of changes.
func (w *Watcher) Events() <-chan struct{} {
	return w.changed
}

// Close stops the watcher and waits for it to exit. It is safe to call
// more than once.
func (w *Watcher) Close() error {
	w.close.Do(func() { close(w.stop) })
	<-w.done
	return nil
}

// loop runs on fsnotify while it works and switches to a ticker for good
// after its first error.
func (w *Watcher) loop(fsw *fsnotify.Watcher) {
	defer close(w.done)

	var (
		fsEvents <-chan fsnotify.Event
		fsErrors <-chan error
		tick     <-chan time.Time
		last     fileStamp
	)
	startPolling := func() {
		ticker := time.NewTicker(w.interval)
		tick = ticker.C
		last = stampOf(w.path)
		w.polling.Store(true)
		go func() {
			<-w.stop
			ticker.Stop()
		}()
	}

	if fsw != nil {
		defer func() {
			if fsw != nil {
				fsw.Close()
			}
		}()
		fsEvents, fsErrors = fsw.Events, fsw.Errors
	} else {
		startPolling()
	}

	name := filepath.Base(w.path)
	for {
		select {
		case <-w.stop:
			return

		case ev, ok := <-fsEvents:
			if !ok {
				fsEvents = nil
				continue
			}
			if filepath.Base(ev.Name) == name && ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) != 0 {
				w.signal()
			}

		case err, ok := <-fsErrors:
			if ok {
				slog.Info("config watch failed, polling instead", "error", err)
			}
			fsw.Close()
			fsw, fsEvents, fsErrors = nil, nil, nil
			startPolling()

		case <-tick:
			if s := stampOf(w.path); s != last {
				last = s
				w.signal()
			}
		}
	}
}

func (w *Watcher) signal() {
	select {
	case w.changed <- struct{}{}:
	default:
	}
}
