package fs

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/justyntemme/duopane/internal/debug"
)

// DefaultDebounce is the quiet period before a change notification fires.
const DefaultDebounce = 200 * time.Millisecond

// DirectoryWatcher reports local directories whose contents changed.
// Several panes may watch the same directory; watches are reference counted.
type DirectoryWatcher struct {
	watcher  *fsnotify.Watcher
	mu       sync.Mutex
	watching map[string]int // path -> number of holders
	notify   chan string
	done     chan struct{}
	closeMu  sync.Once
	debounce time.Duration
}

// NewDirectoryWatcher starts a watcher. A non-positive debounce uses DefaultDebounce.
func NewDirectoryWatcher(debounce time.Duration) (*DirectoryWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	dw := &DirectoryWatcher{
		watcher:  w,
		watching: make(map[string]int),
		notify:   make(chan string, 10),
		done:     make(chan struct{}),
		debounce: debounce,
	}
	go dw.run()
	return dw, nil
}

func (dw *DirectoryWatcher) run() {
	lastEvent := make(map[string]time.Time)
	ticker := time.NewTicker(dw.debounce / 2)
	defer ticker.Stop()

	for {
		select {
		case <-dw.done:
			return

		case event, ok := <-dw.watcher.Events:
			if !ok {
				return
			}
			if !(event.Has(fsnotify.Create) || event.Has(fsnotify.Remove) ||
				event.Has(fsnotify.Rename) || event.Has(fsnotify.Write)) {
				continue
			}

			parentDir := filepath.Dir(event.Name)
			dw.mu.Lock()
			switch {
			case dw.watching[parentDir] > 0:
				lastEvent[parentDir] = time.Now()
			case dw.watching[event.Name] > 0:
				lastEvent[event.Name] = time.Now()
			}
			dw.mu.Unlock()
			debug.Log(debug.FS, "fsnotify: %s on %s", event.Op, event.Name)

		case err, ok := <-dw.watcher.Errors:
			if !ok {
				return
			}
			debug.Warn(debug.FS, "fsnotify error: %v", err)

		case now := <-ticker.C:
			for dir, at := range lastEvent {
				if now.Sub(at) < dw.debounce {
					continue
				}
				select {
				case dw.notify <- dir:
					debug.Log(debug.FS, "directory changed: %s", dir)
				default:
					// Receiver is behind; it will refresh on the next change.
				}
				delete(lastEvent, dir)
			}
		}
	}
}

// Watch adds a hold on path.
func (dw *DirectoryWatcher) Watch(path string) error {
	path = filepath.Clean(path)
	dw.mu.Lock()
	defer dw.mu.Unlock()

	if dw.watching[path] > 0 {
		dw.watching[path]++
		return nil
	}
	if err := dw.watcher.Add(path); err != nil {
		return err
	}
	dw.watching[path] = 1
	debug.Log(debug.FS, "watching %s", path)
	return nil
}

// Unwatch releases one hold on path and stops watching when none remain.
func (dw *DirectoryWatcher) Unwatch(path string) {
	path = filepath.Clean(path)
	dw.mu.Lock()
	defer dw.mu.Unlock()

	n := dw.watching[path]
	if n == 0 {
		return
	}
	if n > 1 {
		dw.watching[path] = n - 1
		return
	}
	if err := dw.watcher.Remove(path); err != nil {
		// The directory may already be gone.
		debug.Log(debug.FS, "unwatch %s: %v", path, err)
	}
	delete(dw.watching, path)
}

// Watching reports whether path currently has at least one hold.
func (dw *DirectoryWatcher) Watching(path string) bool {
	dw.mu.Lock()
	defer dw.mu.Unlock()
	return dw.watching[filepath.Clean(path)] > 0
}

// Notify returns the channel receiving changed directory paths.
func (dw *DirectoryWatcher) Notify() <-chan string {
	return dw.notify
}

// Close shuts down the watcher. It is safe to call more than once.
func (dw *DirectoryWatcher) Close() error {
	var err error
	dw.closeMu.Do(func() {
		close(dw.done)
		err = dw.watcher.Close()
	})
	return err
}
