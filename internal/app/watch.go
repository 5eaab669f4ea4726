package app

import (
	"github.com/justyntemme/duopane/internal/debug"
)

// watchLoop refreshes panes whose local directory changed on disk.
func (a *App) watchLoop() {
	defer a.wg.Done()
	for {
		select {
		case <-a.stop:
			return
		case dir, ok := <-a.watcher.Notify():
			if !ok {
				return
			}
			a.refreshWatching(dir)
		}
	}
}

func (a *App) refreshWatching(dir string) {
	a.mu.Lock()
	var ids []string
	for id, watched := range a.watched {
		if watched == dir {
			ids = append(ids, id)
		}
	}
	a.mu.Unlock()

	for _, id := range ids {
		debug.Log(debug.FS, "pane %s: %s changed, refreshing", id, dir)
		if err := a.panes[id].Refresh(); err != nil {
			debug.Log(debug.NAV, "refresh %s: %v", id, err)
		}
	}
}
