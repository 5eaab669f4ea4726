package app

import (
	"context"

	"github.com/justyntemme/duopane/internal/debug"
	"github.com/justyntemme/duopane/internal/dnd"
	"github.com/justyntemme/duopane/internal/model"
	"github.com/justyntemme/duopane/internal/nav"
)

// SetRegion records where pane id is laid out. Drops are hit-tested against
// the latest region.
func (a *App) SetRegion(id string, r dnd.Rect) error {
	if a.panes[id] == nil {
		return ErrUnknownPane
	}
	a.mu.Lock()
	a.regions[id] = r
	a.mu.Unlock()
	return nil
}

func (a *App) region(id string) dnd.Rect {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.regions[id]
}

// Drag drops entry, dragged from pane from, at point at. The payload is the
// entry alone or the whole selection when entry is selected. It reports
// whether a pane accepted the drop.
func (a *App) Drag(from string, entry model.Entry, at dnd.Point) bool {
	src := a.panes[from]
	if src == nil {
		return false
	}
	items := src.DragItems(entry)

	a.dragMu.Lock()
	defer a.dragMu.Unlock()
	a.setDragFrom(from)
	defer a.setDragFrom("")
	return a.drops.Drop(at, items)
}

// DropExternal routes local paths dropped from another application.
// Paths that no longer exist are skipped.
func (a *App) DropExternal(at dnd.Point, paths []string) bool {
	items := make([]model.SelectItem, 0, len(paths))
	for _, path := range paths {
		info, err := a.acc.Stat(path)
		if err != nil {
			debug.Log(debug.DND, "external drop: skip %s: %v", path, err)
			continue
		}
		kind := model.KindFile
		if info.IsDir {
			kind = model.KindFolder
		}
		items = append(items, model.SelectItem{Path: path, Kind: kind})
	}

	a.dragMu.Lock()
	defer a.dragMu.Unlock()
	a.setDragFrom("")
	return a.drops.Drop(at, items)
}

func (a *App) setDragFrom(id string) {
	a.mu.Lock()
	a.dragFrom = id
	a.mu.Unlock()
}

// dropped handles a drop accepted by pane to. Folders dropped on the
// favorites view become favorites; anything else is a transfer request.
func (a *App) dropped(to *nav.Pane, items []model.SelectItem, dest string) {
	a.mu.Lock()
	from := a.dragFrom
	a.mu.Unlock()

	if to.CurrentLocation().Backend == model.FavoritesID {
		a.favoriteItems(items)
		return
	}
	if from == to.ID() {
		debug.Log(debug.DND, "drop on source pane %s ignored", from)
		return
	}

	req := TransferRequest{Items: items, Destination: dest, From: from, To: to.ID()}
	debug.Log(debug.DND, "transfer %d items %s -> %s (%s)", len(items), from, req.To, dest)
	if a.opts.OnTransfer != nil {
		a.opts.OnTransfer(req)
	}
}

func (a *App) favoriteItems(items []model.SelectItem) {
	ctx := context.Background()
	added := 0
	for _, item := range items {
		if item.Kind != model.KindFolder {
			continue
		}
		loc := a.parse(item.Path)
		if err := a.store.Add(ctx, loc); err != nil {
			debug.Warn(debug.STORE, "favorite %s: %v", loc, err)
			continue
		}
		added++
	}
	if added > 0 {
		a.favoritesChanged()
	}
}
