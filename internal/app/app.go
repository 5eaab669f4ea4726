// Package app wires the listing backends, the cache controller, two panes
// and the drop registry into a running dual-pane navigator.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/justyntemme/duopane/internal/backend"
	"github.com/justyntemme/duopane/internal/cache"
	"github.com/justyntemme/duopane/internal/config"
	"github.com/justyntemme/duopane/internal/debug"
	"github.com/justyntemme/duopane/internal/dnd"
	"github.com/justyntemme/duopane/internal/favorites"
	"github.com/justyntemme/duopane/internal/fs"
	"github.com/justyntemme/duopane/internal/model"
	"github.com/justyntemme/duopane/internal/nav"
	"github.com/justyntemme/duopane/internal/rpc"
	"github.com/justyntemme/duopane/internal/view"
)

// Pane ids.
const (
	LeftPane  = "left"
	RightPane = "right"
)

const (
	settingLastLocation = "last_location."
	settingSeeded       = "favorites_seeded"
)

// ErrUnknownPane is returned for pane ids other than LeftPane and RightPane.
var ErrUnknownPane = errors.New("unknown pane")

// TransferRequest is handed to the transfer hook when items are dropped on
// a pane. Executing the copy or move is up to the hook.
type TransferRequest struct {
	Items       []model.SelectItem
	Destination string
	From        string // source pane id, "" for drops from outside the application
	To          string
}

// Options supplies collaborators. Every field is optional.
type Options struct {
	// Accessor replaces the OS filesystem for the local backend.
	Accessor fs.Accessor
	// ListService replaces the rc client for remotes that are not listed directly.
	ListService rpc.ListService
	// Remotes are registered in addition to the discovered ones.
	Remotes []string

	OnTransfer  func(TransferRequest)
	OnChange    func(nav.Snapshot)
	OnSelection func(paneID string, items []model.SelectItem)
}

// App owns every long-lived component. Close releases them.
type App struct {
	cfg  config.Config
	opts Options
	home string
	acc  fs.Accessor

	store   *favorites.SQLiteStore
	reg     *backend.Registry
	ctl     *cache.Controller
	drops   *dnd.Registry
	watcher *fs.DirectoryWatcher
	rc      *rpc.RCClient

	panes      map[string]*nav.Pane
	unregister []func()

	mu       sync.Mutex
	regions  map[string]dnd.Rect
	watched  map[string]string // pane id -> watched local directory
	last     map[string]model.Location
	dragFrom string

	// dragMu serializes drops so dragFrom belongs to the gesture being routed.
	dragMu sync.Mutex

	stop      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// New builds the application from cfg. Panes stay empty until Start.
func New(ctx context.Context, cfg config.Config, opts Options) (*App, error) {
	acc := opts.Accessor
	if acc == nil {
		acc = fs.OSAccessor{}
	}
	local := fs.NewLocal(acc)
	home := local.Root()

	store, err := favorites.OpenSQLite(expandHome(cfg.Favorites.Database, home))
	if err != nil {
		return nil, fmt.Errorf("open favorites: %w", err)
	}

	a := &App{
		cfg:     cfg,
		opts:    opts,
		home:    home,
		acc:     acc,
		store:   store,
		reg:     backend.NewRegistry(local, favorites.NewBackend(store)),
		drops:   dnd.NewRegistry(),
		panes:   make(map[string]*nav.Pane),
		regions: make(map[string]dnd.Rect),
		watched: make(map[string]string),
		last:    make(map[string]model.Location),
		stop:    make(chan struct{}),
	}

	if err := a.seedFavorites(ctx); err != nil {
		debug.Warn(debug.STORE, "seed favorites: %v", err)
	}
	a.registerRemotes(ctx)

	a.ctl = cache.NewController(cache.Config{
		LoadingDelay: cfg.Navigation.LoadingDelay(),
		Revalidate:   cfg.Navigation.Revalidate(),
		FetchTimeout: cfg.Navigation.FetchTimeout(),
	})

	if cfg.Navigation.WatchLocal {
		w, err := fs.NewDirectoryWatcher(0)
		if err != nil {
			debug.Warn(debug.FS, "directory watching disabled: %v", err)
		} else {
			a.watcher = w
		}
	}

	for _, id := range []string{LeftPane, RightPane} {
		if err := a.addPane(id); err != nil {
			a.Close()
			return nil, err
		}
	}

	if a.watcher != nil {
		a.wg.Add(1)
		go a.watchLoop()
	}
	debug.Log(debug.APP, "app ready: remotes=%v", a.reg.Remotes())
	return a, nil
}

func (a *App) addPane(id string) error {
	p := nav.NewPane(a.reg, a.ctl, nav.Options{
		ID:          id,
		ShowHidden:  a.cfg.Navigation.ShowHidden,
		Padding:     a.cfg.Navigation.PaddingRows,
		OnNavigate:  a.navigated(id),
		OnChange:    a.opts.OnChange,
		OnSelection: a.selectionChanged(id),
	})
	unregister, err := a.drops.Register(id,
		func() dnd.Rect { return a.region(id) },
		func() string { return p.CurrentLocation().String() },
		func(items []model.SelectItem, dest string) { a.dropped(p, items, dest) },
	)
	if err != nil {
		p.Close()
		return fmt.Errorf("register drop target %s: %w", id, err)
	}
	a.panes[id] = p
	a.unregister = append(a.unregister, unregister)
	return nil
}

func (a *App) selectionChanged(id string) func([]model.SelectItem) {
	if a.opts.OnSelection == nil {
		return nil
	}
	return func(items []model.SelectItem) { a.opts.OnSelection(id, items) }
}

// Start moves each pane to its restored or configured start location,
// falling back to the local home directory.
func (a *App) Start(ctx context.Context) error {
	for _, id := range []string{LeftPane, RightPane} {
		p := a.panes[id]
		for _, target := range a.startLocations(ctx, id) {
			err := p.NavigateTo(target)
			if err == nil {
				break
			}
			debug.Warn(debug.APP, "pane %s: start at %q: %v", id, target, err)
		}
		if p.CurrentLocation().Backend == "" {
			if err := p.SelectBackend(model.LocalID); err != nil {
				return fmt.Errorf("start pane %s: %w", id, err)
			}
		}
	}
	return nil
}

func (a *App) startLocations(ctx context.Context, id string) []string {
	var out []string
	if a.cfg.Navigation.RestoreLastLocation {
		if v, err := a.store.Setting(ctx, settingLastLocation+id); err != nil {
			debug.Warn(debug.STORE, "read last location of %s: %v", id, err)
		} else if v != "" {
			out = append(out, v)
		}
	}
	start := a.cfg.Navigation.StartLeft
	if id == RightPane {
		start = a.cfg.Navigation.StartRight
	}
	if start != "" {
		out = append(out, start)
	}
	return out
}

// Pane returns the pane with id, or nil.
func (a *App) Pane(id string) *nav.Pane {
	return a.panes[id]
}

// Left returns the left pane.
func (a *App) Left() *nav.Pane { return a.panes[LeftPane] }

// Right returns the right pane.
func (a *App) Right() *nav.Pane { return a.panes[RightPane] }

// Remotes returns the registered remote names.
func (a *App) Remotes() []string {
	return a.reg.Remotes()
}

// List resolves raw like the path bar does and returns its projected
// listing without touching pane state.
func (a *App) List(ctx context.Context, raw string, opts view.Options) ([]view.Row, error) {
	cwd, err := os.Getwd()
	if err != nil {
		cwd = a.home
	}
	loc := nav.ParseLocation(raw, model.Location{Backend: model.LocalID, Path: cwd}, a.home)
	if strings.TrimSpace(raw) == "" {
		loc = model.Location{Backend: model.LocalID, Path: cwd}
	}
	b, err := a.reg.Get(loc.Backend)
	if err != nil {
		return nil, err
	}
	entries, err := b.List(ctx, loc.Path)
	if err != nil {
		return nil, err
	}
	return view.Project(entries, opts), nil
}

// navigated tracks the pane's location for watching and persistence. It
// runs while the pane publishes, so it must not call back into the pane.
func (a *App) navigated(id string) func(backendID, path string) {
	return func(backendID, path string) {
		loc := model.Location{Backend: backendID, Path: path}
		debug.Log(debug.NAV, "pane %s at %s", id, loc)

		a.mu.Lock()
		defer a.mu.Unlock()
		a.last[id] = loc
		if a.watcher == nil {
			return
		}

		next := ""
		if loc.IsLocal() {
			next = filepath.Clean(path)
		}
		prev := a.watched[id]
		if prev == next {
			return
		}
		if prev != "" {
			a.watcher.Unwatch(prev)
			delete(a.watched, id)
		}
		if next == "" {
			return
		}
		if err := a.watcher.Watch(next); err != nil {
			debug.Log(debug.FS, "watch %s: %v", next, err)
			return
		}
		a.watched[id] = next
	}
}

// Close persists pane locations and releases every component. It is safe
// to call more than once.
func (a *App) Close() error {
	var err error
	a.closeOnce.Do(func() {
		if a.cfg.Navigation.RestoreLastLocation {
			a.saveLocations()
		}
		for _, unregister := range a.unregister {
			unregister()
		}
		for _, p := range a.panes {
			p.Close()
		}
		a.drops.Close()
		if a.ctl != nil {
			a.ctl.Close()
		}

		close(a.stop)
		if a.watcher != nil {
			if werr := a.watcher.Close(); werr != nil {
				debug.Warn(debug.FS, "close watcher: %v", werr)
			}
		}
		a.wg.Wait()

		err = a.store.Close()
	})
	return err
}

func (a *App) saveLocations() {
	a.mu.Lock()
	last := make(map[string]model.Location, len(a.last))
	for id, loc := range a.last {
		last[id] = loc
	}
	a.mu.Unlock()

	ctx := context.Background()
	for id, loc := range last {
		if err := a.store.SaveSetting(ctx, settingLastLocation+id, loc.String()); err != nil {
			debug.Warn(debug.STORE, "save last location of %s: %v", id, err)
		}
	}
}

func expandHome(p, home string) string {
	switch {
	case p == "~":
		return home
	case strings.HasPrefix(p, "~/"):
		return filepath.Join(home, p[2:])
	}
	return p
}
