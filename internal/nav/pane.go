// Package nav implements the per-pane navigation state machine: backend
// selection, working directory, selection set and search filter.
package nav

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/justyntemme/duopane/internal/backend"
	"github.com/justyntemme/duopane/internal/cache"
	"github.com/justyntemme/duopane/internal/debug"
	"github.com/justyntemme/duopane/internal/model"
	"github.com/justyntemme/duopane/internal/view"
)

const maxHistorySize = 100

var (
	ErrNotDirectory       = errors.New("entry is not a directory")
	ErrNotNavigable       = errors.New("entry cannot be opened")
	ErrNavigationInFlight = errors.New("navigation already in progress")
	ErrSingleSelection    = errors.New("pane allows a single selection")
	ErrNotInListing       = errors.New("entry is not in the current listing")
	ErrNoBackend          = errors.New("no backend selected")
	ErrClosed             = errors.New("pane closed")
)

// Options configures a Pane.
//
// The callbacks run synchronously on the goroutine that changed the state,
// sometimes while a listing is being published. They must not call
// navigation methods on the same pane.
type Options struct {
	ID              string // generated when empty
	SingleSelection bool
	ShowHidden      bool
	Padding         int // placeholder rows; 0 uses view.DefaultPadding, negative disables

	OnSelection func([]model.SelectItem)
	OnNavigate  func(backendID, path string)
	OnChange    func(Snapshot)
}

// Snapshot is an immutable copy of a pane's state.
type Snapshot struct {
	ID         string
	Location   model.Location
	Entries    []model.Entry
	Selection  []model.SelectItem
	SearchTerm string
	ShowHidden bool
	Error      string
	Loading    bool
	Stale      bool
	Pending    bool
	CanBack    bool
	CanForward bool
}

// Pane is one independent navigator. It is safe for concurrent use.
type Pane struct {
	id   string
	reg  *backend.Registry
	ctl  *cache.Controller
	opts Options

	ctx    context.Context
	cancel context.CancelFunc

	// navMu serializes intents so requests reach the controller in the
	// same order the pane state changed.
	navMu sync.Mutex

	mu         sync.Mutex
	be         backend.Backend
	loc        model.Location
	entries    []model.Entry
	selection  map[string]model.Kind
	search     string
	showHidden bool
	err        error
	loading    bool
	stale      bool
	pending    bool
	announced  bool
	history    []model.Location
	historyIdx int
	closed     bool
}

// NewPane creates a pane. No backend is selected until SelectBackend or
// NavigateTo is called.
func NewPane(reg *backend.Registry, ctl *cache.Controller, opts Options) *Pane {
	if opts.ID == "" {
		opts.ID = uuid.NewString()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Pane{
		id:         opts.ID,
		reg:        reg,
		ctl:        ctl,
		opts:       opts,
		ctx:        ctx,
		cancel:     cancel,
		selection:  make(map[string]model.Kind),
		showHidden: opts.ShowHidden,
		historyIdx: -1,
	}
}

// ID returns the pane id.
func (p *Pane) ID() string { return p.id }

// SelectBackend switches to backend id at its root (home for local).
func (p *Pane) SelectBackend(id string) error {
	b, err := p.reg.Get(id)
	if err != nil {
		return err
	}

	p.navMu.Lock()
	defer p.navMu.Unlock()
	return p.moveLocked(b, b.Root(), moveOpts{history: true, reset: true})
}

// NavigateInto opens a directory entry from the current listing. Favorites
// entries switch the pane to the location they point at. While a previous
// NavigateInto has not produced a result, further calls are ignored.
func (p *Pane) NavigateInto(e model.Entry) error {
	if e.Key == "" {
		return ErrNotNavigable
	}
	if !e.IsDir {
		return fmt.Errorf("%w: %s", ErrNotDirectory, e.Name)
	}

	p.navMu.Lock()
	defer p.navMu.Unlock()

	p.mu.Lock()
	pending, be, cur := p.pending, p.be, p.loc
	p.mu.Unlock()

	if pending {
		debug.Log(debug.NAV, "pane %s: ignoring NavigateInto %s, navigation in flight", p.id, e.Name)
		return ErrNavigationInFlight
	}
	if be == nil {
		return ErrNoBackend
	}

	switch be.Kind() {
	case backend.KindFavorites:
		if e.Target == nil {
			return fmt.Errorf("%w: %s", ErrNotNavigable, e.Name)
		}
		target, err := p.reg.Get(e.Target.Backend)
		if err != nil {
			return err
		}
		return p.moveLocked(target, e.Target.Path, moveOpts{history: true, into: true})
	default:
		return p.moveLocked(be, be.Join(cur.Path, e.Name), moveOpts{history: true, into: true})
	}
}

// NavigateUp moves to the parent directory. It is a no-op at the root.
func (p *Pane) NavigateUp() error {
	p.navMu.Lock()
	defer p.navMu.Unlock()

	p.mu.Lock()
	be, cur := p.be, p.loc
	p.mu.Unlock()
	if be == nil {
		return nil
	}

	parent, ok := be.Parent(cur.Path)
	if !ok {
		return nil
	}
	return p.moveLocked(be, parent, moveOpts{history: true})
}

// NavigateTo parses raw (see ParseLocation) and goes there.
func (p *Pane) NavigateTo(raw string) error {
	p.navMu.Lock()
	defer p.navMu.Unlock()

	p.mu.Lock()
	cur := p.loc
	p.mu.Unlock()

	local, err := p.reg.Get(model.LocalID)
	home := ""
	if err == nil {
		home = local.Root()
	}

	loc := ParseLocation(raw, cur, home)
	b, err := p.reg.Get(loc.Backend)
	if err != nil {
		return err
	}
	return p.moveLocked(b, loc.Path, moveOpts{history: true})
}

// Refresh drops the cached listing for the current location and lists it again.
func (p *Pane) Refresh() error {
	p.navMu.Lock()
	defer p.navMu.Unlock()

	p.mu.Lock()
	be, cur := p.be, p.loc
	p.mu.Unlock()
	if be == nil {
		return ErrNoBackend
	}
	return p.moveLocked(be, cur.Path, moveOpts{force: true})
}

// Back goes to the previous location in the pane's history.
func (p *Pane) Back() error {
	return p.stepHistory(-1)
}

// Forward undoes a Back.
func (p *Pane) Forward() error {
	return p.stepHistory(1)
}

func (p *Pane) stepHistory(delta int) error {
	p.navMu.Lock()
	defer p.navMu.Unlock()

	p.mu.Lock()
	idx := p.historyIdx + delta
	if idx < 0 || idx >= len(p.history) {
		p.mu.Unlock()
		return nil
	}
	p.historyIdx = idx
	loc := p.history[idx]
	p.mu.Unlock()

	b, err := p.reg.Get(loc.Backend)
	if err != nil {
		return err
	}
	return p.moveLocked(b, loc.Path, moveOpts{})
}

type moveOpts struct {
	history bool // record the new location in history
	into    bool // NavigateInto; arms the single-flight guard
	force   bool // skip the cache
	reset   bool // treat as a location change even when it is not
}

// moveLocked sets the location and requests its listing. navMu must be held.
func (p *Pane) moveLocked(b backend.Backend, path string, mo moveOpts) error {
	loc := model.Location{Backend: b.ID(), Path: path}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrClosed
	}
	changed := mo.reset || p.be == nil || p.loc != loc
	var cleared bool
	if changed {
		cleared = len(p.selection) > 0
		p.selection = make(map[string]model.Kind)
		p.entries = nil
		p.err = nil
		p.stale = false
		p.announced = false
		if mo.history {
			p.pushHistoryLocked(loc)
		}
	}
	p.be = b
	p.loc = loc
	p.pending = mo.into
	p.mu.Unlock()

	debug.Log(debug.NAV, "pane %s: -> %s (force=%v)", p.id, loc, mo.force)
	if cleared {
		p.notifySelection()
	}
	p.notifyChange()

	_, err := p.ctl.Resolve(p.ctx, cache.Request{
		Pane:    p.id,
		Backend: b,
		Path:    path,
		Force:   mo.force,
		Publish: p.onResult,
		Loading: p.onLoading,
	})
	if err != nil {
		p.mu.Lock()
		p.pending = false
		p.mu.Unlock()
	}
	return err
}

func (p *Pane) pushHistoryLocked(loc model.Location) {
	if p.historyIdx >= 0 && p.historyIdx < len(p.history) && p.history[p.historyIdx] == loc {
		return
	}
	// Truncate forward history if we're not at the end
	if p.historyIdx >= 0 && p.historyIdx < len(p.history)-1 {
		p.history = p.history[:p.historyIdx+1]
	}
	p.history = append(p.history, loc)
	p.historyIdx = len(p.history) - 1

	if len(p.history) > maxHistorySize {
		excess := len(p.history) - maxHistorySize
		p.history = p.history[excess:]
		p.historyIdx -= excess
	}
}

func (p *Pane) onResult(res cache.Result) {
	p.mu.Lock()
	if p.closed || res.Location != p.loc {
		p.mu.Unlock()
		return
	}

	p.pending = false
	p.loading = false
	p.stale = res.Stale
	switch {
	case res.Err != nil && !res.Stale:
		p.entries = nil
		p.err = res.Err
	default:
		p.entries = res.Entries
		p.err = nil
	}

	// Keep the selection inside the listing
	pruned := false
	if len(p.selection) > 0 {
		present := make(map[string]bool, len(p.entries))
		for _, e := range p.entries {
			present[e.Key] = true
		}
		for key := range p.selection {
			if !present[key] {
				delete(p.selection, key)
				pruned = true
			}
		}
	}

	announce := !p.announced && p.err == nil
	if announce {
		p.announced = true
	}
	loc := p.loc
	p.mu.Unlock()

	if res.Err != nil {
		debug.Log(debug.NAV, "pane %s: listing %s failed (stale=%v): %v", p.id, loc, res.Stale, res.Err)
	}
	if pruned {
		p.notifySelection()
	}
	if announce && p.opts.OnNavigate != nil {
		p.opts.OnNavigate(loc.Backend, loc.Path)
	}
	p.notifyChange()
}

func (p *Pane) onLoading(on bool) {
	p.mu.Lock()
	if p.closed || p.loading == on {
		p.mu.Unlock()
		return
	}
	p.loading = on
	p.mu.Unlock()
	p.notifyChange()
}

// ToggleSelect adds e to the selection or removes it.
func (p *Pane) ToggleSelect(e model.Entry) error {
	p.mu.Lock()
	if !p.inListingLocked(e.Key) {
		p.mu.Unlock()
		return ErrNotInListing
	}
	if _, ok := p.selection[e.Key]; ok {
		delete(p.selection, e.Key)
	} else {
		if p.opts.SingleSelection && len(p.selection) > 0 {
			p.mu.Unlock()
			return ErrSingleSelection
		}
		p.selection[e.Key] = e.Kind()
	}
	p.mu.Unlock()

	p.notifySelection()
	p.notifyChange()
	return nil
}

// SelectAll selects every visible entry of kind. An empty kind selects
// files and folders alike.
func (p *Pane) SelectAll(kind model.Kind) error {
	if p.opts.SingleSelection {
		return ErrSingleSelection
	}

	p.mu.Lock()
	for _, e := range view.Entries(p.projectLocked()) {
		if kind == "" || e.Kind() == kind {
			p.selection[e.Key] = e.Kind()
		}
	}
	p.mu.Unlock()

	p.notifySelection()
	p.notifyChange()
	return nil
}

// ClearSelection empties the selection.
func (p *Pane) ClearSelection() {
	p.mu.Lock()
	had := len(p.selection) > 0
	p.selection = make(map[string]model.Kind)
	p.mu.Unlock()

	if had {
		p.notifySelection()
		p.notifyChange()
	}
}

// Selection returns the selected items in listing order.
func (p *Pane) Selection() []model.SelectItem {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.selectionLocked()
}

func (p *Pane) selectionLocked() []model.SelectItem {
	items := make([]model.SelectItem, 0, len(p.selection))
	for _, e := range p.entries {
		if kind, ok := p.selection[e.Key]; ok {
			items = append(items, model.SelectItem{Path: e.FullPath, Kind: kind})
		}
	}
	return items
}

// IsSelected reports whether the entry with key is selected.
func (p *Pane) IsSelected(key string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.selection[key]
	return ok
}

// DragItems is the payload for dragging e: the whole selection when e is
// part of it, otherwise e alone.
func (p *Pane) DragItems(e model.Entry) []model.SelectItem {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.selection[e.Key]; ok {
		return p.selectionLocked()
	}
	return []model.SelectItem{{Path: e.FullPath, Kind: e.Kind()}}
}

// CurrentLocation returns the backend and working directory.
func (p *Pane) CurrentLocation() model.Location {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.loc
}

// SetSearchTerm filters the view by a case-insensitive substring.
func (p *Pane) SetSearchTerm(term string) {
	p.mu.Lock()
	p.search = term
	p.mu.Unlock()
	p.notifyChange()
}

// SetShowHidden toggles dot-prefixed entries in the view.
func (p *Pane) SetShowHidden(show bool) {
	p.mu.Lock()
	p.showHidden = show
	p.mu.Unlock()
	p.notifyChange()
}

// View returns the projected rows for rendering.
func (p *Pane) View() []view.Row {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.projectLocked()
}

func (p *Pane) projectLocked() []view.Row {
	padding := p.opts.Padding
	switch {
	case padding == 0:
		padding = view.DefaultPadding
	case padding < 0:
		padding = 0
	}
	return view.Project(p.entries, view.Options{
		SearchTerm: p.search,
		ShowHidden: p.showHidden,
		Padding:    padding,
	})
}

// Snapshot returns a copy of the pane state.
func (p *Pane) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshotLocked()
}

func (p *Pane) snapshotLocked() Snapshot {
	entries := make([]model.Entry, len(p.entries))
	copy(entries, p.entries)
	return Snapshot{
		ID:         p.id,
		Location:   p.loc,
		Entries:    entries,
		Selection:  p.selectionLocked(),
		SearchTerm: p.search,
		ShowHidden: p.showHidden,
		Error:      backend.UserMessage(p.err),
		Loading:    p.loading,
		Stale:      p.stale,
		Pending:    p.pending,
		CanBack:    p.historyIdx > 0,
		CanForward: p.historyIdx >= 0 && p.historyIdx < len(p.history)-1,
	}
}

func (p *Pane) inListingLocked(key string) bool {
	if key == "" {
		return false
	}
	for _, e := range p.entries {
		if e.Key == key {
			return true
		}
	}
	return false
}

func (p *Pane) notifySelection() {
	if p.opts.OnSelection != nil {
		p.opts.OnSelection(p.Selection())
	}
}

func (p *Pane) notifyChange() {
	if p.opts.OnChange != nil {
		p.opts.OnChange(p.Snapshot())
	}
}

// Close cancels the pane's in-flight request. Further intents return ErrClosed.
func (p *Pane) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()

	p.ctl.Cancel(p.id)
	p.cancel()
}
