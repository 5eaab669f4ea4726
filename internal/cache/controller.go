// Package cache resolves directory listings for panes. It owns the
// process-wide listing cache, collapses duplicate fetches, cancels a pane's
// previous request when it asks for a new one, and raises a loading
// indicator only when a request is slow.
package cache

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/justyntemme/duopane/internal/backend"
	"github.com/justyntemme/duopane/internal/debug"
	"github.com/justyntemme/duopane/internal/metrics"
	"github.com/justyntemme/duopane/internal/model"
	"github.com/justyntemme/duopane/internal/view"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultLoadingDelay = 200 * time.Millisecond
	DefaultRevalidate   = 5 * time.Second
	DefaultFetchTimeout = 30 * time.Second
)

// ErrClosed is returned by Resolve after Close.
var ErrClosed = errors.New("cache controller closed")

// Config tunes a Controller. Zero fields take the defaults.
type Config struct {
	// LoadingDelay is how long a request may go without a result before
	// the loading indicator is raised.
	LoadingDelay time.Duration
	// Revalidate is the age under which a cache hit is served without a
	// background fetch. Negative means every hit is revalidated.
	Revalidate time.Duration
	// FetchTimeout bounds one backend listing.
	FetchTimeout time.Duration
}

// Result is one publication to a pane.
type Result struct {
	Location model.Location
	// Entries are sorted directories first, then by name.
	Entries []model.Entry
	Err     error
	// Provisional is set when Entries came from the cache and a revalidation
	// fetch follows.
	Provisional bool
	// Stale is set when the fetch failed and Entries are the last good listing.
	Stale bool
}

// Request asks for the listing of Path on Backend on behalf of Pane.
type Request struct {
	Pane    string
	Backend backend.Backend
	Path    string
	// Force drops the cached listing and any shared in-flight fetch first.
	Force bool
	// Publish receives results in order. It runs with the pane's publication
	// lock held and must not call back into the controller for the same pane.
	Publish func(Result)
	// Loading is called with true when the request is slow, and with false
	// when a raised indicator is no longer needed. May be nil.
	Loading func(bool)
}

type cached struct {
	entries  []model.Entry
	produced time.Time
}

// flight is one Resolve call. Its landed and loading fields are guarded by
// the owning pane's publishMu.
type flight struct {
	gen     uint64
	req     Request
	key     string
	ctx     context.Context
	cancel  context.CancelFunc
	timer   *time.Timer
	landed  bool
	loading bool
}

type paneState struct {
	gen     uint64
	current *flight

	// publishMu orders publications for the pane so a superseded result
	// can never land after a newer one.
	publishMu sync.Mutex
}

// Controller is safe for concurrent use.
type Controller struct {
	cfg Config
	now func() time.Time

	mu      sync.Mutex
	entries map[string]cached
	panes   map[string]*paneState
	closed  bool
	// epochs advance on Force and Invalidate. A fetch that started under an
	// older epoch may still be published but is never cached.
	epochs map[string]uint64

	group singleflight.Group
	ctx   context.Context
	stop  context.CancelFunc
	wg    sync.WaitGroup
}

// NewController creates a controller.
func NewController(cfg Config) *Controller {
	if cfg.LoadingDelay <= 0 {
		cfg.LoadingDelay = DefaultLoadingDelay
	}
	if cfg.Revalidate == 0 {
		cfg.Revalidate = DefaultRevalidate
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = DefaultFetchTimeout
	}
	ctx, stop := context.WithCancel(context.Background())
	return &Controller{
		cfg:     cfg,
		now:     time.Now,
		entries: make(map[string]cached),
		panes:   make(map[string]*paneState),
		epochs:  make(map[string]uint64),
		ctx:     ctx,
		stop:    stop,
	}
}

// Key is the cache key for a backend and working directory.
func Key(backendID, path string) string {
	return backendID + "::" + path
}

// Resolve cancels the pane's previous request and starts this one. A cached
// listing is published before Resolve returns; fresh results are published
// from a background goroutine unless a newer request for the same pane has
// started by then. The returned generation increases per pane.
func (c *Controller) Resolve(ctx context.Context, req Request) (uint64, error) {
	key := Key(req.Backend.ID(), req.Path)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return 0, ErrClosed
	}
	ps := c.paneLocked(req.Pane)
	ps.gen++
	fctx, cancel := context.WithCancel(ctx)
	f := &flight{gen: ps.gen, req: req, key: key, ctx: fctx, cancel: cancel}
	old := ps.current
	ps.current = f
	if old != nil {
		old.cancel()
	}
	if req.Force {
		c.dropLocked(key)
	}
	hit, ok := c.entries[key]
	c.mu.Unlock()

	metrics.RecordCacheLookup(ok)
	debug.Log(debug.CACHE, "resolve pane=%s key=%s gen=%d hit=%v force=%v", req.Pane, key, f.gen, ok, req.Force)

	ps.publishMu.Lock()
	if old != nil && old.loading && !old.landed {
		// The indicator stays up; this request now owns lowering it.
		f.loading = true
	}
	if !ok {
		f.timer = time.AfterFunc(c.cfg.LoadingDelay, func() { c.raiseLoading(ps, f) })
	}
	ps.publishMu.Unlock()

	if ok {
		revalidate := c.cfg.Revalidate <= 0 || c.now().Sub(hit.produced) >= c.cfg.Revalidate
		c.publish(ps, f, Result{Location: f.location(), Entries: hit.entries, Provisional: revalidate})
		if !revalidate {
			return f.gen, nil
		}
	}

	c.wg.Add(1)
	go c.fetch(ps, f, hit, ok)
	return f.gen, nil
}

func (c *Controller) paneLocked(id string) *paneState {
	ps := c.panes[id]
	if ps == nil {
		ps = &paneState{}
		c.panes[id] = ps
	}
	return ps
}

// dropLocked forgets the cached listing and any shared fetch of key. c.mu
// must be held.
func (c *Controller) dropLocked(key string) {
	delete(c.entries, key)
	c.epochs[key]++
	c.group.Forget(key)
}

// fetched is the shared result of one backend listing.
type fetched struct {
	entries []model.Entry
	epoch   uint64
}

func (f *flight) location() model.Location {
	return model.Location{Backend: f.req.Backend.ID(), Path: f.req.Path}
}

func (c *Controller) fetch(ps *paneState, f *flight, prev cached, hasPrev bool) {
	defer c.wg.Done()

	ch := c.group.DoChan(f.key, func() (interface{}, error) {
		ctx, cancel := context.WithTimeout(c.ctx, c.cfg.FetchTimeout)
		defer cancel()

		c.mu.Lock()
		epoch := c.epochs[f.key]
		c.mu.Unlock()

		start := time.Now()
		entries, err := f.req.Backend.List(ctx, f.req.Path)
		metrics.RecordFetch(f.req.Backend.Kind().String(), time.Since(start), err == nil)
		if err != nil {
			return nil, err
		}
		view.Sort(entries)
		return fetched{entries: entries, epoch: epoch}, nil
	})

	var res singleflight.Result
	select {
	case <-f.ctx.Done():
		c.discard(f, "cancelled")
		return
	case res = <-ch:
	}

	if res.Err != nil {
		if c.ctx.Err() != nil {
			return
		}
		debug.Log(debug.CACHE, "fetch %s failed: %v", f.key, res.Err)
		if hasPrev {
			c.publish(ps, f, Result{Location: f.location(), Entries: prev.entries, Err: res.Err, Stale: true})
		} else {
			c.publish(ps, f, Result{Location: f.location(), Err: res.Err})
		}
		return
	}

	out := res.Val.(fetched)
	entries := out.entries

	c.mu.Lock()
	current := ps.current == f && f.ctx.Err() == nil && !c.closed
	if current && out.epoch == c.epochs[f.key] {
		c.entries[f.key] = cached{entries: entries, produced: c.now()}
	} else if current {
		debug.Log(debug.CACHE, "fetch %s predates a refresh, not cached", f.key)
	}
	c.mu.Unlock()
	if !current {
		c.discard(f, "superseded")
		return
	}

	c.publish(ps, f, Result{Location: f.location(), Entries: entries})
}

// publish delivers res if f is still the pane's current request.
func (c *Controller) publish(ps *paneState, f *flight, res Result) bool {
	ps.publishMu.Lock()
	defer ps.publishMu.Unlock()

	c.mu.Lock()
	current := ps.current == f && f.ctx.Err() == nil
	c.mu.Unlock()
	if !current {
		c.discard(f, "superseded")
		return false
	}

	f.landed = true
	if f.timer != nil {
		f.timer.Stop()
	}
	f.req.Publish(res)
	if f.loading {
		f.loading = false
		if f.req.Loading != nil {
			f.req.Loading(false)
		}
	}
	return true
}

func (c *Controller) raiseLoading(ps *paneState, f *flight) {
	ps.publishMu.Lock()
	defer ps.publishMu.Unlock()

	c.mu.Lock()
	current := ps.current == f && f.ctx.Err() == nil
	c.mu.Unlock()
	if !current || f.landed || f.loading {
		return
	}
	f.loading = true
	debug.Log(debug.CACHE, "loading indicator raised for %s", f.key)
	if f.req.Loading != nil {
		f.req.Loading(true)
	}
}

func (c *Controller) discard(f *flight, why string) {
	metrics.RecordStaleDiscard()
	debug.Log(debug.CACHE, "discard %s gen=%d: %s", f.key, f.gen, why)
}

// Cancel abandons the pane's in-flight request. Nothing more is published
// for it and a raised loading indicator is lowered.
func (c *Controller) Cancel(pane string) {
	c.mu.Lock()
	ps := c.panes[pane]
	if ps == nil || ps.current == nil {
		c.mu.Unlock()
		return
	}
	f := ps.current
	ps.current = nil
	f.cancel()
	c.mu.Unlock()

	ps.publishMu.Lock()
	defer ps.publishMu.Unlock()
	if f.timer != nil {
		f.timer.Stop()
	}
	if f.loading && !f.landed {
		f.loading = false
		if f.req.Loading != nil {
			f.req.Loading(false)
		}
	}
}

// Invalidate drops the cached listing for a backend directory.
func (c *Controller) Invalidate(backendID, path string) {
	c.mu.Lock()
	c.dropLocked(Key(backendID, path))
	c.mu.Unlock()
}

// Cached returns the cached listing for a backend directory.
func (c *Controller) Cached(backendID, path string) ([]model.Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[Key(backendID, path)]
	return e.entries, ok
}

// Wait blocks until every background fetch has finished.
func (c *Controller) Wait() {
	c.wg.Wait()
}

// Close cancels all requests and waits for background fetches to exit.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	for _, ps := range c.panes {
		if ps.current != nil {
			ps.current.cancel()
			ps.current = nil
		}
	}
	c.stop()
	c.mu.Unlock()

	c.wg.Wait()
}
