package cache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/justyntemme/duopane/internal/backend"
	"github.com/justyntemme/duopane/internal/model"
)

// fakeBackend serves scripted listings. A path with a gate blocks until the
// gate is closed.
type fakeBackend struct {
	mu       sync.Mutex
	calls    map[string]int
	gates    map[string]chan struct{}
	listings map[string][]model.Entry
	errs     map[string]error
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		calls:    make(map[string]int),
		gates:    make(map[string]chan struct{}),
		listings: make(map[string][]model.Entry),
		errs:     make(map[string]error),
	}
}

func (b *fakeBackend) ID() string                       { return "fake" }
func (b *fakeBackend) Kind() backend.Kind               { return backend.KindRemote }
func (b *fakeBackend) Root() string                     { return "" }
func (b *fakeBackend) Join(dir, name string) string     { return dir + "/" + name }
func (b *fakeBackend) Parent(dir string) (string, bool) { return "", false }

func (b *fakeBackend) List(ctx context.Context, path string) ([]model.Entry, error) {
	b.mu.Lock()
	b.calls[path]++
	gate := b.gates[path]
	b.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.errs[path]; err != nil {
		return nil, err
	}
	out := make([]model.Entry, len(b.listings[path]))
	copy(out, b.listings[path])
	return out, nil
}

func (b *fakeBackend) gate(path string) chan struct{} {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan struct{})
	b.gates[path] = ch
	return ch
}

func (b *fakeBackend) set(path string, entries []model.Entry, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listings[path] = entries
	b.errs[path] = err
}

func (b *fakeBackend) ungate(path string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.gates, path)
}

func (b *fakeBackend) callCount(path string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[path]
}

// recorder collects what a pane would receive.
type recorder struct {
	mu      sync.Mutex
	results []Result
	loading []bool
}

func (r *recorder) publish(res Result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, res)
}

func (r *recorder) setLoading(on bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loading = append(r.loading, on)
}

func (r *recorder) snapshot() ([]Result, []bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Result(nil), r.results...), append([]bool(nil), r.loading...)
}

func (r *recorder) request(b backend.Backend, path string) Request {
	return Request{Pane: "left", Backend: b, Path: path, Publish: r.publish, Loading: r.setLoading}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timeout waiting for %s", what)
}

func entry(name string, dir bool) model.Entry {
	return model.Entry{Key: "fake:/" + name, Name: name, IsDir: dir, BackendID: "fake", FullPath: "fake:/" + name}
}

func names(entries []model.Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Name
	}
	return out
}

func TestResolve_PublishesSortedListing(t *testing.T) {
	b := newFakeBackend()
	b.set("docs", []model.Entry{entry("b.txt", false), entry("A", true), entry("a.txt", false), entry("B", true)}, nil)

	c := NewController(Config{})
	defer c.Close()

	rec := &recorder{}
	if _, err := c.Resolve(context.Background(), rec.request(b, "docs")); err != nil {
		t.Fatal(err)
	}
	c.Wait()

	results, _ := rec.snapshot()
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	got := names(results[0].Entries)
	want := []string{"A", "B", "a.txt", "b.txt"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
	if results[0].Provisional || results[0].Err != nil {
		t.Errorf("fresh result should be final and error free: %+v", results[0])
	}
	if results[0].Location != (model.Location{Backend: "fake", Path: "docs"}) {
		t.Errorf("unexpected location %+v", results[0].Location)
	}
	if _, ok := c.Cached("fake", "docs"); !ok {
		t.Error("successful fetch should be cached")
	}
}

func TestResolve_StaleResultsNeverPublished(t *testing.T) {
	testCases := []struct {
		name         string
		releaseFirst string
	}{
		{"older completes first", "a"},
		{"newer completes first", "b"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			b := newFakeBackend()
			b.set("a", []model.Entry{entry("from-a", false)}, nil)
			b.set("b", []model.Entry{entry("from-b", false)}, nil)
			gates := map[string]chan struct{}{"a": b.gate("a"), "b": b.gate("b")}

			c := NewController(Config{})
			defer c.Close()
			rec := &recorder{}

			c.Resolve(context.Background(), rec.request(b, "a"))
			c.Resolve(context.Background(), rec.request(b, "b"))
			waitFor(t, "both fetches dispatched", func() bool {
				return b.callCount("a") == 1 && b.callCount("b") == 1
			})

			other := "b"
			if tc.releaseFirst == "b" {
				other = "a"
			}
			close(gates[tc.releaseFirst])
			time.Sleep(20 * time.Millisecond)
			close(gates[other])
			c.Wait()

			results, _ := rec.snapshot()
			if len(results) != 1 {
				t.Fatalf("expected exactly one publication, got %d", len(results))
			}
			if results[0].Location.Path != "b" || results[0].Entries[0].Name != "from-b" {
				t.Errorf("expected only the newest listing, got %+v", results[0])
			}
			if _, ok := c.Cached("fake", "a"); ok {
				t.Error("a cancelled fetch must not populate the cache")
			}
		})
	}
}

func TestResolve_CacheCoherence(t *testing.T) {
	b := newFakeBackend()
	b.set("docs", []model.Entry{entry("x", false)}, nil)

	c := NewController(Config{})
	defer c.Close()
	rec := &recorder{}

	c.Resolve(context.Background(), rec.request(b, "docs"))
	c.Wait()

	// The second resolve is answered from the cache before Resolve returns.
	// The entry is fresh, so nothing follows and the result is final.
	c.Resolve(context.Background(), rec.request(b, "docs"))
	results, _ := rec.snapshot()
	if len(results) != 2 || results[1].Provisional || len(results[1].Entries) != 1 {
		t.Fatalf("expected a synchronous final result, got %+v", results)
	}
	c.Wait()

	if n := b.callCount("docs"); n != 1 {
		t.Errorf("expected 1 backend call, got %d", n)
	}
}

func TestResolve_RevalidatesOldEntries(t *testing.T) {
	b := newFakeBackend()
	b.set("docs", []model.Entry{entry("x", false)}, nil)

	c := NewController(Config{Revalidate: -1})
	defer c.Close()
	rec := &recorder{}

	c.Resolve(context.Background(), rec.request(b, "docs"))
	c.Wait()
	b.set("docs", []model.Entry{entry("x", false), entry("y", false)}, nil)

	c.Resolve(context.Background(), rec.request(b, "docs"))
	c.Wait()

	results, _ := rec.snapshot()
	if len(results) != 3 {
		t.Fatalf("expected fresh, provisional, fresh; got %d results", len(results))
	}
	if !results[1].Provisional || len(results[1].Entries) != 1 {
		t.Errorf("expected cached provisional listing, got %+v", results[1])
	}
	if results[2].Provisional || len(results[2].Entries) != 2 {
		t.Errorf("expected revalidated listing, got %+v", results[2])
	}
	if n := b.callCount("docs"); n != 2 {
		t.Errorf("expected 2 backend calls, got %d", n)
	}
}

func TestResolve_Force(t *testing.T) {
	b := newFakeBackend()
	b.set("docs", []model.Entry{entry("x", false)}, nil)

	c := NewController(Config{})
	defer c.Close()
	rec := &recorder{}

	c.Resolve(context.Background(), rec.request(b, "docs"))
	c.Wait()

	req := rec.request(b, "docs")
	req.Force = true
	c.Resolve(context.Background(), req)
	c.Wait()

	results, _ := rec.snapshot()
	if len(results) != 2 || results[1].Provisional {
		t.Fatalf("forced resolve should skip the cache, got %+v", results)
	}
	if n := b.callCount("docs"); n != 2 {
		t.Errorf("expected 2 backend calls, got %d", n)
	}
}

func TestResolve_LoadingIndicator(t *testing.T) {
	t.Run("fast fetch never raises", func(t *testing.T) {
		b := newFakeBackend()
		c := NewController(Config{LoadingDelay: 200 * time.Millisecond})
		defer c.Close()
		rec := &recorder{}

		c.Resolve(context.Background(), rec.request(b, "docs"))
		c.Wait()
		time.Sleep(250 * time.Millisecond)

		if _, loading := rec.snapshot(); len(loading) != 0 {
			t.Errorf("expected no loading transitions, got %v", loading)
		}
	})

	t.Run("slow fetch raises then lowers", func(t *testing.T) {
		b := newFakeBackend()
		gate := b.gate("docs")
		c := NewController(Config{LoadingDelay: 20 * time.Millisecond})
		defer c.Close()
		rec := &recorder{}

		c.Resolve(context.Background(), rec.request(b, "docs"))
		waitFor(t, "loading raised", func() bool {
			_, loading := rec.snapshot()
			return len(loading) == 1 && loading[0]
		})
		if results, _ := rec.snapshot(); len(results) != 0 {
			t.Fatal("nothing should be published while loading")
		}

		close(gate)
		c.Wait()
		results, loading := rec.snapshot()
		if len(results) != 1 {
			t.Fatalf("expected 1 result, got %d", len(results))
		}
		if len(loading) != 2 || loading[1] {
			t.Errorf("expected loading to be lowered, got %v", loading)
		}
	})

	t.Run("cache hit never raises", func(t *testing.T) {
		b := newFakeBackend()
		c := NewController(Config{LoadingDelay: 20 * time.Millisecond, Revalidate: -1})
		defer c.Close()
		rec := &recorder{}

		c.Resolve(context.Background(), rec.request(b, "docs"))
		c.Wait()
		gate := b.gate("docs")
		c.Resolve(context.Background(), rec.request(b, "docs"))
		time.Sleep(60 * time.Millisecond)
		close(gate)
		c.Wait()

		if _, loading := rec.snapshot(); len(loading) != 0 {
			t.Errorf("a landed cached result suppresses the indicator, got %v", loading)
		}
	})
}

func TestResolve_FailureWithoutCache(t *testing.T) {
	b := newFakeBackend()
	b.set("docs", nil, backend.NewListError("fake", "docs", backend.ErrNoAccessOrMissing, errors.New("down")))

	c := NewController(Config{})
	defer c.Close()
	rec := &recorder{}

	c.Resolve(context.Background(), rec.request(b, "docs"))
	c.Wait()

	results, _ := rec.snapshot()
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if !errors.Is(results[0].Err, backend.ErrNoAccessOrMissing) || len(results[0].Entries) != 0 || results[0].Stale {
		t.Errorf("expected empty failed result, got %+v", results[0])
	}
	if _, ok := c.Cached("fake", "docs"); ok {
		t.Error("failures are not cached")
	}
}

func TestResolve_SoftFailureKeepsStaleListing(t *testing.T) {
	b := newFakeBackend()
	b.set("docs", []model.Entry{entry("x", false)}, nil)

	c := NewController(Config{Revalidate: -1})
	defer c.Close()
	rec := &recorder{}

	c.Resolve(context.Background(), rec.request(b, "docs"))
	c.Wait()
	b.set("docs", nil, errors.New("transient"))

	c.Resolve(context.Background(), rec.request(b, "docs"))
	c.Wait()

	results, _ := rec.snapshot()
	last := results[len(results)-1]
	if !last.Stale || last.Err == nil || len(last.Entries) != 1 {
		t.Errorf("expected stale listing with error attached, got %+v", last)
	}
	if cached, ok := c.Cached("fake", "docs"); !ok || len(cached) != 1 {
		t.Error("the last good listing stays cached")
	}
}

func TestCancel(t *testing.T) {
	b := newFakeBackend()
	gate := b.gate("docs")
	c := NewController(Config{LoadingDelay: 10 * time.Millisecond})
	defer c.Close()
	rec := &recorder{}

	c.Resolve(context.Background(), rec.request(b, "docs"))
	waitFor(t, "loading raised", func() bool {
		_, loading := rec.snapshot()
		return len(loading) == 1
	})
	c.Cancel("left")
	close(gate)
	c.Wait()

	results, loading := rec.snapshot()
	if len(results) != 0 {
		t.Errorf("cancelled request published %+v", results)
	}
	if len(loading) != 2 || loading[1] {
		t.Errorf("expected loading lowered on cancel, got %v", loading)
	}
}

func TestPanesAreIndependent(t *testing.T) {
	b := newFakeBackend()
	b.set("a", []model.Entry{entry("x", false)}, nil)
	b.set("b", []model.Entry{entry("y", false)}, nil)

	c := NewController(Config{})
	defer c.Close()
	left, right := &recorder{}, &recorder{}

	c.Resolve(context.Background(), left.request(b, "a"))
	rr := right.request(b, "b")
	rr.Pane = "right"
	c.Resolve(context.Background(), rr)
	c.Wait()

	if l, _ := left.snapshot(); len(l) != 1 {
		t.Errorf("left pane lost its result to the right pane: %+v", l)
	}
	if r, _ := right.snapshot(); len(r) != 1 {
		t.Errorf("right pane should have its result: %+v", r)
	}
}

func TestClose(t *testing.T) {
	c := NewController(Config{})
	c.Close()
	c.Close()

	if _, err := c.Resolve(context.Background(), (&recorder{}).request(newFakeBackend(), "")); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}

func TestResolve_OlderFetchDoesNotOverwriteRefresh(t *testing.T) {
	b := newFakeBackend()
	b.set("d", []model.Entry{entry("old", false)}, nil)
	gate := b.gate("d")

	c := NewController(Config{})
	defer c.Close()
	left, right := &recorder{}, &recorder{}

	rightReq := right.request(b, "d")
	rightReq.Pane = "right"
	c.Resolve(context.Background(), rightReq)
	waitFor(t, "right fetch to start", func() bool { return b.callCount("d") == 1 })

	// The left pane refreshes while the right pane's fetch is still running
	b.ungate("d")
	b.set("d", []model.Entry{entry("new", false)}, nil)
	leftReq := left.request(b, "d")
	leftReq.Force = true
	c.Resolve(context.Background(), leftReq)
	waitFor(t, "refresh to land", func() bool {
		results, _ := left.snapshot()
		return len(results) == 1
	})

	b.set("d", []model.Entry{entry("old", false)}, nil)
	close(gate)
	waitFor(t, "older fetch to land", func() bool {
		results, _ := right.snapshot()
		return len(results) == 1
	})
	c.Wait()

	cached, ok := c.Cached("fake", "d")
	if !ok || len(cached) != 1 || cached[0].Name != "new" {
		t.Fatalf("expected the refreshed listing to stay cached, got %v (ok=%v)", names(cached), ok)
	}

	// A later resolve is served the refreshed listing
	rec := &recorder{}
	c.Resolve(context.Background(), rec.request(b, "d"))
	results, _ := rec.snapshot()
	if len(results) == 0 || names(results[0].Entries)[0] != "new" {
		t.Errorf("expected the refreshed listing, got %+v", results)
	}
}

func TestInvalidate_DropsFetchInFlight(t *testing.T) {
	b := newFakeBackend()
	b.set("d", []model.Entry{entry("before", false)}, nil)
	gate := b.gate("d")

	c := NewController(Config{})
	defer c.Close()
	rec := &recorder{}

	c.Resolve(context.Background(), rec.request(b, "d"))
	waitFor(t, "fetch to start", func() bool { return b.callCount("d") == 1 })
	c.Invalidate("fake", "d")
	close(gate)
	c.Wait()

	// The pane still gets its answer, but the cache does not keep it
	results, _ := rec.snapshot()
	if len(results) != 1 || results[0].Err != nil {
		t.Fatalf("expected the listing to be published, got %+v", results)
	}
	if _, ok := c.Cached("fake", "d"); ok {
		t.Error("a fetch started before Invalidate must not be cached")
	}
}
