package dnd

import (
	"errors"
	"testing"

	"github.com/justyntemme/duopane/internal/model"
)

func rect(x0, y0, x1, y1 float64) func() Rect {
	return func() Rect { return Rect{Min: Point{x0, y0}, Max: Point{x1, y1}} }
}

func dest(s string) func() string {
	return func() string { return s }
}

type drop struct {
	items []model.SelectItem
	dest  string
}

func recordInto(out *[]drop) DropFunc {
	return func(items []model.SelectItem, destination string) {
		*out = append(*out, drop{items, destination})
	}
}

func TestRectContains(t *testing.T) {
	r := Rect{Min: Point{0, 0}, Max: Point{10, 10}}
	testCases := []struct {
		p    Point
		want bool
	}{
		{Point{0, 0}, true},
		{Point{5, 9.9}, true},
		{Point{10, 5}, false},
		{Point{-1, 5}, false},
	}
	for _, tc := range testCases {
		if got := r.Contains(tc.p); got != tc.want {
			t.Errorf("Contains(%v): expected %v, got %v", tc.p, tc.want, got)
		}
	}
}

func TestResolveDropTarget(t *testing.T) {
	r := NewRegistry()
	r.Register("left", rect(0, 0, 100, 100), dest("/home/alice"), nil)
	r.Register("right", rect(100, 0, 200, 100), dest("s3:/bucket"), nil)
	// Overlaps right; registered later so it loses
	r.Register("overlay", rect(150, 0, 250, 100), dest("gdrive:/"), nil)

	testCases := []struct {
		p    Point
		want string
	}{
		{Point{50, 50}, "left"},
		{Point{160, 50}, "right"},
		{Point{220, 50}, "overlay"},
		{Point{500, 500}, ""},
	}
	for _, tc := range testCases {
		got := r.ResolveDropTarget(tc.p)
		id := ""
		if got != nil {
			id = got.ID
		}
		if id != tc.want {
			t.Errorf("ResolveDropTarget(%v): expected %q, got %q", tc.p, tc.want, id)
		}
	}
}

func TestDrop(t *testing.T) {
	r := NewRegistry()
	var drops []drop
	destination := "/home/alice"
	r.Register("left", rect(0, 0, 100, 100), func() string { return destination }, recordInto(&drops))

	items := []model.SelectItem{{Path: "s3:/bucket/a.jpg", Kind: model.KindFile}}

	// Destination is resolved at drop time
	destination = "/home/alice/docs"
	if !r.Drop(Point{10, 10}, items) {
		t.Fatal("drop should be accepted")
	}
	if r.Drop(Point{300, 10}, items) {
		t.Error("drop outside every region should be rejected")
	}
	if r.Drop(Point{10, 10}, nil) {
		t.Error("empty drops are ignored")
	}

	if len(drops) != 1 || drops[0].dest != "/home/alice/docs" || drops[0].items[0] != items[0] {
		t.Errorf("unexpected drops %+v", drops)
	}
}

func TestRegisterReplacesInPlace(t *testing.T) {
	r := NewRegistry()
	var first, second []drop
	unregisterOld, _ := r.Register("left", rect(0, 0, 100, 100), dest("old"), recordInto(&first))
	r.Register("right", rect(0, 0, 100, 100), dest("right"), nil)
	unregisterNew, _ := r.Register("left", rect(0, 0, 100, 100), dest("new"), recordInto(&second))

	if r.Len() != 2 {
		t.Fatalf("expected 2 registrations, got %d", r.Len())
	}
	// Replacement keeps the original position, ahead of right
	if got := r.ResolveDropTarget(Point{1, 1}); got == nil || got.ID != "left" {
		t.Fatalf("expected left to keep precedence, got %+v", got)
	}

	// The stale unregister must not remove the new registration
	unregisterOld()
	if r.Len() != 2 {
		t.Errorf("stale unregister removed a live registration")
	}

	r.Drop(Point{1, 1}, []model.SelectItem{{Path: "/x", Kind: model.KindFile}})
	if len(first) != 0 || len(second) != 1 || second[0].dest != "new" {
		t.Errorf("drop should reach the replacement: first=%v second=%v", first, second)
	}

	unregisterNew()
	unregisterNew()
	if got := r.ResolveDropTarget(Point{1, 1}); got == nil || got.ID != "right" {
		t.Errorf("expected right after unregistering left, got %+v", got)
	}
}

func TestRegistriesAreIsolated(t *testing.T) {
	a, b := NewRegistry(), NewRegistry()
	a.Register("left", rect(0, 0, 100, 100), dest("/"), nil)
	if b.ResolveDropTarget(Point{1, 1}) != nil {
		t.Error("registries must not share state")
	}
}

func TestClose(t *testing.T) {
	r := NewRegistry()
	r.Register("left", rect(0, 0, 100, 100), dest("/"), nil)
	r.Close()
	if r.Len() != 0 || r.ResolveDropTarget(Point{1, 1}) != nil {
		t.Error("close should drop registrations")
	}
	if _, err := r.Register("left", rect(0, 0, 1, 1), dest("/"), nil); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}
