// Package dnd routes drops to the pane under the pointer. Panes register a
// region and a destination resolver; the registry hit-tests at drop time so
// source and destination panes never reference each other.
package dnd

import (
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/justyntemme/duopane/internal/debug"
	"github.com/justyntemme/duopane/internal/metrics"
	"github.com/justyntemme/duopane/internal/model"
)

// ErrClosed is returned by Register after Close.
var ErrClosed = errors.New("drop registry closed")

// Point is a position in window coordinates.
type Point struct {
	X, Y float64
}

// Rect is an axis-aligned region. Min is inclusive, Max exclusive.
type Rect struct {
	Min, Max Point
}

// Contains reports whether p lies inside r.
func (r Rect) Contains(p Point) bool {
	return p.X >= r.Min.X && p.X < r.Max.X && p.Y >= r.Min.Y && p.Y < r.Max.Y
}

// DropFunc receives the dropped items and the destination resolved at drop time.
type DropFunc func(items []model.SelectItem, destination string)

// Registration is one drop target.
type Registration struct {
	ID          string
	Region      func() Rect
	Destination func() string
	OnDrop      DropFunc

	token string
}

// Registry holds drop targets. It is safe for concurrent use.
type Registry struct {
	mu     sync.Mutex
	order  []*Registration
	closed bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds a drop target, replacing any registration with the same id
// in place. The returned function removes this registration only; it is a
// no-op once the id has been registered again.
func (r *Registry) Register(id string, region func() Rect, destination func() string, onDrop DropFunc) (func(), error) {
	reg := &Registration{
		ID:          id,
		Region:      region,
		Destination: destination,
		OnDrop:      onDrop,
		token:       uuid.NewString(),
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return func() {}, ErrClosed
	}

	replaced := false
	for i, existing := range r.order {
		if existing.ID == id {
			r.order[i] = reg
			replaced = true
			break
		}
	}
	if !replaced {
		r.order = append(r.order, reg)
	}
	debug.Log(debug.DND, "register drop target %s (replaced=%v)", id, replaced)

	return func() { r.unregister(id, reg.token) }, nil
}

func (r *Registry) unregister(id, token string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, existing := range r.order {
		if existing.ID == id && existing.token == token {
			r.order = append(r.order[:i], r.order[i+1:]...)
			debug.Log(debug.DND, "unregister drop target %s", id)
			return
		}
	}
}

// ResolveDropTarget returns the first registration, in registration order,
// whose region contains p, or nil.
func (r *Registry) ResolveDropTarget(p Point) *Registration {
	r.mu.Lock()
	targets := make([]*Registration, len(r.order))
	copy(targets, r.order)
	r.mu.Unlock()

	// Regions are evaluated outside the lock; they may consult pane state.
	for _, reg := range targets {
		if reg.Region != nil && reg.Region().Contains(p) {
			return reg
		}
	}
	return nil
}

// Drop delivers items to the target under p. It reports whether a target
// accepted them.
func (r *Registry) Drop(p Point, items []model.SelectItem) bool {
	if len(items) == 0 {
		return false
	}
	reg := r.ResolveDropTarget(p)
	if reg == nil {
		debug.Log(debug.DND, "drop at (%.0f,%.0f) hit no target", p.X, p.Y)
		metrics.RecordDrop(false)
		return false
	}

	dest := ""
	if reg.Destination != nil {
		dest = reg.Destination()
	}
	debug.Log(debug.DND, "drop %d items on %s -> %s", len(items), reg.ID, dest)
	metrics.RecordDrop(true)
	if reg.OnDrop != nil {
		reg.OnDrop(items, dest)
	}
	return true
}

// Len returns the number of registered targets.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.order)
}

// Close drops every registration. Later Register calls fail.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.order = nil
	r.closed = true
}
