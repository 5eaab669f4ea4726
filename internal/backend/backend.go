// Package backend defines the listing contract shared by the local, remote and
// favorites data sources, and the registry panes resolve backend ids against.
package backend

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/justyntemme/duopane/internal/model"
)

// Kind tags the three backend variants.
type Kind int

const (
	KindLocal Kind = iota
	KindRemote
	KindFavorites
)

func (k Kind) String() string {
	switch k {
	case KindLocal:
		return "local"
	case KindRemote:
		return "remote"
	case KindFavorites:
		return "favorites"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Backend is one source of directory listings.
type Backend interface {
	ID() string
	Kind() Kind
	// Root is the directory a pane lands on when the backend is selected.
	Root() string
	Join(dir, name string) string
	// Parent returns the parent of dir, or false at the backend root.
	Parent(dir string) (string, bool)
	List(ctx context.Context, path string) ([]model.Entry, error)
}

var (
	// ErrAccess covers permission and non-existence problems on a backend.
	ErrAccess = errors.New("no access or folder does not exist")
	// ErrNoAccessOrMissing is returned when every remote probe failed.
	ErrNoAccessOrMissing = errors.New("no access or missing")
	// ErrNotFound is returned for paths a backend does not have.
	ErrNotFound = errors.New("not found")
	// ErrUnknownBackend is returned by the registry for unregistered ids.
	ErrUnknownBackend = errors.New("unknown backend")
)

// ListError reports a failed listing.
type ListError struct {
	Backend string
	Path    string
	Err     error
}

func (e *ListError) Error() string {
	return fmt.Sprintf("list %s %q: %v", e.Backend, e.Path, e.Err)
}

func (e *ListError) Unwrap() error {
	return e.Err
}

// NewListError wraps err, keeping the sentinel reachable through errors.Is.
func NewListError(backendID, path string, sentinel, cause error) *ListError {
	if cause == nil || errors.Is(cause, sentinel) {
		return &ListError{Backend: backendID, Path: path, Err: sentinel}
	}
	return &ListError{Backend: backendID, Path: path, Err: fmt.Errorf("%w: %w", sentinel, cause)}
}

// UserMessage converts a listing error into the text a pane shows.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var le *ListError
	if errors.As(err, &le) {
		return "No access or folder does not exist"
	}
	return err.Error()
}

// Registry resolves backend ids. It is safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	local     Backend
	favorites Backend
	remotes   map[string]Backend
}

// NewRegistry creates a registry. local and favorites may be nil.
func NewRegistry(local, favorites Backend) *Registry {
	return &Registry{
		local:     local,
		favorites: favorites,
		remotes:   make(map[string]Backend),
	}
}

// AddRemote registers a remote backend under its id.
func (r *Registry) AddRemote(b Backend) error {
	id := b.ID()
	if id == model.LocalID || id == model.FavoritesID || id == "" {
		return fmt.Errorf("remote name %q is reserved", id)
	}
	r.mu.Lock()
	r.remotes[id] = b
	r.mu.Unlock()
	return nil
}

// Get returns the backend for id.
func (r *Registry) Get(id string) (Backend, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var b Backend
	switch id {
	case model.LocalID:
		b = r.local
	case model.FavoritesID:
		b = r.favorites
	default:
		b = r.remotes[id]
	}
	if b == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, id)
	}
	return b, nil
}

// Remotes returns the registered remote names in sorted order.
func (r *Registry) Remotes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.remotes))
	for name := range r.remotes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
