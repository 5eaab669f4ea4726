// Package favorites projects favorite records into a virtual, one-level
// backend whose entries point into the local and remote backends.
package favorites

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/justyntemme/duopane/internal/backend"
	"github.com/justyntemme/duopane/internal/debug"
	"github.com/justyntemme/duopane/internal/model"
	"github.com/justyntemme/duopane/internal/remote"
)

// KeyPrefix is prepended to the target path to form favorite entry keys.
const KeyPrefix = "favorites::"

// Store supplies favorite records. Implementations are read by the backend
// and mutated elsewhere.
type Store interface {
	Favorites(ctx context.Context) ([]model.FavoriteRecord, error)
}

// Backend is the favorites view. It only has a root.
type Backend struct {
	store Store
}

// NewBackend creates the favorites backend over store.
func NewBackend(store Store) *Backend {
	return &Backend{store: store}
}

func (b *Backend) ID() string                       { return model.FavoritesID }
func (b *Backend) Kind() backend.Kind               { return backend.KindFavorites }
func (b *Backend) Root() string                     { return "" }
func (b *Backend) Join(dir, name string) string     { return name }
func (b *Backend) Parent(dir string) (string, bool) { return "", false }

// List returns one directory entry per favorite, sorted by label.
func (b *Backend) List(ctx context.Context, path string) ([]model.Entry, error) {
	if strings.Trim(path, "/") != "" {
		return nil, backend.NewListError(model.FavoritesID, path, backend.ErrNotFound, nil)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	records, err := b.store.Favorites(ctx)
	if err != nil {
		return nil, backend.NewListError(model.FavoritesID, path, backend.ErrAccess, err)
	}

	entries := make([]model.Entry, 0, len(records))
	for _, rec := range records {
		entries = append(entries, Project(rec))
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Name < entries[j].Name
	})

	debug.Log(debug.STORE, "favorites: %d records", len(entries))
	return entries, nil
}

// Project converts one record into its directory entry.
func Project(rec model.FavoriteRecord) model.Entry {
	target := targetOf(rec)
	full := target.String()
	return model.Entry{
		Key:        KeyPrefix + full,
		Name:       Label(rec),
		IsDir:      true,
		Size:       model.UnknownSize,
		ModifiedAt: "added on " + time.UnixMilli(rec.AddedAt).UTC().Format(time.DateTime),
		BackendID:  model.FavoritesID,
		FullPath:   full,
		Target:     &target,
	}
}

// Label is the display name of a favorite, tagged with its origin.
func Label(rec model.FavoriteRecord) string {
	target := targetOf(rec)
	if target.IsLocal() {
		return "(LOCAL) " + target.Path
	}
	return fmt.Sprintf("(%s) %s", target.Backend, target.Path)
}

// targetOf normalizes the stored path the way its backend addresses it.
func targetOf(rec model.FavoriteRecord) model.Location {
	target := rec.Location()
	switch {
	case target.IsLocal():
		if target.Path != "" {
			target.Path = filepath.Clean(target.Path)
		}
	case target.Backend != model.FavoritesID:
		target.Path = remote.Normalize(target.Path)
	}
	return target
}

// StaticStore is a fixed, in-memory list of records.
type StaticStore []model.FavoriteRecord

// Favorites implements Store.
func (s StaticStore) Favorites(ctx context.Context) ([]model.FavoriteRecord, error) {
	out := make([]model.FavoriteRecord, len(s))
	copy(out, s)
	return out, nil
}
