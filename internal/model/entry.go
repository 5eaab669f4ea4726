// Package model holds the entry types shared by every backend and pane.
package model

import (
	"strings"
)

// UnknownSize marks an entry whose backend did not report a size.
const UnknownSize int64 = -1

// Reserved backend ids. Any other id names a remote.
const (
	LocalID     = "local"
	FavoritesID = "favorites"
)

// Entry is one filesystem object as produced by a backend listing.
// Entries are never mutated after a listing returns them.
type Entry struct {
	Key        string // unique within a listing, stable across re-listings
	Name       string
	IsDir      bool
	Size       int64  // UnknownSize when not reported
	ModifiedAt string // opaque, "" when not reported
	MimeType   string
	BackendID  string
	FullPath   string // backend-qualified absolute path

	// Target is set only on favorites entries and points at the real location.
	Target *Location
}

// Kind is the externally exposed type of a selected item.
type Kind string

const (
	KindFile   Kind = "file"
	KindFolder Kind = "folder"
)

// Kind reports the selection kind of the entry.
func (e Entry) Kind() Kind {
	if e.IsDir {
		return KindFolder
	}
	return KindFile
}

// SelectItem is the selection unit handed to drag sources and transfer dialogs.
type SelectItem struct {
	Path string `json:"path"`
	Kind Kind   `json:"kind"`
}

// Location is a (backend, working directory) pair.
type Location struct {
	Backend string `json:"backend"`
	Path    string `json:"path"`
}

// IsLocal reports whether the location is on the local filesystem.
func (l Location) IsLocal() bool {
	return l.Backend == LocalID
}

// String renders local paths verbatim and remote paths as name:/path.
func (l Location) String() string {
	switch l.Backend {
	case LocalID:
		return l.Path
	case "":
		return ""
	default:
		return RemotePath(l.Backend, l.Path)
	}
}

// RemotePath builds the backend-qualified form name:/rel.
func RemotePath(name, rel string) string {
	return name + ":/" + strings.TrimPrefix(rel, "/")
}

// FavoriteRecord is one persisted favorite. AddedAt is unix milliseconds.
type FavoriteRecord struct {
	BackendID    string `json:"backendId"`
	RelativePath string `json:"relativePath"`
	AddedAt      int64  `json:"addedAt"`
}

// Location returns the place the favorite points to.
func (r FavoriteRecord) Location() Location {
	return Location{Backend: r.BackendID, Path: r.RelativePath}
}
