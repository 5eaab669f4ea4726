// Package fs implements the local filesystem backend and directory watching.
package fs

import (
	"context"
	"time"

	"github.com/justyntemme/duopane/internal/backend"
	"github.com/justyntemme/duopane/internal/debug"
	"github.com/justyntemme/duopane/internal/model"
	"github.com/justyntemme/duopane/internal/view"
)

// Local lists directories on the host filesystem.
type Local struct {
	acc Accessor
}

// NewLocal creates a Local backend. A nil accessor uses the OS.
func NewLocal(acc Accessor) *Local {
	if acc == nil {
		acc = OSAccessor{}
	}
	return &Local{acc: acc}
}

func (l *Local) ID() string         { return model.LocalID }
func (l *Local) Kind() backend.Kind { return backend.KindLocal }

// Root is the user's home directory.
func (l *Local) Root() string {
	home, err := l.acc.HomeDirectory()
	if err != nil {
		debug.Warn(debug.FS, "Local.Root: %v", err)
		return ""
	}
	return home
}

func (l *Local) Join(dir, name string) string {
	return l.acc.JoinPath(dir, name)
}

// Parent reports false when dir is already the filesystem root.
func (l *Local) Parent(dir string) (string, bool) {
	parent := l.acc.ResolveParent(dir)
	if parent == dir || parent == "" {
		return dir, false
	}
	return parent, true
}

// List returns the direct children of path, minus symlinks and dotfiles.
func (l *Local) List(ctx context.Context, path string) ([]model.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	children, err := l.acc.ReadDirectory(path)
	if err != nil {
		debug.Log(debug.FS, "Local.List %q: %v", path, err)
		return nil, backend.NewListError(model.LocalID, path, backend.ErrAccess, err)
	}

	// The read may have been slow; a cancelled caller does not want the result.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries := make([]model.Entry, 0, len(children))
	for _, c := range children {
		if c.IsSymlink || view.IsHidden(c.Name) {
			continue
		}
		full := l.acc.JoinPath(path, c.Name)
		e := model.Entry{
			Key:       full,
			Name:      c.Name,
			IsDir:     c.IsDir,
			Size:      c.Size,
			BackendID: model.LocalID,
			FullPath:  full,
		}
		if !c.ModTime.IsZero() {
			e.ModifiedAt = c.ModTime.Format(time.RFC3339)
		}
		entries = append(entries, e)
	}
	return entries, nil
}
