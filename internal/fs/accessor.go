package fs

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/charlievieth/fastwalk"
	"github.com/justyntemme/duopane/internal/debug"
)

// DirEntry is one direct child as reported by an Accessor.
type DirEntry struct {
	Name      string
	IsDir     bool
	IsSymlink bool
	Size      int64
	ModTime   time.Time
}

// Accessor is the host filesystem as seen by the Local backend.
type Accessor interface {
	ReadDirectory(path string) ([]DirEntry, error)
	Stat(path string) (DirEntry, error)
	ResolveParent(path string) string
	JoinPath(base, name string) string
	HomeDirectory() (string, error)
}

// OSAccessor reads the real filesystem.
type OSAccessor struct {
	// NumWorkers is passed to fastwalk; zero uses its default.
	NumWorkers int
}

func (OSAccessor) readDirectoryConfig(n int) *fastwalk.Config {
	return &fastwalk.Config{
		Follow:     false,
		MaxDepth:   1,
		NumWorkers: n,
	}
}

// ReadDirectory returns the direct children of path without following links.
func (a OSAccessor) ReadDirectory(path string) ([]DirEntry, error) {
	path = filepath.Clean(path)
	debug.Log(debug.FS, "ReadDirectory: reading %q", path)

	var result []DirEntry
	var mu sync.Mutex

	err := fastwalk.Walk(a.readDirectoryConfig(a.NumWorkers), path, func(fullPath string, d fs.DirEntry, err error) error {
		if err != nil {
			// The root being unreadable is the caller's problem; children are skipped.
			if fullPath == path {
				return err
			}
			debug.Log(debug.FS_ENTRY, "ReadDirectory: walk error at %q: %v", fullPath, err)
			return nil
		}

		// Skip the root directory itself
		if fullPath == path {
			return nil
		}

		entry := DirEntry{
			Name:      d.Name(),
			IsDir:     d.IsDir(),
			IsSymlink: d.Type()&fs.ModeSymlink != 0,
		}

		info, err := d.Info()
		if err != nil {
			debug.Log(debug.FS_ENTRY, "ReadDirectory: %q: lstat error: %v", d.Name(), err)
		} else {
			entry.Size = info.Size()
			entry.ModTime = info.ModTime()
		}

		debug.Log(debug.FS_ENTRY, "ReadDirectory: %q isDir=%v symlink=%v size=%d",
			entry.Name, entry.IsDir, entry.IsSymlink, entry.Size)

		mu.Lock()
		result = append(result, entry)
		mu.Unlock()

		if d.IsDir() {
			return fastwalk.SkipDir
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	debug.Log(debug.FS, "ReadDirectory: returning %d entries", len(result))
	return result, nil
}

// Stat describes path itself without following a final link.
func (OSAccessor) Stat(path string) (DirEntry, error) {
	path = filepath.Clean(path)
	info, err := os.Lstat(path)
	if err != nil {
		return DirEntry{}, err
	}
	return DirEntry{
		Name:      info.Name(),
		IsDir:     info.IsDir(),
		IsSymlink: info.Mode()&fs.ModeSymlink != 0,
		Size:      info.Size(),
		ModTime:   info.ModTime(),
	}, nil
}

// ResolveParent returns the parent directory; the root is its own parent.
func (OSAccessor) ResolveParent(path string) string {
	return filepath.Dir(path)
}

// JoinPath joins with host path semantics.
func (OSAccessor) JoinPath(base, name string) string {
	return filepath.Join(base, name)
}

// HomeDirectory returns the user's home, falling back to the working directory.
func (OSAccessor) HomeDirectory() (string, error) {
	if home, err := os.UserHomeDir(); err == nil {
		return home, nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return wd, nil
}
