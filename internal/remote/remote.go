// Package remote implements listing backends for named remotes reached
// through a listing service.
package remote

import (
	"context"
	"errors"
	"path"
	"strings"

	"github.com/justyntemme/duopane/internal/backend"
	"github.com/justyntemme/duopane/internal/debug"
	"github.com/justyntemme/duopane/internal/metrics"
	"github.com/justyntemme/duopane/internal/model"
	"github.com/justyntemme/duopane/internal/rpc"
	"golang.org/x/sync/errgroup"
)

// Remote is one named remote. Paths are relative to the remote root,
// without leading or trailing slashes; "" is the root.
type Remote struct {
	name string
	svc  rpc.ListService
	opt  rpc.ListOptions
}

// New creates a remote backend named name, listed through svc.
func New(name string, svc rpc.ListService) *Remote {
	return &Remote{name: name, svc: svc}
}

func (r *Remote) ID() string         { return r.name }
func (r *Remote) Kind() backend.Kind { return backend.KindRemote }
func (r *Remote) Root() string       { return "" }

// Join appends name as a new path segment.
func (r *Remote) Join(dir, name string) string {
	dir = Normalize(dir)
	if dir == "" {
		return Normalize(name)
	}
	return dir + "/" + Normalize(name)
}

// Parent strips the last segment. The root has no parent.
func (r *Remote) Parent(dir string) (string, bool) {
	dir = Normalize(dir)
	if dir == "" {
		return "", false
	}
	i := strings.LastIndex(dir, "/")
	if i < 0 {
		return "", true
	}
	return dir[:i], true
}

// Normalize cleans a remote relative path: no leading or trailing slash,
// no "." or ".." segments, "" for the root.
func Normalize(p string) string {
	p = strings.Trim(p, "/")
	if p == "" {
		return ""
	}
	p = path.Clean("/" + p)
	return strings.TrimPrefix(p, "/")
}

// List lists dir. Below the root two probes are issued in parallel, with
// and without a trailing slash, because some services only answer one form.
// Results are merged in probe order and de-duplicated by path.
func (r *Remote) List(ctx context.Context, dir string) ([]model.Entry, error) {
	rel := Normalize(dir)

	probes := []string{rel}
	if rel != "" {
		probes = append(probes, rel+"/")
	}

	results := make([]*rpc.ListResponse, len(probes))
	errs := make([]error, len(probes))

	var g errgroup.Group
	for i, remotePath := range probes {
		g.Go(func() error {
			resp, err := r.svc.List(ctx, rpc.ListRequest{
				Fs:     rpc.FsName(r.name),
				Remote: remotePath,
				Opt:    r.opt,
			})
			results[i], errs[i] = resp, err
			// Failures are collected per probe; the group must not short-circuit.
			return nil
		})
	}
	g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	failed := 0
	for _, err := range errs {
		if err != nil {
			failed++
		}
	}
	if failed == len(probes) {
		debug.Log(debug.REMOTE, "list %s:%s failed on all %d probes", r.name, rel, failed)
		return nil, backend.NewListError(r.name, rel, backend.ErrNoAccessOrMissing, errors.Join(errs...))
	}
	if failed > 0 {
		debug.Warn(debug.REMOTE, "partial failure listing %s:%s: %v", r.name, rel, errors.Join(errs...))
		metrics.RecordPartialRemoteFailure(r.name)
	}

	return r.merge(rel, results), nil
}

func (r *Remote) merge(rel string, results []*rpc.ListResponse) []model.Entry {
	seen := make(map[string]bool)
	var entries []model.Entry

	for _, resp := range results {
		if resp == nil {
			continue
		}
		for _, item := range resp.List {
			id := item.Path
			if id == "" {
				id = item.Name
			}
			if id == "" || seen[id] {
				continue
			}
			seen[id] = true
			entries = append(entries, r.toEntry(rel, item))
		}
	}
	return entries
}

func (r *Remote) toEntry(rel string, item rpc.ListItem) model.Entry {
	name := item.Name
	if name == "" {
		name = path.Base(item.Path)
	}
	itemPath := Normalize(item.Path)
	if itemPath == "" {
		itemPath = r.Join(rel, name)
	}

	size := item.Size
	if item.IsDir || item.IsBucket {
		size = model.UnknownSize
	}

	full := model.RemotePath(r.name, itemPath)
	return model.Entry{
		Key:        full,
		Name:       name,
		IsDir:      item.IsDir || item.IsBucket,
		Size:       size,
		ModifiedAt: item.ModTime,
		MimeType:   item.MimeType,
		BackendID:  r.name,
		FullPath:   full,
	}
}
