package app

import (
	"context"
	"sort"
	"strings"

	"github.com/justyntemme/duopane/internal/config"
	"github.com/justyntemme/duopane/internal/debug"
	"github.com/justyntemme/duopane/internal/remote"
	"github.com/justyntemme/duopane/internal/rpc"
)

// registerRemotes collects remote names from the rclone config file, the rc
// endpoint and Options.Remotes. Direct s3 remotes get their own listing
// service; the rest go through the rc client. Discovery failures only
// shrink the set of remotes.
func (a *App) registerRemotes(ctx context.Context) {
	router := &rpc.Router{
		Default:  a.opts.ListService,
		Services: make(map[string]rpc.ListService),
	}
	if router.Default == nil && a.cfg.Remote.RCURL != "" {
		a.rc = rpc.NewRCClient(rpc.RCConfig{
			BaseURL: a.cfg.Remote.RCURL,
			User:    a.cfg.Remote.User,
			Pass:    a.cfg.Remote.Pass,
			Timeout: a.cfg.Remote.Timeout(),
		})
		router.Default = a.rc
	}

	names := make(map[string]bool)

	defs, err := config.LoadRemotes(expandHome(a.cfg.Remote.RcloneConfig, a.home))
	if err != nil {
		debug.Warn(debug.REMOTE, "read remotes: %v", err)
	}
	for _, def := range defs {
		if def.Direct && def.Type == "s3" {
			svc, err := rpc.NewS3Service(ctx, rpc.S3Config{
				Endpoint:  def.Endpoint,
				Region:    def.Region,
				AccessKey: def.AccessKey,
				SecretKey: def.SecretKey,
				PathStyle: def.PathStyle,
			})
			if err != nil {
				debug.Warn(debug.REMOTE, "remote %s: direct s3 unavailable: %v", def.Name, err)
				continue
			}
			router.Services[def.Name] = svc
			names[def.Name] = true
			continue
		}
		if router.Default != nil {
			names[def.Name] = true
		}
	}

	if a.rc != nil && a.cfg.Remote.DiscoverFromRC {
		found, err := a.rc.ListRemotes(ctx)
		if err != nil {
			debug.Warn(debug.REMOTE, "rc remote discovery at %s: %v", a.cfg.Remote.RCURL, err)
		}
		for _, name := range found {
			names[strings.TrimSuffix(name, ":")] = true
		}
	}

	for _, name := range a.opts.Remotes {
		names[name] = true
	}

	sorted := make([]string, 0, len(names))
	for name := range names {
		sorted = append(sorted, name)
	}
	sort.Strings(sorted)
	for _, name := range sorted {
		if err := a.reg.AddRemote(remote.New(name, router)); err != nil {
			debug.Warn(debug.REMOTE, "skip remote: %v", err)
		}
	}
}
