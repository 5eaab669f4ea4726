package app

import (
	"context"
	"fmt"

	"github.com/justyntemme/duopane/internal/debug"
	"github.com/justyntemme/duopane/internal/model"
	"github.com/justyntemme/duopane/internal/nav"
)

// seedFavorites adds the configured seed locations once per database.
func (a *App) seedFavorites(ctx context.Context) error {
	seeded, err := a.store.Setting(ctx, settingSeeded)
	if err != nil {
		return err
	}
	if seeded != "" {
		return nil
	}

	home := model.Location{Backend: model.LocalID, Path: a.home}
	for _, raw := range a.cfg.Favorites.Seed {
		loc := nav.ParseLocation(raw, home, a.home)
		if err := a.store.Add(ctx, loc); err != nil {
			debug.Warn(debug.STORE, "seed favorite %q: %v", raw, err)
		}
	}
	return a.store.SaveSetting(ctx, settingSeeded, "true")
}

// Favorites returns the stored favorites.
func (a *App) Favorites(ctx context.Context) ([]model.FavoriteRecord, error) {
	return a.store.Favorites(ctx)
}

// AddFavorite stores raw, parsed like the path bar does.
func (a *App) AddFavorite(ctx context.Context, raw string) (model.Location, error) {
	loc := a.parse(raw)
	if err := a.store.Add(ctx, loc); err != nil {
		return loc, fmt.Errorf("add favorite %s: %w", loc, err)
	}
	a.favoritesChanged()
	return loc, nil
}

// RemoveFavorite deletes raw from the favorites.
func (a *App) RemoveFavorite(ctx context.Context, raw string) (model.Location, error) {
	loc := a.parse(raw)
	if err := a.store.Remove(ctx, loc); err != nil {
		return loc, fmt.Errorf("remove favorite %s: %w", loc, err)
	}
	a.favoritesChanged()
	return loc, nil
}

func (a *App) parse(raw string) model.Location {
	return nav.ParseLocation(raw, model.Location{Backend: model.LocalID, Path: a.home}, a.home)
}

// favoritesChanged drops the cached favorites listing and refreshes panes
// showing it.
func (a *App) favoritesChanged() {
	a.ctl.Invalidate(model.FavoritesID, "")
	for id, p := range a.panes {
		if p.CurrentLocation().Backend != model.FavoritesID {
			continue
		}
		if err := p.Refresh(); err != nil {
			debug.Warn(debug.NAV, "refresh favorites in %s: %v", id, err)
		}
	}
}
