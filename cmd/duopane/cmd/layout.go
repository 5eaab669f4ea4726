package cmd

import (
	"github.com/justyntemme/duopane/internal/app"
	"github.com/justyntemme/duopane/internal/dnd"
)

// Nominal pane geometry for the headless session.
const (
	paneWidth  = 100
	paneHeight = 100
)

func paneRect(id string) dnd.Rect {
	x := 0.0
	if id == app.RightPane {
		x = paneWidth
	}
	return dnd.Rect{
		Min: dnd.Point{X: x},
		Max: dnd.Point{X: x + paneWidth, Y: paneHeight},
	}
}

func paneCenter(id string) dnd.Point {
	r := paneRect(id)
	return dnd.Point{X: (r.Min.X + r.Max.X) / 2, Y: (r.Min.Y + r.Max.Y) / 2}
}

func layoutPanes(a *app.App) error {
	for _, id := range []string{app.LeftPane, app.RightPane} {
		if err := a.SetRegion(id, paneRect(id)); err != nil {
			return err
		}
	}
	return nil
}
