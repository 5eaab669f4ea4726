package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/justyntemme/duopane/internal/app"
	"github.com/justyntemme/duopane/internal/favorites"
	"github.com/justyntemme/duopane/internal/model"
)

var favoritesCmd = &cobra.Command{
	Use:     "favorites",
	Aliases: []string{"fav"},
	Short:   "Manage favorite locations",
}

var favoritesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List favorites",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		a, err := openApp(ctx, app.Options{})
		if err != nil {
			return err
		}
		defer a.Close()

		recs, err := a.Favorites(ctx)
		if err != nil {
			return fmt.Errorf("failed to read favorites: %w", err)
		}
		if len(recs) == 0 {
			fmt.Println("No favorites.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "LABEL\tLOCATION\tADDED")
		for _, rec := range recs {
			added := humanize.Time(time.UnixMilli(rec.AddedAt))
			fmt.Fprintf(w, "%s\t%s\t%s\n", favorites.Label(rec), rec.Location(), added)
		}
		return w.Flush()
	},
}

var favoritesAddCmd = &cobra.Command{
	Use:   "add <location>",
	Short: "Add a location to the favorites",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return changeFavorite(args[0], (*app.App).AddFavorite, "Added")
	},
}

var favoritesRemoveCmd = &cobra.Command{
	Use:     "remove <location>",
	Aliases: []string{"rm"},
	Short:   "Remove a location from the favorites",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return changeFavorite(args[0], (*app.App).RemoveFavorite, "Removed")
	},
}

func changeFavorite(raw string, op func(*app.App, context.Context, string) (model.Location, error), verb string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	a, err := openApp(ctx, app.Options{})
	if err != nil {
		return err
	}
	defer a.Close()

	loc, err := op(a, ctx, raw)
	if err != nil {
		return err
	}
	fmt.Printf("%s %s\n", verb, loc)
	return nil
}

func init() {
	favoritesCmd.AddCommand(favoritesListCmd, favoritesAddCmd, favoritesRemoveCmd)
	rootCmd.AddCommand(favoritesCmd)
}
