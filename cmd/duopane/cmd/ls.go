package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/justyntemme/duopane/internal/app"
	"github.com/justyntemme/duopane/internal/backend"
	"github.com/justyntemme/duopane/internal/view"
)

var (
	lsAll    bool
	lsSearch string
)

var lsCmd = &cobra.Command{
	Use:   "ls [location]",
	Short: "List a directory",
	Long: `List a local directory, a remote ("name:/path") or the favorites view
("favorites:"). Without an argument the working directory is listed.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw := ""
		if len(args) == 1 {
			raw = args[0]
		}

		ctx, cancel := context.WithTimeout(context.Background(), cfgManager.Get().Navigation.FetchTimeout())
		defer cancel()

		a, err := openApp(ctx, app.Options{})
		if err != nil {
			return err
		}
		defer a.Close()

		rows, err := a.List(ctx, raw, view.Options{SearchTerm: lsSearch, ShowHidden: lsAll, Padding: -1})
		if err != nil {
			return fmt.Errorf("%s", backend.UserMessage(err))
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		for _, row := range rows {
			typ := "FILE"
			if row.Entry.IsDir {
				typ = "DIR"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", typ, row.Size, row.Entry.ModifiedAt, row.Entry.Name)
		}
		return w.Flush()
	},
}

func init() {
	lsCmd.Flags().BoolVarP(&lsAll, "all", "a", false, "show hidden entries")
	lsCmd.Flags().StringVarP(&lsSearch, "search", "s", "", "only show names containing this text")
	rootCmd.AddCommand(lsCmd)
}
