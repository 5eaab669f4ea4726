package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/justyntemme/duopane/internal/app"
)

var remotesCmd = &cobra.Command{
	Use:   "remotes",
	Short: "List the remotes available for browsing",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		a, err := openApp(ctx, app.Options{})
		if err != nil {
			return err
		}
		defer a.Close()

		remotes := a.Remotes()
		if len(remotes) == 0 {
			fmt.Println("No remotes found.")
			return nil
		}
		for _, name := range remotes {
			fmt.Printf("%s:\n", name)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(remotesCmd)
}
