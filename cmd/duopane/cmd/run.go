package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/justyntemme/duopane/internal/app"
	"github.com/justyntemme/duopane/internal/model"
	"github.com/justyntemme/duopane/internal/nav"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start both panes and drive them from stdin",
	Long: `Start the left and right panes at their configured locations and read
commands from stdin, one per line:

  <left|right> cd <location>     go to a location ("~/src", "s3:/bucket", "favorites:")
  <left|right> open <name>       enter a directory or favorite of the listing
  <left|right> up|back|forward|refresh
  <left|right> select <name>     toggle selection of an entry
  <left|right> all [file|folder] select every visible entry
  <left|right> clear             clear the selection
  <left|right> search <text>     filter by name
  <left|right> hidden on|off     show or hide dotfiles
  <left|right> ls                print the listing
  <left|right> drag <name>       drop the entry (or selection) on the other pane
  <left|right> import <path...>  drop local paths on the pane as if from outside

Each settled listing is printed as it lands. Drops print the transfer request.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := openApp(ctx, app.Options{
			OnChange: printSnapshot,
			OnTransfer: func(req app.TransferRequest) {
				fmt.Printf("transfer %s -> %s (%s): %d items\n", req.From, req.To, req.Destination, len(req.Items))
				for _, item := range req.Items {
					fmt.Printf("  %s %s\n", item.Kind, item.Path)
				}
			},
		})
		if err != nil {
			return err
		}
		defer a.Close()

		// Side-by-side layout so drag can hit-test the other pane.
		if err := layoutPanes(a); err != nil {
			return err
		}
		if err := a.Start(ctx); err != nil {
			return err
		}

		lines := make(chan string)
		go func() {
			defer close(lines)
			scanner := bufio.NewScanner(os.Stdin)
			for scanner.Scan() {
				lines <- scanner.Text()
			}
		}()

		for {
			select {
			case <-ctx.Done():
				return nil
			case line, ok := <-lines:
				if !ok {
					return nil
				}
				if err := runLine(a, line, os.Stdout); err != nil {
					fmt.Fprintf(os.Stderr, "error: %v\n", err)
				}
			}
		}
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func printSnapshot(s nav.Snapshot) {
	switch {
	case s.Pending && s.Loading:
		fmt.Printf("[%s] %s loading...\n", s.ID, s.Location)
	case s.Pending:
	case s.Error != "":
		fmt.Printf("[%s] %s: %s\n", s.ID, s.Location, s.Error)
	default:
		stale := ""
		if s.Stale {
			stale = " (stale)"
		}
		fmt.Printf("[%s] %s: %d entries, %d selected%s\n", s.ID, s.Location, len(s.Entries), len(s.Selection), stale)
	}
}

func runLine(a *app.App, line string, out io.Writer) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	if len(fields) < 2 {
		return errors.New("usage: <left|right> <command> [argument]")
	}
	p := a.Pane(fields[0])
	if p == nil {
		return fmt.Errorf("%w: %s", app.ErrUnknownPane, fields[0])
	}
	arg := ""
	if len(fields) > 2 {
		arg = strings.Join(fields[2:], " ")
	}

	switch fields[1] {
	case "cd":
		return p.NavigateTo(arg)
	case "open":
		e, err := findEntry(p, arg)
		if err != nil {
			return err
		}
		return p.NavigateInto(e)
	case "up":
		return p.NavigateUp()
	case "back":
		return p.Back()
	case "forward":
		return p.Forward()
	case "refresh":
		return p.Refresh()
	case "select":
		e, err := findEntry(p, arg)
		if err != nil {
			return err
		}
		return p.ToggleSelect(e)
	case "all":
		return p.SelectAll(model.Kind(arg))
	case "clear":
		p.ClearSelection()
		return nil
	case "search":
		p.SetSearchTerm(arg)
		return nil
	case "hidden":
		p.SetShowHidden(arg == "on")
		return nil
	case "ls":
		for _, row := range p.View() {
			if !row.Selectable() {
				continue
			}
			mark := " "
			if p.IsSelected(row.Entry.Key) {
				mark = "*"
			}
			fmt.Fprintf(out, "%s %-40s %10s  %s\n", mark, row.Entry.Name, row.Size, row.Entry.ModifiedAt)
		}
		return nil
	case "drag":
		e, err := findEntry(p, arg)
		if err != nil {
			return err
		}
		target := app.RightPane
		if p.ID() == app.RightPane {
			target = app.LeftPane
		}
		if !a.Drag(p.ID(), e, paneCenter(target)) {
			return errors.New("drop was not accepted")
		}
		return nil
	case "import":
		if !a.DropExternal(paneCenter(p.ID()), fields[2:]) {
			return errors.New("drop was not accepted")
		}
		return nil
	}
	return fmt.Errorf("unknown command %q", fields[1])
}

func findEntry(p *nav.Pane, name string) (model.Entry, error) {
	for _, row := range p.View() {
		if row.Selectable() && row.Entry.Name == name {
			return row.Entry, nil
		}
	}
	return model.Entry{}, fmt.Errorf("%w: %s", nav.ErrNotInListing, name)
}
