package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/frostdev-ops/ha-trend-monitor/internal/console"
)

func watchCmd() *cobra.Command {
	var (
		domains    []string
		entityArgs []string
		width      int
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Pick entities and print their values and trends on every poll",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := a.connect(ctx); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			interactive := isTerminal(cmd.InOrStdin())

			ids := entityArgs
			if len(ids) == 0 {
				ids = a.cfg.Tracking.Entities
			}
			if len(ids) == 0 {
				choices := a.directory.EntitiesInDomains(domains...)
				if len(choices) == 0 {
					return fmt.Errorf("no entities in domains %v", domains)
				}

				reader := console.NewLineReader(cmd.InOrStdin(), out)
				if interactive {
					reader = console.NewPromptReader(choices)
				}
				picker := console.NewPicker(reader, out)
				picker.List(choices)
				if ids, err = picker.Pick(choices); err != nil {
					return err
				}
			}
			if len(ids) == 0 {
				fmt.Fprintln(out, "Nothing selected.")
				return nil
			}

			opts := []console.RendererOption{console.WithSparklineWidth(width)}
			if isTerminal(out) {
				opts = append(opts, console.WithClearScreen())
			}
			loop := a.newLoop(console.NewRenderer(out, opts...))

			defer loop.Stop()
			if err := a.startTracking(ctx, loop, ids); err != nil {
				return err
			}

			<-ctx.Done()
			return nil
		},
	}

	cmd.Flags().StringSliceVarP(&domains, "domain", "d", []string{"sensor"}, "domains offered by the picker")
	cmd.Flags().StringSliceVarP(&entityArgs, "entity", "e", nil, "entity to track, skipping the picker (repeatable)")
	cmd.Flags().IntVar(&width, "width", 24, "number of readings in the history sparkline")
	return cmd
}

// isTerminal reports whether v is a terminal file.
func isTerminal(v interface{}) bool {
	f, ok := v.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
