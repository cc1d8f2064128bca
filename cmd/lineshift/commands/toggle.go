package commands

import (
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newToggleCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "toggle",
		Short: "Per-line changeover toggles",
		Long: `Manage per-line changeover enablement. Toggling one line directly
marks it sticky: later set-all sweeps skip it until reset-all clears the
mark. reset-all is the deliberate start-over that reaches every line.`,
	}

	cmd.AddCommand(newToggleListCommand())
	cmd.AddCommand(newToggleSetCommand())
	cmd.AddCommand(newToggleSetAllCommand())
	cmd.AddCommand(newToggleResetAllCommand())

	return cmd
}

func newToggleListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Show every line's toggle state",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			app, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer app.Close(ctx)

			toggles, err := app.store.LineToggles(ctx)
			if err != nil {
				return err
			}

			if jsonOutput {
				return printJSON(toggles)
			}
			if len(toggles) == 0 {
				fmt.Println("no production lines")
				return nil
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "LINE\tSTATE")
			for _, toggle := range toggles {
				fmt.Fprintf(w, "%s\t%s\n", toggle.LineID, toggle.State())
			}
			return w.Flush()
		},
	}
}

func newToggleSetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "set <line> <on|off>",
		Short: "Set one line's toggle (marks it sticky)",
		Args:  cobra.ExactArgs(2),
		Example: `  # Disable changeover on line-3; set-all sweeps will now skip it
  lineshift toggle set line-3 off`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			enabled, err := parseOnOff(args[1])
			if err != nil {
				return err
			}

			app, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer app.Close(ctx)

			if err := app.engine.SetLineToggle(ctx, args[0], enabled); err != nil {
				return err
			}

			toggle, err := app.engine.LineToggle(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Printf("%s: %s\n", toggle.LineID, toggle.State())
			return nil
		},
	}
}

func newToggleSetAllCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "set-all <on|off>",
		Short: "Set every non-sticky line's toggle",
		Long: `Set the toggle on every line that has never been toggled directly.
Sticky lines keep their state and their stickiness.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			enabled, err := parseOnOff(args[0])
			if err != nil {
				return err
			}

			app, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer app.Close(ctx)

			count, err := app.engine.SetAllNonSticky(ctx, enabled)
			if err != nil {
				return err
			}

			fmt.Printf("updated %d non-sticky lines\n", count)
			return nil
		},
	}
}

func newToggleResetAllCommand() *cobra.Command {
	var enabled bool

	cmd := &cobra.Command{
		Use:   "reset-all",
		Short: "Reset every line's toggle and clear stickiness",
		Long: `Set every line's toggle regardless of stickiness and clear all
sticky marks, so the next set-all sweep reaches every line again.`,
		Example: `  # Back to a clean slate with changeover enabled everywhere
  lineshift toggle reset-all

  # Reset with changeover disabled everywhere
  lineshift toggle reset-all --enabled=false`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			app, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer app.Close(ctx)

			count, err := app.engine.ResetAllToggles(ctx, enabled)
			if err != nil {
				return err
			}

			fmt.Printf("reset %d lines\n", count)
			return nil
		},
	}

	cmd.Flags().BoolVar(&enabled, "enabled", true, "toggle value applied to every line")

	return cmd
}

// parseOnOff accepts on/off plus the usual boolean spellings.
func parseOnOff(raw string) (bool, error) {
	switch raw {
	case "on":
		return true, nil
	case "off":
		return false, nil
	}
	enabled, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("expected on or off, got %q", raw)
	}
	return enabled, nil
}
