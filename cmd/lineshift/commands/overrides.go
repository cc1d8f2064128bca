package commands

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/lineshift/lineshift/pkg/changeover"
)

func newOverridesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "overrides",
		Short: "Line-scoped model-to-model overrides",
		Long: `Manage per-line changeover overrides. An override binds a directed
model pair on one line and beats family defaults and the global default
during resolution.`,
	}

	cmd.AddCommand(newOverridesSetCommand())
	cmd.AddCommand(newOverridesListCommand())
	cmd.AddCommand(newOverridesDeleteCommand())
	cmd.AddCommand(newOverridesCopyCommand())

	return cmd
}

func newOverridesSetCommand() *cobra.Command {
	var notes string

	cmd := &cobra.Command{
		Use:   "set <line> <from-model> <to-model> <minutes>",
		Short: "Create or update a line override",
		Args:  cobra.ExactArgs(4),
		Example: `  # Model A to model B on line-1 takes 5 minutes
  lineshift overrides set line-1 model-a model-b 5`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			minutes, err := parseMinutes(args[3])
			if err != nil {
				return err
			}

			app, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer app.Close(ctx)

			ov, err := app.engine.SetLineOverride(ctx, changeover.LineOverrideInput{
				LineID:      args[0],
				FromModelID: args[1],
				ToModelID:   args[2],
				Minutes:     minutes,
				Notes:       notes,
			})
			if err != nil {
				return err
			}

			if jsonOutput {
				return printJSON(ov)
			}
			fmt.Printf("%s: %s -> %s: %d min\n", ov.LineID, ov.FromModelID, ov.ToModelID, ov.Minutes)
			return nil
		},
	}

	cmd.Flags().StringVar(&notes, "notes", "", "free-form note stored with the rule")

	return cmd
}

func newOverridesListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list <line>",
		Short: "List a line's overrides",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			app, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer app.Close(ctx)

			overrides, err := app.engine.LineOverrides(ctx, args[0])
			if err != nil {
				return err
			}

			if jsonOutput {
				return printJSON(overrides)
			}
			if len(overrides) == 0 {
				fmt.Printf("no overrides on line %s\n", args[0])
				return nil
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "FROM\tTO\tMINUTES\tNOTES")
			for _, ov := range overrides {
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", ov.FromModelID, ov.ToModelID, ov.Minutes, ov.Notes)
			}
			return w.Flush()
		},
	}
}

func newOverridesDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <line> <from-model> <to-model>",
		Short: "Delete a line override",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			app, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer app.Close(ctx)

			deleted, err := app.engine.DeleteLineOverride(ctx, changeover.OverrideKey{
				LineID:      args[0],
				FromModelID: args[1],
				ToModelID:   args[2],
			})
			if err != nil {
				return err
			}

			if deleted {
				fmt.Printf("deleted %s: %s -> %s\n", args[0], args[1], args[2])
			} else {
				fmt.Printf("no override for %s: %s -> %s\n", args[0], args[1], args[2])
			}
			return nil
		},
	}
}

func newOverridesCopyCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "copy <source-line> <target-line>",
		Short: "Copy one line's overrides onto another",
		Long: `Replace every override on the target line with a copy of the source
line's overrides. The replacement is atomic. A source with no overrides
leaves the target untouched; copying a line onto itself is rejected.`,
		Args: cobra.ExactArgs(2),
		Example: `  # line-2 starts changeover tuning from line-1's matrix
  lineshift overrides copy line-1 line-2`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			app, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer app.Close(ctx)

			count, err := app.engine.CopyMatrix(ctx, args[0], args[1])
			if err != nil {
				return err
			}

			if count == 0 {
				fmt.Printf("line %s has no overrides; %s left unchanged\n", args[0], args[1])
				return nil
			}
			fmt.Printf("copied %d overrides from %s to %s\n", count, args[0], args[1])
			return nil
		},
	}
}
