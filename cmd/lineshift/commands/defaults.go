package commands

import (
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/lineshift/lineshift/pkg/changeover"
	"github.com/lineshift/lineshift/pkg/importer"
)

func newDefaultsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "defaults",
		Short: "Family-to-family changeover defaults",
		Long: `Manage directed family-to-family changeover rules. A rule for
sedan->suv says nothing about suv->sedan; store both directions when both
are needed.`,
	}

	cmd.AddCommand(newDefaultsSetCommand())
	cmd.AddCommand(newDefaultsListCommand())
	cmd.AddCommand(newDefaultsDeleteCommand())
	cmd.AddCommand(newDefaultsImportCommand())

	return cmd
}

func newDefaultsSetCommand() *cobra.Command {
	var notes string

	cmd := &cobra.Command{
		Use:   "set <from-family> <to-family> <minutes>",
		Short: "Create or update a family default",
		Args:  cobra.ExactArgs(3),
		Example: `  # Changing from a sedan to an SUV takes 25 minutes
  lineshift defaults set sedan suv 25

  # Same-family changeovers can have an explicit rule too
  lineshift defaults set sedan sedan 5 --notes "minor tooling swap"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			minutes, err := parseMinutes(args[2])
			if err != nil {
				return err
			}

			app, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer app.Close(ctx)

			fd, err := app.engine.SetFamilyDefault(ctx, changeover.FamilyDefaultInput{
				FromFamily: args[0],
				ToFamily:   args[1],
				Minutes:    minutes,
				Notes:      notes,
			})
			if err != nil {
				return err
			}

			if jsonOutput {
				return printJSON(fd)
			}
			fmt.Printf("%s -> %s: %d min\n", fd.FromFamily, fd.ToFamily, fd.Minutes)
			return nil
		},
	}

	cmd.Flags().StringVar(&notes, "notes", "", "free-form note stored with the rule")

	return cmd
}

func newDefaultsListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all family defaults",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			app, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer app.Close(ctx)

			defaults, err := app.engine.FamilyDefaults(ctx)
			if err != nil {
				return err
			}

			if jsonOutput {
				return printJSON(defaults)
			}
			if len(defaults) == 0 {
				fmt.Println("no family defaults")
				return nil
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "FROM\tTO\tMINUTES\tNOTES")
			for _, fd := range defaults {
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", fd.FromFamily, fd.ToFamily, fd.Minutes, fd.Notes)
			}
			return w.Flush()
		},
	}
}

func newDefaultsDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <from-family> <to-family>",
		Short: "Delete a family default",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			app, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer app.Close(ctx)

			deleted, err := app.engine.DeleteFamilyDefault(ctx, changeover.FamilyPair{
				FromFamily: args[0],
				ToFamily:   args[1],
			})
			if err != nil {
				return err
			}

			if deleted {
				fmt.Printf("deleted %s -> %s\n", args[0], args[1])
			} else {
				fmt.Printf("no rule for %s -> %s\n", args[0], args[1])
			}
			return nil
		},
	}
}

func newDefaultsImportCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <workbook.xlsx>",
		Short: "Import family defaults from a spreadsheet",
		Long: `Import family defaults from an xlsx workbook. The first sheet must
carry a header row with from_family, to_family, and minutes columns;
notes is optional. The whole workbook lands in one transaction: any
invalid row rejects the entire import.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			file, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("failed to open workbook: %w", err)
			}
			defer file.Close()

			result, err := importer.ReadFamilyDefaults(file)
			if err != nil {
				return err
			}

			app, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer app.Close(ctx)

			for _, dup := range result.Duplicates {
				app.tel.Logger.
					WithField("from_family", dup.FromFamily).
					WithField("to_family", dup.ToFamily).
					Warn("direction appears more than once; the later row wins")
			}

			count, err := app.engine.BulkUpsertFamilyDefaults(ctx, result.Items)
			if err != nil {
				return err
			}

			fmt.Printf("imported %d family defaults from %s\n", count, args[0])
			return nil
		},
	}

	return cmd
}

// parseMinutes parses a positional minutes argument.
func parseMinutes(raw string) (int, error) {
	minutes, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("minutes %q is not a whole number", raw)
	}
	return minutes, nil
}
