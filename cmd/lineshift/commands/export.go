package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newExportCommand() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the raw-rule snapshot for the optimizer",
		Long: `Export every stored changeover rule as JSON: global settings, the
calculation method, per-line toggles, family defaults, and line
overrides. The snapshot carries raw rules rather than rendered matrices
so the consumer can re-resolve pairs for model sets of any size.`,
		Example: `  # Print the snapshot to stdout
  lineshift export

  # Write it to a file
  lineshift export --output snapshot.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			app, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer app.Close(ctx)

			snap, err := app.engine.ExportSnapshot(ctx)
			if err != nil {
				return err
			}

			if output == "" {
				return printJSON(snap)
			}

			data, err := json.MarshalIndent(snap, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to encode snapshot: %w", err)
			}
			if err := os.WriteFile(output, append(data, '\n'), 0o644); err != nil {
				return fmt.Errorf("failed to write snapshot: %w", err)
			}
			fmt.Printf("wrote %s\n", output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "write the snapshot to a file instead of stdout")

	return cmd
}
