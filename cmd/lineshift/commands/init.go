package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newInitCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the database and run migrations",
		Long: `Create the lineshift database file, apply schema migrations, and
verify the connection. Running init on an existing database applies any
pending migrations and is otherwise a no-op.`,
		Example: `  # Initialize the default database
  lineshift init

  # Initialize a specific database file
  lineshift init --db /var/lib/lineshift/rules.db`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			app, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer app.Close(ctx)

			if err := app.store.HealthCheck(ctx); err != nil {
				return fmt.Errorf("database health check failed: %w", err)
			}

			// First read materializes the default settings.
			settings, err := app.engine.Settings(ctx)
			if err != nil {
				return err
			}

			if jsonOutput {
				return printJSON(settings)
			}
			fmt.Printf("Initialized %s\n", app.cfg.Database.Path)
			fmt.Printf("  default changeover: %d min\n", settings.DefaultMinutes)
			fmt.Printf("  SMED benchmark:     %d min\n", settings.BenchmarkMinutes)
			fmt.Printf("  changeover enabled: %v\n", settings.Enabled)
			return nil
		},
	}

	return cmd
}
