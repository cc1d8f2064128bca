package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lineshift/lineshift/pkg/changeover"
)

func newSettingsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Global changeover settings",
		Long: `Read and update the global changeover settings: the fallback
changeover time, the SMED benchmark threshold, and the system-wide
enabled flag.`,
	}

	cmd.AddCommand(newSettingsGetCommand())
	cmd.AddCommand(newSettingsSetCommand())

	return cmd
}

func newSettingsGetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get",
		Short: "Show the global settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			app, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer app.Close(ctx)

			settings, err := app.engine.Settings(ctx)
			if err != nil {
				return err
			}

			if jsonOutput {
				return printJSON(settings)
			}
			fmt.Printf("default changeover: %d min\n", settings.DefaultMinutes)
			fmt.Printf("SMED benchmark:     %d min\n", settings.BenchmarkMinutes)
			fmt.Printf("changeover enabled: %v\n", settings.Enabled)
			return nil
		},
	}
}

func newSettingsSetCommand() *cobra.Command {
	var (
		defaultMinutes   int
		benchmarkMinutes int
		enabled          bool
	)

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Update global settings",
		Long: `Update one or more global settings. Only the flags given change;
other settings keep their stored values.`,
		Example: `  # Set the global fallback changeover time
  lineshift settings set --default-minutes 30

  # Set the SMED benchmark and disable changeover system-wide
  lineshift settings set --benchmark-minutes 10 --enabled=false`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			if !cmd.Flags().Changed("default-minutes") &&
				!cmd.Flags().Changed("benchmark-minutes") &&
				!cmd.Flags().Changed("enabled") {
				return fmt.Errorf("nothing to set; pass --default-minutes, --benchmark-minutes, or --enabled")
			}

			app, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer app.Close(ctx)

			if cmd.Flags().Changed("default-minutes") {
				if err := app.engine.SetDefaultMinutes(ctx, defaultMinutes); err != nil {
					return err
				}
			}
			if cmd.Flags().Changed("benchmark-minutes") {
				if err := app.engine.SetBenchmarkMinutes(ctx, benchmarkMinutes); err != nil {
					return err
				}
			}
			if cmd.Flags().Changed("enabled") {
				if err := app.engine.SetGlobalEnabled(ctx, enabled); err != nil {
					return err
				}
			}

			settings, err := app.engine.Settings(ctx)
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(settings)
			}
			fmt.Printf("default changeover: %d min\n", settings.DefaultMinutes)
			fmt.Printf("SMED benchmark:     %d min\n", settings.BenchmarkMinutes)
			fmt.Printf("changeover enabled: %v\n", settings.Enabled)
			return nil
		},
	}

	cmd.Flags().IntVar(&defaultMinutes, "default-minutes", 0, "global fallback changeover time in minutes (0-480)")
	cmd.Flags().IntVar(&benchmarkMinutes, "benchmark-minutes", 0, "SMED benchmark threshold in minutes (0-60)")
	cmd.Flags().BoolVar(&enabled, "enabled", true, "system-wide changeover flag")

	return cmd
}

func newMethodCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "method",
		Short: "Calculation method selection",
		Long: `Read and update the changeover aggregation method per consumer
context. The method identifier and its options are stored and exported
verbatim; the schedule optimizer interprets them.

Contexts: global, analysis, simulation
Methods:  probability_weighted, tsp_optimal, worst_case, simple_average`,
	}

	cmd.AddCommand(newMethodGetCommand())
	cmd.AddCommand(newMethodSetCommand())

	return cmd
}

func newMethodGetCommand() *cobra.Command {
	var methodContext string

	cmd := &cobra.Command{
		Use:   "get",
		Short: "Show the calculation method for a context",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			app, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer app.Close(ctx)

			method, err := app.engine.CalculationMethod(ctx, changeover.MethodContext(methodContext))
			if err != nil {
				return err
			}

			if jsonOutput {
				return printJSON(method)
			}
			fmt.Printf("context: %s\n", method.Context)
			fmt.Printf("method:  %s\n", method.MethodID)
			for k, v := range method.Options {
				fmt.Printf("option:  %s=%s\n", k, v)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&methodContext, "context", "global", "method context (global, analysis, simulation)")

	return cmd
}

func newMethodSetCommand() *cobra.Command {
	var (
		methodContext string
		methodID      string
		options       map[string]string
	)

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Set the calculation method for a context",
		Example: `  # Use TSP-optimal sequencing for analysis
  lineshift method set --context analysis --method tsp_optimal

  # Pass method options through to the optimizer
  lineshift method set --method probability_weighted --option horizon_days=14`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			app, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer app.Close(ctx)

			return app.engine.SetCalculationMethod(ctx, changeover.CalculationMethod{
				Context:  changeover.MethodContext(methodContext),
				MethodID: changeover.MethodID(methodID),
				Options:  options,
			})
		},
	}

	cmd.Flags().StringVar(&methodContext, "context", "global", "method context (global, analysis, simulation)")
	cmd.Flags().StringVar(&methodID, "method", "", "calculation method identifier")
	cmd.Flags().StringToStringVar(&options, "option", nil, "method option as key=value (repeatable)")
	_ = cmd.MarkFlagRequired("method")

	return cmd
}
