package commands

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/lineshift/lineshift/pkg/catalog"
)

func newCatalogCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Production line and model catalog",
		Long: `Seed and inspect the line/model catalog the changeover engine
resolves against: production lines, product models with their family,
and line-model compatibility assignments.`,
	}

	cmd.AddCommand(newCatalogAddLineCommand())
	cmd.AddCommand(newCatalogAddModelCommand())
	cmd.AddCommand(newCatalogAssignCommand())
	cmd.AddCommand(newCatalogListCommand())

	return cmd
}

func newCatalogAddLineCommand() *cobra.Command {
	var id string

	cmd := &cobra.Command{
		Use:   "add-line <name>",
		Short: "Add a production line",
		Args:  cobra.ExactArgs(1),
		Example: `  # Add a line with a generated ID
  lineshift catalog add-line "Final Assembly 1"

  # Add a line with a fixed ID
  lineshift catalog add-line "Final Assembly 1" --id line-1`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			app, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer app.Close(ctx)

			if id == "" {
				id = uuid.NewString()
			}
			line := catalog.Line{ID: id, Name: args[0]}
			if err := app.store.CreateLine(ctx, line); err != nil {
				return err
			}

			if jsonOutput {
				return printJSON(line)
			}
			fmt.Printf("added line %s (%s)\n", line.Name, line.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&id, "id", "", "line ID (generated when omitted)")

	return cmd
}

func newCatalogAddModelCommand() *cobra.Command {
	var (
		id     string
		family string
	)

	cmd := &cobra.Command{
		Use:   "add-model <name>",
		Short: "Add a product model",
		Args:  cobra.ExactArgs(1),
		Example: `  lineshift catalog add-model "A100" --family sedan --id model-a100`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			app, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer app.Close(ctx)

			if id == "" {
				id = uuid.NewString()
			}
			model := catalog.Model{ID: id, Name: args[0], Family: family}
			if err := app.store.CreateModel(ctx, model); err != nil {
				return err
			}

			if jsonOutput {
				return printJSON(model)
			}
			fmt.Printf("added model %s (%s) in family %s\n", model.Name, model.ID, model.Family)
			return nil
		},
	}

	cmd.Flags().StringVar(&id, "id", "", "model ID (generated when omitted)")
	cmd.Flags().StringVar(&family, "family", "", "product family the model belongs to")
	_ = cmd.MarkFlagRequired("family")

	return cmd
}

func newCatalogAssignCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "assign <line> <model>",
		Short: "Mark a model as producible on a line",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			app, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer app.Close(ctx)

			line, err := app.store.Line(ctx, args[0])
			if err != nil {
				return err
			}
			if line == nil {
				return fmt.Errorf("unknown line %q", args[0])
			}
			model, err := app.store.Model(ctx, args[1])
			if err != nil {
				return err
			}
			if model == nil {
				return fmt.Errorf("unknown model %q", args[1])
			}

			if err := app.store.AssignModel(ctx, args[0], args[1]); err != nil {
				return err
			}
			fmt.Printf("assigned %s to %s\n", model.Name, line.Name)
			return nil
		},
	}
}

func newCatalogListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List lines and their compatible models",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			app, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer app.Close(ctx)

			lines, err := app.store.Lines(ctx)
			if err != nil {
				return err
			}

			if jsonOutput {
				type lineModels struct {
					Line   catalog.Line    `json:"line"`
					Models []catalog.Model `json:"models"`
				}
				out := make([]lineModels, 0, len(lines))
				for _, line := range lines {
					models, err := app.store.LineModels(ctx, line.ID)
					if err != nil {
						return err
					}
					out = append(out, lineModels{Line: line, Models: models})
				}
				return printJSON(out)
			}

			if len(lines) == 0 {
				fmt.Println("no production lines")
				return nil
			}
			for _, line := range lines {
				models, err := app.store.LineModels(ctx, line.ID)
				if err != nil {
					return err
				}
				fmt.Printf("%s (%s): %d models\n", line.Name, line.ID, len(models))
				for _, model := range models {
					fmt.Printf("  %s (%s) family=%s\n", model.Name, model.ID, model.Family)
				}
			}
			return nil
		},
	}
}
