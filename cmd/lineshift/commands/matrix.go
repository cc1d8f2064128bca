package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/lineshift/lineshift/pkg/changeover"
)

func newMatrixCommand() *cobra.Command {
	var watch bool

	cmd := &cobra.Command{
		Use:   "matrix <line>",
		Short: "Render a line's changeover matrix",
		Long: `Render the full changeover matrix for one production line: every
ordered pair over the line's compatible models, grouped by family, with
fill statistics.

Cell markers: * line override, ! exceeds the SMED benchmark.`,
		Args: cobra.ExactArgs(1),
		Example: `  # Render the matrix for line-1
  lineshift matrix line-1

  # Re-render whenever the database changes
  lineshift matrix line-1 --watch`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			app, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer app.Close(ctx)

			render := func() error {
				matrix, err := app.engine.BuildMatrix(ctx, args[0])
				if err != nil {
					return err
				}
				if jsonOutput {
					return printJSON(matrix)
				}
				return renderMatrix(matrix)
			}

			if err := render(); err != nil {
				return err
			}
			if !watch {
				return nil
			}
			return watchAndRender(ctx, app.cfg.Database.Path, app.cfg.Watch.Debounce, render)
		},
	}

	cmd.Flags().BoolVar(&watch, "watch", false, "re-render when the database changes")

	return cmd
}

// renderMatrix prints the grid and its statistics.
func renderMatrix(matrix *changeover.Matrix) error {
	if len(matrix.Models) == 0 {
		fmt.Printf("line %s has no compatible models\n", matrix.LineID)
		return nil
	}

	cells := map[[2]string]changeover.MatrixCell{}
	for _, cell := range matrix.Cells {
		cells[[2]string{cell.FromModelID, cell.ToModelID}] = cell
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)

	header := []string{"FROM \\ TO"}
	for _, m := range matrix.Models {
		header = append(header, m.Name)
	}
	fmt.Fprintln(w, strings.Join(header, "\t"))

	for _, from := range matrix.Models {
		row := []string{from.Name}
		for _, to := range matrix.Models {
			row = append(row, formatCell(cells[[2]string{from.ID, to.ID}]))
		}
		fmt.Fprintln(w, strings.Join(row, "\t"))
	}
	if err := w.Flush(); err != nil {
		return err
	}

	families := make([]string, 0, len(matrix.Families))
	for _, group := range matrix.Families {
		families = append(families, fmt.Sprintf("%s (%d)", group.Family, len(group.ModelIDs)))
	}
	fmt.Printf("\nfamilies: %s\n", strings.Join(families, ", "))

	stats := matrix.Stats
	fmt.Printf("cells: %d  overrides: %d  family defaults: %d  defaults: %d  over %d min benchmark: %d\n",
		stats.TotalCells, stats.OverrideCells, stats.FilledCells, stats.DefaultCells,
		matrix.BenchmarkMinutes, stats.ExceedsBenchmarkCount)
	return nil
}

func formatCell(cell changeover.MatrixCell) string {
	if cell.Source == changeover.SourceSameModel {
		return "-"
	}
	s := fmt.Sprintf("%d", cell.Minutes)
	if cell.Source == changeover.SourceLineOverride {
		s += "*"
	}
	if cell.ExceedsBenchmark {
		s += "!"
	}
	return s
}

// watchAndRender re-renders on database file changes until the context
// is canceled. SQLite in WAL mode writes to sidecar files, so the watch
// covers the database's directory and filters on the base name.
func watchAndRender(ctx context.Context, dbPath string, debounce time.Duration, render func() error) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(dbPath)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	base := filepath.Base(dbPath)

	if debounce <= 0 {
		debounce = 250 * time.Millisecond
	}
	timer := time.NewTimer(debounce)
	if !timer.Stop() {
		<-timer.C
	}

	fmt.Println("\nwatching for changes (ctrl-c to stop)")
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !strings.HasPrefix(filepath.Base(event.Name), base) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			// Coalesce bursts of writes into one render.
			timer.Reset(debounce)
		case <-timer.C:
			fmt.Println()
			if err := render(); err != nil {
				return err
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("watch error: %w", err)
		}
	}
}
