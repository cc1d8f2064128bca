package changeover

import (
	"context"
	"fmt"
	"sort"
	"time"
)

// BuildMatrix renders the full changeover grid for one line: every
// ordered pair over the line's compatible models, including the diagonal,
// resolved against a fresh ruleset snapshot. A line with no compatible
// models yields an empty shell, not an error. The result is deterministic
// for a given store state and rebuilt on every call; nothing is cached.
func (e *Engine) BuildMatrix(ctx context.Context, lineID string) (*Matrix, error) {
	ctx, span := e.tracer.StartSpan(ctx, "changeover.build_matrix")
	defer span.End()
	start := time.Now()

	models, err := e.catalog.LineModels(ctx, lineID)
	if err != nil {
		return nil, fmt.Errorf("failed to load compatible models for line %s: %w", lineID, err)
	}

	settings, err := e.settings.GlobalSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load global settings: %w", err)
	}

	matrix := &Matrix{
		LineID:           lineID,
		Models:           []MatrixModel{},
		Families:         []FamilyGroup{},
		Cells:            []MatrixCell{},
		BenchmarkMinutes: settings.BenchmarkMinutes,
	}
	if len(models) == 0 {
		return matrix, nil
	}

	sorted := make([]MatrixModel, 0, len(models))
	for _, m := range models {
		sorted = append(sorted, MatrixModel{ID: m.ID, Name: m.Name, Family: m.Family})
	}
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Family != sorted[j].Family {
			return sorted[i].Family < sorted[j].Family
		}
		return sorted[i].Name < sorted[j].Name
	})
	matrix.Models = sorted
	matrix.Families = groupByFamily(sorted)

	overrides, err := e.rules.LineOverrides(ctx, lineID)
	if err != nil {
		return nil, fmt.Errorf("failed to load line overrides: %w", err)
	}
	defaults, err := e.rules.FamilyDefaults(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load family defaults: %w", err)
	}
	rs := NewRuleset(settings, overrides, defaults, sorted)

	n := len(sorted)
	matrix.Cells = make([]MatrixCell, 0, n*n)
	matrix.Stats.TotalCells = n*n - n

	for _, from := range sorted {
		for _, to := range sorted {
			rt := rs.Resolve(from.ID, to.ID)
			cell := MatrixCell{
				FromModelID:      from.ID,
				ToModelID:        to.ID,
				Minutes:          rt.Minutes,
				Source:           rt.Source,
				IsDefault:        rt.IsDefault(),
				ExceedsBenchmark: rs.ExceedsBenchmark(rt),
			}
			matrix.Cells = append(matrix.Cells, cell)

			// Stats cover off-diagonal cells only.
			switch rt.Source {
			case SourceSameModel:
				continue
			case SourceLineOverride:
				matrix.Stats.OverrideCells++
			case SourceFamilyDefault:
				matrix.Stats.FilledCells++
			}
			if cell.IsDefault {
				matrix.Stats.DefaultCells++
			}
			if cell.ExceedsBenchmark {
				matrix.Stats.ExceedsBenchmarkCount++
			}
		}
	}

	e.metrics.MatrixBuilt(n, time.Since(start))
	e.logger.
		WithLineID(lineID).
		WithField("models", n).
		WithField("override_cells", matrix.Stats.OverrideCells).
		Debug("changeover matrix built")
	return matrix, nil
}

// groupByFamily buckets sorted models into family groups, preserving the
// order families first appear.
func groupByFamily(sorted []MatrixModel) []FamilyGroup {
	groups := []FamilyGroup{}
	index := map[string]int{}
	for _, m := range sorted {
		i, ok := index[m.Family]
		if !ok {
			i = len(groups)
			index[m.Family] = i
			groups = append(groups, FamilyGroup{Family: m.Family})
		}
		groups[i].ModelIDs = append(groups[i].ModelIDs, m.ID)
	}
	return groups
}
