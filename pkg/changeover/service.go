package changeover

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/lineshift/lineshift/pkg/catalog"
	"github.com/lineshift/lineshift/pkg/telemetry"
)

// Engine ties the rule stores, toggle store, and line/model catalog into
// the changeover resolution service. Every method fetches fresh state
// from the stores; the engine holds no mutable state of its own.
type Engine struct {
	settings SettingsStore
	rules    RuleStore
	toggles  ToggleStore
	catalog  catalog.Catalog
	validate *validator.Validate
	logger   *telemetry.Logger
	metrics  *telemetry.Metrics
	tracer   *telemetry.Tracer
}

// EngineConfig collects the engine's collaborators. Settings, Rules,
// Toggles, and Catalog are required; telemetry collaborators are optional.
type EngineConfig struct {
	Settings SettingsStore
	Rules    RuleStore
	Toggles  ToggleStore
	Catalog  catalog.Catalog
	Logger   *telemetry.Logger
	Metrics  *telemetry.Metrics
	Tracer   *telemetry.Tracer
}

// NewEngine creates a changeover engine from its collaborators.
func NewEngine(cfg EngineConfig) (*Engine, error) {
	if cfg.Settings == nil || cfg.Rules == nil || cfg.Toggles == nil {
		return nil, fmt.Errorf("settings, rule, and toggle stores are required")
	}
	if cfg.Catalog == nil {
		return nil, fmt.Errorf("line/model catalog is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = telemetry.NopLogger()
	}
	return &Engine{
		settings: cfg.Settings,
		rules:    cfg.Rules,
		toggles:  cfg.Toggles,
		catalog:  cfg.Catalog,
		validate: validator.New(),
		logger:   logger.NewComponentLogger("changeover"),
		metrics:  cfg.Metrics,
		tracer:   cfg.Tracer,
	}, nil
}

// Resolve returns the changeover time for one directed (line, from, to)
// triple using the strict tier order documented on Ruleset.Resolve.
// Lookups are targeted, one indexed query per tier, so resolving a single
// pair does not load the line's full ruleset.
func (e *Engine) Resolve(ctx context.Context, lineID, fromModelID, toModelID string) (ResolvedTime, error) {
	rt, err := e.resolve(ctx, lineID, fromModelID, toModelID)
	if err != nil {
		return ResolvedTime{}, err
	}
	e.metrics.ResolutionResolved(string(rt.Source))
	return rt, nil
}

func (e *Engine) resolve(ctx context.Context, lineID, fromModelID, toModelID string) (ResolvedTime, error) {
	if fromModelID == toModelID {
		return ResolvedTime{Minutes: 0, Source: SourceSameModel}, nil
	}

	ov, err := e.rules.LineOverride(ctx, OverrideKey{LineID: lineID, FromModelID: fromModelID, ToModelID: toModelID})
	if err != nil {
		return ResolvedTime{}, fmt.Errorf("failed to look up line override: %w", err)
	}
	if ov != nil {
		return ResolvedTime{Minutes: ov.Minutes, Source: SourceLineOverride}, nil
	}

	fromModel, err := e.catalog.Model(ctx, fromModelID)
	if err != nil {
		return ResolvedTime{}, fmt.Errorf("failed to look up model %s: %w", fromModelID, err)
	}
	toModel, err := e.catalog.Model(ctx, toModelID)
	if err != nil {
		return ResolvedTime{}, fmt.Errorf("failed to look up model %s: %w", toModelID, err)
	}
	if fromModel != nil && toModel != nil {
		fd, err := e.rules.FamilyDefault(ctx, FamilyPair{FromFamily: fromModel.Family, ToFamily: toModel.Family})
		if err != nil {
			return ResolvedTime{}, fmt.Errorf("failed to look up family default: %w", err)
		}
		if fd != nil {
			return ResolvedTime{Minutes: fd.Minutes, Source: SourceFamilyDefault}, nil
		}
	}

	settings, err := e.settings.GlobalSettings(ctx)
	if err != nil {
		return ResolvedTime{}, fmt.Errorf("failed to load global settings: %w", err)
	}
	return ResolvedTime{Minutes: settings.DefaultMinutes, Source: SourceGlobalDefault}, nil
}

// Settings returns the current global changeover settings, creating the
// defaults on first read.
func (e *Engine) Settings(ctx context.Context) (GlobalSettings, error) {
	return e.settings.GlobalSettings(ctx)
}

// SetDefaultMinutes updates the global fallback changeover time.
func (e *Engine) SetDefaultMinutes(ctx context.Context, minutes int) error {
	if minutes < 0 || minutes > MaxChangeoverMinutes {
		e.metrics.ValidationRejected("set_default_minutes")
		return newValidationError("default_minutes", "must be between 0 and %d, got %d", MaxChangeoverMinutes, minutes)
	}
	if err := e.settings.SetDefaultMinutes(ctx, minutes); err != nil {
		return fmt.Errorf("failed to store default minutes: %w", err)
	}
	e.logger.WithField("minutes", minutes).Info("global default changeover updated")
	return nil
}

// SetBenchmarkMinutes updates the SMED benchmark threshold.
func (e *Engine) SetBenchmarkMinutes(ctx context.Context, minutes int) error {
	if minutes < 0 || minutes > MaxBenchmarkMinutes {
		e.metrics.ValidationRejected("set_benchmark_minutes")
		return newValidationError("smed_benchmark_minutes", "must be between 0 and %d, got %d", MaxBenchmarkMinutes, minutes)
	}
	if err := e.settings.SetBenchmarkMinutes(ctx, minutes); err != nil {
		return fmt.Errorf("failed to store benchmark minutes: %w", err)
	}
	e.logger.WithField("minutes", minutes).Info("SMED benchmark updated")
	return nil
}

// SetGlobalEnabled flips the system-wide changeover flag. It is
// orthogonal to per-line toggles; consumers check both independently.
func (e *Engine) SetGlobalEnabled(ctx context.Context, enabled bool) error {
	if err := e.settings.SetGlobalEnabled(ctx, enabled); err != nil {
		return fmt.Errorf("failed to store global enabled flag: %w", err)
	}
	e.logger.WithField("enabled", enabled).Info("global changeover flag updated")
	return nil
}

// CalculationMethod returns the method configured for a context,
// injecting the probability_weighted default when none is stored.
func (e *Engine) CalculationMethod(ctx context.Context, mc MethodContext) (CalculationMethod, error) {
	if !ValidMethodContext(mc) {
		return CalculationMethod{}, newValidationError("context", "unknown method context %q", mc)
	}
	return e.settings.CalculationMethod(ctx, mc)
}

// SetCalculationMethod stores a method selection for one context. The
// options map is opaque here; it is interpreted by the optimizer.
func (e *Engine) SetCalculationMethod(ctx context.Context, method CalculationMethod) error {
	if !ValidMethodContext(method.Context) {
		return newValidationError("context", "unknown method context %q", method.Context)
	}
	if !ValidMethodID(method.MethodID) {
		return newValidationError("method_id", "unknown calculation method %q", method.MethodID)
	}
	if err := e.settings.SetCalculationMethod(ctx, method); err != nil {
		return fmt.Errorf("failed to store calculation method: %w", err)
	}
	e.logger.
		WithField("context", string(method.Context)).
		WithField("method_id", string(method.MethodID)).
		Info("calculation method updated")
	return nil
}

// FamilyDefault returns the stored rule for a directed family pair, or
// nil when no rule exists.
func (e *Engine) FamilyDefault(ctx context.Context, key FamilyPair) (*FamilyDefault, error) {
	return e.rules.FamilyDefault(ctx, key)
}

// FamilyDefaults returns every stored family default.
func (e *Engine) FamilyDefaults(ctx context.Context) ([]FamilyDefault, error) {
	return e.rules.FamilyDefaults(ctx)
}

// SetFamilyDefault upserts one family-to-family rule.
func (e *Engine) SetFamilyDefault(ctx context.Context, in FamilyDefaultInput) (*FamilyDefault, error) {
	if err := e.validate.Struct(in); err != nil {
		e.metrics.ValidationRejected("set_family_default")
		return nil, validationErrorFrom(err)
	}
	fd, err := e.rules.UpsertFamilyDefault(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert family default: %w", err)
	}
	e.metrics.RuleRowsWritten("family_defaults", 1)
	e.logger.
		WithField("from_family", in.FromFamily).
		WithField("to_family", in.ToFamily).
		WithField("minutes", in.Minutes).
		Debug("family default stored")
	return fd, nil
}

// DeleteFamilyDefault removes a rule, reporting false when it was absent.
func (e *Engine) DeleteFamilyDefault(ctx context.Context, key FamilyPair) (bool, error) {
	return e.rules.DeleteFamilyDefault(ctx, key)
}

// BulkUpsertFamilyDefaults validates every item, then writes them all in
// one transaction. Within one batch a repeated key resolves to the last
// entry's value. On any mid-batch failure the whole batch rolls back.
func (e *Engine) BulkUpsertFamilyDefaults(ctx context.Context, items []FamilyDefaultInput) (int, error) {
	for i, in := range items {
		if err := e.validate.Struct(in); err != nil {
			e.metrics.ValidationRejected("bulk_family_defaults")
			return 0, newValidationError("items", "item %d: %v", i, validationErrorFrom(err))
		}
	}
	count, err := e.rules.BulkUpsertFamilyDefaults(ctx, items)
	if err != nil {
		return 0, &IntegrityError{Op: "bulk family default upsert", Err: err}
	}
	e.metrics.RuleRowsWritten("family_defaults", count)
	e.logger.WithField("count", count).Info("family defaults bulk upserted")
	return count, nil
}

// LineOverride returns the stored override for a directed triple, or nil.
func (e *Engine) LineOverride(ctx context.Context, key OverrideKey) (*LineOverride, error) {
	return e.rules.LineOverride(ctx, key)
}

// LineOverrides returns every override scoped to one line.
func (e *Engine) LineOverrides(ctx context.Context, lineID string) ([]LineOverride, error) {
	return e.rules.LineOverrides(ctx, lineID)
}

// SetLineOverride upserts one line-scoped rule. A same-model triple is
// accepted and stored verbatim even though resolution always forces the
// diagonal to zero; the planning system this engine replaced kept such
// rows, and they are preserved rather than silently rewritten.
func (e *Engine) SetLineOverride(ctx context.Context, in LineOverrideInput) (*LineOverride, error) {
	if err := e.validate.Struct(in); err != nil {
		e.metrics.ValidationRejected("set_line_override")
		return nil, validationErrorFrom(err)
	}
	ov, err := e.rules.UpsertLineOverride(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert line override: %w", err)
	}
	e.metrics.RuleRowsWritten("line_overrides", 1)
	e.logger.
		WithLineID(in.LineID).
		WithModelPair(in.FromModelID, in.ToModelID).
		WithField("minutes", in.Minutes).
		Debug("line override stored")
	return ov, nil
}

// DeleteLineOverride removes an override, reporting false when absent.
func (e *Engine) DeleteLineOverride(ctx context.Context, key OverrideKey) (bool, error) {
	return e.rules.DeleteLineOverride(ctx, key)
}

// BulkUpsertLineOverrides validates every item then writes them in one
// transaction, with the same batch semantics as the family variant.
func (e *Engine) BulkUpsertLineOverrides(ctx context.Context, items []LineOverrideInput) (int, error) {
	for i, in := range items {
		if err := e.validate.Struct(in); err != nil {
			e.metrics.ValidationRejected("bulk_line_overrides")
			return 0, newValidationError("items", "item %d: %v", i, validationErrorFrom(err))
		}
	}
	count, err := e.rules.BulkUpsertLineOverrides(ctx, items)
	if err != nil {
		return 0, &IntegrityError{Op: "bulk line override upsert", Err: err}
	}
	e.metrics.RuleRowsWritten("line_overrides", count)
	e.logger.WithField("count", count).Info("line overrides bulk upserted")
	return count, nil
}

// CopyMatrix replaces every override on the target line with a copy of
// the source line's overrides. Copying a line onto itself is rejected; a
// source with no overrides is a no-op that leaves the target untouched.
// The delete-and-insert runs in a single transaction. Returns the number
// of overrides copied.
func (e *Engine) CopyMatrix(ctx context.Context, sourceLineID, targetLineID string) (int, error) {
	if sourceLineID == "" || targetLineID == "" {
		return 0, newValidationError("line_id", "source and target line IDs are required")
	}
	if sourceLineID == targetLineID {
		e.metrics.ValidationRejected("copy_matrix")
		return 0, newValidationError("target_line_id", "cannot copy a line's matrix onto itself")
	}

	source, err := e.rules.LineOverrides(ctx, sourceLineID)
	if err != nil {
		return 0, fmt.Errorf("failed to load source overrides: %w", err)
	}
	if len(source) == 0 {
		return 0, nil
	}

	items := make([]LineOverrideInput, 0, len(source))
	for _, ov := range source {
		items = append(items, LineOverrideInput{
			LineID:      targetLineID,
			FromModelID: ov.FromModelID,
			ToModelID:   ov.ToModelID,
			Minutes:     ov.Minutes,
			Notes:       fmt.Sprintf("copied from line %s", sourceLineID),
		})
	}

	count, err := e.rules.ReplaceLineOverrides(ctx, targetLineID, items)
	if err != nil {
		return 0, &IntegrityError{Op: "matrix copy", Err: err}
	}
	e.metrics.MatrixCopied(count)
	e.logger.
		WithField("source_line_id", sourceLineID).
		WithField("target_line_id", targetLineID).
		WithField("count", count).
		Info("changeover matrix copied")
	return count, nil
}

// LineToggle returns one line's toggle state, or nil for an unknown line.
func (e *Engine) LineToggle(ctx context.Context, lineID string) (*LineToggle, error) {
	return e.toggles.LineToggle(ctx, lineID)
}

// SetLineToggle sets one line's enabled flag. Any direct per-line action
// marks the line sticky, protecting it from later non-targeted sweeps.
func (e *Engine) SetLineToggle(ctx context.Context, lineID string, enabled bool) error {
	line, err := e.catalog.Line(ctx, lineID)
	if err != nil {
		return fmt.Errorf("failed to look up line %s: %w", lineID, err)
	}
	if line == nil {
		return newValidationError("line_id", "unknown line %q", lineID)
	}
	if err := e.toggles.SetLineToggle(ctx, lineID, enabled); err != nil {
		return fmt.Errorf("failed to set line toggle: %w", err)
	}
	e.logger.WithLineID(lineID).WithField("enabled", enabled).Info("line toggle set")
	return nil
}

// ResetAllToggles sets every line to (enabled, non-sticky), ignoring
// current stickiness. This is the deliberate start-over escape hatch.
// Returns the number of lines updated.
func (e *Engine) ResetAllToggles(ctx context.Context, enabled bool) (int64, error) {
	count, err := e.toggles.ResetAllToggles(ctx, enabled)
	if err != nil {
		return 0, &IntegrityError{Op: "toggle reset", Err: err}
	}
	e.metrics.ToggleSwept("reset_all", count)
	e.logger.WithField("enabled", enabled).WithField("count", count).Info("all line toggles reset")
	return count, nil
}

// SetAllNonSticky sets the enabled flag only on lines that were never
// toggled directly; sticky lines are left untouched. Returns the number
// of lines updated.
func (e *Engine) SetAllNonSticky(ctx context.Context, enabled bool) (int64, error) {
	count, err := e.toggles.SetAllNonSticky(ctx, enabled)
	if err != nil {
		return 0, &IntegrityError{Op: "toggle sweep", Err: err}
	}
	e.metrics.ToggleSwept("set_non_sticky", count)
	e.logger.WithField("enabled", enabled).WithField("count", count).Info("non-sticky line toggles set")
	return count, nil
}

// ExportSnapshot assembles the full raw-rule snapshot handed to the
// external optimizer: global settings, the analysis calculation method,
// every line toggle, and every stored rule in both tables.
func (e *Engine) ExportSnapshot(ctx context.Context) (*Snapshot, error) {
	ctx, span := e.tracer.StartSpan(ctx, "changeover.export_snapshot")
	defer span.End()

	settings, err := e.settings.GlobalSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load global settings: %w", err)
	}
	method, err := e.settings.CalculationMethod(ctx, MethodContextGlobal)
	if err != nil {
		return nil, fmt.Errorf("failed to load calculation method: %w", err)
	}
	toggles, err := e.toggles.LineToggles(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load line toggles: %w", err)
	}
	defaults, err := e.rules.FamilyDefaults(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load family defaults: %w", err)
	}
	overrides, err := e.rules.AllLineOverrides(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load line overrides: %w", err)
	}

	snap := &Snapshot{
		GlobalDefaultMinutes: settings.DefaultMinutes,
		CalculationMethod:    method,
		GlobalEnabled:        settings.Enabled,
		LineToggles:          make(map[string]ToggleFlags, len(toggles)),
		FamilyDefaults:       defaults,
		LineOverrides:        overrides,
	}
	for _, t := range toggles {
		snap.LineToggles[t.LineID] = ToggleFlags{Enabled: t.Enabled, Explicit: t.Explicit}
	}
	e.metrics.SnapshotExported()
	e.logger.
		WithField("family_defaults", len(defaults)).
		WithField("line_overrides", len(overrides)).
		WithField("lines", len(toggles)).
		Info("optimizer snapshot exported")
	return snap, nil
}
