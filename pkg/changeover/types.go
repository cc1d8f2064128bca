package changeover

import (
	"context"
	"time"
)

// Limits for stored rule values. Minutes above eight hours or benchmarks
// above one hour are treated as data entry errors.
const (
	MaxChangeoverMinutes = 480
	MaxBenchmarkMinutes  = 60
)

// Source identifies which fallback tier produced a resolved changeover time.
type Source string

const (
	SourceSameModel     Source = "same_model"
	SourceLineOverride  Source = "line_override"
	SourceFamilyDefault Source = "family_default"
	SourceGlobalDefault Source = "global_default"
)

// ResolvedTime is the outcome of resolving one (line, from, to) triple.
// It is derived on demand and never persisted.
type ResolvedTime struct {
	Minutes int    `json:"minutes"`
	Source  Source `json:"source"`
}

// IsDefault reports whether the value came from a fallback tier rather
// than an explicit per-line rule.
func (r ResolvedTime) IsDefault() bool {
	return r.Source == SourceGlobalDefault || r.Source == SourceFamilyDefault
}

// GlobalSettings is the singleton global changeover configuration.
// It is created with defaults on first read and never deleted.
type GlobalSettings struct {
	DefaultMinutes   int  `json:"default_minutes"`
	BenchmarkMinutes int  `json:"smed_benchmark_minutes"`
	Enabled          bool `json:"enabled"`
}

// Defaults applied when a settings key has never been written.
const (
	DefaultChangeoverMinutes = 30
	DefaultBenchmarkMinutes  = 10
)

// MethodContext selects which consumer a calculation method applies to.
type MethodContext string

const (
	MethodContextGlobal     MethodContext = "global"
	MethodContextAnalysis   MethodContext = "analysis"
	MethodContextSimulation MethodContext = "simulation"
)

// MethodID identifies a changeover aggregation method. The engine stores
// and exports these identifiers; interpretation belongs to the optimizer.
type MethodID string

const (
	MethodProbabilityWeighted MethodID = "probability_weighted"
	MethodTSPOptimal          MethodID = "tsp_optimal"
	MethodWorstCase           MethodID = "worst_case"
	MethodSimpleAverage       MethodID = "simple_average"
)

// ValidMethodID reports whether id is one of the known method identifiers.
func ValidMethodID(id MethodID) bool {
	switch id {
	case MethodProbabilityWeighted, MethodTSPOptimal, MethodWorstCase, MethodSimpleAverage:
		return true
	}
	return false
}

// ValidMethodContext reports whether ctx is a known method context.
func ValidMethodContext(ctx MethodContext) bool {
	switch ctx {
	case MethodContextGlobal, MethodContextAnalysis, MethodContextSimulation:
		return true
	}
	return false
}

// CalculationMethod is the per-context method selection with opaque options.
type CalculationMethod struct {
	Context  MethodContext     `json:"context"`
	MethodID MethodID          `json:"method_id"`
	Options  map[string]string `json:"options,omitempty"`
}

// FamilyPair is the directed key of a family-level default. A->B and B->A
// are distinct rules; callers that want both directions store both.
type FamilyPair struct {
	FromFamily string `json:"from_family"`
	ToFamily   string `json:"to_family"`
}

// Reversed returns the opposite direction of the pair.
func (p FamilyPair) Reversed() FamilyPair {
	return FamilyPair{FromFamily: p.ToFamily, ToFamily: p.FromFamily}
}

// OverrideKey is the directed key of a line-scoped override.
type OverrideKey struct {
	LineID      string `json:"line_id"`
	FromModelID string `json:"from_model_id"`
	ToModelID   string `json:"to_model_id"`
}

// modelPair keys overrides within a single line's ruleset.
type modelPair struct {
	from string
	to   string
}

// FamilyDefault is a stored family-to-family changeover rule.
type FamilyDefault struct {
	ID         string    `json:"id"`
	FromFamily string    `json:"from_family"`
	ToFamily   string    `json:"to_family"`
	Minutes    int       `json:"minutes"`
	Notes      string    `json:"notes,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// LineOverride is a stored line-scoped model-to-model changeover rule.
// A same-model override (FromModelID == ToModelID) may be stored with any
// minutes value but is never surfaced by resolution; the diagonal always
// resolves to zero.
type LineOverride struct {
	ID          string    `json:"id"`
	LineID      string    `json:"line_id"`
	FromModelID string    `json:"from_model_id"`
	ToModelID   string    `json:"to_model_id"`
	Minutes     int       `json:"minutes"`
	Notes       string    `json:"notes,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// FamilyDefaultInput is the validated write shape for family defaults.
type FamilyDefaultInput struct {
	FromFamily string `json:"from_family" validate:"required"`
	ToFamily   string `json:"to_family" validate:"required"`
	Minutes    int    `json:"minutes" validate:"min=0,max=480"`
	Notes      string `json:"notes,omitempty"`
}

// LineOverrideInput is the validated write shape for line overrides.
type LineOverrideInput struct {
	LineID      string `json:"line_id" validate:"required"`
	FromModelID string `json:"from_model_id" validate:"required"`
	ToModelID   string `json:"to_model_id" validate:"required"`
	Minutes     int    `json:"minutes" validate:"min=0,max=480"`
	Notes       string `json:"notes,omitempty"`
}

// ToggleState is the logical state of a line's changeover toggle. The two
// persisted booleans (enabled, explicit) admit exactly four states; the
// enum keeps transition code free of illegal representations.
type ToggleState int

const (
	ToggleEnabledFree ToggleState = iota
	ToggleEnabledSticky
	ToggleDisabledFree
	ToggleDisabledSticky
)

// String returns the state name used in logs and CLI output.
func (s ToggleState) String() string {
	switch s {
	case ToggleEnabledFree:
		return "enabled"
	case ToggleEnabledSticky:
		return "enabled (sticky)"
	case ToggleDisabledFree:
		return "disabled"
	case ToggleDisabledSticky:
		return "disabled (sticky)"
	}
	return "unknown"
}

// LineToggle is the persisted toggle pair for one line.
type LineToggle struct {
	LineID   string `json:"line_id"`
	Enabled  bool   `json:"enabled"`
	Explicit bool   `json:"explicit"`
}

// State folds the two booleans into the logical four-state value.
func (t LineToggle) State() ToggleState {
	switch {
	case t.Enabled && t.Explicit:
		return ToggleEnabledSticky
	case t.Enabled:
		return ToggleEnabledFree
	case t.Explicit:
		return ToggleDisabledSticky
	}
	return ToggleDisabledFree
}

// ToggleFlags is the exported snapshot form of a line toggle.
type ToggleFlags struct {
	Enabled  bool `json:"enabled"`
	Explicit bool `json:"explicit"`
}

// MatrixCell is one resolved entry of a changeover matrix.
type MatrixCell struct {
	FromModelID      string `json:"from_model_id"`
	ToModelID        string `json:"to_model_id"`
	Minutes          int    `json:"minutes"`
	Source           Source `json:"source"`
	IsDefault        bool   `json:"is_default"`
	ExceedsBenchmark bool   `json:"exceeds_benchmark"`
}

// FamilyGroup is an ordered bucket of model IDs sharing one family,
// in the order families first appear in the sorted model list.
type FamilyGroup struct {
	Family   string   `json:"family"`
	ModelIDs []string `json:"model_ids"`
}

// MatrixStats aggregates over the off-diagonal cells of a matrix.
// FilledCells counts family-default cells; the name is kept distinct from
// DefaultCells to match the planning system this engine feeds.
type MatrixStats struct {
	TotalCells            int `json:"total_cells"`
	OverrideCells         int `json:"override_cells"`
	FilledCells           int `json:"filled_cells"`
	DefaultCells          int `json:"default_cells"`
	ExceedsBenchmarkCount int `json:"exceeds_benchmark_count"`
}

// Matrix is the full rendered grid for one line. Cells are in row-major
// order over the sorted model list, N*N entries including the diagonal.
type Matrix struct {
	LineID           string        `json:"line_id"`
	Models           []MatrixModel `json:"models"`
	Families         []FamilyGroup `json:"families"`
	Cells            []MatrixCell  `json:"cells"`
	Stats            MatrixStats   `json:"stats"`
	BenchmarkMinutes int           `json:"benchmark_minutes"`
}

// MatrixModel is the model header entry of a matrix axis.
type MatrixModel struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Family string `json:"family"`
}

// Snapshot is the raw-rule export consumed by the external optimizer.
// It carries rules rather than rendered cells so the consumer can
// re-resolve for model sets too large to render as a grid.
type Snapshot struct {
	GlobalDefaultMinutes int                    `json:"global_default_minutes"`
	CalculationMethod    CalculationMethod      `json:"calculation_method"`
	GlobalEnabled        bool                   `json:"global_enabled"`
	LineToggles          map[string]ToggleFlags `json:"line_toggles"`
	FamilyDefaults       []FamilyDefault        `json:"family_defaults"`
	LineOverrides        []LineOverride         `json:"line_overrides"`
}

// SettingsStore persists the global settings singleton and per-context
// calculation methods.
type SettingsStore interface {
	GlobalSettings(ctx context.Context) (GlobalSettings, error)
	SetDefaultMinutes(ctx context.Context, minutes int) error
	SetBenchmarkMinutes(ctx context.Context, minutes int) error
	SetGlobalEnabled(ctx context.Context, enabled bool) error
	CalculationMethod(ctx context.Context, mc MethodContext) (CalculationMethod, error)
	SetCalculationMethod(ctx context.Context, method CalculationMethod) error
}

// RuleStore persists family defaults and line overrides. Get methods
// return nil (not an error) when no rule exists; Delete methods return
// false when there was nothing to delete. Bulk methods execute as one
// transaction.
type RuleStore interface {
	FamilyDefault(ctx context.Context, key FamilyPair) (*FamilyDefault, error)
	FamilyDefaults(ctx context.Context) ([]FamilyDefault, error)
	UpsertFamilyDefault(ctx context.Context, in FamilyDefaultInput) (*FamilyDefault, error)
	DeleteFamilyDefault(ctx context.Context, key FamilyPair) (bool, error)
	BulkUpsertFamilyDefaults(ctx context.Context, items []FamilyDefaultInput) (int, error)

	LineOverride(ctx context.Context, key OverrideKey) (*LineOverride, error)
	LineOverrides(ctx context.Context, lineID string) ([]LineOverride, error)
	AllLineOverrides(ctx context.Context) ([]LineOverride, error)
	UpsertLineOverride(ctx context.Context, in LineOverrideInput) (*LineOverride, error)
	DeleteLineOverride(ctx context.Context, key OverrideKey) (bool, error)
	BulkUpsertLineOverrides(ctx context.Context, items []LineOverrideInput) (int, error)
	ReplaceLineOverrides(ctx context.Context, lineID string, items []LineOverrideInput) (int, error)
}

// ToggleStore persists the per-line toggle columns.
type ToggleStore interface {
	LineToggle(ctx context.Context, lineID string) (*LineToggle, error)
	LineToggles(ctx context.Context) ([]LineToggle, error)
	SetLineToggle(ctx context.Context, lineID string, enabled bool) error
	ResetAllToggles(ctx context.Context, enabled bool) (int64, error)
	SetAllNonSticky(ctx context.Context, enabled bool) (int64, error)
}
