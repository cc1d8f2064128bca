package changeover

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"testing"

	"github.com/lineshift/lineshift/pkg/catalog"
)

// memStore is an in-memory implementation of the three store interfaces
// and the catalog, so engine behavior can be tested without a database.
type memStore struct {
	settings GlobalSettings
	methods  map[MethodContext]CalculationMethod

	familyDefaults map[FamilyPair]FamilyDefault
	overrides      map[OverrideKey]LineOverride
	nextID         int

	lines       map[string]catalog.Line
	models      map[string]catalog.Model
	assignments map[string][]string
	toggles     map[string]LineToggle
}

func newMemStore() *memStore {
	return &memStore{
		settings:       GlobalSettings{DefaultMinutes: DefaultChangeoverMinutes, BenchmarkMinutes: DefaultBenchmarkMinutes, Enabled: true},
		methods:        map[MethodContext]CalculationMethod{},
		familyDefaults: map[FamilyPair]FamilyDefault{},
		overrides:      map[OverrideKey]LineOverride{},
		lines:          map[string]catalog.Line{},
		models:         map[string]catalog.Model{},
		assignments:    map[string][]string{},
		toggles:        map[string]LineToggle{},
	}
}

func (m *memStore) addLine(id string, modelIDs ...string) {
	m.lines[id] = catalog.Line{ID: id, Name: id}
	m.toggles[id] = LineToggle{LineID: id, Enabled: true}
	m.assignments[id] = append(m.assignments[id], modelIDs...)
}

func (m *memStore) addModel(id, name, family string) {
	m.models[id] = catalog.Model{ID: id, Name: name, Family: family}
}

func (m *memStore) GlobalSettings(context.Context) (GlobalSettings, error) { return m.settings, nil }

func (m *memStore) SetDefaultMinutes(_ context.Context, minutes int) error {
	m.settings.DefaultMinutes = minutes
	return nil
}

func (m *memStore) SetBenchmarkMinutes(_ context.Context, minutes int) error {
	m.settings.BenchmarkMinutes = minutes
	return nil
}

func (m *memStore) SetGlobalEnabled(_ context.Context, enabled bool) error {
	m.settings.Enabled = enabled
	return nil
}

func (m *memStore) CalculationMethod(_ context.Context, mc MethodContext) (CalculationMethod, error) {
	if method, ok := m.methods[mc]; ok {
		return method, nil
	}
	return CalculationMethod{Context: mc, MethodID: MethodProbabilityWeighted, Options: map[string]string{}}, nil
}

func (m *memStore) SetCalculationMethod(_ context.Context, method CalculationMethod) error {
	m.methods[method.Context] = method
	return nil
}

func (m *memStore) FamilyDefault(_ context.Context, key FamilyPair) (*FamilyDefault, error) {
	if fd, ok := m.familyDefaults[key]; ok {
		return &fd, nil
	}
	return nil, nil
}

func (m *memStore) FamilyDefaults(context.Context) ([]FamilyDefault, error) {
	out := make([]FamilyDefault, 0, len(m.familyDefaults))
	for _, fd := range m.familyDefaults {
		out = append(out, fd)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].FromFamily != out[j].FromFamily {
			return out[i].FromFamily < out[j].FromFamily
		}
		return out[i].ToFamily < out[j].ToFamily
	})
	return out, nil
}

func (m *memStore) UpsertFamilyDefault(_ context.Context, in FamilyDefaultInput) (*FamilyDefault, error) {
	key := FamilyPair{FromFamily: in.FromFamily, ToFamily: in.ToFamily}
	fd, ok := m.familyDefaults[key]
	if !ok {
		m.nextID++
		fd = FamilyDefault{ID: fmt.Sprintf("fd-%d", m.nextID), FromFamily: in.FromFamily, ToFamily: in.ToFamily}
	}
	fd.Minutes = in.Minutes
	fd.Notes = in.Notes
	m.familyDefaults[key] = fd
	return &fd, nil
}

func (m *memStore) DeleteFamilyDefault(_ context.Context, key FamilyPair) (bool, error) {
	if _, ok := m.familyDefaults[key]; !ok {
		return false, nil
	}
	delete(m.familyDefaults, key)
	return true, nil
}

func (m *memStore) BulkUpsertFamilyDefaults(ctx context.Context, items []FamilyDefaultInput) (int, error) {
	for _, in := range items {
		if _, err := m.UpsertFamilyDefault(ctx, in); err != nil {
			return 0, err
		}
	}
	return len(items), nil
}

func (m *memStore) LineOverride(_ context.Context, key OverrideKey) (*LineOverride, error) {
	if ov, ok := m.overrides[key]; ok {
		return &ov, nil
	}
	return nil, nil
}

func (m *memStore) LineOverrides(_ context.Context, lineID string) ([]LineOverride, error) {
	out := []LineOverride{}
	for key, ov := range m.overrides {
		if key.LineID == lineID {
			out = append(out, ov)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].FromModelID != out[j].FromModelID {
			return out[i].FromModelID < out[j].FromModelID
		}
		return out[i].ToModelID < out[j].ToModelID
	})
	return out, nil
}

func (m *memStore) AllLineOverrides(context.Context) ([]LineOverride, error) {
	out := make([]LineOverride, 0, len(m.overrides))
	for _, ov := range m.overrides {
		out = append(out, ov)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) UpsertLineOverride(_ context.Context, in LineOverrideInput) (*LineOverride, error) {
	key := OverrideKey{LineID: in.LineID, FromModelID: in.FromModelID, ToModelID: in.ToModelID}
	ov, ok := m.overrides[key]
	if !ok {
		m.nextID++
		ov = LineOverride{ID: fmt.Sprintf("ov-%d", m.nextID), LineID: in.LineID, FromModelID: in.FromModelID, ToModelID: in.ToModelID}
	}
	ov.Minutes = in.Minutes
	ov.Notes = in.Notes
	m.overrides[key] = ov
	return &ov, nil
}

func (m *memStore) DeleteLineOverride(_ context.Context, key OverrideKey) (bool, error) {
	if _, ok := m.overrides[key]; !ok {
		return false, nil
	}
	delete(m.overrides, key)
	return true, nil
}

func (m *memStore) BulkUpsertLineOverrides(ctx context.Context, items []LineOverrideInput) (int, error) {
	for _, in := range items {
		if _, err := m.UpsertLineOverride(ctx, in); err != nil {
			return 0, err
		}
	}
	return len(items), nil
}

func (m *memStore) ReplaceLineOverrides(ctx context.Context, lineID string, items []LineOverrideInput) (int, error) {
	for key := range m.overrides {
		if key.LineID == lineID {
			delete(m.overrides, key)
		}
	}
	for _, in := range items {
		if _, err := m.UpsertLineOverride(ctx, in); err != nil {
			return 0, err
		}
	}
	return len(items), nil
}

func (m *memStore) LineToggle(_ context.Context, lineID string) (*LineToggle, error) {
	if toggle, ok := m.toggles[lineID]; ok {
		return &toggle, nil
	}
	return nil, nil
}

func (m *memStore) LineToggles(context.Context) ([]LineToggle, error) {
	out := make([]LineToggle, 0, len(m.toggles))
	for _, toggle := range m.toggles {
		out = append(out, toggle)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LineID < out[j].LineID })
	return out, nil
}

func (m *memStore) SetLineToggle(_ context.Context, lineID string, enabled bool) error {
	toggle, ok := m.toggles[lineID]
	if !ok {
		return fmt.Errorf("line %s not found", lineID)
	}
	toggle.Enabled = enabled
	toggle.Explicit = true
	m.toggles[lineID] = toggle
	return nil
}

func (m *memStore) ResetAllToggles(_ context.Context, enabled bool) (int64, error) {
	var count int64
	for id, toggle := range m.toggles {
		toggle.Enabled = enabled
		toggle.Explicit = false
		m.toggles[id] = toggle
		count++
	}
	return count, nil
}

func (m *memStore) SetAllNonSticky(_ context.Context, enabled bool) (int64, error) {
	var count int64
	for id, toggle := range m.toggles {
		if toggle.Explicit {
			continue
		}
		toggle.Enabled = enabled
		m.toggles[id] = toggle
		count++
	}
	return count, nil
}

func (m *memStore) Line(_ context.Context, id string) (*catalog.Line, error) {
	if line, ok := m.lines[id]; ok {
		return &line, nil
	}
	return nil, nil
}

func (m *memStore) Lines(context.Context) ([]catalog.Line, error) {
	out := make([]catalog.Line, 0, len(m.lines))
	for _, line := range m.lines {
		out = append(out, line)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) Model(_ context.Context, id string) (*catalog.Model, error) {
	if model, ok := m.models[id]; ok {
		return &model, nil
	}
	return nil, nil
}

func (m *memStore) LineModels(_ context.Context, lineID string) ([]catalog.Model, error) {
	out := []catalog.Model{}
	for _, id := range m.assignments[lineID] {
		if model, ok := m.models[id]; ok {
			out = append(out, model)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Family != out[j].Family {
			return out[i].Family < out[j].Family
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func newTestEngine(t *testing.T) (*Engine, *memStore) {
	t.Helper()
	store := newMemStore()
	engine, err := NewEngine(EngineConfig{
		Settings: store,
		Rules:    store,
		Toggles:  store,
		Catalog:  store,
	})
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}
	return engine, store
}

func TestNewEngineRequiresStores(t *testing.T) {
	store := newMemStore()
	if _, err := NewEngine(EngineConfig{Settings: store, Rules: store, Toggles: store}); err == nil {
		t.Fatal("expected an error without a catalog")
	}
	if _, err := NewEngine(EngineConfig{Catalog: store}); err == nil {
		t.Fatal("expected an error without stores")
	}
}

func TestSettingsRangeValidation(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	var verr *ValidationError
	if err := engine.SetDefaultMinutes(ctx, 481); !errors.As(err, &verr) {
		t.Errorf("expected ValidationError for 481, got %v", err)
	}
	if err := engine.SetDefaultMinutes(ctx, -1); !errors.As(err, &verr) {
		t.Errorf("expected ValidationError for -1, got %v", err)
	}
	if err := engine.SetDefaultMinutes(ctx, 480); err != nil {
		t.Errorf("480 is within range: %v", err)
	}

	if err := engine.SetBenchmarkMinutes(ctx, 61); !errors.As(err, &verr) {
		t.Errorf("expected ValidationError for 61, got %v", err)
	}
	if err := engine.SetBenchmarkMinutes(ctx, 60); err != nil {
		t.Errorf("60 is within range: %v", err)
	}

	settings, err := engine.Settings(ctx)
	if err != nil {
		t.Fatalf("failed to read settings: %v", err)
	}
	if settings.DefaultMinutes != 480 || settings.BenchmarkMinutes != 60 {
		t.Errorf("rejected writes must not land: %+v", settings)
	}
}

func TestCalculationMethodValidation(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	var verr *ValidationError
	err := engine.SetCalculationMethod(ctx, CalculationMethod{Context: "bogus", MethodID: MethodWorstCase})
	if !errors.As(err, &verr) {
		t.Errorf("expected ValidationError for unknown context, got %v", err)
	}
	err = engine.SetCalculationMethod(ctx, CalculationMethod{Context: MethodContextGlobal, MethodID: "bogus"})
	if !errors.As(err, &verr) {
		t.Errorf("expected ValidationError for unknown method, got %v", err)
	}
	err = engine.SetCalculationMethod(ctx, CalculationMethod{Context: MethodContextGlobal, MethodID: MethodWorstCase})
	if err != nil {
		t.Errorf("valid method rejected: %v", err)
	}

	method, err := engine.CalculationMethod(ctx, MethodContextGlobal)
	if err != nil {
		t.Fatalf("failed to read method: %v", err)
	}
	if method.MethodID != MethodWorstCase {
		t.Errorf("expected worst_case, got %s", method.MethodID)
	}
}

func TestSetFamilyDefaultValidation(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	var verr *ValidationError
	_, err := engine.SetFamilyDefault(ctx, FamilyDefaultInput{FromFamily: "F1", ToFamily: "F2", Minutes: 481})
	if !errors.As(err, &verr) {
		t.Errorf("expected ValidationError for out-of-range minutes, got %v", err)
	}
	_, err = engine.SetFamilyDefault(ctx, FamilyDefaultInput{ToFamily: "F2", Minutes: 10})
	if !errors.As(err, &verr) {
		t.Errorf("expected ValidationError for missing from_family, got %v", err)
	}

	fd, err := engine.SetFamilyDefault(ctx, FamilyDefaultInput{FromFamily: "F1", ToFamily: "F2", Minutes: 0})
	if err != nil {
		t.Fatalf("zero minutes is a valid rule: %v", err)
	}
	if fd.Minutes != 0 {
		t.Errorf("expected explicit zero stored, got %d", fd.Minutes)
	}
}

func TestEngineResolveTiers(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()

	store.addModel("a1", "A1", "F1")
	store.addModel("a2", "A2", "F1")
	store.addModel("b1", "B1", "F2")
	store.addLine("line-1", "a1", "a2", "b1")

	if err := engine.SetDefaultMinutes(ctx, 20); err != nil {
		t.Fatalf("failed to set default: %v", err)
	}
	if _, err := engine.SetFamilyDefault(ctx, FamilyDefaultInput{FromFamily: "F1", ToFamily: "F2", Minutes: 15}); err != nil {
		t.Fatalf("failed to set family default: %v", err)
	}
	if _, err := engine.SetLineOverride(ctx, LineOverrideInput{LineID: "line-1", FromModelID: "a1", ToModelID: "b1", Minutes: 5}); err != nil {
		t.Fatalf("failed to set override: %v", err)
	}

	tests := []struct {
		from, to string
		minutes  int
		source   Source
	}{
		{"a1", "a1", 0, SourceSameModel},
		{"a1", "b1", 5, SourceLineOverride},
		{"a2", "b1", 15, SourceFamilyDefault},
		{"b1", "a1", 20, SourceGlobalDefault},
		{"a1", "a2", 20, SourceGlobalDefault},
	}
	for _, tc := range tests {
		rt, err := engine.Resolve(ctx, "line-1", tc.from, tc.to)
		if err != nil {
			t.Fatalf("resolve %s->%s failed: %v", tc.from, tc.to, err)
		}
		if rt.Minutes != tc.minutes || rt.Source != tc.source {
			t.Errorf("%s->%s: expected %d/%s, got %d/%s", tc.from, tc.to, tc.minutes, tc.source, rt.Minutes, rt.Source)
		}
	}

	// Overrides are scoped to their line.
	rt, err := engine.Resolve(ctx, "line-2", "a1", "b1")
	if err != nil {
		t.Fatalf("resolve on other line failed: %v", err)
	}
	if rt.Source != SourceFamilyDefault {
		t.Errorf("expected family default on another line, got %s", rt.Source)
	}
}

func TestBuildMatrix(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()

	store.addModel("a1", "A1", "F1")
	store.addModel("a2", "A2", "F1")
	store.addModel("b1", "B1", "F2")
	store.addModel("b2", "B2", "F2")
	store.addLine("line-1", "b1", "a1", "b2", "a2")

	if err := engine.SetDefaultMinutes(ctx, 20); err != nil {
		t.Fatalf("failed to set default: %v", err)
	}
	if err := engine.SetBenchmarkMinutes(ctx, 10); err != nil {
		t.Fatalf("failed to set benchmark: %v", err)
	}
	if _, err := engine.SetFamilyDefault(ctx, FamilyDefaultInput{FromFamily: "F1", ToFamily: "F2", Minutes: 15}); err != nil {
		t.Fatalf("failed to set family default: %v", err)
	}
	if _, err := engine.SetLineOverride(ctx, LineOverrideInput{LineID: "line-1", FromModelID: "a1", ToModelID: "b1", Minutes: 5}); err != nil {
		t.Fatalf("failed to set override: %v", err)
	}

	matrix, err := engine.BuildMatrix(ctx, "line-1")
	if err != nil {
		t.Fatalf("failed to build matrix: %v", err)
	}

	if len(matrix.Cells) != 16 {
		t.Errorf("expected 16 cells including the diagonal, got %d", len(matrix.Cells))
	}
	if len(matrix.Models) != 4 {
		t.Fatalf("expected 4 models, got %d", len(matrix.Models))
	}
	// Axis is sorted by family then name regardless of assignment order.
	wantAxis := []string{"a1", "a2", "b1", "b2"}
	for i, want := range wantAxis {
		if matrix.Models[i].ID != want {
			t.Errorf("axis position %d: expected %s, got %s", i, want, matrix.Models[i].ID)
		}
	}

	if len(matrix.Families) != 2 || matrix.Families[0].Family != "F1" || matrix.Families[1].Family != "F2" {
		t.Errorf("unexpected family grouping: %+v", matrix.Families)
	}
	if len(matrix.Families[0].ModelIDs) != 2 {
		t.Errorf("expected 2 models in F1, got %d", len(matrix.Families[0].ModelIDs))
	}

	stats := matrix.Stats
	if stats.TotalCells != 12 {
		t.Errorf("expected 12 off-diagonal cells, got %d", stats.TotalCells)
	}
	if stats.OverrideCells != 1 {
		t.Errorf("expected 1 override cell, got %d", stats.OverrideCells)
	}
	// F1->F2 covers 4 directed pairs, one of which the override shadows.
	if stats.FilledCells != 3 {
		t.Errorf("expected 3 family-default cells, got %d", stats.FilledCells)
	}
	if stats.DefaultCells != 11 {
		t.Errorf("expected 11 default cells, got %d", stats.DefaultCells)
	}
	// 15-minute family cells and 20-minute global cells exceed the
	// 10-minute benchmark; the 5-minute override does not.
	if stats.ExceedsBenchmarkCount != 11 {
		t.Errorf("expected 11 cells over the benchmark, got %d", stats.ExceedsBenchmarkCount)
	}

	// Diagonal cells are present and zero.
	for _, cell := range matrix.Cells {
		if cell.FromModelID == cell.ToModelID {
			if cell.Minutes != 0 || cell.Source != SourceSameModel || cell.ExceedsBenchmark {
				t.Errorf("bad diagonal cell: %+v", cell)
			}
		}
	}
}

func TestBuildMatrixEmptyLine(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()

	store.addLine("line-empty")

	matrix, err := engine.BuildMatrix(ctx, "line-empty")
	if err != nil {
		t.Fatalf("empty line must not error: %v", err)
	}
	if len(matrix.Cells) != 0 || len(matrix.Models) != 0 {
		t.Errorf("expected an empty shell, got %+v", matrix)
	}
	if matrix.Stats.TotalCells != 0 {
		t.Errorf("expected zero stats, got %+v", matrix.Stats)
	}
}

func TestCopyMatrix(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()

	store.addModel("a1", "A1", "F1")
	store.addModel("a2", "A2", "F1")
	store.addLine("line-1", "a1", "a2")
	store.addLine("line-2", "a1", "a2")

	var verr *ValidationError
	if _, err := engine.CopyMatrix(ctx, "line-1", "line-1"); !errors.As(err, &verr) {
		t.Errorf("expected ValidationError for same-line copy, got %v", err)
	}

	// Target has an override; an empty source leaves it untouched.
	if _, err := engine.SetLineOverride(ctx, LineOverrideInput{LineID: "line-2", FromModelID: "a1", ToModelID: "a2", Minutes: 9}); err != nil {
		t.Fatalf("failed to seed target: %v", err)
	}
	count, err := engine.CopyMatrix(ctx, "line-1", "line-2")
	if err != nil {
		t.Fatalf("empty-source copy must not error: %v", err)
	}
	if count != 0 {
		t.Errorf("expected 0 copies from an empty source, got %d", count)
	}
	remaining, _ := engine.LineOverrides(ctx, "line-2")
	if len(remaining) != 1 {
		t.Errorf("empty-source copy must not clear the target, got %d overrides", len(remaining))
	}

	// A real copy replaces the target's rules wholesale.
	if _, err := engine.SetLineOverride(ctx, LineOverrideInput{LineID: "line-1", FromModelID: "a1", ToModelID: "a2", Minutes: 5}); err != nil {
		t.Fatalf("failed to seed source: %v", err)
	}
	if _, err := engine.SetLineOverride(ctx, LineOverrideInput{LineID: "line-1", FromModelID: "a2", ToModelID: "a1", Minutes: 7}); err != nil {
		t.Fatalf("failed to seed source: %v", err)
	}
	count, err = engine.CopyMatrix(ctx, "line-1", "line-2")
	if err != nil {
		t.Fatalf("copy failed: %v", err)
	}
	if count != 2 {
		t.Errorf("expected 2 copies, got %d", count)
	}

	copied, _ := engine.LineOverrides(ctx, "line-2")
	if len(copied) != 2 {
		t.Fatalf("expected 2 overrides on target, got %d", len(copied))
	}
	for _, ov := range copied {
		if ov.LineID != "line-2" {
			t.Errorf("copied override kept the source line: %+v", ov)
		}
		if ov.Notes != "copied from line line-1" {
			t.Errorf("expected provenance note, got %q", ov.Notes)
		}
	}

	// The source is untouched.
	source, _ := engine.LineOverrides(ctx, "line-1")
	if len(source) != 2 {
		t.Errorf("copy must not modify the source, got %d overrides", len(source))
	}
}

func TestBulkUpsertValidatesBeforeWriting(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()

	var verr *ValidationError
	_, err := engine.BulkUpsertFamilyDefaults(ctx, []FamilyDefaultInput{
		{FromFamily: "F1", ToFamily: "F2", Minutes: 15},
		{FromFamily: "F2", ToFamily: "F1", Minutes: 900},
	})
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError for the bad item, got %v", err)
	}
	if len(store.familyDefaults) != 0 {
		t.Errorf("no rows may land when any item fails validation, got %d", len(store.familyDefaults))
	}

	count, err := engine.BulkUpsertFamilyDefaults(ctx, []FamilyDefaultInput{
		{FromFamily: "F1", ToFamily: "F2", Minutes: 15},
		{FromFamily: "F1", ToFamily: "F2", Minutes: 18},
	})
	if err != nil {
		t.Fatalf("bulk upsert failed: %v", err)
	}
	if count != 2 {
		t.Errorf("expected count 2, got %d", count)
	}
	fd, _ := engine.FamilyDefault(ctx, FamilyPair{FromFamily: "F1", ToFamily: "F2"})
	if fd == nil || fd.Minutes != 18 {
		t.Errorf("expected last write to win, got %+v", fd)
	}
}

func TestToggleOperations(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()

	store.addLine("line-1")
	store.addLine("line-2")
	store.addLine("line-3")

	var verr *ValidationError
	if err := engine.SetLineToggle(ctx, "ghost", true); !errors.As(err, &verr) {
		t.Errorf("expected ValidationError for unknown line, got %v", err)
	}

	if err := engine.SetLineToggle(ctx, "line-2", false); err != nil {
		t.Fatalf("failed to set toggle: %v", err)
	}

	swept, err := engine.SetAllNonSticky(ctx, false)
	if err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	if swept != 2 {
		t.Errorf("expected 2 swept lines, got %d", swept)
	}

	toggle, _ := engine.LineToggle(ctx, "line-2")
	if toggle.State() != ToggleDisabledSticky {
		t.Errorf("sticky line must survive the sweep, got %s", toggle.State())
	}

	reset, err := engine.ResetAllToggles(ctx, true)
	if err != nil {
		t.Fatalf("reset failed: %v", err)
	}
	if reset != 3 {
		t.Errorf("expected 3 reset lines, got %d", reset)
	}
	toggle, _ = engine.LineToggle(ctx, "line-2")
	if toggle.State() != ToggleEnabledFree {
		t.Errorf("reset must clear stickiness, got %s", toggle.State())
	}
}

func TestExportSnapshot(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()

	store.addModel("a1", "A1", "F1")
	store.addModel("b1", "B1", "F2")
	store.addLine("line-1", "a1", "b1")
	store.addLine("line-2")

	if err := engine.SetDefaultMinutes(ctx, 25); err != nil {
		t.Fatalf("failed to set default: %v", err)
	}
	if err := engine.SetLineToggle(ctx, "line-2", false); err != nil {
		t.Fatalf("failed to set toggle: %v", err)
	}
	if _, err := engine.SetFamilyDefault(ctx, FamilyDefaultInput{FromFamily: "F1", ToFamily: "F2", Minutes: 15}); err != nil {
		t.Fatalf("failed to set family default: %v", err)
	}
	if _, err := engine.SetLineOverride(ctx, LineOverrideInput{LineID: "line-1", FromModelID: "a1", ToModelID: "b1", Minutes: 5}); err != nil {
		t.Fatalf("failed to set override: %v", err)
	}

	snap, err := engine.ExportSnapshot(ctx)
	if err != nil {
		t.Fatalf("export failed: %v", err)
	}

	if snap.GlobalDefaultMinutes != 25 {
		t.Errorf("expected default 25, got %d", snap.GlobalDefaultMinutes)
	}
	if !snap.GlobalEnabled {
		t.Error("expected global flag enabled")
	}
	if snap.CalculationMethod.MethodID != MethodProbabilityWeighted {
		t.Errorf("expected default method, got %s", snap.CalculationMethod.MethodID)
	}
	if len(snap.LineToggles) != 2 {
		t.Fatalf("expected 2 line toggles, got %d", len(snap.LineToggles))
	}
	flags := snap.LineToggles["line-2"]
	if flags.Enabled || !flags.Explicit {
		t.Errorf("expected line-2 disabled sticky, got %+v", flags)
	}
	if len(snap.FamilyDefaults) != 1 || snap.FamilyDefaults[0].Minutes != 15 {
		t.Errorf("unexpected family defaults: %+v", snap.FamilyDefaults)
	}
	if len(snap.LineOverrides) != 1 || snap.LineOverrides[0].Minutes != 5 {
		t.Errorf("unexpected line overrides: %+v", snap.LineOverrides)
	}
}
