package stores

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/lineshift/lineshift/pkg/catalog"
	"github.com/lineshift/lineshift/pkg/changeover"
)

// setupTestStore creates a migrated SQLite store backed by a per-test file
func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	store, err := NewSQLiteStore(Config{
		Path: filepath.Join(t.TempDir(), "test.db"),
	})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	ctx := context.Background()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("failed to initialize store: %v", err)
	}

	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("failed to migrate store: %v", err)
	}

	t.Cleanup(func() { _ = store.Close() })

	return store
}

// seedLine creates a line, its models, and the assignments in one call.
func seedLine(t *testing.T, store *SQLiteStore, line catalog.Line, models ...catalog.Model) {
	t.Helper()
	ctx := context.Background()

	if err := store.CreateLine(ctx, line); err != nil {
		t.Fatalf("failed to create line: %v", err)
	}
	for _, m := range models {
		if err := store.CreateModel(ctx, m); err != nil {
			t.Fatalf("failed to create model %s: %v", m.ID, err)
		}
		if err := store.AssignModel(ctx, line.ID, m.ID); err != nil {
			t.Fatalf("failed to assign model %s: %v", m.ID, err)
		}
	}
}

// TestStoreLifecycle tests database initialization and closure
func TestStoreLifecycle(t *testing.T) {
	store, err := NewSQLiteStore(Config{
		Path: filepath.Join(t.TempDir(), "test.db"),
	})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	ctx := context.Background()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("failed to initialize store: %v", err)
	}

	if err := store.HealthCheck(ctx); err != nil {
		t.Fatalf("health check failed: %v", err)
	}

	if err := store.Close(); err != nil {
		t.Fatalf("failed to close store: %v", err)
	}
}

// TestStoreMigrations tests database migrations
func TestStoreMigrations(t *testing.T) {
	store := setupTestStore(t)

	ctx := context.Background()

	tables := []string{
		"changeover_settings",
		"calculation_methods",
		"production_lines",
		"product_models",
		"line_model_assignments",
		"family_changeover_defaults",
		"line_changeover_overrides",
	}
	for _, table := range tables {
		query := "SELECT COUNT(*) FROM " + table
		var count int
		err := store.db.QueryRowContext(ctx, query).Scan(&count)
		if err != nil {
			t.Errorf("table %s does not exist or is not accessible: %v", table, err)
		}
	}
}

func TestCatalog(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	seedLine(t, store, catalog.Line{ID: "line-1", Name: "Final Assembly 1"},
		catalog.Model{ID: "m-b1", Name: "B100", Family: "beta"},
		catalog.Model{ID: "m-a1", Name: "A100", Family: "alpha"},
		catalog.Model{ID: "m-a2", Name: "A200", Family: "alpha"},
	)

	line, err := store.Line(ctx, "line-1")
	if err != nil {
		t.Fatalf("failed to get line: %v", err)
	}
	if line == nil || line.Name != "Final Assembly 1" {
		t.Errorf("unexpected line: %+v", line)
	}

	missing, err := store.Line(ctx, "nope")
	if err != nil {
		t.Fatalf("unexpected error for unknown line: %v", err)
	}
	if missing != nil {
		t.Errorf("expected nil for unknown line, got %+v", missing)
	}

	model, err := store.Model(ctx, "m-a1")
	if err != nil {
		t.Fatalf("failed to get model: %v", err)
	}
	if model == nil || model.Family != "alpha" {
		t.Errorf("unexpected model: %+v", model)
	}

	models, err := store.LineModels(ctx, "line-1")
	if err != nil {
		t.Fatalf("failed to list line models: %v", err)
	}
	if len(models) != 3 {
		t.Fatalf("expected 3 models, got %d", len(models))
	}
	// Ordered by family, then name.
	wantOrder := []string{"m-a1", "m-a2", "m-b1"}
	for i, want := range wantOrder {
		if models[i].ID != want {
			t.Errorf("position %d: expected %s, got %s", i, want, models[i].ID)
		}
	}

	// Double assignment is a no-op.
	if err := store.AssignModel(ctx, "line-1", "m-a1"); err != nil {
		t.Fatalf("re-assignment failed: %v", err)
	}

	empty, err := store.LineModels(ctx, "unknown-line")
	if err != nil {
		t.Fatalf("unexpected error for unknown line: %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("expected empty model list, got %d", len(empty))
	}
}

func TestGlobalSettingsDefaults(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	settings, err := store.GlobalSettings(ctx)
	if err != nil {
		t.Fatalf("failed to read settings: %v", err)
	}
	if settings.DefaultMinutes != changeover.DefaultChangeoverMinutes {
		t.Errorf("expected default minutes %d, got %d", changeover.DefaultChangeoverMinutes, settings.DefaultMinutes)
	}
	if settings.BenchmarkMinutes != changeover.DefaultBenchmarkMinutes {
		t.Errorf("expected benchmark %d, got %d", changeover.DefaultBenchmarkMinutes, settings.BenchmarkMinutes)
	}
	if !settings.Enabled {
		t.Error("expected changeover to default to enabled")
	}

	if err := store.SetDefaultMinutes(ctx, 45); err != nil {
		t.Fatalf("failed to set default minutes: %v", err)
	}
	if err := store.SetBenchmarkMinutes(ctx, 12); err != nil {
		t.Fatalf("failed to set benchmark minutes: %v", err)
	}
	if err := store.SetGlobalEnabled(ctx, false); err != nil {
		t.Fatalf("failed to set enabled flag: %v", err)
	}

	settings, err = store.GlobalSettings(ctx)
	if err != nil {
		t.Fatalf("failed to re-read settings: %v", err)
	}
	if settings.DefaultMinutes != 45 || settings.BenchmarkMinutes != 12 || settings.Enabled {
		t.Errorf("unexpected settings after update: %+v", settings)
	}
}

func TestCalculationMethod(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	method, err := store.CalculationMethod(ctx, changeover.MethodContextGlobal)
	if err != nil {
		t.Fatalf("failed to read method: %v", err)
	}
	if method.MethodID != changeover.MethodProbabilityWeighted {
		t.Errorf("expected probability_weighted default, got %s", method.MethodID)
	}

	err = store.SetCalculationMethod(ctx, changeover.CalculationMethod{
		Context:  changeover.MethodContextAnalysis,
		MethodID: changeover.MethodTSPOptimal,
		Options:  map[string]string{"time_limit_seconds": "30"},
	})
	if err != nil {
		t.Fatalf("failed to set method: %v", err)
	}

	method, err = store.CalculationMethod(ctx, changeover.MethodContextAnalysis)
	if err != nil {
		t.Fatalf("failed to re-read method: %v", err)
	}
	if method.MethodID != changeover.MethodTSPOptimal {
		t.Errorf("expected tsp_optimal, got %s", method.MethodID)
	}
	if method.Options["time_limit_seconds"] != "30" {
		t.Errorf("expected options round-trip, got %+v", method.Options)
	}

	// Contexts are independent; global keeps its default.
	method, err = store.CalculationMethod(ctx, changeover.MethodContextGlobal)
	if err != nil {
		t.Fatalf("failed to read global method: %v", err)
	}
	if method.MethodID != changeover.MethodProbabilityWeighted {
		t.Errorf("global context leaked analysis method: %s", method.MethodID)
	}
}

func TestFamilyDefaultCRUD(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	key := changeover.FamilyPair{FromFamily: "alpha", ToFamily: "beta"}

	missing, err := store.FamilyDefault(ctx, key)
	if err != nil {
		t.Fatalf("unexpected error for missing rule: %v", err)
	}
	if missing != nil {
		t.Errorf("expected nil for missing rule, got %+v", missing)
	}

	fd, err := store.UpsertFamilyDefault(ctx, changeover.FamilyDefaultInput{
		FromFamily: "alpha", ToFamily: "beta", Minutes: 15, Notes: "paint change",
	})
	if err != nil {
		t.Fatalf("failed to upsert: %v", err)
	}
	if fd.Minutes != 15 || fd.ID == "" {
		t.Errorf("unexpected record: %+v", fd)
	}
	firstID := fd.ID

	// Upsert on the same key keeps the row identity and updates minutes.
	fd, err = store.UpsertFamilyDefault(ctx, changeover.FamilyDefaultInput{
		FromFamily: "alpha", ToFamily: "beta", Minutes: 20,
	})
	if err != nil {
		t.Fatalf("failed to re-upsert: %v", err)
	}
	if fd.Minutes != 20 {
		t.Errorf("expected minutes 20, got %d", fd.Minutes)
	}
	if fd.ID != firstID {
		t.Errorf("expected stable ID %s, got %s", firstID, fd.ID)
	}

	// The reverse direction is a distinct rule.
	reverse, err := store.FamilyDefault(ctx, key.Reversed())
	if err != nil {
		t.Fatalf("unexpected error for reverse lookup: %v", err)
	}
	if reverse != nil {
		t.Errorf("reverse direction should be absent, got %+v", reverse)
	}

	deleted, err := store.DeleteFamilyDefault(ctx, key)
	if err != nil {
		t.Fatalf("failed to delete: %v", err)
	}
	if !deleted {
		t.Error("expected delete to report true")
	}

	deleted, err = store.DeleteFamilyDefault(ctx, key)
	if err != nil {
		t.Fatalf("second delete errored: %v", err)
	}
	if deleted {
		t.Error("expected second delete to report false")
	}
}

func TestBulkUpsertFamilyDefaults(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	count, err := store.BulkUpsertFamilyDefaults(ctx, []changeover.FamilyDefaultInput{
		{FromFamily: "alpha", ToFamily: "beta", Minutes: 15},
		{FromFamily: "beta", ToFamily: "alpha", Minutes: 25},
		// Repeated key: the last entry wins.
		{FromFamily: "alpha", ToFamily: "beta", Minutes: 18},
	})
	if err != nil {
		t.Fatalf("bulk upsert failed: %v", err)
	}
	if count != 3 {
		t.Errorf("expected count 3, got %d", count)
	}

	fd, err := store.FamilyDefault(ctx, changeover.FamilyPair{FromFamily: "alpha", ToFamily: "beta"})
	if err != nil {
		t.Fatalf("failed to read back: %v", err)
	}
	if fd == nil || fd.Minutes != 18 {
		t.Errorf("expected last write to win with 18, got %+v", fd)
	}

	all, err := store.FamilyDefaults(ctx)
	if err != nil {
		t.Fatalf("failed to list: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("expected 2 distinct rules, got %d", len(all))
	}

	count, err = store.BulkUpsertFamilyDefaults(ctx, nil)
	if err != nil {
		t.Fatalf("empty bulk upsert errored: %v", err)
	}
	if count != 0 {
		t.Errorf("expected 0 for empty batch, got %d", count)
	}
}

func TestLineOverrideCRUD(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	seedLine(t, store, catalog.Line{ID: "line-1", Name: "Line 1"},
		catalog.Model{ID: "m-1", Name: "M1", Family: "alpha"},
		catalog.Model{ID: "m-2", Name: "M2", Family: "alpha"},
	)

	key := changeover.OverrideKey{LineID: "line-1", FromModelID: "m-1", ToModelID: "m-2"}

	ov, err := store.UpsertLineOverride(ctx, changeover.LineOverrideInput{
		LineID: "line-1", FromModelID: "m-1", ToModelID: "m-2", Minutes: 5,
	})
	if err != nil {
		t.Fatalf("failed to upsert: %v", err)
	}
	if ov.Minutes != 5 {
		t.Errorf("expected minutes 5, got %d", ov.Minutes)
	}

	// Opposite direction is a distinct rule.
	reverse, err := store.LineOverride(ctx, changeover.OverrideKey{LineID: "line-1", FromModelID: "m-2", ToModelID: "m-1"})
	if err != nil {
		t.Fatalf("reverse lookup errored: %v", err)
	}
	if reverse != nil {
		t.Errorf("reverse direction should be absent, got %+v", reverse)
	}

	// Same-model rows are stored as given.
	diag, err := store.UpsertLineOverride(ctx, changeover.LineOverrideInput{
		LineID: "line-1", FromModelID: "m-1", ToModelID: "m-1", Minutes: 99,
	})
	if err != nil {
		t.Fatalf("failed to upsert same-model row: %v", err)
	}
	if diag.Minutes != 99 {
		t.Errorf("expected same-model row stored verbatim, got %+v", diag)
	}

	list, err := store.LineOverrides(ctx, "line-1")
	if err != nil {
		t.Fatalf("failed to list: %v", err)
	}
	if len(list) != 2 {
		t.Errorf("expected 2 overrides, got %d", len(list))
	}

	deleted, err := store.DeleteLineOverride(ctx, key)
	if err != nil {
		t.Fatalf("failed to delete: %v", err)
	}
	if !deleted {
		t.Error("expected delete to report true")
	}

	deleted, err = store.DeleteLineOverride(ctx, key)
	if err != nil {
		t.Fatalf("second delete errored: %v", err)
	}
	if deleted {
		t.Error("expected second delete to report false")
	}
}

func TestReplaceLineOverrides(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	seedLine(t, store, catalog.Line{ID: "line-1", Name: "Line 1"},
		catalog.Model{ID: "m-1", Name: "M1", Family: "alpha"},
		catalog.Model{ID: "m-2", Name: "M2", Family: "alpha"},
		catalog.Model{ID: "m-3", Name: "M3", Family: "beta"},
	)
	seedLine(t, store, catalog.Line{ID: "line-2", Name: "Line 2"})

	// Pre-existing rule on the target that the replacement must remove.
	_, err := store.UpsertLineOverride(ctx, changeover.LineOverrideInput{
		LineID: "line-2", FromModelID: "m-1", ToModelID: "m-3", Minutes: 40,
	})
	if err != nil {
		t.Fatalf("failed to seed target override: %v", err)
	}

	count, err := store.ReplaceLineOverrides(ctx, "line-2", []changeover.LineOverrideInput{
		{LineID: "line-2", FromModelID: "m-1", ToModelID: "m-2", Minutes: 5, Notes: "copied from line line-1"},
		{LineID: "line-2", FromModelID: "m-2", ToModelID: "m-1", Minutes: 7, Notes: "copied from line line-1"},
	})
	if err != nil {
		t.Fatalf("failed to replace: %v", err)
	}
	if count != 2 {
		t.Errorf("expected 2 rows written, got %d", count)
	}

	list, err := store.LineOverrides(ctx, "line-2")
	if err != nil {
		t.Fatalf("failed to list: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected exactly the replacement rows, got %d", len(list))
	}
	for _, ov := range list {
		if ov.ToModelID == "m-3" {
			t.Errorf("pre-existing override survived replacement: %+v", ov)
		}
	}

	all, err := store.AllLineOverrides(ctx)
	if err != nil {
		t.Fatalf("failed to list all: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("expected 2 overrides total, got %d", len(all))
	}
}

func TestLineToggleStickiness(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	seedLine(t, store, catalog.Line{ID: "line-1", Name: "Line 1"})
	seedLine(t, store, catalog.Line{ID: "line-2", Name: "Line 2"})
	seedLine(t, store, catalog.Line{ID: "line-3", Name: "Line 3"})

	// New lines start enabled and non-sticky.
	toggle, err := store.LineToggle(ctx, "line-1")
	if err != nil {
		t.Fatalf("failed to read toggle: %v", err)
	}
	if toggle == nil || !toggle.Enabled || toggle.Explicit {
		t.Errorf("expected enabled non-sticky default, got %+v", toggle)
	}

	missing, err := store.LineToggle(ctx, "nope")
	if err != nil {
		t.Fatalf("unexpected error for unknown line: %v", err)
	}
	if missing != nil {
		t.Errorf("expected nil for unknown line, got %+v", missing)
	}

	// A direct set makes the line sticky.
	if err := store.SetLineToggle(ctx, "line-2", false); err != nil {
		t.Fatalf("failed to set toggle: %v", err)
	}
	toggle, _ = store.LineToggle(ctx, "line-2")
	if toggle.Enabled || !toggle.Explicit {
		t.Errorf("expected disabled sticky, got %+v", toggle)
	}
	if toggle.State() != changeover.ToggleDisabledSticky {
		t.Errorf("expected disabled sticky state, got %s", toggle.State())
	}

	// Sweep skips the sticky line.
	swept, err := store.SetAllNonSticky(ctx, false)
	if err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	if swept != 2 {
		t.Errorf("expected sweep to touch 2 lines, got %d", swept)
	}
	toggle, _ = store.LineToggle(ctx, "line-1")
	if toggle.Enabled {
		t.Error("expected non-sticky line to be disabled by sweep")
	}
	toggle, _ = store.LineToggle(ctx, "line-2")
	if !toggle.Explicit {
		t.Error("sweep must not clear the explicit mark")
	}

	// Re-setting a sticky line to the same value keeps it sticky.
	if err := store.SetLineToggle(ctx, "line-2", false); err != nil {
		t.Fatalf("failed to re-set toggle: %v", err)
	}
	toggle, _ = store.LineToggle(ctx, "line-2")
	if toggle.State() != changeover.ToggleDisabledSticky {
		t.Errorf("expected still disabled sticky, got %s", toggle.State())
	}

	// Reset reaches every line and clears stickiness.
	reset, err := store.ResetAllToggles(ctx, true)
	if err != nil {
		t.Fatalf("reset failed: %v", err)
	}
	if reset != 3 {
		t.Errorf("expected reset to touch 3 lines, got %d", reset)
	}
	for _, id := range []string{"line-1", "line-2", "line-3"} {
		toggle, _ = store.LineToggle(ctx, id)
		if !toggle.Enabled || toggle.Explicit {
			t.Errorf("line %s: expected enabled non-sticky after reset, got %+v", id, toggle)
		}
	}

	// After a reset, a sweep reaches the previously sticky line again.
	swept, err = store.SetAllNonSticky(ctx, false)
	if err != nil {
		t.Fatalf("post-reset sweep failed: %v", err)
	}
	if swept != 3 {
		t.Errorf("expected post-reset sweep to touch 3 lines, got %d", swept)
	}
}

func TestSetLineToggleUnknownLine(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	if err := store.SetLineToggle(ctx, "ghost", true); err == nil {
		t.Fatal("expected an error for an unknown line")
	}
}
