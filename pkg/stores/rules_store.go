package stores

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lineshift/lineshift/pkg/changeover"
)

// FamilyDefault retrieves the rule for a directed family pair, or nil
// when no rule exists. Absence is a fall-through signal, never an error.
func (s *SQLiteStore) FamilyDefault(ctx context.Context, key changeover.FamilyPair) (*changeover.FamilyDefault, error) {
	query := `
		SELECT id, from_family, to_family, minutes, notes, created_at, updated_at
		FROM family_changeover_defaults
		WHERE from_family = ? AND to_family = ?
	`

	fd := &changeover.FamilyDefault{}
	err := s.db.QueryRowContext(ctx, query, key.FromFamily, key.ToFamily).Scan(
		&fd.ID,
		&fd.FromFamily,
		&fd.ToFamily,
		&fd.Minutes,
		&fd.Notes,
		&fd.CreatedAt,
		&fd.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get family default: %w", err)
	}

	return fd, nil
}

// FamilyDefaults lists every stored family default.
func (s *SQLiteStore) FamilyDefaults(ctx context.Context) ([]changeover.FamilyDefault, error) {
	query := `
		SELECT id, from_family, to_family, minutes, notes, created_at, updated_at
		FROM family_changeover_defaults
		ORDER BY from_family, to_family
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list family defaults: %w", err)
	}
	defer rows.Close()

	defaults := []changeover.FamilyDefault{}
	for rows.Next() {
		fd := changeover.FamilyDefault{}
		err := rows.Scan(
			&fd.ID,
			&fd.FromFamily,
			&fd.ToFamily,
			&fd.Minutes,
			&fd.Notes,
			&fd.CreatedAt,
			&fd.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan family default: %w", err)
		}
		defaults = append(defaults, fd)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating family defaults: %w", err)
	}

	return defaults, nil
}

// UpsertFamilyDefault inserts or updates one family default and returns
// the stored record.
func (s *SQLiteStore) UpsertFamilyDefault(ctx context.Context, in changeover.FamilyDefaultInput) (*changeover.FamilyDefault, error) {
	if err := s.upsertFamilyDefault(ctx, s.db, in); err != nil {
		return nil, err
	}
	return s.FamilyDefault(ctx, changeover.FamilyPair{FromFamily: in.FromFamily, ToFamily: in.ToFamily})
}

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *SQLiteStore) upsertFamilyDefault(ctx context.Context, ex execer, in changeover.FamilyDefaultInput) error {
	query := `
		INSERT INTO family_changeover_defaults (id, from_family, to_family, minutes, notes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(from_family, to_family) DO UPDATE SET
			minutes = excluded.minutes,
			notes = excluded.notes,
			updated_at = excluded.updated_at
	`

	now := time.Now().UTC()
	if _, err := ex.ExecContext(ctx, query, uuid.NewString(), in.FromFamily, in.ToFamily, in.Minutes, in.Notes, now, now); err != nil {
		return fmt.Errorf("failed to upsert family default: %w", err)
	}

	return nil
}

// DeleteFamilyDefault removes a rule, reporting false when it was
// already absent. Deleting a missing pair is idempotent, not an error.
func (s *SQLiteStore) DeleteFamilyDefault(ctx context.Context, key changeover.FamilyPair) (bool, error) {
	query := `DELETE FROM family_changeover_defaults WHERE from_family = ? AND to_family = ?`

	result, err := s.db.ExecContext(ctx, query, key.FromFamily, key.ToFamily)
	if err != nil {
		return false, fmt.Errorf("failed to delete family default: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rows > 0, nil
}

// BulkUpsertFamilyDefaults writes every item inside one transaction.
// Items are applied in order, so a key repeated within the batch ends up
// with the last entry's value. Any failure rolls back the whole batch.
func (s *SQLiteStore) BulkUpsertFamilyDefaults(ctx context.Context, items []changeover.FamilyDefaultInput) (int, error) {
	if len(items) == 0 {
		return 0, nil
	}

	tx, err := s.BeginTx(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, in := range items {
		if err := s.upsertFamilyDefault(ctx, tx, in); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit bulk upsert: %w", err)
	}

	return len(items), nil
}

// LineOverride retrieves the override for a directed triple, or nil.
func (s *SQLiteStore) LineOverride(ctx context.Context, key changeover.OverrideKey) (*changeover.LineOverride, error) {
	query := `
		SELECT id, line_id, from_model_id, to_model_id, minutes, notes, created_at, updated_at
		FROM line_changeover_overrides
		WHERE line_id = ? AND from_model_id = ? AND to_model_id = ?
	`

	ov := &changeover.LineOverride{}
	err := s.db.QueryRowContext(ctx, query, key.LineID, key.FromModelID, key.ToModelID).Scan(
		&ov.ID,
		&ov.LineID,
		&ov.FromModelID,
		&ov.ToModelID,
		&ov.Minutes,
		&ov.Notes,
		&ov.CreatedAt,
		&ov.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get line override: %w", err)
	}

	return ov, nil
}

// LineOverrides lists every override scoped to one line.
func (s *SQLiteStore) LineOverrides(ctx context.Context, lineID string) ([]changeover.LineOverride, error) {
	query := `
		SELECT id, line_id, from_model_id, to_model_id, minutes, notes, created_at, updated_at
		FROM line_changeover_overrides
		WHERE line_id = ?
		ORDER BY from_model_id, to_model_id
	`

	return s.queryOverrides(ctx, query, lineID)
}

// AllLineOverrides lists every override across all lines, for export.
func (s *SQLiteStore) AllLineOverrides(ctx context.Context) ([]changeover.LineOverride, error) {
	query := `
		SELECT id, line_id, from_model_id, to_model_id, minutes, notes, created_at, updated_at
		FROM line_changeover_overrides
		ORDER BY line_id, from_model_id, to_model_id
	`

	return s.queryOverrides(ctx, query)
}

func (s *SQLiteStore) queryOverrides(ctx context.Context, query string, args ...any) ([]changeover.LineOverride, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list line overrides: %w", err)
	}
	defer rows.Close()

	overrides := []changeover.LineOverride{}
	for rows.Next() {
		ov := changeover.LineOverride{}
		err := rows.Scan(
			&ov.ID,
			&ov.LineID,
			&ov.FromModelID,
			&ov.ToModelID,
			&ov.Minutes,
			&ov.Notes,
			&ov.CreatedAt,
			&ov.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan line override: %w", err)
		}
		overrides = append(overrides, ov)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating line overrides: %w", err)
	}

	return overrides, nil
}

// UpsertLineOverride inserts or updates one override and returns the
// stored record. Same-model triples are stored verbatim; resolution
// ignores them.
func (s *SQLiteStore) UpsertLineOverride(ctx context.Context, in changeover.LineOverrideInput) (*changeover.LineOverride, error) {
	if err := s.upsertLineOverride(ctx, s.db, in); err != nil {
		return nil, err
	}
	return s.LineOverride(ctx, changeover.OverrideKey{LineID: in.LineID, FromModelID: in.FromModelID, ToModelID: in.ToModelID})
}

func (s *SQLiteStore) upsertLineOverride(ctx context.Context, ex execer, in changeover.LineOverrideInput) error {
	query := `
		INSERT INTO line_changeover_overrides (id, line_id, from_model_id, to_model_id, minutes, notes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(line_id, from_model_id, to_model_id) DO UPDATE SET
			minutes = excluded.minutes,
			notes = excluded.notes,
			updated_at = excluded.updated_at
	`

	now := time.Now().UTC()
	if _, err := ex.ExecContext(ctx, query, uuid.NewString(), in.LineID, in.FromModelID, in.ToModelID, in.Minutes, in.Notes, now, now); err != nil {
		return fmt.Errorf("failed to upsert line override: %w", err)
	}

	return nil
}

// DeleteLineOverride removes an override, reporting false when absent.
func (s *SQLiteStore) DeleteLineOverride(ctx context.Context, key changeover.OverrideKey) (bool, error) {
	query := `DELETE FROM line_changeover_overrides WHERE line_id = ? AND from_model_id = ? AND to_model_id = ?`

	result, err := s.db.ExecContext(ctx, query, key.LineID, key.FromModelID, key.ToModelID)
	if err != nil {
		return false, fmt.Errorf("failed to delete line override: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rows > 0, nil
}

// BulkUpsertLineOverrides writes every item inside one transaction with
// the same in-order, last-write-wins semantics as the family variant.
func (s *SQLiteStore) BulkUpsertLineOverrides(ctx context.Context, items []changeover.LineOverrideInput) (int, error) {
	if len(items) == 0 {
		return 0, nil
	}

	tx, err := s.BeginTx(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, in := range items {
		if err := s.upsertLineOverride(ctx, tx, in); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit bulk upsert: %w", err)
	}

	return len(items), nil
}

// ReplaceLineOverrides atomically deletes every override on a line and
// inserts the given items in their place. Used by matrix copy so a
// reader never observes a half-copied matrix.
func (s *SQLiteStore) ReplaceLineOverrides(ctx context.Context, lineID string, items []changeover.LineOverrideInput) (int, error) {
	tx, err := s.BeginTx(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM line_changeover_overrides WHERE line_id = ?`, lineID); err != nil {
		return 0, fmt.Errorf("failed to clear target overrides: %w", err)
	}

	for _, in := range items {
		if err := s.upsertLineOverride(ctx, tx, in); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit override replacement: %w", err)
	}

	return len(items), nil
}
