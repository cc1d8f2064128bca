package stores

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lineshift/lineshift/pkg/changeover"
)

// LineToggle retrieves the toggle state for one line, or nil when the
// line does not exist.
func (s *SQLiteStore) LineToggle(ctx context.Context, lineID string) (*changeover.LineToggle, error) {
	query := `SELECT id, changeover_enabled, changeover_explicit FROM production_lines WHERE id = ?`

	toggle := &changeover.LineToggle{}
	err := s.db.QueryRowContext(ctx, query, lineID).Scan(
		&toggle.LineID,
		&toggle.Enabled,
		&toggle.Explicit,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get line toggle: %w", err)
	}

	return toggle, nil
}

// LineToggles lists the toggle state of every production line.
func (s *SQLiteStore) LineToggles(ctx context.Context) ([]changeover.LineToggle, error) {
	query := `SELECT id, changeover_enabled, changeover_explicit FROM production_lines ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list line toggles: %w", err)
	}
	defer rows.Close()

	toggles := []changeover.LineToggle{}
	for rows.Next() {
		toggle := changeover.LineToggle{}
		if err := rows.Scan(&toggle.LineID, &toggle.Enabled, &toggle.Explicit); err != nil {
			return nil, fmt.Errorf("failed to scan line toggle: %w", err)
		}
		toggles = append(toggles, toggle)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating line toggles: %w", err)
	}

	return toggles, nil
}

// SetLineToggle sets one line's enabled flag and marks it explicit. Once
// marked, only ResetAllToggles clears the mark.
func (s *SQLiteStore) SetLineToggle(ctx context.Context, lineID string, enabled bool) error {
	query := `
		UPDATE production_lines
		SET changeover_enabled = ?, changeover_explicit = 1, updated_at = ?
		WHERE id = ?
	`

	result, err := s.db.ExecContext(ctx, query, enabled, time.Now().UTC(), lineID)
	if err != nil {
		return fmt.Errorf("failed to set line toggle: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("line %s not found", lineID)
	}

	return nil
}

// SetAllNonSticky sets the enabled flag on every line that has not been
// individually configured. Explicitly set lines are left untouched and
// their explicit mark survives the sweep.
func (s *SQLiteStore) SetAllNonSticky(ctx context.Context, enabled bool) (int64, error) {
	query := `
		UPDATE production_lines
		SET changeover_enabled = ?, updated_at = ?
		WHERE changeover_explicit = 0 OR changeover_explicit IS NULL
	`

	result, err := s.db.ExecContext(ctx, query, enabled, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to sweep non-sticky toggles: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rows, nil
}

// ResetAllToggles sets every line's enabled flag and clears all explicit
// marks, so a following SetAllNonSticky sweep reaches every line again.
func (s *SQLiteStore) ResetAllToggles(ctx context.Context, enabled bool) (int64, error) {
	query := `
		UPDATE production_lines
		SET changeover_enabled = ?, changeover_explicit = 0, updated_at = ?
	`

	result, err := s.db.ExecContext(ctx, query, enabled, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to reset toggles: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rows, nil
}
