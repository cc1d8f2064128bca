package stores

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/lineshift/lineshift/pkg/changeover"
)

// GlobalSettings reads the settings singleton, applying defaults for any
// key that has never been written. The row set is read fresh on every
// call; there is no process-wide settings cache to invalidate.
func (s *SQLiteStore) GlobalSettings(ctx context.Context) (changeover.GlobalSettings, error) {
	query := `SELECT key, value FROM changeover_settings WHERE key IN (?, ?, ?)`

	rows, err := s.db.QueryContext(ctx, query, settingDefaultMinutes, settingBenchmarkMinutes, settingEnabled)
	if err != nil {
		return changeover.GlobalSettings{}, fmt.Errorf("failed to read settings: %w", err)
	}
	defer rows.Close()

	values := map[string]string{}
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return changeover.GlobalSettings{}, fmt.Errorf("failed to scan setting: %w", err)
		}
		values[key] = value
	}
	if err := rows.Err(); err != nil {
		return changeover.GlobalSettings{}, fmt.Errorf("error iterating settings: %w", err)
	}

	settings := changeover.GlobalSettings{
		DefaultMinutes:   changeover.DefaultChangeoverMinutes,
		BenchmarkMinutes: changeover.DefaultBenchmarkMinutes,
		Enabled:          true,
	}

	if raw, ok := values[settingDefaultMinutes]; ok {
		minutes, err := strconv.Atoi(raw)
		if err != nil {
			return changeover.GlobalSettings{}, fmt.Errorf("corrupt setting %s=%q: %w", settingDefaultMinutes, raw, err)
		}
		settings.DefaultMinutes = minutes
	}
	if raw, ok := values[settingBenchmarkMinutes]; ok {
		minutes, err := strconv.Atoi(raw)
		if err != nil {
			return changeover.GlobalSettings{}, fmt.Errorf("corrupt setting %s=%q: %w", settingBenchmarkMinutes, raw, err)
		}
		settings.BenchmarkMinutes = minutes
	}
	if raw, ok := values[settingEnabled]; ok {
		enabled, err := strconv.ParseBool(raw)
		if err != nil {
			return changeover.GlobalSettings{}, fmt.Errorf("corrupt setting %s=%q: %w", settingEnabled, raw, err)
		}
		settings.Enabled = enabled
	}

	return settings, nil
}

// SetDefaultMinutes stores the global fallback changeover time.
func (s *SQLiteStore) SetDefaultMinutes(ctx context.Context, minutes int) error {
	return s.setSetting(ctx, settingDefaultMinutes, strconv.Itoa(minutes))
}

// SetBenchmarkMinutes stores the SMED benchmark threshold.
func (s *SQLiteStore) SetBenchmarkMinutes(ctx context.Context, minutes int) error {
	return s.setSetting(ctx, settingBenchmarkMinutes, strconv.Itoa(minutes))
}

// SetGlobalEnabled stores the system-wide changeover flag.
func (s *SQLiteStore) SetGlobalEnabled(ctx context.Context, enabled bool) error {
	return s.setSetting(ctx, settingEnabled, strconv.FormatBool(enabled))
}

func (s *SQLiteStore) setSetting(ctx context.Context, key, value string) error {
	query := `
		INSERT INTO changeover_settings (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at
	`

	if _, err := s.db.ExecContext(ctx, query, key, value, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to store setting %s: %w", key, err)
	}

	return nil
}

// CalculationMethod reads the method for one context, injecting the
// probability_weighted default when none is stored.
func (s *SQLiteStore) CalculationMethod(ctx context.Context, mc changeover.MethodContext) (changeover.CalculationMethod, error) {
	query := `SELECT method_id, options FROM calculation_methods WHERE context = ?`

	var methodID, rawOptions string
	err := s.db.QueryRowContext(ctx, query, string(mc)).Scan(&methodID, &rawOptions)
	if err == sql.ErrNoRows {
		return changeover.CalculationMethod{
			Context:  mc,
			MethodID: changeover.MethodProbabilityWeighted,
			Options:  map[string]string{},
		}, nil
	}
	if err != nil {
		return changeover.CalculationMethod{}, fmt.Errorf("failed to get calculation method: %w", err)
	}

	options := map[string]string{}
	if rawOptions != "" {
		if err := json.Unmarshal([]byte(rawOptions), &options); err != nil {
			return changeover.CalculationMethod{}, fmt.Errorf("corrupt calculation method options for %s: %w", mc, err)
		}
	}

	return changeover.CalculationMethod{
		Context:  mc,
		MethodID: changeover.MethodID(methodID),
		Options:  options,
	}, nil
}

// SetCalculationMethod upserts the method selection for one context.
func (s *SQLiteStore) SetCalculationMethod(ctx context.Context, method changeover.CalculationMethod) error {
	options := method.Options
	if options == nil {
		options = map[string]string{}
	}
	rawOptions, err := json.Marshal(options)
	if err != nil {
		return fmt.Errorf("failed to encode calculation method options: %w", err)
	}

	query := `
		INSERT INTO calculation_methods (context, method_id, options, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(context) DO UPDATE SET
			method_id = excluded.method_id,
			options = excluded.options,
			updated_at = excluded.updated_at
	`

	if _, err := s.db.ExecContext(ctx, query, string(method.Context), string(method.MethodID), string(rawOptions), time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to store calculation method: %w", err)
	}

	return nil
}
