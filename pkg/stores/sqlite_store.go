package stores

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/lineshift/lineshift/pkg/catalog"

	// SQLite driver
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore implements the changeover store interfaces and the
// line/model catalog using SQLite.
type SQLiteStore struct {
	db  *sql.DB
	cfg Config
}

// NewSQLiteStore creates a new SQLite store instance
func NewSQLiteStore(cfg Config) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path is required")
	}
	if cfg.MaxOpenConns <= 0 {
		cfg.MaxOpenConns = 25
	}
	if cfg.MaxIdleConns <= 0 {
		cfg.MaxIdleConns = 5
	}
	if cfg.ConnMaxLifetime <= 0 {
		cfg.ConnMaxLifetime = 5 * time.Minute
	}

	return &SQLiteStore{
		cfg: cfg,
	}, nil
}

// Init initializes the database connection and enables WAL mode.
func (s *SQLiteStore) Init(ctx context.Context) error {
	// Open database with SQLite-specific connection parameters
	dsn := fmt.Sprintf("%s?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL&_txlock=immediate", s.cfg.Path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(s.cfg.MaxOpenConns)
	db.SetMaxIdleConns(s.cfg.MaxIdleConns)
	db.SetConnMaxLifetime(s.cfg.ConnMaxLifetime)

	// Verify connection and set PRAGMAs
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	// Ensure foreign keys are enabled (connection-level setting)
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	s.db = db
	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Migrate runs database migrations.
func (s *SQLiteStore) Migrate(_ context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	// Create migration source from embedded FS
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	// Create database driver
	driver, err := sqlite3.WithInstance(s.db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create database driver: %w", err)
	}

	// Create migration instance
	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}

	// Run migrations
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// BeginTx starts a new transaction. Every multi-row mutation in this
// store runs inside one of these, so readers never observe a half-applied
// sweep or copy.
func (s *SQLiteStore) BeginTx(ctx context.Context) (*sql.Tx, error) {
	return s.db.BeginTx(ctx, &sql.TxOptions{
		Isolation: sql.LevelSerializable,
	})
}

// HealthCheck verifies the database connection is healthy
func (s *SQLiteStore) HealthCheck(ctx context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	return s.db.PingContext(ctx)
}

// Line retrieves a production line by ID, or nil when unknown.
func (s *SQLiteStore) Line(ctx context.Context, id string) (*catalog.Line, error) {
	query := `SELECT id, name FROM production_lines WHERE id = ?`

	line := &catalog.Line{}
	err := s.db.QueryRowContext(ctx, query, id).Scan(&line.ID, &line.Name)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get line: %w", err)
	}

	return line, nil
}

// Lines lists all production lines ordered by name.
func (s *SQLiteStore) Lines(ctx context.Context) ([]catalog.Line, error) {
	query := `SELECT id, name FROM production_lines ORDER BY name, id`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list lines: %w", err)
	}
	defer rows.Close()

	lines := []catalog.Line{}
	for rows.Next() {
		line := catalog.Line{}
		if err := rows.Scan(&line.ID, &line.Name); err != nil {
			return nil, fmt.Errorf("failed to scan line: %w", err)
		}
		lines = append(lines, line)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating lines: %w", err)
	}

	return lines, nil
}

// Model retrieves a product model by ID, or nil when unknown.
func (s *SQLiteStore) Model(ctx context.Context, id string) (*catalog.Model, error) {
	query := `SELECT id, name, family FROM product_models WHERE id = ?`

	model := &catalog.Model{}
	err := s.db.QueryRowContext(ctx, query, id).Scan(&model.ID, &model.Name, &model.Family)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get model: %w", err)
	}

	return model, nil
}

// LineModels lists the models a line may produce. An unknown line or a
// line with no assignments yields an empty list, not an error.
func (s *SQLiteStore) LineModels(ctx context.Context, lineID string) ([]catalog.Model, error) {
	query := `
		SELECT m.id, m.name, m.family
		FROM product_models m
		JOIN line_model_assignments a ON a.model_id = m.id
		WHERE a.line_id = ?
		ORDER BY m.family, m.name
	`

	rows, err := s.db.QueryContext(ctx, query, lineID)
	if err != nil {
		return nil, fmt.Errorf("failed to list line models: %w", err)
	}
	defer rows.Close()

	models := []catalog.Model{}
	for rows.Next() {
		model := catalog.Model{}
		if err := rows.Scan(&model.ID, &model.Name, &model.Family); err != nil {
			return nil, fmt.Errorf("failed to scan model: %w", err)
		}
		models = append(models, model)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating models: %w", err)
	}

	return models, nil
}

// CreateLine inserts a production line with default toggle state.
func (s *SQLiteStore) CreateLine(ctx context.Context, line catalog.Line) error {
	query := `
		INSERT INTO production_lines (id, name, changeover_enabled, changeover_explicit, created_at, updated_at)
		VALUES (?, ?, 1, 0, ?, ?)
	`

	now := time.Now().UTC()
	if _, err := s.db.ExecContext(ctx, query, line.ID, line.Name, now, now); err != nil {
		return fmt.Errorf("failed to create line: %w", err)
	}

	return nil
}

// CreateModel inserts a product model.
func (s *SQLiteStore) CreateModel(ctx context.Context, model catalog.Model) error {
	query := `
		INSERT INTO product_models (id, name, family, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`

	now := time.Now().UTC()
	if _, err := s.db.ExecContext(ctx, query, model.ID, model.Name, model.Family, now, now); err != nil {
		return fmt.Errorf("failed to create model: %w", err)
	}

	return nil
}

// AssignModel marks a model as producible on a line. Assigning the same
// pair twice is a no-op.
func (s *SQLiteStore) AssignModel(ctx context.Context, lineID, modelID string) error {
	query := `
		INSERT INTO line_model_assignments (line_id, model_id)
		VALUES (?, ?)
		ON CONFLICT(line_id, model_id) DO NOTHING
	`

	if _, err := s.db.ExecContext(ctx, query, lineID, modelID); err != nil {
		return fmt.Errorf("failed to assign model to line: %w", err)
	}

	return nil
}
