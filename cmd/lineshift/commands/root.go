package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/lineshift/lineshift/pkg/changeover"
	"github.com/lineshift/lineshift/pkg/config"
	"github.com/lineshift/lineshift/pkg/stores"
	"github.com/lineshift/lineshift/pkg/telemetry"
)

var (
	// Global flags
	configPath string
	dbPath     string
	verbose    bool
	jsonOutput bool

	appVersion = "dev"
)

// Execute runs the root command
func Execute(ctx context.Context, version, commit, buildDate string) error {
	appVersion = version
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "lineshift",
		Short: "Lineshift - Changeover Time Resolution Engine",
		Long: `Lineshift resolves model-to-model changeover times for production
line planning and renders per-line changeover matrices.

Changeover times resolve through strict fallback tiers:
  1. same model      -> always 0 minutes
  2. line override   -> per-line model pair rule
  3. family default  -> directed family pair rule
  4. global default  -> configurable system-wide value

Rules, per-line toggles, and global settings persist in SQLite; the
export command emits a raw-rule snapshot for the schedule optimizer.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
	}

	// Persistent flags available to all commands
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "database file path (overrides config)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")

	// Add subcommands
	rootCmd.AddCommand(newInitCommand())
	rootCmd.AddCommand(newSettingsCommand())
	rootCmd.AddCommand(newMethodCommand())
	rootCmd.AddCommand(newDefaultsCommand())
	rootCmd.AddCommand(newOverridesCommand())
	rootCmd.AddCommand(newToggleCommand())
	rootCmd.AddCommand(newMatrixCommand())
	rootCmd.AddCommand(newExportCommand())
	rootCmd.AddCommand(newCatalogCommand())

	return rootCmd
}

// app bundles the opened store, engine, and telemetry for one command run.
type app struct {
	cfg    *config.Config
	tel    *telemetry.Telemetry
	store  *stores.SQLiteStore
	engine *changeover.Engine
}

// openApp loads configuration, opens and migrates the database, and
// builds the engine. Callers must Close it.
func openApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if dbPath != "" {
		cfg.Database.Path = dbPath
	}

	telCfg := cfg.Telemetry.BuildTelemetry(appVersion)
	if verbose {
		telCfg.Logging.Level = "debug"
	}
	tel, err := telemetry.NewTelemetry(telCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	store, err := stores.NewSQLiteStore(stores.Config{
		Path:            cfg.Database.Path,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		return nil, err
	}
	if err := store.Init(ctx); err != nil {
		return nil, err
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, err
	}

	engine, err := changeover.NewEngine(changeover.EngineConfig{
		Settings: store,
		Rules:    store,
		Toggles:  store,
		Catalog:  store,
		Logger:   tel.Logger,
		Metrics:  tel.Metrics,
		Tracer:   tel.Tracer,
	})
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	if telCfg.Metrics.Enabled {
		if err := tel.StartMetricsServer(); err != nil {
			tel.Logger.WithError(err).Warn("failed to start metrics server")
		}
	}

	return &app{cfg: cfg, tel: tel, store: store, engine: engine}, nil
}

// Close releases the database and flushes telemetry.
func (a *app) Close(ctx context.Context) {
	if a.store != nil {
		_ = a.store.Close()
	}
	if a.tel != nil {
		_ = a.tel.Shutdown(ctx)
	}
}

// printJSON renders v as indented JSON on stdout.
func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
