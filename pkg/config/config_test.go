package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := Default()

	if cfg.Database.Path != "lineshift.db" {
		t.Errorf("unexpected default database path: %s", cfg.Database.Path)
	}
	if cfg.Database.MaxOpenConns != 25 {
		t.Errorf("unexpected default pool size: %d", cfg.Database.MaxOpenConns)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config must validate: %v", err)
	}
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load with empty path failed: %v", err)
	}
	if cfg.Database.Path != Default().Database.Path {
		t.Errorf("expected defaults, got %+v", cfg)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
database:
  path: /var/lib/lineshift/rules.db
  max_open_conns: 10
telemetry:
  log_level: debug
  log_format: json
  metrics_enabled: true
watch:
  debounce: 1s
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Database.Path != "/var/lib/lineshift/rules.db" {
		t.Errorf("unexpected database path: %s", cfg.Database.Path)
	}
	if cfg.Database.MaxOpenConns != 10 {
		t.Errorf("unexpected pool size: %d", cfg.Database.MaxOpenConns)
	}
	// Keys not present in the file keep their defaults.
	if cfg.Database.MaxIdleConns != 5 {
		t.Errorf("expected default idle conns, got %d", cfg.Database.MaxIdleConns)
	}
	if cfg.Telemetry.LogLevel != "debug" || cfg.Telemetry.LogFormat != "json" {
		t.Errorf("unexpected telemetry config: %+v", cfg.Telemetry)
	}
	if !cfg.Telemetry.MetricsEnabled {
		t.Error("expected metrics enabled")
	}
	if cfg.Watch.Debounce != time.Second {
		t.Errorf("unexpected debounce: %s", cfg.Watch.Debounce)
	}
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
database:
  path: ""
telemetry:
  log_level: shouting
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	if _, err := Load(path); err == nil {
		t.Fatal("expected validation to reject the config")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected an error for a missing file")
	}
}

func TestBuildTelemetry(t *testing.T) {
	tc := TelemetryConfig{
		LogLevel:        "warn",
		LogFormat:       "json",
		TracingEnabled:  true,
		TracingExporter: "otlp",
		TracingEndpoint: "collector:4317",
		MetricsEnabled:  true,
		MetricsListen:   ":9191",
	}

	cfg := tc.BuildTelemetry("1.2.3")
	if cfg.ServiceVersion != "1.2.3" {
		t.Errorf("unexpected version: %s", cfg.ServiceVersion)
	}
	if cfg.Logging.Level != "warn" || cfg.Logging.Format != "json" {
		t.Errorf("unexpected logging config: %+v", cfg.Logging)
	}
	if !cfg.Tracing.Enabled || cfg.Tracing.Exporter != "otlp" || cfg.Tracing.Endpoint != "collector:4317" {
		t.Errorf("unexpected tracing config: %+v", cfg.Tracing)
	}
	if !cfg.Metrics.Enabled || cfg.Metrics.ListenAddress != ":9191" {
		t.Errorf("unexpected metrics config: %+v", cfg.Metrics)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("built telemetry config must validate: %v", err)
	}
}
