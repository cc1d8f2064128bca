package stores

import "time"

// Config holds SQLite store configuration
type Config struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Keys of the string-encoded global settings rows. Values are parsed and
// defaulted on read; a key that has never been written falls back to the
// changeover package defaults.
const (
	settingDefaultMinutes   = "changeover.default_minutes"
	settingBenchmarkMinutes = "changeover.smed_benchmark_minutes"
	settingEnabled          = "changeover.enabled"
)
