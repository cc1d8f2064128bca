// Package stores provides the persistence layer for lineshift.
// It includes SQLite-based storage with WAL mode, embedded migrations,
// and CRUD operations for global changeover settings, calculation
// methods, family defaults, line overrides, per-line toggle state, and
// the line/model catalog.
package stores
