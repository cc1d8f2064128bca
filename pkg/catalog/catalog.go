// Package catalog defines the read-only line/model catalog consumed by the
// changeover engine. The engine only needs line identity, model identity
// with family grouping, and the line-to-model compatibility relation;
// ownership of the catalog data itself lives outside the engine.
package catalog

import "context"

// Line is a production line known to the catalog.
type Line struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Model is a product model with its family grouping. Family is the
// fallback level used when no line-specific override exists.
type Model struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Family string `json:"family"`
}

// Catalog supplies lines, models, and the compatibility relation.
// Lookup methods return nil (not an error) for unknown IDs; an unknown
// model simply falls through the family tier during resolution.
type Catalog interface {
	Line(ctx context.Context, id string) (*Line, error)
	Lines(ctx context.Context) ([]Line, error)
	Model(ctx context.Context, id string) (*Model, error)
	LineModels(ctx context.Context, lineID string) ([]Model, error)
}
