// Package changeover implements changeover time resolution for production
// lines. It resolves (line, fromModel, toModel) triples through a strict
// fallback chain (same model, line override, family default, global default),
// maintains per-line enable toggles with sticky override semantics, and
// builds full model-by-model changeover matrices with aggregate statistics.
package changeover
