// Package records defines the row representation shared by the source parser
// and the import engine.
package records

// Record is one parsed source row, keyed by the original (trimmed) column
// header. Empty cells are stored as nil so downstream code can distinguish
// "blank" from "missing column".
type Record map[string]any
