// Package schema models the shape of a target table as discovered at runtime,
// and the import contract that binds semantic fields to whatever physical
// columns actually exist.
//
// Deployments disagree on naming convention (camelCase vs snake_case) and on
// which optional columns are present, so nothing here assumes a fixed schema:
// a Table is built once per run by the storage backend's introspector and
// passed explicitly to every consumer.
package schema

import "fmt"

// Column describes one physical column of a target table.
type Column struct {
	Name     string
	Nullable bool
	// Enum holds the ordered legal values for columns with a closed value
	// domain (e.g. MySQL ENUM). Nil for free-form columns.
	Enum []string
	// MaxLen is the declared character width, 0 when unknown or unbounded.
	MaxLen int
}

// Table is the immutable introspection result for one table. Build it with
// NewTable; do not mutate it afterwards.
type Table struct {
	Name    string
	Columns []Column

	byName map[string]Column
}

// NewTable constructs a Table with its lookup index populated.
func NewTable(name string, cols []Column) *Table {
	t := &Table{Name: name, Columns: cols, byName: make(map[string]Column, len(cols))}
	for _, c := range cols {
		t.byName[c.Name] = c
	}
	return t
}

// Column returns the column metadata for the exact physical name.
func (t *Table) Column(name string) (Column, bool) {
	c, ok := t.byName[name]
	return c, ok
}

// Has reports whether the table declares a column with the exact name.
func (t *Table) Has(name string) bool {
	_, ok := t.byName[name]
	return ok
}

// FieldSpec declares one semantic field of an import contract: the name the
// engine uses internally, the physical column candidates in precedence order
// (earlier aliases win, so a canonical convention can outrank a legacy one),
// and whether a run may proceed without it.
type FieldSpec struct {
	Field    string
	Aliases  []string
	Required bool
}

// FieldMap maps semantic field names to the resolved physical column names.
// Only fields that resolved are present.
type FieldMap map[string]string

// Col returns the physical column for a semantic field, "" when unresolved.
func (m FieldMap) Col(field string) string { return m[field] }

// MissingColumnError reports a required semantic field that resolved to no
// physical column. It aborts the run before any row is processed.
type MissingColumnError struct {
	Field string
	Table string
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("table %q has no column for required field %q", e.Table, e.Field)
}

// Resolve binds specs against the introspected table. Every spec is checked
// before returning so that a missing required column surfaces pre-flight, not
// mid-import.
func Resolve(t *Table, specs []FieldSpec) (FieldMap, error) {
	m := make(FieldMap, len(specs))
	for _, spec := range specs {
		resolved := ""
		for _, alias := range spec.Aliases {
			if t.Has(alias) {
				resolved = alias
				break
			}
		}
		if resolved == "" {
			if spec.Required {
				return nil, &MissingColumnError{Field: spec.Field, Table: t.Name}
			}
			continue
		}
		m[spec.Field] = resolved
	}
	return m, nil
}
