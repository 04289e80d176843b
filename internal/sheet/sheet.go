// Package sheet resolves cell values out of parsed source rows by alias.
// Source files spell the same column half a dozen ways ("Question d’audit
// détaillée", "Question d'audit detaillee", ...), so headers on both sides are
// canonicalized before matching.
package sheet

import (
	"fmt"

	"qimport/internal/normalize"
	"qimport/pkg/records"
)

// Resolve returns the value of the first alias whose canonicalized form
// matches a column header of rec. The match is decided by header only: if the
// matched cell is blank, ok is false and later aliases are not consulted,
// mirroring how callers treat a present-but-empty column.
func Resolve(rec records.Record, aliases ...string) (string, bool) {
	if len(rec) == 0 {
		return "", false
	}

	byHeader := make(map[string]string, len(rec))
	for col := range rec {
		byHeader[normalize.Header(col)] = col
	}

	for _, alias := range aliases {
		col, found := byHeader[normalize.Header(alias)]
		if !found {
			continue
		}
		return cellString(rec[col])
	}
	return "", false
}

// cellString renders a cell as a trimmed string. Nil and whitespace-only
// cells resolve to absent.
func cellString(v any) (string, bool) {
	if v == nil {
		return "", false
	}
	var s string
	switch t := v.(type) {
	case string:
		s = t
	default:
		s = fmt.Sprint(t)
	}
	s = normalize.Text(s)
	if s == "" {
		return "", false
	}
	return s, true
}
