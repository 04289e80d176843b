package storage

import (
	"fmt"
	"strings"
)

// InsertSQL builds "INSERT INTO t (a, b) VALUES (?, ?)" with the dialect's
// quoting and placeholder style.
func InsertSQL(d Dialect, table string, cols []string) string {
	quoted := make([]string, len(cols))
	marks := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = d.Quote(c)
		marks[i] = d.Placeholder(i + 1)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		d.Quote(table), strings.Join(quoted, ", "), strings.Join(marks, ", "))
}

// UpdateSQL builds "UPDATE t SET a = ?, b = ? WHERE <where>" where the WHERE
// columns continue the placeholder numbering after the SET columns.
func UpdateSQL(d Dialect, table string, setCols, whereCols []string) string {
	set := make([]string, len(setCols))
	for i, c := range setCols {
		set[i] = fmt.Sprintf("%s = %s", d.Quote(c), d.Placeholder(i+1))
	}
	where := make([]string, len(whereCols))
	for i, c := range whereCols {
		where[i] = fmt.Sprintf("%s = %s", d.Quote(c), d.Placeholder(len(setCols)+i+1))
	}
	return fmt.Sprintf("UPDATE %s SET %s WHERE %s",
		d.Quote(table), strings.Join(set, ", "), strings.Join(where, " AND "))
}

// SelectWhereSQL builds "SELECT <col> FROM t WHERE a = ? AND b = ?".
func SelectWhereSQL(d Dialect, col, table string, whereCols []string) string {
	where := make([]string, len(whereCols))
	for i, c := range whereCols {
		where[i] = fmt.Sprintf("%s = %s", d.Quote(c), d.Placeholder(i+1))
	}
	return fmt.Sprintf("SELECT %s FROM %s WHERE %s",
		d.Quote(col), d.Quote(table), strings.Join(where, " AND "))
}
