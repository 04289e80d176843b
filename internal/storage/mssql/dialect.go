// Package mssql implements the SQL Server dialect. SQL Server has no enum
// column type, so introspection never yields a value domain here and the
// categorical normalizer relies on its static synonym table.
package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/microsoft/go-mssqldb"

	"qimport/internal/schema"
	"qimport/internal/storage"
)

type dialect struct{}

func init() { storage.Register(dialect{}) }

// Dialect returns the mssql dialect.
func Dialect() storage.Dialect { return dialect{} }

func (dialect) Name() string { return "mssql" }

func (dialect) Quote(ident string) string {
	return "[" + strings.ReplaceAll(ident, "]", "]]") + "]"
}

func (dialect) Placeholder(n int) string { return fmt.Sprintf("@p%d", n) }

func (dialect) DSN(cfg storage.Config) (string, error) {
	if cfg.Host == "" || cfg.User == "" || cfg.Database == "" {
		return "", fmt.Errorf("mssql: host, user and database are required")
	}
	port := cfg.Port
	if port == 0 {
		port = 1433
	}
	return fmt.Sprintf("sqlserver://%s:%s@%s:%d?database=%s",
		cfg.User, cfg.Password, cfg.Host, port, cfg.Database), nil
}

func (d dialect) Introspect(ctx context.Context, db *sql.DB, database, table string) (*schema.Table, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT COLUMN_NAME, IS_NULLABLE, COALESCE(CHARACTER_MAXIMUM_LENGTH, 0)
		FROM INFORMATION_SCHEMA.COLUMNS
		WHERE TABLE_NAME = @p1
		ORDER BY ORDINAL_POSITION`, table)
	if err != nil {
		return nil, fmt.Errorf("mssql: introspect %s: %w", table, err)
	}
	defer rows.Close()

	var cols []schema.Column
	for rows.Next() {
		var (
			name, nullable string
			maxLen         int64
		)
		if err := rows.Scan(&name, &nullable, &maxLen); err != nil {
			return nil, fmt.Errorf("mssql: introspect %s: %w", table, err)
		}
		// CHARACTER_MAXIMUM_LENGTH is -1 for (max) columns; treat as unbounded.
		if maxLen < 0 {
			maxLen = 0
		}
		cols = append(cols, schema.Column{
			Name:     name,
			Nullable: strings.EqualFold(nullable, "YES"),
			MaxLen:   int(maxLen),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("mssql: introspect %s: %w", table, err)
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("%w: %s", storage.ErrSchemaNotFound, table)
	}
	return schema.NewTable(table, cols), nil
}

func (d dialect) InsertID(ctx context.Context, q storage.Querier, table, idCol string, cols []string, vals []any) (int64, error) {
	quoted := make([]string, len(cols))
	marks := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = d.Quote(c)
		marks[i] = d.Placeholder(i + 1)
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) OUTPUT INSERTED.%s VALUES (%s)",
		d.Quote(table), strings.Join(quoted, ", "), d.Quote(idCol), strings.Join(marks, ", "))
	var id int64
	if err := q.QueryRowContext(ctx, query, vals...).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}
