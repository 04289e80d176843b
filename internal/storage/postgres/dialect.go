// Package postgres implements the Postgres dialect on top of pgx v5's
// database/sql driver. Enum domains come from pg_enum; new-row ids use
// RETURNING since the stdlib LastInsertId path is not supported by pgx.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"

	"qimport/internal/schema"
	"qimport/internal/storage"
)

type dialect struct{}

func init() { storage.Register(dialect{}) }

// Dialect returns the postgres dialect.
func Dialect() storage.Dialect { return dialect{} }

func (dialect) Name() string { return "postgres" }

func (dialect) Quote(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

func (dialect) Placeholder(n int) string { return fmt.Sprintf("$%d", n) }

func (dialect) DSN(cfg storage.Config) (string, error) {
	if cfg.Host == "" || cfg.User == "" || cfg.Database == "" {
		return "", fmt.Errorf("postgres: host, user and database are required")
	}
	port := cfg.Port
	if port == 0 {
		port = 5432
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s",
		cfg.User, cfg.Password, cfg.Host, port, cfg.Database), nil
}

func (d dialect) Introspect(ctx context.Context, db *sql.DB, database, table string) (*schema.Table, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT column_name, data_type, udt_name, is_nullable,
		       COALESCE(character_maximum_length, 0)
		FROM information_schema.columns
		WHERE table_schema = current_schema() AND table_name = $1
		ORDER BY ordinal_position`, table)
	if err != nil {
		return nil, fmt.Errorf("postgres: introspect %s: %w", table, err)
	}
	defer rows.Close()

	type rawCol struct {
		col schema.Column
		udt string
	}
	var raw []rawCol
	for rows.Next() {
		var (
			name, dataType, udt, nullable string
			maxLen                        int64
		)
		if err := rows.Scan(&name, &dataType, &udt, &nullable, &maxLen); err != nil {
			return nil, fmt.Errorf("postgres: introspect %s: %w", table, err)
		}
		rc := rawCol{col: schema.Column{
			Name:     name,
			Nullable: strings.EqualFold(nullable, "YES"),
			MaxLen:   int(maxLen),
		}}
		if dataType == "USER-DEFINED" {
			rc.udt = udt
		}
		raw = append(raw, rc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: introspect %s: %w", table, err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: %s", storage.ErrSchemaNotFound, table)
	}

	cols := make([]schema.Column, 0, len(raw))
	for _, rc := range raw {
		if rc.udt != "" {
			enum, err := enumValues(ctx, db, rc.udt)
			if err != nil {
				return nil, fmt.Errorf("postgres: introspect %s.%s: %w", table, rc.col.Name, err)
			}
			rc.col.Enum = enum
		}
		cols = append(cols, rc.col)
	}
	return schema.NewTable(table, cols), nil
}

// enumValues returns the ordered labels of a user-defined enum type, nil when
// the type is not an enum.
func enumValues(ctx context.Context, db *sql.DB, udt string) ([]string, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT e.enumlabel
		FROM pg_enum e
		JOIN pg_type t ON t.oid = e.enumtypid
		WHERE t.typname = $1
		ORDER BY e.enumsortorder`, udt)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var vals []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		vals = append(vals, v)
	}
	return vals, rows.Err()
}

func (d dialect) InsertID(ctx context.Context, q storage.Querier, table, idCol string, cols []string, vals []any) (int64, error) {
	query := storage.InsertSQL(d, table, cols) + " RETURNING " + d.Quote(idCol)
	var id int64
	if err := q.QueryRowContext(ctx, query, vals...).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}
