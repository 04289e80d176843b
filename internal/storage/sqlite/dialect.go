// Package sqlite implements the SQLite dialect (modernc.org/sqlite, cgo-free).
// SQLite has no enum domains; the categorical normalizer falls back to its
// static synonym table against these schemas. The in-memory form doubles as
// the storage fixture for this project's tests.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	_ "modernc.org/sqlite"

	"qimport/internal/schema"
	"qimport/internal/storage"
)

type dialect struct{}

func init() { storage.Register(dialect{}) }

// Dialect returns the sqlite dialect.
func Dialect() storage.Dialect { return dialect{} }

func (dialect) Name() string { return "sqlite" }

func (dialect) Quote(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

func (dialect) Placeholder(int) string { return "?" }

func (dialect) DSN(cfg storage.Config) (string, error) {
	if cfg.Database == "" {
		return "", fmt.Errorf("sqlite: database path is required")
	}
	// The database field is the file path (or ":memory:").
	return cfg.Database, nil
}

var widthRe = regexp.MustCompile(`\((\d+)\)`)

func (d dialect) Introspect(ctx context.Context, db *sql.DB, database, table string) (*schema.Table, error) {
	// PRAGMA table_info does not bind parameters; quote the identifier.
	rows, err := db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", d.Quote(table)))
	if err != nil {
		return nil, fmt.Errorf("sqlite: introspect %s: %w", table, err)
	}
	defer rows.Close()

	var cols []schema.Column
	for rows.Next() {
		var (
			cid, notNull, pk int
			name, colType    string
			dflt             sql.NullString
		)
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dflt, &pk); err != nil {
			return nil, fmt.Errorf("sqlite: introspect %s: %w", table, err)
		}
		maxLen := 0
		if m := widthRe.FindStringSubmatch(colType); m != nil {
			maxLen, _ = strconv.Atoi(m[1])
		}
		cols = append(cols, schema.Column{
			Name:     name,
			Nullable: notNull == 0,
			MaxLen:   maxLen,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: introspect %s: %w", table, err)
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("%w: %s", storage.ErrSchemaNotFound, table)
	}
	return schema.NewTable(table, cols), nil
}

func (d dialect) InsertID(ctx context.Context, q storage.Querier, table, idCol string, cols []string, vals []any) (int64, error) {
	res, err := q.ExecContext(ctx, storage.InsertSQL(d, table, cols), vals...)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}
