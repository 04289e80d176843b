// Package mysql implements the MySQL/MariaDB dialect. This is the primary
// production backend: the questionnaire store runs on hosted MySQL, and it is
// the one backend with real ENUM column domains to introspect.
package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"

	_ "github.com/go-sql-driver/mysql"

	"qimport/internal/schema"
	"qimport/internal/storage"
)

type dialect struct{}

func init() { storage.Register(dialect{}) }

// Dialect returns the mysql dialect for callers that construct a Store
// directly (tests, tools).
func Dialect() storage.Dialect { return dialect{} }

func (dialect) Name() string { return "mysql" }

func (dialect) Quote(ident string) string {
	return "`" + strings.ReplaceAll(ident, "`", "``") + "`"
}

func (dialect) Placeholder(int) string { return "?" }

func (dialect) DSN(cfg storage.Config) (string, error) {
	if cfg.Host == "" || cfg.User == "" || cfg.Database == "" {
		return "", fmt.Errorf("mysql: host, user and database are required")
	}
	port := cfg.Port
	if port == 0 {
		port = 3306
	}
	// parseTime so DATETIME columns scan into time.Time.
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4",
		cfg.User, cfg.Password, cfg.Host, port, cfg.Database), nil
}

func (d dialect) Introspect(ctx context.Context, db *sql.DB, database, table string) (*schema.Table, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT COLUMN_NAME, COLUMN_TYPE, IS_NULLABLE, COALESCE(CHARACTER_MAXIMUM_LENGTH, 0)
		FROM INFORMATION_SCHEMA.COLUMNS
		WHERE TABLE_SCHEMA = ? AND TABLE_NAME = ?
		ORDER BY ORDINAL_POSITION`, database, table)
	if err != nil {
		return nil, fmt.Errorf("mysql: introspect %s: %w", table, err)
	}
	defer rows.Close()

	var cols []schema.Column
	for rows.Next() {
		var (
			name, colType, nullable string
			maxLen                  int64
		)
		if err := rows.Scan(&name, &colType, &nullable, &maxLen); err != nil {
			return nil, fmt.Errorf("mysql: introspect %s: %w", table, err)
		}
		cols = append(cols, schema.Column{
			Name:     name,
			Nullable: strings.EqualFold(nullable, "YES"),
			Enum:     parseEnum(colType),
			MaxLen:   int(maxLen),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("mysql: introspect %s: %w", table, err)
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("%w: %s.%s", storage.ErrSchemaNotFound, database, table)
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

var enumValueRe = regexp.MustCompile(`'((?:[^']|'')*)'`)

// parseEnum extracts the ordered legal values from a COLUMN_TYPE like
// "enum('low','medium','high')". Non-enum types return nil.
func parseEnum(colType string) []string {
	s := strings.TrimSpace(strings.ToLower(colType))
	if !strings.HasPrefix(s, "enum(") {
		return nil
	}
	inside := strings.TrimSuffix(strings.TrimPrefix(s, "enum("), ")")
	matches := enumValueRe.FindAllStringSubmatch(inside, -1)
	if len(matches) == 0 {
		return nil
	}
	vals := make([]string, 0, len(matches))
	for _, m := range matches {
		vals = append(vals, strings.ReplaceAll(m[1], "''", "'"))
	}
	return vals
}
