// Package storage contains the store-facing contracts shared by all backends:
// the dialect abstraction, the backend factory, connection retry, and the
// batch transaction controller.
//
// Backends (mysql, postgres, sqlite, mssql) register a Dialect with the
// factory at init time; callers import qimport/internal/storage/all to pull
// every compiled-in backend, then open by driver name. This mirrors how the
// rest of the project stays agnostic of any single database engine.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"sync"

	"qimport/internal/schema"
)

// ErrSchemaNotFound is returned by introspection when the target table does
// not exist. Proceeding without knowing the real schema risks writing to
// nonexistent columns, so callers must treat this as fatal.
var ErrSchemaNotFound = errors.New("storage: table not found")

// Querier is the subset of database/sql shared by *sql.DB and *sql.Tx. The
// engine and the lookup resolver run against a Querier so that live and
// dry-run modes share identical code paths.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Dialect abstracts the per-backend SQL differences the import engine cares
// about. Implementations are stateless.
type Dialect interface {
	// Name is the driver name used in configuration ("mysql", "postgres", ...).
	Name() string

	// Quote escapes a single identifier segment.
	Quote(ident string) string

	// Placeholder renders the n-th (1-based) bind parameter.
	Placeholder(n int) string

	// DSN builds the driver connection string from resolved config.
	DSN(cfg Config) (string, error)

	// Introspect returns the declared columns of table, including nullability,
	// enum domains where the backend has them, and declared character widths.
	// Returns ErrSchemaNotFound (wrapped) when the table does not exist.
	Introspect(ctx context.Context, db *sql.DB, database, table string) (*schema.Table, error)

	// InsertID inserts one row and returns the auto-assigned id of idCol.
	InsertID(ctx context.Context, q Querier, table, idCol string, cols []string, vals []any) (int64, error)
}

var (
	regMu    sync.RWMutex
	dialects = map[string]Dialect{}
)

// Register installs (or replaces) a dialect for the given driver name. It is
// called from backend packages' init functions.
func Register(d Dialect) {
	regMu.Lock()
	defer regMu.Unlock()
	dialects[d.Name()] = d
}

// ByName returns the registered dialect for a driver name.
func ByName(name string) (Dialect, error) {
	regMu.RLock()
	d, ok := dialects[name]
	regMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unsupported driver=%s (registered: %v)", name, Drivers())
	}
	return d, nil
}

// Drivers lists the registered driver names, sorted.
func Drivers() []string {
	regMu.RLock()
	defer regMu.RUnlock()
	out := make([]string, 0, len(dialects))
	for k := range dialects {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Store is one open connection to a target database plus its dialect. The
// introspection cache lives for the Store's (i.e. the run's) lifetime; the
// design assumes no concurrent writer mutates the schema mid-run.
type Store struct {
	DB       *sql.DB
	Dialect  Dialect
	Database string

	tables map[string]*schema.Table
}

// NewStore wraps an already-open *sql.DB. Used by tests and by Open.
func NewStore(db *sql.DB, d Dialect, database string) *Store {
	return &Store{DB: db, Dialect: d, Database: database, tables: map[string]*schema.Table{}}
}

// Introspect returns the column set for table, querying the backend at most
// once per table name per Store.
func (s *Store) Introspect(ctx context.Context, table string) (*schema.Table, error) {
	if t, ok := s.tables[table]; ok {
		return t, nil
	}
	t, err := s.Dialect.Introspect(ctx, s.DB, s.Database, table)
	if err != nil {
		return nil, err
	}
	s.tables[table] = t
	return t, nil
}

// Close releases the underlying pool.
func (s *Store) Close() error { return s.DB.Close() }
