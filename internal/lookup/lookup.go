// Package lookup resolves name-identified reference rows (processes) to their
// ids, creating missing ones on the fly during replace-mode imports.
//
// The cache is a write-through shadow of the lookup table for one run: loaded
// up front, grown as rows are created, discarded at run end. The store stays
// the source of truth; the design assumes no concurrent writer grows the
// table mid-run.
package lookup

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"
	"time"

	"qimport/internal/normalize"
	"qimport/internal/schema"
	"qimport/internal/storage"
)

// Resolver maps normalized lookup names to row ids.
type Resolver struct {
	q       storage.Querier
	dialect storage.Dialect
	table   string

	idCol      string
	nameCol    string
	slugCol    string // optional
	createdCol string // optional

	// create enables auto-creation of missing names. Patch runs resolve only.
	create bool
	dryRun bool

	cache   map[string]int64
	maxID   int64
	created int
}

// fieldSpecs is the lookup table's own little import contract.
var fieldSpecs = []schema.FieldSpec{
	{Field: "id", Aliases: []string{"id"}, Required: true},
	{Field: "name", Aliases: []string{"name"}, Required: true},
	{Field: "slug", Aliases: []string{"slug"}},
	{Field: "createdAt", Aliases: []string{"createdAt", "created_at"}},
}

// NewResolver binds a resolver against the introspected lookup table and
// preloads the cache with every existing row.
func NewResolver(ctx context.Context, q storage.Querier, d storage.Dialect, t *schema.Table, create, dryRun bool) (*Resolver, error) {
	fields, err := schema.Resolve(t, fieldSpecs)
	if err != nil {
		return nil, fmt.Errorf("lookup table %s: %w", t.Name, err)
	}
	r := &Resolver{
		q:          q,
		dialect:    d,
		table:      t.Name,
		idCol:      fields.Col("id"),
		nameCol:    fields.Col("name"),
		slugCol:    fields.Col("slug"),
		createdCol: fields.Col("createdAt"),
		create:     create,
		dryRun:     dryRun,
		cache:      map[string]int64{},
	}
	if err := r.load(ctx); err != nil {
		return nil, err
	}
	return r, nil
}

// load fills the cache from the store.
func (r *Resolver) load(ctx context.Context) error {
	query := fmt.Sprintf("SELECT %s, %s FROM %s",
		r.dialect.Quote(r.idCol), r.dialect.Quote(r.nameCol), r.dialect.Quote(r.table))
	rows, err := r.q.QueryContext(ctx, query)
	if err != nil {
		return fmt.Errorf("load %s: %w", r.table, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id   int64
			name sql.NullString
		)
		if err := rows.Scan(&id, &name); err != nil {
			return fmt.Errorf("load %s: %w", r.table, err)
		}
		// NULL or blank names are row-local data quality, not a fatal load
		// error; they can never be resolved so they are not cached.
		if k := cacheKey(name.String); name.Valid && k != "" {
			r.cache[k] = id
		}
		if id > r.maxID {
			r.maxID = id
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("load %s: %w", r.table, err)
	}
	log.Printf("lookup: loaded %d %s rows", len(r.cache), r.table)
	return nil
}

// cacheKey normalizes a name for identity: trim, collapse whitespace,
// case-fold. "Process A" and " process  a " are the same entity.
func cacheKey(name string) string {
	return strings.ToLower(normalize.Text(name))
}

// Resolve returns the id for name without creating anything.
func (r *Resolver) Resolve(name string) (int64, bool) {
	id, ok := r.cache[cacheKey(name)]
	return id, ok
}

// ResolveOrCreate returns the id for name, creating a new row when the
// resolver allows creation. ok is false when the name cannot be resolved and
// creation is disabled; that is a data-quality signal, not an error.
//
// In dry-run mode creation assigns a synthetic id (max cached id + 1) so
// downstream key computation stays reproducible without writing. Synthetic
// ids are a preview only; they are not authoritative and a live run may
// assign different ones.
func (r *Resolver) ResolveOrCreate(ctx context.Context, name string) (int64, bool, error) {
	key := cacheKey(name)
	if key == "" {
		return 0, false, nil
	}
	if id, ok := r.cache[key]; ok {
		return id, true, nil
	}
	if !r.create {
		return 0, false, nil
	}

	name = normalize.Text(name)
	if r.dryRun {
		id := r.maxID + 1
		r.maxID = id
		r.cache[key] = id
		r.created++
		log.Printf("lookup: dry-run, would create %q -> id=%d", name, id)
		return id, true, nil
	}

	cols := []string{r.nameCol}
	vals := []any{name}
	if r.slugCol != "" {
		cols = append(cols, r.slugCol)
		vals = append(vals, normalize.Slug(name))
	}
	if r.createdCol != "" {
		cols = append(cols, r.createdCol)
		vals = append(vals, time.Now().UTC())
	}

	id, err := r.dialect.InsertID(ctx, r.q, r.table, r.idCol, cols, vals)
	if err != nil {
		return 0, false, fmt.Errorf("create %s %q: %w", r.table, name, err)
	}
	if id > r.maxID {
		r.maxID = id
	}
	r.cache[key] = id
	r.created++
	log.Printf("lookup: created %q -> id=%d", name, id)
	return id, true, nil
}

// Created reports how many rows this run created (or would create, dry-run).
func (r *Resolver) Created() int { return r.created }
