// Package engine runs the import: it binds the questions table's import
// contract against the introspected schema, then walks the parsed rows and
// reconciles each one into the store according to the run mode.
//
// Replace mode rebuilds one referential's partition from scratch: purge, then
// insert every surviving row. Patch mode updates rows in place, located by a
// chain of matchers, and never inserts or deletes. Both modes flow through
// the same batch so a dry run exercises the identical code path with writes
// suppressed.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/zeebo/xxh3"

	"qimport/internal/identity"
	"qimport/internal/lookup"
	"qimport/internal/normalize"
	"qimport/internal/schema"
	"qimport/internal/storage"
	"qimport/pkg/records"
)

const (
	ModeReplace = "replace"
	ModePatch   = "patch"
)

const (
	defaultQuestionType = "check"
	defaultCriticality  = "medium"
	defaultArticle      = "N/A"
)

// Options configures one run.
type Options struct {
	Mode                string
	ReferentialID       int
	DefaultEconomicRole string
	QuestionsTable      string
	ProcessTable        string
	BatchSize           int
	DryRun              bool
}

// contract lists the semantic fields of the questions table. Which fields
// are required depends on the mode: replace needs everything an insert
// touches, patch only needs to locate rows and write the patchable columns.
func contract(mode string) []schema.FieldSpec {
	replace := mode == ModeReplace
	return []schema.FieldSpec{
		{Field: "id", Aliases: []string{"id"}, Required: mode == ModePatch},
		{Field: "referentialId", Aliases: []string{"referentialId", "referential_id"}, Required: true},
		{Field: "questionKey", Aliases: []string{"questionKey", "question_key"}, Required: true},
		{Field: "processId", Aliases: []string{"processId", "process_id"}, Required: replace},
		{Field: "article", Aliases: []string{"article"}, Required: replace},
		{Field: "questionText", Aliases: []string{"questionText", "question_text"}, Required: replace},
		{Field: "displayOrder", Aliases: []string{"displayOrder", "display_order"}, Required: replace},
		{Field: "title", Aliases: []string{"title"}},
		{Field: "questionType", Aliases: []string{"questionType", "question_type"}},
		{Field: "expectedEvidence", Aliases: []string{"expectedEvidence", "expected_evidence"}},
		{Field: "interviewFunctions", Aliases: []string{"interviewFunctions", "interview_functions"}},
		{Field: "criticality", Aliases: []string{"criticality"}},
		{Field: "risk", Aliases: []string{"risk"}},
		{Field: "risks", Aliases: []string{"risks"}},
		{Field: "annexe", Aliases: []string{"annexe", "annex", "notes"}},
		{Field: "economicRole", Aliases: []string{"economicRole", "economic_role"}},
		{Field: "applicableProcesses", Aliases: []string{"applicableProcesses", "applicable_processes"}},
		{Field: "code", Aliases: []string{"code"}},
		{Field: "createdAt", Aliases: []string{"createdAt", "created_at"}},
	}
}

// patchFields are the semantic fields a patch run is allowed to overwrite.
var patchFields = []string{"risk", "risks", "expectedEvidence"}

// Engine reconciles parsed rows into the questions table.
type Engine struct {
	store  *storage.Store
	batch  *storage.Batch
	table  *schema.Table
	fields schema.FieldMap
	procs  *lookup.Resolver
	opt    Options

	matchers  []matcher
	patchCols []string

	insertFields []string
	insertSQL    string

	seen     map[uint64]struct{}
	order    map[orderKey]int
	counters Counters
}

type orderKey struct {
	processID int64
	article   string
}

// New introspects both target tables, binds the import contract and preloads
// the process lookup. Contract violations surface here, before any row is
// touched.
func New(ctx context.Context, store *storage.Store, opt Options) (*Engine, error) {
	if opt.Mode != ModeReplace && opt.Mode != ModePatch {
		return nil, fmt.Errorf("unknown mode %q", opt.Mode)
	}

	table, err := store.Introspect(ctx, opt.QuestionsTable)
	if err != nil {
		return nil, err
	}
	fields, err := schema.Resolve(table, contract(opt.Mode))
	if err != nil {
		return nil, err
	}

	e := &Engine{
		store:  store,
		batch:  storage.NewBatch(store, opt.BatchSize, opt.DryRun),
		table:  table,
		fields: fields,
		opt:    opt,
		seen:   map[uint64]struct{}{},
		order:  map[orderKey]int{},
	}

	procTable, err := store.Introspect(ctx, opt.ProcessTable)
	if err != nil {
		return nil, err
	}
	e.procs, err = lookup.NewResolver(ctx, e.batch, store.Dialect, procTable,
		opt.Mode == ModeReplace, opt.DryRun)
	if err != nil {
		return nil, err
	}

	switch opt.Mode {
	case ModeReplace:
		e.buildInsertPlan()
	case ModePatch:
		for _, f := range patchFields {
			if fields.Col(f) != "" {
				e.patchCols = append(e.patchCols, fields.Col(f))
			}
		}
		if len(e.patchCols) == 0 {
			return nil, fmt.Errorf("table %q has none of the patchable columns (risk, risks, expectedEvidence)", opt.QuestionsTable)
		}
		e.matchers = []matcher{&keyMatcher{e}, &codeMatcher{e}, &rowMatcher{e}}
	}
	return e, nil
}

func (e *Engine) idCol() string { return e.fields.Col("id") }

// buildInsertPlan fixes the insert column order once so every row reuses the
// same statement text.
func (e *Engine) buildInsertPlan() {
	ordered := []string{
		"referentialId", "processId", "questionKey", "article", "title",
		"questionText", "questionType", "expectedEvidence", "criticality",
		"risk", "risks", "interviewFunctions", "applicableProcesses",
		"annexe", "economicRole", "code", "displayOrder", "createdAt",
	}
	cols := make([]string, 0, len(ordered))
	for _, f := range ordered {
		if c := e.fields.Col(f); c != "" {
			e.insertFields = append(e.insertFields, f)
			cols = append(cols, c)
		}
	}
	e.insertSQL = storage.InsertSQL(e.store.Dialect, e.opt.QuestionsTable, cols)
}

// Run processes every parsed record and returns the outcome counters. On
// error the batch transaction is rolled back; the store is left as it was.
func (e *Engine) Run(ctx context.Context, recs []records.Record) (c *Counters, err error) {
	defer func() {
		if err != nil {
			e.batch.Rollback()
		}
	}()

	before, err := e.partitionCount(ctx)
	if err != nil {
		return nil, err
	}
	e.counters.PartitionBefore = before

	if e.opt.Mode == ModeReplace {
		if err := e.purge(ctx); err != nil {
			return nil, err
		}
	}

	for i, rec := range recs {
		e.counters.Parsed++
		in := FromRecord(rec, i+1)

		if in.QuestionText == "" || in.ProcessName == "" {
			e.counters.Skipped++
			continue
		}
		if in.Article == "" {
			in.Article = defaultArticle
		}

		pid, ok, err := e.procs.ResolveOrCreate(ctx, in.ProcessName)
		if err != nil {
			return nil, err
		}
		if !ok {
			log.Printf("row %d: unknown process %q, skipping", in.Row, in.ProcessName)
			e.counters.MissingLookup++
			continue
		}

		key := identity.Key(
			strconv.Itoa(e.opt.ReferentialID),
			in.Article,
			strconv.FormatInt(pid, 10),
			in.QuestionText,
		)

		switch e.opt.Mode {
		case ModeReplace:
			h := xxh3.HashString(key)
			if _, dup := e.seen[h]; dup {
				e.counters.Duplicates++
				continue
			}
			e.seen[h] = struct{}{}
			if err := e.insert(ctx, in, pid, key); err != nil {
				return nil, err
			}
			e.counters.Inserted++
		case ModePatch:
			if err := e.patch(ctx, in, pid, key); err != nil {
				return nil, err
			}
		}
	}

	e.counters.ProcessesCreated = e.procs.Created()

	if e.opt.DryRun {
		// Writes were suppressed, so a live recount would show the old
		// partition. Derive the after-count from what the run would do.
		switch e.opt.Mode {
		case ModeReplace:
			e.counters.PartitionAfter = e.counters.Inserted
		case ModePatch:
			e.counters.PartitionAfter = before
		}
	} else {
		after, err := e.partitionCount(ctx)
		if err != nil {
			return nil, err
		}
		e.counters.PartitionAfter = after
	}

	if err := e.batch.Flush(); err != nil {
		return nil, err
	}
	return &e.counters, nil
}

// partitionCount counts the rows belonging to this run's referential.
func (e *Engine) partitionCount(ctx context.Context) (int, error) {
	d := e.store.Dialect
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s = %s",
		d.Quote(e.opt.QuestionsTable), d.Quote(e.fields.Col("referentialId")), d.Placeholder(1))
	var n int
	if err := e.batch.QueryRowContext(ctx, query, e.opt.ReferentialID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count partition: %w", err)
	}
	return n, nil
}

// purge deletes the referential's existing rows. Other referentials sharing
// the table are untouched.
func (e *Engine) purge(ctx context.Context) error {
	d := e.store.Dialect
	query := fmt.Sprintf("DELETE FROM %s WHERE %s = %s",
		d.Quote(e.opt.QuestionsTable), d.Quote(e.fields.Col("referentialId")), d.Placeholder(1))
	if _, err := e.batch.ExecContext(ctx, query, e.opt.ReferentialID); err != nil {
		return fmt.Errorf("purge referential %d: %w", e.opt.ReferentialID, err)
	}
	log.Printf("purged referential %d (%d rows before)", e.opt.ReferentialID, e.counters.PartitionBefore)
	return nil
}

func (e *Engine) insert(ctx context.Context, in *Incoming, pid int64, key string) error {
	vals := make([]any, len(e.insertFields))
	for i, f := range e.insertFields {
		vals[i] = e.fieldValue(f, in, pid, key)
	}
	if _, err := e.batch.ExecContext(ctx, e.insertSQL, vals...); err != nil {
		return fmt.Errorf("insert row %d (process=%q article=%q question=%q): %w",
			in.Row, in.ProcessName, in.Article, normalize.Clip(in.QuestionText, 80), err)
	}
	return nil
}

// fieldValue computes the stored value for one semantic field of one row.
func (e *Engine) fieldValue(field string, in *Incoming, pid int64, key string) any {
	col, _ := e.table.Column(e.fields.Col(field))
	switch field {
	case "referentialId":
		return e.opt.ReferentialID
	case "processId":
		return pid
	case "questionKey":
		return key
	case "article":
		return e.clipped(in.Article, col)
	case "title":
		return e.clipped(in.Title, col)
	case "questionText":
		return nilIfEmpty(in.QuestionText)
	case "questionType":
		return e.categorical(in.QuestionType, col, defaultQuestionType)
	case "expectedEvidence":
		return nilIfEmpty(in.Evidence)
	case "criticality":
		return e.categorical(in.Criticality, col, defaultCriticality)
	case "risk":
		return nilIfEmpty(in.Risk)
	case "risks":
		return jsonList(splitList(in.Risk))
	case "interviewFunctions":
		return jsonList(splitList(in.Functions))
	case "applicableProcesses":
		return jsonList([]string{in.ProcessName})
	case "annexe":
		return nilIfEmpty(in.Annexe)
	case "economicRole":
		// Schemas that allow NULL leave the role unscoped; the rest get the
		// configured default so inserts never trip a NOT NULL constraint.
		if col.Nullable {
			return nil
		}
		return e.opt.DefaultEconomicRole
	case "code":
		return nilIfEmpty(in.Code)
	case "displayOrder":
		return e.nextOrder(pid, in.Article)
	case "createdAt":
		return time.Now().UTC()
	}
	return nil
}

// categorical normalizes a value against the column's enum domain when it has
// one; raw (or the default) passes through otherwise.
func (e *Engine) categorical(raw string, col schema.Column, def string) any {
	if raw == "" {
		raw = def
	}
	if len(col.Enum) > 0 {
		return normalize.Enum(raw, col.Enum, def)
	}
	return e.clipped(raw, col)
}

// clipped truncates to the column's declared width, NULL when empty.
func (e *Engine) clipped(s string, col schema.Column) any {
	if s == "" {
		return nil
	}
	if col.MaxLen > 0 {
		return normalize.Clip(s, col.MaxLen)
	}
	return s
}

// nextOrder hands out the display position within one (process, article)
// group, in source order.
func (e *Engine) nextOrder(pid int64, article string) int {
	k := orderKey{pid, article}
	e.order[k]++
	return e.order[k]
}

// patch locates the row for in and overwrites its patchable columns. Rows no
// matcher can place are counted, logged and left alone.
func (e *Engine) patch(ctx context.Context, in *Incoming, pid int64, key string) error {
	for _, m := range e.matchers {
		id, ok, err := m.tryMatch(ctx, e.batch, in, pid, key)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		if err := e.patchRow(ctx, in, id); err != nil {
			return err
		}
		if m.name() == "key" {
			e.counters.UpdatedByKey++
		} else {
			e.counters.UpdatedByFallback++
		}
		return nil
	}
	log.Printf("row %d: no existing row found (process=%q article=%q), skipping", in.Row, in.ProcessName, in.Article)
	e.counters.NotFound++
	return nil
}

func (e *Engine) patchRow(ctx context.Context, in *Incoming, id int64) error {
	vals := make([]any, 0, len(e.patchCols)+1)
	for _, col := range e.patchCols {
		switch col {
		case e.fields.Col("risk"):
			vals = append(vals, nilIfEmpty(in.Risk))
		case e.fields.Col("risks"):
			vals = append(vals, jsonList(splitList(in.Risk)))
		case e.fields.Col("expectedEvidence"):
			vals = append(vals, nilIfEmpty(in.Evidence))
		}
	}
	query := storage.UpdateSQL(e.store.Dialect, e.opt.QuestionsTable, e.patchCols, []string{e.idCol()})
	vals = append(vals, id)
	if _, err := e.batch.ExecContext(ctx, query, vals...); err != nil {
		return fmt.Errorf("patch row %d (id=%d process=%q article=%q): %w",
			in.Row, id, in.ProcessName, in.Article, err)
	}
	return nil
}

func nilIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// jsonList stores a string slice as its JSON encoding, "[]" when empty.
func jsonList(items []string) string {
	b, err := json.Marshal(items)
	if err != nil {
		return "[]"
	}
	return string(b)
}
