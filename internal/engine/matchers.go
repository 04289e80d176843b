package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"qimport/internal/storage"
)

// A matcher implements one strategy for locating the existing row that an
// incoming patch record refers to. Strategies are tried in declaration order;
// the first one that yields a row wins and the rest are not consulted.
type matcher interface {
	name() string
	tryMatch(ctx context.Context, q storage.Querier, in *Incoming, processID int64, key string) (int64, bool, error)
}

// keyMatcher matches on the stable identity key. This is the primary
// strategy: the key survives cosmetic edits to every column it is not
// derived from.
type keyMatcher struct{ e *Engine }

func (m *keyMatcher) name() string { return "key" }

func (m *keyMatcher) tryMatch(ctx context.Context, q storage.Querier, in *Incoming, processID int64, key string) (int64, bool, error) {
	e := m.e
	query := storage.SelectWhereSQL(e.store.Dialect, e.idCol(), e.opt.QuestionsTable,
		[]string{e.fields.Col("questionKey"), e.fields.Col("referentialId")})
	var id int64
	err := q.QueryRowContext(ctx, query, key, e.opt.ReferentialID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("match by key: %w", err)
	}
	return id, true, nil
}

// codeMatcher matches on the human-assigned question code, for rows imported
// before identity keys existed. Skipped when either side lacks a code.
type codeMatcher struct{ e *Engine }

func (m *codeMatcher) name() string { return "code" }

func (m *codeMatcher) tryMatch(ctx context.Context, q storage.Querier, in *Incoming, processID int64, key string) (int64, bool, error) {
	e := m.e
	codeCol := e.fields.Col("code")
	if codeCol == "" || in.Code == "" {
		return 0, false, nil
	}
	query := storage.SelectWhereSQL(e.store.Dialect, e.idCol(), e.opt.QuestionsTable,
		[]string{e.fields.Col("referentialId"), codeCol})
	var id int64
	err := q.QueryRowContext(ctx, query, e.opt.ReferentialID, in.Code).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("match by code %q: %w", in.Code, err)
	}
	return id, true, nil
}

// rowMatcher is the last resort: exact match on the row's discriminant
// columns. It only fires when exactly one row matches; an ambiguous match is
// treated as no match rather than risking a patch of the wrong row.
type rowMatcher struct{ e *Engine }

func (m *rowMatcher) name() string { return "row" }

func (m *rowMatcher) tryMatch(ctx context.Context, q storage.Querier, in *Incoming, processID int64, key string) (int64, bool, error) {
	e := m.e
	procCol := e.fields.Col("processId")
	artCol := e.fields.Col("article")
	textCol := e.fields.Col("questionText")
	if procCol == "" || artCol == "" || textCol == "" || in.QuestionText == "" {
		return 0, false, nil
	}
	query := storage.SelectWhereSQL(e.store.Dialect, e.idCol(), e.opt.QuestionsTable,
		[]string{e.fields.Col("referentialId"), procCol, artCol, textCol})
	rows, err := q.QueryContext(ctx, query, e.opt.ReferentialID, processID, in.Article, in.QuestionText)
	if err != nil {
		return 0, false, fmt.Errorf("match by row: %w", err)
	}
	defer rows.Close()

	var (
		id int64
		n  int
	)
	for rows.Next() {
		if n == 0 {
			if err := rows.Scan(&id); err != nil {
				return 0, false, fmt.Errorf("match by row: %w", err)
			}
		}
		if n++; n > 1 {
			break
		}
	}
	if err := rows.Err(); err != nil {
		return 0, false, fmt.Errorf("match by row: %w", err)
	}
	return id, n == 1, nil
}
