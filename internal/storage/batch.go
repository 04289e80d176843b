package storage

import (
	"context"
	"database/sql"
	"log"
	"time"
)

// Batch is the transaction controller for one import run. It implements
// Querier so the engine and the lookup resolver never branch on mode:
//
//   - Writes (ExecContext) run inside a lazily-begun transaction and trigger
//     a commit every Size writes, bounding long-running-transaction risk.
//     In dry-run mode writes are suppressed entirely and report zero rows.
//   - Reads run inside the same transaction when one is open, so matchers
//     observe the run's own uncommitted writes; in dry-run mode they go
//     straight to the pool.
//
// A mid-run failure unwinds through Rollback, discarding the whole open
// batch: no partial batch commit survives an error.
type Batch struct {
	store  *Store
	size   int
	dryRun bool

	tx      *sql.Tx
	pending int
	commits int
	start   time.Time
}

// NewBatch creates a controller committing every size writes (size <= 0
// commits only at Flush).
func NewBatch(store *Store, size int, dryRun bool) *Batch {
	return &Batch{store: store, size: size, dryRun: dryRun, start: time.Now()}
}

// DryRun reports whether writes are suppressed.
func (b *Batch) DryRun() bool { return b.dryRun }

// q returns the querier for the current mode, starting a transaction when a
// live run needs one.
func (b *Batch) q(ctx context.Context) (Querier, error) {
	if b.dryRun {
		return b.store.DB, nil
	}
	if b.tx == nil {
		tx, err := b.store.DB.BeginTx(ctx, nil)
		if err != nil {
			return nil, err
		}
		b.tx = tx
	}
	return b.tx, nil
}

// ExecContext implements Querier. Dry-run mode performs no write but still
// returns a usable zero Result so call sites stay mode-agnostic.
func (b *Batch) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	if b.dryRun {
		return noopResult{}, nil
	}
	q, err := b.q(ctx)
	if err != nil {
		return nil, err
	}
	res, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	b.pending++
	if b.size > 0 && b.pending >= b.size {
		if err := b.commit(); err != nil {
			return nil, err
		}
	}
	return res, nil
}

// QueryContext implements Querier.
func (b *Batch) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	q, err := b.q(ctx)
	if err != nil {
		return nil, err
	}
	return q.QueryContext(ctx, query, args...)
}

// QueryRowContext implements Querier.
func (b *Batch) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	q, err := b.q(ctx)
	if err != nil {
		// database/sql has no way to construct an errored *sql.Row; a closed
		// transaction here means the run is already failing, so surface the
		// problem through the underlying pool instead.
		return b.store.DB.QueryRowContext(ctx, query, args...)
	}
	return q.QueryRowContext(ctx, query, args...)
}

// commit closes the current transaction and logs batch progress.
func (b *Batch) commit() error {
	if b.tx == nil {
		return nil
	}
	err := b.tx.Commit()
	b.tx = nil
	if err != nil {
		return err
	}
	b.commits++
	log.Printf("batch #%d: committed writes=%d elapsed=%s",
		b.commits, b.pending, time.Since(b.start).Truncate(time.Millisecond))
	b.pending = 0
	return nil
}

// Flush commits whatever remains open. Call once after a successful run.
func (b *Batch) Flush() error {
	if b.dryRun {
		return nil
	}
	return b.commit()
}

// Rollback discards the open transaction, if any. Safe to call after Flush or
// on the error path regardless of state.
func (b *Batch) Rollback() {
	if b.tx == nil {
		return
	}
	if err := b.tx.Rollback(); err != nil {
		log.Printf("rollback: %v", err)
	}
	b.tx = nil
	b.pending = 0
}

// noopResult is the Result returned for suppressed dry-run writes.
type noopResult struct{}

func (noopResult) LastInsertId() (int64, error) { return 0, nil }
func (noopResult) RowsAffected() (int64, error) { return 0, nil }

var _ Querier = (*Batch)(nil)
