package replica

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// UpsertResult is the only externally observable output of one table cycle.
type UpsertResult struct {
	RowsInserted int64 `json:"rows_inserted"`
	RowsUpdated  int64 `json:"rows_updated"`
}

// UpsertEngine stages a batch into a scratch table and reconciles it against
// the target table by key columns inside a single transaction. The staging
// table is created lazily as a column-shape copy of the target, truncated
// before every load and reused across runs, never dropped.
type UpsertEngine struct {
	pool          *pgxpool.Pool
	stagingSchema string
	slog          *slog.Logger
}

// NewUpsertEngine binds the engine to the target pool and an explicit
// staging schema.
func NewUpsertEngine(pool *pgxpool.Pool, stagingSchema string) *UpsertEngine {
	return &UpsertEngine{
		pool:          pool,
		stagingSchema: stagingSchema,
		slog:          slog.Default().With("context", "Upsert"),
	}
}

// Upsert merges batch into the target table described by d.
//
// On success every batch row is reflected in the target (matched key tuples
// overwritten, the rest inserted) and the returned counts are exact and
// disjoint. On failure the transaction is rolled back and the target table
// is unchanged; staging residue is harmless because it is truncated at the
// start of the next attempt.
func (e *UpsertEngine) Upsert(ctx context.Context, d TableDescriptor, batch *Batch) (UpsertResult, error) {
	var res UpsertResult

	columns, err := e.targetColumns(ctx, d)
	if err != nil {
		return res, err
	}

	if err := batch.MatchesColumns(columns); err != nil {
		return res, &UpsertError{Schema: d.Schema, Table: d.Name, Err: err}
	}
	dup, found, err := batch.FirstDuplicateKey(d.KeyColumns)
	if err != nil {
		return res, &UpsertError{Schema: d.Schema, Table: d.Name, Err: err}
	}
	if found {
		return res, &UpsertError{
			Schema: d.Schema,
			Table:  d.Name,
			Err:    fmt.Errorf("batch contains duplicate key tuple (%s)", dup),
		}
	}

	if batch.IsEmpty() {
		e.slog.Debug("empty batch, nothing to merge", "table", d.String())
		return res, nil
	}

	// DDL runs outside the main transaction: an already existing staging
	// table makes this a no-op.
	if err := e.ensureStaging(ctx, d); err != nil {
		return res, err
	}

	tx, err := e.pool.Begin(ctx)
	if err != nil {
		return res, &UpsertError{Schema: d.Schema, Table: d.Name, Err: err}
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	res, err = e.mergeInTx(ctx, tx, d, batch, columns)
	if err != nil {
		return UpsertResult{}, &UpsertError{Schema: d.Schema, Table: d.Name, Err: err}
	}

	if err := tx.Commit(ctx); err != nil {
		return UpsertResult{}, &UpsertError{Schema: d.Schema, Table: d.Name, Err: err}
	}

	e.slog.Debug("merge committed",
		"table", d.String(),
		"inserted", res.RowsInserted,
		"updated", res.RowsUpdated,
	)
	return res, nil
}

// mergeInTx performs truncate, bulk load and reconcile. Any error aborts the
// caller's transaction.
func (e *UpsertEngine) mergeInTx(ctx context.Context, tx pgx.Tx, d TableDescriptor, batch *Batch, columns []string) (UpsertResult, error) {
	var res UpsertResult

	if _, err := tx.Exec(ctx, truncateStagingSQL(e.stagingSchema, d)); err != nil {
		return res, fmt.Errorf("truncate staging: %w", err)
	}

	copied, err := tx.CopyFrom(ctx,
		pgx.Identifier{e.stagingSchema, d.StagingTable()},
		batch.Columns,
		pgx.CopyFromRows(batch.Rows),
	)
	if err != nil {
		return res, fmt.Errorf("load staging: %w", err)
	}
	if copied != int64(batch.Len()) {
		return res, fmt.Errorf("load staging: copied %d of %d rows", copied, batch.Len())
	}

	// Reconcile: overwrite matched rows first, then insert the rest. Counts
	// come from the command tags, not from re-querying.
	updateSQL, hasNonKey := updateFromStagingSQL(e.stagingSchema, d, columns)
	if hasNonKey {
		tag, err := tx.Exec(ctx, updateSQL)
		if err != nil {
			return res, fmt.Errorf("reconcile update: %w", err)
		}
		res.RowsUpdated = tag.RowsAffected()
	} else {
		// Every column is a key column: nothing to overwrite, but matched
		// rows still count as updated so the totals stay disjoint and
		// complete.
		if err := tx.QueryRow(ctx, matchedCountSQL(e.stagingSchema, d)).Scan(&res.RowsUpdated); err != nil {
			return res, fmt.Errorf("reconcile match count: %w", err)
		}
	}

	tag, err := tx.Exec(ctx, insertMissingSQL(e.stagingSchema, d, batch.Columns))
	if err != nil {
		return res, fmt.Errorf("reconcile insert: %w", err)
	}
	res.RowsInserted = tag.RowsAffected()

	return res, nil
}

// ensureStaging idempotently creates the staging schema and the scratch
// table mirroring the target's column shape (no constraints, no indexes).
func (e *UpsertEngine) ensureStaging(ctx context.Context, d TableDescriptor) error {
	if _, err := e.pool.Exec(ctx, ensureSchemaSQL(e.stagingSchema)); err != nil {
		return &UpsertError{Schema: d.Schema, Table: d.Name, Err: fmt.Errorf("ensure staging schema: %w", err)}
	}
	if _, err := e.pool.Exec(ctx, ensureStagingSQL(e.stagingSchema, d)); err != nil {
		return &UpsertError{Schema: d.Schema, Table: d.Name, Err: fmt.Errorf("ensure staging table: %w", err)}
	}
	return nil
}

// targetColumns reads the target table's column names in ordinal order.
func (e *UpsertEngine) targetColumns(ctx context.Context, d TableDescriptor) ([]string, error) {
	rows, err := e.pool.Query(ctx, targetColumnsSQL(), d.Schema, d.Name)
	if err != nil {
		if connErr := asConnectionError("target", err); connErr != nil {
			return nil, connErr
		}
		return nil, &QueryError{Operation: fmt.Sprintf("column lookup for %s", d), Err: err}
	}
	defer rows.Close()

	var columns []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, &QueryError{Operation: fmt.Sprintf("column lookup for %s", d), Err: err}
		}
		columns = append(columns, name)
	}
	if err := rows.Err(); err != nil {
		return nil, &QueryError{Operation: fmt.Sprintf("column lookup for %s", d), Err: err}
	}
	if len(columns) == 0 {
		return nil, &QueryError{
			Operation: fmt.Sprintf("column lookup for %s", d),
			Err:       fmt.Errorf("table not found or has no columns"),
		}
	}
	return columns, nil
}
