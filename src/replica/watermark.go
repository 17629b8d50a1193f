package replica

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Run is one recorded replication cycle for a table. LastRunDatetime is the
// instant captured immediately before fetching changes, so rows modified
// while the cycle was in flight fall into the next window.
type Run struct {
	RunID           uuid.UUID
	Table           TableDescriptor
	LastRunDatetime time.Time
	RowsInserted    int64
	RowsUpdated     int64
}

// PGWatermarkStore reads and records run watermarks in a dedicated
// run-metadata table on the target store. A zero time.Time is the
// "beginning of time" sentinel returned when a table has no recorded runs.
type PGWatermarkStore struct {
	pool   *pgxpool.Pool
	schema string
	table  string
	slog   *slog.Logger
}

// NewPGWatermarkStore ensures the run-metadata table exists and returns a
// store bound to it.
func NewPGWatermarkStore(ctx context.Context, pool *pgxpool.Pool, schema, table string) (*PGWatermarkStore, error) {
	s := &PGWatermarkStore{
		pool:   pool,
		schema: schema,
		table:  table,
		slog:   slog.Default().With("context", "Watermark"),
	}

	if _, err := pool.Exec(ctx, ensureSchemaSQL(schema)); err != nil {
		return nil, &QueryError{Operation: "ensure metadata schema", Err: err}
	}
	if _, err := pool.Exec(ctx, ensureRunsTableSQL(schema, table)); err != nil {
		return nil, &QueryError{Operation: "ensure run-metadata table", Err: err}
	}
	return s, nil
}

// LastRun returns the maximum recorded watermark for the table, or the zero
// time sentinel when no run is recorded. Read-only, no retry.
func (s *PGWatermarkStore) LastRun(ctx context.Context, d TableDescriptor) (time.Time, error) {
	var last *time.Time
	err := s.pool.QueryRow(ctx, maxWatermarkSQL(s.schema, s.table), d.Schema, d.Name).Scan(&last)
	if err != nil {
		if connErr := asConnectionError("target", err); connErr != nil {
			return time.Time{}, connErr
		}
		return time.Time{}, &QueryError{Operation: fmt.Sprintf("watermark read for %s", d), Err: err}
	}
	if last == nil {
		s.slog.Debug("no recorded runs, using beginning-of-time watermark", "table", d.String())
		return time.Time{}, nil
	}
	return last.UTC(), nil
}

// RecordRun persists a completed cycle so the next run starts from its
// watermark.
func (s *PGWatermarkStore) RecordRun(ctx context.Context, run Run) error {
	_, err := s.pool.Exec(ctx, insertRunSQL(s.schema, s.table),
		run.RunID,
		run.Table.Schema,
		run.Table.Name,
		run.LastRunDatetime.UTC(),
		run.RowsInserted,
		run.RowsUpdated,
	)
	if err != nil {
		if connErr := asConnectionError("target", err); connErr != nil {
			return connErr
		}
		return &QueryError{Operation: fmt.Sprintf("run record for %s", run.Table), Err: err}
	}
	return nil
}
