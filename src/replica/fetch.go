package replica

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
)

// PGChangeFetcher materializes changed rows from the source store. Side
// effect free beyond the read: no locks, no ORDER BY, no transformation.
type PGChangeFetcher struct {
	conn *pgx.Conn
	slog *slog.Logger
}

// NewPGChangeFetcher wraps an open source connection.
func NewPGChangeFetcher(conn *pgx.Conn) *PGChangeFetcher {
	return &PGChangeFetcher{
		conn: conn,
		slog: slog.Default().With("context", "Fetcher"),
	}
}

// FetchChanges returns a batch with every row of the table whose watermark
// column is strictly greater than since. With the zero-time sentinel this is
// the full table.
func (f *PGChangeFetcher) FetchChanges(ctx context.Context, d TableDescriptor, since time.Time) (*Batch, error) {
	f.slog.Debug("fetching changes", "table", d.String(), "since", since)

	rows, err := f.conn.Query(ctx, fetchChangesSQL(d), since)
	if err != nil {
		if connErr := asConnectionError("source", err); connErr != nil {
			return nil, connErr
		}
		return nil, &QueryError{Operation: fmt.Sprintf("change fetch for %s", d), Err: err}
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	columns := make([]string, len(fields))
	for i, fd := range fields {
		columns[i] = string(fd.Name)
	}

	batch := &Batch{Columns: columns}
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, &QueryError{Operation: fmt.Sprintf("row scan for %s", d), Err: err}
		}
		batch.Rows = append(batch.Rows, values)
	}
	if err := rows.Err(); err != nil {
		if connErr := asConnectionError("source", err); connErr != nil {
			return nil, connErr
		}
		return nil, &QueryError{Operation: fmt.Sprintf("change fetch for %s", d), Err: err}
	}

	f.slog.Debug("changes fetched", "table", d.String(), "rows", batch.Len())
	return batch, nil
}
