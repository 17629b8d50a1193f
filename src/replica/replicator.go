package replica

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// WatermarkStore reads and records per-table run watermarks.
type WatermarkStore interface {
	LastRun(ctx context.Context, d TableDescriptor) (time.Time, error)
	RecordRun(ctx context.Context, run Run) error
}

// Fetcher materializes rows changed since a watermark.
type Fetcher interface {
	FetchChanges(ctx context.Context, d TableDescriptor, since time.Time) (*Batch, error)
}

// Upserter merges a batch into the target table.
type Upserter interface {
	Upsert(ctx context.Context, d TableDescriptor, batch *Batch) (UpsertResult, error)
}

// Notifier publishes per-table reports to an external collaborator. Publish
// failures must never fail the table cycle.
type Notifier interface {
	Publish(report TableReport) error
}

// TableReport is the outcome of one table's replication cycle.
type TableReport struct {
	RunID     uuid.UUID     `json:"run_id"`
	Schema    string        `json:"schema"`
	Table     string        `json:"table"`
	Since     time.Time     `json:"since"`
	Result    UpsertResult  `json:"result"`
	Duration  time.Duration `json:"duration"`
	Succeeded bool          `json:"succeeded"`
	Error     string        `json:"error,omitempty"`
}

// Replicator wires watermark reads, change fetches and upserts into the
// sequential per-table loop. Tables are independent units of work: a failing
// table is reported and the loop continues with the next one.
type Replicator struct {
	watermarks WatermarkStore
	fetcher    Fetcher
	upserter   Upserter
	notifier   Notifier // optional
	slog       *slog.Logger
}

// NewReplicator assembles a replicator. notifier may be nil.
func NewReplicator(watermarks WatermarkStore, fetcher Fetcher, upserter Upserter, notifier Notifier) *Replicator {
	return &Replicator{
		watermarks: watermarks,
		fetcher:    fetcher,
		upserter:   upserter,
		notifier:   notifier,
		slog:       slog.Default().With("context", "Replicator"),
	}
}

// Run processes every table in order. It returns a report per table and the
// joined errors of the tables that failed; a non-nil error therefore means
// at least one table did not replicate, not that the whole run was wasted.
func (r *Replicator) Run(ctx context.Context, tables []TableDescriptor) ([]TableReport, error) {
	reports := make([]TableReport, 0, len(tables))
	var failures []error

	for _, d := range tables {
		report := r.runTable(ctx, d)
		reports = append(reports, report)

		if report.Succeeded {
			r.slog.Info("table replicated",
				"table", d.String(),
				"inserted", report.Result.RowsInserted,
				"updated", report.Result.RowsUpdated,
				"duration", report.Duration,
			)
		} else {
			r.slog.Error("table replication failed", "table", d.String(), "error", report.Error)
			failures = append(failures, fmt.Errorf("table %s: %s", d, report.Error))
		}

		if r.notifier != nil {
			if err := r.notifier.Publish(report); err != nil {
				r.slog.Error("failed to publish report", "table", d.String(), "error", err)
			}
		}
	}

	return reports, errors.Join(failures...)
}

// runTable executes one watermark → fetch → upsert → record cycle.
func (r *Replicator) runTable(ctx context.Context, d TableDescriptor) TableReport {
	report := TableReport{
		RunID:  uuid.New(),
		Schema: d.Schema,
		Table:  d.Name,
	}
	started := time.Now()

	since, err := r.watermarks.LastRun(ctx, d)
	if err != nil {
		return report.failed(started, err)
	}
	report.Since = since

	// The new watermark is captured before fetching: rows modified while
	// this cycle is in flight land in the next window instead of being
	// skipped.
	watermark := time.Now().UTC()

	batch, err := r.fetcher.FetchChanges(ctx, d, since)
	if err != nil {
		return report.failed(started, err)
	}

	result, err := r.upserter.Upsert(ctx, d, batch)
	if err != nil {
		return report.failed(started, err)
	}
	report.Result = result

	err = r.watermarks.RecordRun(ctx, Run{
		RunID:           report.RunID,
		Table:           d,
		LastRunDatetime: watermark,
		RowsInserted:    result.RowsInserted,
		RowsUpdated:     result.RowsUpdated,
	})
	if err != nil {
		// The merge is committed but the watermark is not: the next run
		// replays the same window, which the merge absorbs idempotently.
		return report.failed(started, err)
	}

	report.Succeeded = true
	report.Duration = time.Since(started)
	return report
}

func (t TableReport) failed(started time.Time, err error) TableReport {
	t.Succeeded = false
	t.Error = err.Error()
	t.Duration = time.Since(started)
	return t
}
