package replica

import (
	"fmt"

	"github.com/sandrolain/replica-bridge/src/common/pgident"
)

// TableDescriptor identifies one replication unit: a schema-qualified table,
// the key columns used for matching, and the column that carries the change
// watermark. Descriptors are immutable and loaded once per run from
// configuration.
type TableDescriptor struct {
	Schema          string
	Name            string
	KeyColumns      []string
	WatermarkColumn string
}

// Validate checks that all required fields are present and that every name
// is a safe PostgreSQL identifier.
func (d TableDescriptor) Validate() error {
	if err := pgident.ValidateAll(d.Schema, d.Name); err != nil {
		return fmt.Errorf("invalid table reference: %w", err)
	}
	if len(d.KeyColumns) == 0 {
		return fmt.Errorf("table %s: at least one key column is required", d)
	}
	seen := make(map[string]struct{}, len(d.KeyColumns))
	for _, col := range d.KeyColumns {
		if err := pgident.Validate(col); err != nil {
			return fmt.Errorf("table %s: invalid key column: %w", d, err)
		}
		if _, dup := seen[col]; dup {
			return fmt.Errorf("table %s: duplicate key column %q", d, col)
		}
		seen[col] = struct{}{}
	}
	if err := pgident.Validate(d.WatermarkColumn); err != nil {
		return fmt.Errorf("table %s: invalid watermark column: %w", d, err)
	}
	if err := pgident.Validate(d.StagingTable()); err != nil {
		return fmt.Errorf("table %s: staging table name: %w", d, err)
	}
	return nil
}

// StagingTable returns the name of the scratch table used for this unit
// inside the staging schema.
func (d TableDescriptor) StagingTable() string {
	return d.Schema + "_" + d.Name
}

// IsKeyColumn reports whether col is one of the key columns.
func (d TableDescriptor) IsKeyColumn(col string) bool {
	for _, k := range d.KeyColumns {
		if k == col {
			return true
		}
	}
	return false
}

func (d TableDescriptor) String() string {
	return d.Schema + "." + d.Name
}
