package replica

import (
	"fmt"
	"strings"

	"github.com/sandrolain/replica-bridge/src/common/pgident"
)

// SQL text builders for the replication statements. All identifiers passed
// here have already been validated by pgident; quoting happens at build time
// so no raw name ever reaches SQL text.

// fetchChangesSQL selects every row whose watermark column is strictly
// greater than the bound timestamp. No ORDER BY: row order is unspecified.
func fetchChangesSQL(d TableDescriptor) string {
	return fmt.Sprintf(
		"SELECT * FROM %s WHERE %s > $1",
		pgident.Qualify(d.Schema, d.Name),
		pgident.Quote(d.WatermarkColumn),
	)
}

// targetColumnsSQL lists the target table's column names in ordinal order.
func targetColumnsSQL() string {
	return `
		SELECT column_name
		FROM information_schema.columns
		WHERE table_schema = $1 AND table_name = $2
		ORDER BY ordinal_position
	`
}

// ensureSchemaSQL creates the staging schema when absent.
func ensureSchemaSQL(schema string) string {
	return "CREATE SCHEMA IF NOT EXISTS " + pgident.Quote(schema)
}

// ensureStagingSQL creates the staging table as a column-shape copy of the
// target table: LIKE without INCLUDING clauses copies column names and types
// but no constraints, indexes or defaults.
func ensureStagingSQL(stagingSchema string, d TableDescriptor) string {
	return fmt.Sprintf(
		"CREATE TABLE IF NOT EXISTS %s (LIKE %s)",
		pgident.Qualify(stagingSchema, d.StagingTable()),
		pgident.Qualify(d.Schema, d.Name),
	)
}

// truncateStagingSQL clears residue left by a prior failed run.
func truncateStagingSQL(stagingSchema string, d TableDescriptor) string {
	return "TRUNCATE TABLE " + pgident.Qualify(stagingSchema, d.StagingTable())
}

// updateFromStagingSQL overwrites every non-key column of target rows whose
// key tuple matches a staging row. Returns ok=false when the table has no
// non-key columns and there is nothing to overwrite.
func updateFromStagingSQL(stagingSchema string, d TableDescriptor, columns []string) (sql string, ok bool) {
	sets := make([]string, 0, len(columns))
	for _, col := range columns {
		if d.IsKeyColumn(col) {
			continue
		}
		sets = append(sets, fmt.Sprintf("%s = src.%s", pgident.Quote(col), pgident.Quote(col)))
	}
	if len(sets) == 0 {
		return "", false
	}

	return fmt.Sprintf(
		"UPDATE %s AS tgt SET %s FROM %s AS src WHERE %s",
		pgident.Qualify(d.Schema, d.Name),
		strings.Join(sets, ", "),
		pgident.Qualify(stagingSchema, d.StagingTable()),
		keyJoinCondition(d, "tgt", "src"),
	), true
}

// matchedCountSQL counts staging rows whose key tuple already exists in the
// target. Used instead of an UPDATE when every column is a key column.
func matchedCountSQL(stagingSchema string, d TableDescriptor) string {
	return fmt.Sprintf(
		"SELECT COUNT(*) FROM %s AS src WHERE EXISTS (SELECT 1 FROM %s AS tgt WHERE %s)",
		pgident.Qualify(stagingSchema, d.StagingTable()),
		pgident.Qualify(d.Schema, d.Name),
		keyJoinCondition(d, "tgt", "src"),
	)
}

// insertMissingSQL inserts every staging row with no matching key tuple in
// the target.
func insertMissingSQL(stagingSchema string, d TableDescriptor, columns []string) string {
	quoted := make([]string, len(columns))
	sourced := make([]string, len(columns))
	for i, col := range columns {
		quoted[i] = pgident.Quote(col)
		sourced[i] = "src." + pgident.Quote(col)
	}

	return fmt.Sprintf(
		"INSERT INTO %s (%s) SELECT %s FROM %s AS src WHERE NOT EXISTS (SELECT 1 FROM %s AS tgt WHERE %s)",
		pgident.Qualify(d.Schema, d.Name),
		strings.Join(quoted, ", "),
		strings.Join(sourced, ", "),
		pgident.Qualify(stagingSchema, d.StagingTable()),
		pgident.Qualify(d.Schema, d.Name),
		keyJoinCondition(d, "tgt", "src"),
	)
}

// keyJoinCondition builds the equi-join on the full key-column tuple.
func keyJoinCondition(d TableDescriptor, left, right string) string {
	conds := make([]string, len(d.KeyColumns))
	for i, col := range d.KeyColumns {
		conds[i] = fmt.Sprintf("%s.%s = %s.%s", left, pgident.Quote(col), right, pgident.Quote(col))
	}
	return strings.Join(conds, " AND ")
}

// ensureRunsTableSQL creates the run-metadata table when absent.
func ensureRunsTableSQL(schema, table string) string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		run_id UUID PRIMARY KEY,
		schema_name TEXT NOT NULL,
		table_name TEXT NOT NULL,
		last_run_datetime TIMESTAMPTZ NOT NULL,
		rows_inserted BIGINT NOT NULL,
		rows_updated BIGINT NOT NULL,
		completed_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`, pgident.Qualify(schema, table))
}

// maxWatermarkSQL reads the highest recorded run watermark for one table.
func maxWatermarkSQL(schema, table string) string {
	return fmt.Sprintf(
		"SELECT MAX(last_run_datetime) FROM %s WHERE schema_name = $1 AND table_name = $2",
		pgident.Qualify(schema, table),
	)
}

// insertRunSQL records a completed run.
func insertRunSQL(schema, table string) string {
	return fmt.Sprintf(
		"INSERT INTO %s (run_id, schema_name, table_name, last_run_datetime, rows_inserted, rows_updated) VALUES ($1, $2, $3, $4, $5, $6)",
		pgident.Qualify(schema, table),
	)
}
