package replica

import (
	"fmt"
	"sort"
	"strings"
)

// Batch is an in-memory tabular set of changed rows. Column order is fixed
// when the batch is materialized by the fetcher and rows are stored
// column-for-column in that order. No transformation is ever applied.
type Batch struct {
	Columns []string
	Rows    [][]any
}

// Len returns the number of rows in the batch.
func (b *Batch) Len() int {
	if b == nil {
		return 0
	}
	return len(b.Rows)
}

// IsEmpty reports whether the batch holds no rows.
func (b *Batch) IsEmpty() bool { return b.Len() == 0 }

// columnIndex returns the position of name in the batch columns, or -1.
func (b *Batch) columnIndex(name string) int {
	for i, c := range b.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// MatchesColumns verifies that the batch columns are exactly the given set,
// order-insensitive. The staging table mirrors the target shape, so any
// missing or extra column means the batch cannot be loaded.
func (b *Batch) MatchesColumns(cols []string) error {
	if len(b.Columns) != len(cols) {
		return fmt.Errorf("batch has %d columns, target table has %d", len(b.Columns), len(cols))
	}
	got := append([]string(nil), b.Columns...)
	want := append([]string(nil), cols...)
	sort.Strings(got)
	sort.Strings(want)
	for i := range got {
		if got[i] != want[i] {
			return fmt.Errorf("batch columns %v do not match target columns %v", b.Columns, cols)
		}
	}
	return nil
}

// FirstDuplicateKey scans the batch for two rows sharing the same key-column
// tuple and returns a printable form of the first duplicate found. Reconcile
// counts are undefined for batches with duplicate keys, so such batches are
// rejected before any store access.
func (b *Batch) FirstDuplicateKey(keyColumns []string) (string, bool, error) {
	idx := make([]int, len(keyColumns))
	for i, col := range keyColumns {
		pos := b.columnIndex(col)
		if pos < 0 {
			return "", false, fmt.Errorf("key column %q not present in batch", col)
		}
		idx[i] = pos
	}

	seen := make(map[string]struct{}, b.Len())
	parts := make([]string, len(idx))
	for _, row := range b.Rows {
		for i, pos := range idx {
			parts[i] = fmt.Sprintf("%v", row[pos])
		}
		key := strings.Join(parts, "\x1f")
		if _, dup := seen[key]; dup {
			return strings.Join(parts, ", "), true, nil
		}
		seen[key] = struct{}{}
	}
	return "", false, nil
}
