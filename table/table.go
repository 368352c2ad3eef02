package table

import (
	"sort"

	"github.com/google/btree"
)

// Table holds rows ordered by variant and then numerically by L1 size, L2
// size, L1 associativity and L2 associativity. Storing a row for a
// configuration that is already present replaces it.
type Table struct {
	rows *btree.BTreeG[Row]
}

func rowLess(a, b Row) bool {
	return a.Config.Less(b.Config)
}

// New creates an empty table.
func New() *Table {
	return &Table{
		rows: btree.NewG[Row](8, rowLess),
	}
}

// FromRows creates a table holding rows.
func FromRows(rows []Row) *Table {
	t := New()
	for _, r := range rows {
		t.Put(r)
	}

	return t
}

// Put stores a row.
func (t *Table) Put(r Row) {
	t.rows.ReplaceOrInsert(r)
}

// Get returns the row of a configuration.
func (t *Table) Get(r Row) (Row, bool) {
	return t.rows.Get(r)
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return t.rows.Len()
}

// Rows returns all rows in order.
func (t *Table) Rows() []Row {
	rows := make([]Row, 0, t.rows.Len())

	t.rows.Ascend(func(r Row) bool {
		rows = append(rows, r)
		return true
	})

	return rows
}

// Filter returns the rows, in order, for which keep returns true.
func (t *Table) Filter(keep func(Row) bool) []Row {
	var rows []Row

	t.rows.Ascend(func(r Row) bool {
		if keep(r) {
			rows = append(rows, r)
		}
		return true
	})

	return rows
}

// Variants returns the sorted distinct variant labels.
func (t *Table) Variants() []string {
	return Variants(t.Rows())
}

// HasVariants tells whether any row is labeled with a variant.
func (t *Table) HasVariants() bool {
	found := false

	t.rows.Ascend(func(r Row) bool {
		found = r.Config.Variant != ""
		return !found
	})

	return found
}

// Variants returns the sorted distinct variant labels of rows.
func Variants(rows []Row) []string {
	seen := make(map[string]bool)
	var variants []string

	for _, r := range rows {
		if !seen[r.Config.Variant] {
			seen[r.Config.Variant] = true
			variants = append(variants, r.Config.Variant)
		}
	}

	sort.Strings(variants)

	return variants
}
