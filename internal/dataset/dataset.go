// Package dataset holds the tabular input contract of the analysis pipeline:
// flat key→scalar records plus derived statistics. Derived stats are cached
// and always recomputable from Rows; Rows are never mutated in place.
package dataset

import (
	"sort"
	"sync"
)

const maxCategoricalDistinct = 50

type Record = map[string]any

type Dataset struct {
	Rows    []Record `json:"data"`
	Columns []string `json:"columns"`

	statsOnce sync.Once
	stats     *Stats
}

// New builds a dataset. When columns is empty they are inferred from the
// first row and sorted; callers that care about a specific column order
// should pass it explicitly.
func New(rows []Record, columns []string) *Dataset {
	if len(columns) == 0 && len(rows) > 0 {
		for k := range rows[0] {
			columns = append(columns, k)
		}
		sort.Strings(columns)
	}
	return &Dataset{Rows: rows, Columns: columns}
}

func (d *Dataset) RowCount() int    { return len(d.Rows) }
func (d *Dataset) ColumnCount() int { return len(d.Columns) }

func (d *Dataset) Empty() bool { return len(d.Rows) == 0 }

// Slice returns a new dataset over rows [lo, hi). The backing records are
// shared, not copied; callers must treat rows as read-only.
func (d *Dataset) Slice(lo, hi int) *Dataset {
	if lo < 0 {
		lo = 0
	}
	if hi > len(d.Rows) {
		hi = len(d.Rows)
	}
	if lo > hi {
		lo = hi
	}
	return &Dataset{Rows: d.Rows[lo:hi], Columns: d.Columns}
}

// Concat joins datasets that share a column set into one.
func Concat(parts ...*Dataset) *Dataset {
	out := &Dataset{}
	for _, p := range parts {
		if p == nil {
			continue
		}
		if len(out.Columns) == 0 {
			out.Columns = p.Columns
		}
		out.Rows = append(out.Rows, p.Rows...)
	}
	return out
}

// Stats returns the derived statistics, computing them on first use.
func (d *Dataset) Stats() *Stats {
	d.statsOnce.Do(func() {
		d.stats = computeStats(d)
	})
	return d.stats
}
