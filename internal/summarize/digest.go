// Package summarize reduces raw tabular datasets into token-budget-bounded
// digests and splits oversized datasets into per-call batches.
package summarize

import (
	"encoding/json"
	"math"
	"sort"

	"github.com/expovision/marketpulse/internal/dataset"
)

// Digest size limits, matching what the prompt budget was tuned against.
const (
	maxDigestColumns     = 20
	maxMissingEntries    = 10
	maxKeyMetrics        = 5
	maxTimeSeriesColumns = 3
	maxTimeSeriesPoints  = 10
	maxCategoricalValues = 10
	maxInlineSectionSize = 1000 // serialized chars for time_series / categorical_data

	reducedColumns    = 10
	reducedKeyMetrics = 3
)

type MetricSummary struct {
	Mean          float64  `json:"mean"`
	Median        *float64 `json:"median,omitempty"`
	Min           *float64 `json:"min,omitempty"`
	Max           *float64 `json:"max,omitempty"`
	Sum           *float64 `json:"sum,omitempty"`
	Std           *float64 `json:"std,omitempty"`
	FirstValue    *float64 `json:"first_value,omitempty"`
	LastValue     *float64 `json:"last_value,omitempty"`
	ChangePercent float64  `json:"change_percent"`
}

type Digest struct {
	RowCount        int                             `json:"rows_count"`
	ColumnCount     int                             `json:"columns_count"`
	Columns         []string                        `json:"columns"`
	MissingValues   map[string]int                  `json:"missing_values,omitempty"`
	KeyMetrics      map[string]MetricSummary        `json:"key_metrics,omitempty"`
	TimeSeries      map[string][]dataset.TimePoint  `json:"time_series,omitempty"`
	CategoricalData map[string]map[string]int       `json:"categorical_data,omitempty"`
}

// Serialize renders the digest as the JSON handed to the model. Digest
// shapes are small; marshal errors cannot occur for these types.
func (d Digest) Serialize() string {
	b, _ := json.Marshal(d)
	return string(b)
}

// Minimal reports whether the digest is already in its smallest reduced form,
// the floor of the reduction ladder.
func (d Digest) Minimal() bool {
	if len(d.Columns) > reducedColumns || len(d.KeyMetrics) > reducedKeyMetrics {
		return false
	}
	if d.MissingValues != nil || d.TimeSeries != nil || d.CategoricalData != nil {
		return false
	}
	for _, m := range d.KeyMetrics {
		if m.Median != nil || m.Min != nil || m.Max != nil || m.Sum != nil || m.Std != nil || m.FirstValue != nil || m.LastValue != nil {
			return false
		}
	}
	return true
}

// Shrink drops the bulky sections and keeps only the three metrics with the
// largest absolute change, for prompts that must fit a stricter per-call
// ceiling than the digest was originally built against.
func (d Digest) Shrink() Digest {
	d.MissingValues = nil
	d.TimeSeries = nil
	d.CategoricalData = nil
	if len(d.KeyMetrics) <= reducedKeyMetrics {
		return d
	}
	names := make([]string, 0, len(d.KeyMetrics))
	for name := range d.KeyMetrics {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		ci := math.Abs(d.KeyMetrics[names[i]].ChangePercent)
		cj := math.Abs(d.KeyMetrics[names[j]].ChangePercent)
		if ci != cj {
			return ci > cj
		}
		return names[i] < names[j]
	})
	kept := make(map[string]MetricSummary, reducedKeyMetrics)
	for _, name := range names[:reducedKeyMetrics] {
		kept[name] = d.KeyMetrics[name]
	}
	d.KeyMetrics = kept
	return d
}

func ptr(v float64) *float64 { return &v }
