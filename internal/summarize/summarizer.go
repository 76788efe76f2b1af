package summarize

import (
	"encoding/json"

	"github.com/expovision/marketpulse/internal/dataset"
	"github.com/expovision/marketpulse/internal/tokens"
)

// Summarizer builds token-budget-bounded digests of datasets. The same
// counter used for prompt accounting measures digest size, so a digest that
// fits the budget here also fits when embedded in a prompt.
type Summarizer struct {
	counter *tokens.Counter
}

func NewSummarizer(counter *tokens.Counter) *Summarizer {
	return &Summarizer{counter: counter}
}

// Summarize produces a digest of ds whose serialized form fits within budget
// tokens, reducing detail in at most three steps. The minimal form is
// returned as-is even if it exceeds the budget.
func (s *Summarizer) Summarize(ds *dataset.Dataset, budget int) Digest {
	d := s.full(ds)
	if s.fits(d, budget) {
		return d
	}
	d = s.reduce(ds, d)
	if s.fits(d, budget) {
		return d
	}
	return s.minimal(ds)
}

func (s *Summarizer) fits(d Digest, budget int) bool {
	return s.counter.Count(d.Serialize()) <= budget
}

// full is the step-1 digest: headline counts, capped column and missing-value
// lists, the top metrics by variance, and time-series / categorical sections
// when they serialize small enough to be worth their tokens.
func (s *Summarizer) full(ds *dataset.Dataset) Digest {
	d := Digest{
		RowCount:    ds.RowCount(),
		ColumnCount: ds.ColumnCount(),
		Columns:     capColumns(ds.Columns, maxDigestColumns),
	}
	if ds.Empty() {
		return d
	}
	st := ds.Stats()

	if len(st.Missing) > 0 {
		d.MissingValues = make(map[string]int)
		n := 0
		for _, col := range ds.Columns {
			if miss, ok := st.Missing[col]; ok {
				d.MissingValues[col] = miss
				if n++; n >= maxMissingEntries {
					break
				}
			}
		}
	}

	top := st.TopNumericByVariance(maxKeyMetrics)
	if len(top) > 0 {
		d.KeyMetrics = make(map[string]MetricSummary, len(top))
		for _, col := range top {
			ns := st.Numeric[col]
			d.KeyMetrics[col] = MetricSummary{
				Mean:          ns.Mean,
				Median:        ptr(ns.Median),
				Min:           ptr(ns.Min),
				Max:           ptr(ns.Max),
				Sum:           ptr(ns.Sum),
				Std:           ptr(ns.Std),
				FirstValue:    ptr(ns.First),
				LastValue:     ptr(ns.Last),
				ChangePercent: ns.ChangePercent,
			}
		}
	}

	if ts := ds.TimeSeries(maxTimeSeriesColumns, maxTimeSeriesPoints); len(ts) > 0 {
		if sectionSize(ts) < maxInlineSectionSize {
			d.TimeSeries = ts
		}
	}

	if cat := smallCategorical(st); len(cat) > 0 {
		if sectionSize(cat) < maxInlineSectionSize {
			d.CategoricalData = cat
		}
	}
	return d
}

// reduce is step 2: drop the bulky sections, re-rank metrics by absolute
// change instead of variance, and strip the spread sub-fields.
func (s *Summarizer) reduce(ds *dataset.Dataset, d Digest) Digest {
	d.MissingValues = nil
	d.TimeSeries = nil
	d.CategoricalData = nil

	st := ds.Stats()
	top := st.TopNumericByChange(maxKeyMetrics)
	if len(top) == 0 {
		d.KeyMetrics = nil
		return d
	}
	d.KeyMetrics = make(map[string]MetricSummary, len(top))
	for _, col := range top {
		ns := st.Numeric[col]
		d.KeyMetrics[col] = MetricSummary{
			Mean:          ns.Mean,
			Median:        ptr(ns.Median),
			Min:           ptr(ns.Min),
			Max:           ptr(ns.Max),
			FirstValue:    ptr(ns.First),
			LastValue:     ptr(ns.Last),
			ChangePercent: ns.ChangePercent,
		}
	}
	return d
}

// minimal is the step-3 floor: counts, a short column list, and mean plus
// change for the three highest-variance metrics.
func (s *Summarizer) minimal(ds *dataset.Dataset) Digest {
	d := Digest{
		RowCount:    ds.RowCount(),
		ColumnCount: ds.ColumnCount(),
		Columns:     capColumns(ds.Columns, reducedColumns),
	}
	if ds.Empty() {
		return d
	}
	st := ds.Stats()
	top := st.TopNumericByVariance(reducedKeyMetrics)
	if len(top) > 0 {
		d.KeyMetrics = make(map[string]MetricSummary, len(top))
		for _, col := range top {
			ns := st.Numeric[col]
			d.KeyMetrics[col] = MetricSummary{
				Mean:          ns.Mean,
				ChangePercent: ns.ChangePercent,
			}
		}
	}
	return d
}

func capColumns(cols []string, n int) []string {
	if len(cols) > n {
		cols = cols[:n]
	}
	out := make([]string, len(cols))
	copy(out, cols)
	return out
}

func smallCategorical(st *dataset.Stats) map[string]map[string]int {
	out := make(map[string]map[string]int)
	for col, counts := range st.Categorical {
		if len(counts) < maxCategoricalValues {
			out[col] = counts
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func sectionSize(v any) int {
	b, err := json.Marshal(v)
	if err != nil {
		return maxInlineSectionSize
	}
	return len(b)
}
