package summarize

import (
	"encoding/json"

	"github.com/expovision/marketpulse/internal/dataset"
	"github.com/expovision/marketpulse/internal/tokens"
)

// Batch is one unit of work for a per-batch model call. Rows holds the
// partition of the source dataset backing the batch; Digest is the bounded
// view that actually goes into the prompt.
type Batch struct {
	Index      int
	MergedFrom []int
	Rows       *dataset.Dataset
	Digest     Digest
}

// Consolidator splits a dataset into at most maxBatches token-bounded
// batches. Batches partition the dataset: every row lands in exactly one
// batch and row order is preserved.
type Consolidator struct {
	counter    *tokens.Counter
	summarizer *Summarizer
}

func NewConsolidator(counter *tokens.Counter, summarizer *Summarizer) *Consolidator {
	return &Consolidator{counter: counter, summarizer: summarizer}
}

// Consolidate packs rows greedily in order: a row joins the current batch
// until adding it would push the batch past budget tokens, then a new batch
// starts. A row larger than the whole budget gets a batch of its own. If the
// packing yields more than maxBatches batches, contiguous runs are merged and
// each merged run's rows are re-summarized as one dataset, so no batch keeps
// a digest describing only a fragment of its rows.
//
// Datasets that are empty or have no more rows than maxBatches come back as
// a single batch.
func (c *Consolidator) Consolidate(ds *dataset.Dataset, maxBatches, budget int) []Batch {
	if maxBatches < 1 {
		maxBatches = 1
	}
	if ds.Empty() || ds.RowCount() <= maxBatches {
		return []Batch{{Index: 0, Rows: ds, Digest: c.summarizer.Summarize(ds, budget)}}
	}

	var bounds [][2]int // [lo, hi) row ranges
	lo, used := 0, 0
	for i, row := range ds.Rows {
		rt := c.rowTokens(row)
		if i > lo && used+rt > budget {
			bounds = append(bounds, [2]int{lo, i})
			lo, used = i, 0
		}
		used += rt
	}
	bounds = append(bounds, [2]int{lo, ds.RowCount()})

	if len(bounds) > maxBatches {
		return c.merge(ds, bounds, maxBatches, budget)
	}

	batches := make([]Batch, len(bounds))
	for i, b := range bounds {
		part := ds.Slice(b[0], b[1])
		batches[i] = Batch{Index: i, Rows: part, Digest: c.summarizer.Summarize(part, budget)}
	}
	return batches
}

// merge regroups the packed ranges into exactly maxBatches contiguous runs
// and summarizes each run's union of rows from scratch.
func (c *Consolidator) merge(ds *dataset.Dataset, bounds [][2]int, maxBatches, budget int) []Batch {
	per := (len(bounds) + maxBatches - 1) / maxBatches
	var batches []Batch
	for g := 0; g*per < len(bounds); g++ {
		first := g * per
		last := first + per
		if last > len(bounds) {
			last = len(bounds)
		}
		part := ds.Slice(bounds[first][0], bounds[last-1][1])
		merged := make([]int, 0, last-first)
		for i := first; i < last; i++ {
			merged = append(merged, i)
		}
		if len(merged) == 1 {
			merged = nil
		}
		batches = append(batches, Batch{
			Index:      len(batches),
			MergedFrom: merged,
			Rows:       part,
			Digest:     c.summarizer.Summarize(part, budget),
		})
	}
	return batches
}

func (c *Consolidator) rowTokens(row dataset.Record) int {
	b, err := json.Marshal(row)
	if err != nil {
		return 1
	}
	return c.counter.Count(string(b))
}
