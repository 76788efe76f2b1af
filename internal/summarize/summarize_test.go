package summarize

import (
	"reflect"
	"testing"

	"github.com/expovision/marketpulse/internal/dataset"
	"github.com/expovision/marketpulse/internal/tokens"
)

func testCounter() *tokens.Counter { return tokens.NewCounter("gpt-4o-mini") }

func salesDataset(n int) *dataset.Dataset {
	rows := make([]dataset.Record, n)
	for i := range rows {
		rows[i] = dataset.Record{
			"month":   i + 1,
			"revenue": float64(100 + i*20),
			"units":   float64(10 + i),
			"region":  []string{"emea", "apac"}[i%2],
		}
	}
	return dataset.New(rows, []string{"month", "revenue", "units", "region"})
}

func TestSummarizeEmptyDataset(t *testing.T) {
	s := NewSummarizer(testCounter())
	d := s.Summarize(dataset.New(nil, nil), 100)
	if d.RowCount != 0 || d.ColumnCount != 0 {
		t.Fatalf("empty dataset digest = %+v", d)
	}
	if d.KeyMetrics != nil || d.TimeSeries != nil || d.CategoricalData != nil {
		t.Fatalf("empty dataset digest carries sections: %+v", d)
	}
}

func TestSummarizeFullDigest(t *testing.T) {
	s := NewSummarizer(testCounter())
	d := s.Summarize(salesDataset(6), 3000)
	if d.RowCount != 6 || d.ColumnCount != 4 {
		t.Fatalf("counts = %d/%d, want 6/4", d.RowCount, d.ColumnCount)
	}
	rev, ok := d.KeyMetrics["revenue"]
	if !ok {
		t.Fatalf("revenue missing from key metrics: %v", d.KeyMetrics)
	}
	if rev.Std == nil || rev.Sum == nil || rev.Median == nil {
		t.Fatal("full digest should carry the spread sub-fields")
	}
	if rev.ChangePercent != 100 {
		t.Errorf("revenue change = %v, want 100", rev.ChangePercent)
	}
	if d.CategoricalData["region"] == nil {
		t.Errorf("region should appear in categorical data: %v", d.CategoricalData)
	}
}

func TestSummarizeReducesUnderPressure(t *testing.T) {
	s := NewSummarizer(testCounter())
	d := s.Summarize(salesDataset(6), 1)
	if !d.Minimal() {
		t.Fatalf("digest not reduced to minimal form: %s", d.Serialize())
	}
	if len(d.KeyMetrics) == 0 || len(d.KeyMetrics) > reducedKeyMetrics {
		t.Fatalf("minimal key metrics = %d", len(d.KeyMetrics))
	}
	for col, m := range d.KeyMetrics {
		if m.Std != nil || m.Sum != nil || m.Median != nil || m.FirstValue != nil {
			t.Fatalf("minimal metric %s carries sub-fields: %+v", col, m)
		}
	}
}

func TestSummarizeBudgetInvariant(t *testing.T) {
	s := NewSummarizer(testCounter())
	c := testCounter()
	ds := salesDataset(12)
	for _, budget := range []int{5, 50, 200, 3000} {
		d := s.Summarize(ds, budget)
		if c.Count(d.Serialize()) > budget && !d.Minimal() {
			t.Errorf("budget %d: digest over budget but not minimal: %s", budget, d.Serialize())
		}
	}
}

func TestSummarizeDeterministic(t *testing.T) {
	s := NewSummarizer(testCounter())
	ds := salesDataset(8)
	a := s.Summarize(ds, 500)
	b := s.Summarize(ds, 500)
	if !reflect.DeepEqual(a, b) {
		t.Fatal("repeated summarize of the same dataset differs")
	}
}

func TestConsolidateSmallDatasetSingleBatch(t *testing.T) {
	c := NewConsolidator(testCounter(), NewSummarizer(testCounter()))
	batches := c.Consolidate(salesDataset(3), 3, 2000)
	if len(batches) != 1 {
		t.Fatalf("len(batches) = %d, want 1", len(batches))
	}
	if batches[0].Rows.RowCount() != 3 {
		t.Fatalf("batch rows = %d, want 3", batches[0].Rows.RowCount())
	}
}

func TestConsolidateEmptyDataset(t *testing.T) {
	c := NewConsolidator(testCounter(), NewSummarizer(testCounter()))
	batches := c.Consolidate(dataset.New(nil, nil), 3, 2000)
	if len(batches) != 1 || !batches[0].Rows.Empty() {
		t.Fatalf("empty dataset batches = %+v", batches)
	}
}

func TestConsolidatePartitionInvariant(t *testing.T) {
	counter := testCounter()
	c := NewConsolidator(counter, NewSummarizer(counter))
	ds := salesDataset(5)
	batches := c.Consolidate(ds, 3, 60)
	if len(batches) == 0 || len(batches) > 3 {
		t.Fatalf("len(batches) = %d, want 1..3", len(batches))
	}
	assertPartition(t, ds, batches)
}

func TestConsolidateMergeRespectsMaxBatches(t *testing.T) {
	counter := testCounter()
	c := NewConsolidator(counter, NewSummarizer(counter))
	ds := salesDataset(10)
	// A budget of 1 seals every row into its own batch before merging.
	batches := c.Consolidate(ds, 3, 1)
	if len(batches) != 3 {
		t.Fatalf("len(batches) = %d, want 3", len(batches))
	}
	assertPartition(t, ds, batches)
	if batches[0].MergedFrom == nil {
		t.Fatal("merged batch should record its source batches")
	}
	for _, b := range batches {
		if b.Digest.RowCount != b.Rows.RowCount() {
			t.Errorf("batch %d digest covers %d rows, holds %d", b.Index, b.Digest.RowCount, b.Rows.RowCount())
		}
	}
}

func assertPartition(t *testing.T, ds *dataset.Dataset, batches []Batch) {
	t.Helper()
	var parts []*dataset.Dataset
	for i, b := range batches {
		if b.Index != i {
			t.Errorf("batch %d has Index %d", i, b.Index)
		}
		parts = append(parts, b.Rows)
	}
	joined := dataset.Concat(parts...)
	if !reflect.DeepEqual(joined.Rows, ds.Rows) {
		t.Fatal("batches do not partition the dataset in order")
	}
}
