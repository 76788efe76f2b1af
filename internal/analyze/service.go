package analyze

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/expovision/marketpulse/internal/dataset"
	"github.com/expovision/marketpulse/internal/tokens"
)

// Service is the public entry point. Every operation returns a fully
// populated result; expected failure modes degrade inside the pipeline and
// surface only through RunMetadata.
type Service struct {
	analyzer *TwoStageAnalyzer
	caller   ChatCaller
	jitter   func() float64
}

func NewService(caller ChatCaller, counter *tokens.Counter, cfg Config) *Service {
	return &Service{
		analyzer: NewTwoStageAnalyzer(caller, counter, cfg),
		caller:   caller,
		jitter:   rand.Float64,
	}
}

func (s *Service) Analyze(ctx context.Context, ds *dataset.Dataset, marketplace string, kind Kind) (AnalysisResult, RunMetadata) {
	result, meta := s.analyzer.Run(ctx, ds, marketplace, kind)
	return backfill(result, ds, kind), meta
}

// AnalyzeTrends reshapes per-metric value series into dated records and runs
// a trend analysis. The period granularity only affects the synthetic date
// labels the model sees.
func (s *Service) AnalyzeTrends(ctx context.Context, metrics map[string][]float64, period string) (AnalysisResult, RunMetadata) {
	names := sortedKeys(metrics)
	length := 0
	for _, vals := range metrics {
		if len(vals) > length {
			length = len(vals)
		}
	}
	rows := make([]dataset.Record, length)
	for i := range rows {
		row := dataset.Record{"date": periodLabel(period, i)}
		for _, name := range names {
			if vals := metrics[name]; i < len(vals) {
				row[name] = vals[i]
			}
		}
		rows[i] = row
	}
	ds := dataset.New(rows, append([]string{"date"}, names...))
	return s.Analyze(ctx, ds, "", KindTrends)
}

// AnalyzeCompetitors builds a comparison dataset from the seller's metrics
// and synthetic competitor rows at 0.8-1.2x of each metric, then runs a
// competitor analysis. Competitor figures are estimates, not observations.
func (s *Service) AnalyzeCompetitors(ctx context.Context, marketplace, category string, competitors []string, ourMetrics map[string]float64) (AnalysisResult, RunMetadata) {
	names := sortedKeys(ourMetrics)
	rows := make([]dataset.Record, 0, len(competitors)+1)

	our := dataset.Record{"competitor": "our_store", "category": category}
	for _, name := range names {
		our[name] = ourMetrics[name]
	}
	rows = append(rows, our)

	for _, comp := range competitors {
		row := dataset.Record{"competitor": comp, "category": category}
		for _, name := range names {
			row[name] = ourMetrics[name] * (0.8 + 0.4*s.jitter())
		}
		rows = append(rows, row)
	}
	ds := dataset.New(rows, append([]string{"competitor", "category"}, names...))
	return s.Analyze(ctx, ds, marketplace, KindCompetitors)
}

// GenerateReport runs a metrics report for one period and cross-references
// previously produced trend/competitor analyses in links.internal.
func (s *Service) GenerateReport(ctx context.Context, marketplace string, metrics map[string]float64, periodStart, periodEnd string, trends, competitors *AnalysisResult) (AnalysisResult, RunMetadata) {
	row := dataset.Record{"period_start": periodStart, "period_end": periodEnd}
	names := sortedKeys(metrics)
	for _, name := range names {
		row[name] = metrics[name]
	}
	ds := dataset.New([]dataset.Record{row}, append([]string{"period_start", "period_end"}, names...))

	result, meta := s.Analyze(ctx, ds, marketplace, KindMetrics)
	if result.PeriodData.StartDate == "" || strings.TrimSpace(periodStart) != "" {
		result.PeriodData.StartDate = periodStart
	}
	if result.PeriodData.EndDate == "" || strings.TrimSpace(periodEnd) != "" {
		result.PeriodData.EndDate = periodEnd
	}
	if trends != nil {
		result.Links.Internal = append(result.Links.Internal, map[string]any{
			"type": "trend_analysis", "title": trends.Title,
		})
	}
	if competitors != nil {
		result.Links.Internal = append(result.Links.Internal, map[string]any{
			"type": "competitor_analysis", "title": competitors.Title,
		})
	}
	return result, meta
}

// ChatCompletion exposes the raw provider boundary for callers that need a
// one-off completion outside the pipeline.
func (s *Service) ChatCompletion(ctx context.Context, req ChatRequest) (string, error) {
	return s.caller.ChatCompletion(ctx, req)
}

// backfill fills every missing required field with a deterministic default
// derived from the dataset, so callers never receive a partial shape.
func backfill(r AnalysisResult, ds *dataset.Dataset, kind Kind) AnalysisResult {
	spec := specFor(kind)
	if strings.TrimSpace(r.Title) == "" {
		r.Title = spec.title
	}
	if strings.TrimSpace(r.Summary) == "" {
		r.Summary = "No summary was produced for this analysis."
	}
	if r.PeriodData.StartDate == "" || r.PeriodData.EndDate == "" {
		r.PeriodData = defaultPeriod(ds)
	}

	st := ds.Stats()
	if r.Dynamics.TotalRows == 0 {
		r.Dynamics.TotalRows = ds.RowCount()
	}
	if r.Dynamics.TotalColumns == 0 {
		r.Dynamics.TotalColumns = ds.ColumnCount()
	}
	if r.Dynamics.Mean == nil {
		r.Dynamics.Mean = numericField(st, func(ns dataset.NumericStats) float64 { return ns.Mean })
	}
	if r.Dynamics.Median == nil {
		r.Dynamics.Median = numericField(st, func(ns dataset.NumericStats) float64 { return ns.Median })
	}
	if r.Dynamics.ChangePercent == nil {
		r.Dynamics.ChangePercent = numericField(st, func(ns dataset.NumericStats) float64 { return ns.ChangePercent })
	}
	if r.Dynamics.KeyMetricsChangePercent == nil {
		r.Dynamics.KeyMetricsChangePercent = map[string]any{}
		for _, col := range st.TopNumericByVariance(5) {
			r.Dynamics.KeyMetricsChangePercent[col] = st.Numeric[col].ChangePercent
		}
	}

	if r.Factors.MissingValues == nil {
		r.Factors.MissingValues = map[string]any{}
		for col, n := range st.Missing {
			r.Factors.MissingValues[col] = n
		}
	}
	if r.Factors.CategoricalData == nil {
		r.Factors.CategoricalData = map[string]any{}
		for col, counts := range st.Categorical {
			r.Factors.CategoricalData[col] = counts
		}
	}
	if r.Factors.KeyFactors == nil {
		r.Factors.KeyFactors = []string{}
	}
	if r.Links.Internal == nil {
		r.Links.Internal = []map[string]any{}
	}
	if r.Links.External == nil {
		r.Links.External = []map[string]any{}
	}
	if r.CompletedTasks == nil {
		r.CompletedTasks = []string{}
	}
	if r.PendingTasks == nil {
		r.PendingTasks = []string{}
	}
	return r
}

func numericField(st *dataset.Stats, pick func(dataset.NumericStats) float64) map[string]any {
	out := map[string]any{}
	for col, ns := range st.Numeric {
		out[col] = pick(ns)
	}
	return out
}

func defaultPeriod(ds *dataset.Dataset) PeriodData {
	if start, end, ok := ds.DateRange(); ok {
		return PeriodData{StartDate: start, EndDate: end}
	}
	now := time.Now()
	return PeriodData{
		StartDate: now.AddDate(0, 0, -30).Format("2006-01-02"),
		EndDate:   now.Format("2006-01-02"),
	}
}

func periodLabel(period string, i int) string {
	switch period {
	case "week":
		return fmt.Sprintf("2023-W%02d", i+1)
	case "month":
		return fmt.Sprintf("2023-%02d", i%12+1)
	case "year":
		return strconv.Itoa(2020 + i)
	default: // day
		return fmt.Sprintf("2023-01-%02d", i%31+1)
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
