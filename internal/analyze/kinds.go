package analyze

// Per-kind prompt, title, and fallback response, kept in one table so adding
// an analysis kind touches exactly one place.

const analysisSchemaPrompt = `Required JSON schema:
{
  "title":"string",
  "summary":"string",
  "period_data":{"start_date":"YYYY-MM-DD","end_date":"YYYY-MM-DD"},
  "dynamics":{"total_rows":"int","total_columns":"int","mean":{"metric":"float"},"median":{"metric":"float"},"change_percent":{"metric":"float"},"key_metrics_change_percent":{"metric":"float"}},
  "factors":{"missing_values":{"column":"int"},"categorical_data":{"column":{"value":"int"}},"key_factors":["string"]},
  "links":{"internal":[{"type":"string","title":"string"}],"external":[{"url":"string","title":"string"}]},
  "completed_tasks":["string"],
  "pending_tasks":["string"]
}`

type kindSpec struct {
	title        string
	systemPrompt string
	batchFocus   string
}

var kindSpecs = map[Kind]kindSpec{
	KindTrends: {
		title: "Sales Trends Analysis",
		systemPrompt: "You are a marketplace analytics expert. You analyze sales and " +
			"traffic metrics over time, identify trends, seasonality, and anomalies, " +
			"and explain what drives them. Respond with strict JSON only.",
		batchFocus: "Identify the direction and strength of each metric's trend, " +
			"notable inflection points, and likely causes.",
	},
	KindCompetitors: {
		title: "Competitor Analysis",
		systemPrompt: "You are a marketplace competitive-intelligence expert. You " +
			"compare a seller's metrics against competitors in the same category and " +
			"identify strengths, weaknesses, and positioning opportunities. Respond " +
			"with strict JSON only.",
		batchFocus: "Compare the seller's metrics against each competitor and rank " +
			"the gaps by commercial impact.",
	},
	KindMetrics: {
		title: "Marketplace Metrics Report",
		systemPrompt: "You are a marketplace analytics expert. You interpret " +
			"aggregated seller metrics for a reporting period and produce a concise " +
			"business report with concrete follow-up tasks. Respond with strict JSON only.",
		batchFocus: "Summarize the period's performance, flag metrics that changed " +
			"the most, and propose follow-up tasks.",
	},
}

// specFor tolerates unknown kinds by falling back to the generic metrics
// prompt rather than failing a run over a label.
func specFor(kind Kind) kindSpec {
	if s, ok := kindSpecs[kind]; ok {
		return s
	}
	return kindSpecs[KindMetrics]
}

// DefaultResult is the fallback payload substituted when a model call fails
// for good: fully populated, clearly placeholder, safe to store.
func DefaultResult(kind Kind) AnalysisResult {
	return AnalysisResult{
		Title:   specFor(kind).title,
		Summary: "The analysis could not be completed from the model's responses. The figures below are derived directly from the uploaded data.",
		Dynamics: Dynamics{
			Mean:                    map[string]any{},
			Median:                  map[string]any{},
			ChangePercent:           map[string]any{},
			KeyMetricsChangePercent: map[string]any{},
		},
		Factors: Factors{
			MissingValues:   map[string]any{},
			CategoricalData: map[string]any{},
			KeyFactors:      []string{"Insufficient data for analysis"},
		},
		Links:          Links{Internal: []map[string]any{}, External: []map[string]any{}},
		CompletedTasks: []string{},
		PendingTasks:   []string{"Re-run the analysis with a smaller dataset or try again later"},
	}
}
