package analyze

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/expovision/marketpulse/internal/dataset"
	"github.com/expovision/marketpulse/internal/repair"
	"github.com/expovision/marketpulse/internal/summarize"
	"github.com/expovision/marketpulse/internal/tokens"
)

// Stage budgets and call policies. The per-call ceilings are deliberately
// independent of the consolidation budget; each is tuned on its own.
const (
	defaultCheapModel     = "gpt-4o-mini"
	defaultExpensiveModel = "gpt-4o"

	defaultMaxBatches          = 3
	defaultConsolidationBudget = 3000
	defaultBatchCallCeiling    = 3500
	defaultSynthesisCeiling    = 3000
	defaultBatchMaxTokens      = 2000
	defaultSynthesisMaxTokens  = 4000
	defaultTemperature         = 0.7

	defaultRetryMax      = 3
	defaultRetryDelay    = 1 * time.Second
	defaultRetryBackoff  = 2.0
	defaultGuardTries    = 3
	defaultGuardDelay    = 2 * time.Second

	maxSynthesisSummaries   = 2
	synthesisSummaryChars   = 200
	synthesisSubObjectChars = 100
)

type Config struct {
	CheapModel     string
	ExpensiveModel string

	MaxBatches          int
	ConsolidationBudget int
	BatchCallCeiling    int
	SynthesisCeiling    int
	BatchMaxTokens      int
	SynthesisMaxTokens  int
	Temperature         float64

	Retry      RetryPolicy
	GuardTries int
	GuardDelay time.Duration
}

func (c Config) withDefaults() Config {
	if c.CheapModel == "" {
		c.CheapModel = defaultCheapModel
	}
	if c.ExpensiveModel == "" {
		c.ExpensiveModel = defaultExpensiveModel
	}
	if c.MaxBatches <= 0 {
		c.MaxBatches = defaultMaxBatches
	}
	if c.ConsolidationBudget <= 0 {
		c.ConsolidationBudget = defaultConsolidationBudget
	}
	if c.BatchCallCeiling <= 0 {
		c.BatchCallCeiling = defaultBatchCallCeiling
	}
	if c.SynthesisCeiling <= 0 {
		c.SynthesisCeiling = defaultSynthesisCeiling
	}
	if c.BatchMaxTokens <= 0 {
		c.BatchMaxTokens = defaultBatchMaxTokens
	}
	if c.SynthesisMaxTokens <= 0 {
		c.SynthesisMaxTokens = defaultSynthesisMaxTokens
	}
	if c.Temperature <= 0 {
		c.Temperature = defaultTemperature
	}
	if c.Retry.MaxRetries <= 0 {
		c.Retry = RetryPolicy{MaxRetries: defaultRetryMax, InitialDelay: defaultRetryDelay, BackoffFactor: defaultRetryBackoff}
	}
	if c.GuardTries <= 0 {
		c.GuardTries = defaultGuardTries
	}
	if c.GuardDelay <= 0 {
		c.GuardDelay = defaultGuardDelay
	}
	return c
}

// TwoStageAnalyzer runs Consolidating → BatchAnalyzing(i) → Synthesizing.
// Batches run sequentially in index order; a failed batch degrades to the
// kind default for that batch only and never aborts the run.
type TwoStageAnalyzer struct {
	caller       ChatCaller
	counter      *tokens.Counter
	summarizer   *summarize.Summarizer
	consolidator *summarize.Consolidator
	cfg          Config
	tracer       trace.Tracer
}

func NewTwoStageAnalyzer(caller ChatCaller, counter *tokens.Counter, cfg Config) *TwoStageAnalyzer {
	summarizer := summarize.NewSummarizer(counter)
	return &TwoStageAnalyzer{
		caller:       caller,
		counter:      counter,
		summarizer:   summarizer,
		consolidator: summarize.NewConsolidator(counter, summarizer),
		cfg:          cfg.withDefaults(),
		tracer:       otel.Tracer("marketpulse/analyze"),
	}
}

func (a *TwoStageAnalyzer) Run(ctx context.Context, ds *dataset.Dataset, marketplace string, kind Kind) (AnalysisResult, RunMetadata) {
	meta := RunMetadata{Kind: kind, Mode: RunModeComplete, StartedAt: time.Now()}
	ctx, span := a.tracer.Start(ctx, "analysis.run",
		trace.WithAttributes(attribute.String("analysis.kind", string(kind))))
	defer span.End()

	_, cspan := a.tracer.Start(ctx, "analysis.consolidate")
	batches := a.consolidator.Consolidate(ds, a.cfg.MaxBatches, a.cfg.ConsolidationBudget)
	cspan.SetAttributes(attribute.Int("analysis.batch_count", len(batches)))
	cspan.End()

	meta.BatchCount = len(batches)
	for _, b := range batches {
		if len(b.MergedFrom) > 0 {
			meta.MergedBatches = true
		}
	}

	partials := make([]map[string]any, 0, len(batches))
	for _, b := range batches {
		partial, ok := a.analyzeBatch(ctx, b, len(batches), marketplace, kind)
		if !ok {
			meta.DefaultedBatches = append(meta.DefaultedBatches, b.Index)
			meta.degrade(fmt.Sprintf("batch %d fell back to the default response", b.Index))
			partial = defaultBatchMap(kind, b.Index)
		}
		partials = append(partials, partial)
	}

	result, ok := a.synthesize(ctx, partials, marketplace, kind)
	if !ok {
		meta.SynthesisDefaulted = true
		meta.degrade("synthesis fell back to the default response")
		result = DefaultResult(kind)
	}
	meta.FinishedAt = time.Now()
	return result, meta
}

func (a *TwoStageAnalyzer) analyzeBatch(ctx context.Context, b summarize.Batch, total int, marketplace string, kind Kind) (map[string]any, bool) {
	ctx, span := a.tracer.Start(ctx, "analysis.batch",
		trace.WithAttributes(attribute.Int("batch.index", b.Index)))
	defer span.End()

	spec := specFor(kind)
	user := buildBatchPrompt(spec, marketplace, b.Index, total, b.Digest)
	if a.promptTokens(spec.systemPrompt, user) > a.cfg.BatchCallCeiling {
		user = buildBatchPrompt(spec, marketplace, b.Index, total, b.Digest.Shrink())
	}

	raw, ok := a.callWithGuards(ctx, ChatRequest{
		Model:       a.cfg.CheapModel,
		System:      spec.systemPrompt,
		User:        user,
		Temperature: a.cfg.Temperature,
		MaxTokens:   a.cfg.BatchMaxTokens,
		ForceJSON:   true,
	})
	if !ok {
		return nil, false
	}
	m := repair.ParseSafely(raw)
	m["batch_index"] = b.Index
	return m, true
}

func (a *TwoStageAnalyzer) synthesize(ctx context.Context, partials []map[string]any, marketplace string, kind Kind) (AnalysisResult, bool) {
	ctx, span := a.tracer.Start(ctx, "analysis.synthesize",
		trace.WithAttributes(attribute.Int("analysis.partials", len(partials))))
	defer span.End()

	spec := specFor(kind)
	normalized := make([]map[string]any, len(partials))
	for i, p := range partials {
		normalized[i] = normalizeBatchResult(p)
	}
	user := buildSynthesisPrompt(spec, marketplace, normalized)
	if a.promptTokens(spec.systemPrompt, user) > a.cfg.SynthesisCeiling {
		normalized = truncateBatchResults(normalized)
		user = buildSynthesisPrompt(spec, marketplace, normalized)
	}

	raw, ok := a.callWithGuards(ctx, ChatRequest{
		Model:       a.cfg.ExpensiveModel,
		System:      spec.systemPrompt,
		User:        user,
		Temperature: a.cfg.Temperature,
		MaxTokens:   a.cfg.SynthesisMaxTokens,
		ForceJSON:   true,
	})
	if !ok {
		return AnalysisResult{}, false
	}
	return ResultFromMap(repair.ParseSafely(raw)), true
}

// callWithGuards layers the two retry policies: transport errors get
// exponential backoff inside each guard try, blank content gets the guard's
// fixed-delay loop.
func (a *TwoStageAnalyzer) callWithGuards(ctx context.Context, req ChatRequest) (string, bool) {
	return CallWithGuard(ctx, a.cfg.GuardTries, a.cfg.GuardDelay, func(ctx context.Context) (string, error) {
		return ExecuteWithRetry(ctx, a.cfg.Retry, func(ctx context.Context) (string, error) {
			return a.caller.ChatCompletion(ctx, req)
		})
	})
}

func (a *TwoStageAnalyzer) promptTokens(system, user string) int {
	return a.counter.CountMessages([]tokens.Message{
		{Role: "system", Content: system},
		{Role: "user", Content: user},
	})
}

func buildBatchPrompt(spec kindSpec, marketplace string, index, total int, digest summarize.Digest) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Analyze batch %d of %d of a marketplace dataset.", index+1, total)
	if marketplace != "" {
		fmt.Fprintf(&sb, " Marketplace: %s.", marketplace)
	}
	sb.WriteString("\n")
	sb.WriteString(spec.batchFocus)
	sb.WriteString("\n\n")
	sb.WriteString(analysisSchemaPrompt)
	sb.WriteString("\n\nDataset digest:\n```json\n")
	sb.WriteString(digest.Serialize())
	sb.WriteString("\n```\n\nReturn ONLY valid JSON matching the schema. No prose outside the JSON.")
	return sb.String()
}

func buildSynthesisPrompt(spec kindSpec, marketplace string, batchResults []map[string]any) string {
	var sb strings.Builder
	sb.WriteString("Combine the batch-level analyses below into one coherent final report covering the whole dataset.")
	if marketplace != "" {
		fmt.Fprintf(&sb, " Marketplace: %s.", marketplace)
	}
	sb.WriteString("\nResolve contradictions between batches, aggregate the numbers, and keep conclusions grounded in the batch findings.")
	sb.WriteString("\n\n")
	sb.WriteString(analysisSchemaPrompt)
	sb.WriteString("\n\nBatch analyses (in dataset order):\n```json\n")
	sb.WriteString(mustJSON(batchResults))
	sb.WriteString("\n```\n\nReturn ONLY valid JSON matching the schema. No prose outside the JSON.")
	return sb.String()
}

// synthesisFields is the compact subset forwarded to synthesis. Raw row data
// never reaches this stage, only prior-stage conclusions.
var synthesisFields = []string{
	"batch_index", "title", "summary", "period_data",
	"dynamics", "factors", "completed_tasks", "pending_tasks",
}

func normalizeBatchResult(m map[string]any) map[string]any {
	out := make(map[string]any, len(synthesisFields))
	for _, f := range synthesisFields {
		if v, ok := m[f]; ok {
			out[f] = v
		}
	}
	return out
}

// truncateBatchResults is the last-resort squeeze for an oversized synthesis
// payload: at most two batch summaries, short summary strings, and oversized
// sub-objects replaced with a marker.
func truncateBatchResults(in []map[string]any) []map[string]any {
	if len(in) > maxSynthesisSummaries {
		in = in[:maxSynthesisSummaries]
	}
	out := make([]map[string]any, len(in))
	for i, m := range in {
		t := make(map[string]any, len(m))
		for k, v := range m {
			t[k] = v
		}
		if s, ok := t["summary"].(string); ok && len(s) > synthesisSummaryChars {
			t["summary"] = s[:synthesisSummaryChars]
		}
		for _, k := range []string{"period_data", "dynamics", "factors"} {
			if v, ok := t[k]; ok && len(mustJSON(v)) > synthesisSubObjectChars {
				t[k] = "omitted"
			}
		}
		out[i] = t
	}
	return out
}

func defaultBatchMap(kind Kind, index int) map[string]any {
	b, _ := json.Marshal(DefaultResult(kind))
	var m map[string]any
	_ = json.Unmarshal(b, &m)
	m["batch_index"] = index
	return m
}

func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(b)
}
