package analyze

import (
	"context"
	"strings"
	"testing"

	"github.com/expovision/marketpulse/internal/tokens"
)

func newTestService(q *queueCaller) *Service {
	s := NewService(q, tokens.NewCounter("gpt-4o-mini"), fastConfig())
	s.jitter = func() float64 { return 0.5 } // competitor multiplier pinned to 1.0
	return s
}

func TestAnalyzeTrendsBackfillsDynamics(t *testing.T) {
	// Model answers with bare objects; the facade must fill everything in.
	q := &queueCaller{responses: []string{"{}", "{}"}}
	s := newTestService(q)

	result, meta := s.AnalyzeTrends(context.Background(), map[string][]float64{"revenue": {100, 110, 121}}, "month")

	if result.Dynamics.TotalRows != 3 {
		t.Errorf("total_rows = %d, want 3", result.Dynamics.TotalRows)
	}
	if result.Dynamics.Mean == nil || result.Dynamics.Median == nil || result.Dynamics.ChangePercent == nil || result.Dynamics.KeyMetricsChangePercent == nil {
		t.Fatalf("dynamics has missing required keys: %+v", result.Dynamics)
	}
	change, ok := result.Dynamics.ChangePercent["revenue"].(float64)
	if !ok || change < 20.9 || change > 21.1 {
		t.Errorf("change_percent[revenue] = %v, want ~21", result.Dynamics.ChangePercent["revenue"])
	}
	if strings.TrimSpace(result.Title) == "" || strings.TrimSpace(result.Summary) == "" {
		t.Error("title and summary must be backfilled")
	}
	if result.Links.Internal == nil || result.CompletedTasks == nil {
		t.Error("slices must be non-nil after backfill")
	}
	if meta.Kind != KindTrends {
		t.Errorf("meta.Kind = %s", meta.Kind)
	}
	if !strings.Contains(q.requests[0].System, "marketplace analytics expert") {
		t.Errorf("trends system prompt not used: %q", q.requests[0].System)
	}
}

func TestAnalyzeTrendsPeriodLabels(t *testing.T) {
	q := &queueCaller{}
	s := newTestService(q)

	s.AnalyzeTrends(context.Background(), map[string][]float64{"orders": {1, 2, 3, 4}}, "year")

	if !strings.Contains(q.requests[0].User, "2020") {
		t.Error("year period should produce year labels starting at 2020")
	}
}

func TestAnalyzeCompetitorsBuildsComparisonRows(t *testing.T) {
	q := &queueCaller{}
	s := newTestService(q)

	result, _ := s.AnalyzeCompetitors(context.Background(), "ozon", "electronics",
		[]string{"shop-a", "shop-b"}, map[string]float64{"revenue": 1000, "orders": 50})

	// Our row plus one per competitor.
	if !strings.Contains(q.requests[0].User, `"rows_count":3`) {
		t.Errorf("digest should cover 3 rows: %s", q.requests[0].User)
	}
	if result.Title == "" {
		t.Error("result must have a title")
	}
}

func TestGenerateReportCrossReferences(t *testing.T) {
	q := &queueCaller{}
	s := newTestService(q)

	trends := AnalysisResult{Title: "January Trends"}
	competitors := AnalysisResult{Title: "January Competitors"}
	result, _ := s.GenerateReport(context.Background(), "wildberries",
		map[string]float64{"revenue": 5000}, "2023-01-01", "2023-01-31", &trends, &competitors)

	if result.PeriodData.StartDate != "2023-01-01" || result.PeriodData.EndDate != "2023-01-31" {
		t.Errorf("period = %+v", result.PeriodData)
	}
	if len(result.Links.Internal) != 2 {
		t.Fatalf("links.internal = %v, want 2 cross-references", result.Links.Internal)
	}
	if result.Links.Internal[0]["type"] != "trend_analysis" || result.Links.Internal[0]["title"] != "January Trends" {
		t.Errorf("first cross-reference = %v", result.Links.Internal[0])
	}
	if result.Links.Internal[1]["type"] != "competitor_analysis" {
		t.Errorf("second cross-reference = %v", result.Links.Internal[1])
	}
}

func TestGenerateReportWithoutPriorAnalyses(t *testing.T) {
	q := &queueCaller{}
	s := newTestService(q)

	result, _ := s.GenerateReport(context.Background(), "", map[string]float64{"revenue": 5000}, "2023-02-01", "2023-02-28", nil, nil)

	if len(result.Links.Internal) != 0 {
		t.Errorf("links.internal = %v, want empty", result.Links.Internal)
	}
	if result.Links.Internal == nil {
		t.Error("links.internal must be an empty slice, not nil")
	}
}

func TestChatCompletionPassthrough(t *testing.T) {
	q := &queueCaller{responses: []string{"hello"}}
	s := newTestService(q)

	out, err := s.ChatCompletion(context.Background(), ChatRequest{Model: "gpt-4o", User: "ping"})
	if err != nil || out != "hello" {
		t.Fatalf("out = %q, err = %v", out, err)
	}
	if len(q.requests) != 1 || q.requests[0].User != "ping" {
		t.Fatalf("requests = %+v", q.requests)
	}
}
