package reportstore

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/expovision/marketpulse/internal/analyze"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "reports.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleResult() analyze.AnalysisResult {
	r := analyze.DefaultResult(analyze.KindTrends)
	r.Title = "January Trends"
	r.Summary = "Revenue grew 21% over the month."
	r.CompletedTasks = []string{"Collected sales data"}
	r.PendingTasks = []string{"Validate February figures"}
	return r
}

func TestSaveAndGet(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	meta := analyze.RunMetadata{Kind: analyze.KindTrends, Mode: analyze.RunModeComplete}
	if err := s.Save(ctx, "file-1", "wildberries", analyze.KindTrends, sampleResult(), meta); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := s.Get(ctx, "file-1", analyze.KindTrends)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Title != "January Trends" {
		t.Errorf("title = %q", got.Title)
	}
	if len(got.PendingTasks) != 1 {
		t.Errorf("pending tasks = %v", got.PendingTasks)
	}
}

func TestGetMissingReport(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.Get(context.Background(), "nope", analyze.KindTrends); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestSaveUpsertsByFileAndKind(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	meta := analyze.RunMetadata{Mode: analyze.RunModeComplete}

	first := sampleResult()
	if err := s.Save(ctx, "file-1", "", analyze.KindTrends, first, meta); err != nil {
		t.Fatalf("Save: %v", err)
	}
	second := sampleResult()
	second.Title = "Updated Trends"
	second.PendingTasks = []string{"New task"}
	if err := s.Save(ctx, "file-1", "", analyze.KindTrends, second, meta); err != nil {
		t.Fatalf("Save again: %v", err)
	}

	got, err := s.Get(ctx, "file-1", analyze.KindTrends)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Title != "Updated Trends" {
		t.Errorf("title = %q, want updated report", got.Title)
	}

	tasks, err := s.Tasks(ctx, "file-1", analyze.KindTrends)
	if err != nil {
		t.Fatalf("Tasks: %v", err)
	}
	// Replaced, not appended: 1 completed + 1 pending from the second save.
	if len(tasks) != 2 {
		t.Fatalf("tasks = %d, want 2", len(tasks))
	}
	if tasks[1].Title != "New task" || tasks[1].Status != TaskStatusPending {
		t.Errorf("task = %+v", tasks[1])
	}
}

func TestListSeparatesKinds(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	meta := analyze.RunMetadata{Mode: analyze.RunModeComplete}

	if err := s.Save(ctx, "file-1", "", analyze.KindTrends, sampleResult(), meta); err != nil {
		t.Fatalf("Save trends: %v", err)
	}
	comp := analyze.DefaultResult(analyze.KindCompetitors)
	if err := s.Save(ctx, "file-1", "", analyze.KindCompetitors, comp, meta); err != nil {
		t.Fatalf("Save competitors: %v", err)
	}

	reports, err := s.List(ctx, "file-1")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(reports) != 2 {
		t.Fatalf("reports = %d, want 2", len(reports))
	}
}

func TestGetReportCarriesRunMode(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	meta := analyze.RunMetadata{Kind: analyze.KindTrends, Mode: analyze.RunModeDegraded}
	if err := s.Save(ctx, "file-1", "ozon", analyze.KindTrends, sampleResult(), meta); err != nil {
		t.Fatalf("Save: %v", err)
	}

	row, err := s.GetReport(ctx, "file-1", analyze.KindTrends)
	if err != nil {
		t.Fatalf("GetReport: %v", err)
	}
	if row.RunMode != string(analyze.RunModeDegraded) {
		t.Errorf("RunMode = %q, want degraded", row.RunMode)
	}
	if row.Marketplace != "ozon" {
		t.Errorf("Marketplace = %q", row.Marketplace)
	}
	if row.CreatedAt.IsZero() {
		t.Error("CreatedAt not parsed")
	}
	if _, err := s.GetReport(ctx, "absent", analyze.KindTrends); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}
