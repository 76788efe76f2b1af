// Package analyze runs the two-stage analysis pipeline: datasets are split
// into token-bounded batches, each batch is interpreted by a cheap model, and
// one expensive synthesis call combines the batch conclusions into a final
// report. Every path degrades to a schema-complete result; the pipeline never
// returns a partial shape to its caller.
package analyze

import (
	"time"
)

// Kind selects the analysis flavor: prompt, default response, and title.
type Kind string

const (
	KindTrends      Kind = "trends"
	KindCompetitors Kind = "competitors"
	KindMetrics     Kind = "metrics"
)

func (k Kind) Valid() bool {
	switch k {
	case KindTrends, KindCompetitors, KindMetrics:
		return true
	default:
		return false
	}
}

// AnalysisResult is the output contract. The facade guarantees every field is
// populated before the result leaves the package; sub-maps are never nil.
type AnalysisResult struct {
	Title          string           `json:"title"`
	Summary        string           `json:"summary"`
	PeriodData     PeriodData       `json:"period_data"`
	Dynamics       Dynamics         `json:"dynamics"`
	Factors        Factors          `json:"factors"`
	Links          Links            `json:"links"`
	CompletedTasks []string         `json:"completed_tasks"`
	PendingTasks   []string         `json:"pending_tasks"`
	Error          string           `json:"error,omitempty"`
}

type PeriodData struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

// Dynamics carries per-metric maps; values stay loosely typed because the
// model sometimes returns formatted strings ("12.5%") where numbers belong.
type Dynamics struct {
	TotalRows               int            `json:"total_rows"`
	TotalColumns            int            `json:"total_columns"`
	Mean                    map[string]any `json:"mean"`
	Median                  map[string]any `json:"median"`
	ChangePercent           map[string]any `json:"change_percent"`
	KeyMetricsChangePercent map[string]any `json:"key_metrics_change_percent"`
}

type Factors struct {
	MissingValues   map[string]any `json:"missing_values"`
	CategoricalData map[string]any `json:"categorical_data"`
	KeyFactors      []string       `json:"key_factors"`
}

type Links struct {
	Internal []map[string]any `json:"internal"`
	External []map[string]any `json:"external"`
}

type RunMode string

const (
	RunModeComplete RunMode = "complete"
	RunModeDegraded RunMode = "degraded"
)

// RunMetadata is the diagnostic side-channel of a run. It travels next to the
// result instead of inside it, so degradation details never leak into the
// stored report.
type RunMetadata struct {
	Kind               Kind      `json:"kind"`
	Mode               RunMode   `json:"mode"`
	StartedAt          time.Time `json:"started_at"`
	FinishedAt         time.Time `json:"finished_at"`
	BatchCount         int       `json:"batch_count"`
	MergedBatches      bool      `json:"merged_batches"`
	DefaultedBatches   []int     `json:"defaulted_batches,omitempty"`
	SynthesisDefaulted bool      `json:"synthesis_defaulted"`
	Notes              []string  `json:"notes,omitempty"`
}

func (m *RunMetadata) degrade(note string) {
	m.Mode = RunModeDegraded
	m.Notes = append(m.Notes, note)
}
