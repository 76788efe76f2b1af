package analyze

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ResultFromMap converts repaired model output into the typed result. Models
// routinely mistype fields (numbers where maps belong, a prose string instead
// of a period object), so every conversion here coerces instead of failing.
func ResultFromMap(m map[string]any) AnalysisResult {
	return AnalysisResult{
		Title:          asString(m["title"]),
		Summary:        asString(m["summary"]),
		PeriodData:     periodFrom(m["period_data"]),
		Dynamics:       dynamicsFrom(m["dynamics"]),
		Factors:        factorsFrom(m["factors"]),
		Links:          linksFrom(m["links"]),
		CompletedTasks: stringSlice(m["completed_tasks"]),
		PendingTasks:   stringSlice(m["pending_tasks"]),
		Error:          asString(m["error"]),
	}
}

var resultISODate = regexp.MustCompile(`\d{4}-\d{2}-\d{2}`)

func periodFrom(v any) PeriodData {
	switch t := v.(type) {
	case map[string]any:
		return PeriodData{StartDate: asString(t["start_date"]), EndDate: asString(t["end_date"])}
	case string:
		// "2023-01-01 — 2023-03-31" and similar prose renditions.
		dates := resultISODate.FindAllString(t, -1)
		if len(dates) > 0 {
			return PeriodData{StartDate: dates[0], EndDate: dates[len(dates)-1]}
		}
	}
	return PeriodData{}
}

func dynamicsFrom(v any) Dynamics {
	m, ok := v.(map[string]any)
	if !ok {
		return Dynamics{}
	}
	return Dynamics{
		TotalRows:               asInt(m["total_rows"]),
		TotalColumns:            asInt(m["total_columns"]),
		Mean:                    metricMap(m["mean"]),
		Median:                  metricMap(m["median"]),
		ChangePercent:           metricMap(m["change_percent"]),
		KeyMetricsChangePercent: metricMap(m["key_metrics_change_percent"]),
	}
}

func factorsFrom(v any) Factors {
	switch t := v.(type) {
	case map[string]any:
		return Factors{
			MissingValues:   metricMap(t["missing_values"]),
			CategoricalData: metricMap(t["categorical_data"]),
			KeyFactors:      stringSlice(t["key_factors"]),
		}
	case string:
		if s := strings.TrimSpace(t); s != "" {
			return Factors{KeyFactors: []string{s}}
		}
	}
	return Factors{}
}

func linksFrom(v any) Links {
	m, ok := v.(map[string]any)
	if !ok {
		return Links{}
	}
	return Links{Internal: linkSlice(m["internal"]), External: linkSlice(m["external"])}
}

func linkSlice(v any) []map[string]any {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	var out []map[string]any
	for _, it := range items {
		switch t := it.(type) {
		case map[string]any:
			out = append(out, t)
		case string:
			out = append(out, map[string]any{"title": t})
		}
	}
	return out
}

// metricMap lifts scalars into a single-entry map so a model answering
// "change_percent": 12.5 still lands in the per-metric shape.
func metricMap(v any) map[string]any {
	switch t := v.(type) {
	case map[string]any:
		return t
	case nil:
		return nil
	default:
		return map[string]any{"overall": t}
	}
}

func stringSlice(v any) []string {
	switch t := v.(type) {
	case []string:
		return t
	case []any:
		out := make([]string, 0, len(t))
		for _, it := range t {
			if s := asString(it); s != "" {
				out = append(out, s)
			}
		}
		return out
	case string:
		if s := strings.TrimSpace(t); s != "" {
			return []string{s}
		}
	}
	return nil
}

func asString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", t)
	}
}

func asInt(v any) int {
	switch t := v.(type) {
	case float64:
		return int(t)
	case int:
		return t
	case string:
		n, _ := strconv.Atoi(strings.TrimSpace(t))
		return n
	default:
		return 0
	}
}
