// Package render turns an analysis result into markdown, HTML, and PDF
// report documents.
package render

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/expovision/marketpulse/internal/analyze"
)

// BuildMarkdown renders the report document for a stored analysis result.
func BuildMarkdown(result analyze.AnalysisResult, meta analyze.RunMetadata) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", sanitize(result.Title))
	fmt.Fprintf(&b, "- Analysis: %s\n", meta.Kind)
	fmt.Fprintf(&b, "- Period: %s to %s\n", sanitize(result.PeriodData.StartDate), sanitize(result.PeriodData.EndDate))
	if !meta.FinishedAt.IsZero() {
		fmt.Fprintf(&b, "- Generated: %s\n", meta.FinishedAt.Format(time.RFC3339))
	}
	fmt.Fprintf(&b, "- Mode: %s\n\n", meta.Mode)

	if meta.Mode == analyze.RunModeDegraded {
		fmt.Fprintf(&b, "> DEGRADED: parts of this analysis fell back to default content. Treat the conclusions as partial pending human review.\n\n")
	}

	fmt.Fprintf(&b, "## Summary\n\n%s\n\n", strings.TrimSpace(result.Summary))

	writeDynamics(&b, result.Dynamics)
	writeFactors(&b, result.Factors)
	writeTasks(&b, result)
	writeLinks(&b, result.Links)

	return b.String()
}

func writeDynamics(b *strings.Builder, d analyze.Dynamics) {
	fmt.Fprintf(b, "## Dynamics\n\n")
	fmt.Fprintf(b, "- Rows analyzed: %d\n", d.TotalRows)
	fmt.Fprintf(b, "- Columns analyzed: %d\n\n", d.TotalColumns)

	metrics := metricNames(d.Mean, d.Median, d.ChangePercent)
	if len(metrics) == 0 {
		return
	}
	fmt.Fprintf(b, "| Metric | Mean | Median | Change %% |\n")
	fmt.Fprintf(b, "|---|---|---|---|\n")
	for _, m := range metrics {
		fmt.Fprintf(b, "| %s | %s | %s | %s |\n",
			sanitize(m), formatValue(d.Mean[m]), formatValue(d.Median[m]), formatValue(d.ChangePercent[m]))
	}
	b.WriteString("\n")
}

func writeFactors(b *strings.Builder, f analyze.Factors) {
	if len(f.KeyFactors) == 0 && len(f.MissingValues) == 0 {
		return
	}
	fmt.Fprintf(b, "## Key Factors\n\n")
	for _, kf := range f.KeyFactors {
		fmt.Fprintf(b, "- %s\n", sanitize(kf))
	}
	if len(f.KeyFactors) > 0 {
		b.WriteString("\n")
	}
	if len(f.MissingValues) > 0 {
		fmt.Fprintf(b, "Missing values by column:\n\n")
		for _, col := range sortedMapKeys(f.MissingValues) {
			fmt.Fprintf(b, "- %s: %s\n", sanitize(col), formatValue(f.MissingValues[col]))
		}
		b.WriteString("\n")
	}
}

func writeTasks(b *strings.Builder, r analyze.AnalysisResult) {
	if len(r.CompletedTasks) == 0 && len(r.PendingTasks) == 0 {
		return
	}
	fmt.Fprintf(b, "## Tasks\n\n")
	for _, t := range r.CompletedTasks {
		fmt.Fprintf(b, "- [x] %s\n", sanitize(t))
	}
	for _, t := range r.PendingTasks {
		fmt.Fprintf(b, "- [ ] %s\n", sanitize(t))
	}
	b.WriteString("\n")
}

func writeLinks(b *strings.Builder, links analyze.Links) {
	if len(links.Internal) == 0 && len(links.External) == 0 {
		return
	}
	fmt.Fprintf(b, "## Related\n\n")
	for _, l := range links.Internal {
		fmt.Fprintf(b, "- %s (%s)\n", sanitize(anyString(l["title"])), sanitize(anyString(l["type"])))
	}
	for _, l := range links.External {
		title := sanitize(anyString(l["title"]))
		if url := anyString(l["url"]); url != "" {
			fmt.Fprintf(b, "- [%s](%s)\n", title, url)
		} else if title != "" {
			fmt.Fprintf(b, "- %s\n", title)
		}
	}
	b.WriteString("\n")
}

func metricNames(maps ...map[string]any) []string {
	seen := map[string]bool{}
	var out []string
	for _, m := range maps {
		for k := range m {
			if !seen[k] {
				seen[k] = true
				out = append(out, k)
			}
		}
	}
	sort.Strings(out)
	return out
}

func sortedMapKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func formatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return "-"
	case float64:
		return strconv.FormatFloat(t, 'f', 2, 64)
	case int:
		return strconv.Itoa(t)
	case string:
		return sanitize(t)
	default:
		return sanitize(fmt.Sprintf("%v", t))
	}
}

func anyString(v any) string {
	s, _ := v.(string)
	return s
}

// sanitize keeps user/model strings from breaking the markdown table and
// list structure.
func sanitize(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "|", "\\|")
	return strings.TrimSpace(s)
}
