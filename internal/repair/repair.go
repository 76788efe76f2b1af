// Package repair turns damaged model output into a usable result map.
// Models asked for JSON still emit fenced blocks, smart quotes, trailing
// commas, or plain prose; ParseSafely absorbs all of that and never fails.
package repair

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
)

const (
	fallbackTitle     = "Analysis Report"
	fallbackSummary   = "The model response could not be parsed into a structured report."
	maxSummaryExtract = 300
)

// ParseSafely parses raw into a JSON object, repairing what it can. The
// cascade runs direct parse, fenced/braced extraction, string-level repairs,
// then free-text field extraction. The result always carries a non-empty
// title and summary.
func ParseSafely(raw string) map[string]any {
	trimmed := strings.TrimSpace(raw)
	if trimmed != "" {
		if m, ok := tryParse(trimmed); ok {
			return finalize(m)
		}
		for _, cand := range extractCandidates(trimmed) {
			repaired := applyStringRepairs(cand)
			unescaped := strings.ReplaceAll(repaired, `\"`, `"`)
			for _, attempt := range []string{cand, repaired, unescaped} {
				if m, ok := tryParse(attempt); ok {
					return finalize(m)
				}
			}
		}
	}
	return finalize(extractFromText(trimmed))
}

func tryParse(s string) (map[string]any, bool) {
	var m map[string]any
	if err := json.Unmarshal([]byte(s), &m); err != nil || m == nil {
		return nil, false
	}
	return m, true
}

var (
	fencedBlock = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")
	smartQuotes = strings.NewReplacer("“", `"`, "”", `"`, "‘", "'", "’", "'")
	trailingCommas = regexp.MustCompile(`,\s*([}\]])`)
)

// extractCandidates pulls JSON-looking spans out of surrounding prose:
// fenced code blocks first, then the outermost brace span.
func extractCandidates(s string) []string {
	var out []string
	for _, m := range fencedBlock.FindAllStringSubmatch(s, -1) {
		out = append(out, m[1])
	}
	if lo := strings.Index(s, "{"); lo >= 0 {
		if hi := strings.LastIndex(s, "}"); hi > lo {
			out = append(out, s[lo:hi+1])
		}
	}
	return out
}

// applyStringRepairs fixes the common mechanical damage: typographic quotes
// and trailing commas. The caller additionally tries a fully unescaped
// variant for output where the whole object arrived backslash-escaped.
func applyStringRepairs(s string) string {
	s = smartQuotes.Replace(s)
	s = trailingCommas.ReplaceAllString(s, "$1")
	return s
}

// Free-text extraction probes, applied in order. Each probe fills one result
// field when its pattern matches the prose.
var textProbes = []struct {
	field   string
	extract func(text string) (any, bool)
}{
	{"title", extractTitle},
	{"summary", extractSummary},
	{"period_data", extractPeriod},
	{"dynamics", extractDynamics},
	{"factors", extractFactors},
	{"completed_tasks", extractTasks("completed")},
	{"pending_tasks", extractTasks("pending")},
}

func extractFromText(text string) map[string]any {
	out := map[string]any{}
	for _, p := range textProbes {
		if v, ok := p.extract(text); ok {
			out[p.field] = v
		}
	}
	return out
}

var (
	headingLine = regexp.MustCompile(`(?m)^#{1,3}\s+(.+?)\s*$`)
	titleLabel  = regexp.MustCompile(`(?im)^title\s*[:\-]\s*(.+)$`)
	summaryLabel = regexp.MustCompile(`(?is)summary\s*[:\-]\s*(.+?)(?:\n\s*\n|$)`)
	isoDate      = regexp.MustCompile(`\d{4}-\d{2}-\d{2}`)
	percentValue = regexp.MustCompile(`(-?\d+(?:\.\d+)?)\s*%`)
	bulletLine   = regexp.MustCompile(`(?m)^\s*[-*•]\s+(.+?)\s*$`)
)

func extractTitle(text string) (any, bool) {
	if m := headingLine.FindStringSubmatch(text); m != nil {
		return m[1], true
	}
	if m := titleLabel.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1]), true
	}
	return nil, false
}

func extractSummary(text string) (any, bool) {
	if m := summaryLabel.FindStringSubmatch(text); m != nil {
		return clip(strings.TrimSpace(m[1]), maxSummaryExtract), true
	}
	// First non-heading paragraph.
	for _, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" || strings.HasPrefix(para, "#") {
			continue
		}
		return clip(para, maxSummaryExtract), true
	}
	return nil, false
}

func extractPeriod(text string) (any, bool) {
	dates := isoDate.FindAllString(text, -1)
	if len(dates) == 0 {
		return nil, false
	}
	return map[string]any{
		"start_date": dates[0],
		"end_date":   dates[len(dates)-1],
	}, true
}

func extractDynamics(text string) (any, bool) {
	m := percentValue.FindStringSubmatch(text)
	if m == nil {
		return nil, false
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return nil, false
	}
	return map[string]any{"change_percent": map[string]any{"overall": v}}, true
}

func extractFactors(text string) (any, bool) {
	bullets := bulletItems(text, "")
	if len(bullets) == 0 {
		return nil, false
	}
	return map[string]any{"key_factors": bullets}, true
}

// extractTasks returns a probe for bullet lines under a heading containing
// the given word.
func extractTasks(word string) func(string) (any, bool) {
	return func(text string) (any, bool) {
		items := bulletItems(text, word)
		if len(items) == 0 {
			return nil, false
		}
		return items, true
	}
}

// bulletItems collects bullet lines; when section is non-empty only bullets
// after a heading or label line containing the word count, until a new
// section starts.
func bulletItems(text, section string) []any {
	var out []any
	inSection := section == ""
	for _, line := range strings.Split(text, "\n") {
		if section != "" {
			lower := strings.ToLower(line)
			if strings.HasPrefix(strings.TrimSpace(line), "#") || strings.HasSuffix(strings.TrimSpace(line), ":") {
				inSection = strings.Contains(lower, section)
				continue
			}
		}
		if !inSection {
			continue
		}
		if m := bulletLine.FindStringSubmatch(line); m != nil {
			out = append(out, m[1])
		}
	}
	return out
}

// finalize guarantees the caller can always read a title and a summary.
func finalize(m map[string]any) map[string]any {
	if m == nil {
		m = map[string]any{}
	}
	if blankString(m["title"]) {
		m["title"] = fallbackTitle
	}
	if blankString(m["summary"]) {
		m["summary"] = fallbackSummary
	}
	return m
}

func blankString(v any) bool {
	s, ok := v.(string)
	return !ok || strings.TrimSpace(s) == ""
}

func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
