package dataset

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

type NumericStats struct {
	Mean          float64
	Median        float64
	Min           float64
	Max           float64
	Sum           float64
	Std           float64
	First         float64
	Last          float64
	ChangePercent float64
	Count         int
}

type TimePoint struct {
	Date  string  `json:"date"`
	Value float64 `json:"value"`
}

type Stats struct {
	Numeric     map[string]NumericStats
	Categorical map[string]map[string]int
	Missing     map[string]int

	numericOrder []string
}

// dateColumnKeywords drive date-column detection for time series extraction.
var dateColumnKeywords = []string{"date", "day", "week", "month", "year", "time", "period"}

func computeStats(d *Dataset) *Stats {
	s := &Stats{
		Numeric:     map[string]NumericStats{},
		Categorical: map[string]map[string]int{},
		Missing:     map[string]int{},
	}
	for _, col := range d.Columns {
		values := make([]float64, 0, len(d.Rows))
		distinct := map[string]int{}
		numeric := len(d.Rows) > 0
		missing := 0
		for _, row := range d.Rows {
			v, ok := row[col]
			if !ok || v == nil || v == "" {
				missing++
				continue
			}
			if f, ok := asFloat(v); ok {
				values = append(values, f)
			} else {
				numeric = false
			}
			key := fmt.Sprintf("%v", v)
			if len(distinct) <= maxCategoricalDistinct {
				distinct[key]++
			}
		}
		if missing > 0 {
			s.Missing[col] = missing
		}
		if numeric && len(values) > 0 {
			s.Numeric[col] = summarizeValues(values)
			s.numericOrder = append(s.numericOrder, col)
		} else if !numeric && len(distinct) > 0 && len(distinct) < maxCategoricalDistinct {
			s.Categorical[col] = distinct
		}
	}
	return s
}

func summarizeValues(values []float64) NumericStats {
	st := NumericStats{Count: len(values), Min: values[0], Max: values[0], First: values[0], Last: values[len(values)-1]}
	for _, v := range values {
		st.Sum += v
		if v < st.Min {
			st.Min = v
		}
		if v > st.Max {
			st.Max = v
		}
	}
	st.Mean = st.Sum / float64(len(values))
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		st.Median = (sorted[mid-1] + sorted[mid]) / 2
	} else {
		st.Median = sorted[mid]
	}
	var sq float64
	for _, v := range values {
		sq += (v - st.Mean) * (v - st.Mean)
	}
	st.Std = math.Sqrt(sq / float64(len(values)))
	// Division-by-zero policy: a zero first value reports 0% change.
	if len(values) > 1 && st.First != 0 {
		st.ChangePercent = (st.Last - st.First) / st.First * 100
	}
	return st
}

// TopNumericByVariance ranks numeric columns by variance, ties broken by
// original column order, and returns at most n column names.
func (s *Stats) TopNumericByVariance(n int) []string {
	cols := append([]string(nil), s.numericOrder...)
	order := map[string]int{}
	for i, c := range cols {
		order[c] = i
	}
	sort.SliceStable(cols, func(i, j int) bool {
		vi := s.Numeric[cols[i]].Std * s.Numeric[cols[i]].Std
		vj := s.Numeric[cols[j]].Std * s.Numeric[cols[j]].Std
		if vi != vj {
			return vi > vj
		}
		return order[cols[i]] < order[cols[j]]
	})
	if len(cols) > n {
		cols = cols[:n]
	}
	return cols
}

// TopNumericByChange ranks numeric columns by |change_percent| descending,
// ties broken by original column order.
func (s *Stats) TopNumericByChange(n int) []string {
	cols := append([]string(nil), s.numericOrder...)
	order := map[string]int{}
	for i, c := range cols {
		order[c] = i
	}
	sort.SliceStable(cols, func(i, j int) bool {
		ci := math.Abs(s.Numeric[cols[i]].ChangePercent)
		cj := math.Abs(s.Numeric[cols[j]].ChangePercent)
		if ci != cj {
			return ci > cj
		}
		return order[cols[i]] < order[cols[j]]
	})
	if len(cols) > n {
		cols = cols[:n]
	}
	return cols
}

// DateColumn returns the first column whose name contains a date keyword, or
// "" when none exists.
func (d *Dataset) DateColumn() string {
	for _, col := range d.Columns {
		name := strings.ToLower(col)
		for _, kw := range dateColumnKeywords {
			if strings.Contains(name, kw) {
				return col
			}
		}
	}
	return ""
}

// DateRange returns the earliest and latest parseable dates in the detected
// date column, formatted as 2006-01-02.
func (d *Dataset) DateRange() (string, string, bool) {
	col := d.DateColumn()
	if col == "" {
		return "", "", false
	}
	var lo, hi time.Time
	found := false
	for _, row := range d.Rows {
		ts, ok := parseDate(row[col])
		if !ok {
			continue
		}
		if !found {
			lo, hi = ts, ts
			found = true
			continue
		}
		if ts.Before(lo) {
			lo = ts
		}
		if ts.After(hi) {
			hi = ts
		}
	}
	if !found {
		return "", "", false
	}
	return lo.Format("2006-01-02"), hi.Format("2006-01-02"), true
}

var dateLayouts = []string{"2006-01-02", "2006-01-02T15:04:05Z07:00", "02.01.2006", "01/02/2006", "2006-01"}

func parseDate(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		for _, layout := range dateLayouts {
			if ts, err := time.Parse(layout, t); err == nil {
				return ts, true
			}
		}
	}
	return time.Time{}, false
}

// TimeSeries extracts per-column time series for up to maxCols high-variance
// numeric columns, sorted by the detected date column and resampled down to
// maxPoints evenly spaced samples. Columns with fewer than 3 distinct values
// are skipped.
func (d *Dataset) TimeSeries(maxCols, maxPoints int) map[string][]TimePoint {
	dateCol := d.DateColumn()
	if dateCol == "" || d.Empty() {
		return nil
	}
	type dated struct {
		ts  time.Time
		row Record
	}
	rows := make([]dated, 0, len(d.Rows))
	for _, row := range d.Rows {
		if ts, ok := parseDate(row[dateCol]); ok {
			rows = append(rows, dated{ts: ts, row: row})
		}
	}
	if len(rows) == 0 {
		return nil
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].ts.Before(rows[j].ts) })

	out := map[string][]TimePoint{}
	for _, col := range d.Stats().TopNumericByVariance(maxCols) {
		distinct := map[float64]struct{}{}
		series := make([]TimePoint, 0, len(rows))
		for _, r := range rows {
			f, ok := asFloat(r.row[col])
			if !ok {
				continue
			}
			distinct[f] = struct{}{}
			series = append(series, TimePoint{Date: r.ts.Format("2006-01-02"), Value: f})
		}
		if len(distinct) < 3 {
			continue
		}
		out[col] = resample(series, maxPoints)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// resample keeps n evenly spaced points, always including first and last.
func resample(points []TimePoint, n int) []TimePoint {
	if len(points) <= n || n <= 0 {
		return points
	}
	out := make([]TimePoint, 0, n)
	for i := 0; i < n; i++ {
		idx := i * (len(points) - 1) / (n - 1)
		out = append(out, points[idx])
	}
	return out
}

func asFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int32:
		return float64(t), true
	case int64:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil
	default:
		return 0, false
	}
}
