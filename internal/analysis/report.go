package analysis

import (
	"fmt"
	"sort"
	"strings"

	"github.com/KaramelBytes/dataloom/internal/table"
)

// ReportOptions controls BuildReport.
type ReportOptions struct {
	// SampleRows is how many leading rows to include. 0 means 5.
	SampleRows int
	// GroupBy computes per-group numeric means for the given column names.
	GroupBy []string
	// Correlations includes the top Pearson pairs.
	Correlations bool
	// Outliers includes robust outlier counts; OutlierThreshold 0 means DefaultOutlierThreshold.
	Outliers         bool
	OutlierThreshold float64
}

// DefaultReportOptions returns the options used for chat context and `analyze`.
func DefaultReportOptions() ReportOptions {
	return ReportOptions{SampleRows: 5, Correlations: true, Outliers: true}
}

// Report is a markdown-friendly analysis of a dataset.
type Report struct {
	Name     string
	Rows     int
	Cols     []ColumnSummary
	Samples  [][]string
	Warnings []string
	Groups   []GroupResult
	Corr     *CorrMatrix
}

// ColumnSummary captures inferred type and statistics per column.
type ColumnSummary struct {
	Name    string
	Type    ColumnType
	NonNull int
	Missing int
	Unique  int
	// numeric
	Stats            *ColumnStats
	OutliersCount    int
	OutliersMaxAbsZ  float64
	OutlierThreshold float64
	// categorical
	TopValues []CategoryCount
	// text
	ExampleTexts []string
}

// GroupResult captures aggregated metrics per group key.
type GroupResult struct {
	Key     string
	Size    int
	Metrics map[string]NumSummary
}

// NumSummary is a compact numeric aggregate.
type NumSummary struct {
	Count          int
	Min, Max, Mean float64
}

// BuildReport profiles t for display or as LLM context.
func BuildReport(name string, t *table.Table, opt ReportOptions) *Report {
	rep := &Report{Name: name, Rows: t.NumRows()}
	if t.NumCols() == 0 {
		return rep
	}
	sampleRows := opt.SampleRows
	if sampleRows <= 0 {
		sampleRows = 5
	}
	thr := opt.OutlierThreshold
	if thr <= 0 {
		thr = DefaultOutlierThreshold
	}
	types := InferColumnTypes(t)
	for _, c := range t.Columns() {
		miss := c.Missing()
		s := ColumnSummary{Name: c.Name, Type: types[c.Name], NonNull: c.Len() - miss, Missing: miss, Unique: distinct(c)}
		switch {
		case c.Kind.IsNumeric():
			cs := describe(c)
			s.Stats = &cs
			if opt.Outliers {
				s.OutliersCount, s.OutliersMaxAbsZ = robustOutliers(c.Floats(), thr)
				s.OutlierThreshold = thr
			}
		case s.Type == TypeCategorical:
			tops := CategoricalDistribution(t, c.Name)
			if len(tops) > 8 {
				tops = tops[:8]
			}
			s.TopValues = tops
		case s.Type == TypeText:
			for _, v := range c.Values {
				if table.IsMissing(v) {
					continue
				}
				s.ExampleTexts = append(s.ExampleTexts, table.FormatValue(v))
				if len(s.ExampleTexts) == 3 {
					break
				}
			}
		}
		rep.Cols = append(rep.Cols, s)
	}

	head := t.Head(sampleRows)
	for i := 0; i < head.NumRows(); i++ {
		row := make([]string, head.NumCols())
		for j, v := range head.Row(i) {
			row[j] = table.FormatValue(v)
		}
		rep.Samples = append(rep.Samples, row)
	}

	if len(opt.GroupBy) > 0 {
		groups, warn := groupBy(t, opt.GroupBy)
		rep.Groups = groups
		rep.Warnings = append(rep.Warnings, warn...)
	}
	if opt.Correlations {
		if m, err := Correlation(t, nil); err == nil {
			rep.Corr = m
		}
	}
	return rep
}

func groupBy(t *table.Table, names []string) ([]GroupResult, []string) {
	var keys []*table.Column
	var warns []string
	for _, n := range names {
		c, ok := t.Column(strings.TrimSpace(n))
		if !ok {
			warns = append(warns, fmt.Sprintf("group-by column %q not found", n))
			continue
		}
		keys = append(keys, c)
	}
	if len(keys) == 0 {
		return nil, warns
	}
	numeric := NumericColumns(t)
	type acc struct {
		size int
		sum  map[string]float64
		agg  map[string]NumSummary
	}
	groups := map[string]*acc{}
	for i := 0; i < t.NumRows(); i++ {
		parts := make([]string, len(keys))
		for k, c := range keys {
			parts[k] = fmt.Sprintf("%s=%s", c.Name, safeVal(table.FormatValue(c.Values[i])))
		}
		key := strings.Join(parts, " | ")
		g := groups[key]
		if g == nil {
			g = &acc{sum: map[string]float64{}, agg: map[string]NumSummary{}}
			groups[key] = g
		}
		g.size++
		for _, name := range numeric {
			c, _ := t.Column(name)
			x, ok := table.AsFloat(c.Values[i])
			if !ok {
				continue
			}
			m, seen := g.agg[name]
			if !seen || x < m.Min {
				m.Min = x
			}
			if !seen || x > m.Max {
				m.Max = x
			}
			m.Count++
			g.sum[name] += x
			g.agg[name] = m
		}
	}
	out := make([]GroupResult, 0, len(groups))
	for k, g := range groups {
		gr := GroupResult{Key: k, Size: g.size, Metrics: map[string]NumSummary{}}
		for name, m := range g.agg {
			m.Mean = g.sum[name] / float64(m.Count)
			gr.Metrics[name] = m
		}
		out = append(out, gr)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Size == out[j].Size {
			return out[i].Key < out[j].Key
		}
		return out[i].Size > out[j].Size
	})
	if len(out) > 20 {
		warns = append(warns, fmt.Sprintf("showing 20 of %d groups", len(out)))
		out = out[:20]
	}
	return out, warns
}

// Markdown renders a compact report suitable for prompts or standalone docs.
func (r *Report) Markdown() string {
	var b strings.Builder
	b.WriteString("[DATASET SUMMARY]\n")
	if r.Name != "" {
		b.WriteString(fmt.Sprintf("File: %s\n", r.Name))
	}
	b.WriteString(fmt.Sprintf("Rows: %d\n", r.Rows))
	b.WriteString(fmt.Sprintf("Columns: %d\n\n", len(r.Cols)))

	b.WriteString("[SCHEMA]\n")
	for _, c := range r.Cols {
		total := c.NonNull + c.Missing
		missPct := 0.0
		if total > 0 {
			missPct = float64(c.Missing) * 100.0 / float64(total)
		}
		b.WriteString(fmt.Sprintf("- %s: %s (non-null %d, missing %.1f%%)", safeName(c.Name), c.Type, c.NonNull, missPct))
		switch {
		case c.Stats != nil:
			s := c.Stats
			b.WriteString(fmt.Sprintf(": min %.4g, max %.4g, mean %.4g, std %.4g", s.Min, s.Max, s.Mean, s.Std))
			if c.OutlierThreshold > 0 {
				b.WriteString(fmt.Sprintf("; outliers: %d above |z|>%.1f", c.OutliersCount, c.OutlierThreshold))
				if c.OutliersMaxAbsZ > 0 {
					b.WriteString(fmt.Sprintf(" (max |z|≈%.2f)", c.OutliersMaxAbsZ))
				}
			}
		case len(c.TopValues) > 0:
			b.WriteString(": top ")
			for i, kv := range c.TopValues {
				if i > 0 {
					b.WriteString(", ")
				}
				b.WriteString(fmt.Sprintf("%s(%d)", safeVal(kv.Value), kv.Count))
			}
			if c.Unique > len(c.TopValues) {
				b.WriteString(fmt.Sprintf("; unique=%d", c.Unique))
			}
		case len(c.ExampleTexts) > 0:
			b.WriteString(": e.g., ")
			for i, ex := range c.ExampleTexts {
				if i > 0 {
					b.WriteString(" | ")
				}
				b.WriteString(safeVal(truncate(ex, 80)))
			}
		}
		b.WriteString("\n")
	}
	if len(r.Groups) > 0 {
		b.WriteString("\n[GROUP-BY SUMMARY]\n")
		for _, g := range r.Groups {
			b.WriteString(fmt.Sprintf("- %s (n=%d)\n", g.Key, g.Size))
			keys := make([]string, 0, len(g.Metrics))
			for k := range g.Metrics {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			if len(keys) > 6 {
				keys = keys[:6]
			}
			for _, k := range keys {
				m := g.Metrics[k]
				b.WriteString(fmt.Sprintf("  • %s: mean %.4g (min %.4g, max %.4g)\n", k, m.Mean, m.Min, m.Max))
			}
		}
	}
	if r.Corr != nil {
		if pairs := r.Corr.TopPairs(10); len(pairs) > 0 {
			b.WriteString("\n[CORRELATIONS]\n")
			for _, p := range pairs {
				b.WriteString(fmt.Sprintf("- %s ~ %s: r=%.3f\n", p.A, p.B, p.R))
			}
		}
	}
	if len(r.Samples) > 0 {
		b.WriteString("\n[HEAD AND SAMPLE ROWS]\n| ")
		for i, c := range r.Cols {
			if i > 0 {
				b.WriteString(" | ")
			}
			b.WriteString(safeName(c.Name))
		}
		b.WriteString(" |\n| ")
		for i := range r.Cols {
			if i > 0 {
				b.WriteString(" | ")
			}
			b.WriteString("---")
		}
		b.WriteString(" |\n")
		for _, row := range r.Samples {
			b.WriteString("| ")
			for i, val := range row {
				if i > 0 {
					b.WriteString(" | ")
				}
				b.WriteString(safeVal(truncate(val, 80)))
			}
			b.WriteString(" |\n")
		}
	}
	if len(r.Warnings) > 0 {
		b.WriteString("\n[NOTES]\n")
		for _, w := range r.Warnings {
			b.WriteString("- ")
			b.WriteString(w)
			b.WriteString("\n")
		}
	}
	return b.String()
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n-3] + "..."
	}
	return s
}

func safeName(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "(unnamed)"
	}
	return s
}

func safeVal(s string) string { return strings.ReplaceAll(strings.ReplaceAll(s, "\n", " "), "|", "/") }
