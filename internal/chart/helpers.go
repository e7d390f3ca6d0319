package chart

import (
	"math"
	"sort"

	"github.com/KaramelBytes/dataloom/internal/analysis"
	"github.com/KaramelBytes/dataloom/internal/table"
)

type rowGroup struct {
	name string
	rows []int
}

// groupRows splits row indices by the value of by, in first-appearance order.
// A nil column yields a single unnamed group of all rows. Rows with a missing
// group value are dropped.
func groupRows(by *table.Column, n int) []rowGroup {
	if by == nil {
		return []rowGroup{{rows: allRows(n)}}
	}
	idx := map[string]int{}
	var out []rowGroup
	for i, v := range by.Values {
		if table.IsMissing(v) {
			continue
		}
		k := table.FormatValue(v)
		j, ok := idx[k]
		if !ok {
			j = len(out)
			idx[k] = j
			out = append(out, rowGroup{name: k})
		}
		out[j].rows = append(out[j].rows, i)
	}
	return out
}

func allRows(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

// pick returns JSON-friendly cell values of c at rows.
func pick(c *table.Column, rows []int) []any {
	out := make([]any, len(rows))
	for i, r := range rows {
		v := c.Values[r]
		switch {
		case table.IsMissing(v):
			out[i] = nil
		case c.Kind == table.KindDatetime:
			out[i] = table.FormatValue(v)
		default:
			out[i] = v
		}
	}
	return out
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func strings2any(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

func nan() analysis.Number { return analysis.Number(math.NaN()) }

// fiveNumber summarizes vals with linear quartiles and 1.5*IQR fences clamped
// to the observed data.
func fiveNumber(group string, vals []float64) BoxStats {
	sorted := append([]float64(nil), vals...)
	sort.Float64s(sorted)
	b := BoxStats{
		Group:  group,
		Min:    sorted[0],
		Max:    sorted[len(sorted)-1],
		Q1:     analysis.Quantile(sorted, 0.25),
		Median: analysis.Quantile(sorted, 0.5),
		Q3:     analysis.Quantile(sorted, 0.75),
	}
	iqr := b.Q3 - b.Q1
	lo, hi := b.Q1-1.5*iqr, b.Q3+1.5*iqr
	b.LowerFence, b.UpperFence = b.Max, b.Min
	for _, v := range sorted {
		if v >= lo && v < b.LowerFence {
			b.LowerFence = v
		}
		if v <= hi && v > b.UpperFence {
			b.UpperFence = v
		}
	}
	return b
}
