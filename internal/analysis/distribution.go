package analysis

import (
	"fmt"
	"math"
	"sort"

	"github.com/KaramelBytes/dataloom/internal/table"
)

const (
	// DefaultBins is the histogram bin count used when none is given.
	DefaultBins = 10
	// MaxBins bounds every histogram; larger requests are clamped.
	MaxBins = 100
)

// CategoryCount is one row of a categorical distribution.
type CategoryCount struct {
	Value      string  `json:"value"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

// CategoricalDistribution counts the non-missing values of a column, most
// frequent first; ties keep first-appearance order. Percentages are of the
// non-missing total, rounded to 2 decimals. An absent column yields nil.
func CategoricalDistribution(t *table.Table, column string) []CategoryCount {
	if t.Empty() {
		return nil
	}
	c, ok := t.Column(column)
	if !ok {
		return nil
	}
	var out []CategoryCount
	pos := map[string]int{}
	total := 0
	for _, v := range c.Values {
		if table.IsMissing(v) {
			continue
		}
		total++
		k := valueKey(v)
		if i, ok := pos[k]; ok {
			out[i].Count++
			continue
		}
		pos[k] = len(out)
		out = append(out, CategoryCount{Value: table.FormatValue(v), Count: 1})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	for i := range out {
		out[i].Percentage = round2(float64(out[i].Count) / float64(total) * 100)
	}
	return out
}

// Histogram is an equal-width binning of a numeric column.
// Edges has len(Counts)+1 entries.
type Histogram struct {
	Column string    `json:"column"`
	Labels []string  `json:"labels"`
	Counts []int     `json:"counts"`
	Edges  []float64 `json:"edges"`
}

// NumericDistribution bins the non-missing values of a numeric column over
// their observed [min, max]. The last bin includes its right edge. bins <= 0
// means DefaultBins; bins above MaxBins are clamped. Absent or non-numeric
// columns yield nil.
func NumericDistribution(t *table.Table, column string, bins int) *Histogram {
	if t.Empty() {
		return nil
	}
	c, ok := t.Column(column)
	if !ok || !c.Kind.IsNumeric() {
		return nil
	}
	if bins <= 0 {
		bins = DefaultBins
	}
	bins = min(bins, MaxBins)
	var vals []float64
	for _, f := range c.Floats() {
		if !math.IsInf(f, 0) {
			vals = append(vals, f)
		}
	}
	lo, hi := 0.0, 1.0
	if len(vals) > 0 {
		lo, hi = vals[0], vals[0]
		for _, v := range vals[1:] {
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
		if lo == hi {
			lo -= 0.5
			hi += 0.5
		}
	}

	edges := make([]float64, bins+1)
	width := (hi - lo) / float64(bins)
	for i := range edges {
		edges[i] = lo + float64(i)*width
	}
	edges[bins] = hi

	counts := make([]int, bins)
	for _, v := range vals {
		counts[binIndex(edges, v)]++
	}
	labels := make([]string, bins)
	for i := 0; i < bins; i++ {
		labels[i] = fmt.Sprintf("%.2f-%.2f", edges[i], edges[i+1])
	}
	return &Histogram{Column: column, Labels: labels, Counts: counts, Edges: edges}
}

// binIndex finds the bin for v: the last edge <= v, with v == max in the last bin.
func binIndex(edges []float64, v float64) int {
	n := len(edges) - 1
	i := sort.Search(len(edges), func(k int) bool { return edges[k] > v }) - 1
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}

// Bin returns the index of the bin holding v, clamped to the outer bins.
func (h *Histogram) Bin(v float64) int {
	return binIndex(h.Edges, v)
}
