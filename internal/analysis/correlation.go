package analysis

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/KaramelBytes/dataloom/internal/table"
)

// ErrNotEnoughNumeric is returned when a correlation needs at least two numeric columns.
var ErrNotEnoughNumeric = errors.New("need at least 2 numeric columns for correlation")

// CorrMatrix holds a symmetric Pearson correlation matrix across numeric columns.
type CorrMatrix struct {
	Columns []string   `json:"columns"`
	Values  [][]Number `json:"values"` // row-major, Values[i][j]
}

// PairCorr is a simple correlation pair summary.
type PairCorr struct {
	A, B string
	R    float64
}

// Correlation computes pairwise-complete Pearson correlations among the numeric
// columns in columns (all numeric columns when nil). Pairs with fewer than two
// shared rows or zero variance are NaN.
func Correlation(t *table.Table, columns []string) (*CorrMatrix, error) {
	if columns == nil {
		columns = NumericColumns(t)
	}
	var cols []*table.Column
	for _, name := range columns {
		c, ok := t.Column(name)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownColumn, name)
		}
		if c.Kind.IsNumeric() {
			cols = append(cols, c)
		}
	}
	if len(cols) < 2 {
		return nil, ErrNotEnoughNumeric
	}
	n := len(cols)
	m := &CorrMatrix{Columns: make([]string, n), Values: make([][]Number, n)}
	for i, c := range cols {
		m.Columns[i] = c.Name
		m.Values[i] = make([]Number, n)
	}
	for a := 0; a < n; a++ {
		m.Values[a][a] = 1
		for b := a + 1; b < n; b++ {
			r := pearson(cols[a], cols[b])
			m.Values[a][b] = Number(r)
			m.Values[b][a] = Number(r)
		}
	}
	return m, nil
}

func pearson(a, b *table.Column) float64 {
	var xs, ys []float64
	for i := range a.Values {
		x, okX := table.AsFloat(a.Values[i])
		y, okY := table.AsFloat(b.Values[i])
		if okX && okY {
			xs = append(xs, x)
			ys = append(ys, y)
		}
	}
	if len(xs) < 2 {
		return math.NaN()
	}
	r := stat.Correlation(xs, ys, nil)
	if math.IsInf(r, 0) {
		return math.NaN()
	}
	return math.Max(-1, math.Min(1, r))
}

// TopPairs lists the off-diagonal pairs by descending |r|, skipping undefined ones.
func (m *CorrMatrix) TopPairs(limit int) []PairCorr {
	var pairs []PairCorr
	n := len(m.Columns)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			r := m.Values[i][j]
			if !r.Defined() {
				continue
			}
			pairs = append(pairs, PairCorr{A: m.Columns[i], B: m.Columns[j], R: float64(r)})
		}
	}
	sort.Slice(pairs, func(i, j int) bool {
		ai, aj := math.Abs(pairs[i].R), math.Abs(pairs[j].R)
		if ai == aj {
			return pairs[i].A+pairs[i].B < pairs[j].A+pairs[j].B
		}
		return ai > aj
	})
	if limit > 0 && len(pairs) > limit {
		pairs = pairs[:limit]
	}
	return pairs
}
