package analysis

import (
	"math"
	"strings"

	"github.com/KaramelBytes/dataloom/internal/table"
)

// DefaultOutlierThreshold is the robust |z| above which a value counts as an outlier.
const DefaultOutlierThreshold = 3.5

// minOutlierSample is the smallest column size on which outliers are reported.
const minOutlierSample = 8

// ColumnProfile is one row of the column information table.
type ColumnProfile struct {
	Name           string     `json:"name"`
	Type           ColumnType `json:"type"`
	Kind           string     `json:"dtype"`
	NonNull        int        `json:"non_null"`
	Null           int        `json:"null"`
	Unique         int        `json:"unique"`
	MissingPercent float64    `json:"missing_percent"`
	Outliers       int        `json:"outliers"`
	MaxAbsZ        float64    `json:"max_abs_z"`
}

// ProfileColumns describes every column in table order.
func ProfileColumns(t *table.Table) []ColumnProfile {
	if t.Empty() {
		return nil
	}
	types := InferColumnTypes(t)
	out := make([]ColumnProfile, 0, t.NumCols())
	for _, c := range t.Columns() {
		miss := c.Missing()
		p := ColumnProfile{
			Name:    c.Name,
			Type:    types[c.Name],
			Kind:    c.Kind.String(),
			NonNull: c.Len() - miss,
			Null:    miss,
			Unique:  distinct(c),
		}
		if c.Len() > 0 {
			p.MissingPercent = round2(float64(miss) * 100 / float64(c.Len()))
		}
		if c.Kind.IsNumeric() {
			p.Outliers, p.MaxAbsZ = robustOutliers(c.Floats(), DefaultOutlierThreshold)
		}
		out = append(out, p)
	}
	return out
}

// robustOutliers counts values whose robust Z-score (via MAD) exceeds thr.
func robustOutliers(vals []float64, thr float64) (count int, maxAbsZ float64) {
	if len(vals) < minOutlierSample {
		return 0, 0
	}
	median, mad := medianMAD(vals)
	if mad == 0 {
		return 0, 0
	}
	for _, v := range vals {
		az := math.Abs(0.6745 * (v - median) / mad)
		if az > thr {
			count++
		}
		if az > maxAbsZ {
			maxAbsZ = az
		}
	}
	return count, maxAbsZ
}

// Search returns the rows where any cell contains term, ignoring case.
// An empty term returns t.
func Search(t *table.Table, term string) *table.Table {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" || t.Empty() {
		return t
	}
	var keep []int
	for i := 0; i < t.NumRows(); i++ {
		for _, c := range t.Columns() {
			v := c.Values[i]
			if table.IsMissing(v) {
				continue
			}
			if strings.Contains(strings.ToLower(table.FormatValue(v)), term) {
				keep = append(keep, i)
				break
			}
		}
	}
	return t.SelectRows(keep)
}
