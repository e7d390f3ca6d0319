package analysis

import (
	"errors"
	"fmt"
	"math"

	"github.com/montanaflynn/stats"

	"github.com/KaramelBytes/dataloom/internal/table"
)

// NoNumericMessage is the user-facing text of the "no numeric columns" result.
const NoNumericMessage = "No numeric columns selected for analysis"

// ErrUnknownColumn is returned when a caller names a column the table lacks.
var ErrUnknownColumn = errors.New("unknown column")

// ColumnStats are the descriptive statistics of one numeric column.
// Std is the sample standard deviation and is NaN for fewer than 2 values.
type ColumnStats struct {
	Column  string `json:"column"`
	Mean    Number `json:"mean"`
	Median  Number `json:"median"`
	Std     Number `json:"std"`
	Min     Number `json:"min"`
	Max     Number `json:"max"`
	P25     Number `json:"p25"`
	P75     Number `json:"p75"`
	Count   int    `json:"count"`
	Missing int    `json:"missing"`
}

// StatsTable holds per-column statistics in selection order. When NoNumeric is
// set the selection had no numeric columns and Columns is empty.
type StatsTable struct {
	Columns   []ColumnStats `json:"columns"`
	NoNumeric bool          `json:"no_numeric"`
	Message   string        `json:"message,omitempty"`
}

// Get returns the stats for a column.
func (s *StatsTable) Get(name string) (ColumnStats, bool) {
	for _, c := range s.Columns {
		if c.Column == name {
			return c, true
		}
	}
	return ColumnStats{}, false
}

// ComputeStats describes the numeric columns among columns (all columns when
// nil). It returns nil for a nil or empty table.
func ComputeStats(t *table.Table, columns []string) (*StatsTable, error) {
	if t.Empty() {
		return nil, nil
	}
	if columns == nil {
		columns = NumericColumns(t)
	}
	out := &StatsTable{}
	for _, name := range columns {
		c, ok := t.Column(name)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownColumn, name)
		}
		if !c.Kind.IsNumeric() {
			continue
		}
		out.Columns = append(out.Columns, describe(c))
	}
	if len(out.Columns) == 0 {
		return &StatsTable{NoNumeric: true, Message: NoNumericMessage}, nil
	}
	return out, nil
}

func describe(c *table.Column) ColumnStats {
	vals := c.Floats()
	cs := ColumnStats{
		Column:  c.Name,
		Count:   len(vals),
		Missing: c.Len() - len(vals),
		Mean:    Number(math.NaN()),
		Median:  Number(math.NaN()),
		Std:     Number(math.NaN()),
		Min:     Number(math.NaN()),
		Max:     Number(math.NaN()),
		P25:     Number(math.NaN()),
		P75:     Number(math.NaN()),
	}
	if len(vals) == 0 {
		return cs
	}
	if v, err := stats.Mean(vals); err == nil {
		cs.Mean = Number(v)
	}
	if v, err := stats.Median(vals); err == nil {
		cs.Median = Number(v)
	}
	if len(vals) >= 2 {
		if v, err := stats.StandardDeviationSample(vals); err == nil {
			cs.Std = Number(v)
		}
	}
	if v, err := stats.Min(vals); err == nil {
		cs.Min = Number(v)
	}
	if v, err := stats.Max(vals); err == nil {
		cs.Max = Number(v)
	}
	sorted := sortedCopy(vals)
	cs.P25 = Number(quantile(sorted, 0.25))
	cs.P75 = Number(quantile(sorted, 0.75))
	return cs
}

// MinMax returns the numeric bounds of a column, falling back to 0..100 when
// the column is absent, non-numeric or has no values.
func MinMax(t *table.Table, column string) (lo, hi float64) {
	c, ok := t.Column(column)
	if !ok || !c.Kind.IsNumeric() {
		return 0, 100
	}
	vals := c.Floats()
	if len(vals) == 0 {
		return 0, 100
	}
	lo, _ = stats.Min(vals)
	hi, _ = stats.Max(vals)
	return lo, hi
}
