package analysis

import (
	"math"

	"github.com/KaramelBytes/dataloom/internal/table"
)

// ColumnType is the user-facing classification of a column.
type ColumnType string

const (
	TypeInteger     ColumnType = "integer"
	TypeFloat       ColumnType = "float"
	TypeDatetime    ColumnType = "datetime"
	TypeCategorical ColumnType = "categorical"
	TypeText        ColumnType = "text"
)

// CategoricalThreshold is the exclusive distinct-value bound below which a
// non-numeric, non-datetime column is categorical.
const CategoricalThreshold = 10

// ColumnTypeMap maps column names to their inferred type.
type ColumnTypeMap map[string]ColumnType

// InferColumnTypes classifies every column. Precedence is numeric, datetime,
// low cardinality, then text. A nil or empty table yields an empty map.
func InferColumnTypes(t *table.Table) ColumnTypeMap {
	out := ColumnTypeMap{}
	if t.Empty() {
		return out
	}
	for _, c := range t.Columns() {
		out[c.Name] = classify(c)
	}
	return out
}

func classify(c *table.Column) ColumnType {
	switch c.Kind {
	case table.KindInt:
		return TypeInteger
	case table.KindFloat:
		for _, v := range c.Values {
			f, ok := table.AsFloat(v)
			if !ok {
				continue
			}
			if math.IsInf(f, 0) || f != math.Trunc(f) {
				return TypeFloat
			}
		}
		return TypeInteger
	case table.KindDatetime:
		return TypeDatetime
	}
	if distinct(c) < CategoricalThreshold {
		return TypeCategorical
	}
	return TypeText
}

func distinct(c *table.Column) int {
	seen := make(map[string]struct{})
	for _, v := range c.Values {
		if table.IsMissing(v) {
			continue
		}
		seen[valueKey(v)] = struct{}{}
	}
	return len(seen)
}

// NumericColumns returns the names of numeric columns in table order.
func NumericColumns(t *table.Table) []string {
	var out []string
	for _, c := range t.Columns() {
		if c.Kind.IsNumeric() {
			out = append(out, c.Name)
		}
	}
	return out
}

// ColumnsOfType returns the columns whose inferred type is one of types, in table order.
func ColumnsOfType(t *table.Table, types ...ColumnType) []string {
	m := InferColumnTypes(t)
	var out []string
	for _, name := range t.Names() {
		for _, ty := range types {
			if m[name] == ty {
				out = append(out, name)
				break
			}
		}
	}
	return out
}
