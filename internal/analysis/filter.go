package analysis

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/KaramelBytes/dataloom/internal/loader"
	"github.com/KaramelBytes/dataloom/internal/table"
)

// Operator is a filter comparison.
type Operator int

const (
	OpUnknown Operator = iota
	OpEquals
	OpNotEquals
	OpGreaterThan
	OpLessThan
	OpContains
	OpStartsWith
	OpEndsWith
	OpInRange
)

var operatorNames = map[Operator]string{
	OpEquals:      "equals",
	OpNotEquals:   "not_equals",
	OpGreaterThan: "greater_than",
	OpLessThan:    "less_than",
	OpContains:    "contains",
	OpStartsWith:  "starts_with",
	OpEndsWith:    "ends_with",
	OpInRange:     "in_range",
}

func (o Operator) String() string {
	if n, ok := operatorNames[o]; ok {
		return n
	}
	return "unknown"
}

// ParseOperator maps an operator name to its Operator; unknown names yield OpUnknown.
func ParseOperator(s string) Operator {
	k := strings.ToLower(strings.TrimSpace(s))
	for op, n := range operatorNames {
		if n == k {
			return op
		}
	}
	return OpUnknown
}

// MarshalText implements encoding.TextMarshaler.
func (o Operator) MarshalText() ([]byte, error) { return []byte(o.String()), nil }

// UnmarshalText accepts any text; unknown operators decode to OpUnknown so the
// filter is skipped instead of failing the whole request.
func (o *Operator) UnmarshalText(b []byte) error {
	*o = ParseOperator(string(b))
	return nil
}

// OperatorsFor lists the operators offered for a column type.
func OperatorsFor(ct ColumnType) []Operator {
	switch ct {
	case TypeInteger, TypeFloat:
		return []Operator{OpEquals, OpNotEquals, OpGreaterThan, OpLessThan, OpInRange}
	case TypeDatetime:
		return []Operator{OpEquals, OpGreaterThan, OpLessThan, OpInRange}
	default:
		return []Operator{OpEquals, OpNotEquals, OpContains, OpStartsWith, OpEndsWith}
	}
}

// Filter is one predicate. Value is a scalar, or a two-element slice for in_range.
type Filter struct {
	Column   string   `json:"column"`
	Operator Operator `json:"operator"`
	Value    any      `json:"value"`
}

func (f Filter) String() string {
	return fmt.Sprintf("%s %s %v", f.Column, f.Operator, f.Value)
}

// FilterSet is an ordered list of filters combined with logical AND.
type FilterSet []Filter

// Skipped describes a filter that Filter ignores.
type Skipped struct {
	Index  int    `json:"index"`
	Filter Filter `json:"filter"`
	Reason string `json:"reason"`
}

// Check reports which filters will be skipped against t and why.
func (fs FilterSet) Check(t *table.Table) []Skipped {
	var out []Skipped
	for i, f := range fs {
		if reason := f.skipReason(t); reason != "" {
			out = append(out, Skipped{Index: i, Filter: f, Reason: reason})
		}
	}
	return out
}

func (f Filter) skipReason(t *table.Table) string {
	switch {
	case strings.TrimSpace(f.Column) == "":
		return "missing column"
	case f.Operator == OpUnknown:
		return "missing or unknown operator"
	case f.Value == nil:
		return "missing value"
	}
	if _, ok := t.Column(f.Column); !ok {
		return fmt.Sprintf("column %q is not in the table", f.Column)
	}
	if f.Operator == OpInRange {
		if _, _, ok := bounds(f.Value); !ok {
			return "in_range needs exactly two bounds"
		}
	}
	return ""
}

// Filter returns the rows of t that satisfy every applicable filter.
// Malformed filters are skipped. An empty set returns t itself.
func Filter(t *table.Table, fs FilterSet) *table.Table {
	if t.Empty() || len(fs) == 0 {
		return t
	}
	keep := make([]int, t.NumRows())
	for i := range keep {
		keep[i] = i
	}
	applied := false
	for _, f := range fs {
		if f.skipReason(t) != "" {
			continue
		}
		c, _ := t.Column(f.Column)
		pred := f.predicate(c.Kind)
		next := keep[:0:0]
		for _, i := range keep {
			if pred(c.Values[i]) {
				next = append(next, i)
			}
		}
		keep = next
		applied = true
	}
	if !applied {
		return t
	}
	return t.SelectRows(keep)
}

func (f Filter) predicate(kind table.Kind) func(any) bool {
	switch f.Operator {
	case OpEquals:
		want := coerce(f.Value, kind)
		return func(v any) bool { return !table.IsMissing(v) && table.ValuesEqual(v, want) }
	case OpNotEquals:
		want := coerce(f.Value, kind)
		return func(v any) bool { return table.IsMissing(v) || !table.ValuesEqual(v, want) }
	case OpGreaterThan:
		want := coerce(f.Value, kind)
		return func(v any) bool { return ordered(v, want, func(c int) bool { return c > 0 }) }
	case OpLessThan:
		want := coerce(f.Value, kind)
		return func(v any) bool { return ordered(v, want, func(c int) bool { return c < 0 }) }
	case OpContains:
		return textMatch(f.Value, strings.Contains)
	case OpStartsWith:
		return textMatch(f.Value, strings.HasPrefix)
	case OpEndsWith:
		return textMatch(f.Value, strings.HasSuffix)
	case OpInRange:
		lo, hi, _ := bounds(f.Value)
		lo, hi = coerce(lo, kind), coerce(hi, kind)
		return func(v any) bool {
			return ordered(v, lo, func(c int) bool { return c >= 0 }) &&
				ordered(v, hi, func(c int) bool { return c <= 0 })
		}
	case OpUnknown:
	}
	return func(any) bool { return false }
}

func ordered(v, want any, ok func(int) bool) bool {
	if table.IsMissing(v) {
		return false
	}
	c, defined := compareValues(v, want)
	return defined && ok(c)
}

func textMatch(value any, match func(s, sub string) bool) func(any) bool {
	needle := strings.ToLower(table.FormatValue(normalizeJSON(value)))
	return func(v any) bool {
		if table.IsMissing(v) {
			return false
		}
		return match(strings.ToLower(table.FormatValue(v)), needle)
	}
}

// bounds extracts [min, max] from a two-element slice.
func bounds(v any) (lo, hi any, ok bool) {
	switch x := v.(type) {
	case []any:
		if len(x) == 2 && x[0] != nil && x[1] != nil {
			return x[0], x[1], true
		}
	case []float64:
		if len(x) == 2 {
			return x[0], x[1], true
		}
	case []int64:
		if len(x) == 2 {
			return x[0], x[1], true
		}
	case []string:
		if len(x) == 2 {
			return x[0], x[1], true
		}
	case [2]any:
		return x[0], x[1], x[0] != nil && x[1] != nil
	}
	return nil, nil, false
}

// coerce converts a filter value toward the column kind so that numbers
// typed as text (or JSON numbers) compare natively.
func coerce(v any, kind table.Kind) any {
	v = normalizeJSON(v)
	switch kind {
	case table.KindInt, table.KindFloat:
		if s, ok := v.(string); ok {
			if f, ok := loader.ParseNumber(s); ok {
				return f
			}
		}
	case table.KindDatetime:
		if s, ok := v.(string); ok {
			if ts, ok := loader.ParseTime(s); ok {
				return ts
			}
		}
	}
	return v
}

func normalizeJSON(v any) any {
	switch x := v.(type) {
	case json.Number:
		if n, err := x.Int64(); err == nil {
			return n
		}
		if f, err := x.Float64(); err == nil {
			return f
		}
		return x.String()
	case int:
		return int64(x)
	case int32:
		return int64(x)
	case float32:
		return float64(x)
	case *time.Time:
		if x != nil {
			return *x
		}
		return nil
	}
	return v
}
