package table

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// Kind is the storage kind of a column.
type Kind int

const (
	KindObject Kind = iota
	KindInt
	KindFloat
	KindDatetime
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int64"
	case KindFloat:
		return "float64"
	case KindDatetime:
		return "datetime64"
	default:
		return "object"
	}
}

// IsNumeric reports whether the kind stores numbers.
func (k Kind) IsNumeric() bool { return k == KindInt || k == KindFloat }

// Column is a named sequence of values. A nil value (or a float NaN) is a missing cell.
// Values hold int64 for KindInt, float64 for KindFloat, time.Time for KindDatetime and
// anything scalar (usually string) for KindObject.
type Column struct {
	Name   string
	Kind   Kind
	Values []any
}

// NewColumn builds a column; values are used as-is and must not be modified afterwards.
func NewColumn(name string, kind Kind, values []any) *Column {
	return &Column{Name: name, Kind: kind, Values: values}
}

// Len returns the number of cells.
func (c *Column) Len() int { return len(c.Values) }

// Missing returns the number of missing cells.
func (c *Column) Missing() int {
	n := 0
	for _, v := range c.Values {
		if IsMissing(v) {
			n++
		}
	}
	return n
}

// Floats returns the non-missing values of a numeric column as float64.
func (c *Column) Floats() []float64 {
	out := make([]float64, 0, len(c.Values))
	for _, v := range c.Values {
		if f, ok := AsFloat(v); ok {
			out = append(out, f)
		}
	}
	return out
}

// Clone returns a copy that may be modified without affecting c.
func (c *Column) Clone() *Column {
	vals := make([]any, len(c.Values))
	copy(vals, c.Values)
	return &Column{Name: c.Name, Kind: c.Kind, Values: vals}
}

// Table is an ordered set of equally long, uniquely named columns.
// Tables are treated as immutable: every operation returns a new Table.
type Table struct {
	cols  []*Column
	index map[string]int
	rows  int
}

var (
	// ErrLengthMismatch is returned when columns differ in length.
	ErrLengthMismatch = errors.New("columns must have equal length")
	// ErrDuplicateColumn is returned when two columns share a name.
	ErrDuplicateColumn = errors.New("duplicate column name")
)

// New builds a table from columns.
func New(cols ...*Column) (*Table, error) {
	t := &Table{cols: make([]*Column, 0, len(cols)), index: make(map[string]int, len(cols))}
	for i, c := range cols {
		if c == nil {
			return nil, fmt.Errorf("column %d is nil", i)
		}
		if i == 0 {
			t.rows = c.Len()
		} else if c.Len() != t.rows {
			return nil, fmt.Errorf("%w: %q has %d rows, want %d", ErrLengthMismatch, c.Name, c.Len(), t.rows)
		}
		if _, dup := t.index[c.Name]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateColumn, c.Name)
		}
		t.index[c.Name] = i
		t.cols = append(t.cols, c)
	}
	return t, nil
}

// MustNew is New for literals in tests and fixtures; it panics on error.
func MustNew(cols ...*Column) *Table {
	t, err := New(cols...)
	if err != nil {
		panic(err)
	}
	return t
}

// NumRows returns the row count.
func (t *Table) NumRows() int {
	if t == nil {
		return 0
	}
	return t.rows
}

// NumCols returns the column count.
func (t *Table) NumCols() int {
	if t == nil {
		return 0
	}
	return len(t.cols)
}

// Empty reports whether the table is nil or has no rows or no columns.
func (t *Table) Empty() bool { return t.NumRows() == 0 || t.NumCols() == 0 }

// Names returns the column names in order.
func (t *Table) Names() []string {
	if t == nil {
		return nil
	}
	out := make([]string, len(t.cols))
	for i, c := range t.cols {
		out[i] = c.Name
	}
	return out
}

// Columns returns the columns in order. Callers must not modify them.
func (t *Table) Columns() []*Column {
	if t == nil {
		return nil
	}
	return t.cols
}

// Column returns a column by name.
func (t *Table) Column(name string) (*Column, bool) {
	if t == nil {
		return nil, false
	}
	i, ok := t.index[name]
	if !ok {
		return nil, false
	}
	return t.cols[i], true
}

// ColumnAt returns the i-th column.
func (t *Table) ColumnAt(i int) *Column { return t.cols[i] }

// Row returns the values of row i in column order.
func (t *Table) Row(i int) []any {
	out := make([]any, len(t.cols))
	for j, c := range t.cols {
		out[j] = c.Values[i]
	}
	return out
}

// SelectRows returns a new table holding the given rows in the given order.
func (t *Table) SelectRows(idx []int) *Table {
	cols := make([]*Column, len(t.cols))
	for j, c := range t.cols {
		vals := make([]any, len(idx))
		for k, i := range idx {
			vals[k] = c.Values[i]
		}
		cols[j] = &Column{Name: c.Name, Kind: c.Kind, Values: vals}
	}
	return &Table{cols: cols, index: copyIndex(t.index), rows: len(idx)}
}

// SelectColumns returns a table with only the named columns; unknown names are ignored.
func (t *Table) SelectColumns(names []string) *Table {
	var cols []*Column
	for _, n := range names {
		if c, ok := t.Column(n); ok {
			cols = append(cols, c)
		}
	}
	out, err := New(cols...)
	if err != nil {
		// duplicates in names
		return t
	}
	if len(cols) == 0 {
		out.rows = 0
	}
	return out
}

// Head returns the first n rows.
func (t *Table) Head(n int) *Table {
	if n >= t.NumRows() {
		return t
	}
	if n < 0 {
		n = 0
	}
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	return t.SelectRows(idx)
}

// WithColumn returns a new table where the column of the same name is replaced,
// or appended when no such column exists.
func (t *Table) WithColumn(col *Column) *Table {
	cols := make([]*Column, len(t.cols))
	copy(cols, t.cols)
	idx := copyIndex(t.index)
	if i, ok := idx[col.Name]; ok {
		cols[i] = col
	} else {
		idx[col.Name] = len(cols)
		cols = append(cols, col)
	}
	return &Table{cols: cols, index: idx, rows: t.rows}
}

// Equal reports whether both tables have the same columns, kinds and values.
func (t *Table) Equal(o *Table) bool {
	if t.NumRows() != o.NumRows() || t.NumCols() != o.NumCols() {
		return false
	}
	for j, c := range t.cols {
		oc := o.cols[j]
		if c.Name != oc.Name || c.Kind != oc.Kind {
			return false
		}
		for i := range c.Values {
			if !ValuesEqual(c.Values[i], oc.Values[i]) {
				return false
			}
		}
	}
	return true
}

func copyIndex(m map[string]int) map[string]int {
	out := make(map[string]int, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Validate checks the preconditions every analysis step relies on.
// It returns false and a human-readable reason when the table is unusable.
func Validate(t *Table) (bool, string) {
	if t == nil {
		return false, "No data loaded"
	}
	if t.Empty() {
		return false, "Table is empty"
	}
	seen := make(map[string]struct{}, len(t.cols))
	for _, c := range t.cols {
		if strings.TrimSpace(c.Name) == "" {
			return false, "Table contains null column names"
		}
		if _, ok := seen[c.Name]; ok {
			return false, "Table contains duplicate column names"
		}
		seen[c.Name] = struct{}{}
	}
	return true, ""
}

// IsMissing reports whether v is a missing cell.
func IsMissing(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case float64:
		return math.IsNaN(x)
	case time.Time:
		return x.IsZero()
	}
	return false
}

// AsFloat converts numeric cells to float64.
func AsFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case int64:
		return float64(x), true
	case int:
		return float64(x), true
	case float64:
		if math.IsNaN(x) {
			return 0, false
		}
		return x, true
	}
	return 0, false
}

// ValuesEqual compares two cells; missing equals missing, numbers compare by value.
func ValuesEqual(a, b any) bool {
	am, bm := IsMissing(a), IsMissing(b)
	if am || bm {
		return am && bm
	}
	if fa, ok := AsFloat(a); ok {
		fb, ok := AsFloat(b)
		return ok && fa == fb
	}
	if ta, ok := a.(time.Time); ok {
		tb, ok := b.(time.Time)
		return ok && ta.Equal(tb)
	}
	return a == b
}
