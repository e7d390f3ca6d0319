package analysis

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/montanaflynn/stats"

	"github.com/KaramelBytes/dataloom/internal/loader"
	"github.com/KaramelBytes/dataloom/internal/table"
)

// MissingStrategy selects how missing cells are handled.
type MissingStrategy int

const (
	MissingDrop MissingStrategy = iota
	MissingFillMean
	MissingFillMedian
	MissingFillMode
	MissingFillZero
)

var missingStrategyNames = [...]string{"drop", "fill_mean", "fill_median", "fill_mode", "fill_zero"}

func (s MissingStrategy) String() string {
	if int(s) < 0 || int(s) >= len(missingStrategyNames) {
		return fmt.Sprintf("MissingStrategy(%d)", int(s))
	}
	return missingStrategyNames[s]
}

// ParseMissingStrategy parses a strategy name such as "fill_mean".
func ParseMissingStrategy(s string) (MissingStrategy, error) {
	k := strings.ToLower(strings.TrimSpace(s))
	for i, n := range missingStrategyNames {
		if n == k {
			return MissingStrategy(i), nil
		}
	}
	return 0, fmt.Errorf("unknown missing strategy %q (want one of %s)", s, strings.Join(missingStrategyNames[:], ", "))
}

// MarshalText implements encoding.TextMarshaler.
func (s MissingStrategy) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *MissingStrategy) UnmarshalText(b []byte) error {
	v, err := ParseMissingStrategy(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// CleaningOptions configures Clean.
type CleaningOptions struct {
	HandleMissing    bool            `json:"handle_missing"`
	MissingStrategy  MissingStrategy `json:"missing_strategy"`
	RemoveDuplicates bool            `json:"remove_duplicates"`
	DatetimeColumns  []string        `json:"datetime_columns"`
}

// Clean returns a cleaned copy of t. Steps run in a fixed order: missing
// values, then duplicates, then datetime coercion. The input is never modified.
func Clean(t *table.Table, opt CleaningOptions) *table.Table {
	if t.Empty() {
		return t
	}
	out := t
	if opt.HandleMissing {
		out = handleMissing(out, opt.MissingStrategy)
	}
	if opt.RemoveDuplicates {
		out = dropDuplicates(out)
	}
	for _, name := range opt.DatetimeColumns {
		c, ok := out.Column(name)
		if !ok {
			continue
		}
		if conv, ok := coerceDatetime(c); ok {
			out = out.WithColumn(conv)
		}
	}
	return out
}

func handleMissing(t *table.Table, s MissingStrategy) *table.Table {
	switch s {
	case MissingDrop:
		return dropMissing(t)
	case MissingFillMean, MissingFillMedian:
		out := t
		for _, c := range t.Columns() {
			if !c.Kind.IsNumeric() || c.Missing() == 0 {
				continue
			}
			vals := c.Floats()
			var fill float64
			var err error
			if s == MissingFillMean {
				fill, err = stats.Mean(vals)
			} else {
				fill, err = stats.Median(vals)
			}
			if err != nil {
				// no observed values: nothing to fill with
				continue
			}
			out = out.WithColumn(fillNumeric(c, fill))
		}
		return out
	case MissingFillMode:
		out := t
		for _, c := range t.Columns() {
			if c.Missing() == 0 {
				continue
			}
			m, ok := mode(c)
			if !ok {
				continue
			}
			out = out.WithColumn(fillWith(c, m, c.Kind))
		}
		return out
	case MissingFillZero:
		out := t
		for _, c := range t.Columns() {
			if c.Missing() == 0 {
				continue
			}
			switch c.Kind {
			case table.KindInt:
				out = out.WithColumn(fillWith(c, int64(0), table.KindInt))
			case table.KindFloat:
				out = out.WithColumn(fillWith(c, 0.0, table.KindFloat))
			default:
				// text and datetime columns receive a literal zero as well
				out = out.WithColumn(fillWith(c, int64(0), table.KindObject))
			}
		}
		return out
	}
	return t
}

func dropMissing(t *table.Table) *table.Table {
	keep := make([]int, 0, t.NumRows())
	cols := t.Columns()
	for i := 0; i < t.NumRows(); i++ {
		ok := true
		for _, c := range cols {
			if table.IsMissing(c.Values[i]) {
				ok = false
				break
			}
		}
		if ok {
			keep = append(keep, i)
		}
	}
	if len(keep) == t.NumRows() {
		return t
	}
	return t.SelectRows(keep)
}

// fillNumeric fills a numeric column; integer columns widen to float unless
// the fill value is integral.
func fillNumeric(c *table.Column, fill float64) *table.Column {
	if c.Kind == table.KindInt && fill == math.Trunc(fill) {
		return fillWith(c, int64(fill), table.KindInt)
	}
	out := &table.Column{Name: c.Name, Kind: table.KindFloat, Values: make([]any, c.Len())}
	for i, v := range c.Values {
		if f, ok := table.AsFloat(v); ok {
			out.Values[i] = f
		} else {
			out.Values[i] = fill
		}
	}
	return out
}

func fillWith(c *table.Column, fill any, kind table.Kind) *table.Column {
	out := c.Clone()
	out.Kind = kind
	for i, v := range out.Values {
		if table.IsMissing(v) {
			out.Values[i] = fill
		}
	}
	return out
}

// mode returns the most frequent non-missing value; ties go to the smallest.
func mode(c *table.Column) (any, bool) {
	if c.Kind.IsNumeric() {
		vals := c.Floats()
		if len(vals) == 0 {
			return nil, false
		}
		modes, err := stats.Mode(vals)
		if err != nil {
			return nil, false
		}
		m := 0.0
		if len(modes) > 0 {
			m = modes[0]
		} else {
			// every value is unique, so all are modes
			m, _ = stats.Min(vals)
		}
		if c.Kind == table.KindInt {
			return int64(m), true
		}
		return m, true
	}

	type entry struct {
		v     any
		count int
	}
	counts := map[string]*entry{}
	for _, v := range c.Values {
		if table.IsMissing(v) {
			continue
		}
		k := valueKey(v)
		if e, ok := counts[k]; ok {
			e.count++
			continue
		}
		counts[k] = &entry{v: v, count: 1}
	}
	if len(counts) == 0 {
		return nil, false
	}
	entries := make([]*entry, 0, len(counts))
	for _, e := range counts {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].count != entries[j].count {
			return entries[i].count > entries[j].count
		}
		if cmp, ok := compareValues(entries[i].v, entries[j].v); ok {
			return cmp < 0
		}
		return table.FormatValue(entries[i].v) < table.FormatValue(entries[j].v)
	})
	return entries[0].v, true
}

func dropDuplicates(t *table.Table) *table.Table {
	seen := make(map[string]struct{}, t.NumRows())
	keep := make([]int, 0, t.NumRows())
	var b strings.Builder
	for i := 0; i < t.NumRows(); i++ {
		b.Reset()
		for _, c := range t.Columns() {
			b.WriteString(valueKey(c.Values[i]))
			b.WriteByte('\x1f')
		}
		k := b.String()
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		keep = append(keep, i)
	}
	if len(keep) == t.NumRows() {
		return t
	}
	return t.SelectRows(keep)
}

// coerceDatetime parses a text column as datetimes. It reports false when the
// column is not text or any value fails to parse.
func coerceDatetime(c *table.Column) (*table.Column, bool) {
	if c.Kind != table.KindObject {
		return nil, false
	}
	out := &table.Column{Name: c.Name, Kind: table.KindDatetime, Values: make([]any, c.Len())}
	for i, v := range c.Values {
		if table.IsMissing(v) {
			continue
		}
		s, ok := v.(string)
		if !ok {
			return nil, false
		}
		ts, ok := loader.ParseTime(s)
		if !ok {
			return nil, false
		}
		out.Values[i] = ts
	}
	return out, true
}
