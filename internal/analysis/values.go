package analysis

import (
	"encoding/json"
	"math"
	"sort"
	"strconv"
	"time"

	"github.com/KaramelBytes/dataloom/internal/table"
)

// Number is a float64 whose undefined values (NaN, ±Inf) encode as JSON null.
type Number float64

// MarshalJSON implements json.Marshaler.
func (n Number) MarshalJSON() ([]byte, error) {
	f := float64(n)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return []byte("null"), nil
	}
	return json.Marshal(f)
}

// UnmarshalJSON implements json.Unmarshaler; null decodes to NaN.
func (n *Number) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*n = Number(math.NaN())
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	*n = Number(f)
	return nil
}

// Defined reports whether n is a finite number.
func (n Number) Defined() bool {
	f := float64(n)
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// valueKey is a type-aware identity for a cell. Numbers of equal value share a
// key regardless of storage kind.
func valueKey(v any) string {
	if table.IsMissing(v) {
		return "\x00na"
	}
	switch x := v.(type) {
	case int64, int, float64:
		f, _ := table.AsFloat(x)
		return "n:" + strconv.FormatFloat(f, 'g', -1, 64)
	case time.Time:
		return "t:" + x.UTC().Format(time.RFC3339Nano)
	case string:
		return "s:" + x
	case bool:
		return "b:" + strconv.FormatBool(x)
	}
	return "o:" + table.FormatValue(v)
}

// compareValues orders two non-missing cells. ok is false when the pair has no
// defined order (e.g. a number against a string).
func compareValues(a, b any) (cmp int, ok bool) {
	if fa, okA := table.AsFloat(a); okA {
		fb, okB := table.AsFloat(b)
		if !okB {
			return 0, false
		}
		return cmpFloat(fa, fb), true
	}
	if ta, okA := a.(time.Time); okA {
		tb, okB := b.(time.Time)
		if !okB {
			return 0, false
		}
		return ta.Compare(tb), true
	}
	if sa, okA := a.(string); okA {
		sb, okB := b.(string)
		if !okB {
			return 0, false
		}
		switch {
		case sa < sb:
			return -1, true
		case sa > sb:
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

func cmpFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// sortedCopy returns vals sorted ascending without touching the input.
func sortedCopy(vals []float64) []float64 {
	cp := make([]float64, len(vals))
	copy(cp, vals)
	sort.Float64s(cp)
	return cp
}

// quantile uses linear interpolation between closest ranks on sorted input.
func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return math.NaN()
	}
	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[len(sorted)-1]
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	w := pos - float64(lo)
	return sorted[lo]*(1-w) + sorted[hi]*w
}

// medianMAD computes median and MAD (median absolute deviation) of values.
func medianMAD(vals []float64) (median, mad float64) {
	if len(vals) == 0 {
		return 0, 0
	}
	cp := sortedCopy(vals)
	median = quantile(cp, 0.5)
	dev := make([]float64, len(cp))
	for i, v := range cp {
		dev[i] = math.Abs(v - median)
	}
	sort.Float64s(dev)
	mad = quantile(dev, 0.5)
	return
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}

// Quantile returns the q-th quantile of vals using linear interpolation.
func Quantile(vals []float64, q float64) float64 {
	return quantile(sortedCopy(vals), q)
}
