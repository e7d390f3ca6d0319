package table

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"
	"time"
)

// DatetimeLayout is the layout used to print datetime cells.
const DatetimeLayout = "2006-01-02 15:04:05"

// FormatValue renders a cell the way it is shown to users, exported to CSV and
// matched by text filters. Missing cells render as the empty string.
func FormatValue(v any) string {
	if IsMissing(v) {
		return ""
	}
	switch x := v.(type) {
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case int:
		return strconv.Itoa(x)
	case float64:
		return formatFloat(x)
	case bool:
		if x {
			return "True"
		}
		return "False"
	case time.Time:
		if x.Hour() == 0 && x.Minute() == 0 && x.Second() == 0 && x.Nanosecond() == 0 {
			return x.Format("2006-01-02")
		}
		return x.Format(DatetimeLayout)
	}
	return fmt.Sprint(v)
}

func formatFloat(f float64) string {
	if math.IsInf(f, 1) {
		return "inf"
	}
	if math.IsInf(f, -1) {
		return "-inf"
	}
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		s += ".0"
	}
	return s
}

// WriteCSV encodes t as CSV with a header row.
func WriteCSV(w io.Writer, t *Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Names()); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	rec := make([]string, t.NumCols())
	for i := 0; i < t.NumRows(); i++ {
		for j, c := range t.Columns() {
			rec[j] = FormatValue(c.Values[i])
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// Records returns up to n rows as name->value maps; n <= 0 means all rows.
// Missing cells map to nil and datetimes to their formatted string so the
// result encodes cleanly as JSON.
func Records(t *Table, n int) []map[string]any {
	rows := t.NumRows()
	if n > 0 && n < rows {
		rows = n
	}
	out := make([]map[string]any, rows)
	for i := 0; i < rows; i++ {
		m := make(map[string]any, t.NumCols())
		for _, c := range t.Columns() {
			m[c.Name] = jsonCell(c.Values[i])
		}
		out[i] = m
	}
	return out
}

func jsonCell(v any) any {
	if IsMissing(v) {
		return nil
	}
	switch x := v.(type) {
	case time.Time:
		return FormatValue(x)
	case float64:
		if math.IsInf(x, 0) {
			return FormatValue(x)
		}
	}
	return v
}
