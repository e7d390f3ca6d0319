package loader

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"

	"github.com/KaramelBytes/dataloom/internal/table"
)

// inferColumn types a column of raw cells; empty strings are missing.
// All non-missing cells must agree: integers, then floats, then (with ParseDates)
// datetimes, else the column stays textual.
func inferColumn(name string, raw []string, opt Options) *table.Column {
	nonEmpty := 0
	allInt, allNum, allTime := true, true, opt.ParseDates
	for _, v := range raw {
		if v == "" {
			continue
		}
		nonEmpty++
		if allInt {
			if _, err := strconv.ParseInt(v, 10, 64); err != nil {
				allInt = false
			}
		}
		if allNum && !allInt {
			if _, ok := parseNumeric(v, opt); !ok {
				allNum = false
			}
		}
		if allTime {
			if _, ok := ParseTime(v); !ok {
				allTime = false
			}
		}
		if !allInt && !allNum && !allTime {
			break
		}
	}

	vals := make([]any, len(raw))
	switch {
	case nonEmpty == 0:
		// all-missing columns read back as float NaN
		for i := range vals {
			vals[i] = math.NaN()
		}
		return table.NewColumn(name, table.KindFloat, vals)
	case allInt:
		hasMissing := false
		for i, v := range raw {
			if v == "" {
				hasMissing = true
				continue
			}
			n, _ := strconv.ParseInt(v, 10, 64)
			vals[i] = n
		}
		if !hasMissing {
			return table.NewColumn(name, table.KindInt, vals)
		}
		// integer columns with gaps widen to float
		for i, v := range vals {
			if v == nil {
				vals[i] = math.NaN()
			} else {
				vals[i] = float64(v.(int64))
			}
		}
		return table.NewColumn(name, table.KindFloat, vals)
	case allNum:
		for i, v := range raw {
			if v == "" {
				vals[i] = math.NaN()
				continue
			}
			f, _ := parseNumeric(v, opt)
			vals[i] = f
		}
		return table.NewColumn(name, table.KindFloat, vals)
	case allTime:
		for i, v := range raw {
			if v == "" {
				continue
			}
			ts, _ := ParseTime(v)
			vals[i] = ts
		}
		return table.NewColumn(name, table.KindDatetime, vals)
	}
	for i, v := range raw {
		if v != "" {
			vals[i] = v
		}
	}
	return table.NewColumn(name, table.KindObject, vals)
}

// ParseTime parses a date or timestamp in any common layout.
// Bare numbers are rejected so numeric ids never read as epochs.
func ParseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if _, err := strconv.ParseFloat(s, 64); err == nil {
		return time.Time{}, false
	}
	ts, err := dateparse.ParseIn(s, time.UTC)
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}

func parseNumeric(s string, opt Options) (float64, bool) {
	raw := strings.TrimSpace(s)
	if strings.Contains(raw, "%") {
		raw = strings.ReplaceAll(raw, "%", "")
	}
	raw = strings.ReplaceAll(raw, "\u00A0", " ")
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}
	switch strings.ToLower(raw) {
	case "inf", "+inf", "-inf", "infinity", "-infinity":
		f, _ := strconv.ParseFloat(raw, 64)
		return f, true
	}
	dec := opt.DecimalSeparator
	thou := opt.ThousandsSeparator
	if dec == 0 {
		cpos := strings.LastIndex(raw, ",")
		dpos := strings.LastIndex(raw, ".")
		if cpos >= 0 && dpos >= 0 {
			if cpos > dpos {
				dec = ','
				thou = '.'
			} else {
				dec = '.'
				thou = ','
			}
		} else if cpos >= 0 {
			dec = ','
		} else {
			dec = '.'
		}
	}
	if thou == 0 {
		for _, sep := range []rune{',', '.', ' '} {
			if sep != dec {
				raw = strings.ReplaceAll(raw, string(sep), "")
			}
		}
	} else if thou != dec {
		raw = strings.ReplaceAll(raw, string(thou), "")
	}
	if dec != '.' {
		raw = strings.ReplaceAll(raw, string(dec), ".")
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// ParseNumber parses a number with auto-detected separators.
func ParseNumber(s string) (float64, bool) {
	return parseNumeric(s, Options{})
}
