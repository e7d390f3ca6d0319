package analysis

import (
	"github.com/KaramelBytes/dataloom/internal/table"
)

// Summary is the dataset overview shown after loading.
type Summary struct {
	Rows            int            `json:"rows"`
	Columns         int            `json:"columns"`
	MissingValues   int            `json:"missing_values"`
	MissingByColumn map[string]int `json:"missing_by_column"`
	KindCounts      map[string]int `json:"column_types"`
	MemoryUsageMB   float64        `json:"memory_usage_mb"`
}

const (
	indexBytes       = 128
	fixedCellBytes   = 8
	objectCellHeader = 49
)

// Summarize returns the dataset overview, or nil when there is nothing to
// summarize (nil table, zero rows or zero columns).
func Summarize(t *table.Table) *Summary {
	if t.Empty() {
		return nil
	}
	s := &Summary{
		Rows:            t.NumRows(),
		Columns:         t.NumCols(),
		MissingByColumn: make(map[string]int, t.NumCols()),
		KindCounts:      map[string]int{},
	}
	bytes := indexBytes
	for _, c := range t.Columns() {
		miss := c.Missing()
		s.MissingByColumn[c.Name] = miss
		s.MissingValues += miss
		s.KindCounts[c.Kind.String()]++
		bytes += columnBytes(c)
	}
	s.MemoryUsageMB = float64(bytes) / (1024 * 1024)
	return s
}

// columnBytes approximates the in-memory footprint of a column. Fixed-width
// kinds cost 8 bytes per cell; object cells cost a header plus their text.
func columnBytes(c *table.Column) int {
	if c.Kind != table.KindObject {
		return fixedCellBytes * c.Len()
	}
	n := 0
	for _, v := range c.Values {
		if table.IsMissing(v) {
			n += fixedCellBytes
			continue
		}
		n += objectCellHeader + len(table.FormatValue(v))
	}
	return n
}
