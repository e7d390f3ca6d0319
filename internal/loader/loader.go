package loader

import (
	"errors"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/KaramelBytes/dataloom/internal/table"
)

// Loader decodes one family of tabular file formats into raw string rows.
// The first returned row is the header.
type Loader interface {
	CanLoad(filename string) bool
	ReadRows(r io.Reader, filename string, opt Options) ([][]string, error)
}

// Options controls ingestion.
type Options struct {
	// SampleSize limits the table to a random sample of rows; 0 keeps every row.
	SampleSize int
	// Seed for sampling. Zero means DefaultSeed.
	Seed int64
	// Delimiter for delimited text. If 0, chosen from the file extension.
	Delimiter rune
	// Numeric parsing locale. If DecimalSeparator is 0, auto-detect per value.
	DecimalSeparator   rune
	ThousandsSeparator rune
	// ParseDates detects datetime columns.
	ParseDates bool
	// Spreadsheet sheet selection; SheetIndex is 1-based.
	SheetName  string
	SheetIndex int
	// NAValues are cell strings treated as missing. Nil means DefaultNAValues.
	NAValues []string
}

// DefaultSeed is the sampling seed used when Options.Seed is zero.
const DefaultSeed = 42

// DefaultNAValues mirrors the tokens common dataframe readers treat as missing.
var DefaultNAValues = []string{
	"", "#N/A", "#N/A N/A", "#NA", "-1.#IND", "-1.#QNAN", "-NaN", "-nan",
	"1.#IND", "1.#QNAN", "<NA>", "N/A", "NA", "NULL", "NaN", "None", "n/a", "nan", "null",
}

// DefaultOptions returns reasonable defaults for ingestion.
func DefaultOptions() Options {
	return Options{Seed: DefaultSeed}
}

// ErrUnsupported indicates a file format is not supported.
var ErrUnsupported = errors.New("unsupported file format")

var registry []Loader

// Register adds a loader implementation to the registry.
func Register(l Loader) {
	registry = append(registry, l)
}

func init() {
	Register(delimitedLoader{})
	Register(xlsxLoader{})
}

// Supported reports whether some registered loader accepts filename.
func Supported(filename string) bool {
	return find(filename) != nil
}

func find(filename string) Loader {
	for _, l := range registry {
		if l.CanLoad(filename) {
			return l
		}
	}
	return nil
}

// LoadFile reads the file at path into a table.
func LoadFile(path string, opt Options) (*table.Table, error) {
	if find(path) == nil {
		return nil, unsupported(path)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()
	return Load(filepath.Base(path), f, opt)
}

// Load reads a table from r; name selects the loader by extension.
func Load(name string, r io.Reader, opt Options) (*table.Table, error) {
	l := find(name)
	if l == nil {
		return nil, unsupported(name)
	}
	rows, err := l.ReadRows(r, name, opt)
	if err != nil {
		return nil, err
	}
	// spreadsheet cells carry real dates
	if _, ok := l.(xlsxLoader); ok {
		opt.ParseDates = true
	}
	t, err := Build(rows, opt)
	if err != nil {
		return nil, fmt.Errorf("build table: %w", err)
	}
	return Sample(t, opt.SampleSize, opt.Seed), nil
}

func unsupported(name string) error {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
	return fmt.Errorf("%w: %q. Please upload a CSV or Excel file", ErrUnsupported, ext)
}

// Build turns raw rows (header first) into a typed table.
func Build(rows [][]string, opt Options) (*table.Table, error) {
	if len(rows) == 0 {
		return table.New()
	}
	header := headerNames(rows[0])
	ncol := len(header)
	for _, r := range rows[1:] {
		if len(r) > ncol {
			ncol = len(r)
		}
	}
	for len(header) < ncol {
		header = append(header, fmt.Sprintf("Unnamed: %d", len(header)))
	}
	header = dedupNames(header)

	na := opt.NAValues
	if na == nil {
		na = DefaultNAValues
	}
	naSet := make(map[string]struct{}, len(na))
	for _, s := range na {
		naSet[s] = struct{}{}
	}

	body := rows[1:]
	cols := make([]*table.Column, ncol)
	raw := make([]string, len(body))
	for j := 0; j < ncol; j++ {
		for i, r := range body {
			v := ""
			if j < len(r) {
				v = strings.TrimSpace(r[j])
			}
			if _, missing := naSet[v]; missing {
				v = ""
			}
			raw[i] = v
		}
		cols[j] = inferColumn(header[j], raw, opt)
	}
	return table.New(cols...)
}

func headerNames(rec []string) []string {
	out := make([]string, len(rec))
	for i, h := range rec {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if h == "" {
			h = fmt.Sprintf("Unnamed: %d", i)
		}
		out[i] = h
	}
	return out
}

// dedupNames renames repeated headers to name.1, name.2, ...
func dedupNames(names []string) []string {
	seen := make(map[string]int, len(names))
	taken := make(map[string]bool, len(names))
	for _, n := range names {
		taken[n] = true
	}
	out := make([]string, len(names))
	for i, n := range names {
		if c, dup := seen[n]; dup {
			for {
				c++
				cand := fmt.Sprintf("%s.%d", n, c)
				if !taken[cand] {
					seen[n] = c
					taken[cand] = true
					out[i] = cand
					break
				}
			}
			continue
		}
		seen[n] = 0
		out[i] = n
	}
	return out
}

// Sample returns n rows drawn without replacement using a seeded PRNG.
// The sampled rows keep their original relative order.
func Sample(t *table.Table, n int, seed int64) *table.Table {
	if n <= 0 || n >= t.NumRows() {
		return t
	}
	if seed == 0 {
		seed = DefaultSeed
	}
	rng := rand.New(rand.NewSource(seed))
	idx := rng.Perm(t.NumRows())[:n]
	sort.Ints(idx)
	return t.SelectRows(idx)
}

// SampleTable returns the empty placeholder table shown before any upload.
func SampleTable() *table.Table {
	names := []string{"ID", "Date", "Category", "Value", "Region"}
	cols := make([]*table.Column, len(names))
	for i, n := range names {
		cols[i] = table.NewColumn(n, table.KindObject, []any{})
	}
	return table.MustNew(cols...)
}
