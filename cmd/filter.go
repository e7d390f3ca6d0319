package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/dataloom/internal/analysis"
)

var (
	fltLoad       loadFlags
	fltWhere      []string
	fltSearch     string
	fltColumns    []string
	fltOutputPath string
	fltPreview    int
)

var filterCmd = &cobra.Command{
	Use:   "filter <file>",
	Short: "Filter rows with column predicates combined by AND",
	Long: `Each --where takes "<column> <operator> <value>". Operators:
equals, not_equals, greater_than, less_than, contains, starts_with, ends_with, in_range.
in_range takes "lo..hi". Filters that do not apply are reported and skipped.`,
	Example: `  dataloom filter sales.csv --where "Region equals North" --where "Units in_range 10..50"
  dataloom filter sales.csv --search widget --columns Product,Units --preview 20`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := loadTable(args[0], &fltLoad)
		if err != nil {
			return err
		}
		var fs analysis.FilterSet
		for _, w := range fltWhere {
			f, err := parseWhere(w)
			if err != nil {
				return err
			}
			fs = append(fs, f)
		}
		for _, s := range fs.Check(t) {
			fmt.Fprintf(os.Stderr, "⚠ Skipping filter %d (%s): %s\n", s.Index+1, s.Filter, s.Reason)
		}
		out := analysis.Filter(t, fs)
		if fltSearch != "" {
			out = analysis.Search(out, fltSearch)
		}
		if len(fltColumns) > 0 {
			for _, c := range fltColumns {
				if _, ok := out.Column(c); !ok {
					return fmt.Errorf("%w: %q", analysis.ErrUnknownColumn, c)
				}
			}
			out = out.SelectColumns(fltColumns)
		}
		fmt.Fprintf(os.Stderr, "Matched %d of %d rows\n", out.NumRows(), t.NumRows())
		if fltPreview > 0 {
			renderPreview(cmd.OutOrStdout(), out, fltPreview)
			if fltOutputPath == "" {
				return nil
			}
		}
		return writeTable(cmd.OutOrStdout(), fltOutputPath, out)
	},
}

// parseWhere reads "<column> <operator> <value>". The column may be quoted
// when it contains spaces.
func parseWhere(s string) (analysis.Filter, error) {
	s = strings.TrimSpace(s)
	var col string
	if strings.HasPrefix(s, `"`) {
		end := strings.Index(s[1:], `"`)
		if end < 0 {
			return analysis.Filter{}, fmt.Errorf("unterminated column quote in %q", s)
		}
		col, s = s[1:end+1], strings.TrimSpace(s[end+2:])
	} else {
		parts := strings.SplitN(s, " ", 2)
		if len(parts) < 2 {
			return analysis.Filter{}, fmt.Errorf("--where needs \"<column> <operator> <value>\": %q", s)
		}
		col, s = parts[0], strings.TrimSpace(parts[1])
	}
	parts := strings.SplitN(s, " ", 2)
	if len(parts) < 2 {
		return analysis.Filter{}, fmt.Errorf("--where needs \"<column> <operator> <value>\": %q", s)
	}
	op := analysis.ParseOperator(parts[0])
	if op == analysis.OpUnknown {
		return analysis.Filter{}, fmt.Errorf("unknown operator %q", parts[0])
	}
	raw := strings.TrimSpace(parts[1])
	f := analysis.Filter{Column: col, Operator: op}
	if op == analysis.OpInRange {
		lo, hi, ok := strings.Cut(raw, "..")
		if !ok {
			return analysis.Filter{}, fmt.Errorf("in_range needs \"lo..hi\": %q", raw)
		}
		f.Value = []any{scalar(lo), scalar(hi)}
		return f, nil
	}
	f.Value = scalar(raw)
	return f, nil
}

// scalar keeps values as text; filters coerce them to the column kind.
func scalar(s string) any {
	return strings.Trim(strings.TrimSpace(s), `"`)
}

func init() {
	rootCmd.AddCommand(filterCmd)
	fltLoad.register(filterCmd)
	filterCmd.Flags().StringArrayVar(&fltWhere, "where", nil, "predicate \"<column> <operator> <value>\" (repeatable)")
	filterCmd.Flags().StringVar(&fltSearch, "search", "", "keep rows where any cell contains this text")
	filterCmd.Flags().StringSliceVar(&fltColumns, "columns", nil, "columns to keep in the output")
	filterCmd.Flags().StringVarP(&fltOutputPath, "output", "o", "", "write the filtered CSV here (default stdout)")
	filterCmd.Flags().IntVar(&fltPreview, "preview", 0, "print the first N rows as a table instead of CSV")
}
