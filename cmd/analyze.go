package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/dataloom/internal/analysis"
	"github.com/KaramelBytes/dataloom/internal/library"
	"github.com/KaramelBytes/dataloom/internal/table"
)

var (
	anaLoad       loadFlags
	anaOutputPath string
	anaFormat     string
	anaSampleRows int
	anaGroupBy    []string
	anaCorr       bool
	anaOutliers   bool
	anaOutlierThr float64
	anaColumns    []string
	anaSave       string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <file>",
	Short: "Analyze a CSV/TSV/XLSX file and print a report, summary or statistics",
	Example: `  dataloom analyze sales.csv
  dataloom analyze sales.xlsx --sheet-name Q1 --group-by Region -o report.md
  dataloom analyze sales.csv --format stats --columns Units,Price
  dataloom analyze sales.csv --format summary --save "Q1 sales"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		t, err := loadTable(path, &anaLoad)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()

		switch anaFormat {
		case "", "markdown", "md":
			opt := reportOptions(cmd)
			md := analysis.BuildReport(filepath.Base(path), t, opt).Markdown()
			if err := writeOutput(out, anaOutputPath, []byte(md), "analysis"); err != nil {
				return err
			}
		case "json":
			b, err := json.MarshalIndent(analysis.BuildReport(filepath.Base(path), t, reportOptions(cmd)), "", "  ")
			if err != nil {
				return fmt.Errorf("marshal report: %w", err)
			}
			if err := writeOutput(out, anaOutputPath, append(b, '\n'), "analysis"); err != nil {
				return err
			}
		case "summary":
			renderSummary(out, analysis.Summarize(t), analysis.InferColumnTypes(t), t.Names())
		case "stats":
			st, err := analysis.ComputeStats(t, anaColumns)
			if err != nil {
				return err
			}
			renderStats(out, st)
		case "columns":
			renderProfiles(out, analysis.ProfileColumns(t))
		default:
			return fmt.Errorf("unsupported --format: %s (use markdown|json|summary|stats|columns)", anaFormat)
		}

		if anaSave != "" {
			return saveToLibrary(anaSave, t)
		}
		return nil
	},
}

func reportOptions(cmd *cobra.Command) analysis.ReportOptions {
	opt := analysis.DefaultReportOptions()
	if anaSampleRows >= 0 {
		opt.SampleRows = anaSampleRows
	}
	opt.GroupBy = anaGroupBy
	if cmd.Flags().Changed("correlations") {
		opt.Correlations = anaCorr
	}
	if cmd.Flags().Changed("outliers") {
		opt.Outliers = anaOutliers
	}
	if anaOutlierThr > 0 {
		opt.OutlierThreshold = anaOutlierThr
	}
	return opt
}

func renderProfiles(w io.Writer, profiles []analysis.ColumnProfile) {
	tw := newTextTable(w, []string{"column", "kind", "type", "non-null", "missing", "unique", "operators"})
	for _, p := range profiles {
		var ops []string
		for _, op := range analysis.OperatorsFor(p.Type) {
			ops = append(ops, op.String())
		}
		tw.Append([]string{p.Name, p.Kind, string(p.Type), fmt.Sprint(p.NonNull), fmt.Sprint(p.Null), fmt.Sprint(p.Unique), strings.Join(ops, ",")})
	}
	tw.Render()
}

func saveToLibrary(name string, t *table.Table) error {
	lib, err := library.Open(cfg.LibraryDir)
	if err != nil {
		return err
	}
	e, created, err := lib.Save(name, t)
	if err != nil {
		return err
	}
	if !created {
		fmt.Fprintf(os.Stderr, "File already saved as %s (%s)\n", e.Name, shortID(e.ID))
		return nil
	}
	fmt.Fprintf(os.Stderr, "✓ Saved %s to the library (%s)\n", e.Name, shortID(e.ID))
	return nil
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
	anaLoad.register(analyzeCmd)
	analyzeCmd.Flags().StringVarP(&anaOutputPath, "output", "o", "", "optional path to write the report")
	analyzeCmd.Flags().StringVar(&anaFormat, "format", "markdown", "output: markdown|json|summary|stats|columns")
	analyzeCmd.Flags().IntVar(&anaSampleRows, "sample-rows", -1, "number of sample rows in the report (default 5)")
	analyzeCmd.Flags().StringSliceVar(&anaGroupBy, "group-by", nil, "comma-separated column names to group by (repeatable)")
	analyzeCmd.Flags().BoolVar(&anaCorr, "correlations", true, "include top Pearson correlations")
	analyzeCmd.Flags().BoolVar(&anaOutliers, "outliers", true, "compute robust outlier counts (MAD)")
	analyzeCmd.Flags().Float64Var(&anaOutlierThr, "outlier-threshold", 0, "robust |z| threshold for outliers (default 3.5)")
	analyzeCmd.Flags().StringSliceVar(&anaColumns, "columns", nil, "with --format stats: columns to describe (default all numeric)")
	analyzeCmd.Flags().StringVar(&anaSave, "save", "", "also save the loaded table to the library under this name")
}
