package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/dataloom/internal/analysis"
	"github.com/KaramelBytes/dataloom/internal/utils"
)

var (
	abLoad       loadFlags
	abOutDir     string
	abSampleRows int
	abGroupBy    []string
	abSave       bool
	abQuiet      bool
)

var analyzeBatchCmd = &cobra.Command{
	Use:   "analyze-batch <files...>",
	Short: "Analyze multiple CSV/TSV/XLSX files with progress",
	Example: `  dataloom analyze-batch 'data/*.csv' --out-dir reports
  dataloom analyze-batch a.csv b.xlsx --save`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		files := expandInputs(args)
		if len(files) == 0 {
			return fmt.Errorf("no input files matched")
		}
		if abOutDir != "" {
			if err := utils.EnsureDir(abOutDir); err != nil {
				return err
			}
		}
		out := cmd.OutOrStdout()
		opt := analysis.DefaultReportOptions()
		if abSampleRows > 0 {
			opt.SampleRows = abSampleRows
		}
		opt.GroupBy = abGroupBy

		total := len(files)
		for i, path := range files {
			if !abQuiet {
				fmt.Fprintf(os.Stderr, "[%d/%d] Processing %s...\n", i+1, total, filepath.Base(path))
			}
			t, err := loadTable(path, &abLoad)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			md := analysis.BuildReport(filepath.Base(path), t, opt).Markdown()
			if abOutDir != "" {
				outFile := summaryPath(abOutDir, path, abLoad.SheetName)
				if err := utils.SafeWriteFile(outFile, []byte(md)); err != nil {
					return fmt.Errorf("write summary: %w", err)
				}
				if !abQuiet {
					fmt.Fprintf(os.Stderr, "✓ Wrote %s\n", outFile)
				}
			} else if !abQuiet {
				fmt.Fprintln(out, md)
			}
			if abSave {
				if err := saveToLibrary(filepath.Base(path), t); err != nil {
					return err
				}
			}
		}
		return nil
	},
}

// expandInputs resolves globs, keeps literal paths that exist, and
// deduplicates in sorted order.
func expandInputs(args []string) []string {
	var files []string
	seen := map[string]struct{}{}
	for _, arg := range args {
		matches, _ := filepath.Glob(arg)
		if len(matches) == 0 {
			if _, err := os.Stat(arg); err == nil {
				matches = []string{arg}
			}
		}
		for _, m := range matches {
			if _, ok := seen[m]; ok {
				continue
			}
			seen[m] = struct{}{}
			files = append(files, m)
		}
	}
	sort.Strings(files)
	return files
}

// summaryPath picks <dir>/<base>[__sheet-x].summary.md, adding __N when the
// name is already taken.
func summaryPath(dir, path, sheet string) string {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if sheet != "" {
		s := strings.ToLower(strings.TrimSpace(sheet))
		var b strings.Builder
		for _, r := range s {
			if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
				b.WriteRune(r)
			} else if r == ' ' || r == '-' || r == '_' {
				b.WriteRune('-')
			}
		}
		ss := strings.Trim(b.String(), "-")
		if ss == "" {
			ss = "sheet"
		}
		base += "__sheet-" + ss
	}
	outFile := filepath.Join(dir, base+".summary.md")
	for idx := 2; ; idx++ {
		if _, err := os.Stat(outFile); os.IsNotExist(err) {
			return outFile
		}
		outFile = filepath.Join(dir, fmt.Sprintf("%s__%d.summary.md", base, idx))
	}
}

func init() {
	rootCmd.AddCommand(analyzeBatchCmd)
	abLoad.register(analyzeBatchCmd)
	analyzeBatchCmd.Flags().StringVar(&abOutDir, "out-dir", "", "write one <name>.summary.md per file into this directory")
	analyzeBatchCmd.Flags().IntVar(&abSampleRows, "sample-rows", 5, "number of sample rows to include")
	analyzeBatchCmd.Flags().StringSliceVar(&abGroupBy, "group-by", nil, "comma-separated column names to group by (repeatable)")
	analyzeBatchCmd.Flags().BoolVar(&abSave, "save", false, "also save each file to the library")
	analyzeBatchCmd.Flags().BoolVar(&abQuiet, "quiet", false, "suppress progress and non-essential output")
}
