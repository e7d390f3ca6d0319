package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/dataloom/internal/analysis"
)

var (
	clnLoad       loadFlags
	clnMissing    string
	clnDedup      bool
	clnDatetime   []string
	clnOutputPath string
	clnPreview    int
)

var cleanCmd = &cobra.Command{
	Use:   "clean <file>",
	Short: "Handle missing values, drop duplicates and coerce datetime columns",
	Example: `  dataloom clean sales.csv --missing fill_mean --dedup -o clean.csv
  dataloom clean sales.csv --datetime Date --preview 10`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := loadTable(args[0], &clnLoad)
		if err != nil {
			return err
		}
		opt := analysis.CleaningOptions{RemoveDuplicates: clnDedup, DatetimeColumns: clnDatetime}
		if clnMissing != "" {
			s, err := analysis.ParseMissingStrategy(clnMissing)
			if err != nil {
				return err
			}
			opt.HandleMissing, opt.MissingStrategy = true, s
		}
		for _, c := range clnDatetime {
			if _, ok := t.Column(c); !ok {
				return fmt.Errorf("%w: %q", analysis.ErrUnknownColumn, c)
			}
		}
		cleaned := analysis.Clean(t, opt)
		fmt.Fprintf(os.Stderr, "Rows: %d -> %d\n", t.NumRows(), cleaned.NumRows())
		if clnPreview > 0 {
			renderPreview(cmd.OutOrStdout(), cleaned, clnPreview)
			if clnOutputPath == "" {
				return nil
			}
		}
		return writeTable(cmd.OutOrStdout(), clnOutputPath, cleaned)
	},
}

func init() {
	rootCmd.AddCommand(cleanCmd)
	clnLoad.register(cleanCmd)
	cleanCmd.Flags().StringVar(&clnMissing, "missing", "", "missing value strategy: drop|fill_mean|fill_median|fill_mode|fill_zero")
	cleanCmd.Flags().BoolVar(&clnDedup, "dedup", false, "remove duplicate rows")
	cleanCmd.Flags().StringSliceVar(&clnDatetime, "datetime", nil, "columns to coerce to datetime (repeatable)")
	cleanCmd.Flags().StringVarP(&clnOutputPath, "output", "o", "", "write the cleaned CSV here (default stdout)")
	cleanCmd.Flags().IntVar(&clnPreview, "preview", 0, "print the first N cleaned rows as a table instead of CSV")
}
