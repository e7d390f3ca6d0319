package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/dataloom/internal/analysis"
)

var (
	distLoad  loadFlags
	distBins  int
	distCorr  bool
	distLimit int
)

var distCmd = &cobra.Command{
	Use:   "dist <file> <column>",
	Short: "Show the distribution of a column (histogram or value counts)",
	Example: `  dataloom dist sales.csv Region
  dataloom dist sales.csv Units --bins 20
  dataloom dist sales.csv --correlation`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := loadTable(args[0], &distLoad)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if distCorr {
			m, err := analysis.Correlation(t, nil)
			if err != nil {
				return err
			}
			tw := newTextTable(out, []string{"a", "b", "r"})
			for _, p := range m.TopPairs(distLimit) {
				tw.Append([]string{p.A, p.B, fmt.Sprintf("%.3f", p.R)})
			}
			tw.Render()
			return nil
		}
		if len(args) < 2 {
			return fmt.Errorf("column is required unless --correlation is set")
		}
		name := args[1]
		c, ok := t.Column(name)
		if !ok {
			return fmt.Errorf("%w: %q", analysis.ErrUnknownColumn, name)
		}
		if c.Kind.IsNumeric() {
			if distBins < 1 || distBins > analysis.MaxBins {
				return fmt.Errorf("--bins must be between 1 and %d", analysis.MaxBins)
			}
			h := analysis.NumericDistribution(t, name, distBins)
			if h == nil {
				fmt.Fprintln(out, "No values")
				return nil
			}
			tw := newTextTable(out, []string{"bin", "count"})
			for i, l := range h.Labels {
				tw.Append([]string{l, fmt.Sprint(h.Counts[i])})
			}
			tw.Render()
			return nil
		}
		tw := newTextTable(out, []string{name, "count", "percentage"})
		for i, cc := range analysis.CategoricalDistribution(t, name) {
			if distLimit > 0 && i >= distLimit {
				break
			}
			tw.Append([]string{cc.Value, fmt.Sprint(cc.Count), fmt.Sprintf("%.2f%%", cc.Percentage)})
		}
		tw.Render()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(distCmd)
	distLoad.register(distCmd)
	distCmd.Flags().IntVar(&distBins, "bins", analysis.DefaultBins, "histogram bins for numeric columns")
	distCmd.Flags().BoolVar(&distCorr, "correlation", false, "show the strongest Pearson pairs instead")
	distCmd.Flags().IntVar(&distLimit, "limit", 20, "max rows to show (0 = all)")
}
