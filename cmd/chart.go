package cmd

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/dataloom/internal/chart"
)

var (
	chLoad       loadFlags
	chSpec       chart.Spec
	chOutputPath string
)

var chartCmd = &cobra.Command{
	Use:   "chart <file>",
	Short: "Build a chart and emit Plotly figure JSON",
	Example: `  dataloom chart sales.csv --kind bar --x Region --y Units -o bar.json
  dataloom chart sales.csv --kind histogram --x Units --bins 30
  dataloom chart sales.csv --kind pie --names Region --values Units
  dataloom chart sales.csv --kind correlation`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := loadTable(args[0], &chLoad)
		if err != nil {
			return err
		}
		spec := chSpec
		spec.Kind = chart.Kind(strings.ToLower(string(spec.Kind)))
		fig, err := chart.Build(t, spec)
		if err != nil {
			return err
		}
		var renderer chart.Renderer = chart.PlotlyRenderer{}
		var buf bytes.Buffer
		if err := renderer.Render(&buf, fig); err != nil {
			return err
		}
		return writeOutput(cmd.OutOrStdout(), chOutputPath, buf.Bytes(), "chart")
	},
}

func chartKinds() string {
	names := make([]string, len(chart.Kinds))
	for i, k := range chart.Kinds {
		names[i] = string(k)
	}
	return strings.Join(names, "|")
}

func init() {
	rootCmd.AddCommand(chartCmd)
	chLoad.register(chartCmd)
	f := chartCmd.Flags()
	f.StringVar((*string)(&chSpec.Kind), "kind", "", fmt.Sprintf("chart kind: %s", chartKinds()))
	f.StringVar(&chSpec.X, "x", "", "x column")
	f.StringVar(&chSpec.Y, "y", "", "y column")
	f.StringSliceVar(&chSpec.YColumns, "y-columns", nil, "line: several y columns")
	f.StringVar(&chSpec.Color, "color", "", "categorical column to split series")
	f.StringVar(&chSpec.Size, "size", "", "scatter: numeric marker size column")
	f.StringVar(&chSpec.Names, "names", "", "pie: label column")
	f.StringVar(&chSpec.Values, "values", "", "pie/heatmap: value column")
	f.StringSliceVar(&chSpec.Columns, "columns", nil, "correlation: numeric columns (default all)")
	f.StringVar(&chSpec.Title, "title", "", "chart title")
	f.StringVar(&chSpec.Orientation, "orientation", "", "bar: v|h")
	f.IntVar(&chSpec.Bins, "bins", 0, "histogram bins (default 20)")
	f.StringVarP(&chOutputPath, "output", "o", "", "write the figure JSON here (default stdout)")
	_ = chartCmd.MarkFlagRequired("kind")
}
