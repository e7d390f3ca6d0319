// Package chart turns declarative chart requests into figures that a browser
// plotting library can draw. Nothing here renders pixels.
package chart

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/KaramelBytes/dataloom/internal/analysis"
	"github.com/KaramelBytes/dataloom/internal/table"
)

// Kind names a chart type.
type Kind string

const (
	Bar         Kind = "bar"
	Line        Kind = "line"
	Scatter     Kind = "scatter"
	Histogram   Kind = "histogram"
	Pie         Kind = "pie"
	Heatmap     Kind = "heatmap"
	Box         Kind = "box"
	Correlation Kind = "correlation"
)

// Kinds lists every supported chart kind.
var Kinds = []Kind{Bar, Line, Scatter, Histogram, Pie, Heatmap, Box, Correlation}

// DefaultHistogramBins matches the dashboard slider default.
const DefaultHistogramBins = 20

// ErrInvalidSpec is returned when a spec does not fit the table.
var ErrInvalidSpec = errors.New("invalid chart spec")

// Spec describes a chart in terms of column roles.
type Spec struct {
	Kind        Kind     `json:"kind"`
	X           string   `json:"x,omitempty"`
	Y           string   `json:"y,omitempty"`
	YColumns    []string `json:"y_columns,omitempty"`
	Color       string   `json:"color,omitempty"`
	Size        string   `json:"size,omitempty"`
	Names       string   `json:"names,omitempty"`
	Values      string   `json:"values,omitempty"`
	Columns     []string `json:"columns,omitempty"`
	Title       string   `json:"title,omitempty"`
	Orientation string   `json:"orientation,omitempty"` // "v" (default) or "h"
	Bins        int      `json:"bins,omitempty"`
}

// Figure is a chart ready for a renderer.
type Figure struct {
	Kind        Kind
	Title       string
	XTitle      string
	YTitle      string
	LegendTitle string
	Height      int
	Width       int
	BarGap      float64
	ColorScale  string
	Traces      []Trace
}

// Trace is one data series.
type Trace struct {
	Type        string // bar, scatter, pie, heatmap, box
	Name        string
	Mode        string
	Orientation string
	X           []any
	Y           []any
	Z           [][]analysis.Number
	Labels      []string
	Values      []float64
	Sizes       []float64
	TextAuto    bool
	Boxes       []BoxStats
}

// BoxStats is a precomputed five-number summary with Tukey fences.
type BoxStats struct {
	Group      string
	Min        float64
	Q1         float64
	Median     float64
	Q3         float64
	Max        float64
	LowerFence float64
	UpperFence float64
}

// Build validates spec against t and computes the figure data.
func Build(t *table.Table, spec Spec) (*Figure, error) {
	if t.Empty() {
		return nil, fmt.Errorf("%w: no data loaded", ErrInvalidSpec)
	}
	r := roles{t: t, types: analysis.InferColumnTypes(t)}
	switch spec.Kind {
	case Bar:
		return r.bar(spec)
	case Line:
		return r.line(spec)
	case Scatter:
		return r.scatter(spec)
	case Histogram:
		return r.histogram(spec)
	case Pie:
		return r.pie(spec)
	case Heatmap:
		return r.heatmap(spec)
	case Box:
		return r.box(spec)
	case Correlation:
		return r.correlation(spec)
	}
	return nil, fmt.Errorf("%w: unknown chart kind %q", ErrInvalidSpec, spec.Kind)
}

// DefaultTitle returns the title used when a spec leaves it empty.
func DefaultTitle(spec Spec) string {
	switch spec.Kind {
	case Bar:
		return fmt.Sprintf("Bar Chart: %s by %s", spec.Y, spec.X)
	case Line:
		return fmt.Sprintf("Line Chart: %s over %s", strings.Join(spec.YColumns, ", "), spec.X)
	case Scatter:
		return fmt.Sprintf("Scatter Plot: %s vs %s", spec.Y, spec.X)
	case Histogram:
		return fmt.Sprintf("Histogram: Distribution of %s", spec.X)
	case Pie:
		return fmt.Sprintf("Pie Chart: %s by %s", spec.Values, spec.Names)
	case Heatmap:
		return fmt.Sprintf("Heatmap: %s by %s and %s", spec.Values, spec.X, spec.Y)
	case Box:
		return fmt.Sprintf("Box Plot: %s by %s", spec.Y, spec.X)
	case Correlation:
		return "Correlation Heatmap"
	}
	return ""
}

type roles struct {
	t     *table.Table
	types analysis.ColumnTypeMap
}

func (r roles) column(role, name string) (*table.Column, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: %s column is required", ErrInvalidSpec, role)
	}
	c, ok := r.t.Column(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s column %q not found", ErrInvalidSpec, role, name)
	}
	return c, nil
}

func (r roles) numeric(role, name string) (*table.Column, error) {
	c, err := r.column(role, name)
	if err != nil {
		return nil, err
	}
	if !c.Kind.IsNumeric() {
		return nil, fmt.Errorf("%w: %s column %q must be numeric", ErrInvalidSpec, role, name)
	}
	return c, nil
}

func (r roles) categorical(role, name string) (*table.Column, error) {
	c, err := r.column(role, name)
	if err != nil {
		return nil, err
	}
	if ty := r.types[name]; ty != analysis.TypeCategorical && ty != analysis.TypeText {
		return nil, fmt.Errorf("%w: %s column %q must be categorical or text", ErrInvalidSpec, role, name)
	}
	return c, nil
}

// optional resolves an optional role; an empty or "None" name means unset.
func (r roles) optional(name string, check func(string, string) (*table.Column, error), role string) (*table.Column, error) {
	if name == "" || name == "None" {
		return nil, nil
	}
	return check(role, name)
}

func titleOr(spec Spec) string {
	if strings.TrimSpace(spec.Title) != "" {
		return spec.Title
	}
	return DefaultTitle(spec)
}

func baseFigure(spec Spec) *Figure {
	return &Figure{Kind: spec.Kind, Title: titleOr(spec), Height: 500}
}

func (r roles) bar(spec Spec) (*Figure, error) {
	x, err := r.column("x", spec.X)
	if err != nil {
		return nil, err
	}
	y, err := r.column("y", spec.Y)
	if err != nil {
		return nil, err
	}
	color, err := r.optional(spec.Color, r.categorical, "color")
	if err != nil {
		return nil, err
	}
	fig := baseFigure(spec)
	fig.XTitle, fig.YTitle = spec.X, spec.Y
	if color != nil {
		fig.LegendTitle = color.Name
	}
	horizontal := spec.Orientation == "h" || spec.Orientation == "horizontal"
	for _, g := range groupRows(color, r.t.NumRows()) {
		tr := Trace{Type: "bar", Name: g.name, X: pick(x, g.rows), Y: pick(y, g.rows)}
		if horizontal {
			tr.X, tr.Y = tr.Y, tr.X
			tr.Orientation = "h"
		}
		fig.Traces = append(fig.Traces, tr)
	}
	return fig, nil
}

func (r roles) line(spec Spec) (*Figure, error) {
	x, err := r.column("x", spec.X)
	if err != nil {
		return nil, err
	}
	if len(spec.YColumns) == 0 && spec.Y != "" {
		spec.YColumns = []string{spec.Y}
	}
	if len(spec.YColumns) == 0 {
		return nil, fmt.Errorf("%w: Please select at least one Y-axis column", ErrInvalidSpec)
	}
	fig := baseFigure(spec)
	fig.XTitle, fig.YTitle, fig.LegendTitle = spec.X, "Value", "Variables"
	all := allRows(r.t.NumRows())
	xs := pick(x, all)
	for _, name := range spec.YColumns {
		y, err := r.numeric("y", name)
		if err != nil {
			return nil, err
		}
		fig.Traces = append(fig.Traces, Trace{Type: "scatter", Mode: "lines+markers", Name: name, X: xs, Y: pick(y, all)})
	}
	return fig, nil
}

func (r roles) scatter(spec Spec) (*Figure, error) {
	x, err := r.numeric("x", spec.X)
	if err != nil {
		return nil, err
	}
	y, err := r.numeric("y", spec.Y)
	if err != nil {
		return nil, err
	}
	color, err := r.optional(spec.Color, r.categorical, "color")
	if err != nil {
		return nil, err
	}
	size, err := r.optional(spec.Size, r.numeric, "size")
	if err != nil {
		return nil, err
	}
	fig := baseFigure(spec)
	fig.XTitle, fig.YTitle = spec.X, spec.Y
	if color != nil {
		fig.LegendTitle = color.Name
	}
	for _, g := range groupRows(color, r.t.NumRows()) {
		tr := Trace{Type: "scatter", Mode: "markers", Name: g.name, X: pick(x, g.rows), Y: pick(y, g.rows)}
		if size != nil {
			tr.Sizes = make([]float64, len(g.rows))
			for i, row := range g.rows {
				tr.Sizes[i], _ = table.AsFloat(size.Values[row])
			}
		}
		fig.Traces = append(fig.Traces, tr)
	}
	return fig, nil
}

func (r roles) histogram(spec Spec) (*Figure, error) {
	if spec.X == "" {
		spec.X = spec.Y
	}
	x, err := r.numeric("x", spec.X)
	if err != nil {
		return nil, err
	}
	color, err := r.optional(spec.Color, r.categorical, "color")
	if err != nil {
		return nil, err
	}
	bins := spec.Bins
	if bins <= 0 {
		bins = DefaultHistogramBins
	}
	if bins > analysis.MaxBins {
		return nil, fmt.Errorf("%w: bins must be at most %d", ErrInvalidSpec, analysis.MaxBins)
	}
	h := analysis.NumericDistribution(r.t, x.Name, bins)
	fig := baseFigure(spec)
	fig.XTitle, fig.YTitle, fig.BarGap = spec.X, "Count", 0.1
	if color != nil {
		fig.LegendTitle = color.Name
	}
	for _, g := range groupRows(color, r.t.NumRows()) {
		counts := h.Counts
		if color != nil {
			counts = make([]int, len(h.Counts))
			for _, row := range g.rows {
				if v, ok := table.AsFloat(x.Values[row]); ok {
					counts[h.Bin(v)]++
				}
			}
		}
		tr := Trace{Type: "bar", Name: g.name, X: make([]any, len(h.Labels)), Y: make([]any, len(counts))}
		for i := range h.Labels {
			tr.X[i] = h.Labels[i]
			tr.Y[i] = counts[i]
		}
		fig.Traces = append(fig.Traces, tr)
	}
	return fig, nil
}

func (r roles) pie(spec Spec) (*Figure, error) {
	names, err := r.categorical("names", spec.Names)
	if err != nil {
		return nil, err
	}
	values, err := r.numeric("values", spec.Values)
	if err != nil {
		return nil, err
	}
	sums := map[string]float64{}
	for i, v := range names.Values {
		if table.IsMissing(v) {
			continue
		}
		k := table.FormatValue(v)
		f, _ := table.AsFloat(values.Values[i])
		sums[k] += f
	}
	labels := make([]string, 0, len(sums))
	for k := range sums {
		labels = append(labels, k)
	}
	sort.Strings(labels)
	tr := Trace{Type: "pie", Labels: labels, Values: make([]float64, len(labels))}
	for i, k := range labels {
		tr.Values[i] = sums[k]
	}
	fig := baseFigure(spec)
	fig.Traces = []Trace{tr}
	return fig, nil
}

func (r roles) heatmap(spec Spec) (*Figure, error) {
	x, err := r.categorical("x", spec.X)
	if err != nil {
		return nil, err
	}
	y, err := r.categorical("y", spec.Y)
	if err != nil {
		return nil, err
	}
	if x.Name == y.Name {
		return nil, fmt.Errorf("%w: Please select different columns for X and Y axes", ErrInvalidSpec)
	}
	values, err := r.numeric("values", spec.Values)
	if err != nil {
		return nil, err
	}
	type cell struct {
		sum float64
		n   int
	}
	cells := map[[2]string]*cell{}
	xset, yset := map[string]bool{}, map[string]bool{}
	for i := 0; i < r.t.NumRows(); i++ {
		xv, yv := x.Values[i], y.Values[i]
		f, ok := table.AsFloat(values.Values[i])
		if table.IsMissing(xv) || table.IsMissing(yv) || !ok {
			continue
		}
		k := [2]string{table.FormatValue(xv), table.FormatValue(yv)}
		xset[k[0]], yset[k[1]] = true, true
		c := cells[k]
		if c == nil {
			c = &cell{}
			cells[k] = c
		}
		c.sum += f
		c.n++
	}
	xs, ys := sortedKeys(xset), sortedKeys(yset)
	z := make([][]analysis.Number, len(ys))
	for i, yk := range ys {
		z[i] = make([]analysis.Number, len(xs))
		for j, xk := range xs {
			if c := cells[[2]string{xk, yk}]; c != nil {
				z[i][j] = analysis.Number(c.sum / float64(c.n))
			} else {
				z[i][j] = nan()
			}
		}
	}
	fig := baseFigure(spec)
	fig.XTitle, fig.YTitle, fig.LegendTitle, fig.ColorScale = x.Name, y.Name, values.Name, "Viridis"
	fig.Traces = []Trace{{Type: "heatmap", X: strings2any(xs), Y: strings2any(ys), Z: z}}
	return fig, nil
}

func (r roles) box(spec Spec) (*Figure, error) {
	x, err := r.categorical("x", spec.X)
	if err != nil {
		return nil, err
	}
	y, err := r.numeric("y", spec.Y)
	if err != nil {
		return nil, err
	}
	color, err := r.optional(spec.Color, r.categorical, "color")
	if err != nil {
		return nil, err
	}
	fig := baseFigure(spec)
	fig.XTitle, fig.YTitle = spec.X, spec.Y
	if color != nil {
		fig.LegendTitle = color.Name
	}
	for _, g := range groupRows(color, r.t.NumRows()) {
		byX := map[string][]float64{}
		var order []string
		for _, row := range g.rows {
			xv := x.Values[row]
			f, ok := table.AsFloat(y.Values[row])
			if table.IsMissing(xv) || !ok {
				continue
			}
			k := table.FormatValue(xv)
			if _, seen := byX[k]; !seen {
				order = append(order, k)
			}
			byX[k] = append(byX[k], f)
		}
		tr := Trace{Type: "box", Name: g.name}
		for _, k := range order {
			tr.Boxes = append(tr.Boxes, fiveNumber(k, byX[k]))
		}
		fig.Traces = append(fig.Traces, tr)
	}
	return fig, nil
}

func (r roles) correlation(spec Spec) (*Figure, error) {
	m, err := analysis.Correlation(r.t, spec.Columns)
	if err != nil {
		if errors.Is(err, analysis.ErrNotEnoughNumeric) {
			return nil, fmt.Errorf("%w: Need at least 2 numerical columns to create a correlation matrix", ErrInvalidSpec)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidSpec, err)
	}
	fig := baseFigure(spec)
	fig.Height, fig.Width, fig.ColorScale = 600, 800, "RdBu_r"
	fig.Traces = []Trace{{
		Type:     "heatmap",
		X:        strings2any(m.Columns),
		Y:        strings2any(m.Columns),
		Z:        m.Values,
		TextAuto: true,
	}}
	return fig, nil
}
