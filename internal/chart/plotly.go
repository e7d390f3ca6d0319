package chart

import (
	"encoding/json"
	"fmt"
	"io"
)

// Renderer encodes a figure for a client-side plotting library.
type Renderer interface {
	ContentType() string
	Render(w io.Writer, fig *Figure) error
}

// PlotlyRenderer emits Plotly figure JSON: {"data": [...], "layout": {...}}.
type PlotlyRenderer struct{}

// ContentType implements Renderer.
func (PlotlyRenderer) ContentType() string { return "application/json" }

// Render implements Renderer.
func (p PlotlyRenderer) Render(w io.Writer, fig *Figure) error {
	if err := json.NewEncoder(w).Encode(p.Figure(fig)); err != nil {
		return fmt.Errorf("encode figure: %w", err)
	}
	return nil
}

// Figure converts fig to the Plotly document structure.
func (PlotlyRenderer) Figure(fig *Figure) map[string]any {
	data := make([]map[string]any, 0, len(fig.Traces))
	for _, tr := range fig.Traces {
		data = append(data, plotlyTrace(fig, tr))
	}
	layout := map[string]any{
		"title":  map[string]any{"text": fig.Title},
		"height": fig.Height,
	}
	if fig.Width > 0 {
		layout["width"] = fig.Width
	}
	if fig.XTitle != "" {
		layout["xaxis"] = map[string]any{"title": map[string]any{"text": fig.XTitle}}
	}
	if fig.YTitle != "" {
		layout["yaxis"] = map[string]any{"title": map[string]any{"text": fig.YTitle}}
	}
	if fig.LegendTitle != "" {
		layout["legend"] = map[string]any{"title": map[string]any{"text": fig.LegendTitle}}
	}
	if fig.BarGap > 0 {
		layout["bargap"] = fig.BarGap
	}
	if fig.Kind != Pie && fig.Kind != Heatmap && fig.Kind != Correlation {
		layout["plot_bgcolor"] = "white"
	}
	if len(fig.Traces) > 1 && fig.Kind == Histogram {
		layout["barmode"] = "stack"
	}
	if fig.Kind == Box && len(fig.Traces) > 1 {
		layout["boxmode"] = "group"
	}
	return map[string]any{"data": data, "layout": layout}
}

func plotlyTrace(fig *Figure, tr Trace) map[string]any {
	m := map[string]any{"type": tr.Type}
	if tr.Name != "" {
		m["name"] = tr.Name
	}
	switch tr.Type {
	case "pie":
		m["labels"] = tr.Labels
		m["values"] = tr.Values
	case "heatmap":
		m["x"], m["y"], m["z"] = tr.X, tr.Y, tr.Z
		if fig.ColorScale != "" {
			m["colorscale"] = fig.ColorScale
		}
		if tr.TextAuto {
			m["texttemplate"] = "%{z:.2f}"
			m["zmin"], m["zmax"] = -1, 1
		}
	case "box":
		xs := make([]string, len(tr.Boxes))
		q1 := make([]float64, len(tr.Boxes))
		med := make([]float64, len(tr.Boxes))
		q3 := make([]float64, len(tr.Boxes))
		lo := make([]float64, len(tr.Boxes))
		hi := make([]float64, len(tr.Boxes))
		for i, b := range tr.Boxes {
			xs[i], q1[i], med[i], q3[i], lo[i], hi[i] = b.Group, b.Q1, b.Median, b.Q3, b.LowerFence, b.UpperFence
		}
		m["x"], m["q1"], m["median"], m["q3"], m["lowerfence"], m["upperfence"] = xs, q1, med, q3, lo, hi
	default:
		m["x"], m["y"] = tr.X, tr.Y
		if tr.Mode != "" {
			m["mode"] = tr.Mode
		}
		if tr.Orientation != "" {
			m["orientation"] = tr.Orientation
		}
		if len(tr.Sizes) > 0 {
			m["marker"] = map[string]any{"size": tr.Sizes, "sizemode": "area"}
		}
	}
	return m
}
