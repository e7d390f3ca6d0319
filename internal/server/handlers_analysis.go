package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/KaramelBytes/dataloom/internal/analysis"
	"github.com/KaramelBytes/dataloom/internal/table"
)

const (
	// DefaultPreviewRows matches the dashboard's initial preview size.
	DefaultPreviewRows = 10
	MaxPreviewRows     = 1000
)

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	t, err := sessionFrom(r).Require()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, analysis.Summarize(t))
}

func (s *Server) handleTypes(w http.ResponseWriter, r *http.Request) {
	t, _ := sessionFrom(r).Data()
	writeJSON(w, http.StatusOK, analysis.InferColumnTypes(t))
}

type columnInfo struct {
	analysis.ColumnProfile
	Operators []analysis.Operator `json:"operators"`
	// RangeMin and RangeMax seed in_range inputs for numeric columns.
	RangeMin *float64 `json:"range_min,omitempty"`
	RangeMax *float64 `json:"range_max,omitempty"`
}

// handleColumns returns the column information table plus the filter
// operators each column accepts.
func (s *Server) handleColumns(w http.ResponseWriter, r *http.Request) {
	t, err := sessionFrom(r).Require()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	profiles := analysis.ProfileColumns(t)
	out := make([]columnInfo, len(profiles))
	for i, p := range profiles {
		out[i] = columnInfo{ColumnProfile: p, Operators: analysis.OperatorsFor(p.Type)}
		if p.Type == analysis.TypeInteger || p.Type == analysis.TypeFloat {
			lo, hi := analysis.MinMax(t, p.Name)
			out[i].RangeMin, out[i].RangeMax = &lo, &hi
		}
	}
	writeJSON(w, http.StatusOK, out)
}

type previewResponse struct {
	Rows      int              `json:"rows"`
	TotalRows int              `json:"total_rows"`
	Columns   []string         `json:"columns"`
	Records   []map[string]any `json:"records"`
}

func preview(t *table.Table, total, n int) previewResponse {
	return previewResponse{
		Rows:      min(n, t.NumRows()),
		TotalRows: total,
		Columns:   t.Names(),
		Records:   table.Records(t, n),
	}
}

// handlePreview serves ?rows=N&search=term&columns=a,b.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	t, err := sessionFrom(r).Require()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	n, err := queryIntIn(r, "rows", DefaultPreviewRows, 1, MaxPreviewRows)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	total := t.NumRows()
	if term := r.URL.Query().Get("search"); term != "" {
		t = analysis.Search(t, term)
		total = t.NumRows()
	}
	if cols := queryList(r, "columns"); cols != nil {
		for _, c := range cols {
			if _, ok := t.Column(c); !ok {
				s.fail(w, r, badRequest("unknown column %q", c))
				return
			}
		}
		t = t.SelectColumns(cols)
	}
	writeJSON(w, http.StatusOK, preview(t, total, n))
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	t, err := sessionFrom(r).Require()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	st, err := analysis.ComputeStats(t, queryList(r, "columns"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// handleReport returns the dataset report as markdown (default) or JSON.
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	t, err := sess.Require()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	_, name := sess.Data()
	opt := analysis.DefaultReportOptions()
	opt.GroupBy = queryList(r, "group_by")
	if opt.SampleRows, err = queryInt(r, "sample_rows", opt.SampleRows); err != nil {
		s.fail(w, r, err)
		return
	}
	rep := analysis.BuildReport(name, t, opt)
	if r.URL.Query().Get("format") == "json" {
		writeJSON(w, http.StatusOK, rep)
		return
	}
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	_, _ = w.Write([]byte(rep.Markdown()))
}

func (s *Server) handleCorrelation(w http.ResponseWriter, r *http.Request) {
	t, err := sessionFrom(r).Require()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	m, err := analysis.Correlation(t, queryList(r, "columns"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

type distributionResponse struct {
	Column     string                   `json:"column"`
	Type       analysis.ColumnType      `json:"type"`
	Categories []analysis.CategoryCount `json:"categories,omitempty"`
	Histogram  *analysis.Histogram      `json:"histogram,omitempty"`
}

// handleDistribution picks a histogram for numeric columns and value counts
// for everything else.
func (s *Server) handleDistribution(w http.ResponseWriter, r *http.Request) {
	t, err := sessionFrom(r).Require()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	name := chi.URLParam(r, "column")
	c, ok := t.Column(name)
	if !ok {
		s.fail(w, r, badRequest("unknown column %q", name))
		return
	}
	types := analysis.InferColumnTypes(t)
	out := distributionResponse{Column: name, Type: types[name]}
	if c.Kind.IsNumeric() {
		bins, err := queryIntIn(r, "bins", analysis.DefaultBins, 1, analysis.MaxBins)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		out.Histogram = analysis.NumericDistribution(t, name, bins)
	} else {
		out.Categories = analysis.CategoricalDistribution(t, name)
	}
	writeJSON(w, http.StatusOK, out)
}
