package server

import (
	"bytes"
	"net/http"

	"github.com/KaramelBytes/dataloom/internal/chart"
	"github.com/KaramelBytes/dataloom/internal/session"
	"github.com/KaramelBytes/dataloom/internal/table"
)

// source picks the working table, or the pending result with ?source=result.
func source(r *http.Request) (*table.Table, error) {
	sess := sessionFrom(r)
	if r.URL.Query().Get("source") == "result" {
		t, _ := sess.Result()
		if t == nil {
			return nil, session.ErrNoResult
		}
		return t, nil
	}
	return sess.Require()
}

// handleChart builds a chart from a column-role spec and returns Plotly JSON.
func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	t, err := source(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var spec chart.Spec
	if err := decodeJSON(r, &spec); err != nil {
		s.fail(w, r, err)
		return
	}
	fig, err := chart.Build(t, spec)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var renderer chart.Renderer = chart.PlotlyRenderer{}
	var buf bytes.Buffer
	if err := renderer.Render(&buf, fig); err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", renderer.ContentType())
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}
