package server

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/KaramelBytes/dataloom/internal/analysis"
	"github.com/KaramelBytes/dataloom/internal/session"
)

type resultResponse struct {
	Kind    session.ResultKind `json:"kind"`
	Skipped []analysis.Skipped `json:"skipped,omitempty"`
	Preview previewResponse    `json:"preview"`
	Applied bool               `json:"applied,omitempty"`
	Session session.Info       `json:"session"`
}

// handleClean runs the cleaning pipeline on the working table. The cleaned
// table is held as the pending result unless ?apply=true.
func (s *Server) handleClean(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	t, err := sess.Require()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var opt analysis.CleaningOptions
	if err := decodeJSON(r, &opt); err != nil {
		s.fail(w, r, err)
		return
	}
	for _, c := range opt.DatetimeColumns {
		if _, ok := t.Column(c); !ok {
			s.fail(w, r, badRequest("unknown column %q", c))
			return
		}
	}
	cleaned := analysis.Clean(t, opt)
	sess.SetResult(cleaned, session.ResultCleaned)
	out := resultResponse{Kind: session.ResultCleaned, Preview: preview(cleaned, cleaned.NumRows(), DefaultPreviewRows)}
	if queryBool(r, "apply") {
		adopted, _, err := sess.Adopt()
		if err != nil {
			s.fail(w, r, err)
			return
		}
		s.replaced(sess, "clean", adopted)
		out.Applied = true
	}
	out.Session = sess.Info()
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleListFilters(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, sessionFrom(r).Filters())
}

func (s *Server) handleAddFilter(w http.ResponseWriter, r *http.Request) {
	var f analysis.Filter
	if err := decodeJSON(r, &f); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sessionFrom(r).AddFilter(f))
}

func (s *Server) handleClearFilters(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	sess.ClearFilters()
	writeJSON(w, http.StatusOK, sess.Filters())
}

func (s *Server) handleRemoveFilter(w http.ResponseWriter, r *http.Request) {
	i, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		s.fail(w, r, badRequest("filter index must be an integer"))
		return
	}
	fs, err := sessionFrom(r).RemoveFilter(i)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, fs)
}

// handleApplyFilters evaluates the pending filters against the working table.
// Filters that cannot be applied are reported in "skipped" rather than failing
// the request.
func (s *Server) handleApplyFilters(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	t, err := sess.Require()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	n, err := queryIntIn(r, "rows", DefaultPreviewRows, 1, MaxPreviewRows)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	fs := sess.Filters()
	filtered := analysis.Filter(t, fs)
	sess.SetResult(filtered, session.ResultFiltered)
	writeJSON(w, http.StatusOK, resultResponse{
		Kind:    session.ResultFiltered,
		Skipped: fs.Check(t),
		Preview: preview(filtered, filtered.NumRows(), n),
		Session: sess.Info(),
	})
}

func (s *Server) handleResult(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	t, kind := sess.Result()
	if t == nil {
		s.fail(w, r, session.ErrNoResult)
		return
	}
	n, err := queryIntIn(r, "rows", DefaultPreviewRows, 1, MaxPreviewRows)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resultResponse{Kind: kind, Preview: preview(t, t.NumRows(), n), Session: sess.Info()})
}

func (s *Server) handleAdopt(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	t, kind, err := sess.Adopt()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.replaced(sess, string(kind), t)
	writeJSON(w, http.StatusOK, sess.Info())
}
