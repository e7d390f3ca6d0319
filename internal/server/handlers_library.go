package server

import (
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/KaramelBytes/dataloom/internal/analysis"
	"github.com/KaramelBytes/dataloom/internal/library"
	"github.com/KaramelBytes/dataloom/internal/loader"
	"github.com/KaramelBytes/dataloom/internal/table"
	"github.com/KaramelBytes/dataloom/internal/utils"
)

var errNoLibrary = errors.New("library is not configured")

func (s *Server) requireLibrary(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.lib == nil {
			writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: errNoLibrary.Error()})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleLibraryList(w http.ResponseWriter, r *http.Request) {
	entries, err := s.lib.List()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if entries == nil {
		entries = []library.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleLibraryRemove(w http.ResponseWriter, r *http.Request) {
	if err := s.lib.Remove(chi.URLParam(r, "ref")); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleExport downloads the working table (or ?source=result) as CSV.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	t, err := source(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	_, name := sessionFrom(r).Data()
	base := strings.TrimSuffix(name, filepath.Ext(name))
	if r.URL.Query().Get("source") == "result" {
		base += "_result"
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", utils.SafeFileName(base)+".csv"))
	if err := table.WriteCSV(w, t); err != nil {
		s.log.WithError(err).Warn("export interrupted")
	}
}

type saveRequest struct {
	Name string `json:"name"`
}

type saveResponse struct {
	Entry   library.Entry `json:"entry"`
	Created bool          `json:"created"`
	Message string        `json:"message"`
}

// handleSave stores the working table in the library. Saving an existing
// name is not an error; the response reports it as already saved.
func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	if s.lib == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: errNoLibrary.Error()})
		return
	}
	sess := sessionFrom(r)
	t, err := sess.Require()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var req saveRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			s.fail(w, r, err)
			return
		}
	}
	if req.Name == "" {
		_, req.Name = sess.Data()
	}
	if req.Name == "" {
		s.fail(w, r, badRequest("name is required"))
		return
	}
	e, created, err := s.lib.Save(req.Name, t)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if !created {
		writeJSON(w, http.StatusOK, saveResponse{Entry: e, Message: "File already saved"})
		return
	}
	s.log.WithField("name", e.Name).Info("dataset saved")
	writeJSON(w, http.StatusCreated, saveResponse{Entry: e, Created: true, Message: fmt.Sprintf("Saved %s to the library", e.Name)})
}

// handleOpenSaved replaces the session's data with a library entry.
func (s *Server) handleOpenSaved(w http.ResponseWriter, r *http.Request) {
	if s.lib == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: errNoLibrary.Error()})
		return
	}
	sess := sessionFrom(r)
	t, e, err := s.lib.Load(chi.URLParam(r, "ref"), loader.DefaultOptions())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	sess.Load(e.Name, t)
	s.replaced(sess, "library", t)
	writeJSON(w, http.StatusOK, loadResponse{Session: sess.Info(), Summary: analysis.Summarize(t), Saved: true})
}
