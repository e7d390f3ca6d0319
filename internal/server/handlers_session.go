package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/KaramelBytes/dataloom/internal/analysis"
	"github.com/KaramelBytes/dataloom/internal/loader"
	"github.com/KaramelBytes/dataloom/internal/session"
	"github.com/KaramelBytes/dataloom/internal/table"
)

type ctxKey struct{}

func (s *Server) withSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, err := s.store.Get(chi.URLParam(r, "id"))
		if err != nil {
			s.fail(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, sess)))
	})
}

func sessionFrom(r *http.Request) *session.Session {
	return r.Context().Value(ctxKey{}).(*session.Session)
}

// replaced logs and counts a wholesale working-table swap.
func (s *Server) replaced(sess *session.Session, cause string, t *table.Table) {
	s.metrics.replaced.WithLabelValues(cause).Inc()
	s.log.WithFields(logrus.Fields{
		"session": sess.ID,
		"cause":   cause,
		"rows":    t.NumRows(),
		"cols":    t.NumCols(),
	}).Info("working table replaced")
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	sess := s.store.Create()
	s.log.WithField("session", sess.ID).Debug("session created")
	writeJSON(w, http.StatusCreated, sess.Info())
}

func (s *Server) handleSessionInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, sessionFrom(r).Info())
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	s.store.Delete(sessionFrom(r).ID)
	w.WriteHeader(http.StatusNoContent)
}

// loadOptions reads ingestion options from the query string.
func (s *Server) loadOptions(r *http.Request) (loader.Options, error) {
	opt := loader.DefaultOptions()
	opt.SampleSize = s.cfg.SampleSize
	if s.cfg.SampleSeed != 0 {
		opt.Seed = s.cfg.SampleSeed
	}
	var err error
	if opt.SampleSize, err = queryInt(r, "sample_size", opt.SampleSize); err != nil {
		return opt, err
	}
	if raw := r.URL.Query().Get("seed"); raw != "" {
		seed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return opt, badRequest("seed must be an integer")
		}
		opt.Seed = seed
	}
	q := r.URL.Query()
	if sheet := q.Get("sheet"); sheet != "" {
		if n, err := strconv.Atoi(sheet); err == nil {
			opt.SheetIndex = n
		} else {
			opt.SheetName = sheet
		}
	}
	for key, dst := range map[string]*rune{"delimiter": &opt.Delimiter, "decimal": &opt.DecimalSeparator, "thousands": &opt.ThousandsSeparator} {
		raw := q.Get(key)
		if raw == "" {
			continue
		}
		if raw == `\t` {
			raw = "\t"
		}
		ch, size := utf8.DecodeRuneInString(raw)
		if size != len(raw) {
			return opt, badRequest("%s must be a single character", key)
		}
		*dst = ch
	}
	opt.ParseDates = queryBool(r, "parse_dates")
	return opt, nil
}

type loadResponse struct {
	Session session.Info      `json:"session"`
	Summary *analysis.Summary `json:"summary"`
	Saved   bool              `json:"already_saved"`
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	opt, err := s.loadOptions(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, int64(s.cfg.MaxUploadMB)<<20)

	var (
		name string
		body io.Reader
	)
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		file, hdr, err := r.FormFile("file")
		if err != nil {
			if errors.Is(err, http.ErrMissingFile) {
				s.fail(w, r, badRequest("multipart field \"file\" is required"))
				return
			}
			s.fail(w, r, err)
			return
		}
		defer file.Close()
		name, body = hdr.Filename, file
	} else {
		name, body = r.URL.Query().Get("filename"), r.Body
		if name == "" {
			s.fail(w, r, badRequest("filename query parameter is required for raw uploads"))
			return
		}
	}

	t, err := loader.Load(name, body, opt)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	sess.Load(name, t)
	s.replaced(sess, "upload", t)
	writeJSON(w, http.StatusOK, loadResponse{Session: sess.Info(), Summary: analysis.Summarize(t), Saved: s.alreadySaved(name)})
}

func (s *Server) alreadySaved(name string) bool {
	if s.lib == nil {
		return false
	}
	_, err := s.lib.Get(name)
	return err == nil
}

func (s *Server) handleSample(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	t := loader.SampleTable()
	sess.Load("sample.csv", t)
	s.replaced(sess, "sample", t)
	writeJSON(w, http.StatusOK, loadResponse{Session: sess.Info(), Summary: analysis.Summarize(t)})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	sess.Reset()
	t, _ := sess.Data()
	s.replaced(sess, "reset", t)
	writeJSON(w, http.StatusOK, sess.Info())
}
