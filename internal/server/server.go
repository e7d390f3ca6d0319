// Package server exposes the dashboard core as a JSON HTTP API.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/KaramelBytes/dataloom/internal/ai"
	"github.com/KaramelBytes/dataloom/internal/config"
	"github.com/KaramelBytes/dataloom/internal/library"
	"github.com/KaramelBytes/dataloom/internal/session"
)

// RuntimeFunc resolves a chat runtime for a provider name.
type RuntimeFunc func(provider string) (ai.Runtime, error)

// Options wires the server's collaborators. Config, Store and Logger are
// required; Library enables the /api/library endpoints.
type Options struct {
	Config   *config.Global
	Store    *session.Store
	Library  *library.Library
	Logger   *logrus.Logger
	Runtime  RuntimeFunc
	Registry *prometheus.Registry
}

// Server is the dashboard API.
type Server struct {
	cfg     *config.Global
	store   *session.Store
	lib     *library.Library
	log     *logrus.Logger
	runtime RuntimeFunc
	metrics *metrics
	router  chi.Router
}

// New builds the router.
func New(opts Options) (*Server, error) {
	if opts.Config == nil || opts.Store == nil || opts.Logger == nil {
		return nil, errors.New("server: config, store and logger are required")
	}
	s := &Server{
		cfg:     opts.Config,
		store:   opts.Store,
		lib:     opts.Library,
		log:     opts.Logger,
		runtime: opts.Runtime,
	}
	if s.runtime == nil {
		s.runtime = s.defaultRuntime
	}
	s.metrics = newMetrics(opts.Registry, func() float64 { return float64(s.store.Len()) })
	s.router = s.routes()
	return s, nil
}

func (s *Server) defaultRuntime(provider string) (ai.Runtime, error) {
	if provider == "" {
		provider = s.cfg.DefaultProvider
	}
	name := ai.NormalizeProvider(provider)
	rt, ok := ai.GetRuntime(name, s.cfg.RuntimeConfig(name))
	if !ok {
		return nil, badRequest("unknown provider %q", provider)
	}
	return rt, nil
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.log))
	r.Use(middleware.Recoverer)
	r.Use(s.metrics.instrument)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "sessions": s.store.Len()})
	})
	r.Method(http.MethodGet, "/metrics", s.metrics.handler())

	r.Route("/api", func(r chi.Router) {
		r.Post("/sessions", s.handleCreateSession)
		r.Route("/sessions/{id}", func(r chi.Router) {
			r.Use(s.withSession)
			r.Get("/", s.handleSessionInfo)
			r.Delete("/", s.handleDeleteSession)
			r.Post("/upload", s.handleUpload)
			r.Post("/sample", s.handleSample)
			r.Post("/reset", s.handleReset)

			r.Get("/summary", s.handleSummary)
			r.Get("/types", s.handleTypes)
			r.Get("/columns", s.handleColumns)
			r.Get("/preview", s.handlePreview)
			r.Get("/stats", s.handleStats)
			r.Get("/report", s.handleReport)
			r.Get("/correlation", s.handleCorrelation)
			r.Get("/distribution/{column}", s.handleDistribution)

			r.Post("/clean", s.handleClean)
			r.Get("/filters", s.handleListFilters)
			r.Post("/filters", s.handleAddFilter)
			r.Delete("/filters", s.handleClearFilters)
			r.Delete("/filters/{index}", s.handleRemoveFilter)
			r.Post("/filter", s.handleApplyFilters)
			r.Get("/result", s.handleResult)
			r.Post("/adopt", s.handleAdopt)

			r.Post("/charts", s.handleChart)

			r.Get("/chat", s.handleChatHistory)
			r.Post("/chat", s.handleChat)
			r.Delete("/chat", s.handleChatClear)

			r.Get("/export", s.handleExport)
			r.Post("/save", s.handleSave)
			r.Post("/library/{ref}", s.handleOpenSaved)
		})
		r.Route("/library", func(r chi.Router) {
			r.Use(s.requireLibrary)
			r.Get("/", s.handleLibraryList)
			r.Delete("/{ref}", s.handleLibraryRemove)
		})
	})
	return r
}

// ListenAndServe serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go s.store.Run(ctx)
	errc := make(chan error, 1)
	go func() {
		s.log.WithField("addr", addr).Info("dashboard API listening")
		errc <- srv.ListenAndServe()
	}()
	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.log.Info("shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
