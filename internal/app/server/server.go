package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/brattlof/usersdb/internal/app/config"
	"github.com/brattlof/usersdb/internal/app/render"
	"github.com/brattlof/usersdb/internal/app/router"
	"github.com/brattlof/usersdb/pkg/plugin"
)

type Server struct {
	config   *config.Config
	router   *router.Router
	registry *plugin.Registry
	mux      *chi.Mux
	http     *http.Server
}

func New(cfg *config.Config, rt *router.Router, registry *plugin.Registry) *Server {
	s := &Server{
		config:   cfg,
		router:   rt,
		registry: registry,
		mux:      chi.NewRouter(),
	}
	s.http = &http.Server{
		Addr:         cfg.Addr(),
		Handler:      s.mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

func (s *Server) SetupMiddlewares() {
	s.mux.Use(middleware.RequestID)
	s.mux.Use(middleware.RealIP)
	s.mux.Use(middleware.Logger)
	s.mux.Use(middleware.Recoverer)

	timeout := time.Duration(s.config.API.TimeoutSec) * time.Second
	if timeout > 0 {
		s.mux.Use(middleware.Timeout(timeout))
	}

	if s.registry == nil {
		return
	}
	for _, h := range s.registry.MiddlewareHooks() {
		s.mux.Use(h.OnMiddleware())
	}
}

func (s *Server) SetupRoutes(index http.HandlerFunc) {
	if prefix := s.router.Prefix(); prefix != "" {
		s.mux.Route(prefix, func(r chi.Router) {
			s.router.Mount(r)
		})
	} else {
		s.router.Mount(s.mux)
	}

	if index != nil {
		s.mux.Get("/", index)
	}

	s.mux.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	s.mux.NotFound(func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	})
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

// Start blocks until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	slog.Info("Starting usersd server",
		"addr", s.http.Addr,
		"routes", len(s.router.Routes()),
		"store", s.config.Store.Driver,
	)
	return s.http.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
